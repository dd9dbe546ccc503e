package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teleassist/robotnik/internal/logging"
	"github.com/teleassist/robotnik/internal/store"
	"github.com/teleassist/robotnik/internal/wizard"
)

type NumbersCmd struct {
	City   string `arg:"" help:"City to search numbers for."`
	Code   string `help:"Moscow area code (495, 499 or both). Ignored for other cities."`
	Insert bool   `help:"Insert the collected numbers into the open ticket when an editor is available."`
}

func (n *NumbersCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.Open(ctx, g.DB)
	if err != nil {
		return fmt.Errorf("opening the store: %w", err)
	}
	defer st.Close()

	closeLogs, err := setupLogging(g, st, "numbers-search", uuid.New().String())
	if err != nil {
		return err
	}
	defer closeLogs()

	tr, cleanup, err := buildTransport(ctx, g)
	if err != nil {
		return fmt.Errorf("setting up the page transport: %w", err)
	}
	defer cleanup()

	wiz := wizard.New(wizard.Config{
		Transport:    tr,
		Store:        st,
		Progress:     printProgress,
		WaitContinue: promptContinue,
		Log:          emitRunLog,
		Logger:       logging.GlobalLogger,
	})

	result, err := wiz.Run(ctx, wizard.Input{City: n.City, Code: n.Code})
	if err != nil {
		return err
	}

	if len(result.Numbers) == 0 {
		fmt.Println("No numbers found.")
		return nil
	}

	fmt.Printf("\n%s\n", color.New(color.Bold).Sprintf("Found %d numbers:", len(result.Numbers)))
	for _, num := range result.Numbers {
		fmt.Println("  " + num)
	}
	if result.Copied {
		fmt.Println("Copied to the clipboard.")
	}

	if n.Insert {
		if !result.InsertAvailable {
			color.Yellow("No open ticket editor; numbers stay on the clipboard.")
			return nil
		}
		if err := wiz.InsertIntoTicket(ctx, strings.Join(result.Numbers, "\n")); err != nil {
			return err
		}
		fmt.Println("Inserted into the ticket.")
	}
	return nil
}

// InsertCmd pushes the last collected numbers into the open ticket editor.
type InsertCmd struct{}

func (i *InsertCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.Open(ctx, g.DB)
	if err != nil {
		return fmt.Errorf("opening the store: %w", err)
	}
	defer st.Close()

	numbers, savedAt, err := st.LastNumbers(ctx)
	if err != nil {
		return err
	}
	if len(numbers) == 0 {
		return fmt.Errorf("the stored numbers result is empty")
	}

	closeLogs, err := setupLogging(g, st, "numbers-insert", uuid.New().String())
	if err != nil {
		return err
	}
	defer closeLogs()

	tr, cleanup, err := buildTransport(ctx, g)
	if err != nil {
		return fmt.Errorf("setting up the page transport: %w", err)
	}
	defer cleanup()

	wiz := wizard.New(wizard.Config{
		Transport: tr,
		Progress:  printProgress,
		Log:       emitRunLog,
		Logger:    logging.GlobalLogger,
	})

	log.Info().Int("count", len(numbers)).Time("saved_at", savedAt).Msg("Inserting the stored numbers result")
	if err := wiz.InsertIntoTicket(ctx, strings.Join(numbers, "\n")); err != nil {
		return err
	}
	fmt.Printf("Inserted %d numbers into the ticket.\n", len(numbers))
	return nil
}

func printProgress(stage, detail string, ok bool) {
	mark := color.GreenString("✓")
	if !ok {
		mark = color.YellowString("!")
	}
	if detail != "" {
		fmt.Printf("%s %s: %s\n", mark, stage, detail)
		return
	}
	fmt.Printf("%s %s\n", mark, stage)
}

func promptContinue(ctx context.Context) error {
	fmt.Print(color.CyanString("Log in to the marketplace, then press Enter to continue... "))
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(os.Stdin).ReadString('\n')
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
