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

	"github.com/teleassist/robotnik/internal/engine"
	"github.com/teleassist/robotnik/internal/logging"
	"github.com/teleassist/robotnik/internal/playbook"
	"github.com/teleassist/robotnik/internal/store"
)

type RunCmd struct {
	Playbook string            `arg:"" help:"Playbook YAML file, or the id of a built-in or stored playbook."`
	Mode     string            `help:"Operating mode." enum:"assist,automate" default:"assist"`
	Set      map[string]string `help:"Seed context facts as key=value pairs."`
	Yes      bool              `help:"Answer every confirmation prompt with yes."`
}

func (r *RunCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.Open(ctx, g.DB)
	if err != nil {
		return fmt.Errorf("opening the store: %w", err)
	}
	defer st.Close()

	pb, err := loadPlaybook(ctx, st, r.Playbook)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	closeLogs, err := setupLogging(g, st, pb.ID, runID)
	if err != nil {
		return err
	}
	defer closeLogs()

	tr, cleanup, err := buildTransport(ctx, g)
	if err != nil {
		return fmt.Errorf("setting up the page transport: %w", err)
	}
	defer cleanup()

	eng := engine.New(engine.Config{
		Transport: tr,
		Confirm:   r.confirmPrompt(),
		OnUpdate:  printUpdate(pb),
		OnFallback: func(index int, reason string) {
			color.Yellow("Step %d failed; the rest of the run continues in assist mode.", index+1)
		},
		Log:    emitRunLog,
		Logger: logging.GlobalLogger,
	})
	eng.SetMode(playbook.Mode(r.Mode))
	eng.LoadPlaybook(pb)
	if len(r.Set) > 0 {
		seed := make(map[string]any, len(r.Set))
		for k, v := range r.Set {
			seed[k] = v
		}
		eng.SeedContext(seed)
	}

	log.Info().Str("playbook", pb.Name).Str("mode", r.Mode).Int("steps", len(pb.Steps)).
		Msg("Starting playbook run")

	if err := eng.RunAll(ctx); err != nil {
		return err
	}

	printSummary(eng.Status())
	return nil
}

// loadPlaybook resolves the argument as a YAML file first, then as a
// built-in or stored playbook id.
func loadPlaybook(ctx context.Context, st *store.Store, ref string) (*playbook.Playbook, error) {
	if _, err := os.Stat(ref); err == nil {
		return playbook.LoadFromFile(ref)
	}
	saved, err := st.Playbook(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("no playbook file or stored playbook %q", ref)
	}
	return &saved.Playbook, nil
}

func (r *RunCmd) confirmPrompt() engine.ConfirmFunc {
	reader := bufio.NewReader(os.Stdin)
	return func(ctx context.Context, description string) (bool, error) {
		if r.Yes {
			return true, nil
		}
		fmt.Printf("%s %s [Y/n] ", color.CyanString("Run step:"), description)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, err
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "" || answer == "y" || answer == "yes", nil
	}
}

func printUpdate(pb *playbook.Playbook) engine.UpdateFunc {
	return func(index int, status playbook.Status, payload any) {
		step := pb.Steps[index]
		prefix := fmt.Sprintf("[%d/%d]", index+1, len(pb.Steps))

		switch status {
		case playbook.StatusRunning:
			fmt.Printf("%s %s...\n", prefix, step.Description)
		case playbook.StatusDone:
			color.Green("%s %s: done", prefix, step.Description)
		case playbook.StatusSkipped:
			color.Yellow("%s %s: skipped", prefix, step.Description)
		case playbook.StatusError:
			color.Red("%s %s: %v", prefix, step.Description, payload)
		case playbook.StatusAssist:
			data, _ := payload.(engine.AssistData)
			color.Cyan("%s %s", prefix, data.Description)
			if data.Link != "" {
				fmt.Printf("      open: %s\n", data.Link)
			}
			if data.CopyValue != "" {
				fmt.Printf("      copy: %s\n", data.CopyValue)
			}
			if data.Label != "" {
				fmt.Printf("      %s\n", data.Label)
			}
		}
	}
}

// emitRunLog pushes one step outcome through the router; the store sink
// persists events that carry both system and action.
func emitRunLog(system, description string, ok bool, errText string) {
	evt := logging.GlobalLogger.Info()
	if !ok {
		evt = logging.GlobalLogger.Error().Str("error", errText)
	}
	evt.Str("system", system).Str("action", description).Msg(description)
}

func printSummary(snap engine.Snapshot) {
	done, skipped, assist, failed := 0, 0, 0, 0
	for _, res := range snap.Results {
		switch res.Status {
		case playbook.StatusDone:
			done++
		case playbook.StatusSkipped:
			skipped++
		case playbook.StatusAssist:
			assist++
		case playbook.StatusError:
			failed++
		}
	}
	fmt.Printf("\n%s %d done, %d assist, %d skipped, %d failed\n",
		color.New(color.Bold).Sprint("Run finished:"), done, assist, skipped, failed)
	if len(snap.Context) > 0 {
		fmt.Println("Collected facts:")
		for k, v := range snap.Context {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}
}
