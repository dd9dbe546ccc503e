package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/teleassist/robotnik/internal/logging"
	"github.com/teleassist/robotnik/internal/recorder"
	"github.com/teleassist/robotnik/internal/store"
	"github.com/teleassist/robotnik/internal/transport"
	"github.com/teleassist/robotnik/internal/transport/rodtransport"
)

// recordPollInterval is how often captured actions are pulled from the page.
const recordPollInterval = 500 * time.Millisecond

type RecordCmd struct {
	Name    string `arg:"" optional:"" help:"Name for the recorded playbook."`
	URL     string `help:"Open a fresh tab at this URL before recording." xor:"target"`
	Pattern string `help:"Attach to the open tab whose URL contains this." xor:"target"`
}

func (r *RecordCmd) Run(g *Globals) error {
	if g.Transport != "rod" {
		return fmt.Errorf("recording drives the page over CDP; run with --transport=rod")
	}
	if r.URL == "" && r.Pattern == "" {
		return fmt.Errorf("give --url or --pattern to choose the page to record")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.Open(ctx, g.DB)
	if err != nil {
		return fmt.Errorf("opening the store: %w", err)
	}
	defer st.Close()

	closeLogs, err := setupLogging(g, st, "record", uuid.New().String())
	if err != nil {
		return err
	}
	defer closeLogs()

	tr, err := rodtransport.Connect(ctx, g.CDPURL, logging.GlobalLogger)
	if err != nil {
		return fmt.Errorf("setting up the page transport: %w", err)
	}
	defer tr.Close()

	var page transport.PageHandle
	if r.URL != "" {
		page, err = tr.OpenPage(ctx, r.URL, true)
	} else {
		page, err = tr.FindPage(ctx, r.Pattern)
	}
	if err != nil {
		return err
	}

	rec := recorder.New(logging.GlobalLogger)
	if err := rec.Start(r.Name); err != nil {
		return err
	}

	lastURL, err := tr.PageURL(ctx, page)
	if err != nil {
		return err
	}
	rec.Record(recorder.RecordedAction{Kind: recorder.ActionNavigate, URL: lastURL})
	if err := tr.StartRecording(ctx, page); err != nil {
		return err
	}

	fmt.Println(color.CyanString("Recording. Work in the browser; press Enter here to finish."))

	done := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()

	ticker := time.NewTicker(recordPollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-done:
			break poll
		case <-ticker.C:
			url, err := tr.PageURL(ctx, page)
			if err != nil {
				log.Warn().Err(err).Msg("Recorded page is gone, finishing")
				break poll
			}
			if url != lastURL {
				lastURL = url
				rec.Record(recorder.RecordedAction{Kind: recorder.ActionNavigate, URL: url})
			}
			actions, err := tr.DrainRecording(ctx, page)
			if err != nil {
				log.Warn().Err(err).Msg("Could not drain recorded actions")
				continue
			}
			for _, a := range actions {
				rec.Record(a)
			}
		}
	}

	pb, err := rec.Stop()
	if err != nil {
		return err
	}
	saved, err := st.SavePlaybook(ctx, *pb)
	if err != nil {
		return err
	}
	fmt.Printf("Saved %q as %s (%d steps)\n", saved.Name, saved.ID, len(saved.Steps))
	return nil
}
