// Package cmd holds the CLI commands. Each command wires its own logging
// router, store and transport from the shared globals.
package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/teleassist/robotnik/internal/logging"
	"github.com/teleassist/robotnik/internal/store"
	"github.com/teleassist/robotnik/internal/transport"
	"github.com/teleassist/robotnik/internal/transport/rodtransport"
	"github.com/teleassist/robotnik/internal/transport/wsbridge"
)

// Globals are the flags shared by every command.
type Globals struct {
	DB         string `help:"Path to the state database." default:"robotnik.db" env:"ROBOTNIK_DB"`
	Transport  string `help:"Page transport backend." enum:"rod,bridge" default:"rod" env:"ROBOTNIK_TRANSPORT"`
	CDPURL     string `name:"cdp-url" help:"DevTools websocket URL of a running browser. Empty launches one." env:"ROBOTNIK_CDP_URL"`
	BridgeAddr string `help:"Listen address for the extension bridge." default:"127.0.0.1:8971" env:"ROBOTNIK_BRIDGE_ADDR"`
	LogFile    string `help:"JSON log file." default:"robotnik.log.json" env:"ROBOTNIK_LOG_FILE"`
}

// setupLogging builds the router (console, file, persistent run log) and
// installs the global logger. The returned closer flushes the file sink.
func setupLogging(g *Globals, st *store.Store, pbID, runID string) (func(), error) {
	fileSink, err := logging.NewFileSink(g.LogFile)
	if err != nil {
		return nil, fmt.Errorf("could not create file log sink: %w", err)
	}

	sinks := []logging.LogSink{
		&logging.ConsoleSink{},
		fileSink,
	}
	if st != nil {
		sinks = append(sinks, &logging.StoreSink{Store: st})
	}

	router := &logging.LoggerRouter{Sinks: sinks}
	logging.ConfigureGlobalLogger(router, pbID, runID)
	log.Logger = logging.GlobalLogger

	return func() { _ = fileSink.Close() }, nil
}

// buildTransport constructs the selected transport backend. For the bridge
// backend it also starts the websocket listener and waits for the companion
// extension to connect.
func buildTransport(ctx context.Context, g *Globals) (transport.Transport, func(), error) {
	switch g.Transport {
	case "bridge":
		bridge := wsbridge.NewBridge(logging.GlobalLogger)
		server := &http.Server{Addr: g.BridgeAddr, Handler: bridge}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("Bridge listener stopped")
			}
		}()

		log.Info().Str("addr", g.BridgeAddr).Msg("Waiting for the extension to connect")
		if err := waitForBridge(ctx, bridge, time.Minute); err != nil {
			_ = server.Close()
			return nil, nil, err
		}
		return bridge, func() { _ = server.Close() }, nil

	default:
		tr, err := rodtransport.Connect(ctx, g.CDPURL, logging.GlobalLogger)
		if err != nil {
			return nil, nil, err
		}
		return tr, func() { _ = tr.Close() }, nil
	}
}

func waitForBridge(ctx context.Context, bridge *wsbridge.Bridge, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		if bridge.Connected() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no extension connected within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
