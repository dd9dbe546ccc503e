package logging

import (
	"time"

	"github.com/rs/zerolog"
)

var GlobalLogger zerolog.Logger

// ConfigureGlobalLogger wires the global logger through the router so every
// event reaches all sinks. pbID and runID tag each event with the playbook
// and run they belong to.
func ConfigureGlobalLogger(router *LoggerRouter, pbID, runID string) {
	zerolog.TimeFieldFormat = time.RFC3339
	writer := &RouterWriter{
		Router: router,
	}

	GlobalLogger = zerolog.New(writer).
		With().
		Timestamp().
		Str("playbook", pbID).
		Str("run_id", runID).
		Logger()
}

// ScopedLogger returns the global logger tagged with a step id and the
// target system.
func ScopedLogger(stepID, system string) zerolog.Logger {
	return GlobalLogger.With().
		Str("step_id", stepID).
		Str("system", system).
		Timestamp().
		Logger()
}
