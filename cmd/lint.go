package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/teleassist/robotnik/internal/logging"
	"github.com/teleassist/robotnik/internal/playbook"
)

type LintCmd struct {
	Playbook string `arg:"" help:"Playbook YAML file to validate."`
}

func (l *LintCmd) Run(g *Globals) error {
	router := &logging.LoggerRouter{
		Sinks: []logging.LogSink{
			&logging.ConsoleSink{},
		},
	}
	logging.ConfigureGlobalLogger(router, "none", "validation")
	log.Logger = logging.GlobalLogger

	log.Info().Msgf("Validating %s", l.Playbook)

	pb, err := playbook.LoadFromFile(l.Playbook)
	if err != nil {
		return fmt.Errorf("playbook is invalid: %w", err)
	}

	log.Info().Str("name", pb.Name).Int("steps", len(pb.Steps)).
		Msg("Playbook is valid ✅")
	return nil
}
