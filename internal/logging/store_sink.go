package logging

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/teleassist/robotnik/internal/store"
)

// StoreSink mirrors step outcome events into the persistent run log. Only
// events carrying both a system and an action are operator-facing outcomes;
// everything else is diagnostic and stays out of the store.
type StoreSink struct {
	Store *store.Store
}

func (s *StoreSink) Write(level zerolog.Level, event map[string]any) {
	system := getString(event, "system")
	action := getString(event, "action")
	if system == "" || action == "" {
		return
	}
	errText := getString(event, "error")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.Store.AddLog(ctx, system, action, errText == "", errText)
}

func (s *StoreSink) Close() error {
	return nil
}
