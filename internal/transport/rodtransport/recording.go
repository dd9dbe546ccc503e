package rodtransport

import (
	"context"
	"fmt"
	"time"

	"github.com/teleassist/robotnik/internal/recorder"
	"github.com/teleassist/robotnik/internal/transport"
)

// StartRecording injects the capture hooks into a tracked page.
func (t *Transport) StartRecording(ctx context.Context, h transport.PageHandle) error {
	page, err := t.page(h)
	if err != nil {
		return err
	}
	_, err = eval(page.Context(ctx), jsRecorderInstall)
	return err
}

// DrainRecording returns the actions captured since the last drain. When a
// navigation wiped the hooks they are reinstalled, so the caller only sees a
// gap of at most one polling interval.
func (t *Transport) DrainRecording(ctx context.Context, h transport.PageHandle) ([]recorder.RecordedAction, error) {
	page, err := t.page(h)
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	m, err := eval(page, jsRecorderDrain)
	if err != nil {
		return nil, err
	}
	if !boolField(m, "installed") {
		if _, err := eval(page, jsRecorderInstall); err != nil {
			return nil, err
		}
	}
	return recordedActions(m), nil
}

// PageURL reports the current URL of a tracked page.
func (t *Transport) PageURL(ctx context.Context, h transport.PageHandle) (string, error) {
	page, err := t.page(h)
	if err != nil {
		return "", err
	}
	info, err := page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("%w: %v", transport.ErrPageGone, err)
	}
	return info.URL, nil
}

// recordedActions decodes the drain script's action list. Entries with an
// unknown shape are dropped.
func recordedActions(m map[string]any) []recorder.RecordedAction {
	raw, _ := m["actions"].([]any)
	out := make([]recorder.RecordedAction, 0, len(raw))
	for _, v := range raw {
		am, ok := v.(map[string]any)
		if !ok {
			continue
		}
		a := recorder.RecordedAction{
			Kind:     recorder.ActionKind(stringField(am, "kind")),
			Selector: stringField(am, "selector"),
			Value:    stringField(am, "value"),
		}
		if ms := intField(am, "at"); ms > 0 {
			a.At = time.UnixMilli(int64(ms))
		}
		out = append(out, a)
	}
	return out
}
