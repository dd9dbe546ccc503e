// Package recorder captures a manual browser session as a sequence of raw
// actions and folds it into a replayable playbook.
package recorder

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teleassist/robotnik/internal/playbook"
)

// ActionKind classifies one captured interaction.
type ActionKind string

const (
	ActionNavigate ActionKind = "navigate"
	ActionClick    ActionKind = "click"
	ActionInput    ActionKind = "input"
)

// RecordedAction is one raw interaction as reported by the capture source.
type RecordedAction struct {
	Kind     ActionKind `json:"kind"`
	Selector string     `json:"selector,omitempty"`
	Value    string     `json:"value,omitempty"`
	URL      string     `json:"url,omitempty"`
	At       time.Time  `json:"at"`
}

var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrEmptyRecording   = errors.New("recording captured no actions")
)

// Recorder accumulates actions between Start and Stop. Safe for concurrent
// use; actions reported while no recording is active are dropped.
type Recorder struct {
	logger zerolog.Logger

	mu      sync.Mutex
	active  bool
	name    string
	actions []RecordedAction
}

func New(logger zerolog.Logger) *Recorder {
	return &Recorder{logger: logger}
}

// Start begins a new recording.
func (r *Recorder) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrAlreadyRecording
	}
	if name == "" {
		name = "Recorded " + time.Now().Format("2006-01-02 15:04")
	}
	r.active = true
	r.name = name
	r.actions = nil
	r.logger.Info().Str("name", name).Msg("recording started")
	return nil
}

// Record appends one action to the active recording.
func (r *Recorder) Record(a RecordedAction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	r.actions = append(r.actions, a)
}

// Recording reports whether a recording is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Stop ends the recording and folds the captured actions into a playbook.
func (r *Recorder) Stop() (*playbook.Playbook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return nil, ErrNotRecording
	}
	r.active = false

	steps := Fold(r.actions)
	if len(steps) == 0 {
		return nil, ErrEmptyRecording
	}

	pb := &playbook.Playbook{
		ID:    uuid.New().String(),
		Name:  r.name,
		Steps: steps,
	}
	r.logger.Info().Str("name", r.name).Int("steps", len(steps)).Msg("recording stopped")
	return pb, nil
}

// Fold turns raw actions into playbook steps. Consecutive inputs into the
// same field collapse to the final value, and repeated navigations to the
// same URL are dropped.
func Fold(actions []RecordedAction) []playbook.Step {
	var folded []RecordedAction
	for _, a := range actions {
		if len(folded) > 0 {
			prev := &folded[len(folded)-1]
			if a.Kind == ActionInput && prev.Kind == ActionInput && prev.Selector == a.Selector {
				prev.Value = a.Value
				continue
			}
			if a.Kind == ActionNavigate && prev.Kind == ActionNavigate && prev.URL == a.URL {
				continue
			}
		}
		folded = append(folded, a)
	}

	steps := make([]playbook.Step, 0, len(folded))
	for i, a := range folded {
		step := playbook.Step{ID: fmt.Sprintf("step_%d", i+1)}
		switch a.Kind {
		case ActionNavigate:
			step.Action = playbook.ActionNavigate
			step.Description = "Open " + a.URL
			step.Params.URL = a.URL
		case ActionInput:
			step.Action = playbook.ActionFill
			step.Description = "Fill " + describeSelector(a.Selector)
			step.Params.Value = a.Value
			step.Params.Extra = map[string]string{"selector": a.Selector}
		case ActionClick:
			step.Action = playbook.ActionClick
			step.Description = "Click " + describeSelector(a.Selector)
			step.Params.Extra = map[string]string{"selector": a.Selector}
		default:
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

func describeSelector(sel string) string {
	if sel == "" {
		return "element"
	}
	sel = strings.TrimPrefix(sel, "#")
	if i := strings.IndexAny(sel, " >["); i > 0 {
		sel = sel[:i]
	}
	return sel
}
