package playbook

import (
	"fmt"
)

// Action identifies what a step does when dispatched.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionParse    Action = "parse"
	ActionFill     Action = "fill"
	ActionClick    Action = "click"
	ActionExtract  Action = "extract" // alias of parse, kept for older playbooks
	ActionCustom   Action = "custom"
)

// IsParse reports whether the action merges scraped data into the run context.
// extract is handled identically to parse.
func (a Action) IsParse() bool {
	return a == ActionParse || a == ActionExtract
}

// Mode selects how the engine treats non-parse steps.
type Mode string

const (
	ModeAssist   Mode = "assist"
	ModeAutomate Mode = "automate"
)

// Status is the lifecycle state of a single step within a run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusAssist  Status = "assist"
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// StepParams carries the action-specific fields of a step. The engine only
// resolves {key} templates in URL and Value; everything else is forwarded
// verbatim to the target page.
type StepParams struct {
	URL        string            `yaml:"url,omitempty" json:"url,omitempty"`
	Activate   *bool             `yaml:"activate,omitempty" json:"activate,omitempty"`
	Page       string            `yaml:"page,omitempty" json:"page,omitempty"`
	URLPattern string            `yaml:"urlPattern,omitempty" json:"urlPattern,omitempty"`
	Message    string            `yaml:"message,omitempty" json:"message,omitempty"`
	Value      string            `yaml:"value,omitempty" json:"value,omitempty"`
	ButtonText string            `yaml:"buttonText,omitempty" json:"buttonText,omitempty"`
	Instruction string           `yaml:"instruction,omitempty" json:"instruction,omitempty"`
	Extra      map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// ActivateTab reports whether an opened page should be focused. Defaults to true.
func (p StepParams) ActivateTab() bool {
	return p.Activate == nil || *p.Activate
}

// Step is one unit of automation. Steps are immutable once loaded into a run;
// the engine derives resolved values at dispatch time and never writes back.
type Step struct {
	ID             string     `yaml:"id" json:"id"`
	Description    string     `yaml:"description" json:"description"`
	System         string     `yaml:"system" json:"system"`
	Action         Action     `yaml:"action" json:"action"`
	Params         StepParams `yaml:"params,omitempty" json:"params,omitempty"`
	WaitForConfirm *bool      `yaml:"waitForConfirm,omitempty" json:"waitForConfirm,omitempty"`
}

// ConfirmRequired reports whether the confirmation gate applies.
// Only an explicit false disables it.
func (s Step) ConfirmRequired() bool {
	return s.WaitForConfirm == nil || *s.WaitForConfirm
}

// Playbook is a named sequence of steps. Built-in playbooks ship with the
// application and are read-only.
type Playbook struct {
	ID      string `yaml:"id" json:"id"`
	Name    string `yaml:"name" json:"name"`
	BuiltIn bool   `yaml:"builtIn,omitempty" json:"builtIn,omitempty"`
	Steps   []Step `yaml:"steps" json:"steps"`
}

// Validate checks structural invariants: playbook name, step id presence and
// uniqueness, and that every step names a known action.
func (pb *Playbook) Validate() error {
	if pb.Name == "" {
		return fmt.Errorf("playbook is missing 'name'")
	}

	validActions := map[Action]bool{
		ActionNavigate: true,
		ActionParse:    true,
		ActionFill:     true,
		ActionClick:    true,
		ActionExtract:  true,
		ActionCustom:   true,
	}

	stepIDs := make(map[string]bool)
	for i, step := range pb.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d is missing 'id'", i)
		}
		if stepIDs[step.ID] {
			return fmt.Errorf("duplicate step id: %q", step.ID)
		}
		stepIDs[step.ID] = true

		if !validActions[step.Action] {
			return fmt.Errorf("step %q has unknown action %q", step.ID, step.Action)
		}
	}

	return nil
}

// StepResult is the per-step outcome slot. One exists per step index for the
// lifetime of a run; it is overwritten, never appended.
type StepResult struct {
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}
