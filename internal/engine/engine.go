// Package engine implements the playbook step sequencer. It walks a loaded
// playbook one step at a time, branching on the operating mode, asking for
// per-step confirmation, dispatching actions through the transport and
// folding parsed data back into the run context. Failures never escape a
// step: they become StepResult values, and a failed automated step downgrades
// the whole run to assist mode.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/teleassist/robotnik/internal/playbook"
	"github.com/teleassist/robotnik/internal/transport"
)

// ConfirmFunc is injected by the presentation layer; it asks the operator
// whether a step may proceed.
type ConfirmFunc func(ctx context.Context, description string) (bool, error)

// UpdateFunc receives step status transitions for UI display.
type UpdateFunc func(index int, status playbook.Status, payload any)

// FallbackFunc is notified when a failed automated step silently switches
// the run to assist mode.
type FallbackFunc func(index int, reason string)

// LogFunc is the fire-and-forget observability sink: one line per step
// outcome with the affected system, the human description, and any error.
type LogFunc func(system, description string, ok bool, errText string)

// AssistData is what the engine surfaces instead of acting when a step is
// handled in assist mode: a link to open, a value to paste, a button label.
type AssistData struct {
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
	CopyValue   string `json:"copyValue,omitempty"`
	Label       string `json:"label,omitempty"`
}

// Config wires the engine's collaborators. Transport is required; the
// callbacks may be nil.
type Config struct {
	Transport  transport.Transport
	Confirm    ConfirmFunc
	OnUpdate   UpdateFunc
	OnFallback FallbackFunc
	Log        LogFunc
	Logger     zerolog.Logger
}

// Engine holds the state of one playbook run. It is owned by a single
// operator session; methods are not safe for concurrent use and the run
// model is strictly sequential anyway.
type Engine struct {
	tr         transport.Transport
	confirm    ConfirmFunc
	onUpdate   UpdateFunc
	onFallback FallbackFunc
	logFn      LogFunc
	logger     zerolog.Logger

	mode      playbook.Mode
	pb        *playbook.Playbook
	stepIndex int
	context   playbook.Context
	results   []playbook.StepResult
}

// New constructs an engine in assist mode with no playbook loaded.
func New(cfg Config) *Engine {
	return &Engine{
		tr:         cfg.Transport,
		confirm:    cfg.Confirm,
		onUpdate:   cfg.OnUpdate,
		onFallback: cfg.OnFallback,
		logFn:      cfg.Log,
		logger:     cfg.Logger,
		mode:       playbook.ModeAssist,
		stepIndex:  -1,
	}
}

// SetMode switches the operating mode. Mode is read fresh at every dispatch
// decision, so a change takes effect from the next executed step.
func (e *Engine) SetMode(mode playbook.Mode) {
	e.mode = mode
}

// Mode returns the current operating mode.
func (e *Engine) Mode() playbook.Mode {
	return e.mode
}

// LoadPlaybook starts a fresh run: step index reset, empty context, one
// pending result slot per step. Callers may seed the context with known
// facts before the first RunNext.
func (e *Engine) LoadPlaybook(pb *playbook.Playbook) {
	e.pb = pb
	e.stepIndex = -1
	e.context = playbook.NewContext()
	e.results = make([]playbook.StepResult, len(pb.Steps))
	for i := range e.results {
		e.results[i] = playbook.StepResult{Status: playbook.StatusPending}
	}
}

// SeedContext merges known facts (e.g. ticket fields) into the run context
// before execution starts.
func (e *Engine) SeedContext(data map[string]any) {
	if e.context == nil {
		e.context = playbook.NewContext()
	}
	e.context.Merge(data)
}

// RunNext advances to the next step and executes it. The second return is
// false once the run has walked past the last step; calling again keeps
// reporting done without re-executing anything.
func (e *Engine) RunNext(ctx context.Context) (*playbook.StepResult, bool) {
	if e.pb == nil {
		return nil, false
	}
	if e.stepIndex+1 >= len(e.pb.Steps) {
		e.stepIndex = len(e.pb.Steps)
		return nil, false
	}
	e.stepIndex++
	step := e.pb.Steps[e.stepIndex]
	res := e.executeStep(ctx, e.stepIndex, step)
	return res, true
}

// RunAll drives RunNext until the playbook is exhausted or ctx is cancelled.
// Step failures do not stop the run; cancellation does.
func (e *Engine) RunAll(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, more := e.RunNext(ctx); !more {
			return nil
		}
	}
}

// executeStep runs the per-step state machine. It never returns an error:
// every failure is caught at this boundary and recorded on the result slot.
func (e *Engine) executeStep(ctx context.Context, index int, step playbook.Step) *playbook.StepResult {
	// Assist branch: for anything that would mutate a page, only surface
	// what to do. No transport call, no confirmation, no context change.
	if e.mode == playbook.ModeAssist && !step.Action.IsParse() {
		data := e.buildAssistData(step)
		e.setResult(index, playbook.StepResult{Status: playbook.StatusAssist, Data: data})
		e.notify(index, playbook.StatusAssist, data)
		e.log(step.System, step.Description, true, "")
		return &e.results[index]
	}

	// Confirmation gate.
	if step.ConfirmRequired() && e.confirm != nil {
		confirmed, err := e.confirm(ctx, step.Description)
		if err != nil || !confirmed {
			e.setResult(index, playbook.StepResult{Status: playbook.StatusSkipped})
			e.notify(index, playbook.StatusSkipped, nil)
			return &e.results[index]
		}
	}

	e.notify(index, playbook.StatusRunning, nil)

	data, err := e.dispatch(ctx, step)
	if err != nil {
		e.setResult(index, playbook.StepResult{Status: playbook.StatusError, Error: err.Error()})
		e.notify(index, playbook.StatusError, err.Error())
		e.log(step.System, step.Description, false, err.Error())

		// A failed automated action means the page no longer matches the
		// expected shape; hand control back to the human for the rest of
		// the run instead of mutating the wrong thing.
		if e.mode == playbook.ModeAutomate {
			e.mode = playbook.ModeAssist
			e.logger.Warn().Int("step", index).Str("reason", err.Error()).
				Msg("Automate step failed, downgrading run to assist mode")
			if e.onFallback != nil {
				e.onFallback(index, err.Error())
			}
		}
		return &e.results[index]
	}

	e.setResult(index, playbook.StepResult{Status: playbook.StatusDone, Data: data})
	e.notify(index, playbook.StatusDone, data)
	e.log(step.System, step.Description, true, "")
	return &e.results[index]
}

// dispatch performs the step's action against the transport and returns the
// result payload.
func (e *Engine) dispatch(ctx context.Context, step playbook.Step) (any, error) {
	switch step.Action {
	case playbook.ActionNavigate:
		url := e.context.Resolve(step.Params.URL)
		handle, err := e.tr.OpenPage(ctx, url, step.Params.ActivateTab())
		if err != nil {
			return nil, err
		}
		return map[string]any{"handle": string(handle), "url": url}, nil

	case playbook.ActionParse, playbook.ActionExtract:
		handle, err := e.resolveTarget(ctx, step)
		if err != nil {
			return nil, err
		}
		resp, err := e.tr.CallPage(ctx, handle, transport.ParseRequest{Message: step.Params.Message})
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, respError(resp, "page reported a parse failure")
		}
		e.context.Merge(resp.Data)
		return resp.Data, nil

	case playbook.ActionFill:
		handle, err := e.resolveTarget(ctx, step)
		if err != nil {
			return nil, err
		}
		value := e.context.Resolve(step.Params.Value)
		resp, err := e.tr.CallPage(ctx, handle, transport.FillRequest{
			Message: step.Params.Message,
			Value:   value,
			Extra:   step.Params.Extra,
		})
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, respError(resp, "page reported a fill failure")
		}
		return map[string]any{"value": value}, nil

	case playbook.ActionClick:
		handle, err := e.resolveTarget(ctx, step)
		if err != nil {
			return nil, err
		}
		resp, err := e.tr.CallPage(ctx, handle, transport.ClickRequest{
			Message: step.Params.Message,
			Extra:   step.Params.Extra,
		})
		if err != nil {
			return nil, err
		}
		if !resp.OK {
			return nil, respError(resp, "page reported a click failure")
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unrecognized action: %s", step.Action)
	}
}

// resolveTarget picks the page a step addresses: an explicit handle wins,
// otherwise the first open page matching the URL pattern.
func (e *Engine) resolveTarget(ctx context.Context, step playbook.Step) (transport.PageHandle, error) {
	if step.Params.Page != "" {
		return transport.PageHandle(step.Params.Page), nil
	}
	handle, err := e.tr.FindPage(ctx, step.Params.URLPattern)
	if err != nil {
		return "", fmt.Errorf("page not found for %q: %w", step.Params.URLPattern, err)
	}
	return handle, nil
}

// buildAssistData resolves the step's templates against the context and
// shapes the "here is what to do" payload per action kind.
func (e *Engine) buildAssistData(step playbook.Step) AssistData {
	data := AssistData{Description: step.Description}

	switch step.Action {
	case playbook.ActionNavigate:
		data.Link = e.context.Resolve(step.Params.URL)
		data.Label = fmt.Sprintf("Open: %s", step.System)
	case playbook.ActionFill:
		data.CopyValue = e.context.Resolve(step.Params.Value)
		data.Label = fmt.Sprintf("Paste: %s", data.CopyValue)
	case playbook.ActionClick:
		label := step.Params.ButtonText
		if label == "" {
			label = step.Description
		}
		data.Label = fmt.Sprintf("Press: %s", label)
	case playbook.ActionCustom:
		if step.Params.Instruction != "" {
			data.Label = e.context.Resolve(step.Params.Instruction)
		}
	}

	return data
}

// Snapshot is a point-in-time view of the run. Context and results are
// copies; mutating them does not affect the engine.
type Snapshot struct {
	Mode        playbook.Mode         `json:"mode"`
	Playbook    string                `json:"playbook,omitempty"`
	CurrentStep int                   `json:"currentStep"`
	TotalSteps  int                   `json:"totalSteps"`
	Context     playbook.Context      `json:"context"`
	Results     []playbook.StepResult `json:"results"`
}

// Status reports the current run state.
func (e *Engine) Status() Snapshot {
	snap := Snapshot{
		Mode:        e.mode,
		CurrentStep: e.stepIndex,
	}
	if e.pb != nil {
		snap.Playbook = e.pb.Name
		snap.TotalSteps = len(e.pb.Steps)
	}
	if e.context != nil {
		snap.Context = e.context.Clone()
	}
	snap.Results = make([]playbook.StepResult, len(e.results))
	copy(snap.Results, e.results)
	return snap
}

// Context returns a copy of the accumulated run facts.
func (e *Engine) Context() playbook.Context {
	if e.context == nil {
		return playbook.NewContext()
	}
	return e.context.Clone()
}

func (e *Engine) setResult(index int, res playbook.StepResult) {
	e.results[index] = res
}

func (e *Engine) notify(index int, status playbook.Status, payload any) {
	if e.onUpdate != nil {
		e.onUpdate(index, status, payload)
	}
}

func (e *Engine) log(system, description string, ok bool, errText string) {
	if e.logFn != nil {
		e.logFn(system, description, ok, errText)
	}
}

func respError(resp *transport.PageResponse, fallback string) error {
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	return fmt.Errorf("%s", fallback)
}
