package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleassist/robotnik/internal/playbook"
	"github.com/teleassist/robotnik/internal/transport"
)

// fakeTransport records every call and answers from configurable hooks.
type fakeTransport struct {
	calls []string

	onOpen func(url string, activate bool) (transport.PageHandle, error)
	onFind func(pattern string) (transport.PageHandle, error)
	onCall func(h transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		onOpen: func(url string, activate bool) (transport.PageHandle, error) {
			return "tab-1", nil
		},
		onFind: func(pattern string) (transport.PageHandle, error) {
			return "tab-1", nil
		},
		onCall: func(h transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
			return &transport.PageResponse{OK: true}, nil
		},
	}
}

func (f *fakeTransport) OpenPage(_ context.Context, url string, activate bool) (transport.PageHandle, error) {
	f.calls = append(f.calls, "open:"+url)
	return f.onOpen(url, activate)
}

func (f *fakeTransport) FindPage(_ context.Context, pattern string) (transport.PageHandle, error) {
	f.calls = append(f.calls, "find:"+pattern)
	return f.onFind(pattern)
}

func (f *fakeTransport) ActivatePage(_ context.Context, h transport.PageHandle) error {
	f.calls = append(f.calls, "activate")
	return nil
}

func (f *fakeTransport) NavigatePage(_ context.Context, h transport.PageHandle, url string) error {
	f.calls = append(f.calls, "navigate:"+url)
	return nil
}

func (f *fakeTransport) WaitForLoad(_ context.Context, h transport.PageHandle, timeout time.Duration) error {
	f.calls = append(f.calls, "wait")
	return nil
}

func (f *fakeTransport) CallPage(_ context.Context, h transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
	f.calls = append(f.calls, "call:"+req.RequestKind())
	return f.onCall(h, req)
}

func (f *fakeTransport) WriteClipboard(_ context.Context, h transport.PageHandle, text string) error {
	f.calls = append(f.calls, "clipboard")
	return nil
}

type update struct {
	index  int
	status playbook.Status
}

type harness struct {
	tr        *fakeTransport
	eng       *Engine
	updates   []update
	fallbacks []int
	confirm   func(description string) bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		tr:      newFakeTransport(),
		confirm: func(string) bool { return true },
	}
	h.eng = New(Config{
		Transport: h.tr,
		Confirm: func(ctx context.Context, description string) (bool, error) {
			return h.confirm(description), nil
		},
		OnUpdate: func(index int, status playbook.Status, payload any) {
			h.updates = append(h.updates, update{index, status})
		},
		OnFallback: func(index int, reason string) {
			h.fallbacks = append(h.fallbacks, index)
		},
		Logger: zerolog.Nop(),
	})
	return h
}

func (h *harness) updatesFor(index int) []playbook.Status {
	var out []playbook.Status
	for _, u := range h.updates {
		if u.index == index {
			out = append(out, u.status)
		}
	}
	return out
}

func clickStep(id string) playbook.Step {
	return playbook.Step{
		ID: id, Description: "Press the button", System: "Accounting",
		Action: playbook.ActionClick,
		Params: playbook.StepParams{URLPattern: "acc.example", ButtonText: "Create"},
	}
}

func TestAssistModeNeverTouchesPages(t *testing.T) {
	h := newHarness(t)
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "X",
		Steps: []playbook.Step{
			{ID: "nav", Description: "Open the card", System: "Accounting",
				Action: playbook.ActionNavigate,
				Params: playbook.StepParams{URL: "https://acc.example/{clientCode}"}},
			{ID: "fill", Description: "Enter the line", System: "Support",
				Action: playbook.ActionFill,
				Params: playbook.StepParams{Value: "{lineNumber}", URLPattern: "support"}},
			clickStep("click"),
		},
	})
	h.eng.SeedContext(map[string]any{"clientCode": "42", "lineNumber": "74951112233"})

	require.NoError(t, h.eng.RunAll(context.Background()))

	assert.Empty(t, h.tr.calls)
	snap := h.eng.Status()
	for i, res := range snap.Results {
		assert.Equal(t, playbook.StatusAssist, res.Status, "step %d", i)
		// Exactly one notification per assist step.
		assert.Equal(t, []playbook.Status{playbook.StatusAssist}, h.updatesFor(i))
	}

	nav, ok := snap.Results[0].Data.(AssistData)
	require.True(t, ok)
	assert.Equal(t, "https://acc.example/42", nav.Link)

	fill := snap.Results[1].Data.(AssistData)
	assert.Equal(t, "74951112233", fill.CopyValue)
}

func TestParseRunsEvenInAssistMode(t *testing.T) {
	h := newHarness(t)
	h.tr.onCall = func(_ transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
		parse, ok := req.(transport.ParseRequest)
		require.True(t, ok)
		assert.Equal(t, "PARSE_OTRS", parse.Message)
		return &transport.PageResponse{OK: true, Data: map[string]any{"clientCode": "4521"}}, nil
	}
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "X",
		Steps: []playbook.Step{
			{ID: "parse", Description: "Read the ticket", System: "OTRS",
				Action: playbook.ActionParse,
				Params: playbook.StepParams{Message: "PARSE_OTRS", URLPattern: "otrs.tlpn"}},
		},
	})

	require.NoError(t, h.eng.RunAll(context.Background()))

	assert.Equal(t, []string{"find:otrs.tlpn", "call:parse"}, h.tr.calls)
	assert.Equal(t, "4521", h.eng.Context()["clientCode"])
	assert.Equal(t,
		[]playbook.Status{playbook.StatusRunning, playbook.StatusDone},
		h.updatesFor(0))
}

func TestExtractBehavesLikeParse(t *testing.T) {
	h := newHarness(t)
	h.tr.onCall = func(_ transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
		return &transport.PageResponse{OK: true, Data: map[string]any{"atcPlan": "Basic"}}, nil
	}
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "X",
		Steps: []playbook.Step{
			{ID: "show", Description: "Show services", System: "Accounting",
				Action: playbook.ActionExtract,
				Params: playbook.StepParams{Message: "PARSE_ACCOUNTING", URLPattern: "acc"}},
		},
	})

	require.NoError(t, h.eng.RunAll(context.Background()))
	assert.Equal(t, "Basic", h.eng.Context()["atcPlan"])
}

func TestAutomateDowngradeIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.tr.onCall = func(_ transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
		return &transport.PageResponse{OK: false, Error: "button is gone"}, nil
	}
	h.eng.SetMode(playbook.ModeAutomate)
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name:  "X",
		Steps: []playbook.Step{clickStep("a"), clickStep("b"), clickStep("c")},
	})

	require.NoError(t, h.eng.RunAll(context.Background()))

	snap := h.eng.Status()
	assert.Equal(t, playbook.ModeAssist, snap.Mode)
	assert.Equal(t, playbook.StatusError, snap.Results[0].Status)
	assert.Equal(t, "button is gone", snap.Results[0].Error)

	// The failed step downgrades the run; later steps surface assist data
	// without touching the page.
	assert.Equal(t, playbook.StatusAssist, snap.Results[1].Status)
	assert.Equal(t, playbook.StatusAssist, snap.Results[2].Status)
	assert.Len(t, h.tr.calls, 2) // find + call for the first step only

	assert.Equal(t, []int{0}, h.fallbacks)
	assert.Equal(t,
		[]playbook.Status{playbook.StatusRunning, playbook.StatusError},
		h.updatesFor(0))
	assert.Equal(t, []playbook.Status{playbook.StatusAssist}, h.updatesFor(1))
}

func TestDeclinedConfirmationSkips(t *testing.T) {
	h := newHarness(t)
	h.confirm = func(string) bool { return false }
	h.eng.SetMode(playbook.ModeAutomate)
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name:  "X",
		Steps: []playbook.Step{clickStep("a")},
	})
	h.eng.SeedContext(map[string]any{"clientCode": "42"})
	before := h.eng.Context()

	require.NoError(t, h.eng.RunAll(context.Background()))

	snap := h.eng.Status()
	assert.Equal(t, playbook.StatusSkipped, snap.Results[0].Status)
	assert.Empty(t, h.tr.calls)
	assert.Equal(t, before, h.eng.Context())
	assert.Equal(t, []playbook.Status{playbook.StatusSkipped}, h.updatesFor(0))
	// A skip does not downgrade the mode.
	assert.Equal(t, playbook.ModeAutomate, snap.Mode)
}

func TestConfirmSkippedWhenDisabled(t *testing.T) {
	h := newHarness(t)
	confirmAsked := false
	h.confirm = func(string) bool { confirmAsked = true; return true }
	h.eng.SetMode(playbook.ModeAutomate)

	off := false
	step := clickStep("a")
	step.WaitForConfirm = &off
	h.eng.LoadPlaybook(&playbook.Playbook{Name: "X", Steps: []playbook.Step{step}})

	require.NoError(t, h.eng.RunAll(context.Background()))
	assert.False(t, confirmAsked)
	assert.Equal(t, playbook.StatusDone, h.eng.Status().Results[0].Status)
}

func TestCustomActionFailsInAutomate(t *testing.T) {
	h := newHarness(t)
	h.eng.SetMode(playbook.ModeAutomate)
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "X",
		Steps: []playbook.Step{
			{ID: "custom", Description: "Set pending state", System: "OTRS",
				Action: playbook.ActionCustom,
				Params: playbook.StepParams{Instruction: "Set the pending reminder manually"}},
		},
	})

	require.NoError(t, h.eng.RunAll(context.Background()))

	snap := h.eng.Status()
	assert.Equal(t, playbook.StatusError, snap.Results[0].Status)
	assert.Contains(t, snap.Results[0].Error, "unrecognized action")
	assert.Equal(t, playbook.ModeAssist, snap.Mode)
}

func TestCustomActionSurfacesInstructionInAssist(t *testing.T) {
	h := newHarness(t)
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "X",
		Steps: []playbook.Step{
			{ID: "custom", Description: "Set pending state", System: "OTRS",
				Action: playbook.ActionCustom,
				Params: playbook.StepParams{Instruction: "Remind client {clientCode}"}},
		},
	})
	h.eng.SeedContext(map[string]any{"clientCode": "42"})

	require.NoError(t, h.eng.RunAll(context.Background()))

	data := h.eng.Status().Results[0].Data.(AssistData)
	assert.Equal(t, "Remind client 42", data.Label)
	assert.Empty(t, h.tr.calls)
}

func TestRunNextIsIdempotentAfterTheEnd(t *testing.T) {
	h := newHarness(t)
	h.eng.LoadPlaybook(&playbook.Playbook{Name: "X", Steps: []playbook.Step{clickStep("a")}})

	_, more := h.eng.RunNext(context.Background())
	assert.True(t, more)

	for i := 0; i < 3; i++ {
		res, more := h.eng.RunNext(context.Background())
		assert.Nil(t, res)
		assert.False(t, more)
	}
	assert.Len(t, h.updatesFor(0), 1) // only the original assist notification
}

func TestExplicitPageHandleSkipsLookup(t *testing.T) {
	h := newHarness(t)
	h.eng.SetMode(playbook.ModeAutomate)
	var gotHandle transport.PageHandle
	h.tr.onCall = func(handle transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
		gotHandle = handle
		return &transport.PageResponse{OK: true}, nil
	}

	step := clickStep("a")
	step.Params.Page = "tab-7"
	h.eng.LoadPlaybook(&playbook.Playbook{Name: "X", Steps: []playbook.Step{step}})

	require.NoError(t, h.eng.RunAll(context.Background()))
	assert.Equal(t, transport.PageHandle("tab-7"), gotHandle)
	assert.Equal(t, []string{"call:click"}, h.tr.calls)
}

func TestScenarioFlowInAutomate(t *testing.T) {
	h := newHarness(t)
	h.eng.SetMode(playbook.ModeAutomate)

	var filled string
	h.tr.onCall = func(_ transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
		switch req := req.(type) {
		case transport.ParseRequest:
			return &transport.PageResponse{OK: true, Data: map[string]any{
				"clientCode": "4521", "lineNumber": "74950001122",
			}}, nil
		case transport.FillRequest:
			filled = req.Value
			return &transport.PageResponse{OK: true}, nil
		default:
			return &transport.PageResponse{OK: true}, nil
		}
	}

	var openedURL string
	h.tr.onOpen = func(url string, activate bool) (transport.PageHandle, error) {
		openedURL = url
		return "tab-2", nil
	}

	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "Connect",
		Steps: []playbook.Step{
			{ID: "parse", Description: "Read the ticket", System: "OTRS",
				Action: playbook.ActionParse,
				Params: playbook.StepParams{Message: "PARSE_OTRS", URLPattern: "otrs"}},
			{ID: "open", Description: "Open the card", System: "Accounting",
				Action: playbook.ActionNavigate,
				Params: playbook.StepParams{URL: "https://acc.example/c/{clientCode}"}},
			{ID: "fill", Description: "Enter the line", System: "Support",
				Action: playbook.ActionFill,
				Params: playbook.StepParams{Message: "SUPPORT_SET_LINE", Value: "{lineNumber}", URLPattern: "support"}},
		},
	})

	require.NoError(t, h.eng.RunAll(context.Background()))

	snap := h.eng.Status()
	for i, res := range snap.Results {
		assert.Equal(t, playbook.StatusDone, res.Status, "step %d", i)
	}
	assert.Equal(t, "https://acc.example/c/4521", openedURL)
	assert.Equal(t, "74950001122", filled)
	assert.Equal(t, playbook.ModeAutomate, snap.Mode)
}

func TestParseFailureReportsPageError(t *testing.T) {
	h := newHarness(t)
	h.tr.onCall = func(_ transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
		return &transport.PageResponse{OK: false, Error: "no ticket data on the page"}, nil
	}
	h.eng.LoadPlaybook(&playbook.Playbook{
		Name: "X",
		Steps: []playbook.Step{
			{ID: "parse", Description: "Read the ticket", System: "OTRS",
				Action: playbook.ActionParse,
				Params: playbook.StepParams{Message: "PARSE_OTRS", URLPattern: "otrs"}},
		},
	})

	require.NoError(t, h.eng.RunAll(context.Background()))

	res := h.eng.Status().Results[0]
	assert.Equal(t, playbook.StatusError, res.Status)
	assert.Equal(t, "no ticket data on the page", res.Error)
	assert.Empty(t, h.eng.Context())
}

func TestMissingTargetPage(t *testing.T) {
	h := newHarness(t)
	h.eng.SetMode(playbook.ModeAutomate)
	h.tr.onFind = func(pattern string) (transport.PageHandle, error) {
		return "", fmt.Errorf("%w", transport.ErrNoTargetPage)
	}
	h.eng.LoadPlaybook(&playbook.Playbook{Name: "X", Steps: []playbook.Step{clickStep("a")}})

	require.NoError(t, h.eng.RunAll(context.Background()))

	res := h.eng.Status().Results[0]
	assert.Equal(t, playbook.StatusError, res.Status)
	assert.Contains(t, res.Error, "page not found")
}
