// Package rodtransport implements the page transport over the Chrome DevTools
// Protocol using rod. It attaches to a running browser (or launches one when
// no control URL is given) and drives collaborator pages by evaluating
// scripts in them.
package rodtransport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/teleassist/robotnik/internal/transport"
	"github.com/teleassist/robotnik/internal/wizard"
)

// Transport drives pages over CDP. Safe for concurrent use.
type Transport struct {
	browser *rod.Browser
	logger  zerolog.Logger

	mu    sync.Mutex
	pages map[transport.PageHandle]*rod.Page

	parsers map[string]string
}

// Connect attaches to the browser at controlURL. An empty controlURL makes
// rod launch its own browser.
func Connect(ctx context.Context, controlURL string, logger zerolog.Logger) (*Transport, error) {
	browser := rod.New().Context(ctx)
	if controlURL != "" {
		browser = browser.ControlURL(controlURL)
	}
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &Transport{
		browser: browser,
		logger:  logger,
		pages:   make(map[transport.PageHandle]*rod.Page),
		parsers: builtinParsers(),
	}, nil
}

// Close detaches from the browser.
func (t *Transport) Close() error {
	return t.browser.Close()
}

// RegisterParser binds a parse message name to a page script. The script must
// return {ok, error, data}.
func (t *Transport) RegisterParser(message, js string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parsers[message] = js
}

// OpenPage opens a new tab at url.
func (t *Transport) OpenPage(ctx context.Context, url string, activate bool) (transport.PageHandle, error) {
	page, err := t.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", url, err)
	}
	if activate {
		if _, err := page.Activate(); err != nil {
			t.logger.Warn().Err(err).Str("url", url).Msg("could not focus new page")
		}
	}
	return t.track(page), nil
}

// FindPage scans open tabs for one whose URL contains pattern.
func (t *Transport) FindPage(ctx context.Context, pattern string) (transport.PageHandle, error) {
	pages, err := t.browser.Context(ctx).Pages()
	if err != nil {
		return "", fmt.Errorf("listing pages: %w", err)
	}
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			continue
		}
		if strings.Contains(info.URL, pattern) {
			return t.track(page), nil
		}
	}
	return "", transport.ErrNoTargetPage
}

// ActivatePage focuses a tracked page.
func (t *Transport) ActivatePage(ctx context.Context, h transport.PageHandle) error {
	page, err := t.page(h)
	if err != nil {
		return err
	}
	if _, err := page.Context(ctx).Activate(); err != nil {
		return fmt.Errorf("%w: %v", transport.ErrPageGone, err)
	}
	return nil
}

// NavigatePage points a tracked page at a new URL.
func (t *Transport) NavigatePage(ctx context.Context, h transport.PageHandle, url string) error {
	page, err := t.page(h)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// WaitForLoad blocks until the page's load event or the timeout.
func (t *Transport) WaitForLoad(ctx context.Context, h transport.PageHandle, timeout time.Duration) error {
	page, err := t.page(h)
	if err != nil {
		return err
	}
	if err := page.Context(ctx).Timeout(timeout).WaitLoad(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return transport.ErrTimeout
		}
		return fmt.Errorf("waiting for load: %w", err)
	}
	return nil
}

// CallPage dispatches one request by evaluating the matching script in the
// page. Page-level failures come back as not-ok responses; protocol failures
// as errors.
func (t *Transport) CallPage(ctx context.Context, h transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
	page, err := t.page(h)
	if err != nil {
		return nil, err
	}
	page = page.Context(ctx)

	t.logger.Debug().Str("kind", req.RequestKind()).Msg("page call")

	switch req := req.(type) {
	case transport.ParseRequest:
		return t.callParse(page, req)
	case transport.FillRequest:
		return t.callFill(page, req)
	case transport.ClickRequest:
		return t.callClick(page, req)
	case transport.CheckAuthRequest:
		m, err := eval(page, jsCheckAuth)
		if err != nil {
			return nil, err
		}
		return &transport.PageResponse{OK: true, IsLoginPage: boolField(m, "isLoginPage")}, nil
	case transport.ClearFiltersRequest:
		if _, err := eval(page, jsClearFilters); err != nil {
			return nil, err
		}
		return &transport.PageResponse{OK: true}, nil
	case transport.SetFilterRequest:
		return t.callSetFilter(page, req)
	case transport.ApplyFiltersRequest:
		m, err := eval(page, jsApplyFilters)
		if err != nil {
			return nil, err
		}
		if !boolField(m, "clicked") {
			return notOK(m, "apply control not found"), nil
		}
		return &transport.PageResponse{OK: true}, nil
	case transport.PaginationInfoRequest:
		m, err := eval(page, jsPaginationInfo)
		if err != nil {
			return nil, err
		}
		return &transport.PageResponse{
			OK:          true,
			CurrentPage: intField(m, "currentPage"),
			MaxPage:     intField(m, "maxPage"),
		}, nil
	case transport.GoToPageRequest:
		m, err := eval(page, jsGoToPage, req.Page)
		if err != nil {
			return nil, err
		}
		if !boolField(m, "found") {
			return notOK(m, "pagination link not found"), nil
		}
		return &transport.PageResponse{OK: true}, nil
	case transport.CollectNumbersRequest:
		m, err := eval(page, jsCollectNumbers)
		if err != nil {
			return nil, err
		}
		return &transport.PageResponse{OK: true, Numbers: stringsField(m, "numbers")}, nil
	case transport.CheckEditorRequest:
		m, err := eval(page, jsCheckEditor)
		if err != nil {
			return nil, err
		}
		return &transport.PageResponse{OK: true, Available: boolField(m, "available")}, nil
	case transport.InsertNoteRequest:
		m, err := eval(page, jsInsertNote, req.Text)
		if err != nil {
			return nil, err
		}
		if !boolField(m, "inserted") {
			return notOK(m, "no reply editor on the page"), nil
		}
		return &transport.PageResponse{OK: true}, nil
	default:
		return nil, fmt.Errorf("unsupported request kind %q", req.RequestKind())
	}
}

// WriteClipboard copies text via the page's own clipboard API.
func (t *Transport) WriteClipboard(ctx context.Context, h transport.PageHandle, text string) error {
	page, err := t.page(h)
	if err != nil {
		return err
	}
	m, err := eval(page.Context(ctx), jsWriteClipboard, text)
	if err != nil {
		return err
	}
	if !boolField(m, "copied") {
		return fmt.Errorf("clipboard write failed: %s", stringField(m, "error"))
	}
	return nil
}

func (t *Transport) callParse(page *rod.Page, req transport.ParseRequest) (*transport.PageResponse, error) {
	t.mu.Lock()
	js, ok := t.parsers[req.Message]
	t.mu.Unlock()
	if !ok {
		return &transport.PageResponse{OK: false, Error: fmt.Sprintf("no parser for message %q", req.Message)}, nil
	}

	m, err := eval(page, js)
	if err != nil {
		return nil, err
	}
	if !boolField(m, "ok") {
		return notOK(m, "page could not be parsed"), nil
	}
	data, _ := m["data"].(map[string]any)
	return &transport.PageResponse{OK: true, Data: data}, nil
}

func (t *Transport) callFill(page *rod.Page, req transport.FillRequest) (*transport.PageResponse, error) {
	selector := req.Extra["selector"]
	if selector == "" {
		selector = defaultFillSelectors[req.Message]
	}
	if selector == "" {
		return &transport.PageResponse{OK: false, Error: fmt.Sprintf("no field selector for message %q", req.Message)}, nil
	}

	m, err := eval(page, jsFillByExtra, selector, req.Value)
	if err != nil {
		return nil, err
	}
	if !boolField(m, "filled") {
		return notOK(m, "field not found"), nil
	}
	return &transport.PageResponse{OK: true, Value: req.Value}, nil
}

func (t *Transport) callClick(page *rod.Page, req transport.ClickRequest) (*transport.PageResponse, error) {
	plan, ok := planClick(req)
	if !ok {
		return &transport.PageResponse{OK: false, Error: fmt.Sprintf("no click target for message %q", req.Message)}, nil
	}

	if plan.option != "" {
		if plan.selector == "" {
			return &transport.PageResponse{OK: false, Error: fmt.Sprintf("option %q needs a select element target", plan.option)}, nil
		}
		m, err := eval(page, jsSelectOption, plan.selector, plan.option)
		if err != nil {
			return nil, err
		}
		if !boolField(m, "selected") {
			return notOK(m, fmt.Sprintf("no option matching %q", plan.option)), nil
		}
		return &transport.PageResponse{OK: true, Value: stringField(m, "value")}, nil
	}

	m, err := eval(page, jsClickByExtra, plan.selector, plan.buttonText)
	if err != nil {
		return nil, err
	}
	if !boolField(m, "clicked") {
		return notOK(m, "control not found"), nil
	}
	return &transport.PageResponse{OK: true}, nil
}

// clickPlan is the resolved target for one click request.
type clickPlan struct {
	selector   string
	buttonText string
	option     string
}

// planClick resolves a click request against its extra fields and the built-in
// defaults. An "option" (or "queue") extra turns the click into a select-option
// commit: the option whose text or value contains it is chosen and change is
// fired, since clicking a bare select moves nothing.
func planClick(req transport.ClickRequest) (clickPlan, bool) {
	p := clickPlan{
		selector:   req.Extra["selector"],
		buttonText: req.Extra["buttonText"],
		option:     req.Extra["option"],
	}
	if p.option == "" {
		p.option = req.Extra["queue"]
	}
	if p.selector == "" && p.buttonText == "" {
		if d, ok := defaultClickTargets[req.Message]; ok {
			p.selector, p.buttonText = d.selector, d.buttonText
		}
	}
	return p, p.selector != "" || p.buttonText != ""
}

// callSetFilter runs the three-phase widget flow: type the value and fetch
// candidates, pick the candidate on the Go side, commit it and read the
// value back.
func (t *Transport) callSetFilter(page *rod.Page, req transport.SetFilterRequest) (*transport.PageResponse, error) {
	m, err := eval(page, jsSetFilter, string(req.Field), req.Value)
	if err != nil {
		return nil, err
	}

	shape := stringField(m, "shape")
	if shape == "none" {
		return &transport.PageResponse{OK: false, Error: fmt.Sprintf("no %s filter widget on the page", req.Field)}, nil
	}

	candidates := stringsField(m, "candidates")
	if len(candidates) == 0 {
		// An autocomplete input keeps the typed text even without
		// suggestions.
		if shape == "autocomplete" && stringField(m, "value") != "" {
			return &transport.PageResponse{OK: true, Value: stringField(m, "value")}, nil
		}
		return &transport.PageResponse{OK: false, Error: fmt.Sprintf("%s filter offered no options for %q", req.Field, req.Value)}, nil
	}

	idx := pickCandidate(shape, candidates, req.Value)
	if idx < 0 {
		idx = 0
	}

	m2, err := eval(page, jsChooseCandidate, string(req.Field), shape, idx)
	if err != nil {
		return nil, err
	}
	readback := stringField(m2, "value")
	if readback == "" {
		return &transport.PageResponse{OK: false, Error: fmt.Sprintf("%s filter did not take the value", req.Field)}, nil
	}
	return &transport.PageResponse{OK: true, Value: readback}, nil
}

// pickCandidate chooses which widget option to commit. Plain selects only
// accept exact or prefix matches; suggestion widgets additionally fall back
// to substring matching.
func pickCandidate(shape string, candidates []string, value string) int {
	if shape == "select" {
		needle := strings.ToLower(strings.TrimSpace(value))
		for i, c := range candidates {
			if strings.ToLower(strings.TrimSpace(c)) == needle {
				return i
			}
		}
		for i, c := range candidates {
			if strings.HasPrefix(strings.ToLower(strings.TrimSpace(c)), needle) {
				return i
			}
		}
		return -1
	}
	return wizard.BestMatch(candidates, value)
}

func (t *Transport) track(page *rod.Page) transport.PageHandle {
	h := transport.PageHandle(uuid.New().String())
	t.mu.Lock()
	t.pages[h] = page
	t.mu.Unlock()
	return h
}

func (t *Transport) page(h transport.PageHandle) (*rod.Page, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	page, ok := t.pages[h]
	if !ok {
		return nil, transport.ErrPageGone
	}
	return page, nil
}

func eval(page *rod.Page, js string, args ...any) (map[string]any, error) {
	res, err := page.Eval(js, args...)
	if err != nil {
		return nil, fmt.Errorf("evaluating page script: %w", err)
	}
	m, _ := res.Value.Val().(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func notOK(m map[string]any, fallback string) *transport.PageResponse {
	msg := stringField(m, "error")
	if msg == "" {
		msg = fallback
	}
	return &transport.PageResponse{OK: false, Error: msg}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func stringsField(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
