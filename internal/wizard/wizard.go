// Package wizard implements the number-search flow against the DID
// marketplace. It is a bespoke orchestration rather than playbook steps: the
// number of passes depends on the input, every filter write is verified and
// retried, and results accumulate across passes into one deduplicated set.
package wizard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/teleassist/robotnik/internal/transport"
)

const (
	marketplacePattern = "did-trunk.runexis.ru"
	loginURL           = "https://did-trunk.runexis.ru/site/login"
	numbersURL         = "https://did-trunk.runexis.ru/numbers"
	ticketPattern      = "otrs.tlpn"

	// The only supported number type on the marketplace side.
	typeSimple = "Simple"
)

// CodeBoth asks for two passes, one per Moscow area code.
const CodeBoth = "both"

var moscowCodes = []string{"495", "499"}

// Input is what the operator provides before a run.
type Input struct {
	City string
	// Code is an area code, CodeBoth, or empty. Only consulted when City is
	// Moscow.
	Code string
}

// Diagnostics records one filter-application attempt for operator-facing
// status reporting. Verification mismatches land here, they are not errors.
type Diagnostics struct {
	CitySet      bool   `json:"citySet"`
	CityValue    string `json:"cityValue,omitempty"`
	CityVerified bool   `json:"cityVerified"`
	TypeSet      bool   `json:"typeSet"`
	TypeValue    string `json:"typeValue,omitempty"`
	CodeSet      bool   `json:"codeSet"`
	CodeValue    string `json:"codeValue,omitempty"`
}

// PassReport summarizes one filter→apply→collect cycle.
type PassReport struct {
	Code        string      `json:"code,omitempty"`
	Diagnostics Diagnostics `json:"diagnostics"`
	ApplyFailed bool        `json:"applyFailed,omitempty"`
	Page        int         `json:"page"`
	MaxPage     int         `json:"maxPage"`
	Collected   int         `json:"collected"`
}

// Result is the terminal outcome of a wizard run. An empty Numbers slice is
// a valid outcome, not an error.
type Result struct {
	Numbers         []string     `json:"numbers"`
	Copied          bool         `json:"copied"`
	InsertAvailable bool         `json:"insertAvailable"`
	Passes          []PassReport `json:"passes"`
}

// ResultStore persists the collected set as "the last result" so the
// operator can collect now and insert later.
type ResultStore interface {
	SaveNumbers(ctx context.Context, numbers []string) error
}

// ProgressFunc receives human-readable stage updates.
type ProgressFunc func(stage, detail string, ok bool)

// ContinueFunc blocks until the operator confirms they finished logging in.
// Credentials are never handled by this system.
type ContinueFunc func(ctx context.Context) error

// LogFunc matches the engine's observability sink shape.
type LogFunc func(system, description string, ok bool, errText string)

// Config wires the wizard's collaborators.
type Config struct {
	Transport    transport.Transport
	Store        ResultStore
	Progress     ProgressFunc
	WaitContinue ContinueFunc
	Log          LogFunc
	Logger       zerolog.Logger
	// Sleep is replaceable in tests; defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Wizard drives one number-search run. Passes share the same page and the
// same filter widgets, so they execute strictly sequentially.
type Wizard struct {
	tr           transport.Transport
	store        ResultStore
	progress     ProgressFunc
	waitContinue ContinueFunc
	logFn        LogFunc
	logger       zerolog.Logger
	sleep        func(time.Duration)

	page transport.PageHandle
}

// New constructs a wizard.
func New(cfg Config) *Wizard {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	return &Wizard{
		tr:           cfg.Transport,
		store:        cfg.Store,
		progress:     cfg.Progress,
		waitContinue: cfg.WaitContinue,
		logFn:        cfg.Log,
		logger:       cfg.Logger,
		sleep:        sleep,
	}
}

// Run executes the full search. Errors returned here are wizard-level: the
// target page could not be reached at all. Per-sub-step failures are
// recorded in the pass reports and the run continues.
func (w *Wizard) Run(ctx context.Context, in Input) (*Result, error) {
	city := strings.TrimSpace(in.City)
	if city == "" {
		return nil, fmt.Errorf("city is required")
	}

	w.log("Runexis", fmt.Sprintf("Search started: %s", city), true, "")

	if err := w.openMarketplace(ctx); err != nil {
		w.log("Runexis", "Could not open the marketplace page", false, err.Error())
		return nil, err
	}

	if err := w.ensureAuthenticated(ctx); err != nil {
		w.log("Runexis", "Authentication check failed", false, err.Error())
		return nil, err
	}

	w.report("Opening the numbers page", "", true)
	if err := w.tr.NavigatePage(ctx, w.page, numbersURL); err != nil {
		w.log("Runexis", "Could not open the numbers page", false, err.Error())
		return nil, fmt.Errorf("navigating to the numbers page: %w", err)
	}
	_ = w.tr.WaitForLoad(ctx, w.page, 10*time.Second)

	result := &Result{}
	collected := NewNumberSet()

	for _, code := range w.passCodes(city, in.Code) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report := w.runPass(ctx, city, code, collected)
		result.Passes = append(result.Passes, report)
	}

	result.Numbers = collected.Numbers()
	if len(result.Numbers) == 0 {
		// Expected terminal outcome, not an exception.
		w.report("No numbers found", "", true)
		w.log("Runexis", fmt.Sprintf("No numbers found for %s", city), true, "")
		return result, nil
	}

	w.deliver(ctx, result)
	w.log("Runexis", fmt.Sprintf("Collected %d numbers for %s", len(result.Numbers), city), true, "")
	return result, nil
}

// openMarketplace reuses an open marketplace page when one exists and still
// focuses; otherwise it opens the login URL fresh.
func (w *Wizard) openMarketplace(ctx context.Context) error {
	w.report("Opening the marketplace", "", true)

	handle, err := w.tr.FindPage(ctx, marketplacePattern)
	if err == nil {
		if actErr := w.tr.ActivatePage(ctx, handle); actErr == nil {
			w.page = handle
			w.report("Marketplace page found", "reusing open page", true)
			return nil
		}
		// The page is gone; fall through and open a fresh one.
		w.logger.Debug().Str("handle", string(handle)).Msg("Stale marketplace page, opening fresh")
	}

	handle, err = w.tr.OpenPage(ctx, loginURL, true)
	if err != nil {
		return fmt.Errorf("opening the marketplace: %w", err)
	}
	w.page = handle
	w.report("Marketplace page opened", "new page", true)
	return nil
}

// ensureAuthenticated waits for the page to load and pauses for a manual
// login when the marketplace shows its login form. No credential entry is
// ever attempted.
func (w *Wizard) ensureAuthenticated(ctx context.Context) error {
	w.report("Checking authentication", "", true)
	_ = w.tr.WaitForLoad(ctx, w.page, 8*time.Second)

	resp, err := w.tr.CallPage(ctx, w.page, transport.CheckAuthRequest{})
	if err != nil {
		return fmt.Errorf("authentication check: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("authentication check: %s", respText(resp, "page did not answer"))
	}

	if resp.IsLoginPage {
		w.report("Manual login required", "log in, then continue", true)
		if w.waitContinue == nil {
			return fmt.Errorf("login required but no continue hook is wired")
		}
		if err := w.waitContinue(ctx); err != nil {
			return err
		}
		_ = w.tr.WaitForLoad(ctx, w.page, 5*time.Second)
	}
	w.report("Authenticated", "", true)
	return nil
}

// passCodes determines the pass list: both Moscow codes, one chosen code, or
// a single pass with no code for every other city.
func (w *Wizard) passCodes(city, code string) []string {
	if !isMoscow(city) {
		return []string{""}
	}
	if code == CodeBoth {
		return append([]string(nil), moscowCodes...)
	}
	return []string{code}
}

// runPass is one filter→apply→collect cycle. Sub-step failures are recorded
// on the report; a pass that collects nothing is acceptable.
func (w *Wizard) runPass(ctx context.Context, city, code string, collected *NumberSet) PassReport {
	report := PassReport{Code: code, Page: 1}
	label := ""
	if code != "" {
		label = fmt.Sprintf(" (code %s)", code)
	}

	// Stale selections from a previous pass must not leak into this one.
	w.report("Clearing filters"+label, "", true)
	if resp, err := w.tr.CallPage(ctx, w.page, transport.ClearFiltersRequest{}); err != nil || !resp.OK {
		w.report("Clearing filters"+label, "widgets not cleared", false)
	}
	w.sleep(500 * time.Millisecond)

	report.Diagnostics = w.setFilters(ctx, city, code, label)

	w.report("Applying filters"+label, "", true)
	w.sleep(700 * time.Millisecond)
	if resp, err := w.tr.CallPage(ctx, w.page, transport.ApplyFiltersRequest{}); err != nil || !resp.OK {
		// Keep going: collection will simply report zero results.
		report.ApplyFailed = true
		w.report("Applying filters"+label, "submit control not found", false)
	}
	_ = w.tr.WaitForLoad(ctx, w.page, 10*time.Second)
	w.sleep(time.Second)

	report.Page, report.MaxPage = w.selectResultsPage(ctx, label)

	w.report("Collecting numbers"+label, "", true)
	resp, err := w.tr.CallPage(ctx, w.page, transport.CollectNumbersRequest{})
	if err != nil || !resp.OK {
		w.report("Collecting numbers"+label, "page did not answer", false)
		return report
	}
	before := collected.Len()
	for _, raw := range resp.Numbers {
		collected.AddRaw(raw)
	}
	report.Collected = collected.Len() - before
	w.report("Collecting numbers"+label, fmt.Sprintf("%d numbers on page %d", report.Collected, report.Page), true)
	return report
}

// setFilters sets city (verified, one retry), type (always Simple) and the
// optional code. A mismatch after the retry is accepted and reported in the
// diagnostics so the pass can still proceed.
func (w *Wizard) setFilters(ctx context.Context, city, code, label string) Diagnostics {
	var d Diagnostics

	w.report("Setting filters"+label, "", true)

	d.CitySet, d.CityValue = w.setFilter(ctx, transport.FilterCity, city)
	d.CityVerified = containsFold(d.CityValue, city)
	if !d.CityVerified {
		// Exactly one bounded retry after re-clearing.
		if resp, err := w.tr.CallPage(ctx, w.page, transport.ClearFiltersRequest{}); err == nil && resp.OK {
			w.sleep(500 * time.Millisecond)
		}
		d.CitySet, d.CityValue = w.setFilter(ctx, transport.FilterCity, city)
		d.CityVerified = containsFold(d.CityValue, city)
	}

	d.TypeSet, d.TypeValue = w.setFilter(ctx, transport.FilterType, typeSimple)

	if code != "" {
		d.CodeSet, d.CodeValue = w.setFilter(ctx, transport.FilterCode, code)
	}

	detail := fmt.Sprintf("city: %s, type: %s", orWord(d.CityValue, "unset"), orWord(d.TypeValue, "unset"))
	if code != "" {
		detail += fmt.Sprintf(", code: %s", orWord(d.CodeValue, "unset"))
	}
	w.report("Setting filters"+label, detail, d.CitySet)
	return d
}

func (w *Wizard) setFilter(ctx context.Context, field transport.FilterField, value string) (bool, string) {
	resp, err := w.tr.CallPage(ctx, w.page, transport.SetFilterRequest{Field: field, Value: value})
	if err != nil || !resp.OK {
		return false, ""
	}
	return true, resp.Value
}

// selectResultsPage prefers page 2 over page 1 when it exists; page 1 is
// reserved stock in the marketplace. Falls back to page 1 when navigation
// fails.
func (w *Wizard) selectResultsPage(ctx context.Context, label string) (page, maxPage int) {
	page, maxPage = 1, 1

	info, err := w.tr.CallPage(ctx, w.page, transport.PaginationInfoRequest{})
	if err != nil || !info.OK {
		w.report("Reading pagination"+label, "pagination not readable, staying on page 1", false)
		return page, maxPage
	}
	maxPage = info.MaxPage
	if maxPage < 2 {
		return page, maxPage
	}

	resp, err := w.tr.CallPage(ctx, w.page, transport.GoToPageRequest{Page: 2})
	if err != nil || !resp.OK {
		w.report("Selecting page 2"+label, "navigation failed, staying on page 1", false)
		return page, maxPage
	}
	_ = w.tr.WaitForLoad(ctx, w.page, 8*time.Second)
	w.sleep(800 * time.Millisecond)
	page = 2
	w.report("Selecting page 2"+label, fmt.Sprintf("page 2 of %d", maxPage), true)
	return page, maxPage
}

// deliver persists the result, proxies the clipboard write through the
// marketplace page, and checks whether a ticket editor can take a direct
// insertion. Clipboard failure is survivable: the caller shows the text for
// manual copying.
func (w *Wizard) deliver(ctx context.Context, result *Result) {
	if w.store != nil {
		if err := w.store.SaveNumbers(ctx, result.Numbers); err != nil {
			w.logger.Warn().Err(err).Msg("Could not persist the collected numbers")
		}
	}

	text := strings.Join(result.Numbers, "\n")
	if err := w.tr.WriteClipboard(ctx, w.page, text); err != nil {
		w.report("Copying to clipboard", "clipboard unavailable, use the result text", false)
	} else {
		result.Copied = true
		w.report("Copying to clipboard", fmt.Sprintf("%d numbers copied", len(result.Numbers)), true)
	}

	result.InsertAvailable = w.editorAvailable(ctx)
}

// editorAvailable checks for an open ticket compose/note editor.
func (w *Wizard) editorAvailable(ctx context.Context) bool {
	handle, err := w.tr.FindPage(ctx, ticketPattern)
	if err != nil {
		return false
	}
	resp, err := w.tr.CallPage(ctx, handle, transport.CheckEditorRequest{})
	return err == nil && resp.OK && resp.Available
}

// InsertIntoTicket places text into the open ticket editor. On failure the
// text is re-copied through the marketplace page as a fallback.
func (w *Wizard) InsertIntoTicket(ctx context.Context, text string) error {
	handle, err := w.tr.FindPage(ctx, ticketPattern)
	if err != nil {
		w.clipboardFallback(ctx, text)
		return fmt.Errorf("ticket page not found: %w", err)
	}

	resp, err := w.tr.CallPage(ctx, handle, transport.InsertNoteRequest{Text: text})
	if err != nil {
		w.clipboardFallback(ctx, text)
		return fmt.Errorf("inserting into the ticket: %w", err)
	}
	if !resp.OK {
		w.clipboardFallback(ctx, text)
		return fmt.Errorf("inserting into the ticket: %s", respText(resp, "editor not found"))
	}

	w.log("Runexis", "Numbers inserted into the ticket", true, "")
	return nil
}

func (w *Wizard) clipboardFallback(ctx context.Context, text string) {
	if w.page == "" {
		return
	}
	if err := w.tr.WriteClipboard(ctx, w.page, text); err == nil {
		w.report("Copying to clipboard", "ticket editor unavailable, copied instead", true)
	}
}

func (w *Wizard) report(stage, detail string, ok bool) {
	if w.progress != nil {
		w.progress(stage, detail, ok)
	}
}

func (w *Wizard) log(system, description string, ok bool, errText string) {
	if w.logFn != nil {
		w.logFn(system, description, ok, errText)
	}
}

func isMoscow(city string) bool {
	return strings.EqualFold(city, "moscow") || strings.EqualFold(city, "москва")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func orWord(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func respText(resp *transport.PageResponse, fallback string) string {
	if resp != nil && resp.Error != "" {
		return resp.Error
	}
	return fallback
}
