// Package transport defines the capability interface the engine and the
// numbers wizard use to talk to collaborator pages. Implementations live in
// subpackages (CDP via rod, websocket bridge to a companion extension); the
// core never assumes anything about selectors or page structure beyond the
// ok/data response contract.
package transport

import (
	"context"
	"errors"
	"time"
)

// PageHandle identifies an open collaborator page. Opaque to callers.
type PageHandle string

// Errors shared by all implementations. A timeout or an unreachable target is
// reported the same way as an explicit not-ok response so callers need only
// one failure path.
var (
	ErrNoTargetPage = errors.New("no page matches the requested pattern")
	ErrPageGone     = errors.New("target page is gone")
	ErrTimeout      = errors.New("page call timed out")
)

// PageRequest is the tagged-variant request sent to a page. Each concrete
// type carries exactly the fields its kind needs, so implementations can
// switch on the type exhaustively.
type PageRequest interface {
	// RequestKind is the wire tag for this request.
	RequestKind() string
}

// ParseRequest asks the page's scraper to extract its structured fields.
type ParseRequest struct {
	Message string
}

// FillRequest asks the page to put Value into the field its Message names.
// Implementations send the value under both a generic "value" key and the
// legacy "lineNumber" alias, since collaborator pages disagree on the shape.
type FillRequest struct {
	Message string
	Value   string
	Extra   map[string]string
}

// ClickRequest asks the page to press the control its Message names.
type ClickRequest struct {
	Message string
	Extra   map[string]string
}

// FilterField selects which search filter a SetFilterRequest targets.
type FilterField string

const (
	FilterCity FilterField = "city"
	FilterType FilterField = "type"
	FilterCode FilterField = "code"
)

// CheckAuthRequest asks whether the page is currently a login page.
type CheckAuthRequest struct{}

// ClearFiltersRequest clears all search filter widgets. Idempotent; widgets
// that are absent are ignored.
type ClearFiltersRequest struct{}

// SetFilterRequest sets one filter widget and returns the read-back value.
type SetFilterRequest struct {
	Field FilterField
	Value string
}

// ApplyFiltersRequest presses the page's search/apply control.
type ApplyFiltersRequest struct{}

// PaginationInfoRequest reads the pagination widget.
type PaginationInfoRequest struct{}

// GoToPageRequest navigates the result list to the given page number.
type GoToPageRequest struct {
	Page int
}

// CollectNumbersRequest scans the page for candidate phone number texts.
// Returned candidates are raw; normalization happens in the wizard.
type CollectNumbersRequest struct{}

// CheckEditorRequest asks whether a ticket compose/note editor is open.
type CheckEditorRequest struct{}

// InsertNoteRequest inserts text into the open ticket editor.
type InsertNoteRequest struct {
	Text string
}

func (ParseRequest) RequestKind() string          { return "parse" }
func (FillRequest) RequestKind() string           { return "fill" }
func (ClickRequest) RequestKind() string          { return "click" }
func (CheckAuthRequest) RequestKind() string      { return "checkAuth" }
func (ClearFiltersRequest) RequestKind() string   { return "clearFilters" }
func (SetFilterRequest) RequestKind() string      { return "setFilter" }
func (ApplyFiltersRequest) RequestKind() string   { return "applyFilters" }
func (PaginationInfoRequest) RequestKind() string { return "paginationInfo" }
func (GoToPageRequest) RequestKind() string       { return "goToPage" }
func (CollectNumbersRequest) RequestKind() string { return "collectNumbers" }
func (CheckEditorRequest) RequestKind() string    { return "checkEditor" }
func (InsertNoteRequest) RequestKind() string     { return "insertNote" }

// PageResponse is the uniform reply envelope. OK=false always carries a
// human-readable Error; the payload fields are populated per request kind.
type PageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`

	Data        map[string]any `json:"data,omitempty"`        // parse
	Value       string         `json:"value,omitempty"`       // setFilter read-back
	IsLoginPage bool           `json:"isLoginPage,omitempty"` // checkAuth
	CurrentPage int            `json:"currentPage,omitempty"` // paginationInfo
	MaxPage     int            `json:"maxPage,omitempty"`     // paginationInfo
	Numbers     []string       `json:"numbers,omitempty"`     // collectNumbers
	Available   bool           `json:"available,omitempty"`   // checkEditor
}

// Transport is the remote operation capability the core depends on.
type Transport interface {
	// OpenPage opens a page at url, focusing it when activate is set.
	OpenPage(ctx context.Context, url string, activate bool) (PageHandle, error)

	// FindPage returns a handle to an open page whose URL contains pattern.
	// Returns ErrNoTargetPage when nothing matches.
	FindPage(ctx context.Context, pattern string) (PageHandle, error)

	// ActivatePage focuses an open page. Failing to focus means the page is
	// gone and callers should open a fresh one.
	ActivatePage(ctx context.Context, h PageHandle) error

	// NavigatePage points an open page at a new URL.
	NavigatePage(ctx context.Context, h PageHandle, url string) error

	// WaitForLoad blocks until the page finishes loading or timeout elapses.
	WaitForLoad(ctx context.Context, h PageHandle, timeout time.Duration) error

	// CallPage sends one request to the page and awaits its response.
	CallPage(ctx context.Context, h PageHandle, req PageRequest) (*PageResponse, error)

	// WriteClipboard writes text to the system clipboard from the page's own
	// script context. Clipboard calls made from the automation UI itself are
	// rejected when that window lacks document focus.
	WriteClipboard(ctx context.Context, h PageHandle, text string) error
}
