package wizard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teleassist/robotnik/internal/transport"
)

// marketTransport simulates the marketplace and the ticket page for wizard
// runs. Behavior knobs cover the scenarios under test.
type marketTransport struct {
	havePage      bool
	loginPage     bool
	cityReadbacks []string // successive city filter read-backs; last repeats
	cityCalls     int
	clearCalls    int
	maxPage       int
	goToPageFails bool
	wentToPage    int
	numbersByCode map[string][]string
	currentCode   string
	clipboard     []string
	editorOpen    bool
	inserted      []string
	calls         []string
}

func newMarketTransport() *marketTransport {
	return &marketTransport{
		havePage:      true,
		cityReadbacks: []string{"Москва"},
		maxPage:       1,
		numbersByCode: map[string][]string{},
	}
}

func (m *marketTransport) OpenPage(_ context.Context, url string, activate bool) (transport.PageHandle, error) {
	m.calls = append(m.calls, "open:"+url)
	return "market", nil
}

func (m *marketTransport) FindPage(_ context.Context, pattern string) (transport.PageHandle, error) {
	m.calls = append(m.calls, "find:"+pattern)
	switch pattern {
	case marketplacePattern:
		if m.havePage {
			return "market", nil
		}
	case ticketPattern:
		if m.editorOpen {
			return "ticket", nil
		}
	}
	return "", transport.ErrNoTargetPage
}

func (m *marketTransport) ActivatePage(_ context.Context, h transport.PageHandle) error {
	m.calls = append(m.calls, "activate")
	return nil
}

func (m *marketTransport) NavigatePage(_ context.Context, h transport.PageHandle, url string) error {
	m.calls = append(m.calls, "navigate:"+url)
	return nil
}

func (m *marketTransport) WaitForLoad(_ context.Context, h transport.PageHandle, timeout time.Duration) error {
	return nil
}

func (m *marketTransport) CallPage(_ context.Context, h transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
	m.calls = append(m.calls, "call:"+req.RequestKind())
	switch req := req.(type) {
	case transport.CheckAuthRequest:
		return &transport.PageResponse{OK: true, IsLoginPage: m.loginPage}, nil
	case transport.ClearFiltersRequest:
		m.clearCalls++
		return &transport.PageResponse{OK: true}, nil
	case transport.SetFilterRequest:
		switch req.Field {
		case transport.FilterCity:
			idx := m.cityCalls
			if idx >= len(m.cityReadbacks) {
				idx = len(m.cityReadbacks) - 1
			}
			m.cityCalls++
			return &transport.PageResponse{OK: true, Value: m.cityReadbacks[idx]}, nil
		case transport.FilterType:
			return &transport.PageResponse{OK: true, Value: req.Value}, nil
		case transport.FilterCode:
			m.currentCode = req.Value
			return &transport.PageResponse{OK: true, Value: req.Value}, nil
		}
		return &transport.PageResponse{OK: false, Error: "unknown field"}, nil
	case transport.ApplyFiltersRequest:
		return &transport.PageResponse{OK: true}, nil
	case transport.PaginationInfoRequest:
		return &transport.PageResponse{OK: true, CurrentPage: 1, MaxPage: m.maxPage}, nil
	case transport.GoToPageRequest:
		if m.goToPageFails {
			return &transport.PageResponse{OK: false, Error: "pagination link not found"}, nil
		}
		m.wentToPage = req.Page
		return &transport.PageResponse{OK: true}, nil
	case transport.CollectNumbersRequest:
		return &transport.PageResponse{OK: true, Numbers: m.numbersByCode[m.currentCode]}, nil
	case transport.CheckEditorRequest:
		return &transport.PageResponse{OK: true, Available: m.editorOpen}, nil
	case transport.InsertNoteRequest:
		m.inserted = append(m.inserted, req.Text)
		return &transport.PageResponse{OK: true}, nil
	}
	return nil, fmt.Errorf("unexpected request %q", req.RequestKind())
}

func (m *marketTransport) WriteClipboard(_ context.Context, h transport.PageHandle, text string) error {
	m.clipboard = append(m.clipboard, text)
	return nil
}

type fakeResultStore struct {
	saved [][]string
}

func (f *fakeResultStore) SaveNumbers(_ context.Context, numbers []string) error {
	f.saved = append(f.saved, numbers)
	return nil
}

func newTestWizard(tr *marketTransport, st ResultStore) *Wizard {
	return New(Config{
		Transport: tr,
		Store:     st,
		Logger:    zerolog.Nop(),
		Sleep:     func(time.Duration) {},
	})
}

func TestMoscowBothRunsTwoPasses(t *testing.T) {
	tr := newMarketTransport()
	tr.numbersByCode["495"] = []string{"+7 495 111-22-33", "8 (495) 111-22-33", "4952223344"}
	tr.numbersByCode["499"] = []string{"8 499 333-44-55", "74951112233"}
	st := &fakeResultStore{}

	result, err := newTestWizard(tr, st).Run(context.Background(), Input{City: "Москва", Code: CodeBoth})
	require.NoError(t, err)

	require.Len(t, result.Passes, 2)
	assert.Equal(t, "495", result.Passes[0].Code)
	assert.Equal(t, "499", result.Passes[1].Code)

	// Duplicates collapse across formats and passes.
	assert.Equal(t, []string{"74951112233", "74952223344", "74993334455"}, result.Numbers)
	assert.Equal(t, 2, result.Passes[0].Collected)
	assert.Equal(t, 1, result.Passes[1].Collected)

	require.Len(t, st.saved, 1)
	assert.Equal(t, result.Numbers, st.saved[0])
	require.Len(t, tr.clipboard, 1)
	assert.True(t, result.Copied)
}

func TestSingleCodePassForMoscow(t *testing.T) {
	tr := newMarketTransport()
	tr.numbersByCode["499"] = []string{"74991112233"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "moscow", Code: "499"})
	require.NoError(t, err)

	require.Len(t, result.Passes, 1)
	assert.Equal(t, "499", result.Passes[0].Code)
	assert.True(t, result.Passes[0].Diagnostics.CodeSet)
}

func TestOtherCityIgnoresCode(t *testing.T) {
	tr := newMarketTransport()
	tr.cityReadbacks = []string{"Казань"}
	tr.numbersByCode[""] = []string{"78431112233"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань", Code: CodeBoth})
	require.NoError(t, err)

	require.Len(t, result.Passes, 1)
	assert.Empty(t, result.Passes[0].Code)
	assert.False(t, result.Passes[0].Diagnostics.CodeSet)
	assert.Equal(t, []string{"78431112233"}, result.Numbers)
}

func TestPageTwoIsPreferred(t *testing.T) {
	tr := newMarketTransport()
	tr.maxPage = 3
	tr.numbersByCode[""] = []string{"78431112233"}
	tr.cityReadbacks = []string{"Казань"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)

	assert.Equal(t, 2, tr.wentToPage)
	assert.Equal(t, 2, result.Passes[0].Page)
	assert.Equal(t, 3, result.Passes[0].MaxPage)
}

func TestPageTwoFailureStaysOnPageOne(t *testing.T) {
	tr := newMarketTransport()
	tr.maxPage = 2
	tr.goToPageFails = true
	tr.numbersByCode[""] = []string{"78431112233"}
	tr.cityReadbacks = []string{"Казань"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Passes[0].Page)
	assert.Equal(t, []string{"78431112233"}, result.Numbers)
}

func TestSinglePageSkipsPagination(t *testing.T) {
	tr := newMarketTransport()
	tr.maxPage = 1
	tr.numbersByCode[""] = []string{"78431112233"}
	tr.cityReadbacks = []string{"Казань"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)

	assert.Zero(t, tr.wentToPage)
	assert.Equal(t, 1, result.Passes[0].Page)
}

func TestCityMismatchRetriesOnce(t *testing.T) {
	tr := newMarketTransport()
	tr.cityReadbacks = []string{"Московская область только", "Казань"}
	tr.numbersByCode[""] = []string{"78431112233"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)

	assert.Equal(t, 2, tr.cityCalls)
	// Pass-opening clear plus the re-clear before the retry.
	assert.Equal(t, 2, tr.clearCalls)
	d := result.Passes[0].Diagnostics
	assert.True(t, d.CityVerified)
	assert.Equal(t, "Казань", d.CityValue)
}

func TestCityMismatchAcceptedAfterRetry(t *testing.T) {
	tr := newMarketTransport()
	tr.cityReadbacks = []string{"Москва", "Москва"}
	tr.numbersByCode[""] = []string{"78431112233"}

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)

	// Exactly one retry; the mismatch is reported, not fatal.
	assert.Equal(t, 2, tr.cityCalls)
	assert.False(t, result.Passes[0].Diagnostics.CityVerified)
	assert.Equal(t, []string{"78431112233"}, result.Numbers)
}

func TestEmptyResultIsATerminalOutcome(t *testing.T) {
	tr := newMarketTransport()
	tr.cityReadbacks = []string{"Казань"}
	st := &fakeResultStore{}

	result, err := newTestWizard(tr, st).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)

	assert.Empty(t, result.Numbers)
	assert.False(t, result.Copied)
	assert.Empty(t, st.saved)
	assert.Empty(t, tr.clipboard)
}

func TestMissingCityIsRejected(t *testing.T) {
	tr := newMarketTransport()
	_, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "   "})
	require.Error(t, err)
	assert.Empty(t, tr.calls)
}

func TestStalePageOpensFresh(t *testing.T) {
	tr := newMarketTransport()
	tr.havePage = false
	tr.cityReadbacks = []string{"Казань"}
	tr.numbersByCode[""] = []string{"78431112233"}

	_, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)
	assert.Contains(t, tr.calls, "open:"+loginURL)
}

func TestLoginPausesForTheOperator(t *testing.T) {
	tr := newMarketTransport()
	tr.loginPage = true
	tr.cityReadbacks = []string{"Казань"}
	tr.numbersByCode[""] = []string{"78431112233"}

	continued := false
	wiz := New(Config{
		Transport: tr,
		Store:     &fakeResultStore{},
		Logger:    zerolog.Nop(),
		Sleep:     func(time.Duration) {},
		WaitContinue: func(ctx context.Context) error {
			continued = true
			tr.loginPage = false
			return nil
		},
	})

	result, err := wiz.Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)
	assert.True(t, continued)
	assert.Equal(t, []string{"78431112233"}, result.Numbers)
}

func TestLoginWithoutContinueHookFails(t *testing.T) {
	tr := newMarketTransport()
	tr.loginPage = true

	_, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login required")
}

func TestEditorAvailabilityReported(t *testing.T) {
	tr := newMarketTransport()
	tr.cityReadbacks = []string{"Казань"}
	tr.numbersByCode[""] = []string{"78431112233"}
	tr.editorOpen = true

	result, err := newTestWizard(tr, &fakeResultStore{}).Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)
	assert.True(t, result.InsertAvailable)
}

func TestInsertIntoTicket(t *testing.T) {
	tr := newMarketTransport()
	tr.editorOpen = true
	wiz := newTestWizard(tr, &fakeResultStore{})

	require.NoError(t, wiz.InsertIntoTicket(context.Background(), "74951112233\n74952223344"))
	require.Len(t, tr.inserted, 1)
	assert.Equal(t, "74951112233\n74952223344", tr.inserted[0])
}

func TestInsertFallsBackToClipboard(t *testing.T) {
	tr := newMarketTransport()
	tr.cityReadbacks = []string{"Казань"}
	tr.numbersByCode[""] = []string{"78431112233"}
	wiz := newTestWizard(tr, &fakeResultStore{})

	// Run first so the wizard owns a marketplace page for the fallback copy.
	_, err := wiz.Run(context.Background(), Input{City: "Казань"})
	require.NoError(t, err)
	copiesBefore := len(tr.clipboard)

	err = wiz.InsertIntoTicket(context.Background(), "78431112233")
	require.Error(t, err)
	assert.Len(t, tr.clipboard, copiesBefore+1)
}
