// Package wsbridge implements the page transport over a websocket to a
// companion browser extension. The extension connects in, owns the tabs, and
// answers one JSON request per message; the bridge correlates replies by id.
package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/teleassist/robotnik/internal/transport"
)

// DefaultCallTimeout bounds a single request/response exchange with the
// extension.
const DefaultCallTimeout = 30 * time.Second

// ErrNotConnected means no extension session is currently attached.
var ErrNotConnected = errors.New("no extension connected to the bridge")

// Bridge is an http.Handler accepting one extension session at a time and a
// transport.Transport forwarding every operation to it. Page handles are
// assigned by the extension (tab ids) and passed through opaquely.
type Bridge struct {
	logger      zerolog.Logger
	callTimeout time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan wireResponse
}

// NewBridge returns a bridge with no session attached yet.
func NewBridge(logger zerolog.Logger) *Bridge {
	return &Bridge{
		logger:      logger,
		callTimeout: DefaultCallTimeout,
		pending:     make(map[string]chan wireResponse),
	}
}

// Connected reports whether an extension session is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// ServeHTTP upgrades the request to a websocket session. A new session
// replaces the previous one.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // extension origins are chrome-extension://
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}

	b.mu.Lock()
	if b.conn != nil {
		b.conn.Close(websocket.StatusGoingAway, "replaced by a new session")
	}
	b.conn = conn
	b.mu.Unlock()

	b.logger.Info().Str("remote", r.RemoteAddr).Msg("extension connected")
	b.readLoop(r.Context(), conn)

	b.mu.Lock()
	if b.conn == conn {
		b.conn = nil
	}
	b.mu.Unlock()
	b.logger.Info().Msg("extension disconnected")
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var resp wireResponse
		if err := wsjson.Read(ctx, conn, &resp); err != nil {
			return
		}

		b.mu.Lock()
		ch, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()

		if !ok {
			b.logger.Warn().Str("id", resp.ID).Msg("reply without a pending request")
			continue
		}
		ch <- resp
	}
}

// OpenPage asks the extension to open a tab.
func (b *Bridge) OpenPage(ctx context.Context, url string, activate bool) (transport.PageHandle, error) {
	resp, err := b.roundTrip(ctx, wireRequest{Op: "openPage", URL: url, Activate: activate})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", fmt.Errorf("opening %s: %s", url, resp.Error)
	}
	return transport.PageHandle(resp.Handle), nil
}

// FindPage asks the extension for an open tab whose URL contains pattern.
func (b *Bridge) FindPage(ctx context.Context, pattern string) (transport.PageHandle, error) {
	resp, err := b.roundTrip(ctx, wireRequest{Op: "findPage", Pattern: pattern})
	if err != nil {
		return "", err
	}
	if !resp.OK {
		return "", transport.ErrNoTargetPage
	}
	return transport.PageHandle(resp.Handle), nil
}

// ActivatePage focuses a tab. A not-ok reply means the tab is gone.
func (b *Bridge) ActivatePage(ctx context.Context, h transport.PageHandle) error {
	resp, err := b.roundTrip(ctx, wireRequest{Op: "activatePage", Handle: string(h)})
	if err != nil {
		return err
	}
	if !resp.OK {
		return transport.ErrPageGone
	}
	return nil
}

// NavigatePage points a tab at a new URL.
func (b *Bridge) NavigatePage(ctx context.Context, h transport.PageHandle, url string) error {
	resp, err := b.roundTrip(ctx, wireRequest{Op: "navigatePage", Handle: string(h), URL: url})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("navigating to %s: %s", url, resp.Error)
	}
	return nil
}

// WaitForLoad asks the extension to report when the tab finishes loading.
func (b *Bridge) WaitForLoad(ctx context.Context, h transport.PageHandle, timeout time.Duration) error {
	resp, err := b.roundTripWithin(ctx, timeout+b.callTimeout, wireRequest{
		Op: "waitForLoad", Handle: string(h), TimeoutMs: timeout.Milliseconds(),
	})
	if err != nil {
		return err
	}
	if !resp.OK {
		return transport.ErrTimeout
	}
	return nil
}

// CallPage forwards one page request. A timed-out exchange is reported as a
// not-ok response so callers keep a single failure path.
func (b *Bridge) CallPage(ctx context.Context, h transport.PageHandle, req transport.PageRequest) (*transport.PageResponse, error) {
	resp, err := b.roundTrip(ctx, wireRequest{Op: "call", Handle: string(h), Call: encodeCall(req)})
	if errors.Is(err, transport.ErrTimeout) {
		return &transport.PageResponse{OK: false, Error: "page call timed out"}, nil
	}
	if err != nil {
		return nil, err
	}
	out := resp.PageResponse
	return &out, nil
}

// WriteClipboard copies text through the extension's collaborator page.
func (b *Bridge) WriteClipboard(ctx context.Context, h transport.PageHandle, text string) error {
	resp, err := b.roundTrip(ctx, wireRequest{Op: "writeClipboard", Handle: string(h), Text: text})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("clipboard write failed: %s", resp.Error)
	}
	return nil
}

func (b *Bridge) roundTrip(ctx context.Context, req wireRequest) (*wireResponse, error) {
	return b.roundTripWithin(ctx, b.callTimeout, req)
}

func (b *Bridge) roundTripWithin(ctx context.Context, timeout time.Duration, req wireRequest) (*wireResponse, error) {
	req.ID = uuid.New().String()
	ch := make(chan wireResponse, 1)

	b.mu.Lock()
	conn := b.conn
	if conn == nil {
		b.mu.Unlock()
		return nil, ErrNotConnected
	}
	b.pending[req.ID] = ch
	b.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, req); err != nil {
		b.forget(req.ID)
		return nil, fmt.Errorf("sending %s request: %w", req.Op, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return &resp, nil
	case <-timer.C:
		b.forget(req.ID)
		return nil, transport.ErrTimeout
	case <-ctx.Done():
		b.forget(req.ID)
		return nil, ctx.Err()
	}
}

func (b *Bridge) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

type wireRequest struct {
	ID        string    `json:"id"`
	Op        string    `json:"op"`
	URL       string    `json:"url,omitempty"`
	Pattern   string    `json:"pattern,omitempty"`
	Handle    string    `json:"handle,omitempty"`
	Activate  bool      `json:"activate,omitempty"`
	TimeoutMs int64     `json:"timeoutMs,omitempty"`
	Text      string    `json:"text,omitempty"`
	Call      *wireCall `json:"call,omitempty"`
}

type wireCall struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message,omitempty"`
	Value   string            `json:"value,omitempty"`
	// LineNumber mirrors Value on fill calls; older collaborator pages read
	// the value under this name.
	LineNumber string            `json:"lineNumber,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
	Field      string            `json:"field,omitempty"`
	Page       int               `json:"page,omitempty"`
	Text       string            `json:"text,omitempty"`
}

type wireResponse struct {
	ID     string `json:"id"`
	Handle string `json:"handle,omitempty"`
	transport.PageResponse
}

func encodeCall(req transport.PageRequest) *wireCall {
	call := &wireCall{Kind: req.RequestKind()}
	switch req := req.(type) {
	case transport.ParseRequest:
		call.Message = req.Message
	case transport.FillRequest:
		call.Message = req.Message
		call.Value = req.Value
		call.LineNumber = req.Value
		call.Extra = req.Extra
	case transport.ClickRequest:
		call.Message = req.Message
		call.Extra = req.Extra
	case transport.SetFilterRequest:
		call.Field = string(req.Field)
		call.Value = req.Value
	case transport.GoToPageRequest:
		call.Page = req.Page
	case transport.InsertNoteRequest:
		call.Text = req.Text
	}
	return call
}
