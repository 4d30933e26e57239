package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/ashureev/mindprobe/internal/identity"
	"github.com/ashureev/mindprobe/internal/protocol"
	"github.com/ashureev/mindprobe/internal/store"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
)

const (
	// DefaultMaxMessageBytes bounds a single inbound frame.
	DefaultMaxMessageBytes = 8192
	outcomeTimeout         = 5 * time.Second
	frameBuffer            = 8
)

// ErrBinaryFrame is returned when the peer sends a non-text frame.
var ErrBinaryFrame = errors.New("binary frames are not supported")

// Recorder receives connection lifecycle measurements.
type Recorder interface {
	SessionStarted()
	SessionFinished(phase domain.Phase, choice string)
}

// Config configures the WebSocket handler.
type Config struct {
	AllowedOrigin   string
	IsDev           bool
	MaxMessageBytes int64
}

// WebSocketHandler upgrades requests and runs one protocol session per connection.
type WebSocketHandler struct {
	deps     protocol.Deps
	repo     store.Repository
	sm       *SessionManager
	recorder Recorder
	cfg      Config
}

// NewWebSocketHandler creates a handler. deps are shared by every session.
func NewWebSocketHandler(deps protocol.Deps, repo store.Repository, sm *SessionManager, recorder Recorder, cfg Config) *WebSocketHandler {
	if repo == nil {
		repo = store.Noop{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	return &WebSocketHandler{
		deps:     deps,
		repo:     repo,
		sm:       sm,
		recorder: recorder,
		cfg:      cfg,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	visitorID := identity.VisitorIDFromContext(r.Context())
	sessionID := uuid.NewString()
	logger := h.deps.Logger.With("visitor_id", visitorID)
	logger.Info("WebSocket connection request", "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("Failed to accept WebSocket", "error", err)
		return
	}
	ws.SetReadLimit(h.cfg.MaxMessageBytes)

	h.sm.Register(visitorID, sessionID, ws)
	defer h.sm.Unregister(visitorID, sessionID, ws)
	h.recorder.SessionStarted()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn := newWSConn(ws)
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		conn.pump(ctx, cancel)
	}()

	deps := h.deps
	deps.Logger = logger
	sess := protocol.NewSession(sessionID, conn, deps)
	runErr := sess.Run(ctx)

	status, reason := closeStatus(runErr)
	if status != -1 {
		if err := ws.Close(status, reason); err != nil {
			logger.Debug("Failed to close websocket", "error", err, "session_id", sessionID)
		}
	}
	cancel()
	<-pumpDone

	outcome := sess.Outcome()
	outcome.VisitorID = visitorID
	h.recorder.SessionFinished(outcome.FinalPhase, outcome.Choice)
	h.recordOutcome(outcome, logger)

	if runErr != nil && !errors.Is(runErr, protocol.ErrTransport) {
		logger.Error("Session failed", "error", runErr, "session_id", sessionID)
		return
	}
	logger.Info("Session ended",
		"session_id", sessionID,
		"phase", outcome.FinalPhase,
		"choice", outcome.Choice,
		"duration", outcome.Duration())
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "*" || origin == h.cfg.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

// recordOutcome runs detached from the request context, which is already done
// when the peer disconnected.
func (h *WebSocketHandler) recordOutcome(o domain.SessionOutcome, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), outcomeTimeout)
	defer cancel()
	if err := h.repo.RecordOutcome(ctx, o); err != nil {
		logger.Warn("Failed to record session outcome", "error", err, "session_id", o.SessionID)
	}
}

// closeStatus maps the session result to a close frame. -1 means the
// connection is already closed.
func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil:
		return websocket.StatusNormalClosure, "session complete"
	case websocket.CloseStatus(err) != -1:
		return -1, ""
	case errors.Is(err, ErrBinaryFrame):
		return websocket.StatusUnsupportedData, "text frames only"
	case errors.Is(err, protocol.ErrTransport):
		return websocket.StatusGoingAway, "connection lost"
	default:
		return websocket.StatusInternalError, "internal error"
	}
}

// wsConn adapts a websocket connection to protocol.Transport. A pump
// goroutine keeps reading so control frames are handled while the protocol
// is busy; the protocol remains the only writer.
type wsConn struct {
	ws     *websocket.Conn
	frames chan []byte

	mu  sync.Mutex
	err error
}

var _ protocol.Transport = (*wsConn)(nil)

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws, frames: make(chan []byte, frameBuffer)}
}

// pump forwards text frames until the connection fails, then cancels the
// session context.
func (c *wsConn) pump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	defer close(c.frames)
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by peer", "status", websocket.CloseStatus(err))
			}
			c.fail(err)
			return
		}
		if typ != websocket.MessageText {
			c.fail(ErrBinaryFrame)
			return
		}
		select {
		case c.frames <- data:
		case <-ctx.Done():
			c.fail(ctx.Err())
			return
		}
	}
}

func (c *wsConn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *wsConn) failure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Receive returns the next text frame.
func (c *wsConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.frames:
		if !ok {
			return nil, c.failure()
		}
		return data, nil
	case <-ctx.Done():
		if err := c.failure(); err != nil {
			return nil, err
		}
		return nil, ctx.Err()
	}
}

// Send writes msg as a JSON text frame.
func (c *wsConn) Send(ctx context.Context, msg any) error {
	if err := wsjson.Write(ctx, c.ws, msg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()                      {}
func (nopRecorder) SessionFinished(domain.Phase, string) {}
