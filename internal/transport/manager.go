// Package transport serves conversation sessions over WebSocket.
package transport

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"
)

// SessionManager tracks open connections by visitor and session. Protocol
// logic never consults it; it exists for shutdown and the active-count gauge.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewSessionManager creates an empty registry.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// Active returns the connection registered for visitorID and sessionID, or nil.
func (m *SessionManager) Active(visitorID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Count returns the number of open connections.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// Register records conn. A visitor may hold several sessions, one per tab.
func (m *SessionManager) Register(visitorID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[visitorID]; !exists {
		m.active[visitorID] = make(map[string]*websocket.Conn)
	}
	m.active[visitorID][sessionID] = conn
	slog.Debug("Session registered", "visitor_id", visitorID, "session_id", sessionID)
}

// Unregister removes conn if it is still the one registered for the session.
func (m *SessionManager) Unregister(visitorID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, ok := m.active[visitorID]
	if !ok {
		return
	}
	if current, exists := sessions[sessionID]; exists && current == conn {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(m.active, visitorID)
		}
		slog.Debug("Session unregistered", "visitor_id", visitorID, "session_id", sessionID)
	}
}

// CloseAll closes every registered connection with StatusGoingAway and waits
// for the close handshakes. Handlers observe the failed read and unregister
// themselves.
func (m *SessionManager) CloseAll(reason string) int {
	m.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(m.active))
	for _, sessions := range m.active {
		for _, conn := range sessions {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	if len(conns) == 0 {
		return 0
	}
	slog.Info("Closing open sessions", "count", len(conns))

	var g errgroup.Group
	for _, conn := range conns {
		g.Go(func() error {
			if err := conn.Close(websocket.StatusGoingAway, reason); err != nil {
				slog.Debug("Failed to close session", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(conns)
}
