package transport

import (
	"testing"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
)

func TestSessionManagerRegister(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager()
	conn := &websocket.Conn{}

	sm.Register("visitor", "s1", conn)

	assert.Same(t, conn, sm.Active("visitor", "s1"))
	assert.Equal(t, 1, sm.Count())
}

func TestSessionManagerUnregister(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager()
	conn := &websocket.Conn{}

	sm.Register("visitor", "s1", conn)
	sm.Unregister("visitor", "s1", conn)

	assert.Nil(t, sm.Active("visitor", "s1"))
	assert.Zero(t, sm.Count())
}

func TestSessionManagerKeepsOtherTabs(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager()
	first := &websocket.Conn{}
	second := &websocket.Conn{}

	sm.Register("visitor", "s1", first)
	sm.Register("visitor", "s2", second)
	sm.Unregister("visitor", "s1", first)

	assert.Same(t, second, sm.Active("visitor", "s2"))
	assert.Equal(t, 1, sm.Count())
}

func TestSessionManagerIgnoresStaleUnregister(t *testing.T) {
	t.Parallel()

	sm := NewSessionManager()
	current := &websocket.Conn{}

	sm.Register("visitor", "s1", current)
	sm.Unregister("visitor", "s1", &websocket.Conn{})

	assert.Same(t, current, sm.Active("visitor", "s1"))
}

func TestSessionManagerCloseAllEmpty(t *testing.T) {
	t.Parallel()

	assert.Zero(t, NewSessionManager().CloseAll("shutdown"))
}
