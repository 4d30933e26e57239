package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/ashureev/mindprobe/internal/followup"
	"github.com/ashureev/mindprobe/internal/protocol"
	"github.com/ashureev/mindprobe/internal/transport"
	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cannedFollowUps struct{}

func (cannedFollowUps) FollowUp(_ context.Context, _ []domain.Turn, _ string, turnIndex int) followup.Result {
	return followup.Result{Text: []string{"Why chess?", "Which opening?", "Who taught you?"}[turnIndex]}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestRenderFollowUp(t *testing.T) {
	t.Parallel()

	out, err := render(envelope{Type: protocol.TypeFollowUp, Question: "Why chess?", Number: 2, Total: 3})
	require.NoError(t, err)
	assert.Equal(t, "[2/3] Why chess?", out)
}

func TestRenderInteractiveChoice(t *testing.T) {
	t.Parallel()

	choice := content.Default().Script.Choice
	out, err := render(envelope{Type: protocol.TypeInteractiveChoice, Data: mustJSON(t, protocol.InteractiveChoice{
		Title:    choice.Title,
		Question: choice.Question,
		Options:  choice.Options,
	})})
	require.NoError(t, err)
	assert.Contains(t, out, choice.Question)
	assert.Contains(t, out, "reveal) ")
	assert.Contains(t, out, "skip) ")
}

func TestRenderMindReading(t *testing.T) {
	t.Parallel()

	out, err := render(envelope{Type: protocol.TypeMindReading, Data: mustJSON(t, domain.MindReading{
		Title:       "Mind reading",
		Predictions: []string{"You re-read messages", "You hate small talk"},
	})})
	require.NoError(t, err)
	assert.Contains(t, out, "  - You re-read messages")
	assert.Contains(t, out, "  - You hate small talk")
}

func TestRenderRejectsBadPayload(t *testing.T) {
	t.Parallel()

	_, err := render(envelope{Type: protocol.TypeFinale, Data: json.RawMessage(`"nope"`)})
	require.Error(t, err)
}

func TestRenderUnknownType(t *testing.T) {
	t.Parallel()

	out, err := render(envelope{Type: "hologram"})
	require.NoError(t, err)
	assert.Contains(t, out, "hologram")
}

func TestParseChoice(t *testing.T) {
	t.Parallel()

	assert.Equal(t, domain.ChoiceReveal, parseChoice(""))
	assert.Equal(t, domain.ChoiceReveal, parseChoice("Yes"))
	assert.Equal(t, domain.ChoiceSkip, parseChoice("skip"))
	assert.Equal(t, domain.ChoiceSkip, parseChoice("nah"))
}

func TestConverseAgainstServer(t *testing.T) {
	t.Parallel()

	h := transport.NewWebSocketHandler(protocol.Deps{FollowUps: cannedFollowUps{}}, nil,
		transport.NewSessionManager(), nil, transport.Config{IsDev: true})
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer func() { _ = conn.CloseNow() }()

	in := strings.NewReader("\nI play chess every night\nThe Sicilian\nMy grandfather\nIt feels like home\nskip\n")
	var out bytes.Buffer
	require.NoError(t, converse(ctx, conn, in, &out))

	tables := content.Default()
	transcript := out.String()
	assert.Contains(t, transcript, "! "+tables.Script.Errors.EmptyInput)
	assert.Contains(t, transcript, "[1/3] Why chess?")
	assert.Contains(t, transcript, "[3/3] Who taught you?")
	assert.Contains(t, transcript, tables.Script.Complete)
	assert.Contains(t, transcript, tables.Script.Ending.Message)
}
