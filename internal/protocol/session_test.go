package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/ashureev/mindprobe/internal/followup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	inbox   chan []byte
	sendErr error
	sent    chan string

	mu       sync.Mutex
	messages []any
}

func newFakeTransport(frames ...string) *fakeTransport {
	inbox := make(chan []byte, len(frames))
	for _, f := range frames {
		inbox <- []byte(f)
	}
	close(inbox)
	return &fakeTransport{inbox: inbox, sent: make(chan string, 64)}
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw, ok := <-f.inbox:
		if !ok {
			return nil, io.EOF
		}
		return raw, nil
	}
}

func (f *fakeTransport) Send(_ context.Context, msg any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	f.sent <- typeOf(msg)
	return nil
}

func (f *fakeTransport) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, typeOf(m))
	}
	return out
}

func (f *fakeTransport) last() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		return nil
	}
	return f.messages[len(f.messages)-1]
}

func typeOf(msg any) string {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "!" + err.Error()
	}
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(raw, &head)
	return head.Type
}

type scriptedFollowUps struct {
	panics bool
}

func (s scriptedFollowUps) FollowUp(_ context.Context, history []domain.Turn, _ string, turnIndex int) followup.Result {
	if s.panics {
		panic("generator exploded")
	}
	return followup.Result{
		Text:     fmt.Sprintf("question %d after %d turns", turnIndex+1, len(history)),
		Fallback: turnIndex == 1,
		Style:    domain.StyleCuriosityOpener,
	}
}

type fixedPicker struct{}

func (fixedPicker) IntN(n int) int { return n - 1 }

type tallyRecorder struct {
	mu      sync.Mutex
	reveals []domain.Category
	errors  []string
}

func (r *tallyRecorder) RevealBuilt(c domain.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reveals = append(r.reveals, c)
}

func (r *tallyRecorder) ProtocolError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, kind)
}

func newTestSession(t *testing.T, tr Transport, deps Deps) *Session {
	t.Helper()
	if deps.FollowUps == nil {
		deps.FollowUps = scriptedFollowUps{}
	}
	if deps.Picker == nil {
		deps.Picker = fixedPicker{}
	}
	return NewSession("sess-1", tr, deps)
}

func frame(typ, field, value string) []byte {
	raw, _ := json.Marshal(map[string]string{"type": typ, field: value})
	return raw
}

var revealSequence = []string{
	TypeComplete,
	TypeThinking,
	TypeThinking,
	TypeThinking,
	TypePersonalityReveal,
	TypeMindReading,
	TypeSecretUnlock,
	TypeInteractiveChoice,
}

func answerAll(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Handle(ctx, frame(TypeInitial, "message", "I hate studying because it's pointless")))
	require.NoError(t, s.Handle(ctx, frame(TypeAnswer, "message", "Exams never test what matters to me")))
	require.NoError(t, s.Handle(ctx, frame(TypeAnswer, "message", "I would rather build a small game")))
	require.NoError(t, s.Handle(ctx, frame(TypeAnswer, "message", "Maybe I just need a reason")))
}

func TestSessionRevealPath(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	rec := &tallyRecorder{}
	s := newTestSession(t, tr, Deps{Recorder: rec})
	ctx := context.Background()

	require.Equal(t, domain.PhaseAwaitingInitial, s.Phase())

	require.NoError(t, s.Handle(ctx, frame(TypeInitial, "message", "I hate studying because it's pointless")))
	assert.Equal(t, domain.PhaseQuestioning, s.Phase())
	first, ok := tr.last().(FollowUpMessage)
	require.True(t, ok)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, domain.MaxFollowUps, first.Total)
	assert.Equal(t, "question 1 after 0 turns", first.Question)

	require.NoError(t, s.Handle(ctx, frame(TypeAnswer, "message", "Exams never test what matters")))
	require.NoError(t, s.Handle(ctx, frame(TypeAnswer, "message", "I would rather build things")))
	third, ok := tr.last().(FollowUpMessage)
	require.True(t, ok)
	assert.Equal(t, 3, third.Number)
	assert.Equal(t, "question 3 after 2 turns", third.Question)
	assert.Equal(t, domain.PhaseQuestioning, s.Phase())

	require.NoError(t, s.Handle(ctx, frame(TypeAnswer, "message", "Maybe I just need a reason")))
	assert.Equal(t, domain.PhaseAwaitingChoice, s.Phase())

	want := append([]string{TypeFollowUp, TypeFollowUp, TypeFollowUp}, revealSequence...)
	assert.Equal(t, want, tr.types())
	require.Len(t, rec.reveals, 1)
	assert.True(t, rec.reveals[0].Valid())

	require.NoError(t, s.Handle(ctx, frame(TypeChoiceResponse, "choice_id", domain.ChoiceReveal)))
	assert.Equal(t, domain.PhaseTerminated, s.Phase())

	types := tr.types()
	assert.Equal(t, []string{TypeUltimateReveal, TypeFinale}, types[len(types)-2:])

	fin, ok := tr.last().(DataMessage)
	require.True(t, ok)
	stats := fin.Data.(Finale).Stats
	assert.Equal(t, domain.MaxFollowUps, stats.QuestionsAnswered)
	assert.Equal(t, 3, stats.InsightsShared)

	out := s.Outcome()
	assert.Equal(t, "sess-1", out.SessionID)
	assert.Equal(t, domain.MaxFollowUps, out.FollowUps)
	assert.Equal(t, 1, out.Fallbacks)
	assert.Equal(t, domain.ChoiceReveal, out.Choice)
	assert.Equal(t, domain.PhaseTerminated, out.FinalPhase)
	assert.Equal(t, rec.reveals[0], out.Category)
	assert.True(t, out.Completed())
	assert.Empty(t, rec.errors)
}

func TestSessionUltimateRevealUsesStoredBundle(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	s := newTestSession(t, tr, Deps{})
	answerAll(t, s)

	require.NoError(t, s.Handle(context.Background(), frame(TypeChoiceResponse, "choice_id", domain.ChoiceReveal)))

	types := tr.types()
	require.Equal(t, TypeUltimateReveal, types[len(types)-2])

	tr.mu.Lock()
	ult := tr.messages[len(tr.messages)-2].(DataMessage).Data.(UltimateReveal)
	tr.mu.Unlock()

	bundle := s.state.Reveal()
	require.NotNil(t, bundle)
	assert.Equal(t, bundle.Persona.Name, ult.Shareable.Type)
	assert.Equal(t, bundle.HonestTake, ult.HonestTake)
	assert.Contains(t, ult.Shareable.ShareText, bundle.Persona.Name)
}

func TestSessionSkipPath(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport()
	s := newTestSession(t, tr, Deps{})
	answerAll(t, s)

	require.NoError(t, s.Handle(context.Background(), frame(TypeChoiceResponse, "choice_id", domain.ChoiceSkip)))

	assert.Equal(t, domain.PhaseTerminated, s.Phase())
	assert.Equal(t, TypeRespectfulEnding, typeOf(tr.last()))
	assert.Equal(t, domain.ChoiceSkip, s.Outcome().Choice)
}

func TestSessionRejectsWithoutStateChange(t *testing.T) {
	t.Parallel()

	tables := content.Default()
	tests := []struct {
		name     string
		prepare  func(t *testing.T, s *Session)
		frame    []byte
		phase    domain.Phase
		message  string
		kind     string
		sentType string
	}{
		{
			name:    "answer before initial",
			frame:   frame(TypeAnswer, "message", "hello"),
			phase:   domain.PhaseAwaitingInitial,
			message: tables.Script.Errors.UnknownType,
			kind:    KindUnexpected,
		},
		{
			name:    "blank initial",
			frame:   frame(TypeInitial, "message", "   "),
			phase:   domain.PhaseAwaitingInitial,
			message: tables.Script.Errors.EmptyInput,
			kind:    KindInvalidInput,
		},
		{
			name:    "malformed json",
			frame:   []byte(`{"type":`),
			phase:   domain.PhaseAwaitingInitial,
			message: tables.Script.Errors.UnknownType,
			kind:    KindMalformed,
		},
		{
			name:    "unknown type",
			frame:   frame("telepathy", "message", "hi"),
			phase:   domain.PhaseAwaitingInitial,
			message: tables.Script.Errors.UnknownType,
			kind:    KindUnknownType,
		},
		{
			name: "second initial",
			prepare: func(t *testing.T, s *Session) {
				require.NoError(t, s.Handle(context.Background(), frame(TypeInitial, "message", "first")))
			},
			frame:   frame(TypeInitial, "message", "again"),
			phase:   domain.PhaseQuestioning,
			message: tables.Script.Errors.UnknownType,
			kind:    KindUnexpected,
		},
		{
			name: "blank answer",
			prepare: func(t *testing.T, s *Session) {
				require.NoError(t, s.Handle(context.Background(), frame(TypeInitial, "message", "first")))
			},
			frame:   frame(TypeAnswer, "message", ""),
			phase:   domain.PhaseQuestioning,
			message: tables.Script.Errors.EmptyInput,
			kind:    KindInvalidInput,
		},
		{
			name: "choice while questioning",
			prepare: func(t *testing.T, s *Session) {
				require.NoError(t, s.Handle(context.Background(), frame(TypeInitial, "message", "first")))
			},
			frame:   frame(TypeChoiceResponse, "choice_id", domain.ChoiceReveal),
			phase:   domain.PhaseQuestioning,
			message: tables.Script.Errors.UnknownType,
			kind:    KindUnexpected,
		},
		{
			name:    "unknown choice",
			prepare: answerAll,
			frame:   frame(TypeChoiceResponse, "choice_id", "maybe"),
			phase:   domain.PhaseAwaitingChoice,
			message: tables.Script.Errors.UnknownType,
			kind:    KindUnknownChoice,
		},
		{
			name:    "answer while awaiting choice",
			prepare: answerAll,
			frame:   frame(TypeAnswer, "message", "one more thing"),
			phase:   domain.PhaseAwaitingChoice,
			message: tables.Script.Errors.UnknownType,
			kind:    KindUnexpected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := newFakeTransport()
			rec := &tallyRecorder{}
			s := newTestSession(t, tr, Deps{Recorder: rec})
			if tt.prepare != nil {
				tt.prepare(t, s)
			}
			followUps := s.state.FollowUpCount()

			require.NoError(t, s.Handle(context.Background(), tt.frame))

			assert.Equal(t, tt.phase, s.Phase())
			assert.Equal(t, followUps, s.state.FollowUpCount())
			assert.Equal(t, textMessage(TypeError, tt.message), tr.last())
			assert.Equal(t, []string{tt.kind}, rec.errors)
		})
	}
}

func TestSessionHandleAfterTermination(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newFakeTransport(), Deps{})
	answerAll(t, s)
	require.NoError(t, s.Handle(context.Background(), frame(TypeChoiceResponse, "choice_id", domain.ChoiceSkip)))

	err := s.Handle(context.Background(), frame(TypeInitial, "message", "again"))
	assert.ErrorIs(t, err, ErrSessionTerminated)
}

func TestRunCompletesConversation(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(
		`{"type":"initial","message":"I love building things"}`,
		`not json`,
		`{"type":"answer","message":"Mostly small robots"}`,
		`{"type":"answer","message":"I want to finish one this year"}`,
		`{"type":"answer","message":"Probably with a friend"}`,
		`{"type":"choice_response","choice_id":"skip"}`,
	)
	s := newTestSession(t, tr, Deps{})

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, domain.PhaseTerminated, s.Phase())

	types := tr.types()
	assert.Equal(t, []string{TypeFollowUp, TypeError, TypeFollowUp, TypeFollowUp}, types[:4])
	assert.Equal(t, TypeRespectfulEnding, types[len(types)-1])
}

func TestRunStopsOnPeerDisconnect(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(`{"type":"initial","message":"hello there"}`)
	s := newTestSession(t, tr, Deps{})

	err := s.Run(context.Background())

	require.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, domain.PhaseTerminated, s.Phase())
	assert.Equal(t, []string{TypeFollowUp}, tr.types())
	assert.Equal(t, domain.PhaseTerminated, s.Outcome().FinalPhase)
	assert.False(t, s.Outcome().Completed())
}

func TestRunStopsOnSendFailure(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(`{"type":"initial","message":"hello there"}`)
	tr.sendErr = errors.New("broken pipe")
	s := newTestSession(t, tr, Deps{})

	err := s.Run(context.Background())

	require.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, tr.types())
}

func TestRunCancelledDuringReveal(t *testing.T) {
	t.Parallel()

	tr := &fakeTransport{inbox: make(chan []byte, 4), sent: make(chan string, 64)}
	for _, f := range [][]byte{
		frame(TypeInitial, "message", "one"),
		frame(TypeAnswer, "message", "two"),
		frame(TypeAnswer, "message", "three"),
		frame(TypeAnswer, "message", "four"),
	} {
		tr.inbox <- f
	}

	pauses := DefaultPauses()
	pauses.Transition = time.Hour
	s := newTestSession(t, tr, Deps{Pauses: pauses})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	for typ := range tr.sent {
		if typ == TypeComplete {
			break
		}
	}
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after cancellation")
	}

	assert.Equal(t, TypeComplete, typeOf(tr.last()))
	assert.Equal(t, domain.PhaseTerminated, s.Phase())
}

func TestRunRecoversFromPanic(t *testing.T) {
	t.Parallel()

	tr := newFakeTransport(`{"type":"initial","message":"hello there"}`)
	s := newTestSession(t, tr, Deps{FollowUps: scriptedFollowUps{panics: true}})

	err := s.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator exploded")
	assert.Equal(t, textMessage(TypeError, content.Default().Script.Errors.Fatal), tr.last())
	assert.Equal(t, domain.PhaseTerminated, s.Phase())
}

func TestPauseHonorsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, pause(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, pause(ctx, 0), context.Canceled)
	assert.NoError(t, pause(context.Background(), 0))
	assert.NoError(t, pause(context.Background(), time.Millisecond))
}
