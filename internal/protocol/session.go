// Package protocol runs the per-connection conversation: it dispatches
// inbound messages by phase, drives the session state, and emits the timed
// reveal sequence. One Session serves exactly one connection.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
	"github.com/ashureev/mindprobe/internal/followup"
	"github.com/ashureev/mindprobe/internal/session"
)

var (
	// ErrTransport marks failures of the underlying connection. The session
	// ends without any further message.
	ErrTransport = errors.New("transport failure")
	// ErrSessionTerminated is returned when a message arrives after the session ended.
	ErrSessionTerminated = errors.New("session terminated")
	// ErrUnknownMessageType is reported to the peer for unrecognized types.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Error kinds sent to the Recorder.
const (
	KindMalformed     = "malformed"
	KindUnknownType   = "unknown_type"
	KindUnexpected    = "unexpected"
	KindInvalidInput  = "invalid_input"
	KindUnknownChoice = "unknown_choice"
)

// Transport moves frames for a single connection.
type Transport interface {
	// Receive blocks until the next text frame arrives.
	Receive(ctx context.Context) ([]byte, error)
	// Send writes one JSON message.
	Send(ctx context.Context, msg any) error
}

// FollowUpper produces follow-up questions.
type FollowUpper interface {
	FollowUp(ctx context.Context, history []domain.Turn, userText string, turnIndex int) followup.Result
}

// Recorder receives protocol measurements.
type Recorder interface {
	RevealBuilt(category domain.Category)
	ProtocolError(kind string)
}

// Pauses are the waits before each timed message of the reveal sequence.
type Pauses struct {
	Transition  time.Duration
	Analyzing   time.Duration
	PreReveal   time.Duration
	Personality time.Duration
	MindReading time.Duration
	Secret      time.Duration
	Choice      time.Duration
	Finale      time.Duration
}

// DefaultPauses returns the production reveal timing.
func DefaultPauses() Pauses {
	return Pauses{
		Transition:  1500 * time.Millisecond,
		Analyzing:   time.Second,
		PreReveal:   2 * time.Second,
		Personality: 1500 * time.Millisecond,
		MindReading: 3 * time.Second,
		Secret:      2 * time.Second,
		Choice:      2 * time.Second,
		Finale:      2 * time.Second,
	}
}

// Deps are shared by every session of a process.
type Deps struct {
	FollowUps FollowUpper
	Tables    *content.Tables
	Picker    domain.Picker
	Pauses    Pauses
	Recorder  Recorder
	Logger    *slog.Logger
}

// Session is the state machine for one connection. It is driven by a single
// goroutine and is not safe for concurrent use.
type Session struct {
	id        string
	transport Transport
	followUps FollowUpper
	tables    *content.Tables
	picker    domain.Picker
	pauses    Pauses
	recorder  Recorder
	logger    *slog.Logger

	state     *session.State
	phase     domain.Phase
	fallbacks int
	choice    string
	startedAt time.Time
	endedAt   time.Time
}

// NewSession creates a session in the awaiting-initial phase.
func NewSession(id string, t Transport, deps Deps) *Session {
	s := &Session{
		id:        id,
		transport: t,
		followUps: deps.FollowUps,
		tables:    deps.Tables,
		picker:    deps.Picker,
		pauses:    deps.Pauses,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		state:     session.New(),
		phase:     domain.PhaseAwaitingInitial,
		startedAt: time.Now(),
	}
	if s.tables == nil {
		s.tables = content.Default()
	}
	if s.picker == nil {
		s.picker = domain.RandomPicker{}
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("session_id", id)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the current phase.
func (s *Session) Phase() domain.Phase {
	return s.phase
}

// Run processes inbound frames until the session terminates, the transport
// fails, or an internal invariant breaks. A nil error means normal completion.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("session panic: %v", r)
			s.terminate()
			s.notifyFatal(ctx)
		}
	}()

	for s.phase != domain.PhaseTerminated {
		raw, err := s.transport.Receive(ctx)
		if err != nil {
			s.terminate()
			return fmt.Errorf("%w: receive: %w", ErrTransport, err)
		}
		if err := s.Handle(ctx, raw); err != nil {
			s.terminate()
			if !errors.Is(err, ErrTransport) {
				s.notifyFatal(ctx)
			}
			return err
		}
	}
	return nil
}

// Handle processes a single inbound frame. Peer mistakes are answered with an
// error message and leave the phase unchanged; only transport failures and
// broken invariants are returned.
func (s *Session) Handle(ctx context.Context, raw []byte) error {
	if s.phase == domain.PhaseTerminated {
		return ErrSessionTerminated
	}

	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		s.logger.Debug("Malformed message", "error", err)
		return s.reject(ctx, KindMalformed, s.tables.Script.Errors.UnknownType)
	}

	switch in.Type {
	case TypeInitial:
		return s.handleInitial(ctx, in.Message)
	case TypeAnswer:
		return s.handleAnswer(ctx, in.Message)
	case TypeChoiceResponse:
		return s.handleChoice(ctx, in.ChoiceID)
	default:
		s.logger.Debug("Unknown message type", "type", in.Type, "error", ErrUnknownMessageType)
		return s.reject(ctx, KindUnknownType, s.tables.Script.Errors.UnknownType)
	}
}

func (s *Session) handleInitial(ctx context.Context, text string) error {
	if s.phase != domain.PhaseAwaitingInitial {
		return s.reject(ctx, KindUnexpected, s.tables.Script.Errors.UnknownType)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return s.reject(ctx, KindInvalidInput, s.tables.Script.Errors.EmptyInput)
	}
	return s.askFollowUp(ctx, text)
}

func (s *Session) handleAnswer(ctx context.Context, text string) error {
	if s.phase != domain.PhaseQuestioning {
		return s.reject(ctx, KindUnexpected, s.tables.Script.Errors.UnknownType)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return s.reject(ctx, KindInvalidInput, s.tables.Script.Errors.EmptyInput)
	}
	if s.state.IsComplete() {
		return s.reveal(ctx)
	}
	return s.askFollowUp(ctx, text)
}

func (s *Session) askFollowUp(ctx context.Context, text string) error {
	res := s.followUps.FollowUp(ctx, s.state.History(), text, s.state.FollowUpCount())
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if err := s.state.AppendTurn(text, res.Text); err != nil {
		return s.reject(ctx, KindInvalidInput, s.tables.Script.Errors.EmptyInput)
	}
	s.state.IncrementFollowUp()
	if res.Fallback {
		s.fallbacks++
	}
	s.phase = domain.PhaseQuestioning

	s.logger.Info("Follow-up ready",
		"number", s.state.FollowUpCount(),
		"style", res.Style,
		"keyword", res.Keyword,
		"fallback", res.Fallback)

	return s.send(ctx, FollowUpMessage{
		Type:     TypeFollowUp,
		Question: res.Text,
		Number:   s.state.FollowUpCount(),
		Total:    domain.MaxFollowUps,
	})
}

// step is one message of a timed sequence, sent after its pause.
type step struct {
	pause time.Duration
	msg   any
}

func (s *Session) reveal(ctx context.Context) error {
	s.phase = domain.PhaseRevealing

	bundle, err := s.state.BuildReveal(s.tables, s.picker)
	if err != nil {
		return fmt.Errorf("build reveal: %w", err)
	}
	s.recorder.RevealBuilt(bundle.Category)
	s.logger.Info("Reveal started", "category", bundle.Category, "scores", bundle.Scores)

	sc := s.tables.Script
	p := s.pauses
	err = s.play(ctx, []step{
		{0, textMessage(TypeComplete, sc.Complete)},
		{p.Transition, textMessage(TypeThinking, sc.Transition)},
		{p.Analyzing, textMessage(TypeThinking, sc.Analyzing)},
		{p.PreReveal, textMessage(TypeThinking, sc.PreReveal)},
		{p.Personality, personalityReveal(s.tables, bundle)},
		{p.MindReading, DataMessage{Type: TypeMindReading, Data: bundle.MindReading}},
		{p.Secret, secretUnlock(s.tables, bundle)},
		{p.Choice, interactiveChoice(s.tables)},
	})
	if err != nil {
		return err
	}

	s.phase = domain.PhaseAwaitingChoice
	return nil
}

func (s *Session) handleChoice(ctx context.Context, choiceID string) error {
	if s.phase != domain.PhaseAwaitingChoice {
		return s.reject(ctx, KindUnexpected, s.tables.Script.Errors.UnknownType)
	}

	var err error
	switch choiceID {
	case domain.ChoiceReveal:
		s.choice = choiceID
		bundle := s.state.Reveal()
		err = s.play(ctx, []step{
			{0, ultimateReveal(s.tables, bundle)},
			{s.pauses.Finale, finale(s.tables, bundle)},
		})
	case domain.ChoiceSkip:
		s.choice = choiceID
		err = s.send(ctx, respectfulEnding(s.tables))
	default:
		return s.reject(ctx, KindUnknownChoice, s.tables.Script.Errors.UnknownType)
	}

	s.terminate()
	s.logger.Info("Session complete", "choice", s.choice)
	return err
}

func (s *Session) play(ctx context.Context, steps []step) error {
	for _, st := range steps {
		if err := pause(ctx, st.pause); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		if err := s.send(ctx, st.msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) reject(ctx context.Context, kind, message string) error {
	s.recorder.ProtocolError(kind)
	s.logger.Info("Rejected message", "kind", kind, "phase", s.phase)
	return s.send(ctx, textMessage(TypeError, message))
}

func (s *Session) send(ctx context.Context, msg any) error {
	if err := s.transport.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: send: %w", ErrTransport, err)
	}
	return nil
}

// notifyFatal is a best-effort notice before an internal failure closes the session.
func (s *Session) notifyFatal(ctx context.Context) {
	if err := s.transport.Send(ctx, textMessage(TypeError, s.tables.Script.Errors.Fatal)); err != nil {
		s.logger.Debug("Failed to send fatal notice", "error", err)
	}
}

func (s *Session) terminate() {
	if s.phase == domain.PhaseTerminated {
		return
	}
	s.phase = domain.PhaseTerminated
	s.endedAt = time.Now()
}

// Outcome summarizes the session for the outcome ledger.
func (s *Session) Outcome() domain.SessionOutcome {
	o := domain.SessionOutcome{
		SessionID:  s.id,
		FollowUps:  s.state.FollowUpCount(),
		Fallbacks:  s.fallbacks,
		Choice:     s.choice,
		FinalPhase: s.phase,
		StartedAt:  s.startedAt,
		EndedAt:    s.endedAt,
	}
	if o.EndedAt.IsZero() {
		o.EndedAt = time.Now()
	}
	if b := s.state.Reveal(); b != nil {
		o.Category = b.Category
	}
	return o
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) RevealBuilt(domain.Category) {}
func (nopRecorder) ProtocolError(string)        {}
