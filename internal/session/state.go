// Package session holds the per-connection conversation data and derives the
// reveal from it. It performs no I/O.
package session

import (
	"errors"
	"strings"

	"github.com/ashureev/mindprobe/internal/content"
	"github.com/ashureev/mindprobe/internal/domain"
)

var (
	// ErrInvalidInput is returned when a required text field is blank.
	ErrInvalidInput = errors.New("text must not be empty")
	// ErrPrematureReveal is returned when the reveal is requested before questioning completed.
	ErrPrematureReveal = errors.New("reveal requested before questioning completed")
	// ErrRevealAlreadyBuilt is returned on a second BuildReveal call.
	ErrRevealAlreadyBuilt = errors.New("reveal already built")
)

// State is the conversation data owned by a single connection.
// It is not safe for concurrent use.
type State struct {
	history   []domain.Turn
	followUps int
	reveal    *domain.RevealBundle
}

// New returns an empty State.
func New() *State {
	return &State{}
}

// AppendTurn records one exchange. The follow-up counter is not touched.
func (s *State) AppendTurn(userText, systemText string) error {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return ErrInvalidInput
	}
	s.history = append(s.history, domain.Turn{UserText: userText, SystemText: systemText})
	return nil
}

// IncrementFollowUp counts one emitted follow-up. It never exceeds domain.MaxFollowUps.
func (s *State) IncrementFollowUp() {
	if s.followUps < domain.MaxFollowUps {
		s.followUps++
	}
}

// IsComplete reports whether every follow-up has been asked.
func (s *State) IsComplete() bool {
	return s.followUps >= domain.MaxFollowUps
}

// FollowUpCount returns the number of follow-ups asked so far.
func (s *State) FollowUpCount() int {
	return s.followUps
}

// History returns a copy of the recorded turns in conversational order.
func (s *State) History() []domain.Turn {
	out := make([]domain.Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Reveal returns the bundle built by BuildReveal, or nil.
func (s *State) Reveal() *domain.RevealBundle {
	return s.reveal
}

// BuildReveal derives the reveal bundle from the history. It must be called
// exactly once, after IsComplete reports true. Only the scores draw from picker.
func (s *State) BuildReveal(tables *content.Tables, picker domain.Picker) (*domain.RevealBundle, error) {
	if !s.IsComplete() {
		return nil, ErrPrematureReveal
	}
	if s.reveal != nil {
		return nil, ErrRevealAlreadyBuilt
	}

	features := ExtractFeatures(s.history, tables.Markers)
	category := Classify(features)
	persona := tables.Persona(category)

	s.reveal = &domain.RevealBundle{
		Category:    category,
		Persona:     persona,
		Scores:      Score(features, picker),
		MindReading: MindReading(s.history, tables.MindReading),
		FutureVision: domain.FutureVision{
			Title:    tables.FutureVision.Title,
			Vision:   persona.FutureVision,
			Reminder: tables.FutureVision.Reminder,
		},
		PersonalChallenge: domain.PersonalChallenge{
			Title:         tables.PersonalChallenge.Title,
			MainChallenge: persona.Challenge,
			WhyItMatters:  tables.PersonalChallenge.WhyItMatters,
			Deadline:      tables.PersonalChallenge.Deadline,
			WhatToExpect:  tables.PersonalChallenge.WhatToExpect,
		},
		PlotTwist: domain.PlotTwist{
			Title:   tables.PlotTwist.Title,
			Reveal:  tables.PlotTwist.Reveal,
			Insight: persona.PlotTwist,
		},
		SecretMessage:   persona.SecretMessage,
		HonestTake:      persona.HonestTake,
		FinalMotivation: persona.FinalMotivation,
		Tagline:         persona.Tagline,
		TurnCount:       len(s.history),
	}
	return s.reveal, nil
}
