// Package domain contains core domain types for the mindprobe service.
package domain

import "math/rand/v2"

// MaxFollowUps bounds the number of generated follow-up questions per session.
const MaxFollowUps = 3

// Phase is the lifecycle position of a single connection's conversation.
type Phase string

// Phases in the order a session moves through them.
const (
	PhaseAwaitingInitial Phase = "awaiting_initial"
	PhaseQuestioning     Phase = "questioning"
	PhaseRevealing       Phase = "revealing"
	PhaseAwaitingChoice  Phase = "awaiting_choice"
	PhaseTerminated      Phase = "terminated"
)

// Turn is one user-text/system-text exchange pair.
type Turn struct {
	UserText   string `json:"user"`
	SystemText string `json:"ai"`
}

// TriggerStyle is the rhetorical mode a follow-up question is generated in.
type TriggerStyle string

const (
	StyleCuriosityOpener  TriggerStyle = "curiosity_opener"
	StylePatternInterrupt TriggerStyle = "pattern_interrupt"
	StyleDeepDive         TriggerStyle = "deep_dive"
)

// Picker chooses an index in [0, n). *math/rand/v2.Rand satisfies it.
type Picker interface {
	IntN(n int) int
}

// RandomPicker picks from the process-wide math/rand/v2 source.
type RandomPicker struct{}

// IntN implements Picker.
func (RandomPicker) IntN(n int) int {
	return rand.IntN(n)
}
