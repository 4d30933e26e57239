package domain

import "time"

// Choice values a session can end with.
const (
	ChoiceReveal = "reveal"
	ChoiceSkip   = "skip"
)

// SessionOutcome records how one connection's conversation ended.
// It is written once when the connection closes and never read back into a session.
type SessionOutcome struct {
	SessionID  string    `json:"session_id"`
	VisitorID  string    `json:"visitor_id"`
	Category   Category  `json:"category,omitempty"`
	FollowUps  int       `json:"follow_ups"`
	Fallbacks  int       `json:"fallbacks"`
	Choice     string    `json:"choice,omitempty"`
	FinalPhase Phase     `json:"final_phase"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// Completed reports whether the visitor reached a choice.
func (o SessionOutcome) Completed() bool {
	return o.Choice != ""
}

// Duration returns how long the session lasted.
func (o SessionOutcome) Duration() time.Duration {
	if o.EndedAt.Before(o.StartedAt) {
		return 0
	}
	return o.EndedAt.Sub(o.StartedAt)
}

// OutcomeStats aggregates recorded outcomes over a time window.
type OutcomeStats struct {
	Since        time.Time      `json:"since"`
	Total        int            `json:"total"`
	Completed    int            `json:"completed"`
	ByCategory   map[string]int `json:"by_category"`
	ByChoice     map[string]int `json:"by_choice"`
	AvgFallbacks float64        `json:"avg_fallbacks"`
}
