// Package store persists session outcomes.
package store

import (
	"context"
	"time"

	"github.com/ashureev/mindprobe/internal/domain"
)

// Repository defines the outcome ledger.
type Repository interface {
	// RecordOutcome stores the outcome of one finished session. Recording the
	// same session twice replaces the earlier row.
	RecordOutcome(ctx context.Context, outcome domain.SessionOutcome) error

	// OutcomeStats aggregates outcomes that ended at or after since.
	OutcomeStats(ctx context.Context, since time.Time) (domain.OutcomeStats, error)

	// PruneOutcomes deletes outcomes that ended more than olderThan ago.
	PruneOutcomes(ctx context.Context, olderThan time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Noop is a Repository that keeps nothing. It is used when no database path
// is configured.
type Noop struct{}

var _ Repository = Noop{}

func (Noop) RecordOutcome(context.Context, domain.SessionOutcome) error { return nil }

func (Noop) OutcomeStats(_ context.Context, since time.Time) (domain.OutcomeStats, error) {
	return domain.OutcomeStats{
		Since:      since,
		ByCategory: map[string]int{},
		ByChoice:   map[string]int{},
	}, nil
}

func (Noop) PruneOutcomes(context.Context, time.Duration) (int64, error) { return 0, nil }

func (Noop) Ping(context.Context) error { return nil }

func (Noop) Close() error { return nil }
