package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/mindprobe/internal/domain"
)

const (
	maxWriteAttempts = 3
	retryBaseDelay   = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite opens (and if needed creates) the outcome ledger at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the stats endpoint read while sessions are being recorded.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS session_outcomes (
		session_id TEXT PRIMARY KEY,
		visitor_id TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		follow_ups INTEGER NOT NULL,
		fallbacks INTEGER NOT NULL,
		choice TEXT NOT NULL DEFAULT '',
		final_phase TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_session_outcomes_ended ON session_outcomes(ended_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// RecordOutcome stores a session outcome, retrying on SQLITE_BUSY with
// exponential backoff.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, o domain.SessionOutcome) error {
	query := `
	INSERT INTO session_outcomes (
		session_id, visitor_id, category, follow_ups, fallbacks,
		choice, final_phase, started_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		category = excluded.category,
		follow_ups = excluded.follow_ups,
		fallbacks = excluded.fallbacks,
		choice = excluded.choice,
		final_phase = excluded.final_phase,
		ended_at = excluded.ended_at`

	err := withRetry(ctx, "record outcome", func() error {
		_, err := s.db.ExecContext(ctx, query,
			o.SessionID, o.VisitorID, string(o.Category), o.FollowUps, o.Fallbacks,
			o.Choice, string(o.FinalPhase), o.StartedAt.Unix(), o.EndedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record outcome %s: %w", o.SessionID, err)
	}
	return nil
}

// OutcomeStats aggregates outcomes that ended at or after since.
func (s *SQLiteStore) OutcomeStats(ctx context.Context, since time.Time) (domain.OutcomeStats, error) {
	stats := domain.OutcomeStats{
		Since:      since,
		ByCategory: map[string]int{},
		ByChoice:   map[string]int{},
	}
	threshold := since.Unix()

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN choice != '' THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(fallbacks), 0)
		FROM session_outcomes WHERE ended_at >= ?`, threshold)
	if err := row.Scan(&stats.Total, &stats.Completed, &stats.AvgFallbacks); err != nil {
		return stats, fmt.Errorf("scan outcome totals: %w", err)
	}

	if err := s.countBy(ctx, "category", threshold, stats.ByCategory); err != nil {
		return stats, err
	}
	if err := s.countBy(ctx, "choice", threshold, stats.ByChoice); err != nil {
		return stats, err
	}
	return stats, nil
}

// countBy fills into with row counts grouped by column. Empty values are skipped.
func (s *SQLiteStore) countBy(ctx context.Context, column string, threshold int64, into map[string]int) error {
	// column is always a literal from OutcomeStats.
	query := fmt.Sprintf(`
		SELECT %[1]s, COUNT(*) FROM session_outcomes
		WHERE ended_at >= ? AND %[1]s != ''
		GROUP BY %[1]s`, column)

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return fmt.Errorf("query outcomes by %s: %w", column, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close outcome rows", "error", closeErr)
		}
	}()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan outcomes by %s: %w", column, err)
		}
		into[key] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outcomes by %s: %w", column, err)
	}
	return nil
}

// PruneOutcomes deletes outcomes that ended more than olderThan ago.
func (s *SQLiteStore) PruneOutcomes(ctx context.Context, olderThan time.Duration) (int64, error) {
	threshold := time.Now().Add(-olderThan).Unix()

	var deleted int64
	err := withRetry(ctx, "prune outcomes", func() error {
		result, err := s.db.ExecContext(ctx, `DELETE FROM session_outcomes WHERE ended_at < ?`, threshold)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune outcomes: %w", err)
	}
	return deleted, nil
}

// withRetry runs op up to maxWriteAttempts times while it fails with a SQLite
// conflict. Delays are 100ms, 200ms.
func withRetry(ctx context.Context, name string, op func() error) error {
	var err error
	for i := range maxWriteAttempts {
		err = op()
		if err == nil || !isConflict(err) || i == maxWriteAttempts-1 {
			break
		}

		delay := retryBaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "op", name, "attempt", i+1, "delay", delay)

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	if err != nil && isConflict(err) {
		return fmt.Errorf("after %d attempts: %w", maxWriteAttempts, err)
	}
	return err
}
