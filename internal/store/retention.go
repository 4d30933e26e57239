package store

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = time.Hour

// RunRetention deletes outcomes older than retention every interval until ctx
// is done. A non-positive retention disables pruning.
func RunRetention(ctx context.Context, repo Repository, retention, interval time.Duration) error {
	if retention <= 0 {
		slog.Info("Outcome retention disabled")
		return nil
	}
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Retention worker started", "interval", interval, "retention", retention)

	for {
		select {
		case <-ticker.C:
			pruneOnce(ctx, repo, retention)
		case <-ctx.Done():
			slog.Info("Retention worker shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

func pruneOnce(ctx context.Context, repo Repository, retention time.Duration) {
	deleted, err := repo.PruneOutcomes(ctx, retention)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Retention worker failed to prune outcomes", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned outcomes", "count", deleted)
	}
}
