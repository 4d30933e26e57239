package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pruneCounter struct {
	Noop
	calls     atomic.Int32
	olderThan atomic.Int64
}

func (p *pruneCounter) PruneOutcomes(_ context.Context, olderThan time.Duration) (int64, error) {
	p.calls.Add(1)
	p.olderThan.Store(int64(olderThan))
	return 1, nil
}

func TestRunRetentionPrunesUntilCancelled(t *testing.T) {
	t.Parallel()

	repo := &pruneCounter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunRetention(ctx, repo, 24*time.Hour, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return repo.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retention worker did not stop")
	}
	assert.Equal(t, int64(24*time.Hour), repo.olderThan.Load())
}

func TestRunRetentionDisabled(t *testing.T) {
	t.Parallel()

	repo := &pruneCounter{}
	require.NoError(t, RunRetention(context.Background(), repo, 0, time.Millisecond))
	assert.Zero(t, repo.calls.Load())
}
