package queue_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/postsieve/postsieve/internal/queue"
	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupTest(t *testing.T, cfg *config.Scheduler) *queue.Manager {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return queue.NewManager(client, cfg, zaptest.NewLogger(t))
}

func schedulerConfig() *config.Scheduler {
	return &config.Scheduler{
		MaxAttempts:    5,
		InitialBackoff: 30,
		MaxBackoff:     900,
		BatchSize:      10,
		Concurrency:    4,
		PollInterval:   1,
	}
}

func TestEnqueueDeduplicates(t *testing.T) {
	t.Parallel()

	manager := setupTest(t, schedulerConfig())
	ctx := context.Background()

	queued, err := manager.Enqueue(ctx, 123)
	require.NoError(t, err)
	assert.True(t, queued)

	// A second submission while the job is outstanding is a no-op.
	queued, err = manager.Enqueue(ctx, 123)
	require.NoError(t, err)
	assert.False(t, queued)

	pending, err := manager.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestNextBatchClaimsReadyJobs(t *testing.T) {
	t.Parallel()

	manager := setupTest(t, schedulerConfig())
	ctx := context.Background()

	for _, postID := range []uint64{1, 2, 3} {
		_, err := manager.Enqueue(ctx, postID)
		require.NoError(t, err)
	}

	jobs, err := manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	for _, job := range jobs {
		assert.Zero(t, job.Attempt)
	}

	// Claiming removes jobs from the schedule.
	jobs, err = manager.NextBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRetrySchedulesWithBackoff(t *testing.T) {
	t.Parallel()

	manager := setupTest(t, schedulerConfig())
	ctx := context.Background()

	_, err := manager.Enqueue(ctx, 7)
	require.NoError(t, err)

	jobs, err := manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, manager.Retry(ctx, jobs[0]))

	// The retried job is scheduled in the future and not ready yet.
	jobs, err = manager.NextBatch(ctx)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	pending, err := manager.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}

func TestRetryIncrementsAttempt(t *testing.T) {
	t.Parallel()

	// Zero backoff makes retried jobs immediately claimable.
	cfg := schedulerConfig()
	cfg.InitialBackoff = 0

	manager := setupTest(t, cfg)
	ctx := context.Background()

	_, err := manager.Enqueue(ctx, 7)
	require.NoError(t, err)

	jobs, err := manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Zero(t, jobs[0].Attempt)

	require.NoError(t, manager.Retry(ctx, jobs[0]))

	jobs, err = manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Attempt)

	// The dedup key still holds while the retry is outstanding.
	queued, err := manager.Enqueue(ctx, 7)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestRetryExhaustsAttemptBudget(t *testing.T) {
	t.Parallel()

	manager := setupTest(t, schedulerConfig())
	ctx := context.Background()

	_, err := manager.Enqueue(ctx, 9)
	require.NoError(t, err)

	jobs, err := manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	// The fifth failure exhausts the budget.
	job := queue.Job{PostID: 9, Attempt: 4}
	err = manager.Retry(ctx, job)
	require.ErrorIs(t, err, queue.ErrAttemptsExhausted)

	// Exhaustion releases the dedup key so the post can be enqueued again.
	queued, err := manager.Enqueue(ctx, 9)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestRelease(t *testing.T) {
	t.Parallel()

	manager := setupTest(t, schedulerConfig())
	ctx := context.Background()

	_, err := manager.Enqueue(ctx, 5)
	require.NoError(t, err)

	jobs, err := manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	require.NoError(t, manager.Release(ctx, 5))

	// The post can be enqueued again and starts with a fresh attempt count.
	queued, err := manager.Enqueue(ctx, 5)
	require.NoError(t, err)
	assert.True(t, queued)

	jobs, err = manager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Zero(t, jobs[0].Attempt)
}
