package moderation

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	engine "github.com/postsieve/postsieve/internal/moderation"
	"github.com/postsieve/postsieve/internal/queue"
	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/postsieve/postsieve/internal/worker/core"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeRunner struct {
	err   error
	calls atomic.Int64
}

func (f *fakeRunner) Run(context.Context, uint64) error {
	f.calls.Add(1)
	return f.err
}

type fakeMarker struct {
	parked map[uint64]string
}

func (f *fakeMarker) MarkNeedsReview(_ context.Context, id uint64, note string) error {
	if f.parked == nil {
		f.parked = make(map[uint64]string)
	}

	f.parked[id] = note

	return nil
}

func newTestWorker(t *testing.T, runner Runner, marker ReviewMarker) (*Worker, *queue.Manager) {
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

	cfg := &config.Scheduler{
		MaxAttempts:    5,
		InitialBackoff: 30,
		MaxBackoff:     900,
		BatchSize:      10,
		Concurrency:    4,
		PollInterval:   1,
	}

	logger := zaptest.NewLogger(t)
	queueManager := queue.NewManager(client, cfg, logger)

	return &Worker{
		queue:    queueManager,
		posts:    marker,
		runner:   runner,
		reporter: core.NewStatusReporter(client, "moderation", logger),
		config:   cfg,
		enabled:  true,
		logger:   logger,
	}, queueManager
}

func TestProcessJobSuccessReleases(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	marker := &fakeMarker{}
	worker, queueManager := newTestWorker(t, runner, marker)
	ctx := context.Background()

	_, err := queueManager.Enqueue(ctx, 1)
	require.NoError(t, err)

	jobs, err := queueManager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	worker.processJob(ctx, jobs[0])

	assert.Equal(t, int64(1), runner.calls.Load())
	assert.Empty(t, marker.parked)

	// Release freed the dedup key.
	queued, err := queueManager.Enqueue(ctx, 1)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestProcessJobTransientFailureRetries(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: engine.Transient("connection_error", assert.AnError)}
	marker := &fakeMarker{}
	worker, queueManager := newTestWorker(t, runner, marker)
	ctx := context.Background()

	_, err := queueManager.Enqueue(ctx, 2)
	require.NoError(t, err)

	jobs, err := queueManager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	worker.processJob(ctx, jobs[0])

	assert.Empty(t, marker.parked)

	// The job is back on the schedule and the dedup key still holds.
	pending, err := queueManager.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)

	queued, err := queueManager.Enqueue(ctx, 2)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestProcessJobExhaustedBudgetParksPost(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: engine.Transient("attachment_missing", assert.AnError)}
	marker := &fakeMarker{}
	worker, queueManager := newTestWorker(t, runner, marker)
	ctx := context.Background()

	_, err := queueManager.Enqueue(ctx, 3)
	require.NoError(t, err)

	// Final delivery of the budget.
	worker.processJob(ctx, queue.Job{PostID: 3, Attempt: 4})

	require.Contains(t, marker.parked, uint64(3))
	assert.Contains(t, marker.parked[3], "attachment_missing")
	assert.Contains(t, marker.parked[3], "5 attempts")

	// Exhaustion released the dedup key.
	queued, err := queueManager.Enqueue(ctx, 3)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestProcessJobPermanentFailureReleases(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: engine.Permanent("invalid_request", assert.AnError)}
	marker := &fakeMarker{}
	worker, queueManager := newTestWorker(t, runner, marker)
	ctx := context.Background()

	_, err := queueManager.Enqueue(ctx, 4)
	require.NoError(t, err)

	jobs, err := queueManager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	worker.processJob(ctx, jobs[0])

	// No retry, no parking; the job just ends.
	assert.Empty(t, marker.parked)

	pending, err := queueManager.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)

	queued, err := queueManager.Enqueue(ctx, 4)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestProcessBatchRunsAllJobs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	marker := &fakeMarker{}
	worker, queueManager := newTestWorker(t, runner, marker)
	ctx := context.Background()

	for _, postID := range []uint64{10, 11, 12} {
		_, err := queueManager.Enqueue(ctx, postID)
		require.NoError(t, err)
	}

	jobs, err := queueManager.NextBatch(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	worker.processBatch(ctx, jobs)

	assert.Equal(t, int64(3), runner.calls.Load())
}
