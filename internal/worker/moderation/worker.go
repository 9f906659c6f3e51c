// Package moderation contains the worker that drains the moderation queue
// and drives the orchestrator for each claimed job.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	engine "github.com/postsieve/postsieve/internal/moderation"
	"github.com/postsieve/postsieve/internal/queue"
	"github.com/postsieve/postsieve/internal/setup"
	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/postsieve/postsieve/internal/worker/core"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Runner moderates one post end to end.
type Runner interface {
	Run(ctx context.Context, postID uint64) error
}

// ReviewMarker parks posts whose attempt budget ran out.
type ReviewMarker interface {
	MarkNeedsReview(ctx context.Context, id uint64, note string) error
}

// Worker drains the moderation queue. Jobs are claimed in batches and run
// concurrently up to the configured limit; each job is released, retried, or
// parked for review depending on how its run ended.
type Worker struct {
	queue    *queue.Manager
	posts    ReviewMarker
	runner   Runner
	reporter *core.StatusReporter
	config   *config.Scheduler
	enabled  bool
	logger   *zap.Logger
}

// New creates a moderation worker wired to the application's dependencies.
func New(app *setup.App, logger *zap.Logger) *Worker {
	runner := engine.NewOrchestrator(
		app.DB.Model().Post(),
		app.DB.Model().Attempt(),
		app.Scorer,
		app.Storage,
		&app.Config.Moderation,
		logger,
	)

	return &Worker{
		queue:    app.Queue,
		posts:    app.DB.Model().Post(),
		runner:   runner,
		reporter: core.NewStatusReporter(app.StatusClient, "moderation", logger),
		config:   &app.Config.Scheduler,
		enabled:  app.Config.Moderation.Enabled,
		logger:   logger.Named("moderation_worker"),
	}
}

// Start begins the worker's main loop:
// 1. Claims the next batch of ready jobs
// 2. Runs the orchestrator for each job concurrently
// 3. Settles every job as released, retried, or parked
// 4. Repeats until the context is canceled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Moderation worker started",
		zap.String("workerID", w.reporter.GetWorkerID()),
		zap.Bool("enabled", w.enabled))
	w.reporter.Start(ctx)

	defer w.reporter.Stop()

	pollInterval := time.Duration(w.config.PollInterval) * time.Second

	for ctx.Err() == nil {
		// The kill switch leaves posts pending instead of auto-approving
		// them, so flipping it back on resumes where things left off.
		if !w.enabled {
			w.reporter.UpdateStatus("Moderation disabled, idling")
			w.sleep(ctx, pollInterval)

			continue
		}

		w.reporter.SetHealthy(true)
		w.reporter.UpdateStatus("Claiming next batch")

		jobs, err := w.queue.NextBatch(ctx)
		if err != nil {
			w.logger.Error("Failed to claim batch", zap.Error(err))
			w.reporter.SetHealthy(false)
			w.sleep(ctx, pollInterval)

			continue
		}

		if len(jobs) == 0 {
			w.reporter.UpdateStatus("Queue empty, waiting")
			w.sleep(ctx, pollInterval)

			continue
		}

		w.reporter.UpdateStatus(fmt.Sprintf("Processing batch of %d jobs", len(jobs)))
		w.processBatch(ctx, jobs)
	}
}

// processBatch runs the claimed jobs with bounded concurrency.
func (w *Worker) processBatch(ctx context.Context, jobs []queue.Job) {
	p := pool.New().
		WithContext(ctx).
		WithMaxGoroutines(w.config.Concurrency)

	for _, job := range jobs {
		p.Go(func(ctx context.Context) error {
			w.processJob(ctx, job)
			return nil
		})
	}

	if err := p.Wait(); err != nil {
		w.logger.Error("Batch ended early", zap.Error(err))
	}
}

// processJob settles one job based on how its orchestrator run ended.
func (w *Worker) processJob(ctx context.Context, job queue.Job) {
	err := w.runner.Run(ctx, job.PostID)

	switch {
	case err == nil:
		w.release(ctx, job.PostID)

	case engine.IsTransient(err):
		w.logger.Warn("Job failed, scheduling retry",
			zap.Uint64("postID", job.PostID),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))

		retryErr := w.queue.Retry(ctx, job)
		if errors.Is(retryErr, queue.ErrAttemptsExhausted) {
			note := fmt.Sprintf("automated moderation failed after %d attempts: %s",
				w.config.MaxAttempts, engine.FailureCode(err))

			if err := w.posts.MarkNeedsReview(ctx, job.PostID, note); err != nil {
				w.logger.Error("Failed to park post for review",
					zap.Uint64("postID", job.PostID),
					zap.Error(err))
			}
		} else if retryErr != nil {
			w.logger.Error("Failed to reschedule job",
				zap.Uint64("postID", job.PostID),
				zap.Error(retryErr))
			w.reporter.SetHealthy(false)
		}

	default:
		// Permanent failures cannot improve with retries; the post stays
		// pending for operators to investigate.
		w.logger.Error("Job failed permanently",
			zap.Uint64("postID", job.PostID),
			zap.String("code", engine.FailureCode(err)),
			zap.Error(err))
		w.release(ctx, job.PostID)
	}
}

func (w *Worker) release(ctx context.Context, postID uint64) {
	if err := w.queue.Release(ctx, postID); err != nil {
		w.logger.Error("Failed to release job",
			zap.Uint64("postID", postID),
			zap.Error(err))
		w.reporter.SetHealthy(false)
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
