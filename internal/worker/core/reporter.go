package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// StatusReporter handles automatic status reporting for workers.
type StatusReporter struct {
	monitor  *Monitor
	status   Status
	stopChan chan struct{}
	stopped  bool
	mu       sync.Mutex
	logger   *zap.Logger
}

// NewStatusReporter creates a new status reporter for a worker.
func NewStatusReporter(client rueidis.Client, workerType string, logger *zap.Logger) *StatusReporter {
	return &StatusReporter{
		monitor: NewMonitor(client, logger),
		status: Status{
			WorkerID:   uuid.New().String(),
			WorkerType: workerType,
			IsHealthy:  true,
		},
		stopChan: make(chan struct{}),
		logger:   logger.Named("status_reporter"),
	}
}

// Start begins periodic status reporting.
func (r *StatusReporter) Start(ctx context.Context) {
	r.mu.Lock()

	if r.stopped {
		r.mu.Unlock()
		return
	}

	r.mu.Unlock()

	go func() {
		ticker := time.NewTicker(HeartbeatInterval)
		defer ticker.Stop()

		if err := r.report(ctx); err != nil {
			r.logger.Error("Failed to report initial status", zap.Error(err))
		}

		for {
			select {
			case <-ticker.C:
				if err := r.report(ctx); err != nil {
					r.logger.Error("Failed to report status", zap.Error(err))
				}
			case <-ctx.Done():
				return
			case <-r.stopChan:
				return
			}
		}
	}()
}

// Stop ends status reporting.
func (r *StatusReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.stopped {
		close(r.stopChan)
		r.stopped = true
	}
}

// UpdateStatus updates the current task description.
func (r *StatusReporter) UpdateStatus(task string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.CurrentTask = task
}

// SetHealthy updates the health status.
func (r *StatusReporter) SetHealthy(healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.IsHealthy = healthy
}

// GetWorkerID returns the unique worker ID.
func (r *StatusReporter) GetWorkerID() string {
	return r.status.WorkerID
}

func (r *StatusReporter) report(ctx context.Context) error {
	r.mu.Lock()
	status := r.status
	r.mu.Unlock()

	return r.monitor.ReportStatus(ctx, status)
}
