// Package queue implements the moderation job scheduler on Redis: a sorted
// set orders jobs by the time they become ready, a dedup key keeps each post
// queued at most once, and a hash tracks how many attempts a post has burned.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// ActiveKeyPrefix namespaces the dedup keys. A key exists from enqueue
	// until the job is released, so re-enqueuing an outstanding post is a
	// no-op. Keys are formatted as "moderation:active:{postID}".
	ActiveKeyPrefix = "moderation:active:"
	// PendingKey is the sorted set of queued post IDs scored by the unix
	// time they become ready to claim.
	PendingKey = "moderation:pending"
	// AttemptsKey is the hash of post ID to consumed attempt count.
	AttemptsKey = "moderation:attempts"

	// activeTTL bounds how long a dedup key can outlive a lost job.
	activeTTL = 24 * time.Hour
)

// ErrAttemptsExhausted is returned by Retry when a job has burned its entire
// attempt budget.
var ErrAttemptsExhausted = errors.New("queue: attempt budget exhausted")

// Job is one claimed unit of moderation work. Attempt counts the failed
// attempts that preceded this delivery.
type Job struct {
	PostID  uint64
	Attempt int
}

// Manager orchestrates queue operations using a Redis sorted set for
// scheduling and plain keys for deduplication. Delivery is at-least-once;
// consumers are expected to be idempotent.
type Manager struct {
	client rueidis.Client
	config *config.Scheduler
	logger *zap.Logger
}

// NewManager initializes a queue manager with its required dependencies.
func NewManager(client rueidis.Client, config *config.Scheduler, logger *zap.Logger) *Manager {
	return &Manager{
		client: client,
		config: config,
		logger: logger.Named("queue"),
	}
}

// Enqueue schedules a post for immediate moderation. Returns false when the
// post already has an outstanding job, which makes duplicate submission
// harmless.
func (m *Manager) Enqueue(ctx context.Context, postID uint64) (bool, error) {
	member := strconv.FormatUint(postID, 10)

	err := m.client.Do(ctx, m.client.B().Set().
		Key(activeKey(postID)).
		Value("1").
		Nx().
		Ex(activeTTL).
		Build()).Error()
	if rueidis.IsRedisNil(err) {
		m.logger.Debug("Post already queued", zap.Uint64("postID", postID))
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}

	err = m.client.Do(ctx, m.client.B().Zadd().
		Key(PendingKey).
		ScoreMember().
		ScoreMember(float64(time.Now().Unix()), member).
		Build()).Error()
	if err != nil {
		return false, fmt.Errorf("failed to schedule job: %w", err)
	}

	return true, nil
}

// NextBatch claims up to the configured batch of ready jobs. Claiming removes
// a job from the schedule, so two workers polling concurrently never both get
// the same job; a worker that crashes mid-job relies on the attempt budget's
// dedup TTL rather than a visibility timeout.
func (m *Manager) NextBatch(ctx context.Context) ([]Job, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	members, err := m.client.Do(ctx, m.client.B().Zrangebyscore().
		Key(PendingKey).
		Min("-inf").
		Max(now).
		Limit(0, int64(m.config.BatchSize)).
		Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to read ready jobs: %w", err)
	}

	jobs := make([]Job, 0, len(members))

	for _, member := range members {
		removed, err := m.client.Do(ctx, m.client.B().Zrem().
			Key(PendingKey).
			Member(member).
			Build()).ToInt64()
		if err != nil {
			return jobs, fmt.Errorf("failed to claim job: %w", err)
		}

		// Another worker claimed it first.
		if removed == 0 {
			continue
		}

		postID, err := strconv.ParseUint(member, 10, 64)
		if err != nil {
			m.logger.Error("Dropping malformed queue member", zap.String("member", member))
			continue
		}

		attempt, err := m.attemptCount(ctx, member)
		if err != nil {
			return jobs, err
		}

		jobs = append(jobs, Job{PostID: postID, Attempt: attempt})
	}

	return jobs, nil
}

// Retry reschedules a failed job with exponential backoff. When the attempt
// budget is exhausted the job is cleaned up and ErrAttemptsExhausted is
// returned so the caller can park the post.
func (m *Manager) Retry(ctx context.Context, job Job) error {
	member := strconv.FormatUint(job.PostID, 10)
	consumed := job.Attempt + 1

	if consumed >= m.config.MaxAttempts {
		if err := m.Release(ctx, job.PostID); err != nil {
			return err
		}

		return ErrAttemptsExhausted
	}

	err := m.client.Do(ctx, m.client.B().Hset().
		Key(AttemptsKey).
		FieldValue().
		FieldValue(member, strconv.Itoa(consumed)).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to record attempt count: %w", err)
	}

	readyAt := time.Now().Add(m.backoffDelay(consumed)).Unix()

	err = m.client.Do(ctx, m.client.B().Zadd().
		Key(PendingKey).
		ScoreMember().
		ScoreMember(float64(readyAt), member).
		Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to reschedule job: %w", err)
	}

	m.logger.Debug("Rescheduled job",
		zap.Uint64("postID", job.PostID),
		zap.Int("attempt", consumed),
		zap.Int64("readyAt", readyAt))

	return nil
}

// Release finishes a job's lifecycle: the dedup key and attempt counter are
// removed so the post can be enqueued again later.
func (m *Manager) Release(ctx context.Context, postID uint64) error {
	member := strconv.FormatUint(postID, 10)

	if err := m.client.Do(ctx, m.client.B().Del().
		Key(activeKey(postID)).
		Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete dedup key: %w", err)
	}

	if err := m.client.Do(ctx, m.client.B().Hdel().
		Key(AttemptsKey).
		Field(member).
		Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete attempt count: %w", err)
	}

	return nil
}

// PendingCount returns the number of scheduled jobs, ready or not.
func (m *Manager) PendingCount(ctx context.Context) (int64, error) {
	count, err := m.client.Do(ctx, m.client.B().Zcard().Key(PendingKey).Build()).ToInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}

	return count, nil
}

// attemptCount reads the consumed attempt count for a member, defaulting to
// zero for first deliveries.
func (m *Manager) attemptCount(ctx context.Context, member string) (int, error) {
	value, err := m.client.Do(ctx, m.client.B().Hget().
		Key(AttemptsKey).
		Field(member).
		Build()).ToString()
	if rueidis.IsRedisNil(err) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("failed to read attempt count: %w", err)
	}

	attempt, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse attempt count %q: %w", value, err)
	}

	return attempt, nil
}

// backoffDelay computes the delay before retry number attempt, doubling from
// the initial backoff up to the configured ceiling.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(m.config.InitialBackoff) * time.Second
	maxDelay := time.Duration(m.config.MaxBackoff) * time.Second

	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}

	return delay
}

func activeKey(postID uint64) string {
	return ActiveKeyPrefix + strconv.FormatUint(postID, 10)
}
