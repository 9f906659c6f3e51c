package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryOptions contains configuration for retry behavior.
type RetryOptions struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
}

// ConstantRetryOptions returns options for a fixed inter-attempt delay,
// expressed through the exponential backoff by pinning the initial and
// maximum intervals to the same value.
func ConstantRetryOptions(maxRetries uint64, delay, maxElapsed time.Duration) RetryOptions {
	return RetryOptions{
		MaxElapsedTime:  maxElapsed,
		InitialInterval: delay,
		MaxInterval:     delay,
		MaxRetries:      maxRetries,
	}
}

// WithRetry executes the given operation with exponential backoff using provided options.
// Operations can stop retries early by returning backoff.Permanent errors.
func WithRetry[T any](ctx context.Context, operation func() (T, error), opts RetryOptions) (T, error) {
	var result T

	// Configure exponential backoff
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(opts.MaxElapsedTime),
		backoff.WithInitialInterval(opts.InitialInterval),
		backoff.WithMaxInterval(opts.MaxInterval),
	), opts.MaxRetries)

	// Create backoff operation with context
	backoffOperation := func() error {
		var err error
		result, err = operation()
		return err
	}

	err := backoff.Retry(backoffOperation, backoff.WithContext(b, ctx))
	return result, err
}
