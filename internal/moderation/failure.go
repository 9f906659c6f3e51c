package moderation

import (
	"errors"
	"fmt"
)

// FailureKind splits pipeline failures into the two classes the scheduler
// cares about: retry later or give up now.
type FailureKind int

const (
	// KindTransient marks failures that may succeed on a later attempt.
	KindTransient FailureKind = iota
	// KindPermanent marks failures where retrying cannot help.
	KindPermanent
)

// Failure is the classified error surfaced by an orchestrator run. Code is a
// short machine-readable tag that also lands in the attempt ledger.
type Failure struct {
	Kind FailureKind
	Code string
	Err  error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	kind := "permanent"
	if f.Kind == KindTransient {
		kind = "transient"
	}

	return fmt.Sprintf("moderation: %s failure (%s): %v", kind, f.Code, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Transient wraps err as a retryable failure.
func Transient(code string, err error) *Failure {
	return &Failure{Kind: KindTransient, Code: code, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(code string, err error) *Failure {
	return &Failure{Kind: KindPermanent, Code: code, Err: err}
}

// IsTransient reports whether err should be retried by the scheduler.
// Unclassified errors count as transient; under at-least-once delivery with
// an idempotent orchestrator, retrying an unknown failure is always safe.
func IsTransient(err error) bool {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind == KindTransient
	}

	return true
}

// FailureCode extracts the machine-readable code from a classified error, or
// returns a generic code for anything else.
func FailureCode(err error) string {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Code
	}

	return "internal_error"
}
