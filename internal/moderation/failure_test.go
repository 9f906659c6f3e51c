package moderation_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/postsieve/postsieve/internal/moderation"
	"github.com/stretchr/testify/assert"
)

var errScoring = errors.New("scoring failed")

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "transient failure",
			err:      moderation.Transient("connection_error", errScoring),
			expected: true,
		},
		{
			name:     "permanent failure",
			err:      moderation.Permanent("invalid_request", errScoring),
			expected: false,
		},
		{
			name:     "wrapped transient failure",
			err:      fmt.Errorf("run failed: %w", moderation.Transient("attachment_missing", errScoring)),
			expected: true,
		},
		{
			name:     "unclassified error defaults to transient",
			err:      errScoring,
			expected: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, moderation.IsTransient(tt.err))
		})
	}
}

func TestFailureCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "attachment_missing",
		moderation.FailureCode(moderation.Transient("attachment_missing", errScoring)))
	assert.Equal(t, "internal_error", moderation.FailureCode(errScoring))
}

func TestFailureUnwrap(t *testing.T) {
	t.Parallel()

	failure := moderation.Permanent("service_error", errScoring)
	assert.ErrorIs(t, failure, errScoring)
	assert.Contains(t, failure.Error(), "permanent")
	assert.Contains(t, failure.Error(), "service_error")
}
