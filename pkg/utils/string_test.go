package utils_test

import (
	"testing"

	"github.com/postsieve/postsieve/pkg/utils"
	"github.com/stretchr/testify/assert"
)

func TestCompressAllWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "collapses runs of spaces",
			input:    "hello    world",
			expected: "hello world",
		},
		{
			name:     "collapses newlines and tabs",
			input:    "hello\n\n\tworld",
			expected: "hello world",
		},
		{
			name:     "trims surrounding whitespace",
			input:    "  hello world \n",
			expected: "hello world",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    " \n\t ",
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, utils.CompressAllWhitespace(tt.input))
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{
			name:     "shorter than limit",
			input:    "hello",
			limit:    10,
			expected: "hello",
		},
		{
			name:     "exactly at limit",
			input:    "hello",
			limit:    5,
			expected: "hello",
		},
		{
			name:     "truncated with ellipsis",
			input:    "hello world",
			limit:    8,
			expected: "hello w…",
		},
		{
			name:     "multi-byte runes",
			input:    "héllö wörld",
			limit:    6,
			expected: "héllö…",
		},
		{
			name:     "zero limit",
			input:    "hello",
			limit:    0,
			expected: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, utils.TruncateRunes(tt.input, tt.limit))
		})
	}
}
