package utils

import (
	"regexp"
	"strings"
)

// MultipleSpaces matches any sequence of whitespace (including newlines).
var MultipleSpaces = regexp.MustCompile(`\s+`)

// CompressAllWhitespace replaces all whitespace sequences (including newlines) with a single space.
// Used to normalize post content before hashing and scoring so that formatting
// differences never produce distinct fingerprints.
func CompressAllWhitespace(s string) string {
	return strings.TrimSpace(MultipleSpaces.ReplaceAllString(s, " "))
}

// TruncateRunes shortens s to at most limit runes, appending an ellipsis when
// anything was cut. Safe on multi-byte input.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	if limit == 1 {
		return string(runes[:1])
	}

	return string(runes[:limit-1]) + "…"
}
