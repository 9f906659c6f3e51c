package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/OneOfOne/xxhash"
)

// ContentHash fingerprints a normalized string. The hash correlates ledger
// rows for identical inputs without storing the raw content.
func ContentHash(s string) string {
	return fmt.Sprintf("%016x", xxhash.ChecksumString64(s))
}

// FileHash fingerprints a file's content.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := xxhash.New64()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}
