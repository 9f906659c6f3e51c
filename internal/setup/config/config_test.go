package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfig = `
version = 1

[debug]
log_level = "debug"

[postgresql]
host = "db.internal"
port = 5432
user = "postsieve"
password = "secret"
db_name = "postsieve"

[redis]
host = "redis.internal"
port = 6379

[scorer]
base_url = "http://scorer.internal:8500"
token = "shared-secret"
connect_timeout = 2000
request_timeout = 10000
max_retries = 2
retry_delay = 500

[moderation]
enabled = true

[moderation.text]
flag_threshold = 0.7
block_threshold = 0.9

[moderation.image]
flag_threshold = 0.6
block_threshold = 0.85

[scheduler]
max_attempts = 5
initial_backoff = 30
max_backoff = 900
batch_size = 25
concurrency = 8
poll_interval = 5

[storage]
root = "/srv/attachments"
`

func writeConfig(t *testing.T, content string) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

func TestLoadConfig(t *testing.T) {
	writeConfig(t, validConfig)

	cfg, usedDir, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ".", usedDir)

	assert.Equal(t, config.CurrentVersion, cfg.Version)
	assert.Equal(t, "debug", cfg.Debug.LogLevel)
	assert.Equal(t, "db.internal", cfg.PostgreSQL.Host)
	assert.Equal(t, "redis.internal", cfg.Redis.Host)
	assert.Equal(t, "http://scorer.internal:8500", cfg.Scorer.BaseURL)
	assert.Equal(t, "shared-secret", cfg.Scorer.Token)
	assert.True(t, cfg.Moderation.Enabled)
	assert.InDelta(t, 0.7, cfg.Moderation.Text.FlagThreshold, 0.0001)
	assert.InDelta(t, 0.85, cfg.Moderation.Image.BlockThreshold, 0.0001)
	assert.Equal(t, 5, cfg.Scheduler.MaxAttempts)
	assert.Equal(t, "/srv/attachments", cfg.Storage.Root)
}

func TestLoadConfigVersionMissing(t *testing.T) {
	writeConfig(t, `
[scorer]
base_url = "http://scorer.internal:8500"
token = "secret"
`)

	_, _, err := config.LoadConfig()
	require.ErrorIs(t, err, config.ErrConfigVersionMissing)
}

func TestLoadConfigVersionMismatch(t *testing.T) {
	writeConfig(t, `
version = 99

[scorer]
base_url = "http://scorer.internal:8500"
token = "secret"
`)

	_, _, err := config.LoadConfig()
	require.ErrorIs(t, err, config.ErrConfigVersionMismatch)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *config.Config {
		return &config.Config{
			Version: config.CurrentVersion,
			Scorer: config.Scorer{
				BaseURL: "http://scorer.internal:8500",
				Token:   "secret",
			},
			Moderation: config.Moderation{
				Text:  config.SignalThresholds{FlagThreshold: 0.7, BlockThreshold: 0.9},
				Image: config.SignalThresholds{FlagThreshold: 0.6, BlockThreshold: 0.85},
			},
		}
	}

	tests := []struct {
		name     string
		mutate   func(*config.Config)
		expected error
	}{
		{
			name:   "valid config",
			mutate: func(*config.Config) {},
		},
		{
			name:     "missing scorer base URL",
			mutate:   func(c *config.Config) { c.Scorer.BaseURL = "" },
			expected: config.ErrMissingScorerConfig,
		},
		{
			name:     "missing scorer token",
			mutate:   func(c *config.Config) { c.Scorer.Token = "" },
			expected: config.ErrMissingScorerConfig,
		},
		{
			name:     "flag above block",
			mutate:   func(c *config.Config) { c.Moderation.Text.FlagThreshold = 0.95 },
			expected: config.ErrInvalidThresholds,
		},
		{
			name:     "block above one",
			mutate:   func(c *config.Config) { c.Moderation.Image.BlockThreshold = 1.5 },
			expected: config.ErrInvalidThresholds,
		},
		{
			name:     "negative flag threshold",
			mutate:   func(c *config.Config) { c.Moderation.Text.FlagThreshold = -0.1 },
			expected: config.ErrInvalidThresholds,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.expected == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.expected)
			}
		})
	}
}
