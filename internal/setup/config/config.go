package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var (
	ErrConfigFileNotFound    = errors.New("could not find config file in any config path")
	ErrConfigVersionMissing  = errors.New("config file is missing version field")
	ErrConfigVersionMismatch = errors.New("config file version mismatch")
	ErrInvalidThresholds     = errors.New("invalid moderation thresholds")
	ErrMissingScorerConfig   = errors.New("missing scorer configuration")
)

// CurrentVersion is the expected version of the config file.
const CurrentVersion = 1

// Config represents the entire application configuration.
type Config struct {
	// Version of the config file.
	Version    int        `koanf:"version"`
	Debug      Debug      `koanf:"debug"`
	PostgreSQL PostgreSQL `koanf:"postgresql"`
	Redis      Redis      `koanf:"redis"`
	Scorer     Scorer     `koanf:"scorer"`
	Moderation Moderation `koanf:"moderation"`
	Scheduler  Scheduler  `koanf:"scheduler"`
	Storage    Storage    `koanf:"storage"`
}

// Debug contains debug-related configuration.
type Debug struct {
	// Log level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`
}

// PostgreSQL contains database connection configuration.
type PostgreSQL struct {
	// Database hostname.
	Host string `koanf:"host"`
	// Database port.
	Port int `koanf:"port"`
	// Database username.
	User string `koanf:"user"`
	// Database password.
	Password string `koanf:"password"`
	// Database name.
	DBName string `koanf:"db_name"`
	// Maximum open connections.
	MaxOpenConns int `koanf:"max_open_conns"`
	// Maximum idle connections.
	MaxIdleConns int `koanf:"max_idle_conns"`
	// Connection lifetime in minutes.
	MaxLifetime int `koanf:"max_lifetime"`
	// Idle timeout in minutes.
	MaxIdleTime int `koanf:"max_idle_time"`
}

// Redis contains Redis connection configuration.
type Redis struct {
	// Redis hostname.
	Host string `koanf:"host"`
	// Redis port.
	Port int `koanf:"port"`
	// Redis username.
	Username string `koanf:"username"`
	// Redis password.
	Password string `koanf:"password"`
}

// Scorer contains configuration for the remote scoring service.
type Scorer struct {
	// Base URL of the scoring service.
	BaseURL string `koanf:"base_url"`
	// Shared-secret token for service-to-service authentication.
	Token string `koanf:"token"`
	// Connect timeout in milliseconds.
	ConnectTimeout int `koanf:"connect_timeout"`
	// Total per-request timeout in milliseconds.
	RequestTimeout int `koanf:"request_timeout"`
	// Maximum transport-level retries per call.
	MaxRetries uint64 `koanf:"max_retries"`
	// Fixed delay between transport retries in milliseconds.
	RetryDelay int `koanf:"retry_delay"`
}

// SignalThresholds holds the decision cutoffs for one signal type.
type SignalThresholds struct {
	// Scores at or above this value are flagged.
	FlagThreshold float64 `koanf:"flag_threshold"`
	// Scores at or above this value are blocked.
	BlockThreshold float64 `koanf:"block_threshold"`
}

// Moderation contains decision policy configuration.
type Moderation struct {
	// Global switch; when disabled, posts stay in pending evaluation.
	Enabled bool `koanf:"enabled"`
	// Thresholds for the text signal.
	Text SignalThresholds `koanf:"text"`
	// Thresholds for the image signal.
	Image SignalThresholds `koanf:"image"`
}

// Scheduler contains job scheduling configuration.
type Scheduler struct {
	// Maximum moderation attempts per post before it is parked for review.
	MaxAttempts int `koanf:"max_attempts"`
	// Initial retry backoff in seconds.
	InitialBackoff int `koanf:"initial_backoff"`
	// Maximum retry backoff in seconds.
	MaxBackoff int `koanf:"max_backoff"`
	// Number of jobs claimed per worker iteration.
	BatchSize int `koanf:"batch_size"`
	// Maximum concurrent orchestrator runs per worker.
	Concurrency int `koanf:"concurrency"`
	// Idle poll interval in seconds when the queue is empty.
	PollInterval int `koanf:"poll_interval"`
}

// Storage contains attachment storage configuration.
type Storage struct {
	// Root directory of the local attachment disk.
	Root string `koanf:"root"`
}

// LoadConfig loads the configuration from the specified file.
// Returns the config along with the used config directory.
func LoadConfig() (*Config, string, error) {
	k := koanf.New(".")

	// Get user's home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, "", fmt.Errorf("failed to get home directory: %w", err)
	}

	// List search paths
	configPaths := []string{
		".postsieve",
		homeDir + "/.postsieve/config",
		"/etc/postsieve/config",
		"/app/config",
		"config",
		".",
	}

	var usedConfigPath string

	for _, path := range configPaths {
		configPath := path + "/config.toml"
		if err := k.Load(file.Provider(configPath), toml.Parser()); err == nil {
			usedConfigPath = path
			break
		}
	}

	if usedConfigPath == "" {
		return nil, "", fmt.Errorf("%w: config.toml", ErrConfigFileNotFound)
	}

	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, "", fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := checkConfigVersion(config.Version); err != nil {
		return nil, "", err
	}

	if err := config.Validate(); err != nil {
		return nil, "", err
	}

	return &config, usedConfigPath, nil
}

// Validate checks that the loaded configuration is usable. Threshold
// validation happens here, once at process start, so the decision engine can
// assume well-formed cutoffs.
func (c *Config) Validate() error {
	if c.Scorer.BaseURL == "" || c.Scorer.Token == "" {
		return fmt.Errorf("%w: base_url and token must be set", ErrMissingScorerConfig)
	}

	for name, t := range map[string]SignalThresholds{
		"text":  c.Moderation.Text,
		"image": c.Moderation.Image,
	} {
		if t.FlagThreshold < 0 || t.BlockThreshold > 1 || t.FlagThreshold > t.BlockThreshold {
			return fmt.Errorf("%w: %s requires 0 <= flag <= block <= 1 (got flag=%.2f block=%.2f)",
				ErrInvalidThresholds, name, t.FlagThreshold, t.BlockThreshold)
		}
	}

	return nil
}

// checkConfigVersion checks if the config file version is correct.
func checkConfigVersion(current int) error {
	if current == 0 {
		return fmt.Errorf("%w: config.toml", ErrConfigVersionMissing)
	}

	if current != CurrentVersion {
		return fmt.Errorf("%w: config.toml (got: %d, expected: %d)",
			ErrConfigVersionMismatch, current, CurrentVersion)
	}

	return nil
}
