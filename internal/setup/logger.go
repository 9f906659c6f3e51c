package setup

import (
	"fmt"

	"github.com/postsieve/postsieve/internal/setup/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the application logger at the configured level. An empty
// level defaults to info.
func NewLogger(cfg *config.Debug) (*zap.Logger, error) {
	level := zapcore.InfoLevel

	if cfg.LogLevel != "" {
		parsed, err := zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}

		level = parsed
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}
