// Package setup bootstraps the application's shared dependencies in order
// and tears them down in reverse.
package setup

import (
	"context"
	"log"

	"github.com/postsieve/postsieve/internal/database"
	"github.com/postsieve/postsieve/internal/queue"
	"github.com/postsieve/postsieve/internal/redis"
	"github.com/postsieve/postsieve/internal/scorer"
	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/postsieve/postsieve/internal/storage"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config  // Application configuration
	Logger       *zap.Logger     // Main application logger
	DB           database.Client // Database connection pool
	RedisManager *redis.Manager  // Redis connection manager
	StatusClient rueidis.Client  // Redis client for worker status reporting
	Queue        *queue.Manager  // Moderation job scheduler
	Scorer       *scorer.Client  // Remote scoring service client
	Storage      storage.Storage // Attachment disk
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context) (*App, error) {
	cfg, configDir, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging comes first to capture setup issues.
	logger, err := NewLogger(&cfg.Debug)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("configDir", configDir))

	db, err := database.NewConnection(ctx, &cfg.PostgreSQL, logger, true)
	if err != nil {
		return nil, err
	}

	redisManager := redis.NewManager(&cfg.Redis, logger)

	queueClient, err := redisManager.GetClient(redis.QueueDBIndex)
	if err != nil {
		return nil, err
	}

	statusClient, err := redisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		RedisManager: redisManager,
		StatusClient: statusClient,
		Queue:        queue.NewManager(queueClient, &cfg.Scheduler, logger),
		Scorer:       scorer.NewClient(&cfg.Scorer, logger),
		Storage:      storage.NewLocal(cfg.Storage.Root),
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(_ context.Context) {
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	// Close Redis connections last as other components might need it during cleanup.
	s.RedisManager.Close()
}
