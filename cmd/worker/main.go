package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/postsieve/postsieve/internal/setup"
	"github.com/postsieve/postsieve/internal/worker/moderation"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "worker",
		Usage: "Start postsieve moderation workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Value:   1,
				Usage:   "Number of workers to start",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			runWorkers(ctx, c.Int("workers"))
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return app.Run(ctx, os.Args)
}

// runWorkers starts multiple worker instances against shared dependencies.
func runWorkers(ctx context.Context, count int64) {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup(ctx)

	var wg sync.WaitGroup

	for i := int64(0); i < count; i++ {
		wg.Add(1)

		go func(workerID int64) {
			defer wg.Done()

			workerLogger := app.Logger.Named(fmt.Sprintf("worker_%d", workerID))
			runWorker(ctx, moderation.New(app, workerLogger), workerLogger)
		}(i)
	}

	app.Logger.Info("Started moderation workers", zap.Int64("count", count))
	wg.Wait()
	app.Logger.Info("All workers have finished, exiting")
}

// runWorker runs a single worker in a loop with panic recovery.
func runWorker(ctx context.Context, w *moderation.Worker, logger *zap.Logger) {
	for ctx.Err() == nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Worker execution failed", zap.Any("panic", r))
					logger.Info("Restarting worker in 5 seconds...")
					time.Sleep(5 * time.Second)
				}
			}()

			logger.Info("Starting worker")
			w.Start(ctx)
		}()

		if ctx.Err() == nil {
			logger.Warn("Worker stopped unexpectedly")
			time.Sleep(5 * time.Second)
		}
	}

	logger.Info("Context canceled, worker shut down")
}
