package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/postsieve/postsieve/internal/redis"
	"github.com/postsieve/postsieve/internal/setup"
	"github.com/postsieve/postsieve/internal/worker/core"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

var errNoPostIDs = errors.New("at least one post ID is required")

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "enqueue",
		Usage: "Manage the postsieve moderation queue",
		Commands: []*cli.Command{
			{
				Name:      "post",
				Usage:     "Schedule posts for moderation",
				ArgsUsage: "<postID>...",
				Action:    enqueuePosts,
			},
			{
				Name:   "status",
				Usage:  "Show queue depth and active workers",
				Action: showStatus,
			},
			{
				Name:      "attempts",
				Usage:     "List the moderation attempt ledger for a post",
				ArgsUsage: "<postID>",
				Action:    listAttempts,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func enqueuePosts(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() == 0 {
		return errNoPostIDs
	}

	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	for _, arg := range c.Args().Slice() {
		postID, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post ID %q: %w", arg, err)
		}

		queued, err := app.Queue.Enqueue(ctx, postID)
		if err != nil {
			return err
		}

		if queued {
			app.Logger.Info("Enqueued post", zap.Uint64("postID", postID))
		} else {
			app.Logger.Info("Post already queued", zap.Uint64("postID", postID))
		}
	}

	return nil
}

func showStatus(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	pending, err := app.Queue.PendingCount(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Pending jobs: %d\n", pending)

	statusClient, err := app.RedisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return err
	}

	statuses, err := core.NewMonitor(statusClient, app.Logger).GetAllStatuses(ctx)
	if err != nil {
		return err
	}

	for _, status := range statuses {
		state := "healthy"
		if !status.IsHealthy {
			state = "unhealthy"
		}

		if time.Since(status.LastSeen) > core.StaleThreshold {
			state = "stale"
		}

		fmt.Printf("Worker %s (%s): %s - %s\n",
			status.WorkerID, status.WorkerType, state, status.CurrentTask)
	}

	return nil
}

func listAttempts(ctx context.Context, c *cli.Command) error {
	if c.Args().Len() != 1 {
		return errNoPostIDs
	}

	postID, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid post ID %q: %w", c.Args().First(), err)
	}

	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Cleanup(ctx)

	attempts, err := app.DB.Model().Attempt().ListByPost(ctx, postID)
	if err != nil {
		return err
	}

	for _, attempt := range attempts {
		line := fmt.Sprintf("%s %s %s", attempt.CreatedAt.Format(time.RFC3339),
			attempt.EntityType, attempt.Decision)
		if attempt.ErrorCode != "" {
			line += " error=" + attempt.ErrorCode
		}

		fmt.Println(line)
	}

	return nil
}
