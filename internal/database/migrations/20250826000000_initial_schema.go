package migrations

import (
	"context"
	"fmt"

	"github.com/postsieve/postsieve/internal/database/types"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.Post)(nil),
			(*types.ModerationAttempt)(nil),
		}

		for _, model := range models {
			if _, err := db.NewCreateTable().
				Model(model).
				IfNotExists().
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}

		// The ledger is queried per post when reviewers audit a decision.
		if _, err := db.NewCreateIndex().
			Model((*types.ModerationAttempt)(nil)).
			Index("idx_moderation_attempts_entity").
			Column("entity_type", "entity_id").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create attempt entity index: %w", err)
		}

		if _, err := db.NewCreateIndex().
			Model((*types.Post)(nil)).
			Index("idx_posts_moderation_status").
			Column("moderation_status").
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create post status index: %w", err)
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		models := []any{
			(*types.ModerationAttempt)(nil),
			(*types.Post)(nil),
		}

		for _, model := range models {
			if _, err := db.NewDropTable().
				Model(model).
				IfExists().
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", model, err)
			}
		}

		return nil
	})
}
