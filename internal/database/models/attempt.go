package models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/postsieve/postsieve/internal/database/dbretry"
	"github.com/postsieve/postsieve/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// AttemptModel handles database operations for the moderation attempt ledger.
// The ledger is append-only; nothing in the codebase updates or deletes rows.
type AttemptModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewAttempt creates a new attempt model.
func NewAttempt(db *bun.DB, logger *zap.Logger) *AttemptModel {
	return &AttemptModel{
		db:     db,
		logger: logger.Named("db_attempt"),
	}
}

// Append inserts one ledger row, assigning an ID when the caller left it
// zero.
func (m *AttemptModel) Append(ctx context.Context, attempt *types.ModerationAttempt) error {
	if attempt.ID == uuid.Nil {
		attempt.ID = uuid.New()
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(attempt).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to append attempt: %w", err)
		}

		return nil
	})
}

// ListByPost returns every ledger row for a post across both signals, oldest
// first, for reviewers auditing a decision.
func (m *AttemptModel) ListByPost(ctx context.Context, postID uint64) ([]*types.ModerationAttempt, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.ModerationAttempt, error) {
		var attempts []*types.ModerationAttempt

		err := m.db.NewSelect().
			Model(&attempts).
			Where("entity_id = ?", postID).
			Order("created_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts for post %d: %w", postID, err)
		}

		return attempts, nil
	})
}
