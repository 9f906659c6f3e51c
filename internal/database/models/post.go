package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/postsieve/postsieve/internal/database/dbretry"
	"github.com/postsieve/postsieve/internal/database/types"
	"github.com/postsieve/postsieve/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// HiddenReasonBlocked is the reason recorded on posts hidden by the pipeline.
const HiddenReasonBlocked = "blocked_by_automated_moderation"

// PostModel handles database operations for post records.
type PostModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewPost creates a new post model.
func NewPost(db *bun.DB, logger *zap.Logger) *PostModel {
	return &PostModel{
		db:     db,
		logger: logger.Named("db_post"),
	}
}

// Get fetches one post by ID. A deleted post returns (nil, nil) so callers
// can treat it as already handled.
func (m *PostModel) Get(ctx context.Context, id uint64) (*types.Post, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Post, error) {
		post := new(types.Post)

		err := m.db.NewSelect().
			Model(post).
			Where("id = ?", id).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed to get post %d: %w", id, err)
		}

		return post, nil
	})
}

// Create inserts a post in the pending state.
func (m *PostModel) Create(ctx context.Context, post *types.Post) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(post).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create post: %w", err)
		}

		return nil
	})
}

// ApplyDecision finalizes a moderation run in one atomic update: status,
// summary snapshot, visibility, and the attachment projection move together.
// The pending-status guard makes duplicate deliveries first-write-wins.
func (m *PostModel) ApplyDecision(
	ctx context.Context, id uint64,
	summary *types.ModerationSummary, attachment *types.AttachmentModeration,
) error {
	status := enum.PostStatusFromDecision(summary.Combined)
	blocked := status == enum.PostStatusBlocked

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		post := &types.Post{
			ModerationStatus:  status,
			ModerationSummary: summary,
			IsHidden:          blocked,
			Attachment:        attachment,
		}
		if blocked {
			post.HiddenReason = HiddenReasonBlocked
			post.HiddenAt = &summary.EvaluatedAt
		}

		res, err := m.db.NewUpdate().
			Model(post).
			Column("moderation_status", "moderation_summary", "is_hidden",
				"hidden_reason", "hidden_at", "attachment").
			Where("id = ?", id).
			Where("moderation_status = ?", enum.PostStatusPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to apply decision to post %d: %w", id, err)
		}

		if rows, err := res.RowsAffected(); err == nil && rows == 0 {
			m.logger.Debug("Decision already applied by another run",
				zap.Uint64("postID", id))
		}

		return nil
	})
}

// MarkNeedsReview parks a post whose automated moderation never completed
// within the scheduler's attempt budget: flagged for a human, attachment
// blurred as a precaution, nothing hidden outright.
func (m *PostModel) MarkNeedsReview(ctx context.Context, id uint64, note string) error {
	post, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	if post == nil || post.ModerationStatus != enum.PostStatusPending {
		return nil
	}

	now := time.Now().UTC()
	summary := &types.ModerationSummary{
		Combined:    enum.DecisionFlagged,
		Text:        types.SignalSummary{Decision: enum.DecisionFlagged},
		NeedsReview: true,
		Note:        note,
		EvaluatedAt: now,
	}

	var attachment *types.AttachmentModeration

	if post.HasAttachment() {
		summary.Attachment = &types.SignalSummary{Decision: enum.DecisionFlagged}
		attachment = &types.AttachmentModeration{
			Status:  enum.PostStatusFlagged,
			Summary: *summary.Attachment,
			Blurred: true,
		}
	}

	if err := m.ApplyDecision(ctx, id, summary, attachment); err != nil {
		return err
	}

	m.logger.Warn("Parked post for human review",
		zap.Uint64("postID", id),
		zap.String("note", note))

	return nil
}
