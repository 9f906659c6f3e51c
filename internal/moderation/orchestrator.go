package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postsieve/postsieve/internal/database/types"
	"github.com/postsieve/postsieve/internal/database/types/enum"
	"github.com/postsieve/postsieve/internal/scorer"
	"github.com/postsieve/postsieve/internal/setup/config"
	"github.com/postsieve/postsieve/internal/storage"
	"github.com/postsieve/postsieve/pkg/utils"
	"go.uber.org/zap"
)

// excerptLimit bounds the audit excerpt stored per ledger row.
const excerptLimit = 120

// PostStore is the post persistence the orchestrator depends on.
type PostStore interface {
	Get(ctx context.Context, id uint64) (*types.Post, error)
	ApplyDecision(
		ctx context.Context, id uint64,
		summary *types.ModerationSummary, attachment *types.AttachmentModeration,
	) error
}

// AttemptStore appends immutable rows to the attempt ledger.
type AttemptStore interface {
	Append(ctx context.Context, attempt *types.ModerationAttempt) error
}

// Scorer is the remote scoring boundary.
type Scorer interface {
	ScoreText(ctx context.Context, text, lang string) (*scorer.ProviderResult, error)
	ScoreImage(ctx context.Context, localPath string) (*scorer.ProviderResult, error)
}

// Orchestrator runs the full moderation pass for one post: score every
// signal, record each attempt in the ledger, combine the verdicts, and apply
// the result to the post in a single atomic update. A run against an already
// moderated post is a no-op, which makes redelivery by the scheduler safe.
type Orchestrator struct {
	posts    PostStore
	attempts AttemptStore
	scorer   Scorer
	storage  storage.Storage
	text     Thresholds
	image    Thresholds
	logger   *zap.Logger
}

// NewOrchestrator creates an orchestrator with the configured decision
// policy.
func NewOrchestrator(
	posts PostStore, attempts AttemptStore, sc Scorer, st storage.Storage,
	cfg *config.Moderation, logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		posts:    posts,
		attempts: attempts,
		scorer:   sc,
		storage:  st,
		text:     NewThresholds(cfg.Text),
		image:    NewThresholds(cfg.Image),
		logger:   logger.Named("orchestrator"),
	}
}

// Run moderates one post end to end. Errors are classified so the caller can
// tell retryable failures from dead ends.
func (o *Orchestrator) Run(ctx context.Context, postID uint64) error {
	post, err := o.posts.Get(ctx, postID)
	if err != nil {
		return Permanent("storage_error", fmt.Errorf("failed to load post: %w", err))
	}

	if post == nil {
		o.logger.Debug("Post no longer exists, skipping", zap.Uint64("postID", postID))
		return nil
	}

	// A post that already left pending was moderated by an earlier delivery
	// of the same job.
	if post.ModerationStatus != enum.PostStatusPending {
		o.logger.Debug("Post already moderated, skipping",
			zap.Uint64("postID", postID),
			zap.String("status", post.ModerationStatus.String()))

		return nil
	}

	textSummary, err := o.scoreText(ctx, post)
	if err != nil {
		return err
	}

	var attachmentSummary *types.SignalSummary

	if post.HasAttachment() {
		attachmentSummary, err = o.scoreAttachment(ctx, post)
		if err != nil {
			return err
		}
	}

	decisions := []enum.Decision{textSummary.Decision}
	if attachmentSummary != nil {
		decisions = append(decisions, attachmentSummary.Decision)
	}

	now := time.Now().UTC()
	summary := &types.ModerationSummary{
		Combined:    Combine(decisions...),
		Text:        *textSummary,
		Attachment:  attachmentSummary,
		EvaluatedAt: now,
	}

	// Skipped attachments never get a moderation projection; the skip is
	// already recorded in the summary, and the projection exists only for
	// image attachments that were actually scored.
	var attachment *types.AttachmentModeration

	if attachmentSummary != nil && !attachmentSummary.Skipped {
		status := enum.PostStatusFromDecision(attachmentSummary.Decision)

		attachment = &types.AttachmentModeration{
			Status:  status,
			Summary: *attachmentSummary,
			Blurred: status == enum.PostStatusBlocked,
		}
		if status == enum.PostStatusBlocked {
			attachment.HiddenAt = &now
		}
	}

	if err := o.posts.ApplyDecision(ctx, post.ID, summary, attachment); err != nil {
		return Permanent("storage_error", fmt.Errorf("failed to apply decision: %w", err))
	}

	o.logger.Info("Moderated post",
		zap.Uint64("postID", post.ID),
		zap.String("decision", summary.Combined.String()),
		zap.Bool("hasAttachment", attachmentSummary != nil))

	return nil
}

// scoreText evaluates the text signal and appends its ledger row. Empty text
// is decided locally without a remote call but still leaves an audit row.
func (o *Orchestrator) scoreText(ctx context.Context, post *types.Post) (*types.SignalSummary, error) {
	normalized := utils.CompressAllWhitespace(post.Content)
	hash := utils.ContentHash(normalized)
	excerpt := utils.TruncateRunes(normalized, excerptLimit)

	if strings.TrimSpace(post.Content) == "" {
		if err := o.appendAttempt(ctx, &types.ModerationAttempt{
			EntityType:  enum.EntityTypePostText,
			EntityID:    post.ID,
			Decision:    enum.DecisionOk,
			RequestHash: hash,
		}); err != nil {
			return nil, err
		}

		return &types.SignalSummary{Decision: enum.DecisionOk}, nil
	}

	start := time.Now()

	result, err := o.scorer.ScoreText(ctx, post.Content, "")
	if err != nil {
		return nil, o.recordScoringFailure(ctx, enum.EntityTypePostText, post.ID,
			hash, excerpt, time.Since(start), classifyScorerError(err))
	}

	score := HighestScore(result.Scores)
	decision := o.text.Evaluate(score)

	if err := o.appendAttempt(ctx, &types.ModerationAttempt{
		EntityType:     enum.EntityTypePostText,
		EntityID:       post.ID,
		Decision:       decision,
		Scores:         result.Scores,
		Labels:         result.Labels,
		ModelVersions:  result.ModelVersions,
		LatencyMS:      time.Since(start).Milliseconds(),
		RequestHash:    hash,
		RequestExcerpt: excerpt,
	}); err != nil {
		return nil, err
	}

	return &types.SignalSummary{
		Decision: decision,
		Score:    score,
		Labels:   result.Labels,
	}, nil
}

// scoreAttachment evaluates the attachment signal. Non-image attachments are
// skipped with an ok verdict and no ledger row since nothing was scored;
// failures always leave a ledger row before raising.
func (o *Orchestrator) scoreAttachment(ctx context.Context, post *types.Post) (*types.SignalSummary, error) {
	exists, err := o.storage.Exists(ctx, post.AttachmentPath)
	if err != nil {
		return nil, o.recordAttachmentFailure(ctx, post, Transient("attachment_error",
			fmt.Errorf("failed to check attachment %s: %w", post.AttachmentPath, err)))
	}

	if !exists {
		// The upload may still be in flight; the scheduler retries until
		// the attempt budget parks the post for review.
		return nil, o.recordAttachmentFailure(ctx, post, Transient("attachment_missing",
			fmt.Errorf("%w: %s", storage.ErrNotExist, post.AttachmentPath)))
	}

	isImage, err := isImageAttachment(ctx, o.storage, post)
	if err != nil {
		return nil, o.recordAttachmentFailure(ctx, post, Transient("attachment_error", err))
	}

	if !isImage {
		o.logger.Debug("Skipping non-image attachment",
			zap.Uint64("postID", post.ID),
			zap.String("mime", post.AttachmentMime))

		return &types.SignalSummary{Decision: enum.DecisionOk, Skipped: true}, nil
	}

	var summary *types.SignalSummary

	err = storage.WithLocalFile(ctx, o.storage, post.AttachmentPath, func(localPath string) error {
		hash, err := utils.FileHash(localPath)
		if err != nil {
			return o.recordAttachmentFailure(ctx, post, Transient("attachment_error",
				fmt.Errorf("failed to hash attachment: %w", err)))
		}

		start := time.Now()

		result, err := o.scorer.ScoreImage(ctx, localPath)
		if err != nil {
			return o.recordScoringFailure(ctx, enum.EntityTypePostMedia, post.ID,
				hash, utils.TruncateRunes(post.AttachmentPath, excerptLimit),
				time.Since(start), classifyScorerError(err))
		}

		score := HighestScore(result.Scores)
		decision := o.image.Evaluate(score)

		if err := o.appendAttempt(ctx, &types.ModerationAttempt{
			EntityType:     enum.EntityTypePostMedia,
			EntityID:       post.ID,
			Decision:       decision,
			Scores:         result.Scores,
			Labels:         result.Labels,
			ModelVersions:  result.ModelVersions,
			LatencyMS:      time.Since(start).Milliseconds(),
			RequestHash:    hash,
			RequestExcerpt: utils.TruncateRunes(post.AttachmentPath, excerptLimit),
		}); err != nil {
			return err
		}

		summary = &types.SignalSummary{
			Decision: decision,
			Score:    score,
			Labels:   result.Labels,
		}

		return nil
	})
	if err != nil {
		// Failures from inside the callback already left their ledger row;
		// staging failures from the storage layer have not.
		var failure *Failure
		if errors.As(err, &failure) {
			return nil, err
		}

		return nil, o.recordAttachmentFailure(ctx, post, Transient("attachment_error", err))
	}

	return summary, nil
}

// recordScoringFailure appends the failed-attempt ledger row and returns the
// classified failure. A ledger write problem here is logged rather than
// masking the original failure.
func (o *Orchestrator) recordScoringFailure(
	ctx context.Context, entityType enum.EntityType, postID uint64,
	hash, excerpt string, latency time.Duration, failure *Failure,
) error {
	attempt := &types.ModerationAttempt{
		EntityType: entityType,
		EntityID:   postID,
		// Failed attempts record the conservative placeholder verdict; the
		// post itself stays pending until a run completes.
		Decision:       enum.DecisionFlagged,
		LatencyMS:      latency.Milliseconds(),
		ErrorCode:      failure.Code,
		RequestHash:    hash,
		RequestExcerpt: excerpt,
	}

	if err := o.appendAttempt(ctx, attempt); err != nil {
		o.logger.Error("Failed to record failed attempt",
			zap.Uint64("postID", postID),
			zap.String("entityType", entityType.String()),
			zap.Error(err))
	}

	return failure
}

// recordAttachmentFailure appends the media-signal ledger row for failures
// that happen before the remote call, such as a missing or unreadable file.
// Every retry of a broken attachment stays visible to auditors this way.
func (o *Orchestrator) recordAttachmentFailure(
	ctx context.Context, post *types.Post, failure *Failure,
) error {
	return o.recordScoringFailure(ctx, enum.EntityTypePostMedia, post.ID,
		utils.ContentHash(post.AttachmentPath),
		utils.TruncateRunes(post.AttachmentPath, excerptLimit), 0, failure)
}

// appendAttempt writes one ledger row, normalizing nil collections so the
// JSONB columns never hold SQL NULL.
func (o *Orchestrator) appendAttempt(ctx context.Context, attempt *types.ModerationAttempt) error {
	if attempt.Scores == nil {
		attempt.Scores = map[string]float64{}
	}

	if attempt.Labels == nil {
		attempt.Labels = []string{}
	}

	if attempt.ModelVersions == nil {
		attempt.ModelVersions = map[string]string{}
	}

	if err := o.attempts.Append(ctx, attempt); err != nil {
		return Permanent("storage_error", fmt.Errorf("failed to append attempt: %w", err))
	}

	return nil
}

// classifyScorerError maps a scoring client error onto the failure taxonomy.
func classifyScorerError(err error) *Failure {
	var serr *scorer.Error
	if errors.As(err, &serr) {
		if serr.Retryable() {
			return Transient(serr.Code, err)
		}

		return Permanent(serr.Code, err)
	}

	return Transient("scorer_error", err)
}
