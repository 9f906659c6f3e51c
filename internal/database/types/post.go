package types

import (
	"time"

	"github.com/postsieve/postsieve/internal/database/types/enum"
)

// SignalSummary is the per-signal slice of a combined decision, stored
// inside the post's moderation summary for reviewer context.
type SignalSummary struct {
	Decision enum.Decision `json:"decision"`
	Score    float64       `json:"score"`
	Labels   []string      `json:"labels,omitempty"`
	// Skipped is set when the signal was never scored, e.g. a non-image
	// attachment.
	Skipped bool `json:"skipped,omitempty"`
}

// ModerationSummary is the structured snapshot of the latest combined
// decision, written to the post row in the same atomic update as the status.
type ModerationSummary struct {
	Combined   enum.Decision  `json:"combined"`
	Text       SignalSummary  `json:"text"`
	Attachment *SignalSummary `json:"attachment,omitempty"`
	// NeedsReview marks posts whose automated moderation never completed
	// cleanly within the scheduler's attempt budget.
	NeedsReview bool      `json:"needsReview,omitempty"`
	Note        string    `json:"note,omitempty"`
	EvaluatedAt time.Time `json:"evaluatedAt"`
}

// AttachmentModeration is the attachment-specific projection of a decision.
// It exists on the post row only while the post carries an image attachment;
// a post without one stores NULL, which keeps the "no attachment" invariant
// at the type level instead of four independently nullable columns.
type AttachmentModeration struct {
	Status   enum.PostStatus `json:"status"`
	Summary  SignalSummary   `json:"summary"`
	Blurred  bool            `json:"blurred"`
	HiddenAt *time.Time      `json:"hiddenAt,omitempty"`
}

// Post is the moderation-relevant projection of a post. The pipeline reads
// the identity and content columns and writes only the moderation columns.
type Post struct {
	ID             uint64 `bun:",pk"       json:"id"`
	Content        string `bun:",notnull"  json:"content"`
	AttachmentPath string `bun:",nullzero" json:"attachmentPath"`
	AttachmentMime string `bun:",nullzero" json:"attachmentMime"`

	ModerationStatus  enum.PostStatus    `bun:",notnull,default:0"     json:"moderationStatus"`
	ModerationSummary *ModerationSummary `bun:"type:jsonb,nullzero"    json:"moderationSummary"`
	IsHidden          bool               `bun:",notnull,default:false" json:"isHidden"`
	HiddenReason      string             `bun:",nullzero"              json:"hiddenReason"`
	HiddenAt          *time.Time         `bun:",nullzero"              json:"hiddenAt"`

	Attachment *AttachmentModeration `bun:"type:jsonb,nullzero" json:"attachment"`

	CreatedAt time.Time `bun:",notnull,default:current_timestamp" json:"createdAt"`
}

// HasAttachment reports whether the post carries any attachment at all.
// Whether that attachment is an image is decided at scoring time.
func (p *Post) HasAttachment() bool {
	return p.AttachmentPath != ""
}
