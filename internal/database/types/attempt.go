package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/postsieve/postsieve/internal/database/types/enum"
)

// ModerationAttempt is one immutable ledger row per scored signal per
// orchestrator run. Rows are appended for failed attempts too, with
// ErrorCode set and empty scores, so every attempt stays auditable.
// Retries append new rows; nothing ever updates or deletes them.
type ModerationAttempt struct {
	ID         uuid.UUID       `bun:",pk,type:uuid" json:"id"`
	EntityType enum.EntityType `bun:",notnull"      json:"entityType"`
	EntityID   uint64          `bun:",notnull"      json:"entityId"`
	Decision   enum.Decision   `bun:",notnull"      json:"decision"`

	Scores        map[string]float64 `bun:"type:jsonb,notnull" json:"scores"`
	Labels        []string           `bun:"type:jsonb,notnull" json:"labels"`
	ModelVersions map[string]string  `bun:"type:jsonb,notnull" json:"modelVersions"`

	LatencyMS int64 `bun:",notnull" json:"latencyMs"`
	// ErrorCode is present only when the attempt failed before a real
	// decision was produced; the Decision column then holds the flagged
	// placeholder.
	ErrorCode string `bun:",nullzero" json:"errorCode,omitempty"`

	// RequestHash fingerprints the normalized input so attempts can be
	// correlated without storing raw content.
	RequestHash    string `bun:",notnull" json:"requestHash"`
	RequestExcerpt string `bun:",notnull" json:"requestExcerpt"`

	CreatedAt time.Time `bun:",notnull,default:current_timestamp" json:"createdAt"`
}
