package database

import (
	"github.com/postsieve/postsieve/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	post    *models.PostModel
	attempt *models.AttemptModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		post:    models.NewPost(db, logger),
		attempt: models.NewAttempt(db, logger),
	}
}

// Post returns the post model repository.
func (r *Repository) Post() *models.PostModel {
	return r.post
}

// Attempt returns the moderation attempt model repository.
func (r *Repository) Attempt() *models.AttemptModel {
	return r.attempt
}
