package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/policyforge/policyforge-api/internal/models"
)

// CommentRepository provides persistence for the append-only comment log.
type CommentRepository struct {
	db *sqlx.DB
}

// NewCommentRepository creates the repository.
func NewCommentRepository(db *sqlx.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

// Create appends a comment.
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO policy_comments (id, document_id, version, author, body, created_at)
VALUES (:id, :document_id, :version, :author, :body, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	return nil
}

// ListByDocument returns comments oldest first, optionally filtered to one
// version.
func (r *CommentRepository) ListByDocument(ctx context.Context, documentID string, version *int) ([]models.Comment, error) {
	query := `SELECT id, document_id, version, author, body, created_at
FROM policy_comments WHERE document_id = $1`
	args := []interface{}{documentID}
	if version != nil {
		query += ` AND version = $2`
		args = append(args, *version)
	}
	query += ` ORDER BY created_at ASC`

	var comments []models.Comment
	if err := r.db.SelectContext(ctx, &comments, query, args...); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}
