package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/policyforge/policyforge-api/internal/models"
)

// NotificationRepository provides persistence for workflow notifications.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// insertNotification writes one notification row using any executor, so the
// approval workflow can append rows inside its own transaction.
func insertNotification(ctx context.Context, ext sqlx.ExtContext, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO policy_notifications (id, target_email, type, message, document_id, version, approval_id, created_at)
VALUES (:id, :target_email, :type, :message, :document_id, :version, :approval_id, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, ext, query, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// Create appends a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return insertNotification(ctx, r.db, n)
}

// ListForEmail returns notifications addressed to the email, newest first.
func (r *NotificationRepository) ListForEmail(ctx context.Context, email string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `SELECT id, target_email, type, message, document_id, version, approval_id, created_at, read_at
FROM policy_notifications WHERE target_email = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var rows []models.Notification
	if err := r.db.SelectContext(ctx, &rows, query, email); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return rows, nil
}

// MarkRead stamps read_at on the caller's unread notifications among ids.
// Rows owned by other users or already read are silently skipped.
func (r *NotificationRepository) MarkRead(ctx context.Context, ids []string, email string, readAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE policy_notifications SET read_at = $3
WHERE id = ANY($1) AND target_email = $2 AND read_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, pq.Array(ids), email, readAt)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return affected, nil
}

// MarkAllRead stamps read_at on every unread notification for the email.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, email string, readAt time.Time) (int64, error) {
	const query = `UPDATE policy_notifications SET read_at = $2
WHERE target_email = $1 AND read_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, email, readAt)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return affected, nil
}
