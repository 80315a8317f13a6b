package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
)

type notificationRepository interface {
	ListForEmail(ctx context.Context, email string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, ids []string, email string, readAt time.Time) (int64, error)
	MarkAllRead(ctx context.Context, email string, readAt time.Time) (int64, error)
}

// NotificationService exposes the per-user notification feed. Every
// operation is scoped to the authenticated principal's email; there is no
// way to read or mutate another user's rows.
type NotificationService struct {
	repo   notificationRepository
	logger *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(repo notificationRepository, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, logger: logger}
}

// MarkReadRequest names the notification ids to stamp as read.
type MarkReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// MarkReadResult reports how many rows actually transitioned.
type MarkReadResult struct {
	Updated int64 `json:"updated"`
}

// List returns the principal's notifications, newest first. Status filters
// to unread only; anything other than "unread" or empty returns the full
// feed.
func (s *NotificationService) List(ctx context.Context, principal *models.Principal, status string, limit int) ([]models.Notification, error) {
	if status != "" && status != string(models.NotificationStatusAll) && status != string(models.NotificationStatusUnread) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be all or unread")
	}
	unreadOnly := status == string(models.NotificationStatusUnread)
	rows, err := s.repo.ListForEmail(ctx, principal.Email, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return rows, nil
}

// MarkRead stamps read_at on the principal's notifications. Ids that do not
// exist, belong to someone else, or are already read are skipped silently;
// the result counts only rows that actually changed. Read is one-way.
func (s *NotificationService) MarkRead(ctx context.Context, principal *models.Principal, req MarkReadRequest) (*MarkReadResult, error) {
	if !req.All && len(req.IDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "provide ids or set all")
	}

	now := time.Now().UTC()
	var (
		updated int64
		err     error
	)
	if req.All {
		updated, err = s.repo.MarkAllRead(ctx, principal.Email, now)
	} else {
		updated, err = s.repo.MarkRead(ctx, req.IDs, principal.Email, now)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}

	s.logger.Debug("notifications marked read",
		zap.String("email", principal.Email),
		zap.Int64("updated", updated))
	return &MarkReadResult{Updated: updated}, nil
}
