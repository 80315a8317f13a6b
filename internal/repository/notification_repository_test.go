package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyforge/policyforge-api/internal/models"
)

func TestNotificationRepositoryListForEmailUnread(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "target_email", "type", "message", "document_id", "version", "approval_id", "created_at", "read_at"}).
		AddRow("n1", "a@example.com", "approval_requested", "msg", nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery("FROM policy_notifications WHERE target_email = \\$1 AND read_at IS NULL").
		WithArgs("a@example.com").
		WillReturnRows(rows)

	list, err := repo.ListForEmail(context.Background(), "a@example.com", true, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].ReadAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	// Two ids requested, only one row is the caller's and still unread.
	mock.ExpectExec("UPDATE policy_notifications SET read_at").
		WithArgs(sqlmock.AnyArg(), "a@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.MarkRead(context.Background(), []string{"n1", "n2"}, "a@example.com", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkReadEmptyIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	updated, err := repo.MarkRead(context.Background(), nil, "a@example.com", time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryMarkAllRead(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("UPDATE policy_notifications SET read_at").
		WithArgs("a@example.com", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	updated, err := repo.MarkAllRead(context.Background(), "a@example.com", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec("INSERT INTO policy_notifications").
		WillReturnResult(sqlmock.NewResult(0, 1))

	n := &models.Notification{TargetEmail: "a@example.com", Type: models.NotificationApprovalRequested, Message: "msg"}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
