package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/policyforge/policyforge-api/internal/models"
)

// ApprovalRepository provides persistence for the approval workflow.
// Workflow mutations and their notification fan-out share one transaction
// so an approval can never commit without its notification rows.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository creates the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// GetByID returns an approval by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*models.Approval, error) {
	const query = `SELECT id, document_id, version, reviewer, status, note, requested_at, decided_at
FROM policy_approvals WHERE id = $1`
	var a models.Approval
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByDocument returns a document's approvals, most recent request first.
func (r *ApprovalRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Approval, error) {
	const query = `SELECT id, document_id, version, reviewer, status, note, requested_at, decided_at
FROM policy_approvals WHERE document_id = $1 ORDER BY requested_at DESC`
	var rows []models.Approval
	if err := r.db.SelectContext(ctx, &rows, query, documentID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return rows, nil
}

// CreateWithNotifications inserts the pending approval and its fan-out
// notification rows atomically.
func (r *ApprovalRepository) CreateWithNotifications(ctx context.Context, approval *models.Approval, notifications []models.Notification) error {
	if approval.ID == "" {
		approval.ID = uuid.NewString()
	}
	if approval.RequestedAt.IsZero() {
		approval.RequestedAt = time.Now().UTC()
	}
	approval.Status = models.ApprovalStatusPending

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin request approval: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO policy_approvals (id, document_id, version, reviewer, status, note, requested_at)
VALUES (:id, :document_id, :version, :reviewer, :status, :note, :requested_at)`
	if _, err := tx.NamedExecContext(ctx, query, approval); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}

	for i := range notifications {
		notifications[i].ApprovalID = &approval.ID
		if err := insertNotification(ctx, tx, &notifications[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit request approval: %w", err)
	}
	return nil
}

// Decide flips a pending approval to its terminal status and writes the
// fan-out rows in the same transaction. The status guard in the UPDATE
// enforces at-most-one decision: a second decider sees zero rows affected.
func (r *ApprovalRepository) Decide(ctx context.Context, id string, status models.ApprovalStatus, note *string, decidedAt time.Time, notifications []models.Notification) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin decide approval: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE policy_approvals SET status = $2, note = COALESCE($3, note), decided_at = $4
WHERE id = $1 AND status = 'pending'`
	res, err := tx.ExecContext(ctx, query, id, status, note, decidedAt)
	if err != nil {
		return false, fmt.Errorf("decide approval: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide approval: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	for i := range notifications {
		if err := insertNotification(ctx, tx, &notifications[i]); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit decide approval: %w", err)
	}
	return true, nil
}

type summaryRow struct {
	Status models.ApprovalStatus `db:"status"`
	Count  int                   `db:"count"`
}

// SummaryByStatus aggregates approvals per status. The latest scope keeps
// version-null approvals unconditionally (global approvals never age out)
// and version-specific approvals only when they target the document's
// current max version.
func (r *ApprovalRepository) SummaryByStatus(ctx context.Context, scope models.SummaryScope) (*models.ApprovalSummary, error) {
	query := `SELECT status, COUNT(*) AS count FROM policy_approvals GROUP BY status`
	if scope == models.SummaryScopeLatest {
		query = `SELECT a.status, COUNT(*) AS count FROM policy_approvals a
WHERE a.version IS NULL
   OR a.version = (SELECT MAX(v.version) FROM policy_versions v WHERE v.document_id = a.document_id)
GROUP BY a.status`
	}

	var rows []summaryRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("summary by status: %w", err)
	}

	summary := &models.ApprovalSummary{Scope: scope}
	for _, row := range rows {
		switch row.Status {
		case models.ApprovalStatusPending:
			summary.Pending = row.Count
		case models.ApprovalStatusApproved:
			summary.Approved = row.Count
		case models.ApprovalStatusRejected:
			summary.Rejected = row.Count
		}
	}
	return summary, nil
}
