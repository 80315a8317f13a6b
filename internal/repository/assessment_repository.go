package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/policyforge/policyforge-api/internal/models"
)

// AssessmentRepository provides persistence for per-control assessments and
// their document links.
type AssessmentRepository struct {
	db *sqlx.DB
}

// NewAssessmentRepository creates the repository.
func NewAssessmentRepository(db *sqlx.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Get returns the assessment row for one control, sql.ErrNoRows when unset.
func (r *AssessmentRepository) Get(ctx context.Context, orgID *int64, frameworkKey, controlID string) (*models.ControlAssessment, error) {
	const query = `SELECT id, org_id, framework_key, control_id, status, owner_user_id, notes, evidence_links, last_reviewed_at, created_at, updated_at
FROM org_control_assessments
WHERE org_id IS NOT DISTINCT FROM $1 AND framework_key = $2 AND control_id = $3`
	var a models.ControlAssessment
	if err := r.db.GetContext(ctx, &a, query, orgID, frameworkKey, controlID); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByFramework returns every assessment stored for a framework.
func (r *AssessmentRepository) ListByFramework(ctx context.Context, orgID *int64, frameworkKey string) ([]models.ControlAssessment, error) {
	const query = `SELECT id, org_id, framework_key, control_id, status, owner_user_id, notes, evidence_links, last_reviewed_at, created_at, updated_at
FROM org_control_assessments
WHERE org_id IS NOT DISTINCT FROM $1 AND framework_key = $2
ORDER BY control_id ASC`
	var rows []models.ControlAssessment
	if err := r.db.SelectContext(ctx, &rows, query, orgID, frameworkKey); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return rows, nil
}

const assessmentUpsertQuery = `INSERT INTO org_control_assessments
(id, org_id, framework_key, control_id, status, owner_user_id, notes, evidence_links, last_reviewed_at, created_at, updated_at)
VALUES (:id, :org_id, :framework_key, :control_id, :status, :owner_user_id, :notes, :evidence_links, :last_reviewed_at, :created_at, :updated_at)
ON CONFLICT (org_id, framework_key, control_id) DO UPDATE SET
status = EXCLUDED.status,
owner_user_id = EXCLUDED.owner_user_id,
notes = EXCLUDED.notes,
evidence_links = EXCLUDED.evidence_links,
last_reviewed_at = EXCLUDED.last_reviewed_at,
updated_at = EXCLUDED.updated_at`

// Upsert creates or replaces the assessment keyed by (org, framework, control).
func (r *AssessmentRepository) Upsert(ctx context.Context, a *models.ControlAssessment) error {
	prepareAssessment(a)
	if _, err := r.db.NamedExecContext(ctx, assessmentUpsertQuery, a); err != nil {
		return fmt.Errorf("upsert assessment: %w", err)
	}
	return nil
}

// BulkUpsert applies a batch of assessments in one transaction.
func (r *AssessmentRepository) BulkUpsert(ctx context.Context, items []models.ControlAssessment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range items {
		prepareAssessment(&items[i])
		if _, err := tx.NamedExecContext(ctx, assessmentUpsertQuery, &items[i]); err != nil {
			return fmt.Errorf("bulk upsert assessment %s: %w", items[i].ControlID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk upsert: %w", err)
	}
	return nil
}

func prepareAssessment(a *models.ControlAssessment) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
}

// CreateLink ties a control to a document version; duplicates are ignored.
func (r *AssessmentRepository) CreateLink(ctx context.Context, link *models.ControlLink) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	const query = `INSERT INTO org_control_links (id, org_id, framework_key, control_id, document_id, version)
VALUES (:id, :org_id, :framework_key, :control_id, :document_id, :version)
ON CONFLICT (org_id, framework_key, control_id, document_id, version) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, link); err != nil {
		return fmt.Errorf("create control link: %w", err)
	}
	return nil
}

// ListLinks returns the document links recorded for one control.
func (r *AssessmentRepository) ListLinks(ctx context.Context, orgID *int64, frameworkKey, controlID string) ([]models.ControlLink, error) {
	const query = `SELECT id, org_id, framework_key, control_id, document_id, version
FROM org_control_links
WHERE org_id IS NOT DISTINCT FROM $1 AND framework_key = $2 AND control_id = $3
ORDER BY document_id ASC`
	var links []models.ControlLink
	if err := r.db.SelectContext(ctx, &links, query, orgID, frameworkKey, controlID); err != nil {
		return nil, fmt.Errorf("list control links: %w", err)
	}
	return links, nil
}

// DeleteLink removes a link by id. Missing rows are not an error.
func (r *AssessmentRepository) DeleteLink(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM org_control_links WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete control link: %w", err)
	}
	return nil
}
