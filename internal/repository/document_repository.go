package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/policyforge/policyforge-api/internal/models"
)

const uniqueViolation = "23505"

// IsUniqueViolation reports whether the error is a PostgreSQL unique
// constraint violation, the signal a concurrent writer won a version race.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// DocumentRepository provides persistence for policy documents and their
// version history.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts a document together with its initial version in one
// transaction so a document can never exist without version 1.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document, initial *models.Version) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.DocumentStatusDraft
	}

	initial.ID = uuid.NewString()
	initial.DocumentID = doc.ID
	initial.Version = 1
	initial.CreatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create document: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const docQuery = `INSERT INTO policy_documents (id, org_id, template_key, title, status, created_at, updated_at)
VALUES (:id, :org_id, :template_key, :title, :status, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, docQuery, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}

	const verQuery = `INSERT INTO policy_versions (id, document_id, version, html, params_json, created_at)
VALUES (:id, :document_id, :version, :html, :params_json, :created_at)`
	if _, err := tx.NamedExecContext(ctx, verQuery, initial); err != nil {
		return fmt.Errorf("create initial version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create document: %w", err)
	}
	return nil
}

// GetByID returns a document by identifier.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, org_id, template_key, title, status, created_at, updated_at
FROM policy_documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// List returns documents ordered by most recent activity.
func (r *DocumentRepository) List(ctx context.Context, limit int) ([]models.Document, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, org_id, template_key, title, status, created_at, updated_at
FROM policy_documents ORDER BY updated_at DESC LIMIT %d`, limit)
	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// LatestVersion returns the highest version number for a document, 0 when
// the document has no versions.
func (r *DocumentRepository) LatestVersion(ctx context.Context, documentID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) FROM policy_versions WHERE document_id = $1`
	var latest int
	if err := r.db.GetContext(ctx, &latest, query, documentID); err != nil {
		return 0, fmt.Errorf("latest version: %w", err)
	}
	return latest, nil
}

// ListVersions returns a document's versions in ascending order.
func (r *DocumentRepository) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	const query = `SELECT id, document_id, version, html, params_json, created_at
FROM policy_versions WHERE document_id = $1 ORDER BY version ASC`
	var versions []models.Version
	if err := r.db.SelectContext(ctx, &versions, query, documentID); err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	return versions, nil
}

// GetVersion returns one version of a document.
func (r *DocumentRepository) GetVersion(ctx context.Context, documentID string, version int) (*models.Version, error) {
	const query = `SELECT id, document_id, version, html, params_json, created_at
FROM policy_versions WHERE document_id = $1 AND version = $2`
	var v models.Version
	if err := r.db.GetContext(ctx, &v, query, documentID, version); err != nil {
		return nil, err
	}
	return &v, nil
}

// VersionExists reports whether a version number exists on a document.
func (r *DocumentRepository) VersionExists(ctx context.Context, documentID string, version int) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM policy_versions WHERE document_id = $1 AND version = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, documentID, version); err != nil {
		return false, fmt.Errorf("version exists: %w", err)
	}
	return exists, nil
}

// AddVersion appends the next version for a document. The document row is
// locked for the duration of the transaction so the version number is
// assigned serially; the unique (document_id, version) constraint turns any
// remaining race into a retryable conflict.
func (r *DocumentRepository) AddVersion(ctx context.Context, ver *models.Version) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add version: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var docID string
	if err := tx.GetContext(ctx, &docID, `SELECT id FROM policy_documents WHERE id = $1 FOR UPDATE`, ver.DocumentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock document: %w", err)
	}

	var latest int
	if err := tx.GetContext(ctx, &latest, `SELECT COALESCE(MAX(version), 0) FROM policy_versions WHERE document_id = $1`, ver.DocumentID); err != nil {
		return fmt.Errorf("latest version: %w", err)
	}

	ver.ID = uuid.NewString()
	ver.Version = latest + 1
	ver.CreatedAt = time.Now().UTC()

	const verQuery = `INSERT INTO policy_versions (id, document_id, version, html, params_json, created_at)
VALUES (:id, :document_id, :version, :html, :params_json, :created_at)`
	if _, err := tx.NamedExecContext(ctx, verQuery, ver); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE policy_documents SET updated_at = $2 WHERE id = $1`, ver.DocumentID, ver.CreatedAt); err != nil {
		return fmt.Errorf("bump document updated_at: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add version: %w", err)
	}
	return nil
}

// UpdateMetadata applies a partial title/status update.
func (r *DocumentRepository) UpdateMetadata(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE policy_documents SET title = :title, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return nil
}

// Delete removes a document. Versions, comments and approvals cascade via
// foreign keys; notifications reference documents without a constraint and
// are kept as history.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM policy_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// DeleteVersion removes a single version. Remaining versions are never
// renumbered, so deletion may leave gaps in the sequence.
func (r *DocumentRepository) DeleteVersion(ctx context.Context, documentID string, version int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM policy_versions WHERE document_id = $1 AND version = $2`, documentID, version)
	if err != nil {
		return false, fmt.Errorf("delete version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete version: %w", err)
	}
	if affected > 0 {
		if _, err := r.db.ExecContext(ctx, `UPDATE policy_documents SET updated_at = $2 WHERE id = $1`, documentID, time.Now().UTC()); err != nil {
			return true, fmt.Errorf("bump document updated_at: %w", err)
		}
	}
	return affected > 0, nil
}
