package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/policyforge/policyforge-api/internal/models"
)

// OwnerRepository provides persistence for document-scoped role grants.
type OwnerRepository struct {
	db *sqlx.DB
}

// NewOwnerRepository creates the repository.
func NewOwnerRepository(db *sqlx.DB) *OwnerRepository {
	return &OwnerRepository{db: db}
}

// ListByDocument returns ownership entries joined with the user directory.
func (r *OwnerRepository) ListByDocument(ctx context.Context, documentID string) ([]models.OwnerEntry, error) {
	const query = `SELECT o.id, o.document_id, o.user_id, o.role, u.email, u.name
FROM policy_document_owners o
JOIN policy_users u ON u.id = o.user_id
WHERE o.document_id = $1
ORDER BY u.email ASC`
	var entries []models.OwnerEntry
	if err := r.db.SelectContext(ctx, &entries, query, documentID); err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	return entries, nil
}

// Upsert inserts the mapping or, when the (document, user) pair already
// exists, updates its role. Idempotent by construction.
func (r *OwnerRepository) Upsert(ctx context.Context, owner *models.DocumentOwner) error {
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	}
	const query = `INSERT INTO policy_document_owners (id, document_id, user_id, role)
VALUES (:id, :document_id, :user_id, :role)
ON CONFLICT (document_id, user_id) DO UPDATE SET role = EXCLUDED.role`
	if _, err := r.db.NamedExecContext(ctx, query, owner); err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

// Delete removes a mapping by entry id. Missing rows are not an error.
func (r *OwnerRepository) Delete(ctx context.Context, documentID, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM policy_document_owners WHERE id = $1 AND document_id = $2`, ownerID, documentID); err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}
	return nil
}

// HasRole reports whether the email holds any of the roles on the document.
// Email comparison is case-insensitive.
func (r *OwnerRepository) HasRole(ctx context.Context, email, documentID string, roles []models.DocumentRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	const query = `SELECT EXISTS (
SELECT 1 FROM policy_document_owners o
JOIN policy_users u ON u.id = o.user_id
WHERE o.document_id = $1 AND LOWER(u.email) = LOWER($2) AND o.role = ANY($3))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, documentID, email, pq.Array(values)); err != nil {
		return false, fmt.Errorf("check document role: %w", err)
	}
	return exists, nil
}

// EmailsByRoles returns the distinct emails holding any of the roles on the
// document, the recipient pool for notification fan-out.
func (r *OwnerRepository) EmailsByRoles(ctx context.Context, documentID string, roles []models.DocumentRole) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	const query = `SELECT DISTINCT u.email
FROM policy_document_owners o
JOIN policy_users u ON u.id = o.user_id
WHERE o.document_id = $1 AND o.role = ANY($2)
ORDER BY u.email ASC`
	var emails []string
	if err := r.db.SelectContext(ctx, &emails, query, documentID, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("list owner emails: %w", err)
	}
	return emails, nil
}
