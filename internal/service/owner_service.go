package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
)

type ownerRepository interface {
	ListByDocument(ctx context.Context, documentID string) ([]models.OwnerEntry, error)
	Upsert(ctx context.Context, owner *models.DocumentOwner) error
	Delete(ctx context.Context, documentID, ownerID string) error
}

type ownerDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type ownerUserRepository interface {
	EnsureByEmail(ctx context.Context, email string) (*models.User, error)
}

// OwnerService manages document-scoped role grants. Grants are keyed by
// email so owners can be registered before the person ever signs in.
type OwnerService struct {
	repo      ownerRepository
	docs      ownerDocumentRepository
	users     ownerUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOwnerService constructs the service.
func NewOwnerService(repo ownerRepository, docs ownerDocumentRepository, users ownerUserRepository, validate *validator.Validate, logger *zap.Logger) *OwnerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OwnerService{repo: repo, docs: docs, users: users, validator: validate, logger: logger}
}

// SetOwnerRequest registers or re-roles a user on a document.
type SetOwnerRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// List returns the ownership entries for a document.
func (s *OwnerService) List(ctx context.Context, documentID string) ([]models.OwnerEntry, error) {
	if err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list owners")
	}
	return entries, nil
}

// Set grants a document role to the email, creating the directory entry on
// first reference. Re-granting the same pair updates the role in place.
func (s *OwnerService) Set(ctx context.Context, documentID string, req SetOwnerRequest) (*models.OwnerEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid owner payload")
	}
	if !models.ValidDocumentRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "role must be owner, editor, viewer or approver")
	}
	if err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.users.EnsureByEmail(ctx, email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure user")
	}

	owner := &models.DocumentOwner{
		DocumentID: documentID,
		UserID:     user.ID,
		Role:       models.DocumentRole(req.Role),
	}
	if err := s.repo.Upsert(ctx, owner); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register owner")
	}

	s.logger.Info("document role granted",
		zap.String("document_id", documentID),
		zap.String("email", email),
		zap.String("role", req.Role))
	return &models.OwnerEntry{
		ID:         owner.ID,
		DocumentID: documentID,
		UserID:     user.ID,
		Role:       owner.Role,
		Email:      user.Email,
		Name:       user.Name,
	}, nil
}

// Remove deletes an ownership entry. Removing an absent entry succeeds.
func (s *OwnerService) Remove(ctx context.Context, documentID, ownerID string) error {
	if err := s.requireDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, documentID, ownerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove owner")
	}
	return nil
}

func (s *OwnerService) requireDocument(ctx context.Context, documentID string) error {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return nil
}
