package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
)

type commentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByDocument(ctx context.Context, documentID string, version *int) ([]models.Comment, error)
}

type commentDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	VersionExists(ctx context.Context, documentID string, version int) (bool, error)
}

// CommentService manages the append-only discussion log on documents.
type CommentService struct {
	repo      commentRepository
	docs      commentDocumentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(repo commentRepository, docs commentDocumentRepository, validate *validator.Validate, logger *zap.Logger) *CommentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{repo: repo, docs: docs, validator: validate, logger: logger}
}

// CreateCommentRequest is the append payload. Version pins the comment to
// one version; nil attaches it to the document as a whole.
type CreateCommentRequest struct {
	Body    string `json:"body" validate:"required"`
	Version *int   `json:"version"`
}

// Create appends a comment authored by the principal. Comments are never
// edited or deleted afterwards.
func (s *CommentService) Create(ctx context.Context, principal *models.Principal, documentID string, req CreateCommentRequest) (*models.Comment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid comment payload")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "comment body must not be blank")
	}
	if err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}
	if req.Version != nil {
		exists, err := s.docs.VersionExists(ctx, documentID, *req.Version)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check version")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("version %d does not exist on this document", *req.Version))
		}
	}

	author := principal.Email
	if author == "" {
		author = principal.SubjectID
	}
	comment := &models.Comment{
		DocumentID: documentID,
		Version:    req.Version,
		Author:     author,
		Body:       req.Body,
	}
	if err := s.repo.Create(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create comment")
	}

	s.logger.Info("comment appended",
		zap.String("document_id", documentID),
		zap.String("comment_id", comment.ID))
	return comment, nil
}

// List returns a document's comments oldest first, optionally filtered to a
// single version.
func (s *CommentService) List(ctx context.Context, documentID string, version *int) ([]models.Comment, error) {
	if err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListByDocument(ctx, documentID, version)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list comments")
	}
	return comments, nil
}

func (s *CommentService) requireDocument(ctx context.Context, documentID string) error {
	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return nil
}
