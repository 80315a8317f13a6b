package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	"github.com/policyforge/policyforge-api/internal/repository"
	"github.com/policyforge/policyforge-api/internal/templates"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/export"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document, initial *models.Version) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, limit int) ([]models.Document, error)
	LatestVersion(ctx context.Context, documentID string) (int, error)
	ListVersions(ctx context.Context, documentID string) ([]models.Version, error)
	GetVersion(ctx context.Context, documentID string, version int) (*models.Version, error)
	AddVersion(ctx context.Context, ver *models.Version) error
	UpdateMetadata(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	DeleteVersion(ctx context.Context, documentID string, version int) (bool, error)
}

type pdfRenderer interface {
	Render(doc export.PolicyPDF) ([]byte, error)
}

// DocumentService owns the document store: lifecycle metadata plus the
// immutable, gapless version history.
type DocumentService struct {
	repo      documentRepository
	pdf       pdfRenderer
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(repo documentRepository, pdf pdfRenderer, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, pdf: pdf, metrics: metrics, validator: validate, logger: logger}
}

// DocumentSummary is the list view of a document.
type DocumentSummary struct {
	models.Document
	LatestVersion int `json:"latest_version"`
}

// UpdateDocumentRequest is a partial metadata update. Nil fields are left
// untouched; a blank title is ignored rather than erasing the current one.
type UpdateDocumentRequest struct {
	Title  *string `json:"title"`
	Status *string `json:"status"`
}

// Create renders the template and stores the document with version 1 in a
// single transaction.
func (s *DocumentService) Create(ctx context.Context, params templates.DraftParams) (*DocumentSummary, error) {
	if err := s.validator.Struct(params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft parameters")
	}
	tmpl, ok := templates.Lookup(params.TemplateKey)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown template_key")
	}

	html, err := templates.Render(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot parameters")
	}

	doc := &models.Document{
		TemplateKey: params.TemplateKey,
		Title:       tmpl.Title,
		Status:      models.DocumentStatusDraft,
	}
	initial := &models.Version{HTML: html, ParamsJSON: string(paramsJSON)}
	if err := s.repo.Create(ctx, doc, initial); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.metrics.CountDocumentCreated()
	s.logger.Info("document created", zap.String("document_id", doc.ID), zap.String("template", doc.TemplateKey))
	return &DocumentSummary{Document: *doc, LatestVersion: 1}, nil
}

// List returns recently updated documents with their latest version number.
func (s *DocumentService) List(ctx context.Context, limit int) ([]DocumentSummary, error) {
	docs, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	result := make([]DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		latest, err := s.repo.LatestVersion(ctx, doc.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve latest version")
		}
		result = append(result, DocumentSummary{Document: doc, LatestVersion: latest})
	}
	return result, nil
}

// Get returns a document with its full version list.
func (s *DocumentService) Get(ctx context.Context, id string) (*models.DocumentWithVersions, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	versions, err := s.repo.ListVersions(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	latest := 0
	for _, v := range versions {
		if v.Version > latest {
			latest = v.Version
		}
	}
	return &models.DocumentWithVersions{Document: *doc, LatestVersion: latest, Versions: versions}, nil
}

// ListVersions returns the version history oldest first.
func (s *DocumentService) ListVersions(ctx context.Context, documentID string) ([]models.Version, error) {
	if _, err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}
	versions, err := s.repo.ListVersions(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list versions")
	}
	return versions, nil
}

// GetVersion returns one version with content and parameter snapshot.
func (s *DocumentService) GetVersion(ctx context.Context, documentID string, version int) (*models.Version, error) {
	v, err := s.repo.GetVersion(ctx, documentID, version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	return v, nil
}

// AddVersion appends the next version rendered from fresh parameters. The
// template must match the document; version numbering is serialized by the
// storage transaction and a lost race is retried once before surfacing a
// conflict.
func (s *DocumentService) AddVersion(ctx context.Context, documentID string, params templates.DraftParams) (*models.Version, error) {
	if err := s.validator.Struct(params); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid draft parameters")
	}
	doc, err := s.requireDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if params.TemplateKey != doc.TemplateKey {
		return nil, appErrors.Clone(appErrors.ErrValidation, "template_key must match the document's template")
	}

	html, err := templates.Render(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render template")
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot parameters")
	}

	return s.appendVersion(ctx, documentID, html, string(paramsJSON))
}

// Rollback creates a new version whose content and parameters are copied
// from a historical one. History itself is never rewritten.
func (s *DocumentService) Rollback(ctx context.Context, documentID string, toVersion int) (*models.Version, error) {
	if _, err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}
	source, err := s.repo.GetVersion(ctx, documentID, toVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "version not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load version")
	}
	v, err := s.appendVersion(ctx, documentID, source.HTML, source.ParamsJSON)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document rolled back",
		zap.String("document_id", documentID),
		zap.Int("from_version", toVersion),
		zap.Int("new_version", v.Version))
	return v, nil
}

func (s *DocumentService) appendVersion(ctx context.Context, documentID, html, paramsJSON string) (*models.Version, error) {
	ver := &models.Version{DocumentID: documentID, HTML: html, ParamsJSON: paramsJSON}
	err := s.repo.AddVersion(ctx, ver)
	if repository.IsUniqueViolation(err) {
		// Lost the version-number race; the retry recomputes max+1.
		ver = &models.Version{DocumentID: documentID, HTML: html, ParamsJSON: paramsJSON}
		err = s.repo.AddVersion(ctx, ver)
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "concurrent version creation")
		}
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create version")
	}
	s.metrics.CountVersionCreated()
	return ver, nil
}

// UpdateMetadata applies a partial title/status change.
func (s *DocumentService) UpdateMetadata(ctx context.Context, documentID string, req UpdateDocumentRequest) (*models.Document, error) {
	doc, err := s.requireDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if req.Title != nil && *req.Title != "" {
		doc.Title = *req.Title
	}
	if req.Status != nil {
		if !models.ValidDocumentStatus(*req.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", *req.Status))
		}
		doc.Status = models.DocumentStatus(*req.Status)
	}
	if err := s.repo.UpdateMetadata(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	return doc, nil
}

// Delete removes the document and, through storage cascades, its versions,
// comments and approvals.
func (s *DocumentService) Delete(ctx context.Context, documentID string) error {
	if _, err := s.requireDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, documentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	return nil
}

// DeleteVersion removes one version without renumbering the rest.
func (s *DocumentService) DeleteVersion(ctx context.Context, documentID string, version int) error {
	if _, err := s.requireDocument(ctx, documentID); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteVersion(ctx, documentID, version)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete version")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "version not found")
	}
	return nil
}

// ExportVersionPDF renders one version as a downloadable PDF.
func (s *DocumentService) ExportVersionPDF(ctx context.Context, documentID string, version int) ([]byte, string, error) {
	doc, err := s.requireDocument(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	v, err := s.GetVersion(ctx, documentID, version)
	if err != nil {
		return nil, "", err
	}
	payload, err := s.pdf.Render(export.PolicyPDF{
		Title:    doc.Title,
		Version:  v.Version,
		Status:   string(doc.Status),
		HTML:     v.HTML,
		Footnote: fmt.Sprintf("Generated from template %s", doc.TemplateKey),
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	filename := fmt.Sprintf("%s_v%d.pdf", doc.TemplateKey, v.Version)
	return payload, filename, nil
}

func (s *DocumentService) requireDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}
