package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/frameworks"
	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/export"
)

type assessmentRepository interface {
	Get(ctx context.Context, orgID *int64, frameworkKey, controlID string) (*models.ControlAssessment, error)
	ListByFramework(ctx context.Context, orgID *int64, frameworkKey string) ([]models.ControlAssessment, error)
	Upsert(ctx context.Context, a *models.ControlAssessment) error
	BulkUpsert(ctx context.Context, items []models.ControlAssessment) error
	CreateLink(ctx context.Context, link *models.ControlLink) error
	ListLinks(ctx context.Context, orgID *int64, frameworkKey, controlID string) ([]models.ControlLink, error)
	DeleteLink(ctx context.Context, id string) error
}

type assessmentDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	VersionExists(ctx context.Context, documentID string, version int) (bool, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// AssessmentService joins the static framework catalog with the stored
// per-control assessments and document links.
type AssessmentService struct {
	repo      assessmentRepository
	docs      assessmentDocumentRepository
	csv       csvRenderer
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAssessmentService constructs the service.
func NewAssessmentService(repo assessmentRepository, docs assessmentDocumentRepository, csv csvRenderer, validate *validator.Validate, logger *zap.Logger) *AssessmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{repo: repo, docs: docs, csv: csv, validator: validate, logger: logger}
}

// UpsertAssessmentRequest sets the team's stance on one control. Nil fields
// clear the stored value.
type UpsertAssessmentRequest struct {
	Status         *string    `json:"status"`
	OwnerUserID    *string    `json:"owner_user_id"`
	Notes          *string    `json:"notes"`
	EvidenceLinks  *string    `json:"evidence_links"`
	LastReviewedAt *time.Time `json:"last_reviewed_at"`
}

// BulkAssessmentItem is one entry of a bulk upsert.
type BulkAssessmentItem struct {
	ControlID string `json:"control_id" validate:"required"`
	UpsertAssessmentRequest
}

// BulkUpsertResult reports what the batch did.
type BulkUpsertResult struct {
	Applied int      `json:"applied"`
	Skipped []string `json:"skipped,omitempty"`
}

// CreateLinkRequest ties a control to a document, optionally pinned to one
// version.
type CreateLinkRequest struct {
	DocumentID string `json:"document_id" validate:"required"`
	Version    *int   `json:"version"`
}

// ControlView merges catalog metadata with the stored assessment, which may
// be nil when the control was never assessed.
type ControlView struct {
	Control    frameworks.Control        `json:"control"`
	Assessment *models.ControlAssessment `json:"assessment,omitempty"`
}

// ListFrameworks returns the catalog metadata.
func (s *AssessmentService) ListFrameworks() []frameworks.Meta {
	return frameworks.List()
}

// GetFramework returns one framework with its controls, optionally filtered
// by a search query and function.
func (s *AssessmentService) GetFramework(key, query, function string) (*frameworks.Framework, error) {
	fw, ok := frameworks.Lookup(key)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown framework")
	}
	fw.Controls = frameworks.FilterControls(fw, query, function)
	return &fw, nil
}

// ListControls returns every catalog control of a framework merged with the
// org's stored assessments.
func (s *AssessmentService) ListControls(ctx context.Context, orgID *int64, frameworkKey string) ([]ControlView, error) {
	fw, ok := frameworks.Lookup(frameworkKey)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown framework")
	}
	stored, err := s.repo.ListByFramework(ctx, orgID, frameworkKey)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assessments")
	}
	byControl := make(map[string]*models.ControlAssessment, len(stored))
	for i := range stored {
		byControl[stored[i].ControlID] = &stored[i]
	}

	views := make([]ControlView, 0, len(fw.Controls))
	for _, control := range fw.Controls {
		views = append(views, ControlView{Control: control, Assessment: byControl[control.ID]})
	}
	return views, nil
}

// Upsert sets the assessment for one control. The control must exist in the
// framework catalog.
func (s *AssessmentService) Upsert(ctx context.Context, orgID *int64, frameworkKey, controlID string, req UpsertAssessmentRequest) (*models.ControlAssessment, error) {
	if err := s.validateControl(frameworkKey, controlID); err != nil {
		return nil, err
	}
	assessment, err := s.buildAssessment(orgID, frameworkKey, controlID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, assessment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to upsert assessment")
	}
	s.logger.Info("assessment upserted",
		zap.String("framework", frameworkKey),
		zap.String("control", controlID))
	return assessment, nil
}

// BulkUpsert applies a batch of assessments in one transaction. Entries
// whose control id is not in the catalog are skipped and reported rather
// than failing the batch.
func (s *AssessmentService) BulkUpsert(ctx context.Context, orgID *int64, frameworkKey string, items []BulkAssessmentItem) (*BulkUpsertResult, error) {
	if _, ok := frameworks.Lookup(frameworkKey); !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown framework")
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "items must not be empty")
	}

	result := &BulkUpsertResult{}
	assessments := make([]models.ControlAssessment, 0, len(items))
	for _, item := range items {
		if item.ControlID == "" || !frameworks.HasControl(frameworkKey, item.ControlID) {
			result.Skipped = append(result.Skipped, item.ControlID)
			continue
		}
		assessment, err := s.buildAssessment(orgID, frameworkKey, item.ControlID, item.UpsertAssessmentRequest)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *assessment)
	}
	if len(assessments) > 0 {
		if err := s.repo.BulkUpsert(ctx, assessments); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk upsert assessments")
		}
	}
	result.Applied = len(assessments)
	return result, nil
}

// CreateLink attaches a document (or one of its versions) to a control as
// evidence. Linking the same tuple twice is a no-op.
func (s *AssessmentService) CreateLink(ctx context.Context, orgID *int64, frameworkKey, controlID string, req CreateLinkRequest) (*models.ControlLink, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid link payload")
	}
	if err := s.validateControl(frameworkKey, controlID); err != nil {
		return nil, err
	}
	if _, err := s.docs.GetByID(ctx, req.DocumentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if req.Version != nil {
		exists, err := s.docs.VersionExists(ctx, req.DocumentID, *req.Version)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check version")
		}
		if !exists {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("version %d does not exist on this document", *req.Version))
		}
	}

	link := &models.ControlLink{
		OrgID:        orgID,
		FrameworkKey: frameworkKey,
		ControlID:    controlID,
		DocumentID:   req.DocumentID,
		Version:      req.Version,
	}
	if err := s.repo.CreateLink(ctx, link); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create control link")
	}
	return link, nil
}

// ListLinks returns the document links recorded for one control.
func (s *AssessmentService) ListLinks(ctx context.Context, orgID *int64, frameworkKey, controlID string) ([]models.ControlLink, error) {
	if err := s.validateControl(frameworkKey, controlID); err != nil {
		return nil, err
	}
	links, err := s.repo.ListLinks(ctx, orgID, frameworkKey, controlID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list control links")
	}
	return links, nil
}

// DeleteLink removes a link by id. Missing links succeed silently.
func (s *AssessmentService) DeleteLink(ctx context.Context, id string) error {
	if err := s.repo.DeleteLink(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete control link")
	}
	return nil
}

// ExportCSV renders the framework's merged control view as a CSV download.
func (s *AssessmentService) ExportCSV(ctx context.Context, orgID *int64, frameworkKey string) ([]byte, string, error) {
	views, err := s.ListControls(ctx, orgID, frameworkKey)
	if err != nil {
		return nil, "", err
	}

	dataset := export.Dataset{
		Headers: []string{"control_id", "title", "function", "status", "notes", "last_reviewed_at"},
	}
	for _, view := range views {
		row := map[string]string{
			"control_id": view.Control.ID,
			"title":      view.Control.Title,
			"function":   view.Control.Function,
		}
		if a := view.Assessment; a != nil {
			if a.Status != nil {
				row["status"] = string(*a.Status)
			}
			if a.Notes != nil {
				row["notes"] = *a.Notes
			}
			if a.LastReviewedAt != nil {
				row["last_reviewed_at"] = a.LastReviewedAt.UTC().Format(time.RFC3339)
			}
		}
		dataset.Rows = append(dataset.Rows, row)
	}

	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, fmt.Sprintf("%s_assessments.csv", frameworkKey), nil
}

func (s *AssessmentService) validateControl(frameworkKey, controlID string) error {
	if _, ok := frameworks.Lookup(frameworkKey); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "unknown framework")
	}
	if !frameworks.HasControl(frameworkKey, controlID) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("control %s is not part of framework %s", controlID, frameworkKey))
	}
	return nil
}

func (s *AssessmentService) buildAssessment(orgID *int64, frameworkKey, controlID string, req UpsertAssessmentRequest) (*models.ControlAssessment, error) {
	var status *models.AssessmentStatus
	if req.Status != nil {
		if !models.ValidAssessmentStatus(*req.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be not_applicable, planned, in_progress or implemented")
		}
		value := models.AssessmentStatus(*req.Status)
		status = &value
	}
	return &models.ControlAssessment{
		OrgID:          orgID,
		FrameworkKey:   frameworkKey,
		ControlID:      controlID,
		Status:         status,
		OwnerUserID:    req.OwnerUserID,
		Notes:          req.Notes,
		EvidenceLinks:  req.EvidenceLinks,
		LastReviewedAt: req.LastReviewedAt,
	}, nil
}
