package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/mailer"
)

type approvalRepository interface {
	GetByID(ctx context.Context, id string) (*models.Approval, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Approval, error)
	CreateWithNotifications(ctx context.Context, approval *models.Approval, notifications []models.Notification) error
	Decide(ctx context.Context, id string, status models.ApprovalStatus, note *string, decidedAt time.Time, notifications []models.Notification) (bool, error)
	SummaryByStatus(ctx context.Context, scope models.SummaryScope) (*models.ApprovalSummary, error)
}

type approvalDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	LatestVersion(ctx context.Context, documentID string) (int, error)
	VersionExists(ctx context.Context, documentID string, version int) (bool, error)
}

type approvalOwnerRepository interface {
	HasRole(ctx context.Context, email, documentID string, roles []models.DocumentRole) (bool, error)
	EmailsByRoles(ctx context.Context, documentID string, roles []models.DocumentRole) ([]string, error)
}

type approvalUserRepository interface {
	EnsureByEmail(ctx context.Context, email string) (*models.User, error)
}

type summaryCache interface {
	Get(ctx context.Context, scope models.SummaryScope) (*models.ApprovalSummary, error)
	Set(ctx context.Context, summary *models.ApprovalSummary) error
	Invalidate(ctx context.Context) error
}

type mailDispatcher interface {
	Dispatch(msg mailer.Message)
}

// ApprovalService owns the approval state machine and its notification
// fan-out. Decisions are gated on document-scoped roles, never on the
// caller's global role.
type ApprovalService struct {
	repo      approvalRepository
	docs      approvalDocumentRepository
	owners    approvalOwnerRepository
	users     approvalUserRepository
	cache     summaryCache
	mail      mailDispatcher
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApprovalService constructs the service. Cache and mail may be nil.
func NewApprovalService(repo approvalRepository, docs approvalDocumentRepository, owners approvalOwnerRepository, users approvalUserRepository, cache summaryCache, mail mailDispatcher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ApprovalService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		repo:      repo,
		docs:      docs,
		owners:    owners,
		users:     users,
		cache:     cache,
		mail:      mail,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// RequestApprovalRequest is the create payload. A nil Version means the
// approval tracks whatever version is latest at decision time.
type RequestApprovalRequest struct {
	Reviewer string  `json:"reviewer" validate:"required,email"`
	Version  *int    `json:"version"`
	Note     *string `json:"note"`
}

// DecideRequest is the decision payload. ReviewerOverride lets the web
// tier record a different acting identity than the session principal.
type DecideRequest struct {
	Status           string  `json:"status" validate:"required"`
	Note             *string `json:"note"`
	ReviewerOverride string  `json:"reviewer_override"`
}

// ApprovalListResult pairs a document's approvals with its current latest
// version so clients can resolve version-null approvals for display.
type ApprovalListResult struct {
	Approvals     []models.Approval `json:"approvals"`
	LatestVersion int               `json:"latest_version"`
}

// Request creates a pending approval and fans out approval_requested
// notifications to the reviewer, the requester and the document's
// owner/approver set, one row per distinct recipient.
func (s *ApprovalService) Request(ctx context.Context, principal *models.Principal, documentID string, req RequestApprovalRequest) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval payload")
	}
	doc, err := s.requireDocument(ctx, documentID)
	if err != nil {
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

	reviewer := strings.ToLower(strings.TrimSpace(req.Reviewer))
	if _, err := s.users.EnsureByEmail(ctx, reviewer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to ensure reviewer")
	}

	approval := &models.Approval{
		DocumentID: documentID,
		Version:    req.Version,
		Reviewer:   reviewer,
		Note:       req.Note,
	}

	versionLabel := s.versionLabel(req.Version)
	fanout := newFanout(models.NotificationApprovalRequested, documentID, req.Version)
	fanout.add(reviewer, fmt.Sprintf("You were asked to review %q%s.", doc.Title, versionLabel))
	fanout.add(principal.Email, fmt.Sprintf("You requested a review of %q%s from %s.", doc.Title, versionLabel, reviewer))
	ownerEmails, err := s.owners.EmailsByRoles(ctx, documentID, models.DecisionRoles())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve owners")
	}
	for _, email := range ownerEmails {
		fanout.add(email, fmt.Sprintf("A review of %q%s was requested from %s.", doc.Title, versionLabel, reviewer))
	}

	if err := s.repo.CreateWithNotifications(ctx, approval, fanout.rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval")
	}

	s.metrics.CountApprovalRequested()
	s.metrics.CountNotifications(len(fanout.rows))
	s.invalidateSummary(ctx)
	s.sendMail(fmt.Sprintf("Review requested: %s", doc.Title),
		fmt.Sprintf("<p>A review of <strong>%s</strong>%s was requested from %s.</p>", doc.Title, versionLabel, reviewer),
		fanout.emails())
	s.logger.Info("approval requested",
		zap.String("document_id", documentID),
		zap.String("approval_id", approval.ID),
		zap.String("reviewer", reviewer),
		zap.Int("recipients", len(fanout.rows)))
	return approval, nil
}

// Decide resolves a pending approval. The caller must hold the owner or
// approver role on this document; a global admin role alone is never
// sufficient. The decision is terminal.
func (s *ApprovalService) Decide(ctx context.Context, principal *models.Principal, documentID, approvalID string, req DecideRequest) (*models.Approval, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if !models.DecisionStatus(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be approved or rejected")
	}
	status := models.ApprovalStatus(req.Status)

	doc, err := s.requireDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	approval, err := s.repo.GetByID(ctx, approvalID)
	if err != nil || approval.DocumentID != documentID {
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "approval not found")
	}

	allowed, err := s.owners.HasRole(ctx, principal.Email, documentID, models.DecisionRoles())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document role")
	}
	if !allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "deciding requires the owner or approver role on this document")
	}

	if approval.Status != models.ApprovalStatusPending {
		return nil, appErrors.Clone(appErrors.ErrDecided, "approval already decided")
	}

	actor := strings.ToLower(strings.TrimSpace(req.ReviewerOverride))
	if actor == "" {
		actor = principal.Email
	}

	versionLabel := s.versionLabel(approval.Version)
	verb := "approved"
	if status == models.ApprovalStatusRejected {
		verb = "rejected"
	}
	fanout := newFanout(models.NotificationApprovalDecided, documentID, approval.Version)
	fanout.add(actor, fmt.Sprintf("You %s %q%s.", verb, doc.Title, versionLabel))
	fanout.add(approval.Reviewer, fmt.Sprintf("The review you were assigned on %q%s was %s by %s.", doc.Title, versionLabel, verb, actor))
	ownerEmails, err := s.owners.EmailsByRoles(ctx, documentID, models.DecisionRoles())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve owners")
	}
	for _, email := range ownerEmails {
		fanout.add(email, fmt.Sprintf("%q%s was %s by %s.", doc.Title, versionLabel, verb, actor))
	}
	for i := range fanout.rows {
		fanout.rows[i].ApprovalID = &approval.ID
	}

	decidedAt := time.Now().UTC()
	decided, err := s.repo.Decide(ctx, approvalID, status, req.Note, decidedAt, fanout.rows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide approval")
	}
	if !decided {
		// A concurrent decider won; the machine is terminal.
		return nil, appErrors.Clone(appErrors.ErrDecided, "approval already decided")
	}

	approval.Status = status
	if req.Note != nil {
		approval.Note = req.Note
	}
	approval.DecidedAt = &decidedAt

	s.metrics.CountApprovalDecided(string(status))
	s.metrics.CountNotifications(len(fanout.rows))
	s.invalidateSummary(ctx)
	s.sendMail(fmt.Sprintf("Review %s: %s", verb, doc.Title),
		fmt.Sprintf("<p><strong>%s</strong>%s was %s by %s.</p>", doc.Title, versionLabel, verb, actor),
		fanout.emails())
	s.logger.Info("approval decided",
		zap.String("document_id", documentID),
		zap.String("approval_id", approvalID),
		zap.String("status", string(status)),
		zap.String("decided_by", actor))
	return approval, nil
}

// List returns a document's approvals with the latest version number so
// version-null approvals can be resolved for display.
func (s *ApprovalService) List(ctx context.Context, documentID string) (*ApprovalListResult, error) {
	if _, err := s.requireDocument(ctx, documentID); err != nil {
		return nil, err
	}
	approvals, err := s.repo.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list approvals")
	}
	latest, err := s.docs.LatestVersion(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve latest version")
	}
	return &ApprovalListResult{Approvals: approvals, LatestVersion: latest}, nil
}

// Summary aggregates approvals per status for the requested scope, backed
// by a short-lived cache.
func (s *ApprovalService) Summary(ctx context.Context, scope string) (*models.ApprovalSummary, error) {
	parsed := models.SummaryScope(scope)
	if scope == "" {
		parsed = models.SummaryScopeAny
	}
	if parsed != models.SummaryScopeAny && parsed != models.SummaryScopeLatest {
		return nil, appErrors.Clone(appErrors.ErrValidation, "scope must be any or latest")
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, parsed); err != nil {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	summary, err := s.repo.SummaryByStatus(ctx, parsed)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to summarize approvals")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, summary); err != nil {
			s.logger.Warn("summary cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}

func (s *ApprovalService) requireDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *ApprovalService) versionLabel(version *int) string {
	if version == nil {
		return ""
	}
	return fmt.Sprintf(" (v%d)", *version)
}

func (s *ApprovalService) invalidateSummary(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

func (s *ApprovalService) sendMail(subject, html string, to []string) {
	if s.mail == nil || len(to) == 0 {
		return
	}
	s.mail.Dispatch(mailer.Message{Subject: subject, HTMLBody: html, To: to})
}

// fanout collects one notification row per distinct recipient for a single
// workflow event. The first phrasing recorded for a recipient wins, so the
// most specific perspective is added first. Blank emails are dropped; a
// recipient is never duplicated within one event, but repeated events do
// produce repeated notifications by design of the log.
type fanout struct {
	eventType  string
	documentID string
	version    *int
	seen       map[string]struct{}
	rows       []models.Notification
}

func newFanout(eventType, documentID string, version *int) *fanout {
	return &fanout{
		eventType:  eventType,
		documentID: documentID,
		version:    version,
		seen:       make(map[string]struct{}),
	}
}

func (f *fanout) add(email, message string) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return
	}
	key := strings.ToLower(trimmed)
	if _, ok := f.seen[key]; ok {
		return
	}
	f.seen[key] = struct{}{}
	docID := f.documentID
	f.rows = append(f.rows, models.Notification{
		TargetEmail: key,
		Type:        f.eventType,
		Message:     message,
		DocumentID:  &docID,
		Version:     f.version,
	})
}

func (f *fanout) emails() []string {
	emails := make([]string, 0, len(f.rows))
	for _, row := range f.rows {
		emails = append(emails, row.TargetEmail)
	}
	return emails
}
