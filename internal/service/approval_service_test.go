package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/mailer"
)

type mockApprovalRepo struct {
	approval      *models.Approval
	approvals     []models.Approval
	created       *models.Approval
	createdRows   []models.Notification
	decided       bool
	decideOK      bool
	decidedRows   []models.Notification
	decidedStatus models.ApprovalStatus
	summary       *models.ApprovalSummary
	summaryCalls  int
}

func (m *mockApprovalRepo) GetByID(_ context.Context, id string) (*models.Approval, error) {
	if m.approval == nil || m.approval.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.approval, nil
}

func (m *mockApprovalRepo) ListByDocument(_ context.Context, _ string) ([]models.Approval, error) {
	return m.approvals, nil
}

func (m *mockApprovalRepo) CreateWithNotifications(_ context.Context, approval *models.Approval, notifications []models.Notification) error {
	approval.ID = "apr-1"
	approval.Status = models.ApprovalStatusPending
	approval.RequestedAt = time.Now().UTC()
	m.created = approval
	m.createdRows = notifications
	return nil
}

func (m *mockApprovalRepo) Decide(_ context.Context, _ string, status models.ApprovalStatus, _ *string, _ time.Time, notifications []models.Notification) (bool, error) {
	m.decided = true
	m.decidedStatus = status
	m.decidedRows = notifications
	return m.decideOK, nil
}

func (m *mockApprovalRepo) SummaryByStatus(_ context.Context, scope models.SummaryScope) (*models.ApprovalSummary, error) {
	m.summaryCalls++
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.ApprovalSummary{Scope: scope}, nil
}

type mockApprovalDocs struct {
	doc    *models.Document
	latest int
	exists bool
}

func (m *mockApprovalDocs) GetByID(_ context.Context, id string) (*models.Document, error) {
	if m.doc == nil || m.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.doc, nil
}

func (m *mockApprovalDocs) LatestVersion(_ context.Context, _ string) (int, error) {
	return m.latest, nil
}

func (m *mockApprovalDocs) VersionExists(_ context.Context, _ string, _ int) (bool, error) {
	return m.exists, nil
}

type mockApprovalOwners struct {
	hasRole bool
	emails  []string
}

func (m *mockApprovalOwners) HasRole(_ context.Context, _, _ string, _ []models.DocumentRole) (bool, error) {
	return m.hasRole, nil
}

func (m *mockApprovalOwners) EmailsByRoles(_ context.Context, _ string, _ []models.DocumentRole) ([]string, error) {
	return m.emails, nil
}

type mockApprovalUsers struct {
	ensured []string
}

func (m *mockApprovalUsers) EnsureByEmail(_ context.Context, email string) (*models.User, error) {
	m.ensured = append(m.ensured, email)
	return &models.User{ID: "u-" + email, Email: email, Role: models.RoleViewer}, nil
}

type stubSummaryCache struct {
	stored      map[models.SummaryScope]*models.ApprovalSummary
	invalidated int
}

func (s *stubSummaryCache) Get(_ context.Context, scope models.SummaryScope) (*models.ApprovalSummary, error) {
	if s.stored == nil {
		return nil, nil
	}
	return s.stored[scope], nil
}

func (s *stubSummaryCache) Set(_ context.Context, summary *models.ApprovalSummary) error {
	if s.stored == nil {
		s.stored = make(map[models.SummaryScope]*models.ApprovalSummary)
	}
	s.stored[summary.Scope] = summary
	return nil
}

func (s *stubSummaryCache) Invalidate(_ context.Context) error {
	s.invalidated++
	s.stored = nil
	return nil
}

type stubMail struct {
	messages []mailer.Message
}

func (s *stubMail) Dispatch(msg mailer.Message) {
	s.messages = append(s.messages, msg)
}

func approvalPrincipal(email string) *models.Principal {
	return &models.Principal{SubjectID: "sub-1", Email: email, GlobalRole: models.RoleOwner, OrgID: 1}
}

func TestApprovalServiceRequestFanOut(t *testing.T) {
	repo := &mockApprovalRepo{}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Access Control Policy"}, exists: true}
	owners := &mockApprovalOwners{emails: []string{"owner@example.com", "reviewer@example.com"}}
	users := &mockApprovalUsers{}
	cache := &stubSummaryCache{}
	mail := &stubMail{}
	svc := NewApprovalService(repo, docs, owners, users, cache, mail, nil, nil, zap.NewNop())

	approval, err := svc.Request(context.Background(), approvalPrincipal("requester@example.com"), "doc-1", RequestApprovalRequest{Reviewer: "Reviewer@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusPending, approval.Status)
	assert.Equal(t, "reviewer@example.com", approval.Reviewer)
	assert.Equal(t, []string{"reviewer@example.com"}, users.ensured)

	// reviewer, requester and owner each get exactly one row; the reviewer
	// appearing again in the owner pool is not duplicated.
	require.Len(t, repo.createdRows, 3)
	recipients := make(map[string]int)
	for _, row := range repo.createdRows {
		recipients[row.TargetEmail]++
		assert.Equal(t, models.NotificationApprovalRequested, row.Type)
	}
	assert.Equal(t, map[string]int{"reviewer@example.com": 1, "requester@example.com": 1, "owner@example.com": 1}, recipients)

	assert.Equal(t, 1, cache.invalidated)
	require.Len(t, mail.messages, 1)
	assert.Len(t, mail.messages[0].To, 3)
}

func TestApprovalServiceRequestSingleRecipient(t *testing.T) {
	// Reviewer, requester and sole owner are the same person: one row only.
	repo := &mockApprovalRepo{}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Audit Logging Policy"}}
	owners := &mockApprovalOwners{emails: []string{"solo@example.com"}}
	svc := NewApprovalService(repo, docs, owners, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Request(context.Background(), approvalPrincipal("solo@example.com"), "doc-1", RequestApprovalRequest{Reviewer: "solo@example.com"})
	require.NoError(t, err)
	require.Len(t, repo.createdRows, 1)
	assert.Equal(t, "solo@example.com", repo.createdRows[0].TargetEmail)
}

func TestApprovalServiceRequestUnknownVersion(t *testing.T) {
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}, exists: false}
	svc := NewApprovalService(&mockApprovalRepo{}, docs, &mockApprovalOwners{}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	version := 9
	_, err := svc.Request(context.Background(), approvalPrincipal("a@example.com"), "doc-1", RequestApprovalRequest{Reviewer: "r@example.com", Version: &version})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceRequestDocumentNotFound(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{}, &mockApprovalDocs{}, &mockApprovalOwners{}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Request(context.Background(), approvalPrincipal("a@example.com"), "missing", RequestApprovalRequest{Reviewer: "r@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideRequiresDocumentRole(t *testing.T) {
	repo := &mockApprovalRepo{approval: &models.Approval{ID: "apr-1", DocumentID: "doc-1", Status: models.ApprovalStatusPending, Reviewer: "r@example.com"}}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}}
	owners := &mockApprovalOwners{hasRole: false}
	svc := NewApprovalService(repo, docs, owners, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	// A global admin without a document role is still rejected.
	principal := &models.Principal{Email: "admin@example.com", GlobalRole: models.RoleAdmin, OrgID: 1}
	_, err := svc.Decide(context.Background(), principal, "doc-1", "apr-1", DecideRequest{Status: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, repo.decided)
}

func TestApprovalServiceDecideTerminal(t *testing.T) {
	decidedAt := time.Now().UTC()
	repo := &mockApprovalRepo{approval: &models.Approval{ID: "apr-1", DocumentID: "doc-1", Status: models.ApprovalStatusApproved, Reviewer: "r@example.com", DecidedAt: &decidedAt}}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}}
	svc := NewApprovalService(repo, docs, &mockApprovalOwners{hasRole: true}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), approvalPrincipal("o@example.com"), "doc-1", "apr-1", DecideRequest{Status: "rejected"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDecided.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideLostRace(t *testing.T) {
	repo := &mockApprovalRepo{
		approval: &models.Approval{ID: "apr-1", DocumentID: "doc-1", Status: models.ApprovalStatusPending, Reviewer: "r@example.com"},
		decideOK: false,
	}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}}
	svc := NewApprovalService(repo, docs, &mockApprovalOwners{hasRole: true}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), approvalPrincipal("o@example.com"), "doc-1", "apr-1", DecideRequest{Status: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDecided.Code, appErrors.FromError(err).Code)
	assert.True(t, repo.decided)
}

func TestApprovalServiceDecideSuccess(t *testing.T) {
	repo := &mockApprovalRepo{
		approval: &models.Approval{ID: "apr-1", DocumentID: "doc-1", Status: models.ApprovalStatusPending, Reviewer: "reviewer@example.com"},
		decideOK: true,
	}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}}
	owners := &mockApprovalOwners{hasRole: true, emails: []string{"owner@example.com"}}
	cache := &stubSummaryCache{}
	mail := &stubMail{}
	svc := NewApprovalService(repo, docs, owners, &mockApprovalUsers{}, cache, mail, nil, nil, zap.NewNop())

	approval, err := svc.Decide(context.Background(), approvalPrincipal("owner@example.com"), "doc-1", "apr-1", DecideRequest{Status: "rejected"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalStatusRejected, approval.Status)
	require.NotNil(t, approval.DecidedAt)
	assert.Equal(t, models.ApprovalStatusRejected, repo.decidedStatus)

	// decider (owner) and reviewer each get one row.
	require.Len(t, repo.decidedRows, 2)
	for _, row := range repo.decidedRows {
		assert.Equal(t, models.NotificationApprovalDecided, row.Type)
		require.NotNil(t, row.ApprovalID)
		assert.Equal(t, "apr-1", *row.ApprovalID)
	}
	assert.Equal(t, 1, cache.invalidated)
	require.Len(t, mail.messages, 1)
}

func TestApprovalServiceDecideInvalidStatus(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{}, &mockApprovalDocs{}, &mockApprovalOwners{}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), approvalPrincipal("a@example.com"), "doc-1", "apr-1", DecideRequest{Status: "pending"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceDecideWrongDocument(t *testing.T) {
	repo := &mockApprovalRepo{approval: &models.Approval{ID: "apr-1", DocumentID: "other-doc", Status: models.ApprovalStatusPending}}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}}
	svc := NewApprovalService(repo, docs, &mockApprovalOwners{hasRole: true}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Decide(context.Background(), approvalPrincipal("o@example.com"), "doc-1", "apr-1", DecideRequest{Status: "approved"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceSummaryUsesCache(t *testing.T) {
	repo := &mockApprovalRepo{summary: &models.ApprovalSummary{Scope: models.SummaryScopeAny, Pending: 2}}
	cache := &stubSummaryCache{}
	svc := NewApprovalService(repo, &mockApprovalDocs{}, &mockApprovalOwners{}, &mockApprovalUsers{}, cache, nil, nil, nil, zap.NewNop())

	first, err := svc.Summary(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Pending)
	assert.Equal(t, 1, repo.summaryCalls)

	second, err := svc.Summary(context.Background(), "any")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Pending)
	assert.Equal(t, 1, repo.summaryCalls, "second read should come from cache")
}

func TestApprovalServiceSummaryInvalidScope(t *testing.T) {
	svc := NewApprovalService(&mockApprovalRepo{}, &mockApprovalDocs{}, &mockApprovalOwners{}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	_, err := svc.Summary(context.Background(), "stale")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestApprovalServiceList(t *testing.T) {
	repo := &mockApprovalRepo{approvals: []models.Approval{{ID: "apr-1", DocumentID: "doc-1"}}}
	docs := &mockApprovalDocs{doc: &models.Document{ID: "doc-1", Title: "Policy"}, latest: 4}
	svc := NewApprovalService(repo, docs, &mockApprovalOwners{}, &mockApprovalUsers{}, nil, nil, nil, nil, zap.NewNop())

	result, err := svc.List(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Len(t, result.Approvals, 1)
	assert.Equal(t, 4, result.LatestVersion)
}
