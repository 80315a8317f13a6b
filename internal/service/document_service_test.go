package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	"github.com/policyforge/policyforge-api/internal/templates"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/export"
)

type mockDocumentRepo struct {
	doc         *models.Document
	versions    []models.Version
	added       []*models.Version
	addErrs     []error
	deleted     bool
	deleteOK    bool
	lastUpdated *models.Document
}

func (m *mockDocumentRepo) Create(_ context.Context, doc *models.Document, initial *models.Version) error {
	doc.ID = "doc-1"
	doc.CreatedAt = time.Now().UTC()
	doc.UpdatedAt = doc.CreatedAt
	initial.DocumentID = doc.ID
	initial.Version = 1
	m.doc = doc
	m.versions = append(m.versions, *initial)
	return nil
}

func (m *mockDocumentRepo) GetByID(_ context.Context, id string) (*models.Document, error) {
	if m.doc == nil || m.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.doc, nil
}

func (m *mockDocumentRepo) List(_ context.Context, _ int) ([]models.Document, error) {
	if m.doc == nil {
		return nil, nil
	}
	return []models.Document{*m.doc}, nil
}

func (m *mockDocumentRepo) LatestVersion(_ context.Context, _ string) (int, error) {
	latest := 0
	for _, v := range m.versions {
		if v.Version > latest {
			latest = v.Version
		}
	}
	return latest, nil
}

func (m *mockDocumentRepo) ListVersions(_ context.Context, _ string) ([]models.Version, error) {
	return m.versions, nil
}

func (m *mockDocumentRepo) GetVersion(_ context.Context, documentID string, version int) (*models.Version, error) {
	for i := range m.versions {
		if m.versions[i].DocumentID == documentID && m.versions[i].Version == version {
			return &m.versions[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) AddVersion(_ context.Context, ver *models.Version) error {
	m.added = append(m.added, ver)
	if len(m.addErrs) > 0 {
		err := m.addErrs[0]
		m.addErrs = m.addErrs[1:]
		if err != nil {
			return err
		}
	}
	latest := 0
	for _, v := range m.versions {
		if v.Version > latest {
			latest = v.Version
		}
	}
	ver.Version = latest + 1
	ver.CreatedAt = time.Now().UTC()
	m.versions = append(m.versions, *ver)
	return nil
}

func (m *mockDocumentRepo) UpdateMetadata(_ context.Context, doc *models.Document) error {
	m.lastUpdated = doc
	return nil
}

func (m *mockDocumentRepo) Delete(_ context.Context, _ string) error {
	m.deleted = true
	return nil
}

func (m *mockDocumentRepo) DeleteVersion(_ context.Context, _ string, _ int) (bool, error) {
	return m.deleteOK, nil
}

func draftParams(key string) templates.DraftParams {
	return templates.DraftParams{
		TemplateKey:       key,
		OrgName:           "Acme Corp",
		PasswordMinLength: 12,
		MFARequiredRoles:  []string{"admin"},
		LogRetentionDays:  365,
	}
}

func TestDocumentServiceCreate(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())

	doc, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.LatestVersion)
	assert.Equal(t, models.DocumentStatusDraft, doc.Status)
	require.Len(t, repo.versions, 1)
	assert.Contains(t, repo.versions[0].HTML, "Acme Corp")
	assert.Contains(t, repo.versions[0].ParamsJSON, "access_control_policy")
}

func TestDocumentServiceCreateUnknownTemplate(t *testing.T) {
	svc := NewDocumentService(&mockDocumentRepo{}, export.NewPDFExporter(), nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), draftParams("no_such_template"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceAddVersionTemplateMismatch(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	_, err = svc.AddVersion(context.Background(), "doc-1", draftParams("audit_logging_policy"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceAddVersionRetriesLostRace(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	// First attempt loses the unique-constraint race, the retry wins.
	repo.addErrs = []error{&pq.Error{Code: "23505"}}
	v, err := svc.AddVersion(context.Background(), "doc-1", draftParams("access_control_policy"))
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Len(t, repo.added, 2)
}

func TestDocumentServiceAddVersionConflictAfterRetry(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	repo.addErrs = []error{&pq.Error{Code: "23505"}, &pq.Error{Code: "23505"}}
	_, err = svc.AddVersion(context.Background(), "doc-1", draftParams("access_control_policy"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceRollbackCopiesContent(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	second := draftParams("access_control_policy")
	second.PasswordMinLength = 16
	_, err = svc.AddVersion(context.Background(), "doc-1", second)
	require.NoError(t, err)

	v, err := svc.Rollback(context.Background(), "doc-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, v.Version)
	assert.Equal(t, repo.versions[0].HTML, v.HTML)
	assert.Equal(t, repo.versions[0].ParamsJSON, v.ParamsJSON)
}

func TestDocumentServiceRollbackUnknownVersion(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	_, err = svc.Rollback(context.Background(), "doc-1", 9)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUpdateMetadata(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	blank := ""
	status := "in_review"
	doc, err := svc.UpdateMetadata(context.Background(), "doc-1", UpdateDocumentRequest{Title: &blank, Status: &status})
	require.NoError(t, err)
	// A blank title is ignored, status is applied.
	assert.NotEmpty(t, doc.Title)
	assert.Equal(t, models.DocumentStatusInReview, doc.Status)

	bad := "archived"
	_, err = svc.UpdateMetadata(context.Background(), "doc-1", UpdateDocumentRequest{Status: &bad})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceDeleteVersionNotFound(t *testing.T) {
	repo := &mockDocumentRepo{deleteOK: false}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	err = svc.DeleteVersion(context.Background(), "doc-1", 7)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceExportVersionPDF(t *testing.T) {
	repo := &mockDocumentRepo{}
	svc := NewDocumentService(repo, export.NewPDFExporter(), nil, nil, zap.NewNop())
	_, err := svc.Create(context.Background(), draftParams("access_control_policy"))
	require.NoError(t, err)

	payload, filename, err := svc.ExportVersionPDF(context.Background(), "doc-1", 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
	assert.Equal(t, "access_control_policy_v1.pdf", filename)
}
