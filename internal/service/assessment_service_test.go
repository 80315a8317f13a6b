package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
	"github.com/policyforge/policyforge-api/pkg/export"
)

type mockAssessmentRepo struct {
	stored       []models.ControlAssessment
	bulkItems    []models.ControlAssessment
	links        []models.ControlLink
	deletedLinks []string
}

func (m *mockAssessmentRepo) Get(_ context.Context, _ *int64, _, controlID string) (*models.ControlAssessment, error) {
	for i := range m.stored {
		if m.stored[i].ControlID == controlID {
			return &m.stored[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAssessmentRepo) ListByFramework(_ context.Context, _ *int64, _ string) ([]models.ControlAssessment, error) {
	return m.stored, nil
}

func (m *mockAssessmentRepo) Upsert(_ context.Context, a *models.ControlAssessment) error {
	a.ID = "as-1"
	m.stored = append(m.stored, *a)
	return nil
}

func (m *mockAssessmentRepo) BulkUpsert(_ context.Context, items []models.ControlAssessment) error {
	m.bulkItems = items
	return nil
}

func (m *mockAssessmentRepo) CreateLink(_ context.Context, link *models.ControlLink) error {
	link.ID = "lnk-1"
	m.links = append(m.links, *link)
	return nil
}

func (m *mockAssessmentRepo) ListLinks(_ context.Context, _ *int64, _, _ string) ([]models.ControlLink, error) {
	return m.links, nil
}

func (m *mockAssessmentRepo) DeleteLink(_ context.Context, id string) error {
	m.deletedLinks = append(m.deletedLinks, id)
	return nil
}

func newAssessmentService(repo *mockAssessmentRepo, docs *stubCommentDocs) *AssessmentService {
	if docs == nil {
		docs = &stubCommentDocs{}
	}
	return NewAssessmentService(repo, docs, export.NewCSVExporter(), nil, zap.NewNop())
}

func TestAssessmentServiceUpsert(t *testing.T) {
	repo := &mockAssessmentRepo{}
	svc := newAssessmentService(repo, nil)

	status := "implemented"
	a, err := svc.Upsert(context.Background(), nil, "cis_v8", "CIS-03", UpsertAssessmentRequest{Status: &status})
	require.NoError(t, err)
	require.NotNil(t, a.Status)
	assert.Equal(t, models.AssessmentStatusImplemented, *a.Status)
}

func TestAssessmentServiceUpsertUnknownControl(t *testing.T) {
	svc := newAssessmentService(&mockAssessmentRepo{}, nil)

	_, err := svc.Upsert(context.Background(), nil, "cis_v8", "CIS-99", UpsertAssessmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceUpsertUnknownFramework(t *testing.T) {
	svc := newAssessmentService(&mockAssessmentRepo{}, nil)

	_, err := svc.Upsert(context.Background(), nil, "iso_27001", "A.5", UpsertAssessmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceUpsertInvalidStatus(t *testing.T) {
	svc := newAssessmentService(&mockAssessmentRepo{}, nil)

	status := "done"
	_, err := svc.Upsert(context.Background(), nil, "cis_v8", "CIS-01", UpsertAssessmentRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceBulkUpsertSkipsUnknownControls(t *testing.T) {
	repo := &mockAssessmentRepo{}
	svc := newAssessmentService(repo, nil)

	status := "planned"
	items := []BulkAssessmentItem{
		{ControlID: "CIS-01", UpsertAssessmentRequest: UpsertAssessmentRequest{Status: &status}},
		{ControlID: "CIS-99", UpsertAssessmentRequest: UpsertAssessmentRequest{Status: &status}},
		{ControlID: "CIS-02"},
	}
	result, err := svc.BulkUpsert(context.Background(), nil, "cis_v8", items)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Applied)
	assert.Equal(t, []string{"CIS-99"}, result.Skipped)
	assert.Len(t, repo.bulkItems, 2)
}

func TestAssessmentServiceBulkUpsertEmpty(t *testing.T) {
	svc := newAssessmentService(&mockAssessmentRepo{}, nil)

	_, err := svc.BulkUpsert(context.Background(), nil, "cis_v8", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceListControlsMergesStored(t *testing.T) {
	status := models.AssessmentStatusInProgress
	repo := &mockAssessmentRepo{stored: []models.ControlAssessment{
		{ID: "as-1", FrameworkKey: "cis_v8", ControlID: "CIS-05", Status: &status},
	}}
	svc := newAssessmentService(repo, nil)

	views, err := svc.ListControls(context.Background(), nil, "cis_v8")
	require.NoError(t, err)
	assert.Len(t, views, 18)

	var matched int
	for _, view := range views {
		if view.Control.ID == "CIS-05" {
			require.NotNil(t, view.Assessment)
			assert.Equal(t, models.AssessmentStatusInProgress, *view.Assessment.Status)
			matched++
		} else {
			assert.Nil(t, view.Assessment)
		}
	}
	assert.Equal(t, 1, matched)
}

func TestAssessmentServiceCreateLink(t *testing.T) {
	repo := &mockAssessmentRepo{}
	docs := &stubCommentDocs{doc: &models.Document{ID: "doc-1"}, exists: true}
	svc := newAssessmentService(repo, docs)

	version := 2
	link, err := svc.CreateLink(context.Background(), nil, "nist_csf", "PR.AC", CreateLinkRequest{DocumentID: "doc-1", Version: &version})
	require.NoError(t, err)
	assert.Equal(t, "doc-1", link.DocumentID)
	require.NotNil(t, link.Version)
	assert.Equal(t, 2, *link.Version)
}

func TestAssessmentServiceCreateLinkUnknownDocument(t *testing.T) {
	svc := newAssessmentService(&mockAssessmentRepo{}, &stubCommentDocs{})

	_, err := svc.CreateLink(context.Background(), nil, "cis_v8", "CIS-01", CreateLinkRequest{DocumentID: "missing"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAssessmentServiceExportCSV(t *testing.T) {
	status := models.AssessmentStatusImplemented
	notes := "reviewed quarterly"
	repo := &mockAssessmentRepo{stored: []models.ControlAssessment{
		{FrameworkKey: "cis_v8", ControlID: "CIS-08", Status: &status, Notes: &notes},
	}}
	svc := newAssessmentService(repo, nil)

	data, filename, err := svc.ExportCSV(context.Background(), nil, "cis_v8")
	require.NoError(t, err)
	assert.Equal(t, "cis_v8_assessments.csv", filename)

	csv := string(data)
	assert.True(t, strings.HasPrefix(csv, "control_id,title,function,status,notes,last_reviewed_at"))
	assert.Contains(t, csv, "CIS-08")
	assert.Contains(t, csv, "implemented")
	assert.Contains(t, csv, "reviewed quarterly")
}
