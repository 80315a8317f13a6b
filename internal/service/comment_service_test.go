package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/policyforge/policyforge-api/internal/models"
	appErrors "github.com/policyforge/policyforge-api/pkg/errors"
)

type mockCommentRepo struct {
	comments []models.Comment
}

func (m *mockCommentRepo) Create(_ context.Context, comment *models.Comment) error {
	comment.ID = "c-1"
	m.comments = append(m.comments, *comment)
	return nil
}

func (m *mockCommentRepo) ListByDocument(_ context.Context, _ string, version *int) ([]models.Comment, error) {
	if version == nil {
		return m.comments, nil
	}
	var filtered []models.Comment
	for _, c := range m.comments {
		if c.Version != nil && *c.Version == *version {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

type stubCommentDocs struct {
	doc    *models.Document
	exists bool
}

func (s *stubCommentDocs) GetByID(_ context.Context, id string) (*models.Document, error) {
	if s.doc == nil || s.doc.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.doc, nil
}

func (s *stubCommentDocs) VersionExists(_ context.Context, _ string, _ int) (bool, error) {
	return s.exists, nil
}

func TestCommentServiceCreate(t *testing.T) {
	repo := &mockCommentRepo{}
	docs := &stubCommentDocs{doc: &models.Document{ID: "doc-1"}, exists: true}
	svc := NewCommentService(repo, docs, nil, zap.NewNop())

	version := 2
	comment, err := svc.Create(context.Background(), approvalPrincipal("author@example.com"), "doc-1", CreateCommentRequest{Body: "Looks good", Version: &version})
	require.NoError(t, err)
	assert.Equal(t, "author@example.com", comment.Author)
	require.NotNil(t, comment.Version)
	assert.Equal(t, 2, *comment.Version)
}

func TestCommentServiceCreateBlankBody(t *testing.T) {
	docs := &stubCommentDocs{doc: &models.Document{ID: "doc-1"}}
	svc := NewCommentService(&mockCommentRepo{}, docs, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), approvalPrincipal("a@example.com"), "doc-1", CreateCommentRequest{Body: "   "})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCommentServiceCreateUnknownVersion(t *testing.T) {
	docs := &stubCommentDocs{doc: &models.Document{ID: "doc-1"}, exists: false}
	svc := NewCommentService(&mockCommentRepo{}, docs, nil, zap.NewNop())

	version := 5
	_, err := svc.Create(context.Background(), approvalPrincipal("a@example.com"), "doc-1", CreateCommentRequest{Body: "hm", Version: &version})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCommentServiceListFiltersByVersion(t *testing.T) {
	repo := &mockCommentRepo{}
	docs := &stubCommentDocs{doc: &models.Document{ID: "doc-1"}, exists: true}
	svc := NewCommentService(repo, docs, nil, zap.NewNop())

	v1, v2 := 1, 2
	_, err := svc.Create(context.Background(), approvalPrincipal("a@example.com"), "doc-1", CreateCommentRequest{Body: "first", Version: &v1})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), approvalPrincipal("a@example.com"), "doc-1", CreateCommentRequest{Body: "second", Version: &v2})
	require.NoError(t, err)

	all, err := svc.List(context.Background(), "doc-1", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.List(context.Background(), "doc-1", &v2)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "second", filtered[0].Body)
}
