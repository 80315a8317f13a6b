package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policyforge/policyforge-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO policy_documents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO policy_versions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	doc := &models.Document{TemplateKey: "access_control_policy", Title: "Access Control Policy"}
	initial := &models.Version{HTML: "<h1>Policy</h1>", ParamsJSON: "{}"}
	require.NoError(t, repo.Create(context.Background(), doc, initial))

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, doc.ID, initial.DocumentID)
	assert.Equal(t, 1, initial.Version)
	assert.Equal(t, models.DocumentStatusDraft, doc.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryAddVersionLocksDocument(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM policy_documents WHERE id = $1 FOR UPDATE")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM policy_versions WHERE document_id = $1")).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))
	mock.ExpectExec("INSERT INTO policy_versions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE policy_documents SET updated_at").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ver := &models.Version{DocumentID: "doc-1", HTML: "<h1>v4</h1>", ParamsJSON: "{}"}
	require.NoError(t, repo.AddVersion(context.Background(), ver))
	assert.Equal(t, 4, ver.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryAddVersionMissingDocument(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM policy_documents WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.AddVersion(context.Background(), &models.Version{DocumentID: "missing"})
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryDeleteVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM policy_versions WHERE document_id = $1 AND version = $2")).
		WithArgs("doc-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE policy_documents SET updated_at").
		WithArgs("doc-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	deleted, err := repo.DeleteVersion(context.Background(), "doc-1", 2)
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM policy_versions WHERE document_id = $1 AND version = $2")).
		WithArgs("doc-1", 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err = repo.DeleteVersion(context.Background(), "doc-1", 9)
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryVersionExists(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("doc-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.VersionExists(context.Background(), "doc-1", 3)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListVersions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "document_id", "version", "html", "params_json", "created_at"}).
		AddRow("v1", "doc-1", 1, "<h1>a</h1>", "{}", time.Now()).
		AddRow("v2", "doc-1", 2, "<h1>b</h1>", "{}", time.Now())
	mock.ExpectQuery("SELECT id, document_id, version, html, params_json, created_at").
		WithArgs("doc-1").
		WillReturnRows(rows)

	versions, err := repo.ListVersions(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}
