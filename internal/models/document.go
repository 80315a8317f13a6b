package models

import "time"

// DocumentStatus is the lifecycle state of a policy document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "draft"
	DocumentStatusInReview  DocumentStatus = "in_review"
	DocumentStatusApproved  DocumentStatus = "approved"
	DocumentStatusPublished DocumentStatus = "published"
	DocumentStatusRejected  DocumentStatus = "rejected"
)

// ValidDocumentStatus reports whether the value is a known lifecycle state.
func ValidDocumentStatus(status string) bool {
	switch DocumentStatus(status) {
	case DocumentStatusDraft, DocumentStatusInReview, DocumentStatusApproved,
		DocumentStatusPublished, DocumentStatusRejected:
		return true
	default:
		return false
	}
}

// Document is a versioned policy artifact. UpdatedAt is bumped on every
// mutation to the document or its versions.
type Document struct {
	ID          string         `db:"id" json:"id"`
	OrgID       *int64         `db:"org_id" json:"org_id,omitempty"`
	TemplateKey string         `db:"template_key" json:"template_key"`
	Title       string         `db:"title" json:"title"`
	Status      DocumentStatus `db:"status" json:"status"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// Version is an immutable numbered snapshot of a document. For a fixed
// document, version numbers form a contiguous sequence starting at 1;
// deletion may leave gaps but creation never does.
type Version struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Version    int       `db:"version" json:"version"`
	HTML       string    `db:"html" json:"html,omitempty"`
	ParamsJSON string    `db:"params_json" json:"params_json,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentWithVersions is the detail view of a document.
type DocumentWithVersions struct {
	Document
	LatestVersion int       `json:"latest_version"`
	Versions      []Version `json:"versions"`
}
