package models

import "time"

// Comment is an append-only discussion entry on a document, optionally
// tied to a specific version.
type Comment struct {
	ID         string    `db:"id" json:"id"`
	DocumentID string    `db:"document_id" json:"document_id"`
	Version    *int      `db:"version" json:"version,omitempty"`
	Author     string    `db:"author" json:"author"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
