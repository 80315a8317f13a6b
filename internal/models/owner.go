package models

// DocumentRole is a document-scoped role grant, distinct from the user's
// global role.
type DocumentRole string

const (
	DocumentRoleOwner    DocumentRole = "owner"
	DocumentRoleEditor   DocumentRole = "editor"
	DocumentRoleViewer   DocumentRole = "viewer"
	DocumentRoleApprover DocumentRole = "approver"
)

// ValidDocumentRole reports whether the value is a known document role.
func ValidDocumentRole(role string) bool {
	switch DocumentRole(role) {
	case DocumentRoleOwner, DocumentRoleEditor, DocumentRoleViewer, DocumentRoleApprover:
		return true
	default:
		return false
	}
}

// DecisionRoles are the document roles allowed to decide approvals and the
// default audience for workflow notifications.
func DecisionRoles() []DocumentRole {
	return []DocumentRole{DocumentRoleOwner, DocumentRoleApprover}
}

// DocumentOwner maps a user to a role on one document, unique per
// (document_id, user_id).
type DocumentOwner struct {
	ID         string       `db:"id" json:"id"`
	DocumentID string       `db:"document_id" json:"document_id"`
	UserID     string       `db:"user_id" json:"user_id"`
	Role       DocumentRole `db:"role" json:"role"`
}

// OwnerEntry is the joined list view of an ownership mapping.
type OwnerEntry struct {
	ID         string       `db:"id" json:"id"`
	DocumentID string       `db:"document_id" json:"document_id"`
	UserID     string       `db:"user_id" json:"user_id"`
	Role       DocumentRole `db:"role" json:"role"`
	Email      string       `db:"email" json:"email"`
	Name       *string      `db:"name" json:"name,omitempty"`
}
