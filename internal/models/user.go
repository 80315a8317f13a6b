package models

import "time"

// GlobalRole represents the coarse role carried by the web session token.
type GlobalRole string

const (
	RoleOwner    GlobalRole = "owner"
	RoleAdmin    GlobalRole = "admin"
	RoleEditor   GlobalRole = "editor"
	RoleViewer   GlobalRole = "viewer"
	RoleApprover GlobalRole = "approver"
)

// AllGlobalRoles enumerates every role accepted by the role gate.
func AllGlobalRoles() []GlobalRole {
	return []GlobalRole{RoleOwner, RoleAdmin, RoleEditor, RoleViewer, RoleApprover}
}

// ValidGlobalRole reports whether the value is a known global role.
func ValidGlobalRole(role string) bool {
	switch GlobalRole(role) {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer, RoleApprover:
		return true
	default:
		return false
	}
}

// User represents a directory entry in the policy_users table. Users are
// created lazily the first time an email is referenced as a reviewer or
// owner, or explicitly through the users API.
type User struct {
	ID        string     `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	Name      *string    `db:"name" json:"name,omitempty"`
	OrgID     *int64     `db:"org_id" json:"org_id,omitempty"`
	Role      GlobalRole `db:"role" json:"role"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
