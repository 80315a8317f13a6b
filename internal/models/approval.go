package models

import "time"

// ApprovalStatus is the state of an approval request. The machine is
// deliberately two-outcome terminal: pending moves exactly once to
// approved or rejected and never back. Reopening means a new approval row.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// DecisionStatus reports whether the value is a terminal approval outcome.
func DecisionStatus(status string) bool {
	switch ApprovalStatus(status) {
	case ApprovalStatusApproved, ApprovalStatusRejected:
		return true
	default:
		return false
	}
}

// Approval is a reviewer decision request scoped to a document or one of
// its versions. A nil Version means the approval applies to whatever is
// latest, resolved lazily for display.
type Approval struct {
	ID          string         `db:"id" json:"id"`
	DocumentID  string         `db:"document_id" json:"document_id"`
	Version     *int           `db:"version" json:"version,omitempty"`
	Reviewer    string         `db:"reviewer" json:"reviewer"`
	Status      ApprovalStatus `db:"status" json:"status"`
	Note        *string        `db:"note" json:"note,omitempty"`
	RequestedAt time.Time      `db:"requested_at" json:"requested_at"`
	DecidedAt   *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
}

// SummaryScope selects which approval rows an aggregate counts.
type SummaryScope string

const (
	// SummaryScopeAny counts every approval row.
	SummaryScopeAny SummaryScope = "any"
	// SummaryScopeLatest counts version-null approvals always and
	// version-specific approvals only when they target the document's
	// current latest version.
	SummaryScopeLatest SummaryScope = "latest"
)

// ApprovalSummary is the per-status aggregate consumed by dashboards.
type ApprovalSummary struct {
	Scope    SummaryScope `json:"scope"`
	Pending  int          `json:"pending"`
	Approved int          `json:"approved"`
	Rejected int          `json:"rejected"`
}
