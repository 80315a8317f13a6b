package models

import "time"

// AssessmentStatus is the team's stance on one framework control.
type AssessmentStatus string

const (
	AssessmentStatusNotApplicable AssessmentStatus = "not_applicable"
	AssessmentStatusPlanned       AssessmentStatus = "planned"
	AssessmentStatusInProgress    AssessmentStatus = "in_progress"
	AssessmentStatusImplemented   AssessmentStatus = "implemented"
)

// ValidAssessmentStatus reports whether the value is a known stance.
func ValidAssessmentStatus(status string) bool {
	switch AssessmentStatus(status) {
	case AssessmentStatusNotApplicable, AssessmentStatusPlanned,
		AssessmentStatusInProgress, AssessmentStatusImplemented:
		return true
	default:
		return false
	}
}

// ControlAssessment records status, owner and evidence for one control,
// unique per (org_id, framework_key, control_id).
type ControlAssessment struct {
	ID             string            `db:"id" json:"id"`
	OrgID          *int64            `db:"org_id" json:"org_id,omitempty"`
	FrameworkKey   string            `db:"framework_key" json:"framework_key"`
	ControlID      string            `db:"control_id" json:"control_id"`
	Status         *AssessmentStatus `db:"status" json:"status,omitempty"`
	OwnerUserID    *string           `db:"owner_user_id" json:"owner_user_id,omitempty"`
	Notes          *string           `db:"notes" json:"notes,omitempty"`
	EvidenceLinks  *string           `db:"evidence_links" json:"evidence_links,omitempty"`
	LastReviewedAt *time.Time        `db:"last_reviewed_at" json:"last_reviewed_at,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at" json:"updated_at"`
}

// ControlLink ties a framework control to a policy document and optionally
// a specific version.
type ControlLink struct {
	ID           string  `db:"id" json:"id"`
	OrgID        *int64  `db:"org_id" json:"org_id,omitempty"`
	FrameworkKey string  `db:"framework_key" json:"framework_key"`
	ControlID    string  `db:"control_id" json:"control_id"`
	DocumentID   string  `db:"document_id" json:"document_id"`
	Version      *int    `db:"version" json:"version,omitempty"`
}
