package models

import "time"

// Notification event types emitted by the approval workflow.
const (
	NotificationApprovalRequested = "approval_requested"
	NotificationApprovalDecided   = "approval_decided"
)

// NotificationStatus filters the notification feed.
type NotificationStatus string

const (
	NotificationStatusAll    NotificationStatus = "all"
	NotificationStatusUnread NotificationStatus = "unread"
)

// Notification is a per-recipient record of a workflow event. Rows are
// write-once except read_at, which moves monotonically from null to a
// timestamp.
type Notification struct {
	ID          string     `db:"id" json:"id"`
	TargetEmail string     `db:"target_email" json:"-"`
	Type        string     `db:"type" json:"type"`
	Message     string     `db:"message" json:"message"`
	DocumentID  *string    `db:"document_id" json:"document_id,omitempty"`
	Version     *int       `db:"version" json:"version,omitempty"`
	ApprovalID  *string    `db:"approval_id" json:"approval_id,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ReadAt      *time.Time `db:"read_at" json:"read_at,omitempty"`
}
