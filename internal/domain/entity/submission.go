package entity

import "time"

// SubmissionRequest statuses
const (
	SubmissionStatusPending    = "pending"
	SubmissionStatusInProgress = "in_progress"
	SubmissionStatusCompleted  = "completed"
	SubmissionStatusCancelled  = "cancelled"
)

// SubmissionRequest is the client-originated intake that spawns a Report.
// Once ReportID is set it never changes, and the status mirrors the linked
// Report's terminal outcome without ever reverting.
type SubmissionRequest struct {
	ID              int64
	CompanyID       int64
	Status          string
	PropertyAddress string
	ClosingDate     time.Time
	ReportID        *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
