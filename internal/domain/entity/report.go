package entity

import "time"

// Report statuses. The workflow engine is the only writer; the DAG over these
// is defined in internal/domain/workflow.
const (
	ReportStatusDraft                 = "draft"
	ReportStatusDeterminationComplete = "determination_complete"
	ReportStatusCollecting            = "collecting"
	ReportStatusReadyToFile           = "ready_to_file"
	ReportStatusFiled                 = "filed"
	ReportStatusExempt                = "exempt"
)

// Determination outcomes
const (
	OutcomeReportable = "reportable"
	OutcomeExempt     = "exempt"
)

// Report is the unit of determination and filing. Status is owned exclusively
// by the workflow engine; Version backs optimistic locking on every status
// write.
type Report struct {
	ID                   int64
	CompanyID            int64
	SubmissionRequestID  int64
	Status               string
	Version              int64
	DeterminationOutcome *string
	DeterminationReason  *string
	CertificateID        *string
	ReceiptID            *string
	FiledAt              *time.Time
	ClosingDate          time.Time
	Deadline             time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsTerminal reports whether the report can accept no further transitions
func (r *Report) IsTerminal() bool {
	return r.Status == ReportStatusFiled || r.Status == ReportStatusExempt
}
