package entity

import "time"

// Audit actions recorded by the core. Every state transition, billing event
// emission, and invoice generation/status change appends one record.
const (
	AuditActionReportTransition    = "report.transition"
	AuditActionDetermination       = "report.determination"
	AuditActionPartyLinkSent       = "party_link.sent"
	AuditActionPartyLinkResent     = "party_link.resent"
	AuditActionPartySubmitted      = "party.submitted"
	AuditActionCorrectionRequested = "party.correction_requested"
	AuditActionBillingEventCreated = "billing_event.created"
	AuditActionInvoiceGenerated    = "invoice.generated"
	AuditActionInvoiceStatus       = "invoice.status_changed"
	AuditActionRateUpdated         = "company.rate_updated"
)

// AuditRecord is an append-only structured audit entry
type AuditRecord struct {
	ID           int64
	Actor        string
	EntityType   string
	EntityID     int64
	Action       string
	BeforeStatus string
	AfterStatus  string
	Detail       string
	CreatedAt    time.Time
}
