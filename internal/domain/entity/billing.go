package entity

import "time"

// BillingEvent types. FilingAccepted is emitted automatically on a report's
// terminal transition and is unique per report; the manual types are not.
const (
	EventTypeFilingAccepted   = "filing_accepted"
	EventTypeManualAdjustment = "manual_adjustment"
	EventTypeCredit           = "credit"
	EventTypeExpediteFee      = "expedite_fee"
	EventTypeOther            = "other"
)

// BillingEvent is a single signed monetary line item attributable to a
// company, optionally tied to one report. Immutable once created except for
// InvoiceID/InvoicedAt, which are set exactly once when an invoice claims it.
type BillingEvent struct {
	ID          int64
	CompanyID   int64
	ReportID    *int64
	EventType   string
	Description string
	AmountCents int64
	Quantity    int64
	InvoiceID   *int64
	InvoicedAt  *time.Time
	CreatedAt   time.Time
}

// LineTotalCents returns amount × quantity for this event
func (e *BillingEvent) LineTotalCents() int64 {
	return e.AmountCents * e.Quantity
}

// IsManualType reports whether the event type belongs to the manual,
// non-idempotent path
func IsManualType(eventType string) bool {
	switch eventType {
	case EventTypeManualAdjustment, EventTypeCredit, EventTypeExpediteFee, EventTypeOther:
		return true
	default:
		return false
	}
}
