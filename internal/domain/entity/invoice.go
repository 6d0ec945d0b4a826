package entity

import "time"

// Invoice statuses
const (
	InvoiceStatusDraft = "draft"
	InvoiceStatusSent  = "sent"
	InvoiceStatusPaid  = "paid"
	InvoiceStatusVoid  = "void"
)

// Invoice is a period-scoped aggregation of billing events for one company.
// TotalCents = SubtotalCents - DiscountCents + TaxCents always holds.
type Invoice struct {
	ID            int64
	CompanyID     int64
	Number        string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Status        string
	SubtotalCents int64
	DiscountCents int64
	TaxCents      int64
	TotalCents    int64
	SentAt        *time.Time
	PaidAt        *time.Time
	VoidedAt      *time.Time
	PaymentMethod *string
	PaymentRef    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
