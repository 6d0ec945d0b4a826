package entity

import "time"

// Company is the owning account for reports and billing. Rate configuration
// lives here and is read fresh at billing-event emission time.
type Company struct {
	ID               int64
	Name             string
	ContactEmail     string
	FilingFeeCents   int64
	PaymentTermsDays int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
