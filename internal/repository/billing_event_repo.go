package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// BillingEventRepository handles billing event persistence. A partial unique
// index on (report_id, event_type) for filing_accepted backs the one-per-report
// idempotency key at the schema level.
type BillingEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillingEventRepository creates a new billing event repository
func NewBillingEventRepository(db *sql.DB, logger *zap.Logger) *BillingEventRepository {
	return &BillingEventRepository{db: db, logger: logger}
}

const billingEventColumns = `
	id, company_id, report_id, event_type, description, amount_cents,
	quantity, invoice_id, invoiced_at, created_at
`

// Create inserts a billing event
func (r *BillingEventRepository) Create(tx *sql.Tx, ev *entity.BillingEvent) error {
	query := `
		INSERT INTO billing_events (company_id, report_id, event_type, description, amount_cents, quantity)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		ev.CompanyID,
		ev.ReportID,
		ev.EventType,
		ev.Description,
		ev.AmountCents,
		ev.Quantity,
	)
	if err != nil {
		r.logger.Error("Failed to create billing event", zap.Error(err))
		return fmt.Errorf("failed to create billing event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	ev.ID = id
	return nil
}

// GetByID retrieves a billing event by ID. Returns nil when not found.
func (r *BillingEventRepository) GetByID(tx *sql.Tx, id int64) (*entity.BillingEvent, error) {
	query := `SELECT ` + billingEventColumns + ` FROM billing_events WHERE id = ?`

	ev, err := scanBillingEvent(pick(r.db, tx).QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get billing event", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get billing event: %w", err)
	}

	return ev, nil
}

// GetByReportAndType retrieves the automatic event for a (report, type) pair.
// Returns nil when no such event exists.
func (r *BillingEventRepository) GetByReportAndType(tx *sql.Tx, reportID int64, eventType string) (*entity.BillingEvent, error) {
	query := `SELECT ` + billingEventColumns + `
		FROM billing_events
		WHERE report_id = ? AND event_type = ?`

	ev, err := scanBillingEvent(pick(r.db, tx).QueryRow(query, reportID, eventType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get billing event by report",
			zap.Int64("report_id", reportID), zap.String("event_type", eventType), zap.Error(err))
		return nil, fmt.Errorf("failed to get billing event by report: %w", err)
	}

	return ev, nil
}

// ListUnbilled retrieves a company's events with no invoice whose created_at
// falls in [periodStart, before)
func (r *BillingEventRepository) ListUnbilled(tx *sql.Tx, companyID int64, periodStart, before time.Time) ([]*entity.BillingEvent, error) {
	query := `SELECT ` + billingEventColumns + `
		FROM billing_events
		WHERE company_id = ? AND invoice_id IS NULL
			AND created_at >= ? AND created_at < ?
		ORDER BY created_at, id`

	rows, err := pick(r.db, tx).Query(query, companyID, periodStart, before)
	if err != nil {
		r.logger.Error("Failed to list unbilled events", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list unbilled events: %w", err)
	}
	defer rows.Close()

	var events []*entity.BillingEvent
	for rows.Next() {
		ev, err := scanBillingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// ListByInvoice retrieves the events linked to an invoice
func (r *BillingEventRepository) ListByInvoice(tx *sql.Tx, invoiceID int64) ([]*entity.BillingEvent, error) {
	query := `SELECT ` + billingEventColumns + `
		FROM billing_events
		WHERE invoice_id = ?
		ORDER BY created_at, id`

	rows, err := pick(r.db, tx).Query(query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list invoice events", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoice events: %w", err)
	}
	defer rows.Close()

	var events []*entity.BillingEvent
	for rows.Next() {
		ev, err := scanBillingEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan billing event: %w", err)
		}
		events = append(events, ev)
	}

	return events, rows.Err()
}

// ClaimForInvoice links an event to an invoice, conditional on the event
// still being unbilled. Returns false when another invoice already claimed
// it; invoice_id is set at most once, never reassigned or cleared.
func (r *BillingEventRepository) ClaimForInvoice(tx *sql.Tx, eventID, invoiceID int64, invoicedAt time.Time) (bool, error) {
	query := `
		UPDATE billing_events
		SET invoice_id = ?, invoiced_at = ?
		WHERE id = ? AND invoice_id IS NULL
	`

	result, err := pick(r.db, tx).Exec(query, invoiceID, invoicedAt, eventID)
	if err != nil {
		r.logger.Error("Failed to claim billing event",
			zap.Int64("event_id", eventID), zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return false, fmt.Errorf("failed to claim billing event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n == 1, nil
}

func scanBillingEvent(row rowScanner) (*entity.BillingEvent, error) {
	var ev entity.BillingEvent
	var reportID, invoiceID sql.NullInt64
	var invoicedAt sql.NullTime

	err := row.Scan(
		&ev.ID,
		&ev.CompanyID,
		&reportID,
		&ev.EventType,
		&ev.Description,
		&ev.AmountCents,
		&ev.Quantity,
		&invoiceID,
		&invoicedAt,
		&ev.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if reportID.Valid {
		ev.ReportID = &reportID.Int64
	}
	if invoiceID.Valid {
		ev.InvoiceID = &invoiceID.Int64
	}
	if invoicedAt.Valid {
		ev.InvoicedAt = &invoicedAt.Time
	}

	return &ev, nil
}
