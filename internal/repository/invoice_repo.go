package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// InvoiceRepository handles invoice persistence and the per-company
// per-month invoice number sequence
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

const invoiceColumns = `
	id, company_id, number, period_start, period_end, status,
	subtotal_cents, discount_cents, tax_cents, total_cents,
	sent_at, paid_at, voided_at, payment_method, payment_ref,
	created_at, updated_at
`

// NextSequence allocates the next invoice sequence value for
// (company, year-month). Must run inside the generating transaction so two
// concurrent generations cannot hand out the same value.
func (r *InvoiceRepository) NextSequence(tx *sql.Tx, companyID int64, yearMonth string) (int64, error) {
	upsert := `
		INSERT INTO invoice_sequences (company_id, year_month, last_value)
		VALUES (?, ?, 1)
		ON CONFLICT(company_id, year_month)
		DO UPDATE SET last_value = last_value + 1
	`

	if _, err := pick(r.db, tx).Exec(upsert, companyID, yearMonth); err != nil {
		r.logger.Error("Failed to advance invoice sequence",
			zap.Int64("company_id", companyID), zap.String("year_month", yearMonth), zap.Error(err))
		return 0, fmt.Errorf("failed to advance invoice sequence: %w", err)
	}

	var value int64
	query := `SELECT last_value FROM invoice_sequences WHERE company_id = ? AND year_month = ?`
	if err := pick(r.db, tx).QueryRow(query, companyID, yearMonth).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read invoice sequence: %w", err)
	}

	return value, nil
}

// Create inserts a draft invoice
func (r *InvoiceRepository) Create(tx *sql.Tx, inv *entity.Invoice) error {
	query := `
		INSERT INTO invoices (company_id, number, period_start, period_end, status,
			subtotal_cents, discount_cents, tax_cents, total_cents)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		inv.CompanyID,
		inv.Number,
		inv.PeriodStart,
		inv.PeriodEnd,
		inv.Status,
		inv.SubtotalCents,
		inv.DiscountCents,
		inv.TaxCents,
		inv.TotalCents,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	inv.ID = id
	return nil
}

// UpdateTotals sets the computed totals after events were claimed
func (r *InvoiceRepository) UpdateTotals(tx *sql.Tx, id, subtotalCents, discountCents, taxCents, totalCents int64) error {
	query := `
		UPDATE invoices
		SET subtotal_cents = ?, discount_cents = ?, tax_cents = ?, total_cents = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := pick(r.db, tx).Exec(query, subtotalCents, discountCents, taxCents, totalCents, id)
	if err != nil {
		r.logger.Error("Failed to update invoice totals", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice totals: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice by ID. Returns nil when not found.
func (r *InvoiceRepository) GetByID(tx *sql.Tx, id int64) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

	inv, err := scanInvoice(pick(r.db, tx).QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return inv, nil
}

// ListByCompany retrieves a company's invoices with pagination
func (r *InvoiceRepository) ListByCompany(companyID int64, limit, offset int) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE company_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, companyID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

// TransitionStatus moves the invoice between statuses, conditional on the
// expected current status. Returns false when the invoice was not in the
// expected status.
func (r *InvoiceRepository) TransitionStatus(tx *sql.Tx, id int64, from, to string, stamp string, at time.Time) (bool, error) {
	var query string
	switch stamp {
	case "sent_at":
		query = `UPDATE invoices SET status = ?, sent_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	case "paid_at":
		query = `UPDATE invoices SET status = ?, paid_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	case "voided_at":
		query = `UPDATE invoices SET status = ?, voided_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND status = ?`
	default:
		return false, fmt.Errorf("unknown status timestamp column: %s", stamp)
	}

	result, err := pick(r.db, tx).Exec(query, to, at, id, from)
	if err != nil {
		r.logger.Error("Failed to transition invoice status",
			zap.Int64("id", id), zap.String("to", to), zap.Error(err))
		return false, fmt.Errorf("failed to transition invoice status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n == 1, nil
}

// SetPaymentDetails records the optional payment method/reference for a paid
// invoice
func (r *InvoiceRepository) SetPaymentDetails(tx *sql.Tx, id int64, method, reference string) error {
	query := `UPDATE invoices SET payment_method = ?, payment_ref = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`

	_, err := pick(r.db, tx).Exec(query, method, reference, id)
	if err != nil {
		r.logger.Error("Failed to set payment details", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set payment details: %w", err)
	}

	return nil
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var sentAt, paidAt, voidedAt sql.NullTime
	var paymentMethod, paymentRef sql.NullString

	err := row.Scan(
		&inv.ID,
		&inv.CompanyID,
		&inv.Number,
		&inv.PeriodStart,
		&inv.PeriodEnd,
		&inv.Status,
		&inv.SubtotalCents,
		&inv.DiscountCents,
		&inv.TaxCents,
		&inv.TotalCents,
		&sentAt,
		&paidAt,
		&voidedAt,
		&paymentMethod,
		&paymentRef,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		inv.SentAt = &sentAt.Time
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	if voidedAt.Valid {
		inv.VoidedAt = &voidedAt.Time
	}
	if paymentMethod.Valid {
		inv.PaymentMethod = &paymentMethod.String
	}
	if paymentRef.Valid {
		inv.PaymentRef = &paymentRef.String
	}

	return &inv, nil
}
