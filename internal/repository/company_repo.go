package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// CompanyRepository handles company and rate-configuration operations
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{db: db, logger: logger}
}

// Create creates a new company
func (r *CompanyRepository) Create(tx *sql.Tx, company *entity.Company) error {
	query := `
		INSERT INTO companies (name, contact_email, filing_fee_cents, payment_terms_days)
		VALUES (?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		company.Name,
		company.ContactEmail,
		company.FilingFeeCents,
		company.PaymentTermsDays,
	)
	if err != nil {
		r.logger.Error("Failed to create company", zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	company.ID = id
	return nil
}

// GetByID retrieves a company by ID. Returns nil when not found.
func (r *CompanyRepository) GetByID(tx *sql.Tx, id int64) (*entity.Company, error) {
	query := `
		SELECT id, name, contact_email, filing_fee_cents, payment_terms_days,
			created_at, updated_at
		FROM companies
		WHERE id = ?
	`

	var company entity.Company
	err := pick(r.db, tx).QueryRow(query, id).Scan(
		&company.ID,
		&company.Name,
		&company.ContactEmail,
		&company.FilingFeeCents,
		&company.PaymentTermsDays,
		&company.CreatedAt,
		&company.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// UpdateRate updates the company's filing fee and payment terms.
// The emitter always reads the row fresh, so no cache invalidation is needed.
func (r *CompanyRepository) UpdateRate(tx *sql.Tx, id int64, filingFeeCents int64, paymentTermsDays int) error {
	query := `
		UPDATE companies
		SET filing_fee_cents = ?, payment_terms_days = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := pick(r.db, tx).Exec(query, filingFeeCents, paymentTermsDays, id)
	if err != nil {
		r.logger.Error("Failed to update rate", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update rate: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}

	return nil
}
