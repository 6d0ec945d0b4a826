package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// ReportRepository handles report persistence. Status writes are guarded by
// the version column: every UPDATE is conditional on the version the caller
// read, and increments it. Zero rows affected means a concurrent writer won.
type ReportRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sql.DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{db: db, logger: logger}
}

const reportColumns = `
	id, company_id, submission_request_id, status, version,
	determination_outcome, determination_reason, certificate_id,
	receipt_id, filed_at, closing_date, deadline, created_at, updated_at
`

// Create creates a new report in draft
func (r *ReportRepository) Create(tx *sql.Tx, report *entity.Report) error {
	query := `
		INSERT INTO reports (company_id, submission_request_id, status, closing_date, deadline)
		VALUES (?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		report.CompanyID,
		report.SubmissionRequestID,
		report.Status,
		report.ClosingDate,
		report.Deadline,
	)
	if err != nil {
		r.logger.Error("Failed to create report", zap.Error(err))
		return fmt.Errorf("failed to create report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	report.ID = id
	report.Version = 1
	return nil
}

// GetByID retrieves a report by ID. Returns nil when not found.
func (r *ReportRepository) GetByID(tx *sql.Tx, id int64) (*entity.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

	report, err := scanReport(pick(r.db, tx).QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return report, nil
}

// TransitionStatus moves the report to a new status if version still matches.
// Returns false, nil when a concurrent writer already bumped the version.
func (r *ReportRepository) TransitionStatus(tx *sql.Tx, id, version int64, status string) (bool, error) {
	query := `
		UPDATE reports
		SET status = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND version = ?
	`

	result, err := pick(r.db, tx).Exec(query, status, id, version)
	if err != nil {
		r.logger.Error("Failed to transition report status",
			zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return false, fmt.Errorf("failed to transition report status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n == 1, nil
}

// SetDetermination records the determination result. certificateID is only
// set for exempt outcomes, exactly once; existing values are never replaced.
func (r *ReportRepository) SetDetermination(tx *sql.Tx, id int64, outcome, reason string, certificateID *string) error {
	query := `
		UPDATE reports
		SET determination_outcome = ?,
			determination_reason = ?,
			certificate_id = COALESCE(certificate_id, ?),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := pick(r.db, tx).Exec(query, outcome, reason, certificateID, id)
	if err != nil {
		r.logger.Error("Failed to set determination", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set determination: %w", err)
	}

	return nil
}

// SetFiling records the receipt identifier and filed timestamp
func (r *ReportRepository) SetFiling(tx *sql.Tx, id int64, receiptID string, filedAt time.Time) error {
	query := `
		UPDATE reports
		SET receipt_id = ?, filed_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := pick(r.db, tx).Exec(query, receiptID, filedAt, id)
	if err != nil {
		r.logger.Error("Failed to set filing metadata", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set filing metadata: %w", err)
	}

	return nil
}

// ListByCompany retrieves reports for a company with pagination
func (r *ReportRepository) ListByCompany(companyID int64, limit, offset int) ([]*entity.Report, error) {
	query := `SELECT ` + reportColumns + `
		FROM reports
		WHERE company_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	rows, err := r.db.Query(query, companyID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Int64("company_id", companyID), zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*entity.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entity.Report, error) {
	var report entity.Report
	var outcome, reason, certificateID, receiptID sql.NullString
	var filedAt sql.NullTime

	err := row.Scan(
		&report.ID,
		&report.CompanyID,
		&report.SubmissionRequestID,
		&report.Status,
		&report.Version,
		&outcome,
		&reason,
		&certificateID,
		&receiptID,
		&filedAt,
		&report.ClosingDate,
		&report.Deadline,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if outcome.Valid {
		report.DeterminationOutcome = &outcome.String
	}
	if reason.Valid {
		report.DeterminationReason = &reason.String
	}
	if certificateID.Valid {
		report.CertificateID = &certificateID.String
	}
	if receiptID.Valid {
		report.ReceiptID = &receiptID.String
	}
	if filedAt.Valid {
		report.FiledAt = &filedAt.Time
	}

	return &report, nil
}
