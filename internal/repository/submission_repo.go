package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// SubmissionRepository handles submission-request operations
type SubmissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) *SubmissionRepository {
	return &SubmissionRepository{db: db, logger: logger}
}

// Create creates a new submission request
func (r *SubmissionRepository) Create(tx *sql.Tx, req *entity.SubmissionRequest) error {
	query := `
		INSERT INTO submission_requests (company_id, status, property_address, closing_date)
		VALUES (?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		req.CompanyID,
		req.Status,
		req.PropertyAddress,
		req.ClosingDate,
	)
	if err != nil {
		r.logger.Error("Failed to create submission request", zap.Error(err))
		return fmt.Errorf("failed to create submission request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves a submission request by ID. Returns nil when not found.
func (r *SubmissionRepository) GetByID(tx *sql.Tx, id int64) (*entity.SubmissionRequest, error) {
	query := `
		SELECT id, company_id, status, property_address, closing_date, report_id,
			created_at, updated_at
		FROM submission_requests
		WHERE id = ?
	`

	var req entity.SubmissionRequest
	var reportID sql.NullInt64

	err := pick(r.db, tx).QueryRow(query, id).Scan(
		&req.ID,
		&req.CompanyID,
		&req.Status,
		&req.PropertyAddress,
		&req.ClosingDate,
		&reportID,
		&req.CreatedAt,
		&req.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get submission request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get submission request: %w", err)
	}

	if reportID.Valid {
		req.ReportID = &reportID.Int64
	}

	return &req, nil
}

// LinkReport sets report_id exactly once. A request already linked to a
// report keeps its original link; the update is conditional on NULL.
func (r *SubmissionRepository) LinkReport(tx *sql.Tx, id, reportID int64) error {
	query := `
		UPDATE submission_requests
		SET report_id = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND report_id IS NULL
	`

	result, err := pick(r.db, tx).Exec(query, reportID, entity.SubmissionStatusInProgress, id)
	if err != nil {
		r.logger.Error("Failed to link report", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to link report: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("submission request %d is already linked to a report", id)
	}

	return nil
}

// UpdateStatus updates the request status. Terminal statuses never revert:
// a completed or cancelled request is left untouched.
func (r *SubmissionRepository) UpdateStatus(tx *sql.Tx, id int64, status string) error {
	query := `
		UPDATE submission_requests
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND status NOT IN (?, ?)
	`

	_, err := pick(r.db, tx).Exec(query, status, id,
		entity.SubmissionStatusCompleted, entity.SubmissionStatusCancelled)
	if err != nil {
		r.logger.Error("Failed to update submission status",
			zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update submission status: %w", err)
	}

	return nil
}
