package repository

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// AuditRepository is the write-only audit sink. Records are appended in the
// same transaction as the mutation they describe and never updated.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{db: db, logger: logger}
}

// Append writes an audit record
func (r *AuditRepository) Append(tx *sql.Tx, rec *entity.AuditRecord) error {
	query := `
		INSERT INTO audit_records (actor, entity_type, entity_id, action, before_status, after_status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		rec.Actor,
		rec.EntityType,
		rec.EntityID,
		rec.Action,
		rec.BeforeStatus,
		rec.AfterStatus,
		rec.Detail,
	)
	if err != nil {
		r.logger.Error("Failed to append audit record", zap.String("action", rec.Action), zap.Error(err))
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	rec.ID = id
	return nil
}

// ListByEntity retrieves the audit trail for one entity, oldest first
func (r *AuditRepository) ListByEntity(entityType string, entityID int64) ([]*entity.AuditRecord, error) {
	query := `
		SELECT id, actor, entity_type, entity_id, action, before_status, after_status, detail, created_at
		FROM audit_records
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id
	`

	rows, err := r.db.Query(query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list audit records", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer rows.Close()

	var records []*entity.AuditRecord
	for rows.Next() {
		var rec entity.AuditRecord
		err := rows.Scan(
			&rec.ID,
			&rec.Actor,
			&rec.EntityType,
			&rec.EntityID,
			&rec.Action,
			&rec.BeforeStatus,
			&rec.AfterStatus,
			&rec.Detail,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		records = append(records, &rec)
	}

	return records, rows.Err()
}
