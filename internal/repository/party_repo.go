package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/domain/entity"
)

// PartyRepository handles report parties and their access links
type PartyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db *sql.DB, logger *zap.Logger) *PartyRepository {
	return &PartyRepository{db: db, logger: logger}
}

const partyColumns = `
	id, report_id, role, kind, display_name, email, status, certified,
	payload, previous_payload, submitted_at, created_at, updated_at
`

// CreateParty creates a new report party
func (r *PartyRepository) CreateParty(tx *sql.Tx, party *entity.ReportParty) error {
	query := `
		INSERT INTO report_parties (report_id, role, kind, display_name, email, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		party.ReportID,
		party.Role,
		party.Kind,
		party.DisplayName,
		party.Email,
		party.Status,
	)
	if err != nil {
		r.logger.Error("Failed to create party", zap.Error(err))
		return fmt.Errorf("failed to create party: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	party.ID = id
	return nil
}

// GetParty retrieves a party by ID. Returns nil when not found.
func (r *PartyRepository) GetParty(tx *sql.Tx, id int64) (*entity.ReportParty, error) {
	query := `SELECT ` + partyColumns + ` FROM report_parties WHERE id = ?`

	party, err := scanParty(pick(r.db, tx).QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get party", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get party: %w", err)
	}

	return party, nil
}

// ListByReport retrieves all parties for a report
func (r *PartyRepository) ListByReport(tx *sql.Tx, reportID int64) ([]*entity.ReportParty, error) {
	query := `SELECT ` + partyColumns + ` FROM report_parties WHERE report_id = ? ORDER BY id`

	rows, err := pick(r.db, tx).Query(query, reportID)
	if err != nil {
		r.logger.Error("Failed to list parties", zap.Int64("report_id", reportID), zap.Error(err))
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	var parties []*entity.ReportParty
	for rows.Next() {
		party, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, party)
	}

	return parties, rows.Err()
}

// CountByReport returns (required, submitted) counts from current database
// state. The promotion guard calls this inside the submitting transaction so
// the check is never based on a stale snapshot.
func (r *PartyRepository) CountByReport(tx *sql.Tx, reportID int64) (required, submitted int, err error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM report_parties
		WHERE report_id = ?
	`

	err = pick(r.db, tx).QueryRow(query, entity.PartyStatusSubmitted, reportID).Scan(&required, &submitted)
	if err != nil {
		r.logger.Error("Failed to count parties", zap.Int64("report_id", reportID), zap.Error(err))
		return 0, 0, fmt.Errorf("failed to count parties: %w", err)
	}

	return required, submitted, nil
}

// MarkSubmitted records an accepted submission. The previous payload is
// shifted aside rather than overwritten so corrections keep both for audit.
func (r *PartyRepository) MarkSubmitted(tx *sql.Tx, id int64, payload string, submittedAt time.Time) error {
	query := `
		UPDATE report_parties
		SET previous_payload = CASE WHEN payload IS NOT NULL THEN payload ELSE previous_payload END,
			payload = ?,
			status = ?,
			certified = 1,
			submitted_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := pick(r.db, tx).Exec(query, payload, entity.PartyStatusSubmitted, submittedAt, id)
	if err != nil {
		r.logger.Error("Failed to mark party submitted", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark party submitted: %w", err)
	}

	return nil
}

// MarkCorrectionsRequested resets a party to requiring resubmission
func (r *PartyRepository) MarkCorrectionsRequested(tx *sql.Tx, id int64) error {
	query := `
		UPDATE report_parties
		SET status = ?, certified = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	_, err := pick(r.db, tx).Exec(query, entity.PartyStatusCorrectionsRequested, id)
	if err != nil {
		r.logger.Error("Failed to mark corrections requested", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark corrections requested: %w", err)
	}

	return nil
}

const linkColumns = `
	id, party_id, token, expires_at, send_count, superseded, finalized_at, created_at
`

// CreateLink creates a new party link
func (r *PartyRepository) CreateLink(tx *sql.Tx, link *entity.PartyLink) error {
	query := `
		INSERT INTO party_links (party_id, token, expires_at, send_count)
		VALUES (?, ?, ?, ?)
	`

	result, err := pick(r.db, tx).Exec(query,
		link.PartyID,
		link.Token,
		link.ExpiresAt,
		link.SendCount,
	)
	if err != nil {
		r.logger.Error("Failed to create party link", zap.Error(err))
		return fmt.Errorf("failed to create party link: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	link.ID = id
	return nil
}

// GetLinkByToken retrieves a link by token. Returns nil when not found.
func (r *PartyRepository) GetLinkByToken(tx *sql.Tx, token string) (*entity.PartyLink, error) {
	query := `SELECT ` + linkColumns + ` FROM party_links WHERE token = ?`

	link, err := scanLink(pick(r.db, tx).QueryRow(query, token))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get party link", zap.Error(err))
		return nil, fmt.Errorf("failed to get party link: %w", err)
	}

	return link, nil
}

// GetActiveLink retrieves the current non-superseded link for a party.
// Returns nil when the party has no active link.
func (r *PartyRepository) GetActiveLink(tx *sql.Tx, partyID int64) (*entity.PartyLink, error) {
	query := `SELECT ` + linkColumns + `
		FROM party_links
		WHERE party_id = ? AND superseded = 0
		ORDER BY id DESC
		LIMIT 1`

	link, err := scanLink(pick(r.db, tx).QueryRow(query, partyID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active link", zap.Int64("party_id", partyID), zap.Error(err))
		return nil, fmt.Errorf("failed to get active link: %w", err)
	}

	return link, nil
}

// CountActiveLinks counts unexpired, non-superseded links for a report
func (r *PartyRepository) CountActiveLinks(tx *sql.Tx, reportID int64, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM party_links l
		JOIN report_parties p ON p.id = l.party_id
		WHERE p.report_id = ? AND l.superseded = 0 AND l.expires_at > ?
	`

	var count int
	err := pick(r.db, tx).QueryRow(query, reportID, now).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count active links", zap.Int64("report_id", reportID), zap.Error(err))
		return 0, fmt.Errorf("failed to count active links: %w", err)
	}

	return count, nil
}

// SupersedeLinks invalidates all active links for a party before a reissue
func (r *PartyRepository) SupersedeLinks(tx *sql.Tx, partyID int64) error {
	query := `UPDATE party_links SET superseded = 1 WHERE party_id = ? AND superseded = 0`

	_, err := pick(r.db, tx).Exec(query, partyID)
	if err != nil {
		r.logger.Error("Failed to supersede links", zap.Int64("party_id", partyID), zap.Error(err))
		return fmt.Errorf("failed to supersede links: %w", err)
	}

	return nil
}

// FinalizeLink stamps the link as consumed by a final submission
func (r *PartyRepository) FinalizeLink(tx *sql.Tx, id int64, finalizedAt time.Time) error {
	query := `UPDATE party_links SET finalized_at = ? WHERE id = ?`

	_, err := pick(r.db, tx).Exec(query, finalizedAt, id)
	if err != nil {
		r.logger.Error("Failed to finalize link", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to finalize link: %w", err)
	}

	return nil
}

// ReopenLink clears finalized_at and extends expiry so a party can resubmit
// after corrections were requested
func (r *PartyRepository) ReopenLink(tx *sql.Tx, id int64, expiresAt time.Time) error {
	query := `UPDATE party_links SET finalized_at = NULL, expires_at = ? WHERE id = ?`

	_, err := pick(r.db, tx).Exec(query, expiresAt, id)
	if err != nil {
		r.logger.Error("Failed to reopen link", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to reopen link: %w", err)
	}

	return nil
}

func scanParty(row rowScanner) (*entity.ReportParty, error) {
	var party entity.ReportParty
	var payload, previousPayload sql.NullString
	var submittedAt sql.NullTime

	err := row.Scan(
		&party.ID,
		&party.ReportID,
		&party.Role,
		&party.Kind,
		&party.DisplayName,
		&party.Email,
		&party.Status,
		&party.Certified,
		&payload,
		&previousPayload,
		&submittedAt,
		&party.CreatedAt,
		&party.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if payload.Valid {
		party.Payload = &payload.String
	}
	if previousPayload.Valid {
		party.PreviousPayload = &previousPayload.String
	}
	if submittedAt.Valid {
		party.SubmittedAt = &submittedAt.Time
	}

	return &party, nil
}

func scanLink(row rowScanner) (*entity.PartyLink, error) {
	var link entity.PartyLink
	var finalizedAt sql.NullTime

	err := row.Scan(
		&link.ID,
		&link.PartyID,
		&link.Token,
		&link.ExpiresAt,
		&link.SendCount,
		&link.Superseded,
		&finalizedAt,
		&link.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if finalizedAt.Valid {
		link.FinalizedAt = &finalizedAt.Time
	}

	return &link, nil
}
