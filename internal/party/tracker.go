// Package party manages report parties and their access links: issuing and
// reissuing links, validating portal tokens, accepting submissions, and
// signalling the workflow engine when the party set is complete.
package party

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/application/dispatcher"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/domain/event"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/pkg/database"
)

// Promoter re-evaluates a report's party completion and promotes it to
// ready_to_file when every required party has submitted. Implemented by the
// workflow engine; called after each accepted submission.
type Promoter interface {
	PromoteIfComplete(ctx context.Context, reportID int64) error
}

// Config holds tracker configuration
type Config struct {
	LinkTTL time.Duration
}

// Tracker owns the ReportParty/PartyLink lifecycle
type Tracker struct {
	db         *database.DB
	reportRepo *repository.ReportRepository
	partyRepo  *repository.PartyRepository
	auditRepo  *repository.AuditRepository
	dispatcher dispatcher.Dispatcher
	promoter   Promoter
	cfg        Config
	logger     *zap.Logger
}

// NewTracker creates a new party collection tracker
func NewTracker(
	db *database.DB,
	reportRepo *repository.ReportRepository,
	partyRepo *repository.PartyRepository,
	auditRepo *repository.AuditRepository,
	disp dispatcher.Dispatcher,
	promoter Promoter,
	cfg Config,
	logger *zap.Logger,
) *Tracker {
	return &Tracker{
		db:         db,
		reportRepo: reportRepo,
		partyRepo:  partyRepo,
		auditRepo:  auditRepo,
		dispatcher: disp,
		promoter:   promoter,
		cfg:        cfg,
		logger:     logger,
	}
}

// Context is what the portal learns from a valid token. It never exposes
// other parties' data.
type Context struct {
	PartyID   int64     `json:"party_id"`
	ReportID  int64     `json:"report_id"`
	Role      string    `json:"role"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Deadline  time.Time `json:"deadline"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Validate resolves a portal token to its party context. Unknown, expired
// and superseded tokens are indistinguishably not found.
func (t *Tracker) Validate(ctx context.Context, token string) (*Context, error) {
	link, err := t.partyRepo.GetLinkByToken(nil, token)
	if err != nil {
		return nil, err
	}
	if link == nil || link.Superseded || link.IsExpired(time.Now()) {
		return nil, apperr.NewNotFound("party link", "token")
	}

	p, err := t.partyRepo.GetParty(nil, link.PartyID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NewNotFound("party", fmt.Sprintf("%d", link.PartyID))
	}

	report, err := t.reportRepo.GetByID(nil, p.ReportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apperr.NewNotFound("report", fmt.Sprintf("%d", p.ReportID))
	}

	return &Context{
		PartyID:   p.ID,
		ReportID:  p.ReportID,
		Role:      p.Role,
		Kind:      p.Kind,
		Status:    p.Status,
		Deadline:  report.Deadline,
		ExpiresAt: link.ExpiresAt,
	}, nil
}

// Submit accepts a party's submission through their link token.
//
// Requirements: token valid and not finalized (unless reopened for
// corrections), certification flag true, payload matching the schema for the
// party's declared kind. On success the party becomes submitted, the link is
// finalized, and the report is re-evaluated for promotion.
func (t *Tracker) Submit(ctx context.Context, token string, certified bool, payload json.RawMessage) error {
	if !certified {
		return apperr.NewValidation("certification is required before submission", "certified")
	}

	var reportID, companyID, partyID int64

	err := t.db.WithTransaction(func(tx *sql.Tx) error {
		link, err := t.partyRepo.GetLinkByToken(tx, token)
		if err != nil {
			return err
		}
		if link == nil || link.Superseded || link.IsExpired(time.Now()) {
			return apperr.NewNotFound("party link", "token")
		}
		if link.FinalizedAt != nil {
			return apperr.NewConflict("party link", "finalized", "submit")
		}

		p, err := t.partyRepo.GetParty(tx, link.PartyID)
		if err != nil {
			return err
		}
		if p == nil {
			return apperr.NewNotFound("party", fmt.Sprintf("%d", link.PartyID))
		}
		if p.Status == entity.PartyStatusSubmitted {
			return apperr.NewConflict("party", p.Status, "submit")
		}

		if err := ValidatePayload(p.Kind, payload); err != nil {
			return err
		}

		report, err := t.reportRepo.GetByID(tx, p.ReportID)
		if err != nil {
			return err
		}
		if report == nil {
			return apperr.NewNotFound("report", fmt.Sprintf("%d", p.ReportID))
		}
		if report.Status != entity.ReportStatusCollecting {
			return apperr.NewConflict("report", report.Status, "party submission")
		}

		now := time.Now()
		if err := t.partyRepo.MarkSubmitted(tx, p.ID, string(payload), now); err != nil {
			return err
		}
		if err := t.partyRepo.FinalizeLink(tx, link.ID, now); err != nil {
			return err
		}

		reportID = p.ReportID
		companyID = report.CompanyID
		partyID = p.ID

		return t.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:        fmt.Sprintf("party:%d", p.ID),
			EntityType:   "report_party",
			EntityID:     p.ID,
			Action:       entity.AuditActionPartySubmitted,
			BeforeStatus: p.Status,
			AfterStatus:  entity.PartyStatusSubmitted,
		})
	})
	if err != nil {
		return err
	}

	t.dispatcher.DispatchAsync(ctx, event.New(event.TypePartySubmitted, reportID, companyID,
		map[string]interface{}{"party_id": partyID}))

	// The promotion runs in its own transaction with a fresh count, so a
	// concurrent submission that commits between ours and this call is
	// still observed correctly.
	if err := t.promoter.PromoteIfComplete(ctx, reportID); err != nil {
		return err
	}

	return nil
}

// Resend reissues a party's link: a new token is created and every previous
// link is invalidated, never two active tokens at once. The action is audited
// distinctly from the original send.
func (t *Tracker) Resend(ctx context.Context, reportID, partyID int64, actor string) (*entity.PartyLink, error) {
	var newLink *entity.PartyLink
	var companyID int64

	err := t.db.WithTransaction(func(tx *sql.Tx) error {
		p, err := t.partyRepo.GetParty(tx, partyID)
		if err != nil {
			return err
		}
		if p == nil || p.ReportID != reportID {
			return apperr.NewNotFound("party", fmt.Sprintf("%d", partyID))
		}
		if p.Status == entity.PartyStatusSubmitted {
			return apperr.NewConflict("party", p.Status, "resend link")
		}

		report, err := t.reportRepo.GetByID(tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return apperr.NewNotFound("report", fmt.Sprintf("%d", reportID))
		}
		companyID = report.CompanyID

		prev, err := t.partyRepo.GetActiveLink(tx, partyID)
		if err != nil {
			return err
		}
		sendCount := 1
		if prev != nil {
			sendCount = prev.SendCount + 1
		}

		if err := t.partyRepo.SupersedeLinks(tx, partyID); err != nil {
			return err
		}

		newLink = &entity.PartyLink{
			PartyID:   partyID,
			Token:     NewToken(),
			ExpiresAt: time.Now().Add(t.cfg.LinkTTL),
			SendCount: sendCount,
		}
		if err := t.partyRepo.CreateLink(tx, newLink); err != nil {
			return err
		}

		return t.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:      actor,
			EntityType: "report_party",
			EntityID:   partyID,
			Action:     entity.AuditActionPartyLinkResent,
			Detail:     fmt.Sprintf(`{"send_count":%d}`, sendCount),
		})
	})
	if err != nil {
		return nil, err
	}

	t.dispatcher.DispatchAsync(ctx, event.New(event.TypeLinksSent, reportID, companyID,
		map[string]interface{}{"party_id": partyID, "resend": true}))

	t.logger.Info("Party link reissued",
		zap.Int64("report_id", reportID),
		zap.Int64("party_id", partyID),
		zap.Int("send_count", newLink.SendCount))

	return newLink, nil
}

// RequestCorrections resets a submitted party to corrections_requested. The
// previously submitted payload is retained for audit, and the party's link is
// reopened so the party can resubmit. Only permitted while the report is
// still collecting.
func (t *Tracker) RequestCorrections(ctx context.Context, reportID, partyID int64, note, actor string) error {
	var companyID int64

	err := t.db.WithTransaction(func(tx *sql.Tx) error {
		report, err := t.reportRepo.GetByID(tx, reportID)
		if err != nil {
			return err
		}
		if report == nil {
			return apperr.NewNotFound("report", fmt.Sprintf("%d", reportID))
		}
		if report.Status != entity.ReportStatusCollecting {
			return apperr.NewConflict("report", report.Status, "request corrections")
		}
		companyID = report.CompanyID

		p, err := t.partyRepo.GetParty(tx, partyID)
		if err != nil {
			return err
		}
		if p == nil || p.ReportID != reportID {
			return apperr.NewNotFound("party", fmt.Sprintf("%d", partyID))
		}
		if p.Status != entity.PartyStatusSubmitted {
			return apperr.NewConflict("party", p.Status, "request corrections")
		}

		if err := t.partyRepo.MarkCorrectionsRequested(tx, partyID); err != nil {
			return err
		}

		link, err := t.partyRepo.GetActiveLink(tx, partyID)
		if err != nil {
			return err
		}
		if link != nil {
			if err := t.partyRepo.ReopenLink(tx, link.ID, time.Now().Add(t.cfg.LinkTTL)); err != nil {
				return err
			}
		} else {
			fresh := &entity.PartyLink{
				PartyID:   partyID,
				Token:     NewToken(),
				ExpiresAt: time.Now().Add(t.cfg.LinkTTL),
				SendCount: 1,
			}
			if err := t.partyRepo.CreateLink(tx, fresh); err != nil {
				return err
			}
		}

		return t.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:        actor,
			EntityType:   "report_party",
			EntityID:     partyID,
			Action:       entity.AuditActionCorrectionRequested,
			BeforeStatus: entity.PartyStatusSubmitted,
			AfterStatus:  entity.PartyStatusCorrectionsRequested,
			Detail:       fmt.Sprintf(`{"note":%q}`, note),
		})
	})
	if err != nil {
		return err
	}

	t.dispatcher.DispatchAsync(ctx, event.New(event.TypeCorrectionRequested, reportID, companyID,
		map[string]interface{}{"party_id": partyID, "note": note}))

	return nil
}

// CompletionCounts returns (required, submitted) for a report from current
// database state
func (t *Tracker) CompletionCounts(reportID int64) (required, submitted int, err error) {
	return t.partyRepo.CountByReport(nil, reportID)
}
