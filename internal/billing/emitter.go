// Package billing implements charge emission and invoice generation.
// Automatic events are idempotent per (report, event type); invoices claim
// events atomically so an event is billed at most once, ever.
package billing

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/pkg/database"
	"github.com/transferdesk/transferdesk/pkg/utils"
)

// Emitter creates billing events. The workflow engine calls EmitFilingEvent
// inside its own transaction on terminal report transitions; manual events
// come through the separate authorized path.
type Emitter struct {
	db          *database.DB
	companyRepo *repository.CompanyRepository
	eventRepo   *repository.BillingEventRepository
	auditRepo   *repository.AuditRepository
	logger      *zap.Logger
}

// NewEmitter creates a new billing event emitter
func NewEmitter(
	db *database.DB,
	companyRepo *repository.CompanyRepository,
	eventRepo *repository.BillingEventRepository,
	auditRepo *repository.AuditRepository,
	logger *zap.Logger,
) *Emitter {
	return &Emitter{
		db:          db,
		companyRepo: companyRepo,
		eventRepo:   eventRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// EmitFilingEvent creates the filing_accepted event for a report reaching a
// terminal state. The company rate is read inside tx at emission time; a
// cached or creation-time rate is never used. If the event already exists the
// call is a no-op returning the existing event, which makes retried filing
// requests safe.
func (e *Emitter) EmitFilingEvent(tx *sql.Tx, report *entity.Report, actor string) (*entity.BillingEvent, error) {
	existing, err := e.eventRepo.GetByReportAndType(tx, report.ID, entity.EventTypeFilingAccepted)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.logger.Info("Billing event already exists, skipping emission",
			zap.Int64("report_id", report.ID),
			zap.Int64("event_id", existing.ID))
		return existing, nil
	}

	company, err := e.companyRepo.GetByID(tx, report.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		// Foreign keys should make this unreachable; if it happens the
		// filing must not be silently free.
		e.logger.Error("Company rate missing at emission time",
			zap.Int64("report_id", report.ID),
			zap.Int64("company_id", report.CompanyID))
		return nil, apperr.NewNotFound("company", fmt.Sprintf("%d", report.CompanyID))
	}

	reportID := report.ID
	ev := &entity.BillingEvent{
		CompanyID:   company.ID,
		ReportID:    &reportID,
		EventType:   entity.EventTypeFilingAccepted,
		Description: fmt.Sprintf("Filing accepted for report %d", report.ID),
		AmountCents: company.FilingFeeCents,
		Quantity:    1,
	}

	if err := e.eventRepo.Create(tx, ev); err != nil {
		// The partial unique index backstops a concurrent emission; return
		// the winner's event rather than failing the retry.
		if winner, getErr := e.eventRepo.GetByReportAndType(tx, report.ID, entity.EventTypeFilingAccepted); getErr == nil && winner != nil {
			return winner, nil
		}
		return nil, err
	}

	audit := &entity.AuditRecord{
		Actor:       actor,
		EntityType:  "billing_event",
		EntityID:    ev.ID,
		Action:      entity.AuditActionBillingEventCreated,
		AfterStatus: ev.EventType,
		Detail:      fmt.Sprintf(`{"report_id":%d,"amount_cents":%d}`, report.ID, ev.AmountCents),
	}
	if err := e.auditRepo.Append(tx, audit); err != nil {
		return nil, err
	}

	e.logger.Info("Billing event emitted",
		zap.Int64("report_id", report.ID),
		zap.Int64("company_id", company.ID),
		zap.Int64("amount_cents", ev.AmountCents))

	return ev, nil
}

// CreateManualEvent creates a credit, adjustment, expedite fee or other
// manual line item. Credits carry negative amounts. Manual events are not
// subject to the one-per-report key; a company can receive any number.
func (e *Emitter) CreateManualEvent(companyID int64, reportID *int64, eventType, description string, amountCents, quantity int64, actor string) (*entity.BillingEvent, error) {
	if !entity.IsManualType(eventType) {
		return nil, apperr.NewValidation("event type is not a manual type", "event_type")
	}
	if err := utils.ValidateCents(amountCents); err != nil {
		return nil, apperr.NewValidation(err.Error(), "amount_cents")
	}
	if quantity <= 0 {
		return nil, apperr.NewValidation("quantity must be positive", "quantity")
	}

	ev := &entity.BillingEvent{
		CompanyID:   companyID,
		ReportID:    reportID,
		EventType:   eventType,
		Description: description,
		AmountCents: amountCents,
		Quantity:    quantity,
	}

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		company, err := e.companyRepo.GetByID(tx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return apperr.NewNotFound("company", fmt.Sprintf("%d", companyID))
		}

		if err := e.eventRepo.Create(tx, ev); err != nil {
			return err
		}

		return e.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:       actor,
			EntityType:  "billing_event",
			EntityID:    ev.ID,
			Action:      entity.AuditActionBillingEventCreated,
			AfterStatus: eventType,
			Detail:      fmt.Sprintf(`{"amount_cents":%d,"quantity":%d}`, amountCents, quantity),
		})
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Manual billing event created",
		zap.Int64("company_id", companyID),
		zap.String("event_type", eventType),
		zap.Int64("amount_cents", amountCents))

	return ev, nil
}
