package billing

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/pkg/database"
)

// ErrNoUnbilledEvents is returned when the candidate set for a period is
// empty. An empty invoice is never created.
var ErrNoUnbilledEvents = errors.New("no unbilled events in period")

// GenerateOptions carries the administrator-supplied adjustments applied to
// a generated invoice
type GenerateOptions struct {
	DiscountCents int64
	TaxCents      int64
}

// Generator aggregates unbilled billing events into period invoices
type Generator struct {
	db          *database.DB
	companyRepo *repository.CompanyRepository
	eventRepo   *repository.BillingEventRepository
	invoiceRepo *repository.InvoiceRepository
	auditRepo   *repository.AuditRepository
	logger      *zap.Logger
}

// NewGenerator creates a new invoice generator
func NewGenerator(
	db *database.DB,
	companyRepo *repository.CompanyRepository,
	eventRepo *repository.BillingEventRepository,
	invoiceRepo *repository.InvoiceRepository,
	auditRepo *repository.AuditRepository,
	logger *zap.Logger,
) *Generator {
	return &Generator{
		db:          db,
		companyRepo: companyRepo,
		eventRepo:   eventRepo,
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// Generate collects the company's unbilled events inside the period and
// produces one draft invoice. The period bounds are calendar dates, both
// inclusive: an event stamped any time on the last day belongs to the period,
// and start == end is a valid single-day period. Selection, sequence
// allocation, invoice creation and event claiming all happen in one
// transaction, so a concurrent generation for the same period either sees no
// remaining events or loses a claim and rolls back entirely.
func (g *Generator) Generate(companyID int64, periodStart, periodEnd time.Time, opts GenerateOptions, actor string) (*entity.Invoice, error) {
	if opts.DiscountCents < 0 || opts.TaxCents < 0 {
		return nil, apperr.NewValidation("discount and tax must not be negative", "discount_cents", "tax_cents")
	}
	if periodEnd.Before(periodStart) {
		return nil, apperr.NewValidation("period end precedes period start", "period_start", "period_end")
	}

	var invoice *entity.Invoice

	err := g.db.WithTransaction(func(tx *sql.Tx) error {
		company, err := g.companyRepo.GetByID(tx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return apperr.NewNotFound("company", fmt.Sprintf("%d", companyID))
		}

		// The whole of the periodEnd day is inside the period, so the cutoff
		// is the start of the following day.
		events, err := g.eventRepo.ListUnbilled(tx, companyID, periodStart, periodEnd.AddDate(0, 0, 1))
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return ErrNoUnbilledEvents
		}

		yearMonth := periodEnd.Format("200601")
		seq, err := g.invoiceRepo.NextSequence(tx, companyID, yearMonth)
		if err != nil {
			return err
		}

		invoice = &entity.Invoice{
			CompanyID:     companyID,
			Number:        fmt.Sprintf("INV-%06d-%s-%04d", companyID, yearMonth, seq),
			PeriodStart:   periodStart,
			PeriodEnd:     periodEnd,
			Status:        entity.InvoiceStatusDraft,
			DiscountCents: opts.DiscountCents,
			TaxCents:      opts.TaxCents,
		}
		if err := g.invoiceRepo.Create(tx, invoice); err != nil {
			return err
		}

		now := time.Now()
		var subtotal int64
		for _, ev := range events {
			claimed, err := g.eventRepo.ClaimForInvoice(tx, ev.ID, invoice.ID, now)
			if err != nil {
				return err
			}
			if !claimed {
				// Another generation claimed this event between our read and
				// the update; roll the whole invoice back.
				return apperr.NewConcurrency("billing_event", ev.ID)
			}
			subtotal += ev.LineTotalCents()
		}

		invoice.SubtotalCents = subtotal
		invoice.TotalCents = subtotal - opts.DiscountCents + opts.TaxCents
		if err := g.invoiceRepo.UpdateTotals(tx, invoice.ID, invoice.SubtotalCents, invoice.DiscountCents, invoice.TaxCents, invoice.TotalCents); err != nil {
			return err
		}

		return g.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:       actor,
			EntityType:  "invoice",
			EntityID:    invoice.ID,
			Action:      entity.AuditActionInvoiceGenerated,
			AfterStatus: entity.InvoiceStatusDraft,
			Detail: fmt.Sprintf(`{"number":%q,"event_count":%d,"total_cents":%d}`,
				invoice.Number, len(events), invoice.TotalCents),
		})
	})
	if err != nil {
		return nil, err
	}

	g.logger.Info("Invoice generated",
		zap.Int64("company_id", companyID),
		zap.String("number", invoice.Number),
		zap.Int64("total_cents", invoice.TotalCents))

	return invoice, nil
}

// MarkSent transitions a draft invoice to sent
func (g *Generator) MarkSent(invoiceID int64, actor string) error {
	return g.transition(invoiceID, entity.InvoiceStatusDraft, entity.InvoiceStatusSent, "sent_at", actor, nil)
}

// MarkPaid transitions a sent invoice to paid, recording the optional
// payment method and reference
func (g *Generator) MarkPaid(invoiceID int64, method, reference, actor string) error {
	return g.transition(invoiceID, entity.InvoiceStatusSent, entity.InvoiceStatusPaid, "paid_at", actor, func(tx *sql.Tx) error {
		if method == "" && reference == "" {
			return nil
		}
		return g.invoiceRepo.SetPaymentDetails(tx, invoiceID, method, reference)
	})
}

// MarkVoid transitions a sent invoice to void
func (g *Generator) MarkVoid(invoiceID int64, actor string) error {
	return g.transition(invoiceID, entity.InvoiceStatusSent, entity.InvoiceStatusVoid, "voided_at", actor, nil)
}

func (g *Generator) transition(invoiceID int64, from, to, stamp, actor string, extra func(tx *sql.Tx) error) error {
	return g.db.WithTransaction(func(tx *sql.Tx) error {
		ok, err := g.invoiceRepo.TransitionStatus(tx, invoiceID, from, to, stamp, time.Now())
		if err != nil {
			return err
		}
		if !ok {
			current, err := g.invoiceRepo.GetByID(tx, invoiceID)
			if err != nil {
				return err
			}
			if current == nil {
				return apperr.NewNotFound("invoice", fmt.Sprintf("%d", invoiceID))
			}
			return apperr.NewConflict("invoice", current.Status, to)
		}

		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}

		return g.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:        actor,
			EntityType:   "invoice",
			EntityID:     invoiceID,
			Action:       entity.AuditActionInvoiceStatus,
			BeforeStatus: from,
			AfterStatus:  to,
		})
	})
}
