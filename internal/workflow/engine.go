// Package workflow orchestrates the report lifecycle. All status writes go
// through transition functions executing inside immediate transactions with
// an optimistic version check, so concurrent actors serialize per report.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/application/dispatcher"
	"github.com/transferdesk/transferdesk/internal/billing"
	"github.com/transferdesk/transferdesk/internal/determination"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/domain/event"
	domain "github.com/transferdesk/transferdesk/internal/domain/workflow"
	"github.com/transferdesk/transferdesk/internal/party"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/pkg/database"
)

// Config holds workflow configuration
type Config struct {
	// DeadlineDays is the fixed offset from closing date to filing deadline
	DeadlineDays int

	// LinkTTL bounds the lifetime of issued party links
	LinkTTL time.Duration
}

// Engine owns every Report status mutation
type Engine struct {
	db             *database.DB
	reportRepo     *repository.ReportRepository
	submissionRepo *repository.SubmissionRepository
	partyRepo      *repository.PartyRepository
	companyRepo    *repository.CompanyRepository
	auditRepo      *repository.AuditRepository
	emitter        *billing.Emitter
	dispatcher     dispatcher.Dispatcher
	cfg            Config
	logger         *zap.Logger
}

// NewEngine creates a new report workflow engine
func NewEngine(
	db *database.DB,
	reportRepo *repository.ReportRepository,
	submissionRepo *repository.SubmissionRepository,
	partyRepo *repository.PartyRepository,
	companyRepo *repository.CompanyRepository,
	auditRepo *repository.AuditRepository,
	emitter *billing.Emitter,
	disp dispatcher.Dispatcher,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		db:             db,
		reportRepo:     reportRepo,
		submissionRepo: submissionRepo,
		partyRepo:      partyRepo,
		companyRepo:    companyRepo,
		auditRepo:      auditRepo,
		emitter:        emitter,
		dispatcher:     disp,
		cfg:            cfg,
		logger:         logger,
	}
}

// CreateSubmission creates a submission request and its draft report in one
// transaction. The report link is set exactly once and never changes.
func (e *Engine) CreateSubmission(ctx context.Context, companyID int64, propertyAddress string, closingDate time.Time, actor string) (*entity.SubmissionRequest, *entity.Report, error) {
	if propertyAddress == "" {
		return nil, nil, apperr.NewValidation("property address is required", "property_address")
	}
	if closingDate.IsZero() {
		return nil, nil, apperr.NewValidation("closing date is required", "closing_date")
	}

	req := &entity.SubmissionRequest{
		CompanyID:       companyID,
		Status:          entity.SubmissionStatusPending,
		PropertyAddress: propertyAddress,
		ClosingDate:     closingDate,
	}
	report := &entity.Report{
		CompanyID:   companyID,
		Status:      entity.ReportStatusDraft,
		ClosingDate: closingDate,
		Deadline:    closingDate.AddDate(0, 0, e.cfg.DeadlineDays),
	}

	err := e.db.WithTransaction(func(tx *sql.Tx) error {
		company, err := e.companyRepo.GetByID(tx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return apperr.NewNotFound("company", fmt.Sprintf("%d", companyID))
		}

		if err := e.submissionRepo.Create(tx, req); err != nil {
			return err
		}

		report.SubmissionRequestID = req.ID
		if err := e.reportRepo.Create(tx, report); err != nil {
			return err
		}

		if err := e.submissionRepo.LinkReport(tx, req.ID, report.ID); err != nil {
			return err
		}
		req.ReportID = &report.ID
		req.Status = entity.SubmissionStatusInProgress

		return e.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:       actor,
			EntityType:  "report",
			EntityID:    report.ID,
			Action:      entity.AuditActionReportTransition,
			AfterStatus: entity.ReportStatusDraft,
		})
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("Submission created",
		zap.Int64("request_id", req.ID),
		zap.Int64("report_id", report.ID),
		zap.Int64("company_id", companyID))

	return req, report, nil
}

// GetSubmission returns a submission request by ID
func (e *Engine) GetSubmission(ctx context.Context, requestID int64) (*entity.SubmissionRequest, error) {
	req, err := e.submissionRepo.GetByID(nil, requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperr.NewNotFound("submission request", fmt.Sprintf("%d", requestID))
	}
	return req, nil
}

// CancelSubmission cancels a request whose report never left draft
func (e *Engine) CancelSubmission(ctx context.Context, requestID int64, actor string) error {
	return e.db.WithTransaction(func(tx *sql.Tx) error {
		req, err := e.submissionRepo.GetByID(tx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NewNotFound("submission request", fmt.Sprintf("%d", requestID))
		}
		if req.Status == entity.SubmissionStatusCompleted || req.Status == entity.SubmissionStatusCancelled {
			return apperr.NewConflict("submission request", req.Status, entity.SubmissionStatusCancelled)
		}

		if req.ReportID != nil {
			report, err := e.reportRepo.GetByID(tx, *req.ReportID)
			if err != nil {
				return err
			}
			if report != nil && report.Status != entity.ReportStatusDraft {
				return apperr.NewConflict("report", report.Status, "cancel submission")
			}
		}

		if err := e.submissionRepo.UpdateStatus(tx, requestID, entity.SubmissionStatusCancelled); err != nil {
			return err
		}

		return e.auditRepo.Append(tx, &entity.AuditRecord{
			Actor:        actor,
			EntityType:   "submission_request",
			EntityID:     requestID,
			Action:       entity.AuditActionReportTransition,
			BeforeStatus: req.Status,
			AfterStatus:  entity.SubmissionStatusCancelled,
		})
	})
}

// DeterminationResponse is the stored outcome returned to the caller
type DeterminationResponse struct {
	Outcome       string  `json:"outcome"`
	Reason        string  `json:"reason,omitempty"`
	CertificateID *string `json:"certificate_id,omitempty"`
}

// RunDetermination evaluates the determination inputs and applies exactly one
// of the two outcomes to a draft report. A report that already carries a
// determination returns the stored result unchanged, so retried requests
// never produce a second certificate.
func (e *Engine) RunDetermination(ctx context.Context, reportID int64, input determination.Input, actor string) (*DeterminationResponse, error) {
	var resp *DeterminationResponse
	var exemptEvent *event.Event

	err := e.withVersionRetry(func() error {
		exemptEvent = nil
		return e.db.WithTransaction(func(tx *sql.Tx) error {
			report, err := e.reportRepo.GetByID(tx, reportID)
			if err != nil {
				return err
			}
			if report == nil {
				return apperr.NewNotFound("report", fmt.Sprintf("%d", reportID))
			}

			// Idempotent replay: the stored determination is authoritative.
			if report.DeterminationOutcome != nil {
				resp = &DeterminationResponse{
					Outcome:       *report.DeterminationOutcome,
					CertificateID: report.CertificateID,
				}
				if report.DeterminationReason != nil {
					resp.Reason = *report.DeterminationReason
				}
				return nil
			}

			if report.Status != entity.ReportStatusDraft {
				return apperr.NewConflict("report", report.Status, "determination")
			}

			result, err := determination.Evaluate(input)
			if err != nil {
				var incomplete *determination.IncompleteError
				if errors.As(err, &incomplete) {
					return apperr.NewValidation("determination incomplete", incomplete.Missing...)
				}
				var invalid *determination.InvalidInputError
				if errors.As(err, &invalid) {
					return apperr.NewValidation(invalid.Error(), invalid.Field)
				}
				return err
			}

			machine := e.machineFor(tx, report)
			trigger := domain.TriggerCompleteDetermination
			if result.Outcome == determination.OutcomeExempt {
				trigger = domain.TriggerDeclareExempt
			}
			if err := e.fire(ctx, machine, trigger, report); err != nil {
				return err
			}

			ok, err := e.reportRepo.TransitionStatus(tx, report.ID, report.Version, machine.State().String())
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NewConcurrency("report", report.ID)
			}

			var certificateID *string
			if result.Outcome == determination.OutcomeExempt {
				id := newCertificateID()
				certificateID = &id
			}
			if err := e.reportRepo.SetDetermination(tx, report.ID, result.Outcome, result.Reason, certificateID); err != nil {
				return err
			}

			if err := e.auditRepo.Append(tx, &entity.AuditRecord{
				Actor:        actor,
				EntityType:   "report",
				EntityID:     report.ID,
				Action:       entity.AuditActionDetermination,
				BeforeStatus: report.Status,
				AfterStatus:  machine.State().String(),
				Detail:       fmt.Sprintf(`{"outcome":%q,"reason":%q}`, result.Outcome, result.Reason),
			}); err != nil {
				return err
			}

			resp = &DeterminationResponse{
				Outcome:       result.Outcome,
				Reason:        result.Reason,
				CertificateID: certificateID,
			}

			// Exempt is terminal: bill the determination and close out the
			// originating request in the same transaction.
			if result.Outcome == determination.OutcomeExempt {
				if _, err := e.emitter.EmitFilingEvent(tx, report, actor); err != nil {
					return err
				}
				if err := e.submissionRepo.UpdateStatus(tx, report.SubmissionRequestID, entity.SubmissionStatusCompleted); err != nil {
					return err
				}
				exemptEvent = event.New(event.TypeDeterminationExempt, report.ID, report.CompanyID,
					map[string]interface{}{"reason": result.Reason, "certificate_id": *certificateID})
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if exemptEvent != nil {
		e.dispatcher.DispatchAsync(ctx, exemptEvent)
	}

	return resp, nil
}

// PartySpec describes one required participant to create
type PartySpec struct {
	Role        string `json:"role" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Email       string `json:"email" binding:"required"`
}

// IssueParties creates the required party set with access links and moves the
// report to collecting. The transfer needs at least one party on each side.
func (e *Engine) IssueParties(ctx context.Context, reportID int64, specs []PartySpec, actor string) ([]*entity.PartyLink, error) {
	if err := validatePartySpecs(specs); err != nil {
		return nil, err
	}

	var links []*entity.PartyLink
	var companyID int64

	err := e.withVersionRetry(func() error {
		links = nil
		return e.db.WithTransaction(func(tx *sql.Tx) error {
			report, err := e.reportRepo.GetByID(tx, reportID)
			if err != nil {
				return err
			}
			if report == nil {
				return apperr.NewNotFound("report", fmt.Sprintf("%d", reportID))
			}
			companyID = report.CompanyID

			machine := e.machineFor(tx, report)
			if !machine.CanFire(domain.TriggerIssueLinks) {
				return apperr.NewConflict("report", report.Status, entity.ReportStatusCollecting)
			}

			expiresAt := time.Now().Add(e.cfg.LinkTTL)
			for _, spec := range specs {
				p := &entity.ReportParty{
					ReportID:    report.ID,
					Role:        spec.Role,
					Kind:        spec.Kind,
					DisplayName: spec.DisplayName,
					Email:       spec.Email,
					Status:      entity.PartyStatusPending,
				}
				if err := e.partyRepo.CreateParty(tx, p); err != nil {
					return err
				}

				link := &entity.PartyLink{
					PartyID:   p.ID,
					Token:     party.NewToken(),
					ExpiresAt: expiresAt,
					SendCount: 1,
				}
				if err := e.partyRepo.CreateLink(tx, link); err != nil {
					return err
				}
				links = append(links, link)

				if err := e.auditRepo.Append(tx, &entity.AuditRecord{
					Actor:       actor,
					EntityType:  "report_party",
					EntityID:    p.ID,
					Action:      entity.AuditActionPartyLinkSent,
					AfterStatus: entity.PartyStatusPending,
				}); err != nil {
					return err
				}
			}

			// The guard counts the links just created, so it fires against
			// the same transaction's state.
			if err := e.fire(ctx, machine, domain.TriggerIssueLinks, report); err != nil {
				return err
			}

			ok, err := e.reportRepo.TransitionStatus(tx, report.ID, report.Version, machine.State().String())
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NewConcurrency("report", report.ID)
			}

			return e.auditRepo.Append(tx, &entity.AuditRecord{
				Actor:        actor,
				EntityType:   "report",
				EntityID:     report.ID,
				Action:       entity.AuditActionReportTransition,
				BeforeStatus: report.Status,
				AfterStatus:  machine.State().String(),
			})
		})
	})
	if err != nil {
		return nil, err
	}

	e.dispatcher.DispatchAsync(ctx, event.New(event.TypeLinksSent, reportID, companyID,
		map[string]interface{}{"party_count": len(links)}))

	return links, nil
}

// PromoteIfComplete moves a collecting report to ready_to_file when every
// required party has submitted. The count is taken fresh inside the
// transaction at decision time; a stale snapshot can neither promote early
// nor miss the last submission. Reports not in collecting are left alone, so
// concurrent calls after the winning promotion are harmless.
func (e *Engine) PromoteIfComplete(ctx context.Context, reportID int64) error {
	var promoted bool
	var companyID int64

	err := e.withVersionRetry(func() error {
		promoted = false
		return e.db.WithTransaction(func(tx *sql.Tx) error {
			report, err := e.reportRepo.GetByID(tx, reportID)
			if err != nil {
				return err
			}
			if report == nil {
				return apperr.NewNotFound("report", fmt.Sprintf("%d", reportID))
			}
			if report.Status != entity.ReportStatusCollecting {
				return nil
			}
			companyID = report.CompanyID

			machine := e.machineFor(tx, report)
			if err := machine.Fire(ctx, domain.TriggerAllSubmitted); err != nil {
				if errors.Is(err, domain.ErrGuardFailed) {
					// Not everyone has submitted yet.
					return nil
				}
				return err
			}

			ok, err := e.reportRepo.TransitionStatus(tx, report.ID, report.Version, machine.State().String())
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NewConcurrency("report", report.ID)
			}
			promoted = true

			return e.auditRepo.Append(tx, &entity.AuditRecord{
				Actor:        "system",
				EntityType:   "report",
				EntityID:     report.ID,
				Action:       entity.AuditActionReportTransition,
				BeforeStatus: report.Status,
				AfterStatus:  machine.State().String(),
			})
		})
	})
	if err != nil {
		return err
	}

	if promoted {
		e.dispatcher.DispatchAsync(ctx, event.New(event.TypeReportReady, reportID, companyID, nil))
	}

	return nil
}

// FileReport records the staff filing action: receipt identifier and filed
// timestamp are set, the billing event is emitted, and the originating
// request is completed, all in one transaction. Of two concurrent calls
// exactly one succeeds; the other observes the filed status and gets a
// ConflictError.
func (e *Engine) FileReport(ctx context.Context, reportID int64, actor string) (*entity.Report, error) {
	var filed *entity.Report

	err := e.withVersionRetry(func() error {
		return e.db.WithTransaction(func(tx *sql.Tx) error {
			report, err := e.reportRepo.GetByID(tx, reportID)
			if err != nil {
				return err
			}
			if report == nil {
				return apperr.NewNotFound("report", fmt.Sprintf("%d", reportID))
			}

			machine := e.machineFor(tx, report)
			if err := e.fire(ctx, machine, domain.TriggerFile, report); err != nil {
				return err
			}

			ok, err := e.reportRepo.TransitionStatus(tx, report.ID, report.Version, machine.State().String())
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NewConcurrency("report", report.ID)
			}

			now := time.Now()
			receiptID := newReceiptID()
			if err := e.reportRepo.SetFiling(tx, report.ID, receiptID, now); err != nil {
				return err
			}

			report.Status = entity.ReportStatusFiled
			report.ReceiptID = &receiptID
			report.FiledAt = &now

			if _, err := e.emitter.EmitFilingEvent(tx, report, actor); err != nil {
				return err
			}

			if err := e.submissionRepo.UpdateStatus(tx, report.SubmissionRequestID, entity.SubmissionStatusCompleted); err != nil {
				return err
			}

			if err := e.auditRepo.Append(tx, &entity.AuditRecord{
				Actor:        actor,
				EntityType:   "report",
				EntityID:     report.ID,
				Action:       entity.AuditActionReportTransition,
				BeforeStatus: entity.ReportStatusReadyToFile,
				AfterStatus:  entity.ReportStatusFiled,
				Detail:       fmt.Sprintf(`{"receipt_id":%q}`, receiptID),
			}); err != nil {
				return err
			}

			filed = report
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	e.dispatcher.DispatchAsync(ctx, event.New(event.TypeReportFiled, filed.ID, filed.CompanyID,
		map[string]interface{}{"receipt_id": *filed.ReceiptID}))

	e.logger.Info("Report filed",
		zap.Int64("report_id", filed.ID),
		zap.String("receipt_id", *filed.ReceiptID))

	return filed, nil
}

// machineFor builds the lifecycle machine positioned at the report's current
// status, with guards reading fresh counts through tx
func (e *Engine) machineFor(tx *sql.Tx, report *entity.Report) domain.StateMachine {
	reportID := report.ID
	guards := domain.Guards{
		HasIssuedLink: func(ctx context.Context) (bool, error) {
			n, err := e.partyRepo.CountActiveLinks(tx, reportID, time.Now())
			return n > 0, err
		},
		AllPartiesSubmitted: func(ctx context.Context) (bool, error) {
			required, submitted, err := e.partyRepo.CountByReport(tx, reportID)
			if err != nil {
				return false, err
			}
			return required > 0 && required == submitted, nil
		},
	}
	return domain.NewReportMachine(domain.State(report.Status), guards)
}

// fire translates machine errors into the caller-facing taxonomy
func (e *Engine) fire(ctx context.Context, machine domain.StateMachine, trigger domain.Trigger, report *entity.Report) error {
	err := machine.Fire(ctx, trigger)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidTransition) || errors.Is(err, domain.ErrGuardFailed) {
		attempted := report.Status
		if to, ok := machine.Peek(trigger); ok {
			attempted = to.String()
		}
		return apperr.NewConflict("report", report.Status, attempted)
	}
	return err
}

// withVersionRetry retries fn exactly once when the optimistic version check
// lost to a concurrent writer. The retry re-reads current state; if the
// other writer made the operation moot the re-run surfaces the conflict.
func (e *Engine) withVersionRetry(fn func() error) error {
	err := fn()
	if err != nil && apperr.IsConcurrency(err) {
		e.logger.Warn("Optimistic version conflict, retrying once", zap.Error(err))
		return fn()
	}
	return err
}

func validatePartySpecs(specs []PartySpec) error {
	if len(specs) == 0 {
		return apperr.NewValidation("at least one party is required", "parties")
	}

	var hasBuyer, hasSeller bool
	for _, s := range specs {
		switch s.Role {
		case entity.PartyRoleBuyer:
			hasBuyer = true
		case entity.PartyRoleSeller:
			hasSeller = true
		default:
			return apperr.NewValidation("unknown party role", "role")
		}

		switch s.Kind {
		case entity.PartyKindIndividual, entity.PartyKindEntity, entity.PartyKindTrust:
		default:
			return apperr.NewValidation("unknown party kind", "kind")
		}

		if s.DisplayName == "" || s.Email == "" {
			return apperr.NewValidation("party display name and email are required", "display_name", "email")
		}
	}

	if !hasBuyer || !hasSeller {
		return apperr.NewValidation("both buyer and seller parties are required", "parties")
	}

	return nil
}
