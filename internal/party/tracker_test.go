package party_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/application/dispatcher"
	"github.com/transferdesk/transferdesk/internal/billing"
	"github.com/transferdesk/transferdesk/internal/determination"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/party"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/internal/workflow"
	"github.com/transferdesk/transferdesk/pkg/database"
)

// trackerEnv wires the tracker against the real workflow engine so a completed
// party set actually promotes the report.
type trackerEnv struct {
	db         *database.DB
	tracker    *party.Tracker
	engine     *workflow.Engine
	reportRepo *repository.ReportRepository
	partyRepo  *repository.PartyRepository
	auditRepo  *repository.AuditRepository
	company    *entity.Company
}

func newTrackerEnv(t *testing.T) *trackerEnv {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../migrations"))

	companyRepo := repository.NewCompanyRepository(db.DB, logger)
	submissionRepo := repository.NewSubmissionRepository(db.DB, logger)
	reportRepo := repository.NewReportRepository(db.DB, logger)
	partyRepo := repository.NewPartyRepository(db.DB, logger)
	eventRepo := repository.NewBillingEventRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	disp := dispatcher.New()
	t.Cleanup(func() { disp.Close() })

	emitter := billing.NewEmitter(db, companyRepo, eventRepo, auditRepo, logger)
	engine := workflow.NewEngine(db, reportRepo, submissionRepo, partyRepo, companyRepo, auditRepo, emitter, disp, workflow.Config{
		DeadlineDays: 30,
		LinkTTL:      14 * 24 * time.Hour,
	}, logger)

	tracker := party.NewTracker(db, reportRepo, partyRepo, auditRepo, disp, engine, party.Config{
		LinkTTL: 14 * 24 * time.Hour,
	}, logger)

	company := &entity.Company{
		Name:             "Test Title Co",
		ContactEmail:     "ops@example.com",
		FilingFeeCents:   7500,
		PaymentTermsDays: 30,
	}
	require.NoError(t, companyRepo.Create(nil, company))

	return &trackerEnv{
		db:         db,
		tracker:    tracker,
		engine:     engine,
		reportRepo: reportRepo,
		partyRepo:  partyRepo,
		auditRepo:  auditRepo,
		company:    company,
	}
}

// newCollectingReport sets up a reportable transfer with an entity buyer and
// an individual seller, and returns their tokens keyed by party kind.
func (env *trackerEnv) newCollectingReport(t *testing.T) (reportID int64, tokens map[string]string) {
	t.Helper()
	ctx := context.Background()

	_, report, err := env.engine.CreateSubmission(ctx, env.company.ID, "1 Main St", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "tester")
	require.NoError(t, err)

	residential := true
	financed := false
	_, err = env.engine.RunDetermination(ctx, report.ID, determination.Input{
		Residential:    &residential,
		Financed:       &financed,
		BuyerType:      determination.BuyerEntity,
		ExemptionCodes: []string{determination.CodeNone},
	}, "tester")
	require.NoError(t, err)

	links, err := env.engine.IssueParties(ctx, report.ID, []workflow.PartySpec{
		{Role: entity.PartyRoleBuyer, Kind: entity.PartyKindEntity, DisplayName: "Acme Holdings LLC", Email: "buyer@example.com"},
		{Role: entity.PartyRoleSeller, Kind: entity.PartyKindIndividual, DisplayName: "Jordan Blake", Email: "seller@example.com"},
	}, "tester")
	require.NoError(t, err)

	tokens = make(map[string]string)
	for _, link := range links {
		p, err := env.partyRepo.GetParty(nil, link.PartyID)
		require.NoError(t, err)
		tokens[p.Kind] = link.Token
	}
	return report.ID, tokens
}

func entityPayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"legal_name":        "Acme Holdings LLC",
		"principal_address": "500 State St, Chicago IL",
		"tax_id":            "12-3456789",
		"beneficial_owners": []map[string]interface{}{
			{
				"full_name":           "Morgan Reyes",
				"residential_address": "44 Pine Ave, Chicago IL",
				"tax_id":              "987-65-4321",
				"ownership_percent":   40.0,
			},
		},
	})
	require.NoError(t, err)
	return raw
}

func individualPayload(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"legal_name":          "Jordan Blake",
		"date_of_birth":       "1984-07-12",
		"residential_address": "12 Oak Lane, Springfield IL",
		"tax_id":              "123-45-6789",
		"citizenship":         "US",
	})
	require.NoError(t, err)
	return raw
}

func (env *trackerEnv) partyByKind(t *testing.T, reportID int64, kind string) *entity.ReportParty {
	t.Helper()
	parties, err := env.partyRepo.ListByReport(nil, reportID)
	require.NoError(t, err)
	for _, p := range parties {
		if p.Kind == kind {
			return p
		}
	}
	t.Fatalf("no %s party on report %d", kind, reportID)
	return nil
}

func TestValidate(t *testing.T) {
	env := newTrackerEnv(t)
	ctx := context.Background()
	reportID, tokens := env.newCollectingReport(t)

	pctx, err := env.tracker.Validate(ctx, tokens[entity.PartyKindEntity])
	require.NoError(t, err)
	assert.Equal(t, reportID, pctx.ReportID)
	assert.Equal(t, entity.PartyRoleBuyer, pctx.Role)
	assert.Equal(t, entity.PartyKindEntity, pctx.Kind)
	assert.Equal(t, entity.PartyStatusPending, pctx.Status)
	assert.False(t, pctx.Deadline.IsZero())

	t.Run("unknown token", func(t *testing.T) {
		_, err := env.tracker.Validate(ctx, "no-such-token")
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("expired token", func(t *testing.T) {
		token := tokens[entity.PartyKindIndividual]
		_, err := env.db.DB.Exec(`UPDATE party_links SET expires_at = ? WHERE token = ?`,
			time.Now().Add(-time.Hour), token)
		require.NoError(t, err)

		_, err = env.tracker.Validate(ctx, token)
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestSubmit_RequiresCertification(t *testing.T) {
	env := newTrackerEnv(t)
	_, tokens := env.newCollectingReport(t)

	err := env.tracker.Submit(context.Background(), tokens[entity.PartyKindEntity], false, entityPayload(t))
	assert.True(t, apperr.IsValidation(err))
}

func TestSubmit_InvalidPayloadNamesFields(t *testing.T) {
	env := newTrackerEnv(t)
	reportID, tokens := env.newCollectingReport(t)

	raw, err := json.Marshal(map[string]interface{}{
		"principal_address": "500 State St, Chicago IL",
		"tax_id":            "12-3456789",
	})
	require.NoError(t, err)

	err = env.tracker.Submit(context.Background(), tokens[entity.PartyKindEntity], true, raw)
	require.Error(t, err)

	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "legal_name")

	// Rejected submission changes nothing.
	p := env.partyByKind(t, reportID, entity.PartyKindEntity)
	assert.Equal(t, entity.PartyStatusPending, p.Status)
}

func TestSubmit_CompletesAndPromotes(t *testing.T) {
	env := newTrackerEnv(t)
	ctx := context.Background()
	reportID, tokens := env.newCollectingReport(t)

	require.NoError(t, env.tracker.Submit(ctx, tokens[entity.PartyKindEntity], true, entityPayload(t)))

	// One of two submitted: still collecting.
	report, err := env.reportRepo.GetByID(nil, reportID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReportStatusCollecting, report.Status)

	required, submitted, err := env.tracker.CompletionCounts(reportID)
	require.NoError(t, err)
	assert.Equal(t, 2, required)
	assert.Equal(t, 1, submitted)

	require.NoError(t, env.tracker.Submit(ctx, tokens[entity.PartyKindIndividual], true, individualPayload(t)))

	// Last submission promotes the report.
	report, err = env.reportRepo.GetByID(nil, reportID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReportStatusReadyToFile, report.Status)

	buyer := env.partyByKind(t, reportID, entity.PartyKindEntity)
	assert.Equal(t, entity.PartyStatusSubmitted, buyer.Status)
	assert.True(t, buyer.Certified)
	require.NotNil(t, buyer.SubmittedAt)

	t.Run("finalized link rejects another submission", func(t *testing.T) {
		err := env.tracker.Submit(ctx, tokens[entity.PartyKindEntity], true, entityPayload(t))
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestSubmit_ParallelSubmissionsPromoteOnce(t *testing.T) {
	env := newTrackerEnv(t)
	ctx := context.Background()
	reportID, tokens := env.newCollectingReport(t)

	// Payloads built up front; goroutines must not fail the test directly.
	buyerPayload := entityPayload(t)
	sellerPayload := individualPayload(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = env.tracker.Submit(ctx, tokens[entity.PartyKindEntity], true, buyerPayload)
	}()
	go func() {
		defer wg.Done()
		errs[1] = env.tracker.Submit(ctx, tokens[entity.PartyKindIndividual], true, sellerPayload)
	}()
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "submission %d", i)
	}

	report, err := env.reportRepo.GetByID(nil, reportID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReportStatusReadyToFile, report.Status)

	// Exactly one promotion regardless of interleaving.
	records, err := env.auditRepo.ListByEntity("report", reportID)
	require.NoError(t, err)
	var promotions int
	for _, rec := range records {
		if rec.AfterStatus == entity.ReportStatusReadyToFile {
			promotions++
		}
	}
	assert.Equal(t, 1, promotions)
}

func TestResend(t *testing.T) {
	env := newTrackerEnv(t)
	ctx := context.Background()
	reportID, tokens := env.newCollectingReport(t)
	seller := env.partyByKind(t, reportID, entity.PartyKindIndividual)

	newLink, err := env.tracker.Resend(ctx, reportID, seller.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, 2, newLink.SendCount)
	assert.NotEqual(t, tokens[entity.PartyKindIndividual], newLink.Token)

	t.Run("old token is dead", func(t *testing.T) {
		_, err := env.tracker.Validate(ctx, tokens[entity.PartyKindIndividual])
		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("new token submits", func(t *testing.T) {
		require.NoError(t, env.tracker.Submit(ctx, newLink.Token, true, individualPayload(t)))
	})

	t.Run("cannot resend to a submitted party", func(t *testing.T) {
		_, err := env.tracker.Resend(ctx, reportID, seller.ID, "tester")
		assert.True(t, apperr.IsConflict(err))
	})

	t.Run("unknown party", func(t *testing.T) {
		_, err := env.tracker.Resend(ctx, reportID, 404, "tester")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestRequestCorrections(t *testing.T) {
	env := newTrackerEnv(t)
	ctx := context.Background()
	reportID, tokens := env.newCollectingReport(t)
	buyer := env.partyByKind(t, reportID, entity.PartyKindEntity)

	t.Run("only submitted parties qualify", func(t *testing.T) {
		err := env.tracker.RequestCorrections(ctx, reportID, buyer.ID, "typo in name", "tester")
		assert.True(t, apperr.IsConflict(err))
	})

	require.NoError(t, env.tracker.Submit(ctx, tokens[entity.PartyKindEntity], true, entityPayload(t)))
	require.NoError(t, env.tracker.RequestCorrections(ctx, reportID, buyer.ID, "typo in name", "tester"))

	reopened := env.partyByKind(t, reportID, entity.PartyKindEntity)
	assert.Equal(t, entity.PartyStatusCorrectionsRequested, reopened.Status)
	assert.False(t, reopened.Certified)

	t.Run("resubmission keeps the prior payload", func(t *testing.T) {
		fixed, err := json.Marshal(map[string]interface{}{
			"legal_name":        "Acme Holdings, LLC",
			"principal_address": "500 State St, Chicago IL",
			"tax_id":            "12-3456789",
			"beneficial_owners": []map[string]interface{}{
				{
					"full_name":           "Morgan Reyes",
					"residential_address": "44 Pine Ave, Chicago IL",
					"tax_id":              "987-65-4321",
					"ownership_percent":   40.0,
				},
			},
		})
		require.NoError(t, err)

		require.NoError(t, env.tracker.Submit(ctx, tokens[entity.PartyKindEntity], true, fixed))

		p := env.partyByKind(t, reportID, entity.PartyKindEntity)
		assert.Equal(t, entity.PartyStatusSubmitted, p.Status)
		require.NotNil(t, p.Payload)
		assert.Contains(t, *p.Payload, "Acme Holdings, LLC")
		require.NotNil(t, p.PreviousPayload)
		assert.Contains(t, *p.PreviousPayload, "Acme Holdings LLC")
	})

	t.Run("not allowed once the report left collecting", func(t *testing.T) {
		require.NoError(t, env.tracker.Submit(ctx, tokens[entity.PartyKindIndividual], true, individualPayload(t)))
		report, err := env.reportRepo.GetByID(nil, reportID)
		require.NoError(t, err)
		require.Equal(t, entity.ReportStatusReadyToFile, report.Status)

		seller := env.partyByKind(t, reportID, entity.PartyKindIndividual)
		err = env.tracker.RequestCorrections(ctx, reportID, seller.ID, "late change", "tester")
		assert.True(t, apperr.IsConflict(err))
	})
}
