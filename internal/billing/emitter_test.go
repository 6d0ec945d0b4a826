package billing

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/pkg/database"
)

// testEnv wires the billing components against a throwaway sqlite database
// with the real schema applied.
type testEnv struct {
	db          *database.DB
	companyRepo *repository.CompanyRepository
	eventRepo   *repository.BillingEventRepository
	invoiceRepo *repository.InvoiceRepository
	auditRepo   *repository.AuditRepository
	emitter     *Emitter
	generator   *Generator
}

func newTestEnv(t *testing.T) *testEnv {
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
	eventRepo := repository.NewBillingEventRepository(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	return &testEnv{
		db:          db,
		companyRepo: companyRepo,
		eventRepo:   eventRepo,
		invoiceRepo: invoiceRepo,
		auditRepo:   auditRepo,
		emitter:     NewEmitter(db, companyRepo, eventRepo, auditRepo, logger),
		generator:   NewGenerator(db, companyRepo, eventRepo, invoiceRepo, auditRepo, logger),
	}
}

// wideWindow is a period bound generously covering rows created during the
// test, in UTC to match the database's timestamps.
func wideWindow() (time.Time, time.Time) {
	now := time.Now().UTC()
	return now.Add(-24 * time.Hour), now.Add(24 * time.Hour)
}

func (env *testEnv) createCompany(t *testing.T, feeCents int64) *entity.Company {
	t.Helper()
	company := &entity.Company{
		Name:             "Test Title Co",
		ContactEmail:     "billing@example.com",
		FilingFeeCents:   feeCents,
		PaymentTermsDays: 30,
	}
	require.NoError(t, env.companyRepo.Create(nil, company))
	return company
}

// createReport inserts the submission request and report rows directly; the
// billing tests only need a report identity to hang events on.
func (env *testEnv) createReport(t *testing.T, companyID int64) *entity.Report {
	t.Helper()

	var report entity.Report
	err := env.db.WithTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO submission_requests (company_id, status, property_address, closing_date)
			VALUES (?, 'in_progress', '1 Main St', '2026-06-01')`, companyID)
		if err != nil {
			return err
		}
		reqID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		res, err = tx.Exec(`
			INSERT INTO reports (company_id, submission_request_id, status, closing_date, deadline)
			VALUES (?, ?, 'ready_to_file', '2026-06-01', '2026-07-01')`, companyID, reqID)
		if err != nil {
			return err
		}
		reportID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		report = entity.Report{
			ID:                  reportID,
			CompanyID:           companyID,
			SubmissionRequestID: reqID,
			Status:              entity.ReportStatusReadyToFile,
			Version:             1,
		}
		return nil
	})
	require.NoError(t, err)
	return &report
}

func (env *testEnv) emitInTx(t *testing.T, report *entity.Report) *entity.BillingEvent {
	t.Helper()
	var ev *entity.BillingEvent
	err := env.db.WithTransaction(func(tx *sql.Tx) error {
		var err error
		ev, err = env.emitter.EmitFilingEvent(tx, report, "tester")
		return err
	})
	require.NoError(t, err)
	return ev
}

func TestEmitFilingEvent_UsesCurrentRate(t *testing.T) {
	env := newTestEnv(t)
	company := env.createCompany(t, 7500)
	report := env.createReport(t, company.ID)

	ev := env.emitInTx(t, report)

	assert.Equal(t, entity.EventTypeFilingAccepted, ev.EventType)
	assert.Equal(t, int64(7500), ev.AmountCents)
	assert.Equal(t, int64(1), ev.Quantity)
	require.NotNil(t, ev.ReportID)
	assert.Equal(t, report.ID, *ev.ReportID)
	assert.Nil(t, ev.InvoiceID)
}

func TestEmitFilingEvent_RateReadAtEmissionTime(t *testing.T) {
	env := newTestEnv(t)
	company := env.createCompany(t, 7500)
	report := env.createReport(t, company.ID)

	// Rate changes after report creation but before emission; the event must
	// carry the new rate.
	require.NoError(t, env.companyRepo.UpdateRate(nil, company.ID, 6000, 30))

	ev := env.emitInTx(t, report)
	assert.Equal(t, int64(6000), ev.AmountCents)
}

func TestEmitFilingEvent_IdempotentPerReport(t *testing.T) {
	env := newTestEnv(t)
	company := env.createCompany(t, 7500)
	report := env.createReport(t, company.ID)

	first := env.emitInTx(t, report)
	second := env.emitInTx(t, report)

	assert.Equal(t, first.ID, second.ID)

	start, end := wideWindow()
	events, err := env.eventRepo.ListUnbilled(nil, company.ID, start, end)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEmitFilingEvent_MissingCompanyFails(t *testing.T) {
	env := newTestEnv(t)

	report := &entity.Report{ID: 999, CompanyID: 999}
	err := env.db.WithTransaction(func(tx *sql.Tx) error {
		_, err := env.emitter.EmitFilingEvent(tx, report, "tester")
		return err
	})
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateManualEvent_Validation(t *testing.T) {
	env := newTestEnv(t)
	company := env.createCompany(t, 7500)

	t.Run("filing_accepted rejected on manual path", func(t *testing.T) {
		_, err := env.emitter.CreateManualEvent(company.ID, nil, entity.EventTypeFilingAccepted, "sneaky", 100, 1, "tester")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("zero quantity rejected", func(t *testing.T) {
		_, err := env.emitter.CreateManualEvent(company.ID, nil, entity.EventTypeExpediteFee, "rush", 5000, 0, "tester")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("amount magnitude bounded", func(t *testing.T) {
		_, err := env.emitter.CreateManualEvent(company.ID, nil, entity.EventTypeOther, "typo", 100_000_001, 1, "tester")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("unknown company rejected", func(t *testing.T) {
		_, err := env.emitter.CreateManualEvent(12345, nil, entity.EventTypeCredit, "credit", -500, 1, "tester")
		assert.True(t, apperr.IsNotFound(err))
	})
}

func TestCreateManualEvent_NegativeCredit(t *testing.T) {
	env := newTestEnv(t)
	company := env.createCompany(t, 7500)

	ev, err := env.emitter.CreateManualEvent(company.ID, nil, entity.EventTypeCredit, "goodwill credit", -2500, 1, "tester")
	require.NoError(t, err)

	assert.Equal(t, int64(-2500), ev.AmountCents)
	assert.Equal(t, int64(-2500), ev.LineTotalCents())
}

func TestCreateManualEvent_RepeatsAllowed(t *testing.T) {
	env := newTestEnv(t)
	company := env.createCompany(t, 7500)
	report := env.createReport(t, company.ID)

	// Manual events are not subject to the one-per-report key.
	for i := 0; i < 3; i++ {
		_, err := env.emitter.CreateManualEvent(company.ID, &report.ID, entity.EventTypeExpediteFee, "rush handling", 5000, 1, "tester")
		require.NoError(t, err)
	}

	start, end := wideWindow()
	events, err := env.eventRepo.ListUnbilled(nil, company.ID, start, end)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
