package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/transferdesk/transferdesk/internal/application/dispatcher"
	"github.com/transferdesk/transferdesk/internal/billing"
	"github.com/transferdesk/transferdesk/internal/config"
	httpadapter "github.com/transferdesk/transferdesk/internal/interfaces/http"
	"github.com/transferdesk/transferdesk/internal/notify"
	"github.com/transferdesk/transferdesk/internal/party"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/internal/workflow"
	"github.com/transferdesk/transferdesk/pkg/database"
	"github.com/transferdesk/transferdesk/pkg/utils"
)

func main() {
	// Local overrides from .env, ignored when absent
	_ = gotenv.Load()

	configPath := os.Getenv("TRANSFERDESK_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting transfer reporting service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories
	companyRepo := repository.NewCompanyRepository(db.DB, logger)
	submissionRepo := repository.NewSubmissionRepository(db.DB, logger)
	reportRepo := repository.NewReportRepository(db.DB, logger)
	partyRepo := repository.NewPartyRepository(db.DB, logger)
	eventRepo := repository.NewBillingEventRepository(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	auditRepo := repository.NewAuditRepository(db.DB, logger)

	kvLogger := utils.NewKVLogger(logger)

	// Event dispatcher and notification boundary
	disp := dispatcher.New(dispatcher.WithLogger(kvLogger))
	defer disp.Close()

	notifier := notify.NewNotifier(notify.NewLogSender(logger), logger)
	notifier.Register(disp)

	// Billing
	emitter := billing.NewEmitter(db, companyRepo, eventRepo, auditRepo, logger)
	generator := billing.NewGenerator(db, companyRepo, eventRepo, invoiceRepo, auditRepo, logger)
	exporter := billing.NewExporter(logger)

	// Workflow core
	engine := workflow.NewEngine(
		db,
		reportRepo,
		submissionRepo,
		partyRepo,
		companyRepo,
		auditRepo,
		emitter,
		disp,
		workflow.Config{
			DeadlineDays: cfg.Reporting.DeadlineDays,
			LinkTTL:      cfg.Party.LinkTTL,
		},
		logger,
	)

	tracker := party.NewTracker(
		db,
		reportRepo,
		partyRepo,
		auditRepo,
		disp,
		engine,
		party.Config{LinkTTL: cfg.Party.LinkTTL},
		logger,
	)

	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		httpadapter.Deps{
			Engine:      engine,
			Tracker:     tracker,
			Emitter:     emitter,
			Generator:   generator,
			Exporter:    exporter,
			CompanyRepo: companyRepo,
			ReportRepo:  reportRepo,
			PartyRepo:   partyRepo,
			InvoiceRepo: invoiceRepo,
			EventRepo:   eventRepo,
			AuditRepo:   auditRepo,
		},
		kvLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server stopped")
}
