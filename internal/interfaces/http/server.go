// Package http provides the HTTP adapter over the workflow and billing core.
// This is a thin layer that translates requests to core calls and core errors
// to status codes; no business rules live here.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transferdesk/transferdesk/internal/billing"
	"github.com/transferdesk/transferdesk/internal/party"
	"github.com/transferdesk/transferdesk/internal/repository"
	"github.com/transferdesk/transferdesk/internal/workflow"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Deps bundles the core components the handlers call
type Deps struct {
	Engine      *workflow.Engine
	Tracker     *party.Tracker
	Emitter     *billing.Emitter
	Generator   *billing.Generator
	Exporter    *billing.Exporter
	CompanyRepo *repository.CompanyRepository
	ReportRepo  *repository.ReportRepository
	PartyRepo   *repository.PartyRepository
	InvoiceRepo *repository.InvoiceRepository
	EventRepo   *repository.BillingEventRepository
	AuditRepo   *repository.AuditRepository
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	logger     Logger
}

// NewServer creates a new HTTP server wired to the core
func NewServer(config ServerConfig, deps Deps, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		handlers: NewHandlers(deps, logger),
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := s.handlers

	// Health check
	s.router.GET("/health", h.HealthCheck)

	// Staff API
	api := s.router.Group("/api/v1")
	{
		api.POST("/companies", h.CreateCompany)
		api.GET("/companies/:id", h.GetCompany)
		api.PUT("/companies/:id/rate", h.UpdateCompanyRate)

		api.POST("/submissions", h.CreateSubmission)
		api.GET("/submissions/:id", h.GetSubmission)
		api.POST("/submissions/:id/cancel", h.CancelSubmission)

		api.GET("/reports", h.ListReports)
		api.GET("/reports/:id", h.GetReport)
		api.POST("/reports/:id/determination", h.RunDetermination)
		api.POST("/reports/:id/parties", h.IssueParties)
		api.GET("/reports/:id/parties", h.ListParties)
		api.POST("/reports/:id/parties/:party_id/resend", h.ResendLink)
		api.POST("/reports/:id/parties/:party_id/corrections", h.RequestCorrections)
		api.POST("/reports/:id/file", h.FileReport)

		api.POST("/billing/events", h.CreateBillingEvent)
		api.POST("/invoices", h.GenerateInvoice)
		api.GET("/invoices", h.ListInvoices)
		api.GET("/invoices/:id", h.GetInvoice)
		api.POST("/invoices/:id/send", h.SendInvoice)
		api.POST("/invoices/:id/pay", h.PayInvoice)
		api.POST("/invoices/:id/void", h.VoidInvoice)
		api.GET("/invoices/:id/export", h.ExportInvoice)

		api.GET("/audit", h.ListAudit)
	}

	// Party portal, authenticated by link token only
	portal := s.router.Group("/portal")
	{
		portal.GET("/:token", h.PortalContext)
		portal.POST("/:token/submit", h.PortalSubmit)
	}
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
