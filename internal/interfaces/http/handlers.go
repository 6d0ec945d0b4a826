package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/transferdesk/transferdesk/internal/apperr"
	"github.com/transferdesk/transferdesk/internal/billing"
	"github.com/transferdesk/transferdesk/internal/determination"
	"github.com/transferdesk/transferdesk/internal/domain/entity"
	"github.com/transferdesk/transferdesk/internal/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Deps
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, logger Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Fields  []string    `json:"fields,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// fail maps the core error taxonomy to HTTP status codes
func fail(c *gin.Context, err error) {
	var resp Response
	resp.Error = err.Error()

	status := http.StatusInternalServerError
	switch {
	case apperr.IsValidation(err):
		status = http.StatusBadRequest
		var v *apperr.ValidationError
		if errors.As(err, &v) {
			resp.Fields = v.Fields
		}
	case apperr.IsNotFound(err):
		status = http.StatusNotFound
	case apperr.IsConflict(err), apperr.IsConcurrency(err):
		status = http.StatusConflict
	default:
		// Do not leak internals on unexpected errors.
		resp.Error = "internal error"
	}

	c.JSON(status, resp)
}

// actor resolves the acting staff identity from the request. There is no
// auth layer in front of the staff API yet; the header is trusted.
func actor(c *gin.Context) string {
	if v := c.GetHeader("X-Actor"); v != "" {
		return v
	}
	return "staff"
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, apperr.NewValidation("invalid identifier", name))
		return 0, false
	}
	return id, true
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// --- Companies ---

// CreateCompanyRequest is the body for POST /api/v1/companies
type CreateCompanyRequest struct {
	Name             string `json:"name" binding:"required"`
	ContactEmail     string `json:"contact_email" binding:"required"`
	FilingFeeCents   int64  `json:"filing_fee_cents"`
	PaymentTermsDays int    `json:"payment_terms_days"`
}

// CreateCompany handles POST /api/v1/companies
func (h *Handlers) CreateCompany(c *gin.Context) {
	var req CreateCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}

	company := &entity.Company{
		Name:             req.Name,
		ContactEmail:     req.ContactEmail,
		FilingFeeCents:   req.FilingFeeCents,
		PaymentTermsDays: req.PaymentTermsDays,
	}
	if err := h.deps.CompanyRepo.Create(nil, company); err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusCreated, companyResponse(company))
}

// GetCompany handles GET /api/v1/companies/:id
func (h *Handlers) GetCompany(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	company, err := h.deps.CompanyRepo.GetByID(nil, id)
	if err != nil {
		fail(c, err)
		return
	}
	if company == nil {
		fail(c, apperr.NewNotFound("company", c.Param("id")))
		return
	}

	ok(c, http.StatusOK, companyResponse(company))
}

// UpdateRateRequest is the body for PUT /api/v1/companies/:id/rate
type UpdateRateRequest struct {
	FilingFeeCents   int64 `json:"filing_fee_cents" binding:"required"`
	PaymentTermsDays int   `json:"payment_terms_days" binding:"required"`
}

// UpdateCompanyRate handles PUT /api/v1/companies/:id/rate. The new rate
// applies to events emitted after this call; already-emitted events keep
// their amounts.
func (h *Handlers) UpdateCompanyRate(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}
	if req.FilingFeeCents < 0 {
		fail(c, apperr.NewValidation("filing fee cannot be negative", "filing_fee_cents"))
		return
	}
	if req.PaymentTermsDays <= 0 {
		fail(c, apperr.NewValidation("payment terms must be positive", "payment_terms_days"))
		return
	}

	company, err := h.deps.CompanyRepo.GetByID(nil, id)
	if err != nil {
		fail(c, err)
		return
	}
	if company == nil {
		fail(c, apperr.NewNotFound("company", c.Param("id")))
		return
	}

	if err := h.deps.CompanyRepo.UpdateRate(nil, id, req.FilingFeeCents, req.PaymentTermsDays); err != nil {
		fail(c, err)
		return
	}

	if err := h.deps.AuditRepo.Append(nil, &entity.AuditRecord{
		Actor:      actor(c),
		EntityType: "company",
		EntityID:   id,
		Action:     entity.AuditActionRateUpdated,
		Detail:     fmt.Sprintf(`{"filing_fee_cents":%d,"payment_terms_days":%d}`, req.FilingFeeCents, req.PaymentTermsDays),
	}); err != nil {
		fail(c, err)
		return
	}

	company.FilingFeeCents = req.FilingFeeCents
	company.PaymentTermsDays = req.PaymentTermsDays
	ok(c, http.StatusOK, companyResponse(company))
}

// --- Submissions ---

// CreateSubmissionRequest is the body for POST /api/v1/submissions
type CreateSubmissionRequest struct {
	CompanyID       int64  `json:"company_id" binding:"required"`
	PropertyAddress string `json:"property_address" binding:"required"`
	ClosingDate     string `json:"closing_date" binding:"required"` // YYYY-MM-DD
}

// CreateSubmission handles POST /api/v1/submissions
func (h *Handlers) CreateSubmission(c *gin.Context) {
	var req CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}

	closing, err := time.Parse("2006-01-02", req.ClosingDate)
	if err != nil {
		fail(c, apperr.NewValidation("closing date must be YYYY-MM-DD", "closing_date"))
		return
	}

	submission, report, err := h.deps.Engine.CreateSubmission(c.Request.Context(), req.CompanyID, req.PropertyAddress, closing, actor(c))
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusCreated, gin.H{
		"submission": submissionResponse(submission),
		"report":     reportResponse(report),
	})
}

// GetSubmission handles GET /api/v1/submissions/:id
func (h *Handlers) GetSubmission(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	submission, err := h.deps.Engine.GetSubmission(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, submissionResponse(submission))
}

// CancelSubmission handles POST /api/v1/submissions/:id/cancel
func (h *Handlers) CancelSubmission(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	if err := h.deps.Engine.CancelSubmission(c.Request.Context(), id, actor(c)); err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{"cancelled": true})
}

// --- Reports ---

// ListReports handles GET /api/v1/reports?company_id=&limit=&offset=
func (h *Handlers) ListReports(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Query("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		fail(c, apperr.NewValidation("company_id query parameter is required", "company_id"))
		return
	}
	limit, offset := pagination(c)

	reports, err := h.deps.ReportRepo.ListByCompany(companyID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]interface{}, 0, len(reports))
	for _, r := range reports {
		out = append(out, reportResponse(r))
	}
	ok(c, http.StatusOK, out)
}

// GetReport handles GET /api/v1/reports/:id
func (h *Handlers) GetReport(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	report, err := h.deps.ReportRepo.GetByID(nil, id)
	if err != nil {
		fail(c, err)
		return
	}
	if report == nil {
		fail(c, apperr.NewNotFound("report", c.Param("id")))
		return
	}

	required, submitted, err := h.deps.Tracker.CompletionCounts(id)
	if err != nil {
		fail(c, err)
		return
	}

	resp := reportResponse(report)
	resp["parties_required"] = required
	resp["parties_submitted"] = submitted

	ok(c, http.StatusOK, resp)
}

// DeterminationRequest is the body for POST /api/v1/reports/:id/determination
type DeterminationRequest struct {
	Residential         *bool    `json:"residential"`
	IntentToBuild       *bool    `json:"intent_to_build"`
	Financed            *bool    `json:"financed"`
	LenderHasAMLProgram *bool    `json:"lender_has_aml_program"`
	BuyerType           string   `json:"buyer_type"`
	ExemptionCodes      []string `json:"exemption_codes"`
}

// RunDetermination handles POST /api/v1/reports/:id/determination
func (h *Handlers) RunDetermination(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req DeterminationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}

	input := determination.Input{
		Residential:         req.Residential,
		IntentToBuild:       req.IntentToBuild,
		Financed:            req.Financed,
		LenderHasAMLProgram: req.LenderHasAMLProgram,
		BuyerType:           req.BuyerType,
		ExemptionCodes:      req.ExemptionCodes,
	}

	result, err := h.deps.Engine.RunDetermination(c.Request.Context(), id, input, actor(c))
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, result)
}

// IssuePartiesRequest is the body for POST /api/v1/reports/:id/parties
type IssuePartiesRequest struct {
	Parties []workflow.PartySpec `json:"parties" binding:"required"`
}

// IssueParties handles POST /api/v1/reports/:id/parties
func (h *Handlers) IssueParties(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req IssuePartiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}

	links, err := h.deps.Engine.IssueParties(c.Request.Context(), id, req.Parties, actor(c))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]gin.H, 0, len(links))
	for _, l := range links {
		out = append(out, gin.H{
			"party_id":   l.PartyID,
			"token":      l.Token,
			"expires_at": l.ExpiresAt.UTC().Format(time.RFC3339),
		})
	}
	ok(c, http.StatusCreated, gin.H{"links": out})
}

// ListParties handles GET /api/v1/reports/:id/parties
func (h *Handlers) ListParties(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	parties, err := h.deps.PartyRepo.ListByReport(nil, id)
	if err != nil {
		fail(c, err)
		return
	}

	required, submitted, err := h.deps.Tracker.CompletionCounts(id)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]gin.H, 0, len(parties))
	for _, p := range parties {
		out = append(out, partyResponse(p))
	}
	ok(c, http.StatusOK, gin.H{
		"parties":   out,
		"required":  required,
		"submitted": submitted,
	})
}

// ResendLink handles POST /api/v1/reports/:id/parties/:party_id/resend
func (h *Handlers) ResendLink(c *gin.Context) {
	reportID, valid := paramID(c, "id")
	if !valid {
		return
	}
	partyID, valid := paramID(c, "party_id")
	if !valid {
		return
	}

	link, err := h.deps.Tracker.Resend(c.Request.Context(), reportID, partyID, actor(c))
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{
		"party_id":   link.PartyID,
		"token":      link.Token,
		"expires_at": link.ExpiresAt.UTC().Format(time.RFC3339),
		"send_count": link.SendCount,
	})
}

// CorrectionsRequest is the body for the corrections endpoint
type CorrectionsRequest struct {
	Note string `json:"note" binding:"required"`
}

// RequestCorrections handles POST /api/v1/reports/:id/parties/:party_id/corrections
func (h *Handlers) RequestCorrections(c *gin.Context) {
	reportID, valid := paramID(c, "id")
	if !valid {
		return
	}
	partyID, valid := paramID(c, "party_id")
	if !valid {
		return
	}

	var req CorrectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("a correction note is required", "note"))
		return
	}

	if err := h.deps.Tracker.RequestCorrections(c.Request.Context(), reportID, partyID, req.Note, actor(c)); err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{"corrections_requested": true})
}

// FileReport handles POST /api/v1/reports/:id/file
func (h *Handlers) FileReport(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	report, err := h.deps.Engine.FileReport(c.Request.Context(), id, actor(c))
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, reportResponse(report))
}

// --- Billing ---

// BillingEventRequest is the body for POST /api/v1/billing/events
type BillingEventRequest struct {
	CompanyID   int64  `json:"company_id" binding:"required"`
	ReportID    *int64 `json:"report_id"`
	EventType   string `json:"event_type" binding:"required"`
	Description string `json:"description" binding:"required"`
	AmountCents int64  `json:"amount_cents" binding:"required"`
	Quantity    int64  `json:"quantity"`
}

// CreateBillingEvent handles POST /api/v1/billing/events. Only the manual
// event types are accepted here; filing_accepted is emitted by the workflow.
func (h *Handlers) CreateBillingEvent(c *gin.Context) {
	var req BillingEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	ev, err := h.deps.Emitter.CreateManualEvent(req.CompanyID, req.ReportID, req.EventType, req.Description, req.AmountCents, req.Quantity, actor(c))
	if err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusCreated, billingEventResponse(ev))
}

// GenerateInvoiceRequest is the body for POST /api/v1/invoices
type GenerateInvoiceRequest struct {
	CompanyID     int64  `json:"company_id" binding:"required"`
	PeriodStart   string `json:"period_start" binding:"required"` // YYYY-MM-DD
	PeriodEnd     string `json:"period_end" binding:"required"`
	DiscountCents int64  `json:"discount_cents"`
	TaxCents      int64  `json:"tax_cents"`
}

// GenerateInvoice handles POST /api/v1/invoices
func (h *Handlers) GenerateInvoice(c *gin.Context) {
	var req GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}

	start, err := time.Parse("2006-01-02", req.PeriodStart)
	if err != nil {
		fail(c, apperr.NewValidation("period start must be YYYY-MM-DD", "period_start"))
		return
	}
	end, err := time.Parse("2006-01-02", req.PeriodEnd)
	if err != nil {
		fail(c, apperr.NewValidation("period end must be YYYY-MM-DD", "period_end"))
		return
	}
	if end.Before(start) {
		fail(c, apperr.NewValidation("period end must not precede period start", "period_end"))
		return
	}

	inv, err := h.deps.Generator.Generate(req.CompanyID, start, end, billing.GenerateOptions{
		DiscountCents: req.DiscountCents,
		TaxCents:      req.TaxCents,
	}, actor(c))
	if err != nil {
		if errors.Is(err, billing.ErrNoUnbilledEvents) {
			fail(c, apperr.NewValidation("no unbilled events in the requested period"))
			return
		}
		fail(c, err)
		return
	}

	ok(c, http.StatusCreated, invoiceResponse(inv))
}

// ListInvoices handles GET /api/v1/invoices?company_id=
func (h *Handlers) ListInvoices(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Query("company_id"), 10, 64)
	if err != nil || companyID <= 0 {
		fail(c, apperr.NewValidation("company_id query parameter is required", "company_id"))
		return
	}
	limit, offset := pagination(c)

	invoices, err := h.deps.InvoiceRepo.ListByCompany(companyID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]interface{}, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, invoiceResponse(inv))
	}
	ok(c, http.StatusOK, out)
}

// GetInvoice handles GET /api/v1/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	inv, err := h.deps.InvoiceRepo.GetByID(nil, id)
	if err != nil {
		fail(c, err)
		return
	}
	if inv == nil {
		fail(c, apperr.NewNotFound("invoice", c.Param("id")))
		return
	}

	events, err := h.deps.EventRepo.ListByInvoice(nil, id)
	if err != nil {
		fail(c, err)
		return
	}

	lines := make([]gin.H, 0, len(events))
	for _, ev := range events {
		lines = append(lines, billingEventResponse(ev))
	}

	ok(c, http.StatusOK, gin.H{
		"invoice": invoiceResponse(inv),
		"lines":   lines,
	})
}

// SendInvoice handles POST /api/v1/invoices/:id/send
func (h *Handlers) SendInvoice(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	if err := h.deps.Generator.MarkSent(id, actor(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": entity.InvoiceStatusSent})
}

// PayInvoiceRequest is the body for POST /api/v1/invoices/:id/pay
type PayInvoiceRequest struct {
	Method    string `json:"method" binding:"required"`
	Reference string `json:"reference"`
}

// PayInvoice handles POST /api/v1/invoices/:id/pay
func (h *Handlers) PayInvoice(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var req PayInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("payment method is required", "method"))
		return
	}

	if err := h.deps.Generator.MarkPaid(id, req.Method, req.Reference, actor(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": entity.InvoiceStatusPaid})
}

// VoidInvoice handles POST /api/v1/invoices/:id/void
func (h *Handlers) VoidInvoice(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	if err := h.deps.Generator.MarkVoid(id, actor(c)); err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": entity.InvoiceStatusVoid})
}

// ExportInvoice handles GET /api/v1/invoices/:id/export, streaming an XLSX
// rendering of the invoice.
func (h *Handlers) ExportInvoice(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	inv, err := h.deps.InvoiceRepo.GetByID(nil, id)
	if err != nil {
		fail(c, err)
		return
	}
	if inv == nil {
		fail(c, apperr.NewNotFound("invoice", c.Param("id")))
		return
	}

	company, err := h.deps.CompanyRepo.GetByID(nil, inv.CompanyID)
	if err != nil {
		fail(c, err)
		return
	}
	if company == nil {
		fail(c, apperr.NewNotFound("company", fmt.Sprintf("%d", inv.CompanyID)))
		return
	}

	events, err := h.deps.EventRepo.ListByInvoice(nil, id)
	if err != nil {
		fail(c, err)
		return
	}

	f, err := h.deps.Exporter.Export(inv, company, events)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, inv.Number))
	if _, err := f.WriteTo(c.Writer); err != nil {
		h.logger.Error("Invoice export write failed", "invoice_id", id, "error", err)
	}
}

// ListAudit handles GET /api/v1/audit?entity_type=&entity_id=
func (h *Handlers) ListAudit(c *gin.Context) {
	entityType := c.Query("entity_type")
	entityID, err := strconv.ParseInt(c.Query("entity_id"), 10, 64)
	if entityType == "" || err != nil || entityID <= 0 {
		fail(c, apperr.NewValidation("entity_type and entity_id are required", "entity_type", "entity_id"))
		return
	}

	records, err := h.deps.AuditRepo.ListByEntity(entityType, entityID)
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]gin.H, 0, len(records))
	for _, rec := range records {
		out = append(out, gin.H{
			"id":            rec.ID,
			"actor":         rec.Actor,
			"entity_type":   rec.EntityType,
			"entity_id":     rec.EntityID,
			"action":        rec.Action,
			"before_status": rec.BeforeStatus,
			"after_status":  rec.AfterStatus,
			"detail":        rec.Detail,
			"created_at":    rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	ok(c, http.StatusOK, out)
}

// --- Portal ---

// PortalContext handles GET /portal/:token
func (h *Handlers) PortalContext(c *gin.Context) {
	pc, err := h.deps.Tracker.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, pc)
}

// PortalSubmitRequest is the body for POST /portal/:token/submit
type PortalSubmitRequest struct {
	Certified bool            `json:"certified"`
	Payload   json.RawMessage `json:"payload" binding:"required"`
}

// PortalSubmit handles POST /portal/:token/submit
func (h *Handlers) PortalSubmit(c *gin.Context) {
	var req PortalSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.NewValidation("invalid request body"))
		return
	}

	if err := h.deps.Tracker.Submit(c.Request.Context(), c.Param("token"), req.Certified, req.Payload); err != nil {
		fail(c, err)
		return
	}

	ok(c, http.StatusOK, gin.H{"submitted": true})
}

// --- response shaping ---

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func companyResponse(company *entity.Company) gin.H {
	return gin.H{
		"id":                 company.ID,
		"name":               company.Name,
		"contact_email":      company.ContactEmail,
		"filing_fee_cents":   company.FilingFeeCents,
		"payment_terms_days": company.PaymentTermsDays,
	}
}

func submissionResponse(s *entity.SubmissionRequest) gin.H {
	return gin.H{
		"id":               s.ID,
		"company_id":       s.CompanyID,
		"status":           s.Status,
		"property_address": s.PropertyAddress,
		"closing_date":     s.ClosingDate.Format("2006-01-02"),
		"report_id":        s.ReportID,
	}
}

func reportResponse(r *entity.Report) gin.H {
	out := gin.H{
		"id":           r.ID,
		"company_id":   r.CompanyID,
		"status":       r.Status,
		"closing_date": r.ClosingDate.Format("2006-01-02"),
		"deadline":     r.Deadline.Format("2006-01-02"),
	}
	if r.DeterminationOutcome != nil {
		out["determination_outcome"] = *r.DeterminationOutcome
	}
	if r.DeterminationReason != nil {
		out["determination_reason"] = *r.DeterminationReason
	}
	if r.CertificateID != nil {
		out["certificate_id"] = *r.CertificateID
	}
	if r.ReceiptID != nil {
		out["receipt_id"] = *r.ReceiptID
	}
	if r.FiledAt != nil {
		out["filed_at"] = r.FiledAt.UTC().Format(time.RFC3339)
	}
	return out
}

func partyResponse(p *entity.ReportParty) gin.H {
	out := gin.H{
		"id":           p.ID,
		"report_id":    p.ReportID,
		"role":         p.Role,
		"kind":         p.Kind,
		"display_name": p.DisplayName,
		"email":        p.Email,
		"status":       p.Status,
	}
	if p.SubmittedAt != nil {
		out["submitted_at"] = p.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return out
}

func billingEventResponse(ev *entity.BillingEvent) gin.H {
	out := gin.H{
		"id":               ev.ID,
		"company_id":       ev.CompanyID,
		"event_type":       ev.EventType,
		"description":      ev.Description,
		"amount_cents":     ev.AmountCents,
		"quantity":         ev.Quantity,
		"line_total_cents": ev.LineTotalCents(),
	}
	if ev.ReportID != nil {
		out["report_id"] = *ev.ReportID
	}
	if ev.InvoiceID != nil {
		out["invoice_id"] = *ev.InvoiceID
	}
	return out
}

func invoiceResponse(inv *entity.Invoice) gin.H {
	out := gin.H{
		"id":             inv.ID,
		"company_id":     inv.CompanyID,
		"number":         inv.Number,
		"period_start":   inv.PeriodStart.Format("2006-01-02"),
		"period_end":     inv.PeriodEnd.Format("2006-01-02"),
		"status":         inv.Status,
		"subtotal_cents": inv.SubtotalCents,
		"discount_cents": inv.DiscountCents,
		"tax_cents":      inv.TaxCents,
		"total_cents":    inv.TotalCents,
	}
	if inv.SentAt != nil {
		out["sent_at"] = inv.SentAt.UTC().Format(time.RFC3339)
	}
	if inv.PaidAt != nil {
		out["paid_at"] = inv.PaidAt.UTC().Format(time.RFC3339)
	}
	if inv.VoidedAt != nil {
		out["voided_at"] = inv.VoidedAt.UTC().Format(time.RFC3339)
	}
	return out
}
