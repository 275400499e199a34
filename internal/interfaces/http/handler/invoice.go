package handler

import (
	salesapp "github.com/erp/settlement/internal/application/sales"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// InvoiceHandler handles the sales invoice lifecycle and returns against invoices
type InvoiceHandler struct {
	BaseHandler
	invoices *salesapp.InvoiceService
	returns  *salesapp.ReturnService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *salesapp.InvoiceService, returns *salesapp.ReturnService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, returns: returns}
}

// Routes returns the invoice route group
func (h *InvoiceHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("invoices", "/invoices").
		POST("", h.Create).
		GET("", h.List).
		GET("/:id", h.GetByID).
		POST("/:id/finalize-fx", h.FinalizeFX).
		POST("/:id/confirm", h.Confirm).
		POST("/:id/cancel", h.Cancel).
		POST("/:id/returns", h.CreateReturn)
}

// ReturnRoutes returns the sales return lookup group
func (h *InvoiceHandler) ReturnRoutes() *router.DomainGroup {
	return router.NewDomainGroup("sales-returns", "/sales-returns").
		GET("/:id", h.GetReturn)
}

// Create godoc
// @ID           createInvoice
// @Summary      Create a draft invoice
// @Description  Creates a DRAFT invoice. Credit invoices are checked against the customer's limit up front; pass override_credit with a reason to exceed it.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        request body salesapp.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[salesapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse "Credit limit exceeded"
// @Failure      500 {object} ErrorResponse "No exchange rate configured"
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req salesapp.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	invoice, err := h.invoices.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Description  Lists invoices one page at a time, newest invoice date first unless order_by says otherwise.
// @Tags         invoices
// @Produce      json
// @Param        customer_id query string false "Customer ID" format(uuid)
// @Param        status query string false "Invoice status" Enums(DRAFT, CONFIRMED, PARTIAL, PAID, CANCELLED)
// @Param        invoice_type query string false "Invoice type" Enums(cash, credit, return)
// @Param        from query string false "First invoice date (YYYY-MM-DD)"
// @Param        to query string false "Last invoice date (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field" default(invoice_date)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success      200 {object} ListResponse[salesapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	var req salesapp.ListInvoicesRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.invoices.ListInvoices(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @ID           getInvoice
// @Summary      Get an invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[salesapp.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	invoice, err := h.invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// FinalizeFX godoc
// @ID           finalizeInvoiceFX
// @Summary      Freeze exchange rates
// @Description  Pins the FX snapshot and reference totals of a draft invoice. Finalized invoices keep their rates for good.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body salesapp.FinalizeFXRequest false "Optional explicit rates"
// @Success      200 {object} APIResponse[salesapp.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{id}/finalize-fx [post]
func (h *InvoiceHandler) FinalizeFX(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req salesapp.FinalizeFXRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	invoice, err := h.invoices.FinalizeFX(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Confirm godoc
// @ID           confirmInvoice
// @Summary      Confirm an invoice
// @Description  Confirms a draft: credit is re-evaluated, stock is deducted and the unpaid reference amount is posted to the customer balance. Cash invoices record the counter payment.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body salesapp.ConfirmInvoiceRequest false "Confirmation options"
// @Success      200 {object} APIResponse[salesapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse "Credit limit exceeded, insufficient stock or wrong status"
// @Router       /invoices/{id}/confirm [post]
func (h *InvoiceHandler) Confirm(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req salesapp.ConfirmInvoiceRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	invoice, err := h.invoices.ConfirmInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// Cancel godoc
// @ID           cancelInvoice
// @Summary      Cancel an invoice
// @Description  Cancels a draft or confirmed invoice. Confirmed invoices have their unpaid balance reversed and stock restored.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body salesapp.CancelInvoiceRequest true "Cancellation reason"
// @Success      200 {object} APIResponse[salesapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req salesapp.CancelInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	invoice, err := h.invoices.CancelInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// CreateReturn godoc
// @ID           createSalesReturn
// @Summary      Return goods against an invoice
// @Description  Takes goods back against a confirmed invoice at its frozen rates. Stock is restored and the customer balance reduced.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body salesapp.CreateSalesReturnRequest true "Returned lines"
// @Success      201 {object} APIResponse[salesapp.SalesReturnResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{id}/returns [post]
func (h *InvoiceHandler) CreateReturn(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req salesapp.CreateSalesReturnRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.InvoiceID = id
	req.Actor = getActor(c)

	ret, err := h.returns.CreateSalesReturn(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, ret)
}

// GetReturn godoc
// @ID           getSalesReturn
// @Summary      Get a sales return
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Sales return ID" format(uuid)
// @Success      200 {object} APIResponse[salesapp.SalesReturnResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /sales-returns/{id} [get]
func (h *InvoiceHandler) GetReturn(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	ret, err := h.returns.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ret)
}
