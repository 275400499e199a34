package handler

import (
	salesapp "github.com/erp/settlement/internal/application/sales"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles customer payments and their allocation to invoices
type PaymentHandler struct {
	BaseHandler
	payments *salesapp.PaymentService
	engine   *salesapp.AllocationEngine
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments *salesapp.PaymentService, engine *salesapp.AllocationEngine) *PaymentHandler {
	return &PaymentHandler{payments: payments, engine: engine}
}

// Routes returns the payment route group
func (h *PaymentHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("payments", "/payments").
		POST("", h.Receive).
		GET("", h.List).
		GET("/:id", h.GetByID).
		POST("/:id/allocations", h.Allocate)
}

// Receive godoc
// @ID           receivePayment
// @Summary      Receive a customer payment
// @Description  Records money received and optionally allocates it in the same transaction: auto_allocate pays the oldest open invoices first, allocations names invoices explicitly, invoice_id targets a single invoice. Use at most one style.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        request body salesapp.ReceivePaymentRequest true "Payment"
// @Success      201 {object} APIResponse[salesapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse "Validation failed or allocation exceeds an invoice's remaining amount"
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse "No exchange rate configured"
// @Router       /payments [post]
func (h *PaymentHandler) Receive(c *gin.Context) {
	var req salesapp.ReceivePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	payment, err := h.payments.ReceivePayment(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// List godoc
// @ID           listPayments
// @Summary      List payments
// @Tags         payments
// @Produce      json
// @Param        customer_id query string false "Customer ID" format(uuid)
// @Param        from query string false "First payment date (YYYY-MM-DD)"
// @Param        to query string false "Last payment date (YYYY-MM-DD)"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Param        order_by query string false "Sort field" default(payment_date)
// @Param        order_dir query string false "Sort direction" Enums(asc, desc) default(desc)
// @Success      200 {object} ListResponse[salesapp.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	var req salesapp.ListPaymentsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	page, err := h.payments.ListPayments(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByID godoc
// @ID           getPayment
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[salesapp.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /payments/{id} [get]
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}

// Allocate godoc
// @ID           allocatePayment
// @Summary      Allocate a payment
// @Description  Distributes the unallocated part of a payment. Manual mode applies the given lines; auto mode pays open invoices oldest first. All lines succeed or none do.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body salesapp.AllocateRequest true "Allocation"
// @Success      200 {object} APIResponse[salesapp.AllocationResult]
// @Failure      400 {object} ErrorResponse "Validation failed or allocation exceeds an invoice's remaining amount"
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /payments/{id}/allocations [post]
func (h *PaymentHandler) Allocate(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req salesapp.AllocateRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.PaymentID = id
	req.Actor = getActor(c)

	result, err := h.engine.Allocate(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
