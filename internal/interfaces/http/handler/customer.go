package handler

import (
	appcredit "github.com/erp/settlement/internal/application/credit"
	partnerapp "github.com/erp/settlement/internal/application/partner"
	salesapp "github.com/erp/settlement/internal/application/sales"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// CustomerHandler handles customer accounts, their credit and their statements
type CustomerHandler struct {
	BaseHandler
	customers  *partnerapp.CustomerService
	credit     *appcredit.Service
	invoices   *salesapp.InvoiceService
	statements *salesapp.StatementService
}

// NewCustomerHandler creates a new CustomerHandler
func NewCustomerHandler(
	customers *partnerapp.CustomerService,
	credit *appcredit.Service,
	invoices *salesapp.InvoiceService,
	statements *salesapp.StatementService,
) *CustomerHandler {
	return &CustomerHandler{
		customers:  customers,
		credit:     credit,
		invoices:   invoices,
		statements: statements,
	}
}

// Routes returns the customer route group
func (h *CustomerHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("customers", "/customers").
		POST("", h.Create).
		GET("/:id", h.GetByID).
		PATCH("/:id/credit", h.UpdateCredit).
		GET("/:id/ledger", h.Ledger).
		GET("/:id/credit-check", h.CheckCredit).
		GET("/:id/open-invoices", h.OpenInvoices).
		GET("/:id/statement", h.Statement)
}

// Create godoc
// @ID           createCustomer
// @Summary      Create a customer
// @Description  Creates a customer account. An opening balance is booked to the ledger once, at creation.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the ledger"
// @Param        request body partnerapp.CreateCustomerRequest true "Customer"
// @Success      201 {object} APIResponse[partnerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /customers [post]
func (h *CustomerHandler) Create(c *gin.Context) {
	var req partnerapp.CreateCustomerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, customer)
}

// GetByID godoc
// @ID           getCustomer
// @Summary      Get a customer
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /customers/{id} [get]
func (h *CustomerHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	customer, err := h.customers.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// UpdateCredit godoc
// @ID           updateCustomerCredit
// @Summary      Change credit settings
// @Description  Updates the credit limit (in the customer's currency) and payment terms. A zero limit means unlimited credit.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Param        request body partnerapp.UpdateCreditRequest true "Credit settings"
// @Success      200 {object} APIResponse[partnerapp.CustomerResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /customers/{id}/credit [patch]
func (h *CustomerHandler) UpdateCredit(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req partnerapp.UpdateCreditRequest
	if !h.bindJSON(c, &req) {
		return
	}

	customer, err := h.customers.UpdateCredit(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, customer)
}

// Ledger godoc
// @ID           getCustomerLedger
// @Summary      List balance changes
// @Description  Returns every change to the customer's balance, oldest first, in both currencies.
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[[]partnerapp.LedgerEntryResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /customers/{id}/ledger [get]
func (h *CustomerHandler) Ledger(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.customers.Ledger(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// CheckCredit godoc
// @ID           checkCustomerCredit
// @Summary      Check a prospective charge
// @Description  Evaluates whether a charge fits within the customer's credit limit without changing anything. Amounts default to the local currency and are converted with today's rate.
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Param        amount query string true "Charge amount" example(250000)
// @Param        currency query string false "Currency of amount" Enums(USD, SYP_OLD, SYP_NEW)
// @Success      200 {object} APIResponse[appcredit.CheckCreditResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /customers/{id}/credit-check [get]
func (h *CustomerHandler) CheckCredit(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	amount, err := optionalDecimalQuery(c, "amount")
	if err != nil || amount == nil {
		h.BadRequest(c, "amount query parameter must be a decimal number")
		return
	}

	currency := valueobject.Currency(c.Query("currency"))
	result, err := h.credit.CheckCredit(c.Request.Context(), id, *amount, currency, fx.Snapshot{})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// OpenInvoices godoc
// @ID           listCustomerOpenInvoices
// @Summary      List open credit invoices
// @Description  Lists confirmed and partially paid invoices, oldest first, the order auto allocation pays them in.
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Success      200 {object} APIResponse[[]salesapp.OpenInvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /customers/{id}/open-invoices [get]
func (h *CustomerHandler) OpenInvoices(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	invoices, err := h.invoices.OpenInvoices(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoices)
}

// Statement godoc
// @ID           getCustomerStatement
// @Summary      Account statement
// @Description  Builds a running-balance statement of invoices, payments and returns. Activity before from is folded into the opening balance.
// @Tags         customers
// @Produce      json
// @Param        id path string true "Customer ID" format(uuid)
// @Param        from query string false "First day (YYYY-MM-DD)"
// @Param        to query string false "Last day (YYYY-MM-DD)"
// @Success      200 {object} APIResponse[sales.Statement]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /customers/{id}/statement [get]
func (h *CustomerHandler) Statement(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	from, err := optionalDateQuery(c, "from")
	if err != nil {
		h.BadRequest(c, "from must be a date in YYYY-MM-DD format")
		return
	}
	to, err := optionalDateQuery(c, "to")
	if err != nil {
		h.BadRequest(c, "to must be a date in YYYY-MM-DD format")
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		h.BadRequest(c, "to must not be before from")
		return
	}

	statement, err := h.statements.CustomerStatement(c.Request.Context(), id, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, statement)
}
