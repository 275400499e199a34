package handler

import (
	partnerapp "github.com/erp/settlement/internal/application/partner"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// SupplierHandler handles supplier accounts
type SupplierHandler struct {
	BaseHandler
	suppliers *partnerapp.SupplierService
}

// NewSupplierHandler creates a new SupplierHandler
func NewSupplierHandler(suppliers *partnerapp.SupplierService) *SupplierHandler {
	return &SupplierHandler{suppliers: suppliers}
}

// Routes returns the supplier route group
func (h *SupplierHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("suppliers", "/suppliers").
		POST("", h.Create).
		GET("/:id", h.GetByID).
		GET("/:id/ledger", h.Ledger)
}

// Create godoc
// @ID           createSupplier
// @Summary      Create a supplier
// @Tags         suppliers
// @Accept       json
// @Produce      json
// @Param        request body partnerapp.CreateSupplierRequest true "Supplier"
// @Success      201 {object} APIResponse[partnerapp.SupplierResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /suppliers [post]
func (h *SupplierHandler) Create(c *gin.Context) {
	var req partnerapp.CreateSupplierRequest
	if !h.bindJSON(c, &req) {
		return
	}

	supplier, err := h.suppliers.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, supplier)
}

// GetByID godoc
// @ID           getSupplier
// @Summary      Get a supplier
// @Tags         suppliers
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.SupplierResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /suppliers/{id} [get]
func (h *SupplierHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	supplier, err := h.suppliers.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, supplier)
}

// Ledger godoc
// @ID           getSupplierLedger
// @Summary      List payable changes
// @Description  Returns every change to what is owed to the supplier: goods received raise it, payments lower it.
// @Tags         suppliers
// @Produce      json
// @Param        id path string true "Supplier ID" format(uuid)
// @Success      200 {object} APIResponse[[]partnerapp.LedgerEntryResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /suppliers/{id}/ledger [get]
func (h *SupplierHandler) Ledger(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	entries, err := h.suppliers.Ledger(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}
