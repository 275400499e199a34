package handler

import (
	partnerapp "github.com/erp/settlement/internal/application/partner"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// WarehouseHandler handles warehouses
type WarehouseHandler struct {
	BaseHandler
	warehouses *partnerapp.WarehouseService
}

// NewWarehouseHandler creates a new WarehouseHandler
func NewWarehouseHandler(warehouses *partnerapp.WarehouseService) *WarehouseHandler {
	return &WarehouseHandler{warehouses: warehouses}
}

// Routes returns the warehouse route group
func (h *WarehouseHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("warehouses", "/warehouses").
		POST("", h.Create).
		GET("/:id", h.GetByID)
}

// Create godoc
// @ID           createWarehouse
// @Summary      Create a warehouse
// @Description  Creates a warehouse. Marking it default makes it the fallback for documents that name none.
// @Tags         warehouses
// @Accept       json
// @Produce      json
// @Param        request body partnerapp.CreateWarehouseRequest true "Warehouse"
// @Success      201 {object} APIResponse[partnerapp.WarehouseResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /warehouses [post]
func (h *WarehouseHandler) Create(c *gin.Context) {
	var req partnerapp.CreateWarehouseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	warehouse, err := h.warehouses.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, warehouse)
}

// GetByID godoc
// @ID           getWarehouse
// @Summary      Get a warehouse
// @Tags         warehouses
// @Produce      json
// @Param        id path string true "Warehouse ID" format(uuid)
// @Success      200 {object} APIResponse[partnerapp.WarehouseResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /warehouses/{id} [get]
func (h *WarehouseHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	warehouse, err := h.warehouses.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, warehouse)
}
