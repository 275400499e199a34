package handler

import (
	inventoryapp "github.com/erp/settlement/internal/application/inventory"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockHandler handles products, stock balances and manual adjustments
type StockHandler struct {
	BaseHandler
	stock *inventoryapp.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(stock *inventoryapp.StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

// ProductRoutes returns the product route group
func (h *StockHandler) ProductRoutes() *router.DomainGroup {
	return router.NewDomainGroup("products", "/products").
		POST("", h.CreateProduct).
		GET("/:id", h.GetProduct)
}

// StockRoutes returns the stock route group
func (h *StockHandler) StockRoutes() *router.DomainGroup {
	return router.NewDomainGroup("stock", "/stock").
		GET("", h.StockLevel).
		POST("/adjustments", h.Adjust)
}

// CreateProduct godoc
// @ID           createProduct
// @Summary      Register a product
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.CreateProductRequest true "Product"
// @Success      201 {object} APIResponse[inventoryapp.ProductResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /products [post]
func (h *StockHandler) CreateProduct(c *gin.Context) {
	var req inventoryapp.CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	product, err := h.stock.CreateProduct(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, product)
}

// GetProduct godoc
// @ID           getProduct
// @Summary      Get a product
// @Tags         stock
// @Produce      json
// @Param        id path string true "Product ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.ProductResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /products/{id} [get]
func (h *StockHandler) GetProduct(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	product, err := h.stock.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}

// StockLevel godoc
// @ID           getStockLevel
// @Summary      On-hand quantity
// @Description  Returns the base-unit quantity of a product in a warehouse. Pairs never stocked report zero.
// @Tags         stock
// @Produce      json
// @Param        product_id query string true "Product ID" format(uuid)
// @Param        warehouse_id query string true "Warehouse ID" format(uuid)
// @Success      200 {object} APIResponse[inventoryapp.StockResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /stock [get]
func (h *StockHandler) StockLevel(c *gin.Context) {
	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		h.BadRequest(c, "Invalid product_id format")
		return
	}
	warehouseID, err := uuid.Parse(c.Query("warehouse_id"))
	if err != nil {
		h.BadRequest(c, "Invalid warehouse_id format")
		return
	}

	level, err := h.stock.StockLevel(c.Request.Context(), productID, warehouseID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}

// Adjust godoc
// @ID           adjustStock
// @Summary      Adjust stock
// @Description  Moves stock in or out outside of any invoice or purchase order, e.g. opening stock or stock-take corrections. Outbound adjustments never drive stock negative.
// @Tags         stock
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        request body inventoryapp.AdjustStockRequest true "Adjustment"
// @Success      200 {object} APIResponse[inventoryapp.StockResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /stock/adjustments [post]
func (h *StockHandler) Adjust(c *gin.Context) {
	var req inventoryapp.AdjustStockRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	level, err := h.stock.AdjustStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, level)
}
