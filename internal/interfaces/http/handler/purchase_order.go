package handler

import (
	purchasingapp "github.com/erp/settlement/internal/application/purchasing"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// PurchaseOrderHandler handles purchase orders, goods receipts and supplier payments
type PurchaseOrderHandler struct {
	BaseHandler
	orders *purchasingapp.Service
}

// NewPurchaseOrderHandler creates a new PurchaseOrderHandler
func NewPurchaseOrderHandler(orders *purchasingapp.Service) *PurchaseOrderHandler {
	return &PurchaseOrderHandler{orders: orders}
}

// Routes returns the purchase order route group
func (h *PurchaseOrderHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("purchase-orders", "/purchase-orders").
		POST("", h.Create).
		GET("/:id", h.GetByID).
		POST("/:id/approve", h.Approve).
		POST("/:id/order", h.MarkOrdered).
		POST("/:id/cancel", h.Cancel).
		POST("/:id/receipts", h.Receive).
		POST("/:id/payments", h.Pay)
}

// Create godoc
// @ID           createPurchaseOrder
// @Summary      Create a purchase order
// @Description  Creates a DRAFT purchase order with its FX snapshot frozen at creation.
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        request body purchasingapp.CreatePurchaseOrderRequest true "Purchase order"
// @Success      201 {object} APIResponse[purchasingapp.PurchaseOrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /purchase-orders [post]
func (h *PurchaseOrderHandler) Create(c *gin.Context) {
	var req purchasingapp.CreatePurchaseOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	order, err := h.orders.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, order)
}

// GetByID godoc
// @ID           getPurchaseOrder
// @Summary      Get a purchase order
// @Tags         purchase-orders
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Success      200 {object} APIResponse[purchasingapp.PurchaseOrderResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /purchase-orders/{id} [get]
func (h *PurchaseOrderHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Approve godoc
// @ID           approvePurchaseOrder
// @Summary      Approve a purchase order
// @Tags         purchase-orders
// @Produce      json
// @Param        X-Actor header string false "Approver"
// @Param        id path string true "Purchase order ID" format(uuid)
// @Success      200 {object} APIResponse[purchasingapp.PurchaseOrderResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /purchase-orders/{id}/approve [post]
func (h *PurchaseOrderHandler) Approve(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.Approve(c.Request.Context(), id, getActor(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// MarkOrdered godoc
// @ID           orderPurchaseOrder
// @Summary      Mark a purchase order as sent
// @Tags         purchase-orders
// @Produce      json
// @Param        id path string true "Purchase order ID" format(uuid)
// @Success      200 {object} APIResponse[purchasingapp.PurchaseOrderResponse]
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /purchase-orders/{id}/order [post]
func (h *PurchaseOrderHandler) MarkOrdered(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.MarkOrdered(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Cancel godoc
// @ID           cancelPurchaseOrder
// @Summary      Cancel a purchase order
// @Description  Cancels an order that has not received any goods.
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        request body purchasingapp.CancelPurchaseOrderRequest true "Cancellation reason"
// @Success      200 {object} APIResponse[purchasingapp.PurchaseOrderResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /purchase-orders/{id}/cancel [post]
func (h *PurchaseOrderHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req purchasingapp.CancelPurchaseOrderRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	order, err := h.orders.Cancel(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, order)
}

// Receive godoc
// @ID           receivePurchaseOrderGoods
// @Summary      Receive goods
// @Description  Books a delivery against an ordered purchase order: stock comes in at the net unit cost and the supplier payable grows by the received value.
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        request body purchasingapp.ReceiveGoodsRequest true "Received lines"
// @Success      201 {object} APIResponse[purchasingapp.GoodsReceiptResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /purchase-orders/{id}/receipts [post]
func (h *PurchaseOrderHandler) Receive(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req purchasingapp.ReceiveGoodsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	receipt, err := h.orders.ReceiveGoods(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, receipt)
}

// Pay godoc
// @ID           payPurchaseOrder
// @Summary      Pay a supplier
// @Description  Records a payment against a purchase order and reduces the supplier payable.
// @Tags         purchase-orders
// @Accept       json
// @Produce      json
// @Param        X-Actor header string false "Caller recorded in the audit trail"
// @Param        id path string true "Purchase order ID" format(uuid)
// @Param        request body purchasingapp.PaySupplierRequest true "Payment"
// @Success      201 {object} APIResponse[purchasingapp.SupplierPaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /purchase-orders/{id}/payments [post]
func (h *PurchaseOrderHandler) Pay(c *gin.Context) {
	id, ok := h.parseID(c, "id")
	if !ok {
		return
	}
	var req purchasingapp.PaySupplierRequest
	if !h.bindJSON(c, &req) {
		return
	}
	req.Actor = getActor(c)

	payment, err := h.orders.PaySupplier(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}
