package handler

import (
	"github.com/erp/settlement/internal/interfaces/http/router"
)

// Handlers bundles every settlement API handler
type Handlers struct {
	Customers      *CustomerHandler
	Suppliers      *SupplierHandler
	Warehouses     *WarehouseHandler
	Stock          *StockHandler
	Invoices       *InvoiceHandler
	Payments       *PaymentHandler
	PurchaseOrders *PurchaseOrderHandler
	FXRates        *FXRateHandler
	Audit          *AuditHandler
	System         *SystemHandler
}

// Groups returns the route groups served under the API prefix
func (h *Handlers) Groups() []*router.DomainGroup {
	return []*router.DomainGroup{
		h.Customers.Routes(),
		h.Suppliers.Routes(),
		h.Warehouses.Routes(),
		h.Stock.ProductRoutes(),
		h.Stock.StockRoutes(),
		h.Invoices.Routes(),
		h.Invoices.ReturnRoutes(),
		h.Payments.Routes(),
		h.PurchaseOrders.Routes(),
		h.FXRates.Routes(),
		h.Audit.Routes(),
		h.System.Routes(),
	}
}

// Register adds every group to r and returns the routes they serve
func (h *Handlers) Register(r *router.Router) []router.RouteInfo {
	var routes []router.RouteInfo
	for _, g := range h.Groups() {
		r.Register(g)
		routes = append(routes, g.Routes(r.BasePath())...)
	}
	return routes
}
