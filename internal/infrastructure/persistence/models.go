package persistence

import (
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/erp/settlement/internal/domain/sales"
)

// Models lists every persisted settlement type
func Models() []any {
	return []any{
		&partner.Customer{},
		&partner.Supplier{},
		&partner.Warehouse{},
		&partner.LedgerEntry{},
		&inventory.Product{},
		&inventory.Stock{},
		&inventory.StockMovement{},
		&fx.DailyRate{},
		&sales.Invoice{},
		&sales.InvoiceItem{},
		&sales.Payment{},
		&sales.PaymentAllocation{},
		&sales.SalesReturn{},
		&sales.SalesReturnItem{},
		&purchasing.PurchaseOrder{},
		&purchasing.OrderItem{},
		&purchasing.GoodsReceipt{},
		&purchasing.GoodsReceiptItem{},
		&purchasing.SupplierPayment{},
		&credit.LimitOverride{},
		&audit.Entry{},
		&documentSequence{},
	}
}
