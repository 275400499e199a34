// Package shared holds the unit-of-work contract every settlement service
// runs its mutations through.
package shared

import (
	"context"

	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
)

// TransactionScope provides transactional access to the settlement repositories.
// All repository operations inside fn are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all repositories within a transaction.
// Rows that will be modified must be read through the ForUpdate finders, in
// this order: payment, invoices by ascending id, customer or supplier, stock
// rows by (product, warehouse).
type TransactionalRepositories interface {
	Customers() partner.CustomerRepository
	Suppliers() partner.SupplierRepository
	Ledger() partner.LedgerRepository

	Invoices() sales.InvoiceRepository
	Payments() sales.PaymentRepository
	Allocations() sales.AllocationRepository
	Returns() sales.ReturnRepository

	PurchaseOrders() purchasing.OrderRepository
	GoodsReceipts() purchasing.ReceiptRepository
	SupplierPayments() purchasing.SupplierPaymentRepository

	Stocks() inventory.StockRepository
	Movements() inventory.MovementRepository

	Overrides() credit.OverrideRepository
	Audit() audit.Sink
	Numbers() shared.NumberGenerator
}
