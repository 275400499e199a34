package persistence

import (
	"context"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements appshared.TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// Driver errors raised by the commit are mapped like repository errors.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appshared.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	return translateError(err)
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Customers() partner.CustomerRepository {
	return NewGormCustomerRepository(r.tx)
}

func (r *gormTransactionalRepositories) Suppliers() partner.SupplierRepository {
	return NewGormSupplierRepository(r.tx)
}

func (r *gormTransactionalRepositories) Ledger() partner.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) Invoices() sales.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) Payments() sales.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Allocations() sales.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

func (r *gormTransactionalRepositories) Returns() sales.ReturnRepository {
	return NewGormReturnRepository(r.tx)
}

func (r *gormTransactionalRepositories) PurchaseOrders() purchasing.OrderRepository {
	return NewGormPurchaseOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) GoodsReceipts() purchasing.ReceiptRepository {
	return NewGormGoodsReceiptRepository(r.tx)
}

func (r *gormTransactionalRepositories) SupplierPayments() purchasing.SupplierPaymentRepository {
	return NewGormSupplierPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Stocks() inventory.StockRepository {
	return NewGormStockRepository(r.tx)
}

func (r *gormTransactionalRepositories) Movements() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

func (r *gormTransactionalRepositories) Overrides() credit.OverrideRepository {
	return NewGormOverrideRepository(r.tx)
}

func (r *gormTransactionalRepositories) Audit() audit.Sink {
	return NewGormAuditRepository(r.tx)
}

func (r *gormTransactionalRepositories) Numbers() shared.NumberGenerator {
	return NewGormNumberGenerator(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appshared.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appshared.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
