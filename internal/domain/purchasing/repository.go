package purchasing

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for purchase order persistence
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	// FindByIDForUpdate loads the order and its items holding a row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*PurchaseOrder, error)
	Save(ctx context.Context, order *PurchaseOrder) error
}

// ReceiptRepository defines the interface for goods receipt persistence
type ReceiptRepository interface {
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]GoodsReceipt, error)
	Save(ctx context.Context, receipt *GoodsReceipt) error
}

// SupplierPaymentRepository defines the interface for supplier payment persistence
type SupplierPaymentRepository interface {
	FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]SupplierPayment, error)
	Save(ctx context.Context, payment *SupplierPayment) error
}
