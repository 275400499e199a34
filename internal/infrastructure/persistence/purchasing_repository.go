package persistence

import (
	"context"

	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPurchaseOrderRepository implements purchasing.OrderRepository using GORM
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewGormPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewGormPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// FindByID finds a purchase order by ID with its items
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*purchasing.PurchaseOrder, error) {
	var order purchasing.PurchaseOrder
	if err := first(withItems(r.db.WithContext(ctx)).Where("id = ?", id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FindByIDForUpdate finds a purchase order by ID holding a row lock
func (r *GormPurchaseOrderRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*purchasing.PurchaseOrder, error) {
	var order purchasing.PurchaseOrder
	if err := first(withItems(forUpdate(r.db.WithContext(ctx))).Where("id = ?", id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Save creates or updates a purchase order, replacing its item set
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, order *purchasing.PurchaseOrder) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(order).Error; err != nil {
			return err
		}

		keep := make([]uuid.UUID, len(order.Items))
		for i := range order.Items {
			keep[i] = order.Items[i].ID
		}
		stale := tx.Where("order_id = ?", order.ID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := stale.Delete(&purchasing.OrderItem{}).Error; err != nil {
			return err
		}

		for i := range order.Items {
			order.Items[i].OrderID = order.ID
			if err := tx.Save(&order.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// GormGoodsReceiptRepository implements purchasing.ReceiptRepository using GORM
type GormGoodsReceiptRepository struct {
	db *gorm.DB
}

// NewGormGoodsReceiptRepository creates a new GormGoodsReceiptRepository
func NewGormGoodsReceiptRepository(db *gorm.DB) *GormGoodsReceiptRepository {
	return &GormGoodsReceiptRepository{db: db}
}

// FindByOrder lists the receipts of a purchase order oldest first
func (r *GormGoodsReceiptRepository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]purchasing.GoodsReceipt, error) {
	var receipts []purchasing.GoodsReceipt
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("purchase_order_id = ?", orderID).
		Order("received_date, created_at").
		Find(&receipts).Error
	if err != nil {
		return nil, translateError(err)
	}
	return receipts, nil
}

// Save creates a goods receipt with its items
func (r *GormGoodsReceiptRepository) Save(ctx context.Context, receipt *purchasing.GoodsReceipt) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(receipt).Error; err != nil {
			return err
		}
		for i := range receipt.Items {
			receipt.Items[i].ReceiptID = receipt.ID
			if err := tx.Save(&receipt.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

// GormSupplierPaymentRepository implements purchasing.SupplierPaymentRepository using GORM
type GormSupplierPaymentRepository struct {
	db *gorm.DB
}

// NewGormSupplierPaymentRepository creates a new GormSupplierPaymentRepository
func NewGormSupplierPaymentRepository(db *gorm.DB) *GormSupplierPaymentRepository {
	return &GormSupplierPaymentRepository{db: db}
}

// FindBySupplier lists a supplier's payments oldest first
func (r *GormSupplierPaymentRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID) ([]purchasing.SupplierPayment, error) {
	var payments []purchasing.SupplierPayment
	err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("payment_date, id").
		Find(&payments).Error
	if err != nil {
		return nil, translateError(err)
	}
	return payments, nil
}

// Save creates or updates a supplier payment
func (r *GormSupplierPaymentRepository) Save(ctx context.Context, payment *purchasing.SupplierPayment) error {
	return translateError(r.db.WithContext(ctx).Save(payment).Error)
}

var (
	_ purchasing.OrderRepository           = (*GormPurchaseOrderRepository)(nil)
	_ purchasing.ReceiptRepository         = (*GormGoodsReceiptRepository)(nil)
	_ purchasing.SupplierPaymentRepository = (*GormSupplierPaymentRepository)(nil)
)
