package persistence

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements sales.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Payment, error) {
	var payment sales.Payment
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIDForUpdate finds a payment by ID holding a row lock
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Payment, error) {
	var payment sales.Payment
	if err := first(forUpdate(r.db.WithContext(ctx)).Where("id = ?", id), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByCustomer lists a customer's payments dated on or before to
func (r *GormPaymentRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, to *time.Time) ([]sales.Payment, error) {
	query := r.db.WithContext(ctx).Where("customer_id = ?", customerID)
	if to != nil {
		query = query.Where("payment_date <= ?", *to)
	}
	var payments []sales.Payment
	if err := query.Order("payment_date, id").Find(&payments).Error; err != nil {
		return nil, translateError(err)
	}
	return payments, nil
}

// List returns one page of payments matching the filter plus the total match count
func (r *GormPaymentRepository) List(ctx context.Context, filter sales.PaymentFilter) ([]sales.Payment, int64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if filter.CustomerID != nil {
			db = db.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.From != nil {
			db = db.Where("payment_date >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("payment_date <= ?", *filter.To)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&sales.Payment{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var payments []sales.Payment
	err := r.db.WithContext(ctx).
		Scopes(where, paginate(filter.Filter, PaymentSortFields, "payment_date")).
		Find(&payments).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return payments, total, nil
}

// Save creates or updates a payment
func (r *GormPaymentRepository) Save(ctx context.Context, payment *sales.Payment) error {
	return translateError(r.db.WithContext(ctx).Save(payment).Error)
}

// GormAllocationRepository implements sales.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByPayment lists the allocations of a payment
func (r *GormAllocationRepository) FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]sales.PaymentAllocation, error) {
	var allocations []sales.PaymentAllocation
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at, id").
		Find(&allocations).Error
	if err != nil {
		return nil, translateError(err)
	}
	return allocations, nil
}

// FindByPair finds the allocation row of a payment against one invoice
func (r *GormAllocationRepository) FindByPair(ctx context.Context, paymentID, invoiceID uuid.UUID) (*sales.PaymentAllocation, error) {
	var allocation sales.PaymentAllocation
	query := r.db.WithContext(ctx).Where("payment_id = ? AND invoice_id = ?", paymentID, invoiceID)
	if err := first(query, &allocation); err != nil {
		return nil, err
	}
	return &allocation, nil
}

// SumReferenceByPayment totals the reference amounts allocated from a payment
func (r *GormAllocationRepository) SumReferenceByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.NullDecimal
	}
	err := r.db.WithContext(ctx).
		Model(&sales.PaymentAllocation{}).
		Where("payment_id = ?", paymentID).
		Select("SUM(amount_reference) AS total").
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, translateError(err)
	}
	if !result.Total.Valid {
		return decimal.Zero, nil
	}
	return result.Total.Decimal, nil
}

// Save creates or updates an allocation. A concurrent insert of the same
// (payment, invoice) pair surfaces as shared.ErrAlreadyExists.
func (r *GormAllocationRepository) Save(ctx context.Context, allocation *sales.PaymentAllocation) error {
	return translateError(r.db.WithContext(ctx).Save(allocation).Error)
}

// GormReturnRepository implements sales.ReturnRepository using GORM
type GormReturnRepository struct {
	db *gorm.DB
}

// NewGormReturnRepository creates a new GormReturnRepository
func NewGormReturnRepository(db *gorm.DB) *GormReturnRepository {
	return &GormReturnRepository{db: db}
}

// FindByID finds a sales return by ID with its items
func (r *GormReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.SalesReturn, error) {
	var ret sales.SalesReturn
	if err := first(r.db.WithContext(ctx).Preload("Items").Where("id = ?", id), &ret); err != nil {
		return nil, err
	}
	return &ret, nil
}

// FindByCustomer lists a customer's returns dated on or before to
func (r *GormReturnRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, to *time.Time) ([]sales.SalesReturn, error) {
	query := r.db.WithContext(ctx).Where("customer_id = ?", customerID)
	if to != nil {
		query = query.Where("return_date <= ?", *to)
	}
	var returns []sales.SalesReturn
	if err := query.Order("return_date, id").Find(&returns).Error; err != nil {
		return nil, translateError(err)
	}
	return returns, nil
}

// Save creates a sales return with its items. Returns are never edited.
func (r *GormReturnRepository) Save(ctx context.Context, ret *sales.SalesReturn) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(ret).Error; err != nil {
			return err
		}
		for i := range ret.Items {
			ret.Items[i].ReturnID = ret.ID
			if err := tx.Save(&ret.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

var (
	_ sales.PaymentRepository    = (*GormPaymentRepository)(nil)
	_ sales.AllocationRepository = (*GormAllocationRepository)(nil)
	_ sales.ReturnRepository     = (*GormReturnRepository)(nil)
)
