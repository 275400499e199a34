package persistence

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/sales"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var openStatuses = []sales.InvoiceStatus{sales.InvoiceStatusConfirmed, sales.InvoiceStatusPartial}

var postedStatuses = []sales.InvoiceStatus{
	sales.InvoiceStatusConfirmed,
	sales.InvoiceStatusPartial,
	sales.InvoiceStatusPaid,
}

// GormInvoiceRepository implements sales.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func withItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at, id")
	})
}

// FindByID finds an invoice by ID with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Invoice, error) {
	var invoice sales.Invoice
	if err := first(withItems(r.db.WithContext(ctx)).Where("id = ?", id), &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDForUpdate finds an invoice by ID holding a row lock
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*sales.Invoice, error) {
	var invoice sales.Invoice
	if err := first(withItems(forUpdate(r.db.WithContext(ctx))).Where("id = ?", id), &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByIDsForUpdate locks the given invoices in ascending id order.
// Missing ids are simply absent from the result.
func (r *GormInvoiceRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]sales.Invoice, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var invoices []sales.Invoice
	err := withItems(forUpdate(r.db.WithContext(ctx))).
		Where("id IN ?", ids).
		Order("id").
		Find(&invoices).Error
	if err != nil {
		return nil, translateError(err)
	}
	return invoices, nil
}

// FindOpenCreditForUpdate locks the customer's open credit invoices in ascending id order
func (r *GormInvoiceRepository) FindOpenCreditForUpdate(ctx context.Context, customerID uuid.UUID) ([]sales.Invoice, error) {
	var invoices []sales.Invoice
	err := withItems(forUpdate(r.db.WithContext(ctx))).
		Where("customer_id = ? AND invoice_type = ? AND status IN ?", customerID, sales.InvoiceTypeCredit, openStatuses).
		Order("id").
		Find(&invoices).Error
	if err != nil {
		return nil, translateError(err)
	}
	return invoices, nil
}

// FindOpenCredit lists the customer's open credit invoices oldest first
func (r *GormInvoiceRepository) FindOpenCredit(ctx context.Context, customerID uuid.UUID) ([]sales.Invoice, error) {
	var invoices []sales.Invoice
	err := r.db.WithContext(ctx).
		Where("customer_id = ? AND invoice_type = ? AND status IN ?", customerID, sales.InvoiceTypeCredit, openStatuses).
		Order("invoice_date, id").
		Find(&invoices).Error
	if err != nil {
		return nil, translateError(err)
	}
	return invoices, nil
}

// FindPostedByCustomer lists confirmed, partial and paid invoices dated on or before to
func (r *GormInvoiceRepository) FindPostedByCustomer(ctx context.Context, customerID uuid.UUID, to *time.Time) ([]sales.Invoice, error) {
	query := r.db.WithContext(ctx).Where("customer_id = ? AND status IN ?", customerID, postedStatuses)
	if to != nil {
		query = query.Where("invoice_date <= ?", *to)
	}
	var invoices []sales.Invoice
	if err := query.Order("invoice_date, id").Find(&invoices).Error; err != nil {
		return nil, translateError(err)
	}
	return invoices, nil
}

// List returns one page of invoices matching the filter plus the total match count
func (r *GormInvoiceRepository) List(ctx context.Context, filter sales.InvoiceFilter) ([]sales.Invoice, int64, error) {
	where := func(db *gorm.DB) *gorm.DB {
		if filter.CustomerID != nil {
			db = db.Where("customer_id = ?", *filter.CustomerID)
		}
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.InvoiceType != "" {
			db = db.Where("invoice_type = ?", filter.InvoiceType)
		}
		if filter.From != nil {
			db = db.Where("invoice_date >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("invoice_date <= ?", *filter.To)
		}
		return db
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&sales.Invoice{}).Scopes(where).Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var invoices []sales.Invoice
	err := r.db.WithContext(ctx).
		Scopes(where, paginate(filter.Filter, InvoiceSortFields, "invoice_date")).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return invoices, total, nil
}

// Save creates or updates an invoice, replacing its item set
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *sales.Invoice) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(invoice).Error; err != nil {
			return err
		}

		keep := make([]uuid.UUID, len(invoice.Items))
		for i := range invoice.Items {
			keep[i] = invoice.Items[i].ID
		}
		stale := tx.Where("invoice_id = ?", invoice.ID)
		if len(keep) > 0 {
			stale = stale.Where("id NOT IN ?", keep)
		}
		if err := stale.Delete(&sales.InvoiceItem{}).Error; err != nil {
			return err
		}

		for i := range invoice.Items {
			invoice.Items[i].InvoiceID = invoice.ID
			if err := tx.Save(&invoice.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	}))
}

var _ sales.InvoiceRepository = (*GormInvoiceRepository)(nil)
