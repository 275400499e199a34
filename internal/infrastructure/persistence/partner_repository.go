package persistence

import (
	"context"

	"github.com/erp/settlement/internal/domain/partner"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements partner.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var customer partner.Customer
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByIDForUpdate finds a customer by ID holding a row lock
func (r *GormCustomerRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var customer partner.Customer
	if err := first(forUpdate(r.db.WithContext(ctx)).Where("id = ?", id), &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// FindByCode finds a customer by its unique code
func (r *GormCustomerRepository) FindByCode(ctx context.Context, code string) (*partner.Customer, error) {
	var customer partner.Customer
	if err := first(r.db.WithContext(ctx).Where("code = ?", code), &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	return translateError(r.db.WithContext(ctx).Save(customer).Error)
}

// GormSupplierRepository implements partner.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// FindByID finds a supplier by ID
func (r *GormSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Supplier, error) {
	var supplier partner.Supplier
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

// FindByIDForUpdate finds a supplier by ID holding a row lock
func (r *GormSupplierRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*partner.Supplier, error) {
	var supplier partner.Supplier
	if err := first(forUpdate(r.db.WithContext(ctx)).Where("id = ?", id), &supplier); err != nil {
		return nil, err
	}
	return &supplier, nil
}

// Save creates or updates a supplier
func (r *GormSupplierRepository) Save(ctx context.Context, supplier *partner.Supplier) error {
	return translateError(r.db.WithContext(ctx).Save(supplier).Error)
}

// GormWarehouseRepository implements partner.WarehouseRepository using GORM
type GormWarehouseRepository struct {
	db *gorm.DB
}

// NewGormWarehouseRepository creates a new GormWarehouseRepository
func NewGormWarehouseRepository(db *gorm.DB) *GormWarehouseRepository {
	return &GormWarehouseRepository{db: db}
}

// FindByID finds a warehouse by ID
func (r *GormWarehouseRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Warehouse, error) {
	var warehouse partner.Warehouse
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &warehouse); err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// FindDefault finds the default warehouse
func (r *GormWarehouseRepository) FindDefault(ctx context.Context) (*partner.Warehouse, error) {
	var warehouse partner.Warehouse
	if err := first(r.db.WithContext(ctx).Where("is_default = ?", true), &warehouse); err != nil {
		return nil, err
	}
	return &warehouse, nil
}

// Save creates or updates a warehouse. Saving a default warehouse clears
// the flag on every other one.
func (r *GormWarehouseRepository) Save(ctx context.Context, warehouse *partner.Warehouse) error {
	return translateError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if warehouse.IsDefault {
			if err := tx.Model(&partner.Warehouse{}).
				Where("is_default = ? AND id <> ?", true, warehouse.ID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Save(warehouse).Error
	}))
}

// GormLedgerRepository implements partner.LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Create appends a ledger entry
func (r *GormLedgerRepository) Create(ctx context.Context, entry *partner.LedgerEntry) error {
	return translateError(r.db.WithContext(ctx).Create(entry).Error)
}

// FindByParty lists a party's entries oldest first
func (r *GormLedgerRepository) FindByParty(ctx context.Context, party partner.PartyType, partyID uuid.UUID) ([]partner.LedgerEntry, error) {
	var entries []partner.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("party_type = ? AND party_id = ?", party, partyID).
		Order("created_at, id").
		Find(&entries).Error
	if err != nil {
		return nil, translateError(err)
	}
	return entries, nil
}

var (
	_ partner.CustomerRepository  = (*GormCustomerRepository)(nil)
	_ partner.SupplierRepository  = (*GormSupplierRepository)(nil)
	_ partner.WarehouseRepository = (*GormWarehouseRepository)(nil)
	_ partner.LedgerRepository    = (*GormLedgerRepository)(nil)
)
