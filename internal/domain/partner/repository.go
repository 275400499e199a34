package partner

import (
	"context"

	"github.com/google/uuid"
)

// CustomerRepository defines the interface for customer persistence
type CustomerRepository interface {
	// FindByID finds a customer by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindByIDForUpdate loads the customer holding a row lock until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Customer, error)

	// FindByCode finds a customer by its code
	FindByCode(ctx context.Context, code string) (*Customer, error)

	// Save creates or updates a customer
	Save(ctx context.Context, customer *Customer) error
}

// SupplierRepository defines the interface for supplier persistence
type SupplierRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Supplier, error)
	Save(ctx context.Context, supplier *Supplier) error
}

// WarehouseRepository defines the interface for warehouse persistence
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	FindDefault(ctx context.Context) (*Warehouse, error)
	Save(ctx context.Context, warehouse *Warehouse) error
}

// LedgerRepository appends balance change records
type LedgerRepository interface {
	Create(ctx context.Context, entry *LedgerEntry) error
	FindByParty(ctx context.Context, party PartyType, partyID uuid.UUID) ([]LedgerEntry, error)
}
