package inventory

import (
	"context"

	"github.com/google/uuid"
)

// StockRepository defines the interface for stock persistence
type StockRepository interface {
	// FindForUpdate loads the row for product and warehouse with a row lock.
	// Returns shared.ErrNotFound when no row exists yet.
	FindForUpdate(ctx context.Context, productID, warehouseID uuid.UUID) (*Stock, error)
	Find(ctx context.Context, productID, warehouseID uuid.UUID) (*Stock, error)
	Save(ctx context.Context, stock *Stock) error
}

// MovementRepository appends stock movements
type MovementRepository interface {
	Create(ctx context.Context, movement *StockMovement) error
	FindByReference(ctx context.Context, referenceType string, referenceID uuid.UUID) ([]StockMovement, error)
}

// ProductRepository defines the interface for product lookup
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	Save(ctx context.Context, product *Product) error
}
