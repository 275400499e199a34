package persistence

import (
	"context"

	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockRepository implements inventory.StockRepository using GORM
type GormStockRepository struct {
	db *gorm.DB
}

// NewGormStockRepository creates a new GormStockRepository
func NewGormStockRepository(db *gorm.DB) *GormStockRepository {
	return &GormStockRepository{db: db}
}

// FindForUpdate loads the stock row for product and warehouse holding a row lock
func (r *GormStockRepository) FindForUpdate(ctx context.Context, productID, warehouseID uuid.UUID) (*inventory.Stock, error) {
	var stock inventory.Stock
	query := forUpdate(r.db.WithContext(ctx)).Where("product_id = ? AND warehouse_id = ?", productID, warehouseID)
	if err := first(query, &stock); err != nil {
		return nil, err
	}
	return &stock, nil
}

// Find loads the stock row for product and warehouse
func (r *GormStockRepository) Find(ctx context.Context, productID, warehouseID uuid.UUID) (*inventory.Stock, error) {
	var stock inventory.Stock
	query := r.db.WithContext(ctx).Where("product_id = ? AND warehouse_id = ?", productID, warehouseID)
	if err := first(query, &stock); err != nil {
		return nil, err
	}
	return &stock, nil
}

// Save creates or updates a stock row
func (r *GormStockRepository) Save(ctx context.Context, stock *inventory.Stock) error {
	return translateError(r.db.WithContext(ctx).Save(stock).Error)
}

// GormMovementRepository implements inventory.MovementRepository using GORM
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends a stock movement
func (r *GormMovementRepository) Create(ctx context.Context, movement *inventory.StockMovement) error {
	return translateError(r.db.WithContext(ctx).Create(movement).Error)
}

// FindByReference lists the movements written for one source document
func (r *GormMovementRepository) FindByReference(ctx context.Context, referenceType string, referenceID uuid.UUID) ([]inventory.StockMovement, error) {
	var movements []inventory.StockMovement
	err := r.db.WithContext(ctx).
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		Order("created_at, id").
		Find(&movements).Error
	if err != nil {
		return nil, translateError(err)
	}
	return movements, nil
}

// GormProductRepository implements inventory.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Product, error) {
	var product inventory.Product
	if err := first(r.db.WithContext(ctx).Where("id = ?", id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// Save creates or updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *inventory.Product) error {
	return translateError(r.db.WithContext(ctx).Save(product).Error)
}

var (
	_ inventory.StockRepository    = (*GormStockRepository)(nil)
	_ inventory.MovementRepository = (*GormMovementRepository)(nil)
	_ inventory.ProductRepository  = (*GormProductRepository)(nil)
)
