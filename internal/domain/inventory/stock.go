// Package inventory holds on-hand stock per product and warehouse and the
// append-only movement ledger that explains every change to it.
package inventory

import (
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the minimal catalog view the ledger needs
type Product struct {
	shared.BaseEntity
	Code     string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string `gorm:"type:varchar(200);not null"`
	BaseUnit string `gorm:"type:varchar(20);not null;default:'PCS'"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a product
func NewProduct(code, name, baseUnit string) (*Product, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, shared.NewValidationError("code", "product code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewValidationError("name", "product name cannot be empty")
	}
	if baseUnit == "" {
		baseUnit = "PCS"
	}
	return &Product{BaseEntity: shared.NewBaseEntity(), Code: code, Name: name, BaseUnit: strings.ToUpper(baseUnit)}, nil
}

// Stock is the on-hand quantity of a product in one warehouse, in base units
type Stock struct {
	shared.BaseEntity
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_warehouse,priority:1"`
	WarehouseID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_product_warehouse,priority:2"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (Stock) TableName() string {
	return "stocks"
}

// NewStock creates an empty stock row
func NewStock(productID, warehouseID uuid.UUID) (*Stock, error) {
	if productID == uuid.Nil {
		return nil, shared.NewValidationError("product_id", "product is required")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewValidationError("warehouse_id", "warehouse is required")
	}
	return &Stock{
		BaseEntity:  shared.NewBaseEntity(),
		ProductID:   productID,
		WarehouseID: warehouseID,
		Quantity:    decimal.Zero,
	}, nil
}

// Increase adds quantity and returns the balance before the change
func (s *Stock) Increase(quantity decimal.Decimal) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, shared.NewValidationError("quantity", "quantity must be positive")
	}
	before := s.Quantity
	s.Quantity = s.Quantity.Add(quantity)
	s.Touch()
	return before, nil
}

// Decrease removes quantity and returns the balance before the change.
// It never drives the quantity negative.
func (s *Stock) Decrease(quantity decimal.Decimal, productName string) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, shared.NewValidationError("quantity", "quantity must be positive")
	}
	if s.Quantity.LessThan(quantity) {
		return decimal.Zero, shared.NewInsufficientStockError(productName, quantity, s.Quantity)
	}
	before := s.Quantity
	s.Quantity = s.Quantity.Sub(quantity)
	s.Touch()
	return before, nil
}

// ToBaseQuantity converts a quantity entered in a secondary unit into base
// units. A factor <= 0 is treated as 1.
func ToBaseQuantity(quantity, conversionFactor decimal.Decimal) decimal.Decimal {
	return valueobject.UnitOrBase("", conversionFactor).ConvertToBase(quantity)
}
