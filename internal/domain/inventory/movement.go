package inventory

import (
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MovementType represents the direction/kind of a stock movement
type MovementType string

const (
	MovementIn         MovementType = "in"
	MovementOut        MovementType = "out"
	MovementAdjustment MovementType = "adjustment"
	MovementTransfer   MovementType = "transfer"
	MovementReturn     MovementType = "return"
	MovementDamage     MovementType = "damage"
)

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementIn, MovementOut, MovementAdjustment, MovementTransfer, MovementReturn, MovementDamage:
		return true
	}
	return false
}

// SourceType represents the kind of document that caused a movement
type SourceType string

const (
	SourcePurchase   SourceType = "purchase"
	SourceSale       SourceType = "sale"
	SourceAdjustment SourceType = "adjustment"
	SourceTransfer   SourceType = "transfer"
	SourceOpening    SourceType = "opening"
	SourceReturn     SourceType = "return"
)

// IsValid returns true if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourcePurchase, SourceSale, SourceAdjustment, SourceTransfer, SourceOpening, SourceReturn:
		return true
	}
	return false
}

// Reference points a movement at its originating document
type Reference struct {
	Type   string    `gorm:"column:reference_type;type:varchar(30)"`
	ID     uuid.UUID `gorm:"column:reference_id;type:uuid;index"`
	Number string    `gorm:"column:reference_number;type:varchar(50)"`
}

// StockChange is the input of a ledger write. Quantity is in base units and positive.
type StockChange struct {
	ProductID    uuid.UUID
	WarehouseID  uuid.UUID
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	MovementType MovementType
	SourceType   SourceType
	Reference    Reference
	Notes        string
	Actor        string
}

// Validate checks the change before any row is locked
func (c StockChange) Validate() error {
	if c.ProductID == uuid.Nil {
		return shared.NewValidationError("product_id", "product is required")
	}
	if c.WarehouseID == uuid.Nil {
		return shared.NewValidationError("warehouse_id", "warehouse is required")
	}
	if !c.Quantity.IsPositive() {
		return shared.NewValidationError("quantity", "quantity must be positive")
	}
	if c.UnitCost.IsNegative() {
		return shared.NewValidationError("unit_cost", "unit cost cannot be negative")
	}
	if !c.MovementType.IsValid() {
		return shared.NewValidationError("movement_type", "invalid movement type")
	}
	if !c.SourceType.IsValid() {
		return shared.NewValidationError("source_type", "invalid source type")
	}
	return nil
}

// StockMovement is an immutable record of a stock change.
// Once created, movements cannot be modified - corrections are new movements.
type StockMovement struct {
	shared.BaseEntity
	ProductID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_movement_product"`
	WarehouseID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	MovementType  MovementType    `gorm:"type:varchar(20);not null"`
	SourceType    SourceType      `gorm:"type:varchar(20);not null"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"` // always positive, direction from MovementType
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reference     Reference       `gorm:"embedded"`
	Notes         string          `gorm:"type:text"`
	Actor         string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement records change against the stock balance it moved
func NewStockMovement(change StockChange, before, after decimal.Decimal) *StockMovement {
	return &StockMovement{
		BaseEntity:    shared.NewBaseEntity(),
		ProductID:     change.ProductID,
		WarehouseID:   change.WarehouseID,
		MovementType:  change.MovementType,
		SourceType:    change.SourceType,
		Quantity:      change.Quantity,
		UnitCost:      change.UnitCost,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reference:     change.Reference,
		Notes:         change.Notes,
		Actor:         change.Actor,
	}
}

// SignedQuantity returns the change in on-hand quantity
func (m *StockMovement) SignedQuantity() decimal.Decimal {
	return m.BalanceAfter.Sub(m.BalanceBefore)
}
