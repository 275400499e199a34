package partner

import (
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
)

// Warehouse is a stock location
type Warehouse struct {
	shared.BaseEntity
	Code      string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(200);not null"`
	IsDefault bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (Warehouse) TableName() string {
	return "warehouses"
}

// NewWarehouse creates a warehouse
func NewWarehouse(code, name string) (*Warehouse, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewValidationError("code", "warehouse code cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewValidationError("name", "warehouse name cannot be empty")
	}
	return &Warehouse{BaseEntity: shared.NewBaseEntity(), Code: code, Name: strings.TrimSpace(name)}, nil
}
