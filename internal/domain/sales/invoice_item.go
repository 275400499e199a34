package sales

import (
	"time"

	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// InvoiceItem represents a line item in an invoice. Quantity is in the line
// unit; ConversionFactor converts it to the product base unit.
type InvoiceItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName      string          `gorm:"type:varchar(200);not null"`
	Unit             string          `gorm:"type:varchar(20)"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	ReturnedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CostPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountPercent  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for GORM
func (InvoiceItem) TableName() string {
	return "invoice_items"
}

// ItemInput carries the fields needed to add a line
type ItemInput struct {
	ProductID        uuid.UUID
	ProductName      string
	Unit             string
	ConversionFactor decimal.Decimal
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	CostPrice        decimal.Decimal
	DiscountPercent  decimal.Decimal
	TaxRate          decimal.Decimal
}

func newInvoiceItem(invoiceID uuid.UUID, in ItemInput) (*InvoiceItem, error) {
	if in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("product_id", "product is required")
	}
	if in.ProductName == "" {
		return nil, shared.NewValidationError("product_name", "product name cannot be empty")
	}
	if !in.Quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewValidationError("unit_price", "unit price cannot be negative")
	}
	if err := validatePercent("discount_percent", in.DiscountPercent); err != nil {
		return nil, err
	}
	if err := validatePercent("tax_rate", in.TaxRate); err != nil {
		return nil, err
	}
	factor := in.ConversionFactor
	if !factor.IsPositive() {
		factor = decimal.NewFromInt(1)
	}
	if _, err := valueobject.NewUnit(in.Unit, factor); err != nil {
		return nil, shared.NewValidationError("unit", err.Error())
	}
	now := time.Now()
	return &InvoiceItem{
		ID:               uuid.New(),
		InvoiceID:        invoiceID,
		ProductID:        in.ProductID,
		ProductName:      in.ProductName,
		Unit:             in.Unit,
		ConversionFactor: factor,
		Quantity:         in.Quantity,
		ReturnedQuantity: decimal.Zero,
		UnitPrice:        in.UnitPrice,
		CostPrice:        in.CostPrice,
		DiscountPercent:  in.DiscountPercent,
		TaxRate:          in.TaxRate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func validatePercent(field string, p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(hundred) {
		return shared.NewValidationError(field, "must be between 0 and 100")
	}
	return nil
}

// LineAmounts is the priced breakdown of a quantity on a line
type LineAmounts struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// PriceQuantity prices qty with this line's unit price, discount and tax
func (i *InvoiceItem) PriceQuantity(qty decimal.Decimal) LineAmounts {
	subtotal := qty.Mul(i.UnitPrice)
	discount := subtotal.Mul(i.DiscountPercent).Div(hundred)
	tax := subtotal.Sub(discount).Mul(i.TaxRate).Div(hundred)
	return LineAmounts{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(tax),
	}
}

// Amounts returns the priced breakdown of the full line
func (i *InvoiceItem) Amounts() LineAmounts {
	return i.PriceQuantity(i.Quantity)
}

// BaseQuantity returns the line quantity in product base units
func (i *InvoiceItem) BaseQuantity() decimal.Decimal {
	return inventory.ToBaseQuantity(i.Quantity, i.ConversionFactor)
}

// ReturnableQuantity returns how much of the line can still be returned
func (i *InvoiceItem) ReturnableQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.ReturnedQuantity)
}
