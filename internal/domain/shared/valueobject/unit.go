package valueobject

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is a value object representing a unit of measurement.
// 1 of this unit equals ConversionRate base units of the product.
type Unit struct {
	code           string
	conversionRate decimal.Decimal
}

// UnitCodeBase is used when a line is entered directly in the product base unit
const UnitCodeBase = "BASE"

// NewUnit creates a new Unit with the specified code and conversion rate.
func NewUnit(code string, conversionRate decimal.Decimal) (Unit, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		code = UnitCodeBase
	}
	if len(code) > 20 {
		return Unit{}, errors.New("unit code cannot exceed 20 characters")
	}
	if !conversionRate.IsPositive() {
		return Unit{}, errors.New("unit conversion rate must be positive")
	}
	return Unit{code: code, conversionRate: conversionRate}, nil
}

// BaseUnit returns the product base unit (conversion rate 1)
func BaseUnit() Unit {
	return Unit{code: UnitCodeBase, conversionRate: decimal.NewFromInt(1)}
}

// UnitOrBase builds a unit from persisted fields, falling back to the base
// unit when the stored factor is missing or not positive.
func UnitOrBase(code string, conversionRate decimal.Decimal) Unit {
	u, err := NewUnit(code, conversionRate)
	if err != nil {
		return BaseUnit()
	}
	return u
}

// Code returns the unit code (normalized to uppercase).
func (u Unit) Code() string {
	return u.code
}

// ConversionRate returns the conversion rate to base unit.
func (u Unit) ConversionRate() decimal.Decimal {
	return u.conversionRate
}

// IsBaseUnit returns true if this is a base unit (conversion rate = 1).
func (u Unit) IsBaseUnit() bool {
	return u.conversionRate.Equal(decimal.NewFromInt(1))
}

// ConvertToBase converts a quantity from this unit to base units.
func (u Unit) ConvertToBase(quantity decimal.Decimal) decimal.Decimal {
	return quantity.Mul(u.conversionRate).Round(4)
}

// ConvertFromBase converts a quantity from base units to this unit.
func (u Unit) ConvertFromBase(baseQuantity decimal.Decimal) decimal.Decimal {
	if u.conversionRate.IsZero() {
		return decimal.Zero
	}
	return baseQuantity.Div(u.conversionRate).Round(4)
}
