package fx

import (
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Precision is the number of decimal places kept on converted amounts
const Precision int32 = 6

// Tolerance is the rounding slack used for equality checks on money
var Tolerance = decimal.NewFromFloat(0.01)

// ToReference converts amount denominated in currency into the reference
// currency. Amounts already in the reference currency are returned as is.
func ToReference(amount decimal.Decimal, currency valueobject.Currency, s Snapshot) (decimal.Decimal, error) {
	if currency.IsReference() {
		return amount, nil
	}
	rate, err := s.RateFor(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.DivRound(rate, Precision), nil
}

// FromReference converts a reference-currency amount into currency.
func FromReference(amountRef decimal.Decimal, currency valueobject.Currency, s Snapshot) (decimal.Decimal, error) {
	if currency.IsReference() {
		return amountRef, nil
	}
	rate, err := s.RateFor(currency)
	if err != nil {
		return decimal.Zero, err
	}
	return amountRef.Mul(rate).Round(Precision), nil
}

// Convert moves m into the target currency through the reference currency
func Convert(m valueobject.Money, target valueobject.Currency, s Snapshot) (valueobject.Money, error) {
	if m.Currency() == target {
		return m, nil
	}
	ref, err := ToReference(m.Amount(), m.Currency(), s)
	if err != nil {
		return valueobject.Money{}, err
	}
	out, err := FromReference(ref, target, s)
	if err != nil {
		return valueobject.Money{}, err
	}
	return valueobject.NewMoney(out, target)
}

// ApproxEqual reports whether a and b differ by at most Tolerance
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// AtLeast reports whether a >= b - Tolerance
func AtLeast(a, b decimal.Decimal) bool {
	return a.GreaterThanOrEqual(b.Sub(Tolerance))
}

// Exceeds reports whether a > b + Tolerance
func Exceeds(a, b decimal.Decimal) bool {
	return a.GreaterThan(b.Add(Tolerance))
}
