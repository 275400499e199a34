package valueobject

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency is a settlement currency code
type Currency string

const (
	// USD is the reference currency every balance is compared in
	USD Currency = "USD"
	// SYPOld is the pre-redenomination local tender
	SYPOld Currency = "SYP_OLD"
	// SYPNew is the redenominated local tender (1 SYP_NEW = 100 SYP_OLD)
	SYPNew Currency = "SYP_NEW"
)

// ReferenceCurrency is the stable unit of account
const ReferenceCurrency = USD

// DefaultLocalCurrency is the currency customer and supplier balances are kept in
const DefaultLocalCurrency = SYPOld

// IsValid reports whether c is one of the supported currencies
func (c Currency) IsValid() bool {
	switch c {
	case USD, SYPOld, SYPNew:
		return true
	}
	return false
}

// IsReference reports whether c is the reference currency
func (c Currency) IsReference() bool {
	return c == ReferenceCurrency
}

// String returns the string representation
func (c Currency) String() string {
	return string(c)
}

// ParseCurrency parses a currency code, defaulting empty input to the local currency
func ParseCurrency(s string) (Currency, error) {
	if s == "" {
		return DefaultLocalCurrency, nil
	}
	c := Currency(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// Money is a value object representing monetary amounts
// It is immutable - all operations return new Money instances
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.IsValid() {
		return Money{}, fmt.Errorf("unsupported currency %q", currency)
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// MustNewMoney creates Money and panics on an unsupported currency
func MustNewMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// NewMoneyFromString creates Money from a string representation
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return NewMoney(d, currency)
}

// Zero returns zero money in the specified currency
func Zero(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency code
func (m Money) Currency() Currency {
	return m.currency
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns a new Money with the sum of both amounts
// Returns error if currencies don't match
func (m Money) Add(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot add money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Add(other.amount),
		currency: m.currency,
	}, nil
}

// Subtract returns a new Money with the difference
// Returns error if currencies don't match
func (m Money) Subtract(other Money) (Money, error) {
	if m.currency != other.currency {
		return Money{}, fmt.Errorf("cannot subtract money with different currencies: %s and %s", m.currency, other.currency)
	}
	return Money{
		amount:   m.amount.Sub(other.amount),
		currency: m.currency,
	}, nil
}

// Multiply returns a new Money multiplied by the given factor
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{
		amount:   m.amount.Mul(factor),
		currency: m.currency,
	}
}

// Negate returns a new Money with the opposite sign
func (m Money) Negate() Money {
	return Money{
		amount:   m.amount.Neg(),
		currency: m.currency,
	}
}

// Round returns a new Money rounded half away from zero
func (m Money) Round(places int32) Money {
	return Money{
		amount:   m.amount.Round(places),
		currency: m.currency,
	}
}

// Equals returns true if both amount and currency match
func (m Money) Equals(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// WithinTolerance reports whether both values are in the same currency and
// differ by at most tolerance
func (m Money) WithinTolerance(other Money, tolerance decimal.Decimal) bool {
	if m.currency != other.currency {
		return false
	}
	return m.amount.Sub(other.amount).Abs().LessThanOrEqual(tolerance)
}

// String returns the string representation
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}{
		Amount:   m.amount.String(),
		Currency: m.currency,
	})
}

// UnmarshalJSON implements json.Unmarshaler, validating the currency
func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   string   `json:"amount"`
		Currency Currency `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Amount == "" {
		return errors.New("amount is required")
	}
	parsed, err := NewMoneyFromString(v.Amount, v.Currency)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
