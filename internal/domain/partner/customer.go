package partner

import (
	"strings"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Customer is the receivable side of the ledger and the aggregate root for
// credit decisions. CurrentBalance is kept in the local ledger currency and
// CurrentBalanceReference in the reference currency; both are running totals
// mutated only through ApplyLedgerEntry.
type Customer struct {
	shared.BaseAggregateRoot
	Code                    string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name                    string               `gorm:"type:varchar(200);not null"`
	Currency                valueobject.Currency `gorm:"type:varchar(10);not null;default:'SYP_OLD'"` // currency the credit limit is expressed in
	CreditLimit             decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	CurrentBalance          decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	CurrentBalanceReference decimal.Decimal      `gorm:"column:current_balance_reference;type:decimal(18,4);not null;default:0"`
	OpeningBalance          decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	OpeningBalanceReference decimal.Decimal      `gorm:"column:opening_balance_reference;type:decimal(18,4);not null;default:0"`
	PaymentTerms            int                  `gorm:"not null;default:0"` // days
	IsActive                bool                 `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Customer) TableName() string {
	return "customers"
}

// NewCustomer creates an active customer with no credit limit
func NewCustomer(code, name string, currency valueobject.Currency) (*Customer, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, shared.NewValidationError("code", "customer code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewValidationError("code", "customer code cannot exceed 50 characters")
	}
	if name == "" {
		return nil, shared.NewValidationError("name", "customer name cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultLocalCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewValidationError("currency", "unsupported currency "+currency.String())
	}
	return &Customer{
		BaseAggregateRoot:       shared.NewBaseAggregateRoot(),
		Code:                    code,
		Name:                    name,
		Currency:                currency,
		CreditLimit:             decimal.Zero,
		CurrentBalance:          decimal.Zero,
		CurrentBalanceReference: decimal.Zero,
		IsActive:                true,
	}, nil
}

// SetCreditLimit sets the limit in the customer's currency. Zero means unlimited.
func (c *Customer) SetCreditLimit(limit decimal.Decimal) error {
	if limit.IsNegative() {
		return shared.NewValidationError("credit_limit", "credit limit cannot be negative")
	}
	c.CreditLimit = limit
	c.IncrementVersion()
	return nil
}

// SetPaymentTerms sets the number of days invoices fall due after issue
func (c *Customer) SetPaymentTerms(days int) error {
	if days < 0 {
		return shared.NewValidationError("payment_terms", "payment terms cannot be negative")
	}
	c.PaymentTerms = days
	c.IncrementVersion()
	return nil
}

// SetOpeningBalance records the balance carried over from before the ledger
// started. The running balance starts from it.
func (c *Customer) SetOpeningBalance(local, reference decimal.Decimal) {
	c.OpeningBalance = local
	c.OpeningBalanceReference = reference
	c.CurrentBalance = c.CurrentBalance.Add(local)
	c.CurrentBalanceReference = c.CurrentBalanceReference.Add(reference)
	c.IncrementVersion()
}

// HasCreditLimit returns true if a positive limit is configured
func (c *Customer) HasCreditLimit() bool {
	return c.CreditLimit.IsPositive()
}

// CreditLimitReference converts the limit to the reference currency with s.
// Customers without a limit report zero without needing a rate.
func (c *Customer) CreditLimitReference(s fx.Snapshot) (decimal.Decimal, error) {
	if !c.HasCreditLimit() {
		return decimal.Zero, nil
	}
	return fx.ToReference(c.CreditLimit, c.Currency, s)
}

// LedgerChange describes one balance mutation. DeltaReference is signed:
// positive increases what the partner owes (or is owed, for suppliers).
type LedgerChange struct {
	Reason         LedgerReason
	DeltaReference decimal.Decimal
	// Delta is the local-currency delta. When zero it is derived from
	// DeltaReference with Snapshot.
	Delta     decimal.Decimal
	Snapshot  fx.Snapshot
	Reference DocumentRef
	Actor     string
}

func (ch LedgerChange) localDelta() (decimal.Decimal, error) {
	if !ch.Delta.IsZero() {
		return ch.Delta, nil
	}
	return fx.FromReference(ch.DeltaReference, valueobject.DefaultLocalCurrency, ch.Snapshot)
}

// ApplyLedgerEntry is the single place the customer balance changes
func (c *Customer) ApplyLedgerEntry(ch LedgerChange) (*LedgerEntry, error) {
	local, err := ch.localDelta()
	if err != nil {
		return nil, err
	}
	entry, err := balanceChange{
		party:    PartyTypeCustomer,
		partyID:  c.ID,
		reason:   ch.Reason,
		delta:    local,
		deltaRef: ch.DeltaReference,
		ref:      ch.Reference,
		actor:    ch.Actor,
	}.apply(&c.CurrentBalance, &c.CurrentBalanceReference)
	if err != nil {
		return nil, err
	}
	c.IncrementVersion()
	return entry, nil
}
