package partner

import (
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Supplier is the payable side of the ledger. Its balance is what we owe.
type Supplier struct {
	shared.BaseAggregateRoot
	Code                    string          `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name                    string          `gorm:"type:varchar(200);not null"`
	CurrentBalance          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	CurrentBalanceReference decimal.Decimal `gorm:"column:current_balance_reference;type:decimal(18,4);not null;default:0"`
	PaymentTerms            int             `gorm:"not null;default:0"`
	IsActive                bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (Supplier) TableName() string {
	return "suppliers"
}

// NewSupplier creates an active supplier
func NewSupplier(code, name string) (*Supplier, error) {
	code = strings.TrimSpace(code)
	name = strings.TrimSpace(name)
	if code == "" {
		return nil, shared.NewValidationError("code", "supplier code cannot be empty")
	}
	if name == "" {
		return nil, shared.NewValidationError("name", "supplier name cannot be empty")
	}
	return &Supplier{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              code,
		Name:              name,
		IsActive:          true,
	}, nil
}

// ApplyLedgerEntry is the single place the supplier balance changes
func (s *Supplier) ApplyLedgerEntry(ch LedgerChange) (*LedgerEntry, error) {
	local, err := ch.localDelta()
	if err != nil {
		return nil, err
	}
	entry, err := balanceChange{
		party:    PartyTypeSupplier,
		partyID:  s.ID,
		reason:   ch.Reason,
		delta:    local,
		deltaRef: ch.DeltaReference,
		ref:      ch.Reference,
		actor:    ch.Actor,
	}.apply(&s.CurrentBalance, &s.CurrentBalanceReference)
	if err != nil {
		return nil, err
	}
	s.IncrementVersion()
	return entry, nil
}
