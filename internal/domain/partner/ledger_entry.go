package partner

import (
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PartyType distinguishes receivable (customer) from payable (supplier) ledgers
type PartyType string

const (
	PartyTypeCustomer PartyType = "CUSTOMER"
	PartyTypeSupplier PartyType = "SUPPLIER"
)

// LedgerReason names the flow that moved a balance
type LedgerReason string

const (
	// LedgerReasonInvoice is a confirmed credit invoice (receivable increase)
	LedgerReasonInvoice LedgerReason = "INVOICE"
	// LedgerReasonPayment is a received or paid amount (balance decrease)
	LedgerReasonPayment LedgerReason = "PAYMENT"
	// LedgerReasonReturn is a sales return credited to the customer
	LedgerReasonReturn LedgerReason = "RETURN"
	// LedgerReasonCancellation reverses the unpaid part of a cancelled invoice
	LedgerReasonCancellation LedgerReason = "CANCELLATION"
	// LedgerReasonReceipt is goods received against a purchase order (payable increase)
	LedgerReasonReceipt LedgerReason = "RECEIPT"
)

// String returns the string representation of LedgerReason
func (r LedgerReason) String() string {
	return string(r)
}

// IsValid returns true if the reason is known
func (r LedgerReason) IsValid() bool {
	switch r {
	case LedgerReasonInvoice,
		LedgerReasonPayment,
		LedgerReasonReturn,
		LedgerReasonCancellation,
		LedgerReasonReceipt:
		return true
	}
	return false
}

// DocumentRef points a ledger entry at the document that caused it
type DocumentRef struct {
	Type   string    `gorm:"column:reference_type;type:varchar(30)"`
	ID     uuid.UUID `gorm:"column:reference_id;type:uuid;index"`
	Number string    `gorm:"column:reference_number;type:varchar(50)"`
}

// LedgerEntry is an immutable record of a partner balance change. The
// signed delta is positive when the balance grows.
// Once created, entries cannot be modified - corrections are new entries.
type LedgerEntry struct {
	shared.BaseEntity
	PartyType              PartyType       `gorm:"type:varchar(20);not null;index:idx_ledger_party,priority:1"`
	PartyID                uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_party,priority:2"`
	Reason                 LedgerReason    `gorm:"type:varchar(20);not null"`
	Delta                  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DeltaReference         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceBefore          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceAfter           decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceReferenceBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BalanceReferenceAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reference              DocumentRef     `gorm:"embedded"`
	Actor                  string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "partner_ledger_entries"
}

// balanceChange carries the shared apply logic for customers and suppliers
type balanceChange struct {
	party    PartyType
	partyID  uuid.UUID
	reason   LedgerReason
	delta    decimal.Decimal
	deltaRef decimal.Decimal
	ref      DocumentRef
	actor    string
}

func (c balanceChange) apply(balance, balanceRef *decimal.Decimal) (*LedgerEntry, error) {
	if !c.reason.IsValid() {
		return nil, shared.NewDomainError("INVALID_LEDGER_REASON", "invalid ledger reason")
	}
	if c.deltaRef.IsZero() && c.delta.IsZero() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "ledger entry amount cannot be zero")
	}
	entry := &LedgerEntry{
		BaseEntity:             shared.NewBaseEntity(),
		PartyType:              c.party,
		PartyID:                c.partyID,
		Reason:                 c.reason,
		Delta:                  c.delta.Round(4),
		DeltaReference:         c.deltaRef.Round(4),
		BalanceBefore:          *balance,
		BalanceReferenceBefore: *balanceRef,
		Reference:              c.ref,
		Actor:                  c.actor,
	}
	*balance = balance.Add(entry.Delta)
	*balanceRef = balanceRef.Add(entry.DeltaReference)
	entry.BalanceAfter = *balance
	entry.BalanceReferenceAfter = *balanceRef
	entry.CreatedAt = time.Now()
	return entry, nil
}
