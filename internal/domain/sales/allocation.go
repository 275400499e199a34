package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AllocationMode selects how a payment is distributed
type AllocationMode string

const (
	AllocationModeManual AllocationMode = "manual"
	AllocationModeAuto   AllocationMode = "auto"
)

// IsValid checks if the mode is valid
func (m AllocationMode) IsValid() bool {
	return m == AllocationModeManual || m == AllocationModeAuto
}

// AmountCurrency states which currency manual allocation amounts are given in.
// One call uses one style for every line.
type AmountCurrency string

const (
	// AmountInTransaction means each amount is in the target invoice's currency
	AmountInTransaction AmountCurrency = "transaction"
	// AmountInReference means each amount is already in the reference currency
	AmountInReference AmountCurrency = "reference"
)

// IsValid checks if the amount currency is valid
func (c AmountCurrency) IsValid() bool {
	return c == AmountInTransaction || c == AmountInReference
}

// PaymentAllocation joins a payment to an invoice. There is at most one row
// per (payment, invoice) pair; later allocations to the same pair increment it.
type PaymentAllocation struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:1" json:"payment_id"`
	InvoiceID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_allocation_pair,priority:2;index" json:"invoice_id"`
	InvoiceNumber   string          `gorm:"type:varchar(50)" json:"invoice_number"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"` // invoice currency
	AmountReference decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount_reference"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName returns the table name for GORM
func (PaymentAllocation) TableName() string {
	return "payment_allocations"
}

// NewPaymentAllocation creates the row for a new (payment, invoice) pair
func NewPaymentAllocation(paymentID uuid.UUID, invoice *Invoice, amount, amountRef decimal.Decimal) *PaymentAllocation {
	now := time.Now()
	return &PaymentAllocation{
		ID:              uuid.New(),
		PaymentID:       paymentID,
		InvoiceID:       invoice.ID,
		InvoiceNumber:   invoice.InvoiceNumber,
		Amount:          amount,
		AmountReference: amountRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Increment adds a further allocation to the same pair in both currencies
func (a *PaymentAllocation) Increment(amount, amountRef decimal.Decimal) {
	a.Amount = a.Amount.Add(amount)
	a.AmountReference = a.AmountReference.Add(amountRef)
	a.UpdatedAt = time.Now()
}
