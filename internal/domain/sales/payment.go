package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is money received from a customer. Its amounts never change after
// creation; only allocations against it accumulate.
type Payment struct {
	shared.BaseAggregateRoot
	PaymentNumber string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	InvoiceID     *uuid.UUID `gorm:"type:uuid;index"` // legacy single-invoice link
	PaymentDate   time.Time  `gorm:"type:date;not null;index"`
	fx.DocumentFX `gorm:"embedded"`

	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AmountReference decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null;default:'cash'"`
	Reference       string          `gorm:"type:varchar(100)"`
	Notes           string          `gorm:"type:text"`
	ReceivedBy      string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "payments"
}

// NewPayment creates a payment whose reference amount is fixed from doc's
// frozen snapshot.
func NewPayment(number string, customerID uuid.UUID, date time.Time, method PaymentMethod,
	amount decimal.Decimal, doc fx.DocumentFX) (*Payment, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewValidationError("payment_number", "payment number cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer_id", "customer is required")
	}
	if !amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "payment amount must be positive")
	}
	if method == "" {
		method = PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, shared.NewValidationError("payment_method", "invalid payment method")
	}
	if !doc.TransactionCurrency.IsReference() && !doc.IsFrozen() {
		return nil, shared.NewConfigurationError("fx.snapshot", "payment requires an exchange rate snapshot")
	}
	amountRef, err := doc.ToReference(amount)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = time.Now()
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentNumber:     number,
		CustomerID:        customerID,
		PaymentDate:       fx.DateOnly(date),
		DocumentFX:        doc,
		Amount:            amount,
		AmountReference:   amountRef.Round(4),
		PaymentMethod:     method,
	}, nil
}

// LinkInvoice ties the payment to a single invoice (legacy mode)
func (p *Payment) LinkInvoice(invoiceID uuid.UUID) {
	p.InvoiceID = &invoiceID
}

// HasReferenceAmount reports whether the reference amount was fixed
func (p *Payment) HasReferenceAmount() bool {
	return p.AmountReference.IsPositive()
}

// Unallocated returns what is left of the payment after allocatedRef
func (p *Payment) Unallocated(allocatedRef decimal.Decimal) (decimal.Decimal, error) {
	if !p.HasReferenceAmount() {
		return decimal.Zero, shared.NewConfigurationError("fx.snapshot",
			fmt.Sprintf("payment %s has no reference amount", p.PaymentNumber))
	}
	return p.AmountReference.Sub(allocatedRef), nil
}
