package purchasing

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a supplier was paid
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodBank  PaymentMethod = "bank"
	PaymentMethodCheck PaymentMethod = "check"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodCash || m == PaymentMethodBank || m == PaymentMethodCheck
}

// SupplierPayment is money paid out to a supplier, optionally against one order
type SupplierPayment struct {
	shared.BaseEntity
	PaymentNumber   string     `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	PurchaseOrderID *uuid.UUID `gorm:"type:uuid;index"`
	PaymentDate     time.Time  `gorm:"type:date;not null"`
	fx.DocumentFX   `gorm:"embedded"`

	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AmountReference decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentMethod   PaymentMethod   `gorm:"type:varchar(20);not null;default:'cash'"`
	Reference       string          `gorm:"type:varchar(100)"`
	Notes           string          `gorm:"type:text"`
	CreatedBy       string          `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (SupplierPayment) TableName() string {
	return "supplier_payments"
}

// NewSupplierPayment creates a payment valued with doc's frozen snapshot
func NewSupplierPayment(number string, supplierID uuid.UUID, date time.Time, method PaymentMethod,
	amount decimal.Decimal, doc fx.DocumentFX) (*SupplierPayment, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewValidationError("payment_number", "payment number cannot be empty")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewValidationError("supplier_id", "supplier is required")
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
		return nil, shared.NewConfigurationError("fx.snapshot", "supplier payment requires an exchange rate snapshot")
	}
	amountRef, err := doc.ToReference(amount)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = time.Now()
	}
	return &SupplierPayment{
		BaseEntity:      shared.NewBaseEntity(),
		PaymentNumber:   number,
		SupplierID:      supplierID,
		PaymentDate:     fx.DateOnly(date),
		DocumentFX:      doc,
		Amount:          amount,
		AmountReference: amountRef.Round(4),
		PaymentMethod:   method,
	}, nil
}

// LinkOrder ties the payment to a purchase order
func (p *SupplierPayment) LinkOrder(orderID uuid.UUID) {
	p.PurchaseOrderID = &orderID
}
