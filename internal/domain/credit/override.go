package credit

import (
	"context"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LimitOverride is the write-once audit record of a bypassed credit block.
// Amounts are in the reference currency.
type LimitOverride struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OverrideAmount decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CreditLimit    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	CurrentBalance decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason         string          `gorm:"type:text;not null"`
	ApprovedBy     string          `gorm:"type:varchar(100)"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LimitOverride) TableName() string {
	return "credit_limit_overrides"
}

// NewLimitOverride builds the audit record for an ERROR evaluation that was overridden
func NewLimitOverride(customerID, invoiceID uuid.UUID, r Result, reason, approvedBy string) (*LimitOverride, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewValidationError("override_reason", "override reason is required")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer_id", "customer is required")
	}
	if r.Status != StatusError {
		return nil, shared.NewDomainError("OVERRIDE_NOT_REQUIRED", "credit limit was not exceeded")
	}
	return &LimitOverride{
		ID:             uuid.New(),
		CustomerID:     customerID,
		InvoiceID:      invoiceID,
		OverrideAmount: OverrideAmount(r),
		CreditLimit:    r.CreditLimit,
		CurrentBalance: r.CurrentBalance,
		Reason:         reason,
		ApprovedBy:     approvedBy,
		CreatedAt:      time.Now(),
	}, nil
}

// OverrideRepository appends override records. There is no update method.
type OverrideRepository interface {
	Create(ctx context.Context, o *LimitOverride) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]LimitOverride, error)
}
