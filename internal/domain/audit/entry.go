// Package audit records who changed a settlement document and why.
package audit

import (
	"context"
	"maps"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
)

// Action identifies an audited operation
type Action string

const (
	ActionCreditOverride  Action = "CREDIT_OVERRIDE"
	ActionInvoiceConfirm  Action = "INVOICE_CONFIRM"
	ActionInvoiceCancel   Action = "INVOICE_CANCEL"
	ActionPaymentAllocate Action = "PAYMENT_ALLOCATE"
	ActionSalesReturn     Action = "SALES_RETURN"
	ActionPOCancel        Action = "PURCHASE_ORDER_CANCEL"
	ActionFXRateSet       Action = "FX_RATE_SET"
	ActionStockAdjust     Action = "STOCK_ADJUSTMENT"
)

// IsValid checks if the action is known
func (a Action) IsValid() bool {
	switch a {
	case ActionCreditOverride, ActionInvoiceConfirm, ActionInvoiceCancel,
		ActionPaymentAllocate, ActionSalesReturn, ActionPOCancel, ActionFXRateSet, ActionStockAdjust:
		return true
	}
	return false
}

// Entry is a write-once audit record
type Entry struct {
	shared.BaseEntity
	Action     Action         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityType string         `gorm:"type:varchar(50);not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Actor      string         `gorm:"type:varchar(100)" json:"actor"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	Details    map[string]any `gorm:"type:text;serializer:json" json:"details,omitempty"`
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "audit_entries"
}

// NewEntry creates an audit entry. Details are copied.
func NewEntry(action Action, entityType string, entityID uuid.UUID, actor, reason string, details map[string]any) (*Entry, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_ACTION", "Invalid audit action")
	}
	if strings.TrimSpace(entityType) == "" {
		return nil, shared.NewValidationError("entity_type", "entity type cannot be empty")
	}
	if actor == "" {
		actor = "system"
	}
	var copied map[string]any
	if len(details) > 0 {
		copied = make(map[string]any, len(details))
		maps.Copy(copied, details)
	}
	return &Entry{
		BaseEntity: shared.NewBaseEntity(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Actor:      actor,
		Reason:     strings.TrimSpace(reason),
		Details:    copied,
	}, nil
}

// Sink persists audit entries
type Sink interface {
	Record(ctx context.Context, entry *Entry) error
}

// Repository reads audit entries back
type Repository interface {
	Sink
	FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]Entry, error)
}
