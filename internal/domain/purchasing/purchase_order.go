// Package purchasing contains purchase orders, goods receipts and payments
// made to suppliers.
package purchasing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// OrderStatus represents the status of a purchase order
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "DRAFT"
	OrderStatusApproved  OrderStatus = "APPROVED"
	OrderStatusOrdered   OrderStatus = "ORDERED"
	OrderStatusPartial   OrderStatus = "PARTIAL"
	OrderStatusReceived  OrderStatus = "RECEIVED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// IsValid checks if the status is a valid OrderStatus
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusApproved, OrderStatusOrdered,
		OrderStatusPartial, OrderStatusReceived, OrderStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of OrderStatus
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	switch s {
	case OrderStatusDraft:
		return target == OrderStatusApproved || target == OrderStatusCancelled
	case OrderStatusApproved:
		return target == OrderStatusOrdered || target == OrderStatusPartial ||
			target == OrderStatusReceived || target == OrderStatusCancelled
	case OrderStatusOrdered:
		return target == OrderStatusPartial || target == OrderStatusReceived || target == OrderStatusCancelled
	case OrderStatusPartial:
		return target == OrderStatusPartial || target == OrderStatusReceived
	case OrderStatusReceived, OrderStatusCancelled:
		return false // Terminal states
	}
	return false
}

// CanReceive returns true if receiving goods is allowed in this status
func (s OrderStatus) CanReceive() bool {
	return s == OrderStatusApproved || s == OrderStatusOrdered || s == OrderStatusPartial
}

// OrderItem represents a line item in a purchase order
type OrderItem struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrderID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID        uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName      string          `gorm:"type:varchar(200);not null"`
	Unit             string          `gorm:"type:varchar(20)"`
	ConversionFactor decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1"`
	Quantity         decimal.Decimal `gorm:"type:decimal(18,4);not null"`           // in order unit
	BaseQuantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`           // in product base unit
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // in order unit
	UnitPrice        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DiscountPercent  decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Notes            string          `gorm:"type:varchar(255)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TableName returns the table name for GORM
func (OrderItem) TableName() string {
	return "purchase_order_items"
}

// ItemInput carries the fields needed to add a line
type ItemInput struct {
	ProductID        uuid.UUID
	ProductName      string
	Unit             string
	ConversionFactor decimal.Decimal
	Quantity         decimal.Decimal
	UnitPrice        decimal.Decimal
	DiscountPercent  decimal.Decimal
	Notes            string
}

// Total returns the line amount after discount. Purchases carry no tax.
func (i *OrderItem) Total() decimal.Decimal {
	subtotal := i.Quantity.Mul(i.UnitPrice)
	return subtotal.Sub(subtotal.Mul(i.DiscountPercent).Div(hundred))
}

// RemainingQuantity returns how much is still to be received
func (i *OrderItem) RemainingQuantity() decimal.Decimal {
	remaining := i.Quantity.Sub(i.ReceivedQuantity)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// IsFullyReceived returns true if all ordered quantity has been received
func (i *OrderItem) IsFullyReceived() bool {
	return i.ReceivedQuantity.GreaterThanOrEqual(i.Quantity)
}

// PurchaseOrder is the purchase order aggregate root. Orders always carry a
// frozen FX snapshot; receipts and payments are valued with it.
type PurchaseOrder struct {
	shared.BaseAggregateRoot
	OrderNumber   string      `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID    uuid.UUID   `gorm:"type:uuid;not null;index"`
	SupplierName  string      `gorm:"type:varchar(200)"`
	WarehouseID   uuid.UUID   `gorm:"type:uuid;not null"`
	OrderDate     time.Time   `gorm:"type:date;not null;index"`
	ExpectedDate  *time.Time  `gorm:"type:date"`
	Status        OrderStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	fx.DocumentFX `gorm:"embedded"`

	Subtotal                decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmountReference    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReceivedAmountReference decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount              decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmountReference     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	Reference    string `gorm:"type:varchar(100)"`
	Notes        string `gorm:"type:text"`
	ApprovedBy   string `gorm:"type:varchar(100)"`
	ApprovedAt   *time.Time
	CancelledAt  *time.Time
	CancelReason string      `gorm:"type:varchar(500)"`
	Items        []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// NewPurchaseOrder creates a DRAFT order with its snapshot frozen
func NewPurchaseOrder(number string, supplierID uuid.UUID, supplierName string, warehouseID uuid.UUID,
	orderDate time.Time, currency valueobject.Currency, snapshot fx.Snapshot) (*PurchaseOrder, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewValidationError("order_number", "order number cannot be empty")
	}
	if supplierID == uuid.Nil {
		return nil, shared.NewValidationError("supplier_id", "supplier is required")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewValidationError("warehouse_id", "warehouse is required")
	}
	if snapshot.RateOld.Sign() <= 0 && snapshot.RateNew.Sign() <= 0 {
		return nil, shared.NewValidationError("usd_to_syp_old_snapshot", "an exchange rate is required for purchase orders")
	}
	if currency == "" {
		currency = valueobject.USD
	}
	doc, err := fx.NewDocumentFX(currency)
	if err != nil {
		return nil, err
	}
	if snapshot.RateDate.IsZero() {
		snapshot.RateDate = orderDate
	}
	if err := doc.Freeze(snapshot); err != nil {
		return nil, err
	}
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	return &PurchaseOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       number,
		SupplierID:        supplierID,
		SupplierName:      supplierName,
		WarehouseID:       warehouseID,
		OrderDate:         fx.DateOnly(orderDate),
		Status:            OrderStatusDraft,
		DocumentFX:        doc,
		Items:             make([]OrderItem, 0),
	}, nil
}

// AddItem adds a line. Only allowed in DRAFT status.
func (o *PurchaseOrder) AddItem(in ItemInput) (*OrderItem, error) {
	if o.Status != OrderStatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot modify a non-draft purchase order")
	}
	if in.ProductID == uuid.Nil {
		return nil, shared.NewValidationError("product_id", "product is required")
	}
	if in.ProductName == "" {
		return nil, shared.NewValidationError("product_name", "product name cannot be empty")
	}
	if !in.Quantity.IsPositive() {
		return nil, shared.NewValidationError("quantity", "quantity must be positive")
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewValidationError("unit_price", "unit price cannot be negative")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return nil, shared.NewValidationError("discount_percent", "must be between 0 and 100")
	}
	factor := in.ConversionFactor
	if !factor.IsPositive() {
		factor = decimal.NewFromInt(1)
	}
	now := time.Now()
	o.Items = append(o.Items, OrderItem{
		ID:               uuid.New(),
		OrderID:          o.ID,
		ProductID:        in.ProductID,
		ProductName:      in.ProductName,
		Unit:             in.Unit,
		ConversionFactor: factor,
		Quantity:         in.Quantity,
		BaseQuantity:     inventory.ToBaseQuantity(in.Quantity, factor).Round(4),
		ReceivedQuantity: decimal.Zero,
		UnitPrice:        in.UnitPrice,
		DiscountPercent:  in.DiscountPercent,
		Notes:            in.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err := o.RecalculateTotals(); err != nil {
		o.Items = o.Items[:len(o.Items)-1]
		return nil, err
	}
	return &o.Items[len(o.Items)-1], nil
}

// SetDiscount sets the order-level discount amount
func (o *PurchaseOrder) SetDiscount(amount decimal.Decimal) error {
	if o.Status != OrderStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify a non-draft purchase order")
	}
	if amount.IsNegative() {
		return shared.NewValidationError("discount_amount", "discount cannot be negative")
	}
	o.DiscountAmount = amount
	return o.RecalculateTotals()
}

// RecalculateTotals recomputes the totals in both currencies
func (o *PurchaseOrder) RecalculateTotals() error {
	subtotal := decimal.Zero
	for idx := range o.Items {
		subtotal = subtotal.Add(o.Items[idx].Total())
	}
	o.Subtotal = subtotal.Round(4)
	if o.DiscountAmount.GreaterThan(o.Subtotal) {
		o.DiscountAmount = o.Subtotal
	}
	o.TotalAmount = o.Subtotal.Sub(o.DiscountAmount)
	ref, err := o.DocumentFX.ToReference(o.TotalAmount)
	if err != nil {
		return err
	}
	o.TotalAmountReference = ref.Round(4)
	return nil
}

// Approve moves a DRAFT order to APPROVED
func (o *PurchaseOrder) Approve(actor string) error {
	if o.Status != OrderStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Only draft purchase orders can be approved")
	}
	if len(o.Items) == 0 {
		return shared.NewValidationError("items", "cannot approve a purchase order without items")
	}
	now := time.Now()
	o.Status = OrderStatusApproved
	o.ApprovedBy = actor
	o.ApprovedAt = &now
	o.IncrementVersion()
	return nil
}

// MarkOrdered records that the order was sent to the supplier
func (o *PurchaseOrder) MarkOrdered() error {
	if o.Status != OrderStatusApproved {
		return shared.NewDomainError("INVALID_STATE", "Only approved purchase orders can be marked as ordered")
	}
	o.Status = OrderStatusOrdered
	o.IncrementVersion()
	return nil
}

// Cancel cancels an order that has not received goods yet
func (o *PurchaseOrder) Cancel(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.NewValidationError("reason", "cancellation reason is required")
	}
	if !o.Status.CanTransitionTo(OrderStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel purchase order in %s status", o.Status))
	}
	now := time.Now()
	o.Status = OrderStatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.IncrementVersion()
	return nil
}

// ReceiveLine is one line of a goods receipt request
type ReceiveLine struct {
	ItemID   uuid.UUID
	Quantity decimal.Decimal
	Notes    string
}

// ReceivedLine describes what a receipt did to one order line
type ReceivedLine struct {
	Item         OrderItem
	Quantity     decimal.Decimal
	BaseQuantity decimal.Decimal
	Notes        string
}

// Receipt is the outcome of Receive. Value is quantity x unit price of what
// arrived, in the order currency.
type Receipt struct {
	Lines          []ReceivedLine
	Value          decimal.Decimal
	ValueReference decimal.Decimal
}

// Receive books received quantities. Every line is validated before any
// quantity changes.
func (o *PurchaseOrder) Receive(lines []ReceiveLine) (*Receipt, error) {
	if !o.Status.CanReceive() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot receive goods for purchase order in %s status", o.Status))
	}
	if !o.IsFrozen() {
		return nil, shared.NewValidationError("usd_to_syp_old_snapshot", "an exchange rate is required before receiving goods")
	}
	if len(lines) == 0 {
		return nil, shared.NewValidationError("items", "at least one line is required")
	}

	requested := make(map[uuid.UUID]decimal.Decimal, len(lines))
	for _, l := range lines {
		item := o.Item(l.ItemID)
		if item == nil {
			return nil, shared.NewValidationError("po_item_id", fmt.Sprintf("item %s does not belong to order %s", l.ItemID, o.OrderNumber))
		}
		if !l.Quantity.IsPositive() {
			return nil, shared.NewValidationError("quantity", "received quantity must be positive")
		}
		total := requested[l.ItemID].Add(l.Quantity)
		if total.GreaterThan(item.RemainingQuantity()) {
			return nil, shared.NewValidationError("quantity",
				fmt.Sprintf("received quantity %s exceeds remaining %s for %s", total, item.RemainingQuantity(), item.ProductName))
		}
		requested[l.ItemID] = total
	}

	receipt := &Receipt{Lines: make([]ReceivedLine, 0, len(lines)), Value: decimal.Zero}
	now := time.Now()
	for _, l := range lines {
		item := o.Item(l.ItemID)
		item.ReceivedQuantity = item.ReceivedQuantity.Add(l.Quantity)
		item.UpdatedAt = now
		receipt.Value = receipt.Value.Add(l.Quantity.Mul(item.UnitPrice))
		receipt.Lines = append(receipt.Lines, ReceivedLine{
			Item:         *item,
			Quantity:     l.Quantity,
			BaseQuantity: inventory.ToBaseQuantity(l.Quantity, item.ConversionFactor),
			Notes:        l.Notes,
		})
	}

	ref, err := o.DocumentFX.ToReference(receipt.Value)
	if err != nil {
		return nil, err
	}
	receipt.ValueReference = ref.Round(4)
	o.ReceivedAmountReference = o.ReceivedAmountReference.Add(receipt.ValueReference)

	if o.isFullyReceived() {
		o.Status = OrderStatusReceived
	} else {
		o.Status = OrderStatusPartial
	}
	o.IncrementVersion()
	return receipt, nil
}

func (o *PurchaseOrder) isFullyReceived() bool {
	for idx := range o.Items {
		if !o.Items[idx].IsFullyReceived() {
			return false
		}
	}
	return true
}

// Item returns the line with the given id, or nil
func (o *PurchaseOrder) Item(id uuid.UUID) *OrderItem {
	for idx := range o.Items {
		if o.Items[idx].ID == id {
			return &o.Items[idx]
		}
	}
	return nil
}

// RemainingAmountReference returns what is still unpaid in the reference currency
func (o *PurchaseOrder) RemainingAmountReference() decimal.Decimal {
	return o.TotalAmountReference.Sub(o.PaidAmountReference)
}

// ApplyPayment records amountRef paid against the order
func (o *PurchaseOrder) ApplyPayment(amountRef decimal.Decimal) error {
	if o.Status == OrderStatusCancelled || o.Status == OrderStatusDraft {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot pay purchase order in %s status", o.Status))
	}
	if !amountRef.IsPositive() {
		return shared.NewValidationError("amount", "payment amount must be positive")
	}
	remaining := o.RemainingAmountReference()
	if fx.Exceeds(amountRef, remaining) {
		return shared.NewValidationError("amount",
			fmt.Sprintf("payment %s exceeds the remaining %s of order %s",
				amountRef.StringFixed(2), remaining.StringFixed(2), o.OrderNumber))
	}
	o.PaidAmountReference = decimal.Min(o.PaidAmountReference.Add(amountRef), o.TotalAmountReference)
	paid, err := o.DocumentFX.FromReference(o.PaidAmountReference)
	if err != nil {
		return err
	}
	o.PaidAmount = paid.Round(4)
	o.IncrementVersion()
	return nil
}
