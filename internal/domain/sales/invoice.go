package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the sales invoice aggregate root. Totals are kept in the
// transaction currency and, once the FX snapshot is frozen, in the
// reference currency. All payment arithmetic happens in reference amounts.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string        `gorm:"type:varchar(50);not null;uniqueIndex"`
	InvoiceType   InvoiceType   `gorm:"type:varchar(20);not null;default:'cash';index:idx_invoice_open,priority:2"`
	CustomerID    uuid.UUID     `gorm:"type:uuid;not null;index:idx_invoice_open,priority:1"`
	CustomerName  string        `gorm:"type:varchar(200)"`
	WarehouseID   uuid.UUID     `gorm:"type:uuid;not null"`
	InvoiceDate   time.Time     `gorm:"type:date;not null;index"`
	DueDate       *time.Time    `gorm:"type:date"`
	Status        InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index:idx_invoice_open,priority:3"`
	fx.DocumentFX `gorm:"embedded"`

	Subtotal             decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountPercent      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	DiscountAmount       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount            decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmountReference decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmount           decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	PaidAmountReference  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`

	Notes         string `gorm:"type:text"`
	InternalNotes string `gorm:"type:text"`
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	Items         []InvoiceItem `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// NewInvoice creates a DRAFT invoice. Credit invoices require a customer.
func NewInvoice(number string, invoiceType InvoiceType, customerID uuid.UUID, customerName string,
	warehouseID uuid.UUID, invoiceDate time.Time, currency valueobject.Currency) (*Invoice, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewValidationError("invoice_number", "invoice number cannot be empty")
	}
	if len(number) > 50 {
		return nil, shared.NewValidationError("invoice_number", "invoice number cannot exceed 50 characters")
	}
	if !invoiceType.IsValid() {
		return nil, shared.NewValidationError("invoice_type", "invalid invoice type")
	}
	if invoiceType == InvoiceTypeCredit && customerID == uuid.Nil {
		return nil, shared.NewValidationError("customer_id", "credit invoices require a customer")
	}
	if warehouseID == uuid.Nil {
		return nil, shared.NewValidationError("warehouse_id", "warehouse is required")
	}
	doc, err := fx.NewDocumentFX(currency)
	if err != nil {
		return nil, err
	}
	if invoiceDate.IsZero() {
		invoiceDate = time.Now()
	}

	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     number,
		InvoiceType:       invoiceType,
		CustomerID:        customerID,
		CustomerName:      customerName,
		WarehouseID:       warehouseID,
		InvoiceDate:       fx.DateOnly(invoiceDate),
		Status:            InvoiceStatusDraft,
		DocumentFX:        doc,
		Items:             make([]InvoiceItem, 0),
	}, nil
}

// AddItem adds a line. Only allowed in DRAFT status.
func (i *Invoice) AddItem(in ItemInput) (*InvoiceItem, error) {
	if i.Status != InvoiceStatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a non-draft invoice")
	}
	item, err := newInvoiceItem(i.ID, in)
	if err != nil {
		return nil, err
	}
	i.Items = append(i.Items, *item)
	i.RecalculateTotals()
	i.IncrementVersion()
	return &i.Items[len(i.Items)-1], nil
}

// SetDiscount sets the invoice-level discount, either as a percentage of the
// subtotal or as a fixed amount. A non-zero percentage wins.
func (i *Invoice) SetDiscount(percent, amount decimal.Decimal) error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Cannot change the discount of a non-draft invoice")
	}
	if err := validatePercent("discount_percent", percent); err != nil {
		return err
	}
	if amount.IsNegative() {
		return shared.NewValidationError("discount_amount", "discount cannot be negative")
	}
	i.DiscountPercent = percent
	i.DiscountAmount = amount
	i.RecalculateTotals()
	return nil
}

// SetDueDate sets the date the invoice falls due
func (i *Invoice) SetDueDate(due time.Time) {
	d := fx.DateOnly(due)
	i.DueDate = &d
}

// RecalculateTotals recomputes subtotal, discount, tax and total from the items.
// Item tax is computed on the item amount after the item discount.
func (i *Invoice) RecalculateTotals() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for idx := range i.Items {
		a := i.Items[idx].Amounts()
		subtotal = subtotal.Add(a.Subtotal.Sub(a.Discount))
		tax = tax.Add(a.Tax)
	}
	i.Subtotal = subtotal.Round(4)
	if i.DiscountPercent.IsPositive() {
		i.DiscountAmount = subtotal.Mul(i.DiscountPercent).Div(hundred).Round(4)
	}
	if i.DiscountAmount.GreaterThan(i.Subtotal) {
		i.DiscountAmount = i.Subtotal
	}
	i.TaxAmount = tax.Round(4)
	i.TotalAmount = i.Subtotal.Sub(i.DiscountAmount).Add(i.TaxAmount)
}

// FinalizeFX freezes the snapshot and fixes the reference totals. It is the
// only place reference amounts are derived from transaction amounts.
func (i *Invoice) FinalizeFX(s fx.Snapshot) error {
	if err := i.DocumentFX.Freeze(s); err != nil {
		return err
	}
	totalRef, err := i.DocumentFX.ToReference(i.TotalAmount)
	if err != nil {
		return err
	}
	paidRef, err := i.DocumentFX.ToReference(i.PaidAmount)
	if err != nil {
		return err
	}
	i.TotalAmountReference = totalRef.Round(4)
	i.PaidAmountReference = paidRef.Round(4)
	i.Touch()
	return nil
}

// IsFinalized reports whether the reference totals can be trusted
func (i *Invoice) IsFinalized() bool {
	if !i.IsFrozen() {
		return false
	}
	return i.TotalAmountReference.IsPositive() || i.TotalAmount.IsZero()
}

// RemainingAmount returns total - paid in the transaction currency
func (i *Invoice) RemainingAmount() decimal.Decimal {
	return i.TotalAmount.Sub(i.PaidAmount)
}

// RemainingAmountReference returns total - paid in the reference currency
func (i *Invoice) RemainingAmountReference() decimal.Decimal {
	return i.TotalAmountReference.Sub(i.PaidAmountReference)
}

// Confirm posts a DRAFT invoice. upfront is the amount paid at the counter in
// the transaction currency; nil means the full total for cash invoices and
// nothing for credit invoices. It returns the amount actually recorded as
// paid so the caller can create the matching payment.
func (i *Invoice) Confirm(upfront *decimal.Decimal) (decimal.Decimal, error) {
	if i.Status != InvoiceStatusDraft {
		return decimal.Zero, shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm invoice in %s status", i.Status))
	}
	if len(i.Items) == 0 {
		return decimal.Zero, shared.NewValidationError("items", "cannot confirm an invoice without items")
	}
	if i.InvoiceType == InvoiceTypeCredit && i.CustomerID == uuid.Nil {
		return decimal.Zero, shared.NewValidationError("customer_id", "credit invoices require a customer")
	}
	if !i.IsFinalized() {
		return decimal.Zero, shared.NewConfigurationError("fx.snapshot",
			fmt.Sprintf("invoice %s has no exchange rate snapshot", i.InvoiceNumber))
	}

	paid := decimal.Zero
	switch {
	case upfront != nil:
		paid = *upfront
	case i.InvoiceType == InvoiceTypeCash:
		paid = i.TotalAmount
	}
	if paid.IsNegative() {
		return decimal.Zero, shared.NewValidationError("paid_amount", "paid amount cannot be negative")
	}
	if fx.Exceeds(paid, i.TotalAmount) {
		return decimal.Zero, shared.NewValidationError("paid_amount",
			fmt.Sprintf("paid amount %s exceeds invoice total %s", paid.StringFixed(2), i.TotalAmount.StringFixed(2)))
	}

	switch {
	case fx.AtLeast(paid, i.TotalAmount) && (i.InvoiceType == InvoiceTypeCash || paid.IsPositive()):
		i.Status = InvoiceStatusPaid
		i.PaidAmount = i.TotalAmount
		i.PaidAmountReference = i.TotalAmountReference
	case i.InvoiceType == InvoiceTypeCash || paid.IsPositive():
		i.Status = InvoiceStatusPartial
		i.PaidAmount = paid
		paidRef, err := i.DocumentFX.ToReference(paid)
		if err != nil {
			return decimal.Zero, err
		}
		i.PaidAmountReference = paidRef.Round(4)
	default:
		i.Status = InvoiceStatusConfirmed
		i.PaidAmount = decimal.Zero
		i.PaidAmountReference = decimal.Zero
	}

	now := time.Now()
	i.ConfirmedAt = &now
	i.IncrementVersion()
	return i.PaidAmount, nil
}

// ApplyPayment allocates amountRef (reference currency) to the invoice. An
// amount within the rounding tolerance above the remaining balance books the
// remaining balance. It returns the booked amount in the invoice currency and
// in the reference currency.
func (i *Invoice) ApplyPayment(amountRef decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	if !i.Status.IsOpen() {
		return decimal.Zero, decimal.Zero, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Invoice %s in %s status cannot receive payments", i.InvoiceNumber, i.Status))
	}
	if !amountRef.IsPositive() {
		return decimal.Zero, decimal.Zero, shared.NewValidationError("allocation_amount", "allocation amount must be positive")
	}
	if !i.IsFinalized() {
		return decimal.Zero, decimal.Zero, shared.NewConfigurationError("fx.snapshot",
			fmt.Sprintf("invoice %s has no reference total", i.InvoiceNumber))
	}
	remaining := i.RemainingAmountReference()
	if fx.Exceeds(amountRef, remaining) {
		return decimal.Zero, decimal.Zero, shared.NewAllocationExceedsRemainingError(i.InvoiceNumber, remaining, amountRef)
	}
	amountRef = decimal.Min(amountRef, remaining)

	amount, err := i.DocumentFX.FromReference(amountRef)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	i.PaidAmountReference = i.PaidAmountReference.Add(amountRef)
	if fx.AtLeast(i.PaidAmountReference, i.TotalAmountReference) {
		i.Status = InvoiceStatusPaid
		i.PaidAmount = i.TotalAmount
	} else {
		i.Status = InvoiceStatusPartial
		paid, err := i.DocumentFX.FromReference(i.PaidAmountReference)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		i.PaidAmount = paid.Round(4)
	}
	i.IncrementVersion()
	return amount.Round(4), amountRef, nil
}

// Cancel moves the invoice to CANCELLED and returns the status it had, so
// the caller knows whether stock and balances must be reversed.
func (i *Invoice) Cancel(reason, actor string) (InvoiceStatus, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", shared.NewValidationError("reason", "cancellation reason is required")
	}
	if !i.Status.CanTransitionTo(InvoiceStatusCancelled) {
		return "", shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", i.Status))
	}
	previous := i.Status
	if actor == "" {
		actor = "system"
	}
	note := fmt.Sprintf("cancelled by %s: %s", actor, reason)
	if i.InternalNotes != "" {
		i.InternalNotes += "\n"
	}
	i.InternalNotes += note

	now := time.Now()
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	i.IncrementVersion()
	return previous, nil
}

// RegisterReturn records qty of a line as returned
func (i *Invoice) RegisterReturn(itemID uuid.UUID, qty decimal.Decimal) (*InvoiceItem, error) {
	if !i.Status.IsPosted() {
		return nil, shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot return goods of invoice in %s status", i.Status))
	}
	item := i.Item(itemID)
	if item == nil {
		return nil, shared.NewValidationError("invoice_item_id", "item does not belong to invoice "+i.InvoiceNumber)
	}
	if !qty.IsPositive() {
		return nil, shared.NewValidationError("quantity", "return quantity must be positive")
	}
	if qty.GreaterThan(item.ReturnableQuantity()) {
		return nil, shared.NewValidationError("quantity",
			fmt.Sprintf("return quantity %s exceeds returnable %s for %s", qty, item.ReturnableQuantity(), item.ProductName))
	}
	item.ReturnedQuantity = item.ReturnedQuantity.Add(qty)
	item.UpdatedAt = time.Now()
	return item, nil
}

// Item returns the line with the given id, or nil
func (i *Invoice) Item(id uuid.UUID) *InvoiceItem {
	for idx := range i.Items {
		if i.Items[idx].ID == id {
			return &i.Items[idx]
		}
	}
	return nil
}

// IsOverdue reports whether an open invoice is past its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.Status.IsOpen() && i.DueDate != nil && i.DueDate.Before(fx.DateOnly(now))
}

// IsAllocatable reports whether payments may be allocated to the invoice
func (i *Invoice) IsAllocatable() bool {
	return i.InvoiceType == InvoiceTypeCredit && i.Status.IsOpen()
}

// AllocationTarget returns the view of the invoice used for allocation planning
func (i *Invoice) AllocationTarget() OpenInvoice {
	return OpenInvoice{
		ID:                 i.ID,
		Number:             i.InvoiceNumber,
		Date:               i.InvoiceDate,
		RemainingReference: i.RemainingAmountReference(),
	}
}
