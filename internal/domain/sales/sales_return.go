package sales

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesReturn records goods taken back against a posted invoice. It carries
// the invoice's currency and snapshot so the credit is valued at the rates
// the goods were sold at.
type SalesReturn struct {
	shared.BaseEntity
	ReturnNumber  string    `gorm:"type:varchar(50);not null;uniqueIndex"`
	InvoiceID     uuid.UUID `gorm:"type:uuid;not null;index"`
	InvoiceNumber string    `gorm:"type:varchar(50)"`
	CustomerID    uuid.UUID `gorm:"type:uuid;not null;index"`
	WarehouseID   uuid.UUID `gorm:"type:uuid;not null"`
	ReturnDate    time.Time `gorm:"type:date;not null;index"`
	fx.DocumentFX `gorm:"embedded"`

	TotalAmount          decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmountReference decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Reason               string            `gorm:"type:text;not null"`
	Notes                string            `gorm:"type:text"`
	CreatedBy            string            `gorm:"type:varchar(100)"`
	Items                []SalesReturnItem `gorm:"foreignKey:ReturnID;references:ID"`
}

// TableName returns the table name for GORM
func (SalesReturn) TableName() string {
	return "sales_returns"
}

// SalesReturnItem is one returned line
type SalesReturnItem struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReturnID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceItemID uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID     uuid.UUID       `gorm:"type:uuid;not null"`
	ProductName   string          `gorm:"type:varchar(200)"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BaseQuantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitCost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Total         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Reason        string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (SalesReturnItem) TableName() string {
	return "sales_return_items"
}

// NewSalesReturn starts a return against invoice
func NewSalesReturn(number string, invoice *Invoice, returnDate time.Time, reason string) (*SalesReturn, error) {
	number = strings.TrimSpace(number)
	reason = strings.TrimSpace(reason)
	if number == "" {
		return nil, shared.NewValidationError("return_number", "return number cannot be empty")
	}
	if reason == "" {
		return nil, shared.NewValidationError("reason", "return reason is required")
	}
	if !invoice.Status.IsPosted() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot create a return for an unconfirmed invoice")
	}
	if returnDate.IsZero() {
		returnDate = time.Now()
	}
	return &SalesReturn{
		BaseEntity:    shared.NewBaseEntity(),
		ReturnNumber:  number,
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		CustomerID:    invoice.CustomerID,
		WarehouseID:   invoice.WarehouseID,
		ReturnDate:    fx.DateOnly(returnDate),
		DocumentFX:    invoice.DocumentFX,
		Reason:        reason,
		Items:         make([]SalesReturnItem, 0),
	}, nil
}

// AddLine values qty of item at the item's price, discount and tax. The
// invoice must already have registered the quantity as returned.
func (r *SalesReturn) AddLine(item *InvoiceItem, qty decimal.Decimal, reason string) *SalesReturnItem {
	amounts := item.PriceQuantity(qty)
	line := SalesReturnItem{
		ID:            uuid.New(),
		ReturnID:      r.ID,
		InvoiceItemID: item.ID,
		ProductID:     item.ProductID,
		ProductName:   item.ProductName,
		Quantity:      qty,
		BaseQuantity:  inventory.ToBaseQuantity(qty, item.ConversionFactor),
		UnitPrice:     item.UnitPrice,
		UnitCost:      item.CostPrice,
		Total:         amounts.Total.Round(4),
		Reason:        reason,
	}
	r.Items = append(r.Items, line)
	r.TotalAmount = r.TotalAmount.Add(line.Total)
	return &r.Items[len(r.Items)-1]
}

// Finalize fixes the reference total from the inherited snapshot
func (r *SalesReturn) Finalize() error {
	if len(r.Items) == 0 {
		return shared.NewValidationError("items", "a return needs at least one line")
	}
	ref, err := r.DocumentFX.ToReference(r.TotalAmount)
	if err != nil {
		return err
	}
	r.TotalAmountReference = ref.Round(4)
	return nil
}
