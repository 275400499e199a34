package purchasing

import (
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GoodsReceipt documents one delivery against a purchase order
type GoodsReceipt struct {
	shared.BaseEntity
	ReceiptNumber     string             `gorm:"type:varchar(50);not null;uniqueIndex"`
	PurchaseOrderID   uuid.UUID          `gorm:"type:uuid;not null;index"`
	ReceivedDate      time.Time          `gorm:"type:date;not null"`
	SupplierInvoiceNo string             `gorm:"type:varchar(50)"`
	Value             decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	ValueReference    decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	Notes             string             `gorm:"type:text"`
	ReceivedBy        string             `gorm:"type:varchar(100)"`
	Items             []GoodsReceiptItem `gorm:"foreignKey:ReceiptID;references:ID"`
}

// TableName returns the table name for GORM
func (GoodsReceipt) TableName() string {
	return "goods_receipts"
}

// GoodsReceiptItem is one received line
type GoodsReceiptItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ReceiptID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderItemID  uuid.UUID       `gorm:"type:uuid;not null"`
	ProductID    uuid.UUID       `gorm:"type:uuid;not null"`
	Quantity     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BaseQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Notes        string          `gorm:"type:varchar(255)"`
}

// TableName returns the table name for GORM
func (GoodsReceiptItem) TableName() string {
	return "goods_receipt_items"
}

// NewGoodsReceipt records receipt against order
func NewGoodsReceipt(number string, order *PurchaseOrder, receipt *Receipt, date time.Time, supplierInvoiceNo, notes, actor string) (*GoodsReceipt, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, shared.NewValidationError("receipt_number", "receipt number cannot be empty")
	}
	if date.IsZero() {
		date = time.Now()
	}
	grn := &GoodsReceipt{
		BaseEntity:        shared.NewBaseEntity(),
		ReceiptNumber:     number,
		PurchaseOrderID:   order.ID,
		ReceivedDate:      fx.DateOnly(date),
		SupplierInvoiceNo: supplierInvoiceNo,
		Value:             receipt.Value,
		ValueReference:    receipt.ValueReference,
		Notes:             notes,
		ReceivedBy:        actor,
		Items:             make([]GoodsReceiptItem, 0, len(receipt.Lines)),
	}
	for _, l := range receipt.Lines {
		grn.Items = append(grn.Items, GoodsReceiptItem{
			ID:           uuid.New(),
			ReceiptID:    grn.ID,
			OrderItemID:  l.Item.ID,
			ProductID:    l.Item.ProductID,
			Quantity:     l.Quantity,
			BaseQuantity: l.BaseQuantity,
			Notes:        l.Notes,
		})
	}
	return grn, nil
}
