package purchasing

import (
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreatePurchaseOrderRequest represents a request to create a purchase order
type CreatePurchaseOrderRequest struct {
	OrderNumber    string               `json:"po_number" binding:"omitempty,max=50"`
	SupplierID     uuid.UUID            `json:"supplier_id" binding:"required"`
	WarehouseID    *uuid.UUID           `json:"warehouse_id"`
	OrderDate      *time.Time           `json:"order_date"`
	ExpectedDate   *time.Time           `json:"expected_date"`
	Currency       valueobject.Currency `json:"transaction_currency"`
	Items          []OrderItemInput     `json:"items" binding:"required,min=1,dive"`
	DiscountAmount decimal.Decimal      `json:"discount_amount"`
	Reference      string               `json:"reference" binding:"max=100"`
	Notes          string               `json:"notes"`
	FX             appfx.SnapshotInput  `json:"fx"`
	Actor          string               `json:"-"`
}

// OrderItemInput represents one purchase order line in a request
type OrderItemInput struct {
	ProductID        uuid.UUID       `json:"product_id" binding:"required"`
	ProductName      string          `json:"product_name" binding:"required,max=200"`
	Unit             string          `json:"unit" binding:"max=20"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Quantity         decimal.Decimal `json:"quantity" binding:"required,positive,money"`
	UnitPrice        decimal.Decimal `json:"unit_price" binding:"nonnegative,money"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	Notes            string          `json:"notes" binding:"max=255"`
}

func (in OrderItemInput) toDomain() purchasing.ItemInput {
	return purchasing.ItemInput{
		ProductID:        in.ProductID,
		ProductName:      in.ProductName,
		Unit:             in.Unit,
		ConversionFactor: in.ConversionFactor,
		Quantity:         in.Quantity,
		UnitPrice:        in.UnitPrice,
		DiscountPercent:  in.DiscountPercent,
		Notes:            in.Notes,
	}
}

// CancelPurchaseOrderRequest carries the cancellation reason
type CancelPurchaseOrderRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
	Actor  string `json:"-"`
}

// ReceiveLineInput is one received line
type ReceiveLineInput struct {
	OrderItemID uuid.UUID       `json:"po_item_id" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required,positive,money"`
	Notes       string          `json:"notes" binding:"max=255"`
}

// ReceiveGoodsRequest represents a delivery against a purchase order
type ReceiveGoodsRequest struct {
	ReceiptNumber     string             `json:"receipt_number" binding:"omitempty,max=50"`
	ReceivedDate      *time.Time         `json:"received_date"`
	SupplierInvoiceNo string             `json:"supplier_invoice_no" binding:"max=50"`
	Notes             string             `json:"notes"`
	Lines             []ReceiveLineInput `json:"items" binding:"required,min=1,dive"`
	Actor             string             `json:"-"`
}

// PaySupplierRequest represents a payment against a purchase order
type PaySupplierRequest struct {
	PaymentNumber string                   `json:"payment_number" binding:"omitempty,max=50"`
	PaymentDate   *time.Time               `json:"payment_date"`
	Amount        decimal.Decimal          `json:"amount" binding:"required,positive,money"`
	Currency      valueobject.Currency     `json:"transaction_currency"`
	PaymentMethod purchasing.PaymentMethod `json:"payment_method" binding:"omitempty,oneof=cash bank check"`
	Reference     string                   `json:"reference" binding:"max=100"`
	Notes         string                   `json:"notes"`
	FX            appfx.SnapshotInput      `json:"fx"`
	Actor         string                   `json:"-"`
}

// PurchaseOrderResponse represents a purchase order in API responses
type PurchaseOrderResponse struct {
	ID                      uuid.UUID              `json:"id"`
	OrderNumber             string                 `json:"po_number"`
	SupplierID              uuid.UUID              `json:"supplier_id"`
	SupplierName            string                 `json:"supplier_name"`
	WarehouseID             uuid.UUID              `json:"warehouse_id"`
	OrderDate               time.Time              `json:"order_date"`
	ExpectedDate            *time.Time             `json:"expected_date,omitempty"`
	Status                  string                 `json:"status"`
	TransactionCurrency     string                 `json:"transaction_currency"`
	FXRateDate              *time.Time             `json:"fx_rate_date,omitempty"`
	RateOld                 decimal.Decimal        `json:"usd_to_syp_old_snapshot"`
	RateNew                 decimal.Decimal        `json:"usd_to_syp_new_snapshot"`
	Subtotal                decimal.Decimal        `json:"subtotal"`
	DiscountAmount          decimal.Decimal        `json:"discount_amount"`
	TotalAmount             decimal.Decimal        `json:"total_amount"`
	TotalAmountReference    decimal.Decimal        `json:"total_amount_reference"`
	ReceivedAmountReference decimal.Decimal        `json:"received_amount_reference"`
	PaidAmount              decimal.Decimal        `json:"paid_amount"`
	PaidAmountReference     decimal.Decimal        `json:"paid_amount_reference"`
	Reference               string                 `json:"reference,omitempty"`
	Notes                   string                 `json:"notes,omitempty"`
	CancelReason            string                 `json:"cancel_reason,omitempty"`
	Items                   []purchasing.OrderItem `json:"items"`
	Version                 int                    `json:"version"`
}

// ToPurchaseOrderResponse converts a domain PurchaseOrder to PurchaseOrderResponse
func ToPurchaseOrderResponse(o *purchasing.PurchaseOrder) PurchaseOrderResponse {
	return PurchaseOrderResponse{
		ID:                      o.ID,
		OrderNumber:             o.OrderNumber,
		SupplierID:              o.SupplierID,
		SupplierName:            o.SupplierName,
		WarehouseID:             o.WarehouseID,
		OrderDate:               o.OrderDate,
		ExpectedDate:            o.ExpectedDate,
		Status:                  o.Status.String(),
		TransactionCurrency:     o.TransactionCurrency.String(),
		FXRateDate:              o.FXRateDate,
		RateOld:                 o.RateOld,
		RateNew:                 o.RateNew,
		Subtotal:                o.Subtotal,
		DiscountAmount:          o.DiscountAmount,
		TotalAmount:             o.TotalAmount,
		TotalAmountReference:    o.TotalAmountReference,
		ReceivedAmountReference: o.ReceivedAmountReference,
		PaidAmount:              o.PaidAmount,
		PaidAmountReference:     o.PaidAmountReference,
		Reference:               o.Reference,
		Notes:                   o.Notes,
		CancelReason:            o.CancelReason,
		Items:                   o.Items,
		Version:                 o.Version,
	}
}

// GoodsReceiptResponse represents a goods receipt in API responses
type GoodsReceiptResponse struct {
	ID             uuid.UUID                     `json:"id"`
	ReceiptNumber  string                        `json:"receipt_number"`
	OrderID        uuid.UUID                     `json:"po_id"`
	OrderStatus    string                        `json:"po_status"`
	ReceivedDate   time.Time                     `json:"received_date"`
	Value          decimal.Decimal               `json:"value"`
	ValueReference decimal.Decimal               `json:"value_reference"`
	Items          []purchasing.GoodsReceiptItem `json:"items"`
}

// SupplierPaymentResponse represents a supplier payment in API responses
type SupplierPaymentResponse struct {
	ID                  uuid.UUID       `json:"id"`
	PaymentNumber       string          `json:"payment_number"`
	SupplierID          uuid.UUID       `json:"supplier_id"`
	OrderID             *uuid.UUID      `json:"po_id,omitempty"`
	PaymentDate         time.Time       `json:"payment_date"`
	TransactionCurrency string          `json:"transaction_currency"`
	Amount              decimal.Decimal `json:"amount"`
	AmountReference     decimal.Decimal `json:"amount_reference"`
	PaymentMethod       string          `json:"payment_method"`
}
