package sales

import (
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==================== Invoice DTOs ====================

// CreateInvoiceRequest represents a request to create a draft invoice
type CreateInvoiceRequest struct {
	InvoiceNumber   string               `json:"invoice_number" binding:"omitempty,max=50"`
	InvoiceType     sales.InvoiceType    `json:"invoice_type" binding:"required,oneof=cash credit return"`
	CustomerID      uuid.UUID            `json:"customer_id"`
	WarehouseID     *uuid.UUID           `json:"warehouse_id"`
	InvoiceDate     *time.Time           `json:"invoice_date"`
	DueDate         *time.Time           `json:"due_date"`
	Currency        valueobject.Currency `json:"transaction_currency" binding:"omitempty,oneof=USD SYP_OLD SYP_NEW"`
	Items           []InvoiceItemInput   `json:"items" binding:"required,min=1,dive"`
	DiscountPercent decimal.Decimal      `json:"discount_percent"`
	DiscountAmount  decimal.Decimal      `json:"discount_amount"`
	Notes           string               `json:"notes"`
	OverrideCredit  bool                 `json:"override_credit"`
	OverrideReason  string               `json:"override_reason"`
	FX              appfx.SnapshotInput  `json:"fx"`
	Actor           string               `json:"-"`
}

// InvoiceItemInput represents one invoice line
type InvoiceItemInput struct {
	ProductID        uuid.UUID       `json:"product_id" binding:"required"`
	ProductName      string          `json:"product_name" binding:"required,min=1,max=200"`
	Unit             string          `json:"unit" binding:"max=20"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Quantity         decimal.Decimal `json:"quantity" binding:"required,positive,money"`
	UnitPrice        decimal.Decimal `json:"unit_price" binding:"nonnegative,money"`
	CostPrice        decimal.Decimal `json:"cost_price"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
}

func (in InvoiceItemInput) toDomain() sales.ItemInput {
	return sales.ItemInput{
		ProductID:        in.ProductID,
		ProductName:      in.ProductName,
		Unit:             in.Unit,
		ConversionFactor: in.ConversionFactor,
		Quantity:         in.Quantity,
		UnitPrice:        in.UnitPrice,
		CostPrice:        in.CostPrice,
		DiscountPercent:  in.DiscountPercent,
		TaxRate:          in.TaxRate,
	}
}

// ConfirmInvoiceRequest represents a request to confirm a draft invoice
type ConfirmInvoiceRequest struct {
	// PaidAmount is collected at the counter, in the invoice currency. Nil
	// means the full total for cash invoices and nothing for credit ones.
	PaidAmount     *decimal.Decimal    `json:"paid_amount"`
	PaymentMethod  sales.PaymentMethod `json:"payment_method" binding:"omitempty,oneof=cash bank check card"`
	OverrideCredit bool                `json:"override_credit"`
	OverrideReason string              `json:"override_reason"`
	Actor          string              `json:"-"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
	Actor  string `json:"-"`
}

// FinalizeFXRequest optionally pins the snapshot an invoice is frozen with
type FinalizeFXRequest struct {
	FX appfx.SnapshotInput `json:"fx"`
}

// InvoiceItemResponse represents an invoice line in API responses
type InvoiceItemResponse struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        uuid.UUID       `json:"product_id"`
	ProductName      string          `json:"product_name"`
	Unit             string          `json:"unit"`
	ConversionFactor decimal.Decimal `json:"conversion_factor"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReturnedQuantity decimal.Decimal `json:"returned_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	DiscountPercent  decimal.Decimal `json:"discount_percent"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	Total            decimal.Decimal `json:"total"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                       uuid.UUID             `json:"id"`
	InvoiceNumber            string                `json:"invoice_number"`
	InvoiceType              string                `json:"invoice_type"`
	CustomerID               uuid.UUID             `json:"customer_id"`
	CustomerName             string                `json:"customer_name"`
	WarehouseID              uuid.UUID             `json:"warehouse_id"`
	InvoiceDate              time.Time             `json:"invoice_date"`
	DueDate                  *time.Time            `json:"due_date,omitempty"`
	Status                   string                `json:"status"`
	TransactionCurrency      string                `json:"transaction_currency"`
	FXRateDate               *time.Time            `json:"fx_rate_date,omitempty"`
	USDToSYPOldSnapshot      decimal.Decimal       `json:"usd_to_syp_old_snapshot"`
	USDToSYPNewSnapshot      decimal.Decimal       `json:"usd_to_syp_new_snapshot"`
	Subtotal                 decimal.Decimal       `json:"subtotal"`
	DiscountAmount           decimal.Decimal       `json:"discount_amount"`
	TaxAmount                decimal.Decimal       `json:"tax_amount"`
	TotalAmount              decimal.Decimal       `json:"total_amount"`
	TotalAmountReference     decimal.Decimal       `json:"total_amount_reference"`
	PaidAmount               decimal.Decimal       `json:"paid_amount"`
	PaidAmountReference      decimal.Decimal       `json:"paid_amount_reference"`
	RemainingAmount          decimal.Decimal       `json:"remaining_amount"`
	RemainingAmountReference decimal.Decimal       `json:"remaining_amount_reference"`
	IsOverdue                bool                  `json:"is_overdue"`
	Notes                    string                `json:"notes,omitempty"`
	ConfirmedAt              *time.Time            `json:"confirmed_at,omitempty"`
	CancelledAt              *time.Time            `json:"cancelled_at,omitempty"`
	Items                    []InvoiceItemResponse `json:"items,omitempty"`
	CreditCheck              *credit.Result        `json:"credit_check,omitempty"`
	PaymentID                *uuid.UUID            `json:"payment_id,omitempty"`
	Version                  int                   `json:"version"`
}

// ToInvoiceResponse converts a domain Invoice to InvoiceResponse
func ToInvoiceResponse(inv *sales.Invoice, now time.Time) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(inv.Items))
	for i := range inv.Items {
		item := &inv.Items[i]
		items[i] = InvoiceItemResponse{
			ID:               item.ID,
			ProductID:        item.ProductID,
			ProductName:      item.ProductName,
			Unit:             item.Unit,
			ConversionFactor: item.ConversionFactor,
			Quantity:         item.Quantity,
			ReturnedQuantity: item.ReturnedQuantity,
			UnitPrice:        item.UnitPrice,
			DiscountPercent:  item.DiscountPercent,
			TaxRate:          item.TaxRate,
			Total:            item.Amounts().Total,
		}
	}
	return InvoiceResponse{
		ID:                       inv.ID,
		InvoiceNumber:            inv.InvoiceNumber,
		InvoiceType:              inv.InvoiceType.String(),
		CustomerID:               inv.CustomerID,
		CustomerName:             inv.CustomerName,
		WarehouseID:              inv.WarehouseID,
		InvoiceDate:              inv.InvoiceDate,
		DueDate:                  inv.DueDate,
		Status:                   inv.Status.String(),
		TransactionCurrency:      inv.TransactionCurrency.String(),
		FXRateDate:               inv.FXRateDate,
		USDToSYPOldSnapshot:      inv.RateOld,
		USDToSYPNewSnapshot:      inv.RateNew,
		Subtotal:                 inv.Subtotal,
		DiscountAmount:           inv.DiscountAmount,
		TaxAmount:                inv.TaxAmount,
		TotalAmount:              inv.TotalAmount,
		TotalAmountReference:     inv.TotalAmountReference,
		PaidAmount:               inv.PaidAmount,
		PaidAmountReference:      inv.PaidAmountReference,
		RemainingAmount:          inv.RemainingAmount(),
		RemainingAmountReference: inv.RemainingAmountReference(),
		IsOverdue:                inv.IsOverdue(now),
		Notes:                    inv.Notes,
		ConfirmedAt:              inv.ConfirmedAt,
		CancelledAt:              inv.CancelledAt,
		Items:                    items,
		Version:                  inv.Version,
	}
}

// OpenInvoiceResponse is one row of a customer's open credit invoices
type OpenInvoiceResponse struct {
	ID                       uuid.UUID       `json:"id"`
	InvoiceNumber            string          `json:"invoice_number"`
	InvoiceDate              time.Time       `json:"invoice_date"`
	DueDate                  *time.Time      `json:"due_date,omitempty"`
	Status                   string          `json:"status"`
	TransactionCurrency      string          `json:"transaction_currency"`
	TotalAmount              decimal.Decimal `json:"total_amount"`
	PaidAmount               decimal.Decimal `json:"paid_amount"`
	RemainingAmount          decimal.Decimal `json:"remaining_amount"`
	TotalAmountReference     decimal.Decimal `json:"total_amount_reference"`
	RemainingAmountReference decimal.Decimal `json:"remaining_amount_reference"`
	IsOverdue                bool            `json:"is_overdue"`
}

// ListInvoicesRequest filters and pages the invoice list
type ListInvoicesRequest struct {
	CustomerID  string `form:"customer_id" binding:"omitempty,uuid"`
	Status      string `form:"status" binding:"omitempty,oneof=DRAFT CONFIRMED PARTIAL PAID CANCELLED"`
	InvoiceType string `form:"invoice_type" binding:"omitempty,oneof=cash credit return"`
	From        string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To          string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy     string `form:"order_by"`
	OrderDir    string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// ==================== Payment DTOs ====================

// ListPaymentsRequest filters and pages the payment list
type ListPaymentsRequest struct {
	CustomerID string `form:"customer_id" binding:"omitempty,uuid"`
	From       string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To         string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// AllocationLineRequest is one caller-chosen allocation
type AllocationLineRequest struct {
	InvoiceID uuid.UUID       `json:"invoice_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// AllocateRequest represents a request to distribute a payment over invoices
type AllocateRequest struct {
	PaymentID uuid.UUID            `json:"-"`
	Mode      sales.AllocationMode `json:"mode" binding:"required,oneof=manual auto"`
	// AmountCurrency states how every line amount is expressed; it defaults
	// to each target invoice's own currency.
	AmountCurrency sales.AmountCurrency    `json:"amount_currency" binding:"omitempty,oneof=transaction reference"`
	Lines          []AllocationLineRequest `json:"allocations" binding:"omitempty,dive"`
	Actor          string                  `json:"-"`
}

// AllocationResult reports what an allocation call did
type AllocationResult struct {
	PaymentID       uuid.UUID                 `json:"payment_id"`
	Allocations     []sales.PaymentAllocation `json:"allocations"`
	TotalAllocated  decimal.Decimal           `json:"total_allocated"`
	RemainingAmount decimal.Decimal           `json:"remaining_amount"`
	InvoicesPaid    int                       `json:"invoices_paid"`
	InvoicesPartial int                       `json:"invoices_partial"`
}

// ReceivePaymentRequest represents money received from a customer
type ReceivePaymentRequest struct {
	PaymentNumber string               `json:"payment_number" binding:"omitempty,max=50"`
	CustomerID    uuid.UUID            `json:"customer_id" binding:"required"`
	PaymentDate   *time.Time           `json:"payment_date"`
	Amount        decimal.Decimal      `json:"amount" binding:"required,positive,money"`
	Currency      valueobject.Currency `json:"transaction_currency" binding:"omitempty,oneof=USD SYP_OLD SYP_NEW"`
	PaymentMethod sales.PaymentMethod  `json:"payment_method" binding:"omitempty,oneof=cash bank check card"`
	Reference     string               `json:"reference" binding:"max=100"`
	Notes         string               `json:"notes"`
	FX            appfx.SnapshotInput  `json:"fx"`

	// Exactly one of the three allocation styles may be used: AutoAllocate,
	// Allocations, or the legacy single InvoiceID.
	AutoAllocate   bool                    `json:"auto_allocate"`
	Allocations    []AllocationLineRequest `json:"allocations" binding:"omitempty,dive"`
	AmountCurrency sales.AmountCurrency    `json:"amount_currency" binding:"omitempty,oneof=transaction reference"`
	InvoiceID      *uuid.UUID              `json:"invoice_id"`

	Actor string `json:"-"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID                  uuid.UUID         `json:"id"`
	PaymentNumber       string            `json:"payment_number"`
	CustomerID          uuid.UUID         `json:"customer_id"`
	InvoiceID           *uuid.UUID        `json:"invoice_id,omitempty"`
	PaymentDate         time.Time         `json:"payment_date"`
	TransactionCurrency string            `json:"transaction_currency"`
	USDToSYPOldSnapshot decimal.Decimal   `json:"usd_to_syp_old_snapshot"`
	USDToSYPNewSnapshot decimal.Decimal   `json:"usd_to_syp_new_snapshot"`
	Amount              decimal.Decimal   `json:"amount"`
	AmountReference     decimal.Decimal   `json:"amount_reference"`
	PaymentMethod       string            `json:"payment_method"`
	Reference           string            `json:"reference,omitempty"`
	Allocation          *AllocationResult `json:"allocation,omitempty"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse
func ToPaymentResponse(p *sales.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                  p.ID,
		PaymentNumber:       p.PaymentNumber,
		CustomerID:          p.CustomerID,
		InvoiceID:           p.InvoiceID,
		PaymentDate:         p.PaymentDate,
		TransactionCurrency: p.TransactionCurrency.String(),
		USDToSYPOldSnapshot: p.RateOld,
		USDToSYPNewSnapshot: p.RateNew,
		Amount:              p.Amount,
		AmountReference:     p.AmountReference,
		PaymentMethod:       string(p.PaymentMethod),
		Reference:           p.Reference,
	}
}

// ==================== Return DTOs ====================

// ReturnLineInput is one returned invoice line
type ReturnLineInput struct {
	InvoiceItemID uuid.UUID       `json:"invoice_item_id" binding:"required"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required,positive,money"`
	Reason        string          `json:"reason" binding:"max=255"`
}

// CreateSalesReturnRequest represents goods taken back against an invoice
type CreateSalesReturnRequest struct {
	InvoiceID    uuid.UUID         `json:"-"`
	ReturnNumber string            `json:"return_number" binding:"omitempty,max=50"`
	ReturnDate   *time.Time        `json:"return_date"`
	Reason       string            `json:"reason" binding:"required,min=1"`
	Notes        string            `json:"notes"`
	Lines        []ReturnLineInput `json:"items" binding:"required,min=1,dive"`
	Actor        string            `json:"-"`
}

// SalesReturnResponse represents a sales return in API responses
type SalesReturnResponse struct {
	ID                   uuid.UUID               `json:"id"`
	ReturnNumber         string                  `json:"return_number"`
	InvoiceID            uuid.UUID               `json:"invoice_id"`
	InvoiceNumber        string                  `json:"invoice_number"`
	CustomerID           uuid.UUID               `json:"customer_id"`
	ReturnDate           time.Time               `json:"return_date"`
	TransactionCurrency  string                  `json:"transaction_currency"`
	TotalAmount          decimal.Decimal         `json:"total_amount"`
	TotalAmountReference decimal.Decimal         `json:"total_amount_reference"`
	Reason               string                  `json:"reason"`
	Items                []sales.SalesReturnItem `json:"items"`
}

// ToSalesReturnResponse converts a domain SalesReturn to SalesReturnResponse
func ToSalesReturnResponse(r *sales.SalesReturn) SalesReturnResponse {
	return SalesReturnResponse{
		ID:                   r.ID,
		ReturnNumber:         r.ReturnNumber,
		InvoiceID:            r.InvoiceID,
		InvoiceNumber:        r.InvoiceNumber,
		CustomerID:           r.CustomerID,
		ReturnDate:           r.ReturnDate,
		TransactionCurrency:  r.TransactionCurrency.String(),
		TotalAmount:          r.TotalAmount,
		TotalAmountReference: r.TotalAmountReference,
		Reason:               r.Reason,
		Items:                r.Items,
	}
}
