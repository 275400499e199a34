package sales

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter narrows an invoice listing. Zero fields do not filter.
type InvoiceFilter struct {
	shared.Filter
	CustomerID  *uuid.UUID
	Status      InvoiceStatus
	InvoiceType InvoiceType
	From        *time.Time
	To          *time.Time
}

// PaymentFilter narrows a payment listing. Zero fields do not filter.
type PaymentFilter struct {
	shared.Filter
	CustomerID *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// InvoiceRepository defines the interface for invoice persistence.
// Invoices are always returned with their items.
type InvoiceRepository interface {
	// FindByID finds an invoice by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDForUpdate loads the invoice holding a row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByIDsForUpdate locks the given invoices in ascending id order
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) ([]Invoice, error)

	// FindOpenCreditForUpdate locks the customer's CREDIT invoices in
	// CONFIRMED/PARTIAL status in ascending id order
	FindOpenCreditForUpdate(ctx context.Context, customerID uuid.UUID) ([]Invoice, error)

	// FindOpenCredit lists the customer's open CREDIT invoices ordered by (invoice_date, id)
	FindOpenCredit(ctx context.Context, customerID uuid.UUID) ([]Invoice, error)

	// FindPostedByCustomer lists CONFIRMED/PARTIAL/PAID invoices dated on or before to (nil = all)
	FindPostedByCustomer(ctx context.Context, customerID uuid.UUID, to *time.Time) ([]Invoice, error)

	// List returns one page of invoices without items, and the total match count
	List(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// Save creates or updates an invoice and its items
	Save(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByIDForUpdate loads the payment holding a row lock
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByCustomer lists payments dated on or before to (nil = all)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, to *time.Time) ([]Payment, error)
	// List returns one page of payments and the total match count
	List(ctx context.Context, filter PaymentFilter) ([]Payment, int64, error)
	Save(ctx context.Context, payment *Payment) error
}

// AllocationRepository defines the interface for payment allocation persistence
type AllocationRepository interface {
	FindByPayment(ctx context.Context, paymentID uuid.UUID) ([]PaymentAllocation, error)
	// FindByPair returns shared.ErrNotFound when the pair has no row yet
	FindByPair(ctx context.Context, paymentID, invoiceID uuid.UUID) (*PaymentAllocation, error)
	// SumReferenceByPayment totals the reference amounts already allocated from a payment
	SumReferenceByPayment(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)
	Save(ctx context.Context, allocation *PaymentAllocation) error
}

// ReturnRepository defines the interface for sales return persistence
type ReturnRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SalesReturn, error)
	FindByCustomer(ctx context.Context, customerID uuid.UUID, to *time.Time) ([]SalesReturn, error)
	Save(ctx context.Context, r *SalesReturn) error
}
