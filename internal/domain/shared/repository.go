package shared

import "context"

// Document number prefixes
const (
	PrefixInvoice         = "INV"
	PrefixPayment         = "PAY"
	PrefixSalesReturn     = "RET"
	PrefixPurchaseOrder   = "PO"
	PrefixSupplierPayment = "SPAY"
	PrefixGoodsReceipt    = "GRN"
)

// NumberGenerator hands out sequential document numbers of the form
// PREFIX-YYYY-NNNNN. Implementations must be safe to call inside a transaction.
type NumberGenerator interface {
	Next(ctx context.Context, prefix string) (string, error)
}

// Filter represents query filter options for list endpoints
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
}

// DefaultFilter returns a filter with default values
func DefaultFilter() Filter {
	return Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// Offset returns the row offset for the filter's page
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit()
}

// Limit returns the page size clamped to [1, 100]
func (f Filter) Limit() int {
	switch {
	case f.PageSize < 1:
		return 20
	case f.PageSize > 100:
		return 100
	default:
		return f.PageSize
	}
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, f Filter) Paginated[T] {
	pageSize := f.Limit()
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	page := f.Page
	if page < 1 {
		page = 1
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
