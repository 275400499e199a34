package persistence

import (
	"fmt"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"gorm.io/gorm"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// InvoiceSortFields contains allowed sort fields for invoices
var InvoiceSortFields = map[string]bool{
	"id":                     true,
	"created_at":             true,
	"updated_at":             true,
	"invoice_number":         true,
	"invoice_date":           true,
	"due_date":               true,
	"status":                 true,
	"total_amount":           true,
	"total_amount_reference": true,
	"paid_amount_reference":  true,
}

// PaymentSortFields contains allowed sort fields for payments
var PaymentSortFields = map[string]bool{
	"id":               true,
	"created_at":       true,
	"updated_at":       true,
	"payment_number":   true,
	"payment_date":     true,
	"amount":           true,
	"amount_reference": true,
}

// paginate is a scope applying a whitelisted order plus offset and limit.
// id breaks ties so pages stay stable.
func paginate(f shared.Filter, allowed map[string]bool, defaultField string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		sortField := ValidateSortField(f.OrderBy, allowed, defaultField)
		return db.Order(fmt.Sprintf("%s %s", sortField, ValidateSortOrder(f.OrderDir))).
			Order("id").
			Offset(f.Offset()).
			Limit(f.Limit())
	}
}
