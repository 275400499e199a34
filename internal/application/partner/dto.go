package partner

import (
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateCustomerRequest represents a request to create a customer
type CreateCustomerRequest struct {
	Code         string               `json:"code" binding:"required,min=1,max=50"`
	Name         string               `json:"name" binding:"required,min=1,max=200"`
	Currency     valueobject.Currency `json:"currency"`
	CreditLimit  decimal.Decimal      `json:"credit_limit"`
	PaymentTerms int                  `json:"payment_terms" binding:"min=0"`
	// OpeningBalance is in the local ledger currency. The reference value is
	// taken from OpeningBalanceReference or converted with FX.
	OpeningBalance          decimal.Decimal     `json:"opening_balance"`
	OpeningBalanceReference *decimal.Decimal    `json:"opening_balance_reference"`
	FX                      appfx.SnapshotInput `json:"fx"`
}

// UpdateCreditRequest changes a customer's credit settings
type UpdateCreditRequest struct {
	CreditLimit  *decimal.Decimal `json:"credit_limit"`
	PaymentTerms *int             `json:"payment_terms" binding:"omitempty,min=0"`
}

// CustomerResponse represents a customer in API responses
type CustomerResponse struct {
	ID                      uuid.UUID       `json:"id"`
	Code                    string          `json:"code"`
	Name                    string          `json:"name"`
	Currency                string          `json:"currency"`
	CreditLimit             decimal.Decimal `json:"credit_limit"`
	CurrentBalance          decimal.Decimal `json:"current_balance"`
	CurrentBalanceReference decimal.Decimal `json:"current_balance_reference"`
	OpeningBalance          decimal.Decimal `json:"opening_balance"`
	OpeningBalanceReference decimal.Decimal `json:"opening_balance_reference"`
	PaymentTerms            int             `json:"payment_terms"`
	IsActive                bool            `json:"is_active"`
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}

// ToCustomerResponse converts a domain Customer to CustomerResponse
func ToCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{
		ID:                      c.ID,
		Code:                    c.Code,
		Name:                    c.Name,
		Currency:                c.Currency.String(),
		CreditLimit:             c.CreditLimit,
		CurrentBalance:          c.CurrentBalance,
		CurrentBalanceReference: c.CurrentBalanceReference,
		OpeningBalance:          c.OpeningBalance,
		OpeningBalanceReference: c.OpeningBalanceReference,
		PaymentTerms:            c.PaymentTerms,
		IsActive:                c.IsActive,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}

// CreateSupplierRequest represents a request to create a supplier
type CreateSupplierRequest struct {
	Code         string `json:"code" binding:"required,min=1,max=50"`
	Name         string `json:"name" binding:"required,min=1,max=200"`
	PaymentTerms int    `json:"payment_terms" binding:"min=0"`
}

// SupplierResponse represents a supplier in API responses
type SupplierResponse struct {
	ID                      uuid.UUID       `json:"id"`
	Code                    string          `json:"code"`
	Name                    string          `json:"name"`
	CurrentBalance          decimal.Decimal `json:"current_balance"`
	CurrentBalanceReference decimal.Decimal `json:"current_balance_reference"`
	PaymentTerms            int             `json:"payment_terms"`
	IsActive                bool            `json:"is_active"`
}

// ToSupplierResponse converts a domain Supplier to SupplierResponse
func ToSupplierResponse(s *partner.Supplier) SupplierResponse {
	return SupplierResponse{
		ID:                      s.ID,
		Code:                    s.Code,
		Name:                    s.Name,
		CurrentBalance:          s.CurrentBalance,
		CurrentBalanceReference: s.CurrentBalanceReference,
		PaymentTerms:            s.PaymentTerms,
		IsActive:                s.IsActive,
	}
}

// CreateWarehouseRequest represents a request to create a warehouse
type CreateWarehouseRequest struct {
	Code      string `json:"code" binding:"required,min=1,max=50"`
	Name      string `json:"name" binding:"required,min=1,max=200"`
	IsDefault bool   `json:"is_default"`
}

// WarehouseResponse represents a warehouse in API responses
type WarehouseResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
}

// ToWarehouseResponse converts a domain Warehouse to WarehouseResponse
func ToWarehouseResponse(w *partner.Warehouse) WarehouseResponse {
	return WarehouseResponse{ID: w.ID, Code: w.Code, Name: w.Name, IsDefault: w.IsDefault}
}

// LedgerEntryResponse represents one balance change in API responses
type LedgerEntryResponse struct {
	ID                    uuid.UUID       `json:"id"`
	Reason                string          `json:"reason"`
	Delta                 decimal.Decimal `json:"delta"`
	DeltaReference        decimal.Decimal `json:"delta_reference"`
	BalanceAfter          decimal.Decimal `json:"balance_after"`
	BalanceReferenceAfter decimal.Decimal `json:"balance_reference_after"`
	ReferenceType         string          `json:"reference_type"`
	ReferenceID           uuid.UUID       `json:"reference_id"`
	ReferenceNumber       string          `json:"reference_number"`
	Actor                 string          `json:"actor,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
}

// ToLedgerEntryResponses converts ledger entries for API responses
func ToLedgerEntryResponses(entries []partner.LedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i := range entries {
		e := &entries[i]
		out[i] = LedgerEntryResponse{
			ID:                    e.ID,
			Reason:                e.Reason.String(),
			Delta:                 e.Delta,
			DeltaReference:        e.DeltaReference,
			BalanceAfter:          e.BalanceAfter,
			BalanceReferenceAfter: e.BalanceReferenceAfter,
			ReferenceType:         e.Reference.Type,
			ReferenceID:           e.Reference.ID,
			ReferenceNumber:       e.Reference.Number,
			Actor:                 e.Actor,
			CreatedAt:             e.CreatedAt,
		}
	}
	return out
}
