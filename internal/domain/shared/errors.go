package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches domain errors by code so wrapped copies with a different
// message still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource is locked or was modified by another process, retry the operation")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// ValidationError is raised for malformed or out-of-policy input, before
// any state has been mutated.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for the given field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// AllocationExceedsRemainingError is a ValidationError naming the invoice
// whose outstanding balance is smaller than the requested allocation.
type AllocationExceedsRemainingError struct {
	InvoiceNumber string
	Remaining     decimal.Decimal
	Requested     decimal.Decimal
}

func (e *AllocationExceedsRemainingError) Error() string {
	return fmt.Sprintf("allocation amount %s exceeds remaining %s for invoice %s",
		e.Requested.StringFixed(2), e.Remaining.StringFixed(2), e.InvoiceNumber)
}

// Unwrap exposes the validation kind to errors.As
func (e *AllocationExceedsRemainingError) Unwrap() error {
	return NewValidationError("allocation_amount", e.Error())
}

// NewAllocationExceedsRemainingError creates an AllocationExceedsRemainingError
func NewAllocationExceedsRemainingError(invoiceNumber string, remaining, requested decimal.Decimal) *AllocationExceedsRemainingError {
	return &AllocationExceedsRemainingError{
		InvoiceNumber: invoiceNumber,
		Remaining:     remaining,
		Requested:     requested,
	}
}

// CreditLimitExceededError is raised when a charge would breach the
// customer's credit limit and no override reason was supplied.
type CreditLimitExceededError struct {
	CustomerName    string
	CurrentBalance  decimal.Decimal
	CreditLimit     decimal.Decimal
	RequestedAmount decimal.Decimal
}

func (e *CreditLimitExceededError) Error() string {
	return fmt.Sprintf("credit limit exceeded for customer %s: balance %s, limit %s, requested %s",
		e.CustomerName,
		e.CurrentBalance.StringFixed(2),
		e.CreditLimit.StringFixed(2),
		e.RequestedAmount.StringFixed(2))
}

// Unwrap exposes the validation kind to errors.As
func (e *CreditLimitExceededError) Unwrap() error {
	return NewValidationError("credit_limit", e.Error())
}

// ConfigurationError signals a missing or invalid setting the operation
// depends on, such as an FX snapshot. It is never recovered by defaulting.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %s", e.Setting, e.Message)
}

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(setting, message string) *ConfigurationError {
	return &ConfigurationError{Setting: setting, Message: message}
}

// InsufficientStockError is raised by stock deductions that would drive the
// on-hand quantity negative.
type InsufficientStockError struct {
	ProductName string
	Requested   decimal.Decimal
	Available   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s",
		e.ProductName, e.Requested.String(), e.Available.String())
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(productName string, requested, available decimal.Decimal) *InsufficientStockError {
	return &InsufficientStockError{
		ProductName: productName,
		Requested:   requested,
		Available:   available,
	}
}
