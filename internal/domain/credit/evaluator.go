// Package credit decides whether a prospective credit charge may proceed
// and records audited overrides of that decision.
package credit

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status classifies a credit evaluation
type Status string

const (
	StatusOK      Status = "OK"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

var (
	// WarningThreshold is the share of the limit at which a warning is raised
	WarningThreshold = decimal.NewFromFloat(0.8)
	// UnlimitedCredit is reported as the available credit of customers without a limit
	UnlimitedCredit = decimal.RequireFromString("999999999.99")
)

// Result is the outcome of Evaluate. All amounts are in the reference currency.
type Result struct {
	Status           Status          `json:"status"`
	CanProceed       bool            `json:"can_proceed"`
	RequiresOverride bool            `json:"requires_override"`
	Message          string          `json:"message"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	RequestedAmount  decimal.Decimal `json:"requested_amount"`
	NewBalance       decimal.Decimal `json:"new_balance"`
	AvailableCredit  decimal.Decimal `json:"available_credit"`
}

// IsUnlimited reports whether the customer had no effective limit
func (r Result) IsUnlimited() bool {
	return !r.CreditLimit.IsPositive()
}

// Evaluate classifies a charge of requested against the customer's current
// balance and limit. A limit <= 0 means unlimited.
func Evaluate(currentBalance, creditLimit, requested decimal.Decimal) Result {
	newBalance := currentBalance.Add(requested)
	r := Result{
		CurrentBalance:  currentBalance,
		CreditLimit:     creditLimit,
		RequestedAmount: requested,
		NewBalance:      newBalance,
	}

	if !creditLimit.IsPositive() {
		r.Status = StatusOK
		r.CanProceed = true
		r.AvailableCredit = UnlimitedCredit
		r.Message = "no credit limit set"
		return r
	}

	r.AvailableCredit = creditLimit.Sub(currentBalance)

	switch {
	case newBalance.GreaterThan(creditLimit):
		r.Status = StatusError
		r.RequiresOverride = true
		r.Message = fmt.Sprintf("credit limit exceeded: new balance %s is over the limit %s by %s",
			newBalance.StringFixed(2), creditLimit.StringFixed(2), newBalance.Sub(creditLimit).StringFixed(2))
	case newBalance.GreaterThanOrEqual(creditLimit.Mul(WarningThreshold)):
		r.Status = StatusWarning
		r.CanProceed = true
		r.Message = fmt.Sprintf("approaching credit limit: new balance %s of %s (%s%%)",
			newBalance.StringFixed(2), creditLimit.StringFixed(2),
			newBalance.Div(creditLimit).Mul(decimal.NewFromInt(100)).StringFixed(1))
	default:
		r.Status = StatusOK
		r.CanProceed = true
		r.Message = "within credit limit"
	}
	return r
}

// Authorize applies the override policy to an evaluation. It returns true
// when the charge proceeds only because of an override, in which case the
// caller must record a LimitOverride.
func Authorize(r Result, customerName string, override bool, reason string) (bool, error) {
	reason = strings.TrimSpace(reason)
	if override && reason == "" {
		return false, shared.NewValidationError("override_reason", "override reason is required when overriding the credit limit")
	}
	if r.Status != StatusError {
		return false, nil
	}
	if reason == "" {
		return false, &shared.CreditLimitExceededError{
			CustomerName:    customerName,
			CurrentBalance:  r.CurrentBalance,
			CreditLimit:     r.CreditLimit,
			RequestedAmount: r.RequestedAmount,
		}
	}
	return true, nil
}

// OverrideAmount is the part of the charge that exceeds the remaining credit
func OverrideAmount(r Result) decimal.Decimal {
	excess := r.RequestedAmount.Sub(r.AvailableCredit)
	if excess.IsNegative() {
		return decimal.Zero
	}
	return excess
}

// DueDate adds the customer's payment terms to the invoice date
func DueDate(invoiceDate time.Time, paymentTermsDays int) time.Time {
	if paymentTermsDays <= 0 {
		return invoiceDate
	}
	return invoiceDate.AddDate(0, 0, paymentTermsDays)
}
