// Package credit exposes the credit check as an application service.
package credit

import (
	"context"

	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service evaluates prospective charges against customer credit limits
type Service struct {
	customers partner.CustomerRepository
	rates     fx.RateProvider
	logger    *zap.Logger
}

// NewService creates a credit Service
func NewService(customers partner.CustomerRepository, rates fx.RateProvider, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{customers: customers, rates: rates, logger: logger}
}

// CheckCreditResponse is the result of a credit check with the customer it concerns
type CheckCreditResponse struct {
	CustomerID   uuid.UUID     `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	Result       credit.Result `json:"result"`
}

// CheckCredit evaluates a charge of amount in currency. A zero snapshot is
// replaced with today's daily rate.
func (s *Service) CheckCredit(ctx context.Context, customerID uuid.UUID, amount decimal.Decimal,
	currency valueobject.Currency, snapshot fx.Snapshot) (*CheckCreditResponse, error) {
	if currency == "" {
		currency = valueobject.DefaultLocalCurrency
	}
	if !currency.IsValid() {
		return nil, shared.NewValidationError("currency", "unsupported currency "+currency.String())
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if snapshot.IsZero() && (customer.HasCreditLimit() || !currency.IsReference()) {
		snapshot, err = s.rates.DailyRate(ctx, fx.Today())
		if err != nil {
			return nil, err
		}
	}

	requestedRef, err := fx.ToReference(amount, currency, snapshot)
	if err != nil {
		return nil, err
	}
	result, err := EvaluateCustomer(customer, requestedRef, snapshot)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("credit checked",
		zap.String("customer_id", customer.ID.String()),
		zap.String("status", result.Status.String()),
		zap.String("requested_reference", requestedRef.String()))

	return &CheckCreditResponse{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
		Result:       result,
	}, nil
}

// EvaluateCustomer runs the credit evaluation for a charge already in the
// reference currency. The limit is converted with snapshot.
func EvaluateCustomer(customer *partner.Customer, requestedRef decimal.Decimal, snapshot fx.Snapshot) (credit.Result, error) {
	limitRef, err := customer.CreditLimitReference(snapshot)
	if err != nil {
		return credit.Result{}, err
	}
	return credit.Evaluate(customer.CurrentBalanceReference, limitRef, requestedRef), nil
}
