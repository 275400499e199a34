package sales

import (
	"context"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatementService builds customer account statements
type StatementService struct {
	customers partner.CustomerRepository
	invoices  sales.InvoiceRepository
	payments  sales.PaymentRepository
	returns   sales.ReturnRepository
	logger    *zap.Logger
}

// NewStatementService creates a StatementService
func NewStatementService(
	customers partner.CustomerRepository,
	invoices sales.InvoiceRepository,
	payments sales.PaymentRepository,
	returns sales.ReturnRepository,
	logger *zap.Logger,
) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{
		customers: customers,
		invoices:  invoices,
		payments:  payments,
		returns:   returns,
		logger:    logger,
	}
}

// CustomerStatement lists a customer's posted invoices, payments and
// returns between from and to (both optional, inclusive) with running
// balances in the local and reference currencies.
func (s *StatementService) CustomerStatement(ctx context.Context, customerID uuid.UUID, from, to *time.Time) (*sales.Statement, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, shared.NewValidationError("from", "from date must not be after to date")
	}
	from = dateOnlyPtr(from)
	to = dateOnlyPtr(to)

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoices.FindPostedByCustomer(ctx, customerID, to)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.FindByCustomer(ctx, customerID, to)
	if err != nil {
		return nil, err
	}
	returns, err := s.returns.FindByCustomer(ctx, customerID, to)
	if err != nil {
		return nil, err
	}

	entries := make([]sales.StatementEntry, 0, len(invoices)+len(payments)+len(returns))
	for i := range invoices {
		e, err := sales.InvoiceEntry(&invoices[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	for i := range payments {
		e, err := sales.PaymentEntry(&payments[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	for i := range returns {
		e, err := sales.ReturnEntry(&returns[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	st := sales.BuildStatement(sales.StatementParty{
		ID:                      customer.ID,
		Code:                    customer.Code,
		Name:                    customer.Name,
		OpeningBalance:          customer.OpeningBalance,
		OpeningBalanceReference: customer.OpeningBalanceReference,
	}, entries, from, to)

	s.logger.Debug("customer statement built",
		zap.String("customer_id", customerID.String()),
		zap.Int("rows", len(st.Entries)),
	)
	return st, nil
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := fx.DateOnly(*t)
	return &d
}
