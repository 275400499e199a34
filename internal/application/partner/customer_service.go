package partner

import (
	"context"
	"errors"
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotResolver resolves the exchange rates used to value opening balances
type SnapshotResolver interface {
	Resolve(ctx context.Context, in appfx.SnapshotInput, docDate time.Time) (fx.Snapshot, error)
}

// CustomerService handles customer-related business operations
type CustomerService struct {
	customerRepo partner.CustomerRepository
	ledgerRepo   partner.LedgerRepository
	rates        SnapshotResolver
	logger       *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(customerRepo partner.CustomerRepository, ledgerRepo partner.LedgerRepository,
	rates SnapshotResolver, logger *zap.Logger) *CustomerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerService{
		customerRepo: customerRepo,
		ledgerRepo:   ledgerRepo,
		rates:        rates,
		logger:       logger,
	}
}

// Create creates a new customer
func (s *CustomerService) Create(ctx context.Context, req CreateCustomerRequest) (*CustomerResponse, error) {
	// Check if code already exists
	if _, err := s.customerRepo.FindByCode(ctx, req.Code); err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Customer with this code already exists")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	customer, err := partner.NewCustomer(req.Code, req.Name, req.Currency)
	if err != nil {
		return nil, err
	}
	if err := customer.SetCreditLimit(req.CreditLimit); err != nil {
		return nil, err
	}
	if err := customer.SetPaymentTerms(req.PaymentTerms); err != nil {
		return nil, err
	}

	if !req.OpeningBalance.IsZero() || req.OpeningBalanceReference != nil {
		ref, err := s.openingReference(ctx, req)
		if err != nil {
			return nil, err
		}
		customer.SetOpeningBalance(req.OpeningBalance, ref)
	}

	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, err
	}

	s.logger.Info("customer created",
		zap.String("customer_id", customer.ID.String()),
		zap.String("code", customer.Code),
		zap.String("credit_limit", customer.CreditLimit.String()),
	)
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

func (s *CustomerService) openingReference(ctx context.Context, req CreateCustomerRequest) (decimal.Decimal, error) {
	if req.OpeningBalanceReference != nil {
		return *req.OpeningBalanceReference, nil
	}
	snapshot, err := s.rates.Resolve(ctx, req.FX, time.Now())
	if err != nil {
		return decimal.Zero, err
	}
	ref, err := fx.ToReference(req.OpeningBalance, valueobject.DefaultLocalCurrency, snapshot)
	if err != nil {
		return decimal.Zero, err
	}
	return ref.Round(4), nil
}

// GetByID retrieves a customer by ID
func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// UpdateCredit changes the credit limit and payment terms
func (s *CustomerService) UpdateCredit(ctx context.Context, id uuid.UUID, req UpdateCreditRequest) (*CustomerResponse, error) {
	customer, err := s.customerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.CreditLimit != nil {
		if err := customer.SetCreditLimit(*req.CreditLimit); err != nil {
			return nil, err
		}
	}
	if req.PaymentTerms != nil {
		if err := customer.SetPaymentTerms(*req.PaymentTerms); err != nil {
			return nil, err
		}
	}
	if err := s.customerRepo.Save(ctx, customer); err != nil {
		return nil, err
	}
	resp := ToCustomerResponse(customer)
	return &resp, nil
}

// Ledger lists the customer's balance changes, oldest first
func (s *CustomerService) Ledger(ctx context.Context, id uuid.UUID) ([]LedgerEntryResponse, error) {
	if _, err := s.customerRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.ledgerRepo.FindByParty(ctx, partner.PartyTypeCustomer, id)
	if err != nil {
		return nil, err
	}
	return ToLedgerEntryResponses(entries), nil
}
