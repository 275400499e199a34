package partner

import (
	"context"
	"errors"

	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SupplierService handles supplier-related business operations
type SupplierService struct {
	supplierRepo partner.SupplierRepository
	ledgerRepo   partner.LedgerRepository
	logger       *zap.Logger
}

// NewSupplierService creates a new SupplierService
func NewSupplierService(supplierRepo partner.SupplierRepository, ledgerRepo partner.LedgerRepository, logger *zap.Logger) *SupplierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupplierService{supplierRepo: supplierRepo, ledgerRepo: ledgerRepo, logger: logger}
}

// Create creates a new supplier
func (s *SupplierService) Create(ctx context.Context, req CreateSupplierRequest) (*SupplierResponse, error) {
	supplier, err := partner.NewSupplier(req.Code, req.Name)
	if err != nil {
		return nil, err
	}
	if req.PaymentTerms < 0 {
		return nil, shared.NewValidationError("payment_terms", "payment terms cannot be negative")
	}
	supplier.PaymentTerms = req.PaymentTerms
	if err := s.supplierRepo.Save(ctx, supplier); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.NewDomainError("ALREADY_EXISTS", "Supplier with this code already exists")
		}
		return nil, err
	}
	s.logger.Info("supplier created", zap.String("supplier_id", supplier.ID.String()), zap.String("code", supplier.Code))
	resp := ToSupplierResponse(supplier)
	return &resp, nil
}

// GetByID retrieves a supplier by ID
func (s *SupplierService) GetByID(ctx context.Context, id uuid.UUID) (*SupplierResponse, error) {
	supplier, err := s.supplierRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSupplierResponse(supplier)
	return &resp, nil
}

// Ledger lists the supplier's balance changes, oldest first
func (s *SupplierService) Ledger(ctx context.Context, id uuid.UUID) ([]LedgerEntryResponse, error) {
	if _, err := s.supplierRepo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.ledgerRepo.FindByParty(ctx, partner.PartyTypeSupplier, id)
	if err != nil {
		return nil, err
	}
	return ToLedgerEntryResponses(entries), nil
}
