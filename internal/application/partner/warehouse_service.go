package partner

import (
	"context"

	"github.com/erp/settlement/internal/domain/partner"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WarehouseService handles warehouse operations
type WarehouseService struct {
	warehouseRepo partner.WarehouseRepository
	logger        *zap.Logger
}

// NewWarehouseService creates a new WarehouseService
func NewWarehouseService(warehouseRepo partner.WarehouseRepository, logger *zap.Logger) *WarehouseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarehouseService{warehouseRepo: warehouseRepo, logger: logger}
}

// Create creates a warehouse. A new default warehouse replaces the previous one.
func (s *WarehouseService) Create(ctx context.Context, req CreateWarehouseRequest) (*WarehouseResponse, error) {
	w, err := partner.NewWarehouse(req.Code, req.Name)
	if err != nil {
		return nil, err
	}
	w.IsDefault = req.IsDefault
	if err := s.warehouseRepo.Save(ctx, w); err != nil {
		return nil, err
	}
	s.logger.Info("warehouse created", zap.String("warehouse_id", w.ID.String()), zap.Bool("default", w.IsDefault))
	resp := ToWarehouseResponse(w)
	return &resp, nil
}

// GetByID retrieves a warehouse by ID
func (s *WarehouseService) GetByID(ctx context.Context, id uuid.UUID) (*WarehouseResponse, error) {
	w, err := s.warehouseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToWarehouseResponse(w)
	return &resp, nil
}
