package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Adjustment directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// CreateProductRequest represents a request to register a product
type CreateProductRequest struct {
	Code     string `json:"code" binding:"required,min=1,max=50"`
	Name     string `json:"name" binding:"required,min=1,max=200"`
	BaseUnit string `json:"base_unit" binding:"max=20"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	BaseUnit  string    `json:"base_unit"`
	CreatedAt time.Time `json:"created_at"`
}

// AdjustStockRequest moves stock outside of an invoice or purchase order,
// for opening balances and stock-take corrections
type AdjustStockRequest struct {
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	WarehouseID uuid.UUID       `json:"warehouse_id" binding:"required"`
	Direction   string          `json:"direction" binding:"required,oneof=in out"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required,positive,money"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Opening     bool            `json:"opening"`
	Reason      string          `json:"reason" binding:"required,min=1,max=500"`
	Actor       string          `json:"-"`
}

// StockResponse is the on-hand balance of one product in one warehouse
type StockResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	WarehouseID uuid.UUID       `json:"warehouse_id"`
	Quantity    decimal.Decimal `json:"quantity"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// StockService exposes products, balances and manual adjustments. All
// balance changes still go through the StockLedger.
type StockService struct {
	scope    appshared.TransactionScope
	products inventory.ProductRepository
	stocks   inventory.StockRepository
	ledger   *StockLedger
	logger   *zap.Logger
}

// NewStockService creates a StockService
func NewStockService(scope appshared.TransactionScope, products inventory.ProductRepository,
	stocks inventory.StockRepository, ledger *StockLedger, logger *zap.Logger) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{scope: scope, products: products, stocks: stocks, ledger: ledger, logger: logger}
}

// CreateProduct registers a product
func (s *StockService) CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error) {
	product, err := inventory.NewProduct(req.Code, req.Name, req.BaseUnit)
	if err != nil {
		return nil, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}
	resp := toProductResponse(product)
	return &resp, nil
}

// GetProduct loads one product
func (s *StockService) GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(product)
	return &resp, nil
}

// StockLevel returns the balance for product in warehouse. A pair that never
// received stock reports zero.
func (s *StockService) StockLevel(ctx context.Context, productID, warehouseID uuid.UUID) (*StockResponse, error) {
	stock, err := s.stocks.Find(ctx, productID, warehouseID)
	if errors.Is(err, shared.ErrNotFound) {
		return &StockResponse{ProductID: productID, WarehouseID: warehouseID, Quantity: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	updated := stock.UpdatedAt
	return &StockResponse{
		ProductID:   stock.ProductID,
		WarehouseID: stock.WarehouseID,
		Quantity:    stock.Quantity,
		UpdatedAt:   &updated,
	}, nil
}

// AdjustStock applies a manual correction and audits it
func (s *StockService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*StockResponse, error) {
	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	source := inventory.SourceAdjustment
	if req.Opening {
		source = inventory.SourceOpening
	}
	change := inventory.StockChange{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		SourceType:  source,
		Reference:   inventory.Reference{Type: "adjustment", ID: uuid.New(), Number: product.Code},
		Notes:       req.Reason,
		Actor:       req.Actor,
	}

	var stock *inventory.Stock
	err = s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		var err error
		switch req.Direction {
		case DirectionIn:
			change.MovementType = inventory.MovementIn
			if !req.Opening {
				change.MovementType = inventory.MovementAdjustment
			}
			stock, err = s.ledger.AddStock(ctx, repos, change)
		case DirectionOut:
			change.MovementType = inventory.MovementAdjustment
			stock, err = s.ledger.DeductStock(ctx, repos, change, product.Name)
		default:
			return shared.NewValidationError("direction", "direction must be in or out")
		}
		if err != nil {
			return err
		}
		return appshared.RecordAudit(ctx, repos.Audit(), audit.ActionStockAdjust, "stock", stock.ID,
			req.Actor, req.Reason, map[string]any{
				"product_id":   req.ProductID.String(),
				"warehouse_id": req.WarehouseID.String(),
				"direction":    req.Direction,
				"quantity":     req.Quantity.String(),
				"balance":      stock.Quantity.String(),
			})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock adjusted",
		zap.String("product", product.Code),
		zap.String("direction", req.Direction),
		zap.String("quantity", req.Quantity.String()),
		zap.String("balance", stock.Quantity.String()),
	)
	updated := stock.UpdatedAt
	return &StockResponse{
		ProductID:   stock.ProductID,
		WarehouseID: stock.WarehouseID,
		Quantity:    stock.Quantity,
		UpdatedAt:   &updated,
	}, nil
}

func toProductResponse(p *inventory.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Code:      p.Code,
		Name:      p.Name,
		BaseUnit:  p.BaseUnit,
		CreatedAt: p.CreatedAt,
	}
}
