package inventory

import (
	"context"
	"errors"
	"fmt"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockLedger is the only writer of stock balances. Every change locks the
// (product, warehouse) row, updates it and appends a movement inside the
// caller's transaction.
type StockLedger struct {
	logger *zap.Logger
}

// NewStockLedger creates a StockLedger
func NewStockLedger(logger *zap.Logger) *StockLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockLedger{logger: logger}
}

// AddStock increases on-hand stock, creating the row on first receipt
func (l *StockLedger) AddStock(ctx context.Context, repos appshared.TransactionalRepositories, change inventory.StockChange) (*inventory.Stock, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}

	stock, err := repos.Stocks().FindForUpdate(ctx, change.ProductID, change.WarehouseID)
	if errors.Is(err, shared.ErrNotFound) {
		stock, err = inventory.NewStock(change.ProductID, change.WarehouseID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", err)
	}

	before, err := stock.Increase(change.Quantity)
	if err != nil {
		return nil, err
	}
	if err := l.persist(ctx, repos, stock, change, before); err != nil {
		return nil, err
	}
	return stock, nil
}

// DeductStock decreases on-hand stock. It fails with InsufficientStockError
// rather than drive the balance negative.
func (l *StockLedger) DeductStock(ctx context.Context, repos appshared.TransactionalRepositories, change inventory.StockChange, productName string) (*inventory.Stock, error) {
	if err := change.Validate(); err != nil {
		return nil, err
	}

	stock, err := repos.Stocks().FindForUpdate(ctx, change.ProductID, change.WarehouseID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewInsufficientStockError(productName, change.Quantity, decimal.Zero)
	}
	if err != nil {
		return nil, fmt.Errorf("lock stock: %w", err)
	}

	before, err := stock.Decrease(change.Quantity, productName)
	if err != nil {
		return nil, err
	}
	if err := l.persist(ctx, repos, stock, change, before); err != nil {
		return nil, err
	}
	return stock, nil
}

func (l *StockLedger) persist(ctx context.Context, repos appshared.TransactionalRepositories, stock *inventory.Stock, change inventory.StockChange, before decimal.Decimal) error {
	if err := repos.Stocks().Save(ctx, stock); err != nil {
		return fmt.Errorf("save stock: %w", err)
	}
	movement := inventory.NewStockMovement(change, before, stock.Quantity)
	if err := repos.Movements().Create(ctx, movement); err != nil {
		return fmt.Errorf("record stock movement: %w", err)
	}
	l.logger.Debug("stock moved",
		zap.String("product_id", change.ProductID.String()),
		zap.String("warehouse_id", change.WarehouseID.String()),
		zap.String("movement_type", string(change.MovementType)),
		zap.String("quantity", change.Quantity.String()),
		zap.String("balance_after", stock.Quantity.String()),
	)
	return nil
}
