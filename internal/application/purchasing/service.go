// Package purchasing runs the purchase order lifecycle: approval, goods
// receipt into stock and supplier settlement.
package purchasing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotResolver turns request rates (or their absence) into a snapshot
type SnapshotResolver interface {
	Resolve(ctx context.Context, in appfx.SnapshotInput, docDate time.Time) (fx.Snapshot, error)
}

// StockReceiver books received goods into stock inside a transaction
type StockReceiver interface {
	AddStock(ctx context.Context, repos appshared.TransactionalRepositories, change inventory.StockChange) (*inventory.Stock, error)
}

// Service handles purchase order operations
type Service struct {
	scope      appshared.TransactionScope
	orders     purchasing.OrderRepository
	suppliers  partner.SupplierRepository
	warehouses partner.WarehouseRepository
	rates      SnapshotResolver
	stock      StockReceiver
	logger     *zap.Logger
}

// NewService creates a purchasing Service
func NewService(
	scope appshared.TransactionScope,
	orders purchasing.OrderRepository,
	suppliers partner.SupplierRepository,
	warehouses partner.WarehouseRepository,
	rates SnapshotResolver,
	stock StockReceiver,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scope:      scope,
		orders:     orders,
		suppliers:  suppliers,
		warehouses: warehouses,
		rates:      rates,
		stock:      stock,
		logger:     logger,
	}
}

// GetByID returns a purchase order
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPurchaseOrderResponse(order)
	return &resp, nil
}

// Create creates a DRAFT purchase order. Orders always carry exchange
// rates: the request's, or the daily rate of the order date.
func (s *Service) Create(ctx context.Context, req CreatePurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	supplier, err := s.suppliers.FindByID(ctx, req.SupplierID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewValidationError("supplier_id", "supplier not found")
		}
		return nil, err
	}
	if !supplier.IsActive {
		return nil, shared.NewValidationError("supplier_id", "supplier is inactive")
	}

	warehouseID, err := s.resolveWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if req.OrderDate != nil && !req.OrderDate.IsZero() {
		date = *req.OrderDate
	}
	snapshot, err := s.rates.Resolve(ctx, req.FX, date)
	if err != nil {
		var cfgErr *shared.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, shared.NewValidationError("usd_to_syp_old_snapshot",
				"an exchange rate is required for purchase orders and none is set for "+fx.DateOnly(date).Format("2006-01-02"))
		}
		return nil, err
	}

	order, err := purchasing.NewPurchaseOrder("PENDING", supplier.ID, supplier.Name, warehouseID, date, req.Currency, snapshot)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if _, err := order.AddItem(item.toDomain()); err != nil {
			return nil, err
		}
	}
	if req.DiscountAmount.IsPositive() {
		if err := order.SetDiscount(req.DiscountAmount); err != nil {
			return nil, err
		}
	}
	order.ExpectedDate = req.ExpectedDate
	order.Reference = req.Reference
	order.Notes = req.Notes

	err = s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		number := strings.TrimSpace(req.OrderNumber)
		if number == "" {
			n, err := repos.Numbers().Next(ctx, shared.PrefixPurchaseOrder)
			if err != nil {
				return fmt.Errorf("generate order number: %w", err)
			}
			number = n
		}
		order.OrderNumber = number
		return repos.PurchaseOrders().Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("purchase order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_reference", order.TotalAmountReference.String()),
	)
	resp := ToPurchaseOrderResponse(order)
	return &resp, nil
}

func (s *Service) resolveWarehouse(ctx context.Context, id *uuid.UUID) (uuid.UUID, error) {
	var (
		w   *partner.Warehouse
		err error
	)
	if id != nil && *id != uuid.Nil {
		w, err = s.warehouses.FindByID(ctx, *id)
	} else {
		w, err = s.warehouses.FindDefault(ctx)
	}
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return uuid.Nil, shared.NewValidationError("warehouse_id", "warehouse not found")
		}
		return uuid.Nil, err
	}
	return w.ID, nil
}

// Approve moves a DRAFT order to APPROVED
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor string) (*PurchaseOrderResponse, error) {
	return s.transition(ctx, id, "approved", func(o *purchasing.PurchaseOrder, _ appshared.TransactionalRepositories) error {
		return o.Approve(actor)
	})
}

// MarkOrdered moves an APPROVED order to ORDERED
func (s *Service) MarkOrdered(ctx context.Context, id uuid.UUID) (*PurchaseOrderResponse, error) {
	return s.transition(ctx, id, "ordered", func(o *purchasing.PurchaseOrder, _ appshared.TransactionalRepositories) error {
		return o.MarkOrdered()
	})
}

// Cancel cancels an order that has not received goods and records the reason
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, req CancelPurchaseOrderRequest) (*PurchaseOrderResponse, error) {
	return s.transition(ctx, id, "cancelled", func(o *purchasing.PurchaseOrder, repos appshared.TransactionalRepositories) error {
		previous := o.Status
		if err := o.Cancel(req.Reason); err != nil {
			return err
		}
		return appshared.RecordAudit(ctx, repos.Audit(), audit.ActionPOCancel, "purchase_order", o.ID, req.Actor, o.CancelReason, map[string]any{
			"previous_status": previous.String(),
		})
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, label string,
	fn func(o *purchasing.PurchaseOrder, repos appshared.TransactionalRepositories) error) (*PurchaseOrderResponse, error) {
	var order *purchasing.PurchaseOrder
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		var err error
		order, err = repos.PurchaseOrders().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(order, repos); err != nil {
			return err
		}
		return repos.PurchaseOrders().Save(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("purchase order "+label,
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("status", order.Status.String()),
	)
	resp := ToPurchaseOrderResponse(order)
	return &resp, nil
}

// ReceiveGoods books a delivery: quantities received, stock added in base
// units and the received value owed to the supplier.
func (s *Service) ReceiveGoods(ctx context.Context, id uuid.UUID, req ReceiveGoodsRequest) (*GoodsReceiptResponse, error) {
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("items", "at least one line is required")
	}
	lines := make([]purchasing.ReceiveLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, purchasing.ReceiveLine{ItemID: l.OrderItemID, Quantity: l.Quantity, Notes: l.Notes})
	}

	var (
		order *purchasing.PurchaseOrder
		grn   *purchasing.GoodsReceipt
	)
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		var err error
		order, err = repos.PurchaseOrders().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		receipt, err := order.Receive(lines)
		if err != nil {
			return err
		}

		number := strings.TrimSpace(req.ReceiptNumber)
		if number == "" {
			number, err = repos.Numbers().Next(ctx, shared.PrefixGoodsReceipt)
			if err != nil {
				return fmt.Errorf("generate receipt number: %w", err)
			}
		}
		date := time.Now()
		if req.ReceivedDate != nil {
			date = *req.ReceivedDate
		}
		grn, err = purchasing.NewGoodsReceipt(number, order, receipt, date, req.SupplierInvoiceNo, req.Notes, req.Actor)
		if err != nil {
			return err
		}

		if receipt.ValueReference.IsPositive() {
			supplier, err := repos.Suppliers().FindByIDForUpdate(ctx, order.SupplierID)
			if err != nil {
				return err
			}
			local, err := order.LocalAmount(receipt.Value, receipt.ValueReference)
			if err != nil {
				return err
			}
			err = applySupplierLedger(ctx, repos, supplier, partner.LedgerChange{
				Reason:         partner.LedgerReasonReceipt,
				DeltaReference: receipt.ValueReference,
				Delta:          local,
				Snapshot:       order.Snapshot(),
				Reference:      partner.DocumentRef{Type: "goods_receipt", ID: grn.ID, Number: grn.ReceiptNumber},
				Actor:          req.Actor,
			})
			if err != nil {
				return err
			}
		}

		received := append([]purchasing.ReceivedLine(nil), receipt.Lines...)
		sort.SliceStable(received, func(i, j int) bool {
			return received[i].Item.ProductID.String() < received[j].Item.ProductID.String()
		})
		for _, l := range received {
			unitCost := baseUnitCost(l.Item)
			_, err := s.stock.AddStock(ctx, repos, inventory.StockChange{
				ProductID:    l.Item.ProductID,
				WarehouseID:  order.WarehouseID,
				Quantity:     l.BaseQuantity,
				UnitCost:     unitCost,
				MovementType: inventory.MovementIn,
				SourceType:   inventory.SourcePurchase,
				Reference:    inventory.Reference{Type: "purchase_order", ID: order.ID, Number: order.OrderNumber},
				Notes:        l.Notes,
				Actor:        req.Actor,
			})
			if err != nil {
				return err
			}
		}

		if err := repos.PurchaseOrders().Save(ctx, order); err != nil {
			return fmt.Errorf("save purchase order: %w", err)
		}
		return repos.GoodsReceipts().Save(ctx, grn)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("goods received",
		zap.String("order_id", order.ID.String()),
		zap.String("receipt_number", grn.ReceiptNumber),
		zap.String("status", order.Status.String()),
		zap.String("value_reference", grn.ValueReference.String()),
	)
	return &GoodsReceiptResponse{
		ID:             grn.ID,
		ReceiptNumber:  grn.ReceiptNumber,
		OrderID:        order.ID,
		OrderStatus:    order.Status.String(),
		ReceivedDate:   grn.ReceivedDate,
		Value:          grn.Value,
		ValueReference: grn.ValueReference,
		Items:          grn.Items,
	}, nil
}

// PaySupplier records a payment against an order and reduces what is owed
// to the supplier.
func (s *Service) PaySupplier(ctx context.Context, id uuid.UUID, req PaySupplierRequest) (*SupplierPaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return nil, shared.NewValidationError("amount", "payment amount must be positive")
	}

	var payment *purchasing.SupplierPayment
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		order, err := repos.PurchaseOrders().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		currency := req.Currency
		if currency == "" {
			currency = order.TransactionCurrency
		}
		doc, err := fx.NewDocumentFX(currency)
		if err != nil {
			return err
		}
		date := time.Now()
		if req.PaymentDate != nil {
			date = *req.PaymentDate
		}
		snapshot := order.Snapshot()
		if req.FX.HasRates() {
			snapshot, err = s.rates.Resolve(ctx, req.FX, date)
			if err != nil {
				return err
			}
		}
		if err := doc.Freeze(snapshot); err != nil {
			return err
		}

		number := strings.TrimSpace(req.PaymentNumber)
		if number == "" {
			number, err = repos.Numbers().Next(ctx, shared.PrefixSupplierPayment)
			if err != nil {
				return fmt.Errorf("generate payment number: %w", err)
			}
		}
		payment, err = purchasing.NewSupplierPayment(number, order.SupplierID, date, req.PaymentMethod, req.Amount, doc)
		if err != nil {
			return err
		}
		payment.LinkOrder(order.ID)
		payment.Reference = req.Reference
		payment.Notes = req.Notes
		payment.CreatedBy = req.Actor

		if err := order.ApplyPayment(payment.AmountReference); err != nil {
			return err
		}

		supplier, err := repos.Suppliers().FindByIDForUpdate(ctx, order.SupplierID)
		if err != nil {
			return err
		}
		local, err := payment.LocalAmount(payment.Amount, payment.AmountReference)
		if err != nil {
			return err
		}
		err = applySupplierLedger(ctx, repos, supplier, partner.LedgerChange{
			Reason:         partner.LedgerReasonPayment,
			DeltaReference: payment.AmountReference.Neg(),
			Delta:          local.Neg(),
			Snapshot:       payment.Snapshot(),
			Reference:      partner.DocumentRef{Type: "supplier_payment", ID: payment.ID, Number: payment.PaymentNumber},
			Actor:          req.Actor,
		})
		if err != nil {
			return err
		}

		if err := repos.PurchaseOrders().Save(ctx, order); err != nil {
			return fmt.Errorf("save purchase order: %w", err)
		}
		return repos.SupplierPayments().Save(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("supplier paid",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", id.String()),
		zap.String("amount_reference", payment.AmountReference.String()),
	)
	return &SupplierPaymentResponse{
		ID:                  payment.ID,
		PaymentNumber:       payment.PaymentNumber,
		SupplierID:          payment.SupplierID,
		OrderID:             payment.PurchaseOrderID,
		PaymentDate:         payment.PaymentDate,
		TransactionCurrency: payment.TransactionCurrency.String(),
		Amount:              payment.Amount,
		AmountReference:     payment.AmountReference,
		PaymentMethod:       string(payment.PaymentMethod),
	}, nil
}

func applySupplierLedger(ctx context.Context, repos appshared.TransactionalRepositories,
	supplier *partner.Supplier, change partner.LedgerChange) error {
	entry, err := supplier.ApplyLedgerEntry(change)
	if err != nil {
		return err
	}
	if err := repos.Suppliers().Save(ctx, supplier); err != nil {
		return fmt.Errorf("save supplier: %w", err)
	}
	if err := repos.Ledger().Create(ctx, entry); err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// baseUnitCost is the line's net unit price per product base unit
func baseUnitCost(item purchasing.OrderItem) decimal.Decimal {
	price := item.UnitPrice.Sub(item.UnitPrice.Mul(item.DiscountPercent).Div(decimal.NewFromInt(100)))
	if !item.ConversionFactor.IsPositive() {
		return price.Round(4)
	}
	return price.Div(item.ConversionFactor).Round(4)
}
