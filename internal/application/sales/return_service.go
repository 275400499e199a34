package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReturnService takes goods back against posted invoices
type ReturnService struct {
	scope   appshared.TransactionScope
	returns sales.ReturnRepository
	stock   StockWriter
	logger  *zap.Logger
}

// NewReturnService creates a ReturnService
func NewReturnService(scope appshared.TransactionScope, returns sales.ReturnRepository, stock StockWriter, logger *zap.Logger) *ReturnService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReturnService{scope: scope, returns: returns, stock: stock, logger: logger}
}

// GetByID returns a sales return
func (s *ReturnService) GetByID(ctx context.Context, id uuid.UUID) (*SalesReturnResponse, error) {
	r, err := s.returns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToSalesReturnResponse(r)
	return &resp, nil
}

// CreateSalesReturn records returned quantities on the invoice, puts the
// goods back in stock and credits the customer with their value at the
// invoice's exchange rates.
func (s *ReturnService) CreateSalesReturn(ctx context.Context, req CreateSalesReturnRequest) (*SalesReturnResponse, error) {
	if len(req.Lines) == 0 {
		return nil, shared.NewValidationError("items", "a return needs at least one line")
	}

	var ret *sales.SalesReturn
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		inv, err := repos.Invoices().FindByIDForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}

		number := strings.TrimSpace(req.ReturnNumber)
		if number == "" {
			number, err = repos.Numbers().Next(ctx, shared.PrefixSalesReturn)
			if err != nil {
				return fmt.Errorf("generate return number: %w", err)
			}
		}
		date := time.Now()
		if req.ReturnDate != nil {
			date = *req.ReturnDate
		}
		ret, err = sales.NewSalesReturn(number, inv, date, req.Reason)
		if err != nil {
			return err
		}
		ret.Notes = req.Notes
		ret.CreatedBy = req.Actor

		for _, line := range req.Lines {
			item, err := inv.RegisterReturn(line.InvoiceItemID, line.Quantity)
			if err != nil {
				return err
			}
			ret.AddLine(item, line.Quantity, line.Reason)
		}
		if err := ret.Finalize(); err != nil {
			return err
		}

		if inv.CustomerID != uuid.Nil {
			customer, err := repos.Customers().FindByIDForUpdate(ctx, inv.CustomerID)
			if err != nil {
				return err
			}
			local, err := ret.LocalAmount(ret.TotalAmount, ret.TotalAmountReference)
			if err != nil {
				return err
			}
			err = applyCustomerLedger(ctx, repos, customer, partner.LedgerChange{
				Reason:         partner.LedgerReasonReturn,
				DeltaReference: ret.TotalAmountReference.Neg(),
				Delta:          local.Neg(),
				Snapshot:       ret.Snapshot(),
				Reference:      partner.DocumentRef{Type: "sales_return", ID: ret.ID, Number: ret.ReturnNumber},
				Actor:          req.Actor,
			})
			if err != nil {
				return err
			}
		}

		if err := s.restock(ctx, repos, ret, req.Actor); err != nil {
			return err
		}
		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		if err := repos.Returns().Save(ctx, ret); err != nil {
			return fmt.Errorf("save sales return: %w", err)
		}
		return appshared.RecordAudit(ctx, repos.Audit(), audit.ActionSalesReturn, "sales_return", ret.ID, req.Actor, ret.Reason, map[string]any{
			"invoice_id":      inv.ID.String(),
			"total_reference": ret.TotalAmountReference.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("sales return recorded",
		zap.String("return_id", ret.ID.String()),
		zap.String("return_number", ret.ReturnNumber),
		zap.String("invoice_number", ret.InvoiceNumber),
		zap.String("total_reference", ret.TotalAmountReference.String()),
	)
	resp := ToSalesReturnResponse(ret)
	return &resp, nil
}

func (s *ReturnService) restock(ctx context.Context, repos appshared.TransactionalRepositories, ret *sales.SalesReturn, actor string) error {
	lines := make([]*sales.SalesReturnItem, len(ret.Items))
	for i := range ret.Items {
		lines[i] = &ret.Items[i]
	}
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
	for _, line := range lines {
		_, err := s.stock.AddStock(ctx, repos, inventory.StockChange{
			ProductID:    line.ProductID,
			WarehouseID:  ret.WarehouseID,
			Quantity:     line.BaseQuantity,
			UnitCost:     line.UnitCost,
			MovementType: inventory.MovementReturn,
			SourceType:   inventory.SourceReturn,
			Reference:    inventory.Reference{Type: "sales_return", ID: ret.ID, Number: ret.ReturnNumber},
			Notes:        line.Reason,
			Actor:        actor,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
