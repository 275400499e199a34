package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	appcredit "github.com/erp/settlement/internal/application/credit"
	appfx "github.com/erp/settlement/internal/application/fx"
	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/credit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StockWriter moves stock inside a settlement transaction
type StockWriter interface {
	AddStock(ctx context.Context, repos appshared.TransactionalRepositories, change inventory.StockChange) (*inventory.Stock, error)
	DeductStock(ctx context.Context, repos appshared.TransactionalRepositories, change inventory.StockChange, productName string) (*inventory.Stock, error)
}

// InvoiceService handles the sales invoice lifecycle
type InvoiceService struct {
	scope      appshared.TransactionScope
	invoices   sales.InvoiceRepository
	customers  partner.CustomerRepository
	warehouses partner.WarehouseRepository
	rates      SnapshotResolver
	stock      StockWriter
	metrics    appshared.Metrics
	logger     *zap.Logger
}

// NewInvoiceService creates an InvoiceService
func NewInvoiceService(
	scope appshared.TransactionScope,
	invoices sales.InvoiceRepository,
	customers partner.CustomerRepository,
	warehouses partner.WarehouseRepository,
	rates SnapshotResolver,
	stock StockWriter,
	logger *zap.Logger,
) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		scope:      scope,
		invoices:   invoices,
		customers:  customers,
		warehouses: warehouses,
		rates:      rates,
		stock:      stock,
		metrics:    appshared.NopMetrics{},
		logger:     logger,
	}
}

// SetMetrics sets the metrics sink
func (s *InvoiceService) SetMetrics(m appshared.Metrics) {
	if m != nil {
		s.metrics = m
	}
}

// GetByID returns an invoice with its items
func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, time.Now())
	return &resp, nil
}

// ListInvoices returns one page of invoices, newest invoice date first by default
func (s *InvoiceService) ListInvoices(ctx context.Context, req ListInvoicesRequest) (*shared.Paginated[InvoiceResponse], error) {
	filter := sales.InvoiceFilter{
		Filter:      pageFilter(req.Page, req.PageSize, req.OrderBy, req.OrderDir),
		Status:      sales.InvoiceStatus(strings.ToUpper(req.Status)),
		InvoiceType: sales.InvoiceType(strings.ToLower(req.InvoiceType)),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.NewValidationError("status", "unknown invoice status "+req.Status)
	}
	if filter.InvoiceType != "" && !filter.InvoiceType.IsValid() {
		return nil, shared.NewValidationError("invoice_type", "unknown invoice type "+req.InvoiceType)
	}
	var err error
	if filter.CustomerID, err = parseCustomerFilter(req.CustomerID); err != nil {
		return nil, err
	}
	if filter.From, filter.To, err = parseDateRange(req.From, req.To); err != nil {
		return nil, err
	}

	invoices, total, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = ToInvoiceResponse(&invoices[i], now)
	}
	page := shared.NewPaginated(items, total, filter.Filter)
	return &page, nil
}

// CreateInvoice creates a DRAFT invoice. Credit invoices are checked against
// the customer's limit straight away so a breach fails before anything is
// stored; the check is repeated at confirmation.
func (s *InvoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if req.OverrideCredit && strings.TrimSpace(req.OverrideReason) == "" {
		return nil, shared.NewValidationError("override_reason", "override reason is required when overriding the credit limit")
	}

	var customer *partner.Customer
	if req.CustomerID != uuid.Nil {
		c, err := s.customers.FindByID(ctx, req.CustomerID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return nil, shared.NewValidationError("customer_id", "customer not found")
			}
			return nil, err
		}
		if !c.IsActive {
			return nil, shared.NewValidationError("customer_id", "customer is inactive")
		}
		customer = c
	}

	warehouseID, err := s.resolveWarehouse(ctx, req.WarehouseID)
	if err != nil {
		return nil, err
	}

	date := time.Now()
	if req.InvoiceDate != nil && !req.InvoiceDate.IsZero() {
		date = *req.InvoiceDate
	}
	customerName := ""
	if customer != nil {
		customerName = customer.Name
	}

	// Number is assigned inside the transaction; use a placeholder until then.
	inv, err := sales.NewInvoice("PENDING", req.InvoiceType, req.CustomerID, customerName, warehouseID, date, req.Currency)
	if err != nil {
		return nil, err
	}
	for _, item := range req.Items {
		if _, err := inv.AddItem(item.toDomain()); err != nil {
			return nil, err
		}
	}
	if err := inv.SetDiscount(req.DiscountPercent, req.DiscountAmount); err != nil {
		return nil, err
	}
	inv.Notes = req.Notes

	switch {
	case req.DueDate != nil && !req.DueDate.IsZero():
		inv.SetDueDate(*req.DueDate)
	case inv.InvoiceType == sales.InvoiceTypeCredit && customer != nil:
		inv.SetDueDate(credit.DueDate(inv.InvoiceDate, customer.PaymentTerms))
	}

	if req.FX.HasRates() {
		snapshot, err := s.rates.Resolve(ctx, req.FX, inv.InvoiceDate)
		if err != nil {
			return nil, err
		}
		if err := inv.FinalizeFX(snapshot); err != nil {
			return nil, err
		}
	}

	var check *credit.Result
	if inv.InvoiceType == sales.InvoiceTypeCredit && customer != nil && customer.HasCreditLimit() {
		snapshot := inv.Snapshot()
		if !inv.IsFrozen() {
			snapshot, err = s.rates.Resolve(ctx, req.FX, inv.InvoiceDate)
			if err != nil {
				return nil, err
			}
		}
		totalRef, err := fx.ToReference(inv.TotalAmount, inv.TransactionCurrency, snapshot)
		if err != nil {
			return nil, err
		}
		result, err := appcredit.EvaluateCustomer(customer, totalRef, snapshot)
		if err != nil {
			return nil, err
		}
		if _, err := credit.Authorize(result, customer.Name, req.OverrideCredit, req.OverrideReason); err != nil {
			return nil, err
		}
		check = &result
	}

	err = s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		number := strings.TrimSpace(req.InvoiceNumber)
		if number == "" {
			n, err := repos.Numbers().Next(ctx, shared.PrefixInvoice)
			if err != nil {
				return fmt.Errorf("generate invoice number: %w", err)
			}
			number = n
		}
		inv.InvoiceNumber = number
		return repos.Invoices().Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("invoice created",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("invoice_type", inv.InvoiceType.String()),
		zap.String("total_amount", inv.TotalAmount.String()),
	)
	resp := ToInvoiceResponse(inv, time.Now())
	resp.CreditCheck = check
	return &resp, nil
}

func (s *InvoiceService) resolveWarehouse(ctx context.Context, id *uuid.UUID) (uuid.UUID, error) {
	if id != nil && *id != uuid.Nil {
		w, err := s.warehouses.FindByID(ctx, *id)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return uuid.Nil, shared.NewValidationError("warehouse_id", "warehouse not found")
			}
			return uuid.Nil, err
		}
		return w.ID, nil
	}
	w, err := s.warehouses.FindDefault(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return uuid.Nil, shared.NewValidationError("warehouse_id", "no warehouse given and no default warehouse configured")
		}
		return uuid.Nil, err
	}
	return w.ID, nil
}

// FinalizeFX freezes the invoice's exchange rates and fixes its reference
// totals. Invoices already frozen are recomputed with their own snapshot;
// the request's rates only apply to unfrozen invoices.
func (s *InvoiceService) FinalizeFX(ctx context.Context, id uuid.UUID, req FinalizeFXRequest) (*InvoiceResponse, error) {
	var inv *sales.Invoice
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.finalize(ctx, inv, req.FX); err != nil {
			return err
		}
		return repos.Invoices().Save(ctx, inv)
	})
	if err != nil {
		return nil, err
	}
	resp := ToInvoiceResponse(inv, time.Now())
	return &resp, nil
}

func (s *InvoiceService) finalize(ctx context.Context, inv *sales.Invoice, in appfx.SnapshotInput) error {
	if inv.Status == sales.InvoiceStatusDraft {
		inv.RecalculateTotals()
	}
	snapshot := inv.Snapshot()
	if !inv.IsFrozen() {
		var err error
		snapshot, err = s.rates.Resolve(ctx, in, inv.InvoiceDate)
		if err != nil {
			return err
		}
	}
	return inv.FinalizeFX(snapshot)
}

// ConfirmInvoice posts a DRAFT invoice: it freezes the exchange rates,
// re-checks credit, deducts stock, records any up-front payment and books
// the unpaid remainder on the customer account.
func (s *InvoiceService) ConfirmInvoice(ctx context.Context, id uuid.UUID, req ConfirmInvoiceRequest) (*InvoiceResponse, error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.ConfirmInvoice")
	defer span.End()

	if req.OverrideCredit && strings.TrimSpace(req.OverrideReason) == "" {
		return nil, shared.NewValidationError("override_reason", "override reason is required when overriding the credit limit")
	}

	var (
		inv        *sales.Invoice
		check      *credit.Result
		paymentID  *uuid.UUID
		overridden bool
	)
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != sales.InvoiceStatusDraft {
			return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm invoice in %s status", inv.Status))
		}
		if err := s.finalize(ctx, inv, appfx.SnapshotInput{}); err != nil {
			return err
		}

		paid, err := inv.Confirm(req.PaidAmount)
		if err != nil {
			return err
		}

		remainingRef := inv.RemainingAmountReference()
		if inv.CustomerID != uuid.Nil && remainingRef.IsPositive() {
			customer, err := repos.Customers().FindByIDForUpdate(ctx, inv.CustomerID)
			if err != nil {
				return err
			}
			result, err := appcredit.EvaluateCustomer(customer, remainingRef, inv.Snapshot())
			if err != nil {
				return err
			}
			check = &result
			needsAudit, err := credit.Authorize(result, customer.Name, req.OverrideCredit, req.OverrideReason)
			if err != nil {
				return err
			}
			if needsAudit {
				if err := recordOverride(ctx, repos, customer, inv, result, req); err != nil {
					return err
				}
				overridden = true
			}
			if err := s.bookReceivable(ctx, repos, customer, inv, remainingRef, req.Actor); err != nil {
				return err
			}
		}

		if err := s.deductStock(ctx, repos, inv, req.Actor); err != nil {
			return err
		}

		if paid.IsPositive() && inv.CustomerID != uuid.Nil {
			p, err := recordUpfrontPayment(ctx, repos, inv, paid, req)
			if err != nil {
				return err
			}
			paymentID = &p.ID
		}

		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		return appshared.RecordAudit(ctx, repos.Audit(), audit.ActionInvoiceConfirm, "invoice", inv.ID, req.Actor, "", map[string]any{
			"status":          inv.Status.String(),
			"total_reference": inv.TotalAmountReference.String(),
			"paid_reference":  inv.PaidAmountReference.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceTransition(ctx, inv.Status.String())
	if overridden {
		s.metrics.RecordCreditOverride(ctx)
	}
	s.logger.Info("invoice confirmed",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("status", inv.Status.String()),
		zap.String("total_reference", inv.TotalAmountReference.String()),
		zap.Bool("credit_override", overridden),
	)

	resp := ToInvoiceResponse(inv, time.Now())
	resp.CreditCheck = check
	resp.PaymentID = paymentID
	return &resp, nil
}

func recordOverride(ctx context.Context, repos appshared.TransactionalRepositories, customer *partner.Customer,
	inv *sales.Invoice, result credit.Result, req ConfirmInvoiceRequest) error {
	override, err := credit.NewLimitOverride(customer.ID, inv.ID, result, req.OverrideReason, req.Actor)
	if err != nil {
		return err
	}
	if err := repos.Overrides().Create(ctx, override); err != nil {
		return fmt.Errorf("record credit override: %w", err)
	}
	return appshared.RecordAudit(ctx, repos.Audit(), audit.ActionCreditOverride, "invoice", inv.ID, req.Actor, override.Reason, map[string]any{
		"customer_id":     customer.ID.String(),
		"override_amount": override.OverrideAmount.String(),
		"credit_limit":    override.CreditLimit.String(),
		"current_balance": override.CurrentBalance.String(),
	})
}

// bookReceivable raises the customer balance by the unpaid part of inv
func (s *InvoiceService) bookReceivable(ctx context.Context, repos appshared.TransactionalRepositories,
	customer *partner.Customer, inv *sales.Invoice, remainingRef decimal.Decimal, actor string) error {
	local, err := inv.LocalAmount(inv.RemainingAmount(), remainingRef)
	if err != nil {
		return err
	}
	return applyCustomerLedger(ctx, repos, customer, partner.LedgerChange{
		Reason:         partner.LedgerReasonInvoice,
		DeltaReference: remainingRef,
		Delta:          local,
		Snapshot:       inv.Snapshot(),
		Reference:      partner.DocumentRef{Type: "invoice", ID: inv.ID, Number: inv.InvoiceNumber},
		Actor:          actor,
	})
}

func applyCustomerLedger(ctx context.Context, repos appshared.TransactionalRepositories,
	customer *partner.Customer, change partner.LedgerChange) error {
	entry, err := customer.ApplyLedgerEntry(change)
	if err != nil {
		return err
	}
	if err := repos.Customers().Save(ctx, customer); err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	if err := repos.Ledger().Create(ctx, entry); err != nil {
		return fmt.Errorf("record ledger entry: %w", err)
	}
	return nil
}

// deductStock takes every line out of stock in base units. Lines are
// processed in product order so concurrent confirmations lock stock rows
// in the same sequence.
func (s *InvoiceService) deductStock(ctx context.Context, repos appshared.TransactionalRepositories, inv *sales.Invoice, actor string) error {
	for _, item := range itemsByProduct(inv.Items) {
		_, err := s.stock.DeductStock(ctx, repos, inventory.StockChange{
			ProductID:    item.ProductID,
			WarehouseID:  inv.WarehouseID,
			Quantity:     item.BaseQuantity(),
			UnitCost:     item.CostPrice,
			MovementType: inventory.MovementOut,
			SourceType:   inventory.SourceSale,
			Reference:    inventory.Reference{Type: "invoice", ID: inv.ID, Number: inv.InvoiceNumber},
			Actor:        actor,
		}, item.ProductName)
		if err != nil {
			return err
		}
	}
	return nil
}

func itemsByProduct(items []sales.InvoiceItem) []*sales.InvoiceItem {
	sorted := make([]*sales.InvoiceItem, len(items))
	for i := range items {
		sorted[i] = &items[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ProductID.String() < sorted[j].ProductID.String()
	})
	return sorted
}

// recordUpfrontPayment stores the payment collected at confirmation and
// allocates it to the invoice
func recordUpfrontPayment(ctx context.Context, repos appshared.TransactionalRepositories,
	inv *sales.Invoice, paid decimal.Decimal, req ConfirmInvoiceRequest) (*sales.Payment, error) {
	number, err := repos.Numbers().Next(ctx, shared.PrefixPayment)
	if err != nil {
		return nil, fmt.Errorf("generate payment number: %w", err)
	}
	method := req.PaymentMethod
	if method == "" {
		method = sales.PaymentMethodCash
	}
	p, err := sales.NewPayment(number, inv.CustomerID, inv.InvoiceDate, method, paid, inv.DocumentFX)
	if err != nil {
		return nil, err
	}
	p.LinkInvoice(inv.ID)
	p.ReceivedBy = req.Actor
	p.Notes = "collected on confirmation of " + inv.InvoiceNumber
	if err := repos.Payments().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	alloc := sales.NewPaymentAllocation(p.ID, inv, paid, inv.PaidAmountReference)
	if err := repos.Allocations().Save(ctx, alloc); err != nil {
		return nil, fmt.Errorf("save allocation: %w", err)
	}
	return p, nil
}

// CancelInvoice cancels an invoice. Posted invoices put their unreturned
// goods back in stock and, when part of them is still owed, reverse that
// part on the customer account.
func (s *InvoiceService) CancelInvoice(ctx context.Context, id uuid.UUID, req CancelInvoiceRequest) (*InvoiceResponse, error) {
	var inv *sales.Invoice
	err := s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		var err error
		inv, err = repos.Invoices().FindByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		outstandingRef, err := unreturnedRemainingReference(inv)
		if err != nil {
			return err
		}
		outstanding := inv.RemainingAmount()

		previous, err := inv.Cancel(req.Reason, req.Actor)
		if err != nil {
			return err
		}

		if previous != sales.InvoiceStatusDraft {
			if inv.CustomerID != uuid.Nil && outstandingRef.IsPositive() {
				customer, err := repos.Customers().FindByIDForUpdate(ctx, inv.CustomerID)
				if err != nil {
					return err
				}
				local, err := inv.LocalAmount(outstanding, outstandingRef)
				if err != nil {
					return err
				}
				err = applyCustomerLedger(ctx, repos, customer, partner.LedgerChange{
					Reason:         partner.LedgerReasonCancellation,
					DeltaReference: outstandingRef.Neg(),
					Delta:          local.Neg(),
					Snapshot:       inv.Snapshot(),
					Reference:      partner.DocumentRef{Type: "invoice", ID: inv.ID, Number: inv.InvoiceNumber},
					Actor:          req.Actor,
				})
				if err != nil {
					return err
				}
			}
			if err := s.restock(ctx, repos, inv, req); err != nil {
				return err
			}
		}

		if err := repos.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		return appshared.RecordAudit(ctx, repos.Audit(), audit.ActionInvoiceCancel, "invoice", inv.ID, req.Actor, req.Reason, map[string]any{
			"previous_status": previous.String(),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceTransition(ctx, inv.Status.String())
	s.logger.Info("invoice cancelled",
		zap.String("invoice_id", inv.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("reason", req.Reason),
	)
	resp := ToInvoiceResponse(inv, time.Now())
	return &resp, nil
}

// unreturnedRemainingReference is the part of the invoice still owed once
// goods already credited back through returns are taken off
func unreturnedRemainingReference(inv *sales.Invoice) (decimal.Decimal, error) {
	returned := decimal.Zero
	for i := range inv.Items {
		item := &inv.Items[i]
		if item.ReturnedQuantity.IsPositive() {
			returned = returned.Add(item.PriceQuantity(item.ReturnedQuantity).Total)
		}
	}
	remaining := inv.RemainingAmountReference()
	if returned.IsZero() || !inv.IsFrozen() {
		return remaining, nil
	}
	returnedRef, err := inv.ToReference(returned)
	if err != nil {
		return decimal.Zero, err
	}
	out := remaining.Sub(returnedRef.Round(4))
	if out.IsNegative() {
		return decimal.Zero, nil
	}
	return out, nil
}

func (s *InvoiceService) restock(ctx context.Context, repos appshared.TransactionalRepositories, inv *sales.Invoice, req CancelInvoiceRequest) error {
	for _, item := range itemsByProduct(inv.Items) {
		qty := inventory.ToBaseQuantity(item.ReturnableQuantity(), item.ConversionFactor)
		if !qty.IsPositive() {
			continue
		}
		_, err := s.stock.AddStock(ctx, repos, inventory.StockChange{
			ProductID:    item.ProductID,
			WarehouseID:  inv.WarehouseID,
			Quantity:     qty,
			UnitCost:     item.CostPrice,
			MovementType: inventory.MovementAdjustment,
			SourceType:   inventory.SourceAdjustment,
			Reference:    inventory.Reference{Type: "invoice", ID: inv.ID, Number: inv.InvoiceNumber},
			Notes:        "invoice cancelled: " + req.Reason,
			Actor:        req.Actor,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// OpenInvoices lists a customer's unpaid credit invoices oldest first
func (s *InvoiceService) OpenInvoices(ctx context.Context, customerID uuid.UUID) ([]OpenInvoiceResponse, error) {
	if _, err := s.customers.FindByID(ctx, customerID); err != nil {
		return nil, err
	}
	invoices, err := s.invoices.FindOpenCredit(ctx, customerID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]OpenInvoiceResponse, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		out = append(out, OpenInvoiceResponse{
			ID:                       inv.ID,
			InvoiceNumber:            inv.InvoiceNumber,
			InvoiceDate:              inv.InvoiceDate,
			DueDate:                  inv.DueDate,
			Status:                   inv.Status.String(),
			TransactionCurrency:      inv.TransactionCurrency.String(),
			TotalAmount:              inv.TotalAmount,
			PaidAmount:               inv.PaidAmount,
			RemainingAmount:          inv.RemainingAmount(),
			TotalAmountReference:     inv.TotalAmountReference,
			RemainingAmountReference: inv.RemainingAmountReference(),
			IsOverdue:                inv.IsOverdue(now),
		})
	}
	return out, nil
}
