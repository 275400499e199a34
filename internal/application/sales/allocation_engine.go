// Package sales orchestrates invoice, payment and allocation workflows.
package sales

import (
	"context"
	"errors"
	"fmt"
	"sort"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/erp/settlement/internal/application/sales")

// AllocationEngine distributes payments over open credit invoices. Every
// call runs in a single transaction: the payment row is locked first, then
// the target invoices in ascending id order.
type AllocationEngine struct {
	scope   appshared.TransactionScope
	metrics appshared.Metrics
	logger  *zap.Logger
}

// NewAllocationEngine creates an AllocationEngine
func NewAllocationEngine(scope appshared.TransactionScope, logger *zap.Logger) *AllocationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationEngine{
		scope:   scope,
		metrics: appshared.NopMetrics{},
		logger:  logger,
	}
}

// SetMetrics sets the metrics sink
func (e *AllocationEngine) SetMetrics(m appshared.Metrics) {
	if m != nil {
		e.metrics = m
	}
}

// Allocate distributes the unallocated part of a payment
func (e *AllocationEngine) Allocate(ctx context.Context, req AllocateRequest) (*AllocationResult, error) {
	ctx, span := tracer.Start(ctx, "AllocationEngine.Allocate")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.id", req.PaymentID.String()),
		attribute.String("allocation.mode", string(req.Mode)),
	)

	if err := validateAllocateRequest(req); err != nil {
		return nil, err
	}

	var result *AllocationResult
	err := e.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		payment, err := repos.Payments().FindByIDForUpdate(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		result, err = e.allocateInTx(ctx, repos, payment, req)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	e.metrics.RecordAllocation(ctx, string(req.Mode), len(result.Allocations), result.TotalAllocated)
	span.SetAttributes(
		attribute.Int("allocation.invoices", len(result.Allocations)),
		attribute.String("allocation.total_reference", result.TotalAllocated.String()),
	)
	e.logger.Info("payment allocated",
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("mode", string(req.Mode)),
		zap.Int("invoices", len(result.Allocations)),
		zap.String("total_allocated", result.TotalAllocated.String()),
		zap.String("remaining", result.RemainingAmount.String()),
	)
	return result, nil
}

func validateAllocateRequest(req AllocateRequest) error {
	if req.PaymentID == uuid.Nil {
		return shared.NewValidationError("payment_id", "payment is required")
	}
	if !req.Mode.IsValid() {
		return shared.NewValidationError("mode", "allocation mode must be manual or auto")
	}
	if req.AmountCurrency != "" && !req.AmountCurrency.IsValid() {
		return shared.NewValidationError("amount_currency", "amount currency must be transaction or reference")
	}
	if req.Mode == sales.AllocationModeManual && len(req.Lines) == 0 {
		return shared.NewValidationError("allocations", "at least one allocation is required in manual mode")
	}
	return nil
}

// allocateInTx runs an allocation against a payment the caller has already
// locked inside repos' transaction.
func (e *AllocationEngine) allocateInTx(ctx context.Context, repos appshared.TransactionalRepositories,
	payment *sales.Payment, req AllocateRequest) (*AllocationResult, error) {
	allocated, err := repos.Allocations().SumReferenceByPayment(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("sum allocations: %w", err)
	}
	available, err := payment.Unallocated(allocated)
	if err != nil {
		return nil, err
	}
	if !available.IsPositive() {
		return nil, shared.NewValidationError("amount",
			fmt.Sprintf("payment %s has no unallocated amount left", payment.PaymentNumber))
	}

	var (
		invoices map[uuid.UUID]*sales.Invoice
		plan     *sales.AllocationPlan
	)
	switch req.Mode {
	case sales.AllocationModeManual:
		invoices, plan, err = planManual(ctx, repos, payment, available, req)
	default:
		invoices, plan, err = planAuto(ctx, repos, payment, available)
	}
	if err != nil {
		return nil, err
	}

	result := &AllocationResult{
		PaymentID:      payment.ID,
		Allocations:    make([]sales.PaymentAllocation, 0, len(plan.Lines)),
		TotalAllocated: decimal.Zero,
	}
	for _, line := range plan.Lines {
		inv := invoices[line.InvoiceID]
		alloc, booked, err := applyLine(ctx, repos, payment, inv, line.AmountReference)
		if err != nil {
			return nil, err
		}
		result.Allocations = append(result.Allocations, *alloc)
		result.TotalAllocated = result.TotalAllocated.Add(booked)
		if inv.Status == sales.InvoiceStatusPaid {
			result.InvoicesPaid++
		} else {
			result.InvoicesPartial++
		}
	}
	result.RemainingAmount = available.Sub(result.TotalAllocated)

	if len(result.Allocations) > 0 {
		err := appshared.RecordAudit(ctx, repos.Audit(), audit.ActionPaymentAllocate, "payment", payment.ID, req.Actor, "", map[string]any{
			"mode":            string(req.Mode),
			"invoices":        len(result.Allocations),
			"total_reference": result.TotalAllocated.String(),
		})
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// planManual locks the requested invoices and validates each line
func planManual(ctx context.Context, repos appshared.TransactionalRepositories, payment *sales.Payment,
	available decimal.Decimal, req AllocateRequest) (map[uuid.UUID]*sales.Invoice, *sales.AllocationPlan, error) {
	ids := make([]uuid.UUID, 0, len(req.Lines))
	seen := make(map[uuid.UUID]bool, len(req.Lines))
	for _, l := range req.Lines {
		if !l.Amount.IsPositive() || seen[l.InvoiceID] {
			continue
		}
		seen[l.InvoiceID] = true
		ids = append(ids, l.InvoiceID)
	}
	if len(ids) == 0 {
		return nil, nil, shared.NewValidationError("allocations", "at least one allocation with a positive amount is required")
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	locked, err := repos.Invoices().FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("lock invoices: %w", err)
	}
	invoices := make(map[uuid.UUID]*sales.Invoice, len(locked))
	for i := range locked {
		invoices[locked[i].ID] = &locked[i]
	}

	targets := make([]sales.OpenInvoice, 0, len(ids))
	for _, id := range ids {
		inv, ok := invoices[id]
		if !ok {
			return nil, nil, shared.NewValidationError("invoice_id", fmt.Sprintf("invoice %s not found", id))
		}
		if err := checkTarget(payment, inv); err != nil {
			return nil, nil, err
		}
		targets = append(targets, inv.AllocationTarget())
	}

	currency := req.AmountCurrency
	if currency == "" {
		currency = sales.AmountInTransaction
	}
	lines := make([]sales.ManualLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		if !l.Amount.IsPositive() {
			continue
		}
		amountRef := l.Amount
		if currency == sales.AmountInTransaction {
			amountRef, err = invoices[l.InvoiceID].ToReference(l.Amount)
			if err != nil {
				return nil, nil, err
			}
		}
		lines = append(lines, sales.ManualLine{InvoiceID: l.InvoiceID, AmountReference: amountRef.Round(4)})
	}

	plan, err := sales.PlanManual(available, lines, targets)
	if err != nil {
		return nil, nil, err
	}
	return invoices, plan, nil
}

// planAuto locks the customer's open credit invoices and plans oldest first
func planAuto(ctx context.Context, repos appshared.TransactionalRepositories, payment *sales.Payment,
	available decimal.Decimal) (map[uuid.UUID]*sales.Invoice, *sales.AllocationPlan, error) {
	locked, err := repos.Invoices().FindOpenCreditForUpdate(ctx, payment.CustomerID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock open invoices: %w", err)
	}
	invoices := make(map[uuid.UUID]*sales.Invoice, len(locked))
	targets := make([]sales.OpenInvoice, 0, len(locked))
	for i := range locked {
		inv := &locked[i]
		if !inv.IsFinalized() {
			return nil, nil, shared.NewConfigurationError("fx.snapshot",
				fmt.Sprintf("invoice %s has no reference total; finalize its exchange rates first", inv.InvoiceNumber))
		}
		invoices[inv.ID] = inv
		targets = append(targets, inv.AllocationTarget())
	}
	plan, err := sales.PlanFIFO(available, targets)
	if err != nil {
		return nil, nil, err
	}
	return invoices, plan, nil
}

// checkTarget verifies that payment may be allocated to inv
func checkTarget(payment *sales.Payment, inv *sales.Invoice) error {
	if inv.CustomerID != payment.CustomerID {
		return shared.NewValidationError("invoice_id",
			fmt.Sprintf("invoice %s belongs to another customer", inv.InvoiceNumber))
	}
	if inv.InvoiceType != sales.InvoiceTypeCredit {
		return shared.NewValidationError("invoice_id",
			fmt.Sprintf("invoice %s is not a credit invoice", inv.InvoiceNumber))
	}
	if !inv.Status.IsOpen() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Invoice %s in %s status cannot receive payments", inv.InvoiceNumber, inv.Status))
	}
	if !inv.IsFinalized() {
		return shared.NewConfigurationError("fx.snapshot",
			fmt.Sprintf("invoice %s has no reference total; finalize its exchange rates first", inv.InvoiceNumber))
	}
	return nil
}

// applyLine books amountRef against inv and upserts the (payment, invoice)
// row with the amount the invoice actually accepted, which it also returns
func applyLine(ctx context.Context, repos appshared.TransactionalRepositories, payment *sales.Payment,
	inv *sales.Invoice, amountRef decimal.Decimal) (*sales.PaymentAllocation, decimal.Decimal, error) {
	amount, amountRef, err := inv.ApplyPayment(amountRef)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if err := repos.Invoices().Save(ctx, inv); err != nil {
		return nil, decimal.Zero, fmt.Errorf("save invoice %s: %w", inv.InvoiceNumber, err)
	}

	alloc, err := repos.Allocations().FindByPair(ctx, payment.ID, inv.ID)
	switch {
	case err == nil:
		alloc.Increment(amount, amountRef)
	case errors.Is(err, shared.ErrNotFound):
		alloc = sales.NewPaymentAllocation(payment.ID, inv, amount, amountRef)
	default:
		return nil, decimal.Zero, fmt.Errorf("load allocation: %w", err)
	}
	if err := repos.Allocations().Save(ctx, alloc); err != nil {
		return nil, decimal.Zero, fmt.Errorf("save allocation: %w", err)
	}
	return alloc, amountRef, nil
}
