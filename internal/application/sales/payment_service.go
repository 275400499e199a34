package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SnapshotResolver resolves the FX snapshot a new document is frozen with
type SnapshotResolver interface {
	Resolve(ctx context.Context, in appfx.SnapshotInput, docDate time.Time) (fx.Snapshot, error)
}

// PaymentService records customer payments and allocates them
type PaymentService struct {
	scope    appshared.TransactionScope
	payments sales.PaymentRepository
	engine   *AllocationEngine
	rates    SnapshotResolver
	logger   *zap.Logger
}

// NewPaymentService creates a PaymentService
func NewPaymentService(scope appshared.TransactionScope, payments sales.PaymentRepository,
	engine *AllocationEngine, rates SnapshotResolver, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		scope:    scope,
		payments: payments,
		engine:   engine,
		rates:    rates,
		logger:   logger,
	}
}

// GetByID returns a payment
func (s *PaymentService) GetByID(ctx context.Context, id uuid.UUID) (*PaymentResponse, error) {
	p, err := s.payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToPaymentResponse(p)
	return &resp, nil
}

// ListPayments returns one page of payments, newest payment date first by default
func (s *PaymentService) ListPayments(ctx context.Context, req ListPaymentsRequest) (*shared.Paginated[PaymentResponse], error) {
	filter := sales.PaymentFilter{
		Filter: pageFilter(req.Page, req.PageSize, req.OrderBy, req.OrderDir),
	}
	var err error
	if filter.CustomerID, err = parseCustomerFilter(req.CustomerID); err != nil {
		return nil, err
	}
	if filter.From, filter.To, err = parseDateRange(req.From, req.To); err != nil {
		return nil, err
	}

	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]PaymentResponse, len(payments))
	for i := range payments {
		items[i] = ToPaymentResponse(&payments[i])
	}
	page := shared.NewPaginated(items, total, filter.Filter)
	return &page, nil
}

// ReceivePayment records money received from a customer, lowers the
// customer balance by its reference amount and optionally allocates it, all
// in one transaction.
func (s *PaymentService) ReceivePayment(ctx context.Context, req ReceivePaymentRequest) (*PaymentResponse, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ReceivePayment")
	defer span.End()

	mode, err := receiveMode(req)
	if err != nil {
		return nil, err
	}
	date := time.Now()
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		date = *req.PaymentDate
	}
	doc, err := fx.NewDocumentFX(req.Currency)
	if err != nil {
		return nil, err
	}
	snapshot, err := s.rates.Resolve(ctx, req.FX, date)
	if err != nil {
		return nil, err
	}
	if err := doc.Freeze(snapshot); err != nil {
		return nil, err
	}

	var (
		payment *sales.Payment
		result  *AllocationResult
	)
	err = s.scope.Execute(ctx, func(repos appshared.TransactionalRepositories) error {
		number := strings.TrimSpace(req.PaymentNumber)
		if number == "" {
			number, err = repos.Numbers().Next(ctx, shared.PrefixPayment)
			if err != nil {
				return fmt.Errorf("generate payment number: %w", err)
			}
		}
		payment, err = sales.NewPayment(number, req.CustomerID, date, req.PaymentMethod, req.Amount, doc)
		if err != nil {
			return err
		}
		payment.Reference = req.Reference
		payment.Notes = req.Notes
		payment.ReceivedBy = req.Actor
		if req.InvoiceID != nil {
			payment.LinkInvoice(*req.InvoiceID)
		}
		if err := repos.Payments().Save(ctx, payment); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}

		switch mode {
		case receiveAuto:
			result, err = s.engine.allocateInTx(ctx, repos, payment, AllocateRequest{
				PaymentID: payment.ID,
				Mode:      sales.AllocationModeAuto,
				Actor:     req.Actor,
			})
		case receiveManual:
			result, err = s.engine.allocateInTx(ctx, repos, payment, AllocateRequest{
				PaymentID:      payment.ID,
				Mode:           sales.AllocationModeManual,
				AmountCurrency: req.AmountCurrency,
				Lines:          req.Allocations,
				Actor:          req.Actor,
			})
		case receiveLegacy:
			result, err = s.allocateToInvoice(ctx, repos, payment, req)
		}
		if err != nil {
			return err
		}

		customer, err := repos.Customers().FindByIDForUpdate(ctx, payment.CustomerID)
		if err != nil {
			return err
		}
		local, err := payment.LocalAmount(payment.Amount, payment.AmountReference)
		if err != nil {
			return err
		}
		entry, err := customer.ApplyLedgerEntry(partner.LedgerChange{
			Reason:         partner.LedgerReasonPayment,
			DeltaReference: payment.AmountReference.Neg(),
			Delta:          local.Neg(),
			Snapshot:       payment.Snapshot(),
			Reference:      partner.DocumentRef{Type: "payment", ID: payment.ID, Number: payment.PaymentNumber},
			Actor:          req.Actor,
		})
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
	})
	if err != nil {
		return nil, err
	}

	if result != nil {
		s.engine.metrics.RecordAllocation(ctx, string(mode), len(result.Allocations), result.TotalAllocated)
	}
	s.logger.Info("payment received",
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("customer_id", payment.CustomerID.String()),
		zap.String("amount_reference", payment.AmountReference.String()),
		zap.String("allocation", string(mode)),
	)

	resp := ToPaymentResponse(payment)
	resp.Allocation = result
	return &resp, nil
}

type receiveAllocation string

const (
	receiveNone   receiveAllocation = "none"
	receiveAuto   receiveAllocation = "auto"
	receiveManual receiveAllocation = "manual"
	receiveLegacy receiveAllocation = "invoice"
)

func receiveMode(req ReceivePaymentRequest) (receiveAllocation, error) {
	if !req.Amount.IsPositive() {
		return "", shared.NewValidationError("amount", "payment amount must be positive")
	}
	modes := make([]receiveAllocation, 0, 1)
	if req.AutoAllocate {
		modes = append(modes, receiveAuto)
	}
	if len(req.Allocations) > 0 {
		modes = append(modes, receiveManual)
	}
	if req.InvoiceID != nil {
		modes = append(modes, receiveLegacy)
	}
	switch len(modes) {
	case 0:
		return receiveNone, nil
	case 1:
		if req.AmountCurrency != "" && !req.AmountCurrency.IsValid() {
			return "", shared.NewValidationError("amount_currency", "amount currency must be transaction or reference")
		}
		return modes[0], nil
	default:
		return "", shared.NewValidationError("allocations",
			"use only one of auto_allocate, allocations or invoice_id")
	}
}

// allocateToInvoice is the single-invoice mode: the payment settles as much
// of the linked invoice as it can.
func (s *PaymentService) allocateToInvoice(ctx context.Context, repos appshared.TransactionalRepositories,
	payment *sales.Payment, req ReceivePaymentRequest) (*AllocationResult, error) {
	inv, err := repos.Invoices().FindByIDForUpdate(ctx, *req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := checkTarget(payment, inv); err != nil {
		return nil, err
	}
	amountRef := decimal.Min(payment.AmountReference, inv.RemainingAmountReference())
	if !amountRef.IsPositive() {
		return &AllocationResult{PaymentID: payment.ID, RemainingAmount: payment.AmountReference}, nil
	}
	return s.engine.allocateInTx(ctx, repos, payment, AllocateRequest{
		PaymentID:      payment.ID,
		Mode:           sales.AllocationModeManual,
		AmountCurrency: sales.AmountInReference,
		Lines:          []AllocationLineRequest{{InvoiceID: inv.ID, Amount: amountRef}},
		Actor:          req.Actor,
	})
}
