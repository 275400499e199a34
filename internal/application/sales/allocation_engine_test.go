package sales

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// In-memory unit of work
// =============================================================================

// memStore keeps committed state; a failed Execute restores it
type memStore struct {
	invoices    map[uuid.UUID]sales.Invoice
	payments    map[uuid.UUID]sales.Payment
	allocations map[[2]uuid.UUID]sales.PaymentAllocation
	audit       []*audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		invoices:    make(map[uuid.UUID]sales.Invoice),
		payments:    make(map[uuid.UUID]sales.Payment),
		allocations: make(map[[2]uuid.UUID]sales.PaymentAllocation),
	}
}

func (s *memStore) Execute(ctx context.Context, fn func(repos appshared.TransactionalRepositories) error) error {
	invoices := cloneMap(s.invoices)
	payments := cloneMap(s.payments)
	allocations := cloneMap(s.allocations)
	auditLen := len(s.audit)
	if err := fn(&memRepos{store: s}); err != nil {
		s.invoices, s.payments, s.allocations = invoices, payments, allocations
		s.audit = s.audit[:auditLen]
		return err
	}
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) invoice(id uuid.UUID) sales.Invoice {
	return s.invoices[id]
}

// memRepos serves only the repositories the allocation engine touches
type memRepos struct {
	appshared.TransactionalRepositories
	store *memStore
}

func (r *memRepos) Invoices() sales.InvoiceRepository       { return memInvoices{store: r.store} }
func (r *memRepos) Payments() sales.PaymentRepository       { return memPayments{store: r.store} }
func (r *memRepos) Allocations() sales.AllocationRepository { return memAllocations{store: r.store} }
func (r *memRepos) Audit() audit.Sink                       { return memAudit{r.store} }

type memInvoices struct {
	sales.InvoiceRepository
	store *memStore
}

func (m memInvoices) FindByIDsForUpdate(_ context.Context, ids []uuid.UUID) ([]sales.Invoice, error) {
	out := make([]sales.Invoice, 0, len(ids))
	for _, id := range ids {
		if inv, ok := m.store.invoices[id]; ok {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m memInvoices) FindOpenCreditForUpdate(_ context.Context, customerID uuid.UUID) ([]sales.Invoice, error) {
	out := make([]sales.Invoice, 0)
	for _, inv := range m.store.invoices {
		if inv.CustomerID == customerID && inv.IsAllocatable() {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (m memInvoices) Save(_ context.Context, inv *sales.Invoice) error {
	m.store.invoices[inv.ID] = *inv
	return nil
}

type memPayments struct {
	sales.PaymentRepository
	store *memStore
}

func (m memPayments) FindByIDForUpdate(_ context.Context, id uuid.UUID) (*sales.Payment, error) {
	p, ok := m.store.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

type memAllocations struct {
	sales.AllocationRepository
	store *memStore
}

func (m memAllocations) FindByPair(_ context.Context, paymentID, invoiceID uuid.UUID) (*sales.PaymentAllocation, error) {
	a, ok := m.store.allocations[[2]uuid.UUID{paymentID, invoiceID}]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (m memAllocations) SumReferenceByPayment(_ context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for key, a := range m.store.allocations {
		if key[0] == paymentID {
			total = total.Add(a.AmountReference)
		}
	}
	return total, nil
}

func (m memAllocations) Save(_ context.Context, a *sales.PaymentAllocation) error {
	m.store.allocations[[2]uuid.UUID{a.PaymentID, a.InvoiceID}] = *a
	return nil
}

type memAudit struct{ store *memStore }

func (m memAudit) Record(_ context.Context, e *audit.Entry) error {
	m.store.audit = append(m.store.audit, e)
	return nil
}

type recordedAllocation struct {
	mode     string
	invoices int
	total    decimal.Decimal
}

type fakeMetrics struct {
	appshared.NopMetrics
	allocations []recordedAllocation
}

func (f *fakeMetrics) RecordAllocation(_ context.Context, mode string, invoices int, total decimal.Decimal) {
	f.allocations = append(f.allocations, recordedAllocation{mode, invoices, total})
}

// =============================================================================
// Fixtures
// =============================================================================

var engineSnapshot = fx.Snapshot{
	RateDate: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	RateOld:  decimal.NewFromInt(15000),
	RateNew:  decimal.NewFromInt(150),
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func addInvoice(t *testing.T, store *memStore, customerID uuid.UUID, number string, day int,
	currency valueobject.Currency, price string) uuid.UUID {
	t.Helper()
	inv, err := sales.NewInvoice(number, sales.InvoiceTypeCredit, customerID, "Acme", uuid.New(),
		time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC), currency)
	require.NoError(t, err)
	_, err = inv.AddItem(sales.ItemInput{
		ProductID:   uuid.New(),
		ProductName: "Widget",
		Quantity:    decimal.NewFromInt(1),
		UnitPrice:   dec(price),
	})
	require.NoError(t, err)
	require.NoError(t, inv.FinalizeFX(engineSnapshot))
	_, err = inv.Confirm(nil)
	require.NoError(t, err)
	store.invoices[inv.ID] = *inv
	return inv.ID
}

func addPayment(t *testing.T, store *memStore, customerID uuid.UUID, amount string) uuid.UUID {
	t.Helper()
	doc, err := fx.NewDocumentFX(valueobject.USD)
	require.NoError(t, err)
	p, err := sales.NewPayment("PAY-2025-00001", customerID, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC),
		sales.PaymentMethodCash, dec(amount), doc)
	require.NoError(t, err)
	store.payments[p.ID] = *p
	return p.ID
}

func manual(paymentID uuid.UUID, lines ...AllocationLineRequest) AllocateRequest {
	return AllocateRequest{PaymentID: paymentID, Mode: sales.AllocationModeManual, Lines: lines, Actor: "cashier"}
}

// =============================================================================
// Tests
// =============================================================================

func TestAllocationEngine_ManualPartial(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	invID := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.USD, "80")
	payID := addPayment(t, store, customer, "100")
	metrics := &fakeMetrics{}
	engine := NewAllocationEngine(store, nil)
	engine.SetMetrics(metrics)

	result, err := engine.Allocate(context.Background(), manual(payID, AllocationLineRequest{InvoiceID: invID, Amount: dec("50")}))
	require.NoError(t, err)

	assert.True(t, dec("50").Equal(result.TotalAllocated))
	assert.True(t, dec("50").Equal(result.RemainingAmount))
	assert.Equal(t, 0, result.InvoicesPaid)
	assert.Equal(t, 1, result.InvoicesPartial)

	inv := store.invoice(invID)
	assert.Equal(t, sales.InvoiceStatusPartial, inv.Status)
	assert.True(t, dec("30").Equal(inv.RemainingAmountReference()))

	require.Len(t, store.audit, 1)
	assert.Equal(t, audit.ActionPaymentAllocate, store.audit[0].Action)
	assert.Equal(t, "cashier", store.audit[0].Actor)

	require.Len(t, metrics.allocations, 1)
	assert.Equal(t, "manual", metrics.allocations[0].mode)
	assert.Equal(t, 1, metrics.allocations[0].invoices)
}

func TestAllocationEngine_ManualExceedsRemaining(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	invID := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.USD, "80")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)

	_, err := engine.Allocate(context.Background(), manual(payID, AllocationLineRequest{InvoiceID: invID, Amount: dec("95")}))

	var exceeds *shared.AllocationExceedsRemainingError
	require.ErrorAs(t, err, &exceeds)
	assert.Equal(t, "INV-2025-00001", exceeds.InvoiceNumber)
	assert.True(t, dec("80").Equal(exceeds.Remaining))
	assert.True(t, dec("95").Equal(exceeds.Requested))

	inv := store.invoice(invID)
	assert.Equal(t, sales.InvoiceStatusConfirmed, inv.Status)
	assert.True(t, inv.PaidAmountReference.IsZero())
	assert.Empty(t, store.allocations)
	assert.Empty(t, store.audit)
}

func TestAllocationEngine_ManualWithinToleranceBooksRemaining(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	invID := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.USD, "80")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)

	result, err := engine.Allocate(context.Background(), manual(payID, AllocationLineRequest{InvoiceID: invID, Amount: dec("80.01")}))
	require.NoError(t, err)

	assert.True(t, dec("80").Equal(result.TotalAllocated))
	assert.True(t, dec("20").Equal(result.RemainingAmount))
	assert.Equal(t, 1, result.InvoicesPaid)

	inv := store.invoice(invID)
	assert.Equal(t, sales.InvoiceStatusPaid, inv.Status)
	alloc := store.allocations[[2]uuid.UUID{payID, invID}]
	assert.True(t, inv.PaidAmountReference.Equal(alloc.AmountReference), "allocation rows add up to the paid amount")
	assert.True(t, dec("80").Equal(alloc.AmountReference))
}

func TestAllocationEngine_ManualTotalExceedsPayment(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	first := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.USD, "80")
	second := addInvoice(t, store, customer, "INV-2025-00002", 11, valueobject.USD, "80")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)

	_, err := engine.Allocate(context.Background(), manual(payID,
		AllocationLineRequest{InvoiceID: first, Amount: dec("60")},
		AllocationLineRequest{InvoiceID: second, Amount: dec("60")},
	))

	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)
	assert.Equal(t, sales.InvoiceStatusConfirmed, store.invoice(first).Status)
	assert.Equal(t, sales.InvoiceStatusConfirmed, store.invoice(second).Status)
}

func TestAllocationEngine_AutoOldestFirst(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	mid := addInvoice(t, store, customer, "INV-2025-00002", 5, valueobject.USD, "60")
	oldest := addInvoice(t, store, customer, "INV-2025-00001", 1, valueobject.USD, "30")
	newest := addInvoice(t, store, customer, "INV-2025-00003", 10, valueobject.USD, "50")
	other := addInvoice(t, store, uuid.New(), "INV-2025-00004", 1, valueobject.USD, "40")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)

	result, err := engine.Allocate(context.Background(), AllocateRequest{PaymentID: payID, Mode: sales.AllocationModeAuto})
	require.NoError(t, err)

	require.Len(t, result.Allocations, 3)
	assert.Equal(t, oldest, result.Allocations[0].InvoiceID)
	assert.Equal(t, mid, result.Allocations[1].InvoiceID)
	assert.Equal(t, newest, result.Allocations[2].InvoiceID)
	assert.Equal(t, 2, result.InvoicesPaid)
	assert.Equal(t, 1, result.InvoicesPartial)
	assert.True(t, dec("100").Equal(result.TotalAllocated))
	assert.True(t, result.RemainingAmount.IsZero())

	assert.Equal(t, sales.InvoiceStatusPaid, store.invoice(oldest).Status)
	assert.Equal(t, sales.InvoiceStatusPaid, store.invoice(mid).Status)
	newestInv := store.invoice(newest)
	assert.True(t, dec("40").Equal(newestInv.RemainingAmountReference()))
	assert.Equal(t, sales.InvoiceStatusConfirmed, store.invoice(other).Status)
}

func TestAllocationEngine_AutoLeavesSurplusUnallocated(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	invID := addInvoice(t, store, customer, "INV-2025-00001", 1, valueobject.USD, "30")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)

	result, err := engine.Allocate(context.Background(), AllocateRequest{PaymentID: payID, Mode: sales.AllocationModeAuto})
	require.NoError(t, err)
	assert.True(t, dec("70").Equal(result.RemainingAmount))
	assert.Equal(t, sales.InvoiceStatusPaid, store.invoice(invID).Status)

	t.Run("nothing open allocates nothing", func(t *testing.T) {
		again, err := engine.Allocate(context.Background(), AllocateRequest{PaymentID: payID, Mode: sales.AllocationModeAuto})
		require.NoError(t, err)
		assert.Empty(t, again.Allocations)
		assert.True(t, dec("70").Equal(again.RemainingAmount))
		assert.Len(t, store.audit, 1)
	})
}

func TestAllocationEngine_RepeatedPairIncrementsOneRow(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	invID := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.USD, "80")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)
	ctx := context.Background()

	_, err := engine.Allocate(ctx, manual(payID, AllocationLineRequest{InvoiceID: invID, Amount: dec("20")}))
	require.NoError(t, err)
	_, err = engine.Allocate(ctx, manual(payID,
		AllocationLineRequest{InvoiceID: invID, Amount: dec("10")},
		AllocationLineRequest{InvoiceID: invID, Amount: dec("20")},
	))
	require.NoError(t, err)

	require.Len(t, store.allocations, 1)
	alloc := store.allocations[[2]uuid.UUID{payID, invID}]
	assert.True(t, dec("50").Equal(alloc.AmountReference))
	inv := store.invoice(invID)
	assert.True(t, dec("30").Equal(inv.RemainingAmountReference()))
}

func TestAllocationEngine_FullyAllocatedPayment(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	first := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.USD, "80")
	second := addInvoice(t, store, customer, "INV-2025-00002", 11, valueobject.USD, "80")
	payID := addPayment(t, store, customer, "50")
	engine := NewAllocationEngine(store, nil)
	ctx := context.Background()

	_, err := engine.Allocate(ctx, manual(payID, AllocationLineRequest{InvoiceID: first, Amount: dec("50")}))
	require.NoError(t, err)

	_, err = engine.Allocate(ctx, manual(payID, AllocationLineRequest{InvoiceID: second, Amount: dec("1")}))
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)
	assert.Equal(t, sales.InvoiceStatusConfirmed, store.invoice(second).Status)
}

func TestAllocationEngine_AmountCurrency(t *testing.T) {
	customer := uuid.New()

	tests := []struct {
		name        string
		currency    sales.AmountCurrency
		amount      string
		wantRef     string
		wantInvoice string
	}{
		{"defaults to the invoice currency", "", "750000", "50", "750000"},
		{"transaction currency", sales.AmountInTransaction, "300000", "20", "300000"},
		{"reference currency", sales.AmountInReference, "25", "25", "375000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			invID := addInvoice(t, store, customer, "INV-2025-00001", 10, valueobject.SYPOld, "1500000")
			payID := addPayment(t, store, customer, "100")
			engine := NewAllocationEngine(store, nil)

			req := manual(payID, AllocationLineRequest{InvoiceID: invID, Amount: dec(tt.amount)})
			req.AmountCurrency = tt.currency
			result, err := engine.Allocate(context.Background(), req)
			require.NoError(t, err)

			require.Len(t, result.Allocations, 1)
			assert.True(t, dec(tt.wantRef).Equal(result.Allocations[0].AmountReference),
				"reference %s", result.Allocations[0].AmountReference)
			assert.True(t, dec(tt.wantInvoice).Equal(result.Allocations[0].Amount),
				"amount %s", result.Allocations[0].Amount)
		})
	}
}

func TestAllocationEngine_RejectsBadTargets(t *testing.T) {
	store := newMemStore()
	customer := uuid.New()
	foreign := addInvoice(t, store, uuid.New(), "INV-2025-00001", 10, valueobject.USD, "80")
	paid := addInvoice(t, store, customer, "INV-2025-00002", 10, valueobject.USD, "10")
	payID := addPayment(t, store, customer, "100")
	engine := NewAllocationEngine(store, nil)
	ctx := context.Background()

	_, err := engine.Allocate(ctx, manual(payID, AllocationLineRequest{InvoiceID: paid, Amount: dec("10")}))
	require.NoError(t, err)

	tests := []struct {
		name  string
		line  AllocationLineRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "invoice of another customer",
			line: AllocationLineRequest{InvoiceID: foreign, Amount: dec("10")},
			check: func(t *testing.T, err error) {
				var verr *shared.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "invoice_id", verr.Field)
			},
		},
		{
			name: "unknown invoice",
			line: AllocationLineRequest{InvoiceID: uuid.New(), Amount: dec("10")},
			check: func(t *testing.T, err error) {
				var verr *shared.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "invoice_id", verr.Field)
			},
		},
		{
			name: "paid invoice",
			line: AllocationLineRequest{InvoiceID: paid, Amount: dec("1")},
			check: func(t *testing.T, err error) {
				assert.True(t, errors.Is(err, shared.ErrInvalidState), "got %v", err)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Allocate(ctx, manual(payID, tt.line))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAllocationEngine_RequestValidation(t *testing.T) {
	engine := NewAllocationEngine(newMemStore(), nil)
	ctx := context.Background()
	payID := uuid.New()

	tests := []struct {
		name  string
		req   AllocateRequest
		field string
	}{
		{"missing payment", AllocateRequest{Mode: sales.AllocationModeAuto}, "payment_id"},
		{"unknown mode", AllocateRequest{PaymentID: payID, Mode: "sideways"}, "mode"},
		{"unknown amount currency", AllocateRequest{PaymentID: payID, Mode: sales.AllocationModeAuto, AmountCurrency: "euro"}, "amount_currency"},
		{"manual without lines", AllocateRequest{PaymentID: payID, Mode: sales.AllocationModeManual}, "allocations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Allocate(ctx, tt.req)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	t.Run("unknown payment", func(t *testing.T) {
		_, err := engine.Allocate(ctx, AllocateRequest{PaymentID: payID, Mode: sales.AllocationModeAuto})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}
