package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	appinventory "github.com/erp/settlement/internal/application/inventory"
	apppartner "github.com/erp/settlement/internal/application/partner"
	appsales "github.com/erp/settlement/internal/application/sales"
	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var rateDay = testutil.Day(2025, time.January, 10)

type postgresHarness struct {
	t         *testing.T
	ctx       context.Context
	db        *TestDB
	scope     *persistence.GormTransactionScope
	stock     *appinventory.StockLedger
	customers *apppartner.CustomerService
	invoices  *appsales.InvoiceService
	payments  *appsales.PaymentService
	engine    *appsales.AllocationEngine
	warehouse *partner.Warehouse
	product   *inventory.Product
}

func newPostgresHarness(t *testing.T) *postgresHarness {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tdb := NewTestDB(t)
	db := tdb.DB
	ctx := context.Background()

	scope := persistence.NewGormTransactionScope(db)
	rates := appfx.NewRateService(persistence.NewGormDailyRateRepository(db), nil, appfx.Config{Policy: fx.PolicyStrict}, nil)
	stock := appinventory.NewStockLedger(nil)
	customerRepo := persistence.NewGormCustomerRepository(db)
	warehouseRepo := persistence.NewGormWarehouseRepository(db)
	engine := appsales.NewAllocationEngine(scope, nil)

	h := &postgresHarness{
		t:         t,
		ctx:       ctx,
		db:        tdb,
		scope:     scope,
		stock:     stock,
		customers: apppartner.NewCustomerService(customerRepo, persistence.NewGormLedgerRepository(db), rates, nil),
		invoices: appsales.NewInvoiceService(scope, persistence.NewGormInvoiceRepository(db), customerRepo,
			warehouseRepo, rates, stock, nil),
		payments: appsales.NewPaymentService(scope, persistence.NewGormPaymentRepository(db), engine, rates, nil),
		engine:   engine,
	}

	_, err := rates.SetDailyRate(ctx, rateDay, testutil.Dec("15000"), decimal.Zero)
	require.NoError(t, err)

	wh, err := partner.NewWarehouse("MAIN", "Main warehouse")
	require.NoError(t, err)
	wh.IsDefault = true
	require.NoError(t, warehouseRepo.Save(ctx, wh))
	h.warehouse = wh

	product, err := inventory.NewProduct("P-001", "Olive oil 1L", "pcs")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormProductRepository(db).Save(ctx, product))
	h.product = product

	return h
}

func (h *postgresHarness) openingStock(qty string) {
	h.t.Helper()
	err := h.scope.Execute(h.ctx, func(repos appshared.TransactionalRepositories) error {
		_, err := h.stock.AddStock(h.ctx, repos, inventory.StockChange{
			ProductID:    h.product.ID,
			WarehouseID:  h.warehouse.ID,
			Quantity:     testutil.Dec(qty),
			MovementType: inventory.MovementIn,
			SourceType:   inventory.SourceOpening,
			Reference:    inventory.Reference{Type: "opening", ID: h.product.ID, Number: "OPEN"},
			Actor:        "test",
		})
		return err
	})
	require.NoError(h.t, err)
}

func (h *postgresHarness) customer(code string) uuid.UUID {
	h.t.Helper()
	c, err := h.customers.Create(h.ctx, apppartner.CreateCustomerRequest{
		Code:         code,
		Name:         "Customer " + code,
		Currency:     valueobject.SYPOld,
		CreditLimit:  testutil.Dec("150000000"),
		PaymentTerms: 30,
	})
	require.NoError(h.t, err)
	return c.ID
}

func (h *postgresHarness) draft(customerID uuid.UUID, invoiceType sales.InvoiceType, qty, price string) uuid.UUID {
	h.t.Helper()
	resp, err := h.invoices.CreateInvoice(h.ctx, appsales.CreateInvoiceRequest{
		InvoiceType: invoiceType,
		CustomerID:  customerID,
		InvoiceDate: &rateDay,
		Currency:    valueobject.USD,
		Items: []appsales.InvoiceItemInput{
			{ProductID: h.product.ID, ProductName: h.product.Name, Quantity: testutil.Dec(qty), UnitPrice: testutil.Dec(price)},
		},
	})
	require.NoError(h.t, err)
	return resp.ID
}

func (h *postgresHarness) onHand() decimal.Decimal {
	h.t.Helper()
	s, err := persistence.NewGormStockRepository(h.db.DB).Find(h.ctx, h.product.ID, h.warehouse.ID)
	require.NoError(h.t, err)
	return s.Quantity
}

// runConcurrently starts every fn at once and collects their errors
func runConcurrently(fns ...func() error) []error {
	errs := make([]error, len(fns))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func TestPostgres_MigrationsRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	tdb := NewTestDB(t)

	m, err := migration.New(tdb.SqlDB, nil)
	require.NoError(t, err)

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(3), version)

	require.NoError(t, m.Down())
	assert.False(t, tdb.DB.Migrator().HasTable("invoices"))

	require.NoError(t, m.Up())
	assert.True(t, tdb.DB.Migrator().HasTable("invoices"))
	assert.True(t, tdb.DB.Migrator().HasTable("payment_allocations"))
}

func TestPostgres_CreditInvoiceConfirmAndAutoAllocate(t *testing.T) {
	h := newPostgresHarness(t)
	h.openingStock("10")
	customerID := h.customer("C001")

	invID := h.draft(customerID, sales.InvoiceTypeCredit, "2", "40")
	_, err := h.invoices.ConfirmInvoice(h.ctx, invID, appsales.ConfirmInvoiceRequest{Actor: "clerk"})
	require.NoError(t, err)
	assert.True(t, h.onHand().Equal(testutil.Dec("8")))

	payment, err := h.payments.ReceivePayment(h.ctx, appsales.ReceivePaymentRequest{
		CustomerID:   customerID,
		PaymentDate:  &rateDay,
		Amount:       testutil.Dec("750000"),
		Currency:     valueobject.SYPOld,
		AutoAllocate: true,
		Actor:        "cashier",
	})
	require.NoError(t, err)
	require.NotNil(t, payment.Allocation)
	assert.True(t, payment.AmountReference.Equal(testutil.Dec("50")))
	assert.True(t, payment.Allocation.TotalAllocated.Equal(testutil.Dec("50")))

	inv, err := h.invoices.GetByID(h.ctx, invID)
	require.NoError(t, err)
	assert.Equal(t, string(sales.InvoiceStatusPartial), inv.Status)
	assert.True(t, inv.RemainingAmountReference.Equal(testutil.Dec("30")))

	c, err := h.customers.GetByID(h.ctx, customerID)
	require.NoError(t, err)
	assert.True(t, c.CurrentBalanceReference.Equal(testutil.Dec("30")))
}

// Two payments racing for the same invoice must not overpay it: the
// invoice row lock serialises them and the loser sees the new remainder.
func TestPostgres_ConcurrentAllocationsDoNotOverpay(t *testing.T) {
	h := newPostgresHarness(t)
	h.openingStock("10")
	customerID := h.customer("C001")

	invID := h.draft(customerID, sales.InvoiceTypeCredit, "2", "40")
	_, err := h.invoices.ConfirmInvoice(h.ctx, invID, appsales.ConfirmInvoiceRequest{Actor: "clerk"})
	require.NoError(t, err)

	paymentIDs := make([]uuid.UUID, 2)
	for i := range paymentIDs {
		p, err := h.payments.ReceivePayment(h.ctx, appsales.ReceivePaymentRequest{
			CustomerID:  customerID,
			PaymentDate: &rateDay,
			Amount:      testutil.Dec("60"),
			Currency:    valueobject.USD,
			Actor:       "cashier",
		})
		require.NoError(t, err)
		assert.Nil(t, p.Allocation)
		paymentIDs[i] = p.ID
	}

	allocate := func(paymentID uuid.UUID) func() error {
		return func() error {
			_, err := h.engine.Allocate(h.ctx, appsales.AllocateRequest{
				PaymentID: paymentID,
				Mode:      sales.AllocationModeManual,
				Lines:     []appsales.AllocationLineRequest{{InvoiceID: invID, Amount: testutil.Dec("60")}},
				Actor:     "cashier",
			})
			return err
		}
	}
	errs := runConcurrently(allocate(paymentIDs[0]), allocate(paymentIDs[1]))

	var succeeded, exceeded int
	for _, err := range errs {
		var exceeds *shared.AllocationExceedsRemainingError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &exceeds):
			exceeded++
			assert.True(t, exceeds.Remaining.Equal(testutil.Dec("20")), "remaining %s", exceeds.Remaining)
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, exceeded)

	inv, err := h.invoices.GetByID(h.ctx, invID)
	require.NoError(t, err)
	assert.True(t, inv.PaidAmountReference.Equal(testutil.Dec("60")))
	assert.Equal(t, string(sales.InvoiceStatusPartial), inv.Status)
}

// Confirmations racing for the last units must leave stock non-negative
func TestPostgres_ConcurrentConfirmationsRespectStock(t *testing.T) {
	h := newPostgresHarness(t)
	h.openingStock("10")

	first := h.draft(uuid.Nil, sales.InvoiceTypeCash, "6", "5")
	second := h.draft(uuid.Nil, sales.InvoiceTypeCash, "6", "5")

	confirm := func(id uuid.UUID) func() error {
		return func() error {
			_, err := h.invoices.ConfirmInvoice(h.ctx, id, appsales.ConfirmInvoiceRequest{Actor: "clerk"})
			return err
		}
	}
	errs := runConcurrently(confirm(first), confirm(second))

	var failures int
	for _, err := range errs {
		if err == nil {
			continue
		}
		failures++
		var stockErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.True(t, stockErr.Available.Equal(testutil.Dec("4")), "available %s", stockErr.Available)
	}
	assert.Equal(t, 1, failures)
	assert.True(t, h.onHand().Equal(testutil.Dec("4")))
}

func TestPostgres_DocumentNumbersAreSequential(t *testing.T) {
	h := newPostgresHarness(t)
	gen := persistence.NewGormNumberGenerator(h.db.DB)

	const n = 8
	numbers := make([]string, n)
	fns := make([]func() error, n)
	for i := range fns {
		fns[i] = func() error {
			var err error
			numbers[i], err = gen.Next(h.ctx, shared.PrefixPayment)
			return err
		}
	}
	for _, err := range runConcurrently(fns...) {
		require.NoError(t, err)
	}

	seen := make(map[string]bool, n)
	for _, num := range numbers {
		assert.Regexp(t, `^PAY-\d{4}-\d{5}$`, num)
		assert.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
}
