package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	appinventory "github.com/erp/settlement/internal/application/inventory"
	apppartner "github.com/erp/settlement/internal/application/partner"
	apppurchasing "github.com/erp/settlement/internal/application/purchasing"
	appsales "github.com/erp/settlement/internal/application/sales"
	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/inventory"
	"github.com/erp/settlement/internal/domain/partner"
	"github.com/erp/settlement/internal/domain/purchasing"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/erp/settlement/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type settlementHarness struct {
	t          *testing.T
	ctx        context.Context
	db         *gorm.DB
	scope      *GormTransactionScope
	rates      *appfx.RateService
	stock      *appinventory.StockLedger
	customers  *apppartner.CustomerService
	invoices   *appsales.InvoiceService
	payments   *appsales.PaymentService
	returns    *appsales.ReturnService
	statements *appsales.StatementService
	orders     *apppurchasing.Service
	warehouse  *partner.Warehouse
	product    *inventory.Product
}

func newSettlementHarness(t *testing.T) *settlementHarness {
	t.Helper()
	db := testutil.NewSQLiteDB(t, Models()...)
	ctx := context.Background()

	scope := NewGormTransactionScope(db)
	rates := appfx.NewRateService(NewGormDailyRateRepository(db), nil, appfx.Config{Policy: fx.PolicyStrict}, nil)
	stock := appinventory.NewStockLedger(nil)
	customerRepo := NewGormCustomerRepository(db)
	warehouseRepo := NewGormWarehouseRepository(db)
	ledgerRepo := NewGormLedgerRepository(db)
	invoiceRepo := NewGormInvoiceRepository(db)
	paymentRepo := NewGormPaymentRepository(db)
	returnRepo := NewGormReturnRepository(db)

	h := &settlementHarness{
		t:          t,
		ctx:        ctx,
		db:         db,
		scope:      scope,
		rates:      rates,
		stock:      stock,
		customers:  apppartner.NewCustomerService(customerRepo, ledgerRepo, rates, nil),
		invoices:   appsales.NewInvoiceService(scope, invoiceRepo, customerRepo, warehouseRepo, rates, stock, nil),
		payments:   appsales.NewPaymentService(scope, paymentRepo, appsales.NewAllocationEngine(scope, nil), rates, nil),
		returns:    appsales.NewReturnService(scope, returnRepo, stock, nil),
		statements: appsales.NewStatementService(customerRepo, invoiceRepo, paymentRepo, returnRepo, nil),
		orders: apppurchasing.NewService(scope, NewGormPurchaseOrderRepository(db), NewGormSupplierRepository(db),
			warehouseRepo, rates, stock, nil),
	}

	wh, err := partner.NewWarehouse("MAIN", "Main warehouse")
	require.NoError(t, err)
	wh.IsDefault = true
	require.NoError(t, warehouseRepo.Save(ctx, wh))
	h.warehouse = wh

	product, err := inventory.NewProduct("P-001", "Olive oil 1L", "pcs")
	require.NoError(t, err)
	require.NoError(t, NewGormProductRepository(db).Save(ctx, product))
	h.product = product

	return h
}

func (h *settlementHarness) openingStock(qty string) {
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

func (h *settlementHarness) onHand() decimal.Decimal {
	h.t.Helper()
	s, err := NewGormStockRepository(h.db).Find(h.ctx, h.product.ID, h.warehouse.ID)
	require.NoError(h.t, err)
	return s.Quantity
}

func (h *settlementHarness) customer(code, limit string) *apppartner.CustomerResponse {
	h.t.Helper()
	c, err := h.customers.Create(h.ctx, apppartner.CreateCustomerRequest{
		Code:         code,
		Name:         "Customer " + code,
		Currency:     valueobject.SYPOld,
		CreditLimit:  testutil.Dec(limit),
		PaymentTerms: 30,
	})
	require.NoError(h.t, err)
	return c
}

func (h *settlementHarness) loadCustomer(id uuid.UUID) *partner.Customer {
	h.t.Helper()
	c, err := NewGormCustomerRepository(h.db).FindByID(h.ctx, id)
	require.NoError(h.t, err)
	return c
}

func (h *settlementHarness) loadInvoice(id uuid.UUID) *sales.Invoice {
	h.t.Helper()
	inv, err := NewGormInvoiceRepository(h.db).FindByID(h.ctx, id)
	require.NoError(h.t, err)
	return inv
}

func (h *settlementHarness) invoice(customerID uuid.UUID, invoiceType sales.InvoiceType, currency valueobject.Currency,
	date time.Time, qty, price string, fxIn appfx.SnapshotInput) *appsales.InvoiceResponse {
	h.t.Helper()
	resp, err := h.invoices.CreateInvoice(h.ctx, appsales.CreateInvoiceRequest{
		InvoiceType: invoiceType,
		CustomerID:  customerID,
		InvoiceDate: &date,
		Currency:    currency,
		Items: []appsales.InvoiceItemInput{
			{ProductID: h.product.ID, ProductName: h.product.Name, Quantity: testutil.Dec(qty), UnitPrice: testutil.Dec(price)},
		},
		FX: fxIn,
	})
	require.NoError(h.t, err)
	return resp
}

func rateOld(v string) appfx.SnapshotInput {
	return appfx.SnapshotInput{RateOld: testutil.DecPtr(v)}
}

func TestSettlementFlow_CreditInvoicesPaymentAndStatement(t *testing.T) {
	h := newSettlementHarness(t)
	h.openingStock("10")

	jan1 := testutil.Day(2025, time.January, 1)
	jan2 := testutil.Day(2025, time.January, 2)
	jan3 := testutil.Day(2025, time.January, 3)
	_, err := h.rates.SetDailyRate(h.ctx, jan1, testutil.Dec("15000"), decimal.Zero)
	require.NoError(t, err)
	_, err = h.rates.SetDailyRate(h.ctx, jan2, testutil.Dec("15000"), decimal.Zero)
	require.NoError(t, err)

	// 3,000,000 SYP_OLD is 200 USD at 15000
	c := h.customer("C001", "3000000")

	// USD invoice resolved from the daily rate at confirmation
	usd := h.invoice(c.ID, sales.InvoiceTypeCredit, valueobject.USD, jan1, "2", "50", appfx.SnapshotInput{})
	assert.NotEmpty(t, usd.InvoiceNumber)
	require.NotNil(t, usd.CreditCheck)

	confirmed, err := h.invoices.ConfirmInvoice(h.ctx, usd.ID, appsales.ConfirmInvoiceRequest{Actor: "clerk"})
	require.NoError(t, err)
	assert.Equal(t, string(sales.InvoiceStatusConfirmed), confirmed.Status)
	assert.True(t, confirmed.TotalAmountReference.Equal(testutil.Dec("100")))
	assert.True(t, confirmed.USDToSYPOldSnapshot.Equal(testutil.Dec("15000")))

	syp := h.invoice(c.ID, sales.InvoiceTypeCredit, valueobject.SYPOld, jan2, "1", "750000", appfx.SnapshotInput{})
	_, err = h.invoices.ConfirmInvoice(h.ctx, syp.ID, appsales.ConfirmInvoiceRequest{Actor: "clerk"})
	require.NoError(t, err)

	customer := h.loadCustomer(c.ID)
	assert.True(t, customer.CurrentBalanceReference.Equal(testutil.Dec("150")))
	assert.True(t, customer.CurrentBalance.Equal(testutil.Dec("2250000")))
	assert.True(t, h.onHand().Equal(testutil.Dec("7")))

	// 1,200,000 SYP_OLD = 80 USD settles the oldest invoice first
	payment, err := h.payments.ReceivePayment(h.ctx, appsales.ReceivePaymentRequest{
		CustomerID:   c.ID,
		PaymentDate:  &jan3,
		Amount:       testutil.Dec("1200000"),
		Currency:     valueobject.SYPOld,
		AutoAllocate: true,
		FX:           rateOld("15000"),
		Actor:        "cashier",
	})
	require.NoError(t, err)
	require.NotNil(t, payment.Allocation)
	require.Len(t, payment.Allocation.Allocations, 1)
	assert.Equal(t, usd.ID, payment.Allocation.Allocations[0].InvoiceID)
	assert.Equal(t, 1, payment.Allocation.InvoicesPartial)

	first := h.loadInvoice(usd.ID)
	assert.Equal(t, sales.InvoiceStatusPartial, first.Status)
	assert.True(t, first.PaidAmountReference.Equal(testutil.Dec("80")))
	assert.Equal(t, sales.InvoiceStatusConfirmed, h.loadInvoice(syp.ID).Status)

	allocated, err := NewGormAllocationRepository(h.db).SumReferenceByPayment(h.ctx, payment.ID)
	require.NoError(t, err)
	assert.True(t, allocated.Equal(testutil.Dec("80")))

	customer = h.loadCustomer(c.ID)
	assert.True(t, customer.CurrentBalanceReference.Equal(testutil.Dec("70")))
	assert.True(t, customer.CurrentBalance.Equal(testutil.Dec("1050000")))

	open, err := h.invoices.OpenInvoices(h.ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, usd.ID, open[0].ID, "open invoices are listed oldest first")
	assert.True(t, open[0].RemainingAmountReference.Equal(testutil.Dec("20")))

	from := jan1
	to := testutil.Day(2025, time.January, 31)
	st, err := h.statements.CustomerStatement(h.ctx, c.ID, &from, &to)
	require.NoError(t, err)
	require.Len(t, st.Entries, 3)
	assert.True(t, st.ClosingBalanceReference.Equal(testutil.Dec("70")))
	assert.True(t, st.TotalPayments.Reference.Equal(testutil.Dec("80")))

	entries, err := NewGormLedgerRepository(h.db).FindByParty(h.ctx, partner.PartyTypeCustomer, c.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, partner.LedgerReasonPayment, entries[2].Reason)
}

func TestSettlementFlow_CreditOverrideAtConfirmation(t *testing.T) {
	h := newSettlementHarness(t)
	h.openingStock("5")
	day := testutil.Day(2025, time.February, 1)

	// limit of 100 USD
	c := h.customer("C002", "1500000")

	_, err := h.invoices.CreateInvoice(h.ctx, appsales.CreateInvoiceRequest{
		InvoiceType: sales.InvoiceTypeCredit,
		CustomerID:  c.ID,
		InvoiceDate: &day,
		Currency:    valueobject.USD,
		Items: []appsales.InvoiceItemInput{
			{ProductID: h.product.ID, ProductName: h.product.Name, Quantity: testutil.Dec("1"), UnitPrice: testutil.Dec("120")},
		},
		FX: rateOld("15000"),
	})
	var exceeded *shared.CreditLimitExceededError
	require.True(t, errors.As(err, &exceeded), "a breach without override fails before anything is stored")

	inv, err := h.invoices.CreateInvoice(h.ctx, appsales.CreateInvoiceRequest{
		InvoiceType: sales.InvoiceTypeCredit,
		CustomerID:  c.ID,
		InvoiceDate: &day,
		Currency:    valueobject.USD,
		Items: []appsales.InvoiceItemInput{
			{ProductID: h.product.ID, ProductName: h.product.Name, Quantity: testutil.Dec("1"), UnitPrice: testutil.Dec("120")},
		},
		OverrideCredit: true,
		OverrideReason: "long standing customer",
		FX:             rateOld("15000"),
	})
	require.NoError(t, err)

	_, err = h.invoices.ConfirmInvoice(h.ctx, inv.ID, appsales.ConfirmInvoiceRequest{Actor: "clerk"})
	require.True(t, errors.As(err, &exceeded))
	assert.Equal(t, sales.InvoiceStatusDraft, h.loadInvoice(inv.ID).Status, "failed confirmation rolls back")
	assert.True(t, h.onHand().Equal(testutil.Dec("5")))

	_, err = h.invoices.ConfirmInvoice(h.ctx, inv.ID, appsales.ConfirmInvoiceRequest{
		OverrideCredit: true,
		OverrideReason: "approved by manager",
		Actor:          "manager",
	})
	require.NoError(t, err)

	overrides, err := NewGormOverrideRepository(h.db).FindByInvoice(h.ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.True(t, overrides[0].OverrideAmount.Equal(testutil.Dec("20")))
	assert.Equal(t, "approved by manager", overrides[0].Reason)

	entries, err := NewGormAuditRepository(h.db).FindByEntity(h.ctx, "invoice", inv.ID)
	require.NoError(t, err)
	actions := make([]string, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, string(e.Action))
	}
	assert.ElementsMatch(t, []string{"CREDIT_OVERRIDE", "INVOICE_CONFIRM"}, actions)
	assert.True(t, h.onHand().Equal(testutil.Dec("4")))
}

func TestSettlementFlow_CancelReversesReceivableAndStock(t *testing.T) {
	h := newSettlementHarness(t)
	h.openingStock("10")
	c := h.customer("C003", "0")
	day := testutil.Day(2025, time.March, 1)

	inv := h.invoice(c.ID, sales.InvoiceTypeCredit, valueobject.USD, day, "3", "10", rateOld("15000"))
	_, err := h.invoices.ConfirmInvoice(h.ctx, inv.ID, appsales.ConfirmInvoiceRequest{})
	require.NoError(t, err)
	assert.True(t, h.onHand().Equal(testutil.Dec("7")))
	assert.True(t, h.loadCustomer(c.ID).CurrentBalanceReference.Equal(testutil.Dec("30")))

	cancelled, err := h.invoices.CancelInvoice(h.ctx, inv.ID, appsales.CancelInvoiceRequest{Reason: "customer changed mind", Actor: "clerk"})
	require.NoError(t, err)
	assert.Equal(t, string(sales.InvoiceStatusCancelled), cancelled.Status)

	assert.True(t, h.onHand().Equal(testutil.Dec("10")))
	customer := h.loadCustomer(c.ID)
	assert.True(t, customer.CurrentBalanceReference.IsZero())
	assert.True(t, customer.CurrentBalance.IsZero())

	movements, err := NewGormMovementRepository(h.db).FindByReference(h.ctx, "invoice", inv.ID)
	require.NoError(t, err)
	assert.Len(t, movements, 2)

	_, err = h.invoices.CancelInvoice(h.ctx, inv.ID, appsales.CancelInvoiceRequest{Reason: "again"})
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestSettlementFlow_SalesReturn(t *testing.T) {
	h := newSettlementHarness(t)
	h.openingStock("10")
	c := h.customer("C004", "0")
	day := testutil.Day(2025, time.April, 1)

	inv := h.invoice(c.ID, sales.InvoiceTypeCredit, valueobject.USD, day, "2", "50", rateOld("15000"))
	_, err := h.invoices.ConfirmInvoice(h.ctx, inv.ID, appsales.ConfirmInvoiceRequest{})
	require.NoError(t, err)

	loaded := h.loadInvoice(inv.ID)
	require.Len(t, loaded.Items, 1)

	ret, err := h.returns.CreateSalesReturn(h.ctx, appsales.CreateSalesReturnRequest{
		InvoiceID: inv.ID,
		Reason:    "damaged",
		Lines:     []appsales.ReturnLineInput{{InvoiceItemID: loaded.Items[0].ID, Quantity: testutil.Dec("1")}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ret.ReturnNumber)

	assert.True(t, h.onHand().Equal(testutil.Dec("9")))
	assert.True(t, h.loadCustomer(c.ID).CurrentBalanceReference.Equal(testutil.Dec("50")))
	assert.True(t, h.loadInvoice(inv.ID).Items[0].ReturnedQuantity.Equal(testutil.Dec("1")))

	_, err = h.returns.CreateSalesReturn(h.ctx, appsales.CreateSalesReturnRequest{
		InvoiceID: inv.ID,
		Reason:    "too many",
		Lines:     []appsales.ReturnLineInput{{InvoiceItemID: loaded.Items[0].ID, Quantity: testutil.Dec("2")}},
	})
	var verr *shared.ValidationError
	assert.True(t, errors.As(err, &verr), "cannot return more than was sold")
}

func TestSettlementFlow_WalkInCashInvoice(t *testing.T) {
	h := newSettlementHarness(t)
	h.openingStock("3")
	day := testutil.Day(2025, time.May, 1)

	inv := h.invoice(uuid.Nil, sales.InvoiceTypeCash, valueobject.SYPOld, day, "1", "30000", rateOld("15000"))
	resp, err := h.invoices.ConfirmInvoice(h.ctx, inv.ID, appsales.ConfirmInvoiceRequest{})
	require.NoError(t, err)
	assert.Equal(t, string(sales.InvoiceStatusPaid), resp.Status)
	assert.Nil(t, resp.PaymentID, "walk-in sales carry no payment record")
	assert.True(t, h.onHand().Equal(testutil.Dec("2")))

	_, err = h.invoices.CancelInvoice(h.ctx, inv.ID, appsales.CancelInvoiceRequest{Reason: "refund"})
	assert.True(t, errors.Is(err, shared.ErrInvalidState), "paid invoices are not cancellable")
}

func TestSettlementFlow_InsufficientStockRollsBack(t *testing.T) {
	h := newSettlementHarness(t)
	h.openingStock("1")
	c := h.customer("C005", "0")

	inv := h.invoice(c.ID, sales.InvoiceTypeCredit, valueobject.USD, testutil.Day(2025, time.June, 1), "2", "10", rateOld("15000"))
	_, err := h.invoices.ConfirmInvoice(h.ctx, inv.ID, appsales.ConfirmInvoiceRequest{})
	var short *shared.InsufficientStockError
	require.True(t, errors.As(err, &short))

	assert.Equal(t, sales.InvoiceStatusDraft, h.loadInvoice(inv.ID).Status)
	assert.True(t, h.loadCustomer(c.ID).CurrentBalanceReference.IsZero(), "receivable posting rolled back with the stock failure")
	assert.True(t, h.onHand().Equal(testutil.Dec("1")))
}

func TestSettlementFlow_PurchaseOrderReceiveAndPay(t *testing.T) {
	h := newSettlementHarness(t)
	supplierRepo := NewGormSupplierRepository(h.db)
	supplier, err := partner.NewSupplier("S001", "Coastal Oils")
	require.NoError(t, err)
	require.NoError(t, supplierRepo.Save(h.ctx, supplier))

	po, err := h.orders.Create(h.ctx, apppurchasing.CreatePurchaseOrderRequest{
		SupplierID: supplier.ID,
		Currency:   valueobject.USD,
		Items: []apppurchasing.OrderItemInput{
			{ProductID: h.product.ID, ProductName: h.product.Name, Quantity: testutil.Dec("10"), UnitPrice: testutil.Dec("5")},
		},
		FX: rateOld("15000"),
	})
	require.NoError(t, err)
	assert.True(t, po.TotalAmountReference.Equal(testutil.Dec("50")))
	require.Len(t, po.Items, 1)

	_, err = h.orders.ReceiveGoods(h.ctx, po.ID, apppurchasing.ReceiveGoodsRequest{
		Lines: []apppurchasing.ReceiveLineInput{{OrderItemID: po.Items[0].ID, Quantity: testutil.Dec("1")}},
	})
	assert.True(t, errors.Is(err, shared.ErrInvalidState), "draft orders cannot be received")

	_, err = h.orders.Approve(h.ctx, po.ID, "buyer")
	require.NoError(t, err)

	receipt, err := h.orders.ReceiveGoods(h.ctx, po.ID, apppurchasing.ReceiveGoodsRequest{
		Lines: []apppurchasing.ReceiveLineInput{{OrderItemID: po.Items[0].ID, Quantity: testutil.Dec("4")}},
		Actor: "storekeeper",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ReceiptNumber)
	assert.True(t, h.onHand().Equal(testutil.Dec("4")))

	s, err := supplierRepo.FindByID(h.ctx, supplier.ID)
	require.NoError(t, err)
	assert.True(t, s.CurrentBalanceReference.Equal(testutil.Dec("20")))

	reloaded, err := h.orders.GetByID(h.ctx, po.ID)
	require.NoError(t, err)
	assert.Equal(t, string(purchasing.OrderStatusPartial), reloaded.Status)

	_, err = h.orders.PaySupplier(h.ctx, po.ID, apppurchasing.PaySupplierRequest{Amount: testutil.Dec("20"), Actor: "cashier"})
	require.NoError(t, err)

	s, err = supplierRepo.FindByID(h.ctx, supplier.ID)
	require.NoError(t, err)
	assert.True(t, s.CurrentBalanceReference.IsZero())

	payments, err := NewGormSupplierPaymentRepository(h.db).FindBySupplier(h.ctx, supplier.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	receipts, err := NewGormGoodsReceiptRepository(h.db).FindByOrder(h.ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	require.Len(t, receipts[0].Items, 1)
}

func TestGormNumberGenerator_Sequence(t *testing.T) {
	db := testutil.NewSQLiteDB(t, Models()...)
	gen := NewGormNumberGenerator(db)
	gen.now = func() time.Time { return testutil.Day(2025, time.July, 1) }
	ctx := context.Background()

	first, err := gen.Next(ctx, "inv")
	require.NoError(t, err)
	second, err := gen.Next(ctx, "INV")
	require.NoError(t, err)
	other, err := gen.Next(ctx, "PAY")
	require.NoError(t, err)

	assert.Equal(t, "INV-2025-00001", first)
	assert.Equal(t, "INV-2025-00002", second)
	assert.Equal(t, "PAY-2025-00001", other)

	_, err = gen.Next(ctx, "  ")
	var verr *shared.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestGormWarehouseRepository_SingleDefault(t *testing.T) {
	db := testutil.NewSQLiteDB(t, Models()...)
	repo := NewGormWarehouseRepository(db)
	ctx := context.Background()

	a, err := partner.NewWarehouse("A", "First")
	require.NoError(t, err)
	a.IsDefault = true
	require.NoError(t, repo.Save(ctx, a))

	b, err := partner.NewWarehouse("B", "Second")
	require.NoError(t, err)
	b.IsDefault = true
	require.NoError(t, repo.Save(ctx, b))

	def, err := repo.FindDefault(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, def.ID)

	reloaded, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)
}

func TestGormDailyRateRepository_Lookback(t *testing.T) {
	db := testutil.NewSQLiteDB(t, Models()...)
	repo := NewGormDailyRateRepository(db)
	ctx := context.Background()

	rate, err := fx.NewDailyRate(testutil.Day(2025, time.August, 1), testutil.Dec("15000"), decimal.Zero)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, rate))

	_, err = repo.FindByDate(ctx, testutil.Day(2025, time.August, 3))
	assert.True(t, errors.Is(err, shared.ErrNotFound))

	aug3 := testutil.Day(2025, time.August, 3)
	found, err := repo.FindLatestOnOrBefore(ctx, aug3, aug3.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.True(t, found.USDToSYPOld.Equal(testutil.Dec("15000")))

	aug20 := testutil.Day(2025, time.August, 20)
	_, err = repo.FindLatestOnOrBefore(ctx, aug20, aug20.AddDate(0, 0, -7))
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestGormAllocationRepository_DuplicatePair(t *testing.T) {
	db := testutil.NewSQLiteDB(t, Models()...)
	repo := NewGormAllocationRepository(db)
	ctx := context.Background()

	inv := &sales.Invoice{InvoiceNumber: "INV-1"}
	inv.ID = uuid.New()
	paymentID := uuid.New()

	require.NoError(t, repo.Save(ctx, sales.NewPaymentAllocation(paymentID, inv, testutil.Dec("150000"), testutil.Dec("10"))))
	err := repo.Save(ctx, sales.NewPaymentAllocation(paymentID, inv, testutil.Dec("15000"), testutil.Dec("1")))
	assert.True(t, errors.Is(err, shared.ErrAlreadyExists))

	pair, err := repo.FindByPair(ctx, paymentID, inv.ID)
	require.NoError(t, err)
	assert.True(t, pair.AmountReference.Equal(testutil.Dec("10")))

	total, err := repo.SumReferenceByPayment(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}
