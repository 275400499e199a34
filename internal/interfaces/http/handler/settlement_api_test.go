package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appcredit "github.com/erp/settlement/internal/application/credit"
	appfx "github.com/erp/settlement/internal/application/fx"
	appinventory "github.com/erp/settlement/internal/application/inventory"
	apppartner "github.com/erp/settlement/internal/application/partner"
	apppurchasing "github.com/erp/settlement/internal/application/purchasing"
	appsales "github.com/erp/settlement/internal/application/sales"
	"github.com/erp/settlement/internal/domain/audit"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/internal/interfaces/http/dto"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/erp/settlement/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAPI serves the full route table over a throwaway sqlite database
type testAPI struct {
	t      *testing.T
	engine *gin.Engine
	routes []router.RouteInfo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	middleware.SetupValidator()
	db := testutil.NewSQLiteDB(t, persistence.Models()...)

	scope := persistence.NewGormTransactionScope(db)
	rates := appfx.NewRateService(persistence.NewGormDailyRateRepository(db), nil, appfx.Config{Policy: fx.PolicyStrict}, nil)
	ledger := appinventory.NewStockLedger(nil)
	customerRepo := persistence.NewGormCustomerRepository(db)
	warehouseRepo := persistence.NewGormWarehouseRepository(db)
	ledgerRepo := persistence.NewGormLedgerRepository(db)
	invoiceRepo := persistence.NewGormInvoiceRepository(db)
	paymentRepo := persistence.NewGormPaymentRepository(db)
	returnRepo := persistence.NewGormReturnRepository(db)
	supplierRepo := persistence.NewGormSupplierRepository(db)

	engine := appsales.NewAllocationEngine(scope, nil)
	invoices := appsales.NewInvoiceService(scope, invoiceRepo, customerRepo, warehouseRepo, rates, ledger, nil)

	handlers := &Handlers{
		Customers: NewCustomerHandler(
			apppartner.NewCustomerService(customerRepo, ledgerRepo, rates, nil),
			appcredit.NewService(customerRepo, rates, nil),
			invoices,
			appsales.NewStatementService(customerRepo, invoiceRepo, paymentRepo, returnRepo, nil),
		),
		Suppliers:  NewSupplierHandler(apppartner.NewSupplierService(supplierRepo, ledgerRepo, nil)),
		Warehouses: NewWarehouseHandler(apppartner.NewWarehouseService(warehouseRepo, nil)),
		Stock: NewStockHandler(appinventory.NewStockService(scope, persistence.NewGormProductRepository(db),
			persistence.NewGormStockRepository(db), ledger, nil)),
		Invoices: NewInvoiceHandler(invoices, appsales.NewReturnService(scope, returnRepo, ledger, nil)),
		Payments: NewPaymentHandler(appsales.NewPaymentService(scope, paymentRepo, engine, rates, nil), engine),
		PurchaseOrders: NewPurchaseOrderHandler(apppurchasing.NewService(scope, persistence.NewGormPurchaseOrderRepository(db),
			supplierRepo, warehouseRepo, rates, ledger, nil)),
		FXRates: NewFXRateHandler(rates),
		Audit:   NewAuditHandler(persistence.NewGormAuditRepository(db)),
		System:  NewSystemHandler("Settlement API", "test"),
	}

	g := gin.New()
	g.Use(middleware.RequestID(), middleware.Actor())
	r := router.NewRouter(g)
	routes := handlers.Register(r)
	r.Setup()

	return &testAPI{t: t, engine: g, routes: routes}
}

func (a *testAPI) do(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.ActorHeader, "tester")
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

type fixture struct {
	warehouseID uuid.UUID
	productID   uuid.UUID
	customerID  uuid.UUID
}

var fxOld15000 = map[string]any{"usd_to_syp_old_snapshot": "15000"}

// seed creates a default warehouse, a product with stock on hand and a
// customer whose limit is 100 USD at 15000.
func (a *testAPI) seed(stock string) fixture {
	t := a.t
	t.Helper()

	w := a.do(http.MethodPost, "/warehouses", map[string]any{"code": "MAIN", "name": "Main", "is_default": true})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	wh := testutil.Data[apppartner.WarehouseResponse](t, w)

	w = a.do(http.MethodPost, "/products", map[string]any{"code": "P-001", "name": "Olive oil 1L", "base_unit": "pcs"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	product := testutil.Data[appinventory.ProductResponse](t, w)

	w = a.do(http.MethodPost, "/stock/adjustments", map[string]any{
		"product_id":   product.ID,
		"warehouse_id": wh.ID,
		"direction":    "in",
		"quantity":     stock,
		"opening":      true,
		"reason":       "opening count",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodPost, "/customers", map[string]any{
		"code":          "C001",
		"name":          "Acme Trading",
		"currency":      "SYP_OLD",
		"credit_limit":  "1500000",
		"payment_terms": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	customer := testutil.Data[apppartner.CustomerResponse](t, w)

	return fixture{warehouseID: wh.ID, productID: product.ID, customerID: customer.ID}
}

func (a *testAPI) createInvoice(f fixture, qty, price string) *httptest.ResponseRecorder {
	a.t.Helper()
	body := map[string]any{
		"invoice_type":         "credit",
		"customer_id":          f.customerID,
		"warehouse_id":         f.warehouseID,
		"invoice_date":         "2025-01-10T00:00:00Z",
		"transaction_currency": "USD",
		"items": []map[string]any{
			{"product_id": f.productID, "product_name": "Olive oil 1L", "quantity": qty, "unit_price": price},
		},
		"fx": fxOld15000,
	}
	return a.do(http.MethodPost, "/invoices", body)
}

func (a *testAPI) confirmedInvoice(f fixture, qty, price string) appsales.InvoiceResponse {
	a.t.Helper()
	w := a.createInvoice(f, qty, price)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	inv := testutil.Data[appsales.InvoiceResponse](a.t, w)

	w = a.do(http.MethodPost, "/invoices/"+inv.ID.String()+"/confirm", nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return testutil.Data[appsales.InvoiceResponse](a.t, w)
}

func TestAPI_FXRates(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(http.MethodGet, "/fx-rates/2025-01-10", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, dto.ErrCodeConfiguration, testutil.APIError(t, w).Code, "a missing rate is never defaulted")

	w = a.do(http.MethodGet, "/fx-rates/10-01-2025", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPut, "/fx-rates/2025-01-10", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPut, "/fx-rates/2025-01-10", map[string]any{"usd_to_syp_old": "15000", "usd_to_syp_new": "150"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/fx-rates/2025-01-10", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rate := testutil.Data[DailyRateResponse](t, w)
	assert.Equal(t, "2025-01-10", rate.RateDate)
	assert.True(t, rate.USDToSYPOld.Equal(testutil.Dec("15000")))
	assert.True(t, rate.USDToSYPNew.Equal(testutil.Dec("150")))
}

func TestAPI_CreditLimitAndConfirmation(t *testing.T) {
	a := newTestAPI(t)
	f := a.seed("10")

	w := a.createInvoice(f, "1", "120")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	testutil.AssertErrorContext(t, w, dto.ErrCodeCreditLimitExceeded, map[string]string{
		"customer":     "Acme Trading",
		"credit_limit": "100.00",
	})
	assert.Equal(t, "credit_limit", testutil.APIError(t, w).Field)

	inv := a.confirmedInvoice(f, "2", "40")
	assert.Equal(t, "CONFIRMED", inv.Status)
	assert.True(t, inv.TotalAmountReference.Equal(testutil.Dec("80")))

	w = a.do(http.MethodGet, "/customers/"+f.customerID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	customer := testutil.Data[apppartner.CustomerResponse](t, w)
	assert.True(t, customer.CurrentBalanceReference.Equal(testutil.Dec("80")))
	assert.True(t, customer.CurrentBalance.Equal(testutil.Dec("1200000")))

	w = a.do(http.MethodGet, "/stock?product_id="+f.productID.String()+"&warehouse_id="+f.warehouseID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, testutil.Data[appinventory.StockResponse](t, w).Quantity.Equal(testutil.Dec("8")))

	w = a.do(http.MethodGet, "/customers/"+f.customerID.String()+"/open-invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, testutil.Data[[]map[string]any](t, w), 1)

	w = a.do(http.MethodGet, "/audit/invoice/"+inv.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := testutil.Data[[]audit.Entry](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionInvoiceConfirm, entries[0].Action)
	assert.Equal(t, "tester", entries[0].Actor)
}

func TestAPI_CreditCheckUsesTodaysRate(t *testing.T) {
	a := newTestAPI(t)
	f := a.seed("1")
	today := time.Now().UTC().Format(dateLayout)

	w := a.do(http.MethodGet, "/customers/"+f.customerID.String()+"/credit-check?amount=30&currency=USD", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code, "no rate for today yet")

	w = a.do(http.MethodPut, "/fx-rates/"+today, map[string]any{"usd_to_syp_old": "15000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/customers/"+f.customerID.String()+"/credit-check?amount=30&currency=USD", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	check := testutil.Data[appcredit.CheckCreditResponse](t, w)
	assert.True(t, check.Result.CanProceed)
	assert.True(t, check.Result.AvailableCredit.Equal(testutil.Dec("100")))
	assert.True(t, check.Result.NewBalance.Equal(testutil.Dec("30")))

	w = a.do(http.MethodGet, "/customers/"+f.customerID.String()+"/credit-check", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_PaymentAllocation(t *testing.T) {
	a := newTestAPI(t)
	f := a.seed("10")
	inv := a.confirmedInvoice(f, "2", "40")

	payment := func(allocation string) map[string]any {
		return map[string]any{
			"customer_id":          f.customerID,
			"payment_date":         "2025-01-15T00:00:00Z",
			"amount":               "100",
			"transaction_currency": "USD",
			"fx":                   fxOld15000,
			"allocations":          []map[string]any{{"invoice_id": inv.ID, "amount": allocation}},
		}
	}

	w := a.do(http.MethodPost, "/payments", payment("95"))
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	testutil.AssertErrorContext(t, w, dto.ErrCodeAllocationExceedsRemaining, map[string]string{
		"invoice_number": inv.InvoiceNumber,
		"remaining":      "80.00",
		"requested":      "95.00",
	})

	w = a.do(http.MethodGet, "/customers/"+f.customerID.String(), nil)
	assert.True(t, testutil.Data[apppartner.CustomerResponse](t, w).CurrentBalanceReference.Equal(testutil.Dec("80")),
		"the rejected payment left nothing behind")

	w = a.do(http.MethodPost, "/payments", payment("50"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	paid := testutil.Data[appsales.PaymentResponse](t, w)
	require.NotNil(t, paid.Allocation)
	assert.True(t, paid.Allocation.TotalAllocated.Equal(testutil.Dec("50")))

	w = a.do(http.MethodPost, "/payments/"+paid.ID.String()+"/allocations", map[string]any{"mode": "auto"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := testutil.Data[appsales.AllocationResult](t, w)
	assert.True(t, result.TotalAllocated.Equal(testutil.Dec("30")))

	w = a.do(http.MethodGet, "/invoices/"+inv.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	settled := testutil.Data[appsales.InvoiceResponse](t, w)
	assert.Equal(t, "PAID", settled.Status)
	assert.True(t, settled.RemainingAmountReference.IsZero())

	w = a.do(http.MethodPost, "/payments/"+paid.ID.String()+"/allocations", map[string]any{"mode": "sideways"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, testutil.APIError(t, w).Code)
}

func TestAPI_InsufficientStockRollsBack(t *testing.T) {
	a := newTestAPI(t)
	f := a.seed("1")

	w := a.createInvoice(f, "3", "10")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := testutil.Data[appsales.InvoiceResponse](t, w)

	w = a.do(http.MethodPost, "/invoices/"+inv.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	errInfo := testutil.APIError(t, w)
	assert.Equal(t, dto.ErrCodeInsufficientStock, errInfo.Code)
	assert.True(t, testutil.Dec(errInfo.Context["available"]).Equal(testutil.Dec("1")))

	w = a.do(http.MethodGet, "/invoices/"+inv.ID.String(), nil)
	assert.Equal(t, "DRAFT", testutil.Data[appsales.InvoiceResponse](t, w).Status)
}

func TestAPI_CancelAndReturn(t *testing.T) {
	a := newTestAPI(t)
	f := a.seed("10")
	inv := a.confirmedInvoice(f, "2", "40")

	w := a.do(http.MethodPost, "/invoices/"+inv.ID.String()+"/returns", map[string]any{
		"reason": "damaged",
		"items":  []map[string]any{{"invoice_item_id": inv.Items[0].ID, "quantity": "1"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ret := testutil.Data[appsales.SalesReturnResponse](t, w)

	w = a.do(http.MethodGet, "/sales-returns/"+ret.ID.String(), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodPost, "/invoices/"+inv.ID.String()+"/cancel", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, "a reason is required")

	w = a.do(http.MethodPost, "/invoices/"+inv.ID.String()+"/cancel", map[string]any{"reason": "wrong customer"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CANCELLED", testutil.Data[appsales.InvoiceResponse](t, w).Status)

	w = a.do(http.MethodPost, "/invoices/"+inv.ID.String()+"/cancel", map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, testutil.APIError(t, w).Code)
}

func TestAPI_RequestErrors(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     any
		status   int
		code     string
		badField string
	}{
		{"unknown invoice", http.MethodGet, "/invoices/" + uuid.NewString(), nil, http.StatusNotFound, dto.ErrCodeNotFound, ""},
		{"malformed id", http.MethodGet, "/invoices/42", nil, http.StatusBadRequest, dto.ErrCodeBadRequest, ""},
		{"unknown customer", http.MethodGet, "/customers/" + uuid.NewString(), nil, http.StatusNotFound, dto.ErrCodeNotFound, ""},
		{"invoice without items", http.MethodPost, "/invoices", map[string]any{"invoice_type": "credit", "items": []any{}},
			http.StatusBadRequest, dto.ErrCodeValidation, "items"},
		{"bad invoice type", http.MethodPost, "/invoices", map[string]any{"invoice_type": "barter"},
			http.StatusBadRequest, dto.ErrCodeValidation, "invoice_type"},
		{"customer without code", http.MethodPost, "/customers", map[string]any{"name": "No code"},
			http.StatusBadRequest, dto.ErrCodeValidation, "code"},
		{"unknown audit type", http.MethodGet, "/audit/ledger/" + uuid.NewString(), nil, http.StatusBadRequest, dto.ErrCodeBadRequest, ""},
		{"inverted statement range", http.MethodGet, fmt.Sprintf("/customers/%s/statement?from=2025-02-01&to=2025-01-01", uuid.NewString()),
			nil, http.StatusBadRequest, dto.ErrCodeBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			errInfo := testutil.AssertAPIError(t, w, tt.code)
			assert.NotEmpty(t, errInfo.RequestID)
			if tt.badField != "" {
				testutil.AssertFieldErrors(t, w, tt.badField)
			}
		})
	}
}

func TestAPI_ListInvoicesAndPayments(t *testing.T) {
	a := newTestAPI(t)
	f := a.seed("10")
	confirmed := a.confirmedInvoice(f, "1", "10")
	for i := 0; i < 2; i++ {
		w := a.createInvoice(f, "1", "10")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := a.do(http.MethodGet, "/invoices?customer_id="+f.customerID.String()+"&page_size=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	testutil.AssertPage(t, w, 3, 1, 2)
	assert.Len(t, testutil.Data[[]appsales.InvoiceResponse](t, w), 2)

	w = a.do(http.MethodGet, "/invoices?status=CONFIRMED", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := testutil.Data[[]appsales.InvoiceResponse](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, confirmed.ID, list[0].ID)

	w = a.do(http.MethodGet, "/invoices?status=OPEN", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	w = a.do(http.MethodGet, "/invoices?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	w = a.do(http.MethodGet, "/invoices?from=2025-02-01&to=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	assert.Equal(t, "to", testutil.APIError(t, w).Field)

	w = a.do(http.MethodPost, "/payments", map[string]any{
		"customer_id":          f.customerID,
		"payment_date":         "2025-01-15T00:00:00Z",
		"amount":               "5",
		"transaction_currency": "USD",
		"fx":                   fxOld15000,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = a.do(http.MethodGet, "/payments?from=2025-01-01&to=2025-01-31", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payments := testutil.Data[[]appsales.PaymentResponse](t, w)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Amount.Equal(testutil.Dec("5")))

	w = a.do(http.MethodGet, "/payments?customer_id=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestHandlers_RegisterListsRoutes(t *testing.T) {
	a := newTestAPI(t)

	assert.Contains(t, a.routes, router.RouteInfo{Method: http.MethodPost, Path: "/api/v1/payments/:id/allocations"})
	assert.Contains(t, a.routes, router.RouteInfo{Method: http.MethodPut, Path: "/api/v1/fx-rates/:date"})
	assert.Contains(t, a.routes, router.RouteInfo{Method: http.MethodGet, Path: "/api/v1/system/ping"})
	assert.Contains(t, a.routes, router.RouteInfo{Method: http.MethodGet, Path: "/api/v1/invoices"})
	assert.Contains(t, a.routes, router.RouteInfo{Method: http.MethodGet, Path: "/api/v1/payments"})

	w := a.do(http.MethodGet, "/system/ping", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
