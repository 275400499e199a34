package persistence

import (
	"errors"
	"testing"
	"time"

	appsales "github.com/erp/settlement/internal/application/sales"
	"github.com/erp/settlement/internal/domain/sales"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/erp/settlement/internal/domain/shared/valueobject"
	"github.com/erp/settlement/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceService_ListInvoices(t *testing.T) {
	h := newSettlementHarness(t)
	a := h.customer("L001", "100000000")
	b := h.customer("L002", "100000000")

	jan1 := testutil.Day(2025, time.January, 1)
	jan2 := testutil.Day(2025, time.January, 2)
	jan3 := testutil.Day(2025, time.January, 3)
	first := h.invoice(a.ID, sales.InvoiceTypeCredit, valueobject.USD, jan1, "1", "10", rateOld("15000"))
	h.invoice(a.ID, sales.InvoiceTypeCredit, valueobject.USD, jan2, "1", "20", rateOld("15000"))
	last := h.invoice(a.ID, sales.InvoiceTypeCash, valueobject.USD, jan3, "1", "30", rateOld("15000"))
	h.invoice(b.ID, sales.InvoiceTypeCredit, valueobject.USD, jan2, "1", "40", rateOld("15000"))

	t.Run("newest first by default", func(t *testing.T) {
		page, err := h.invoices.ListInvoices(h.ctx, appsales.ListInvoicesRequest{CustomerID: a.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		require.Len(t, page.Items, 3)
		assert.Equal(t, last.ID, page.Items[0].ID)
		assert.Equal(t, 1, page.Page)
		assert.Equal(t, 20, page.PageSize)
	})

	t.Run("second page", func(t *testing.T) {
		page, err := h.invoices.ListInvoices(h.ctx, appsales.ListInvoicesRequest{
			CustomerID: a.ID.String(), Page: 2, PageSize: 2, OrderBy: "invoice_date", OrderDir: "asc",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		require.Len(t, page.Items, 1)
		assert.Equal(t, last.ID, page.Items[0].ID)
	})

	t.Run("unknown sort field falls back to invoice date", func(t *testing.T) {
		page, err := h.invoices.ListInvoices(h.ctx, appsales.ListInvoicesRequest{
			CustomerID: a.ID.String(), OrderBy: "customer_name; DROP TABLE invoices", OrderDir: "asc",
		})
		require.NoError(t, err)
		require.Len(t, page.Items, 3)
		assert.Equal(t, first.ID, page.Items[0].ID)
	})

	t.Run("date range is inclusive", func(t *testing.T) {
		page, err := h.invoices.ListInvoices(h.ctx, appsales.ListInvoicesRequest{From: "2025-01-02", To: "2025-01-02"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("status and type", func(t *testing.T) {
		page, err := h.invoices.ListInvoices(h.ctx, appsales.ListInvoicesRequest{Status: "draft", InvoiceType: "CREDIT"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)

		page, err = h.invoices.ListInvoices(h.ctx, appsales.ListInvoicesRequest{Status: "PAID"})
		require.NoError(t, err)
		assert.Zero(t, page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("rejects bad filters", func(t *testing.T) {
		bad := []appsales.ListInvoicesRequest{
			{Status: "OPEN"},
			{InvoiceType: "barter"},
			{CustomerID: "not-a-uuid"},
			{From: "2025-01-03", To: "2025-01-01"},
			{From: "01/02/2025"},
		}
		for _, req := range bad {
			_, err := h.invoices.ListInvoices(h.ctx, req)
			var verr *shared.ValidationError
			assert.True(t, errors.As(err, &verr), "%+v", req)
		}
	})
}

func TestPaymentService_ListPayments(t *testing.T) {
	h := newSettlementHarness(t)
	a := h.customer("L010", "0")
	b := h.customer("L011", "0")

	pay := func(customerID uuid.UUID, day time.Time, amount string) *appsales.PaymentResponse {
		t.Helper()
		resp, err := h.payments.ReceivePayment(h.ctx, appsales.ReceivePaymentRequest{
			CustomerID:  customerID,
			PaymentDate: &day,
			Amount:      testutil.Dec(amount),
			Currency:    valueobject.SYPOld,
			FX:          rateOld("15000"),
		})
		require.NoError(t, err)
		return resp
	}
	pay(a.ID, testutil.Day(2025, time.February, 1), "150000")
	newest := pay(a.ID, testutil.Day(2025, time.February, 5), "300000")
	pay(b.ID, testutil.Day(2025, time.February, 3), "450000")

	page, err := h.payments.ListPayments(h.ctx, appsales.ListPaymentsRequest{CustomerID: a.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, newest.ID, page.Items[0].ID)
	assert.True(t, page.Items[0].AmountReference.Equal(testutil.Dec("20")))

	page, err = h.payments.ListPayments(h.ctx, appsales.ListPaymentsRequest{
		From: "2025-02-02", OrderBy: "amount", OrderDir: "asc",
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.Items[0].Amount.Equal(testutil.Dec("300000")))
	assert.True(t, page.Items[1].Amount.Equal(testutil.Dec("450000")))
}
