package sales

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(month time.Month, dd int) time.Time {
	return time.Date(2025, month, dd, 0, 0, 0, 0, time.UTC)
}

func TestSortFIFO(t *testing.T) {
	a := OpenInvoice{ID: uuid.MustParse("00000000-0000-0000-0000-000000000002"), Number: "A", Date: day(time.January, 5)}
	b := OpenInvoice{ID: uuid.MustParse("00000000-0000-0000-0000-000000000001"), Number: "B", Date: day(time.January, 5)}
	c := OpenInvoice{ID: uuid.New(), Number: "C", Date: day(time.January, 1)}

	input := []OpenInvoice{a, b, c}
	sorted := SortFIFO(input)

	require.Len(t, sorted, 3)
	assert.Equal(t, "C", sorted[0].Number)
	assert.Equal(t, "B", sorted[1].Number, "same date falls back to id")
	assert.Equal(t, "A", sorted[2].Number)
	assert.Equal(t, "A", input[0].Number, "input is not reordered")
}

func TestPlanFIFO(t *testing.T) {
	t.Run("pays oldest first and leaves the newest partial", func(t *testing.T) {
		targets := []OpenInvoice{
			{ID: uuid.New(), Number: "INV-2", Date: day(time.January, 5), RemainingReference: d("60")},
			{ID: uuid.New(), Number: "INV-1", Date: day(time.January, 1), RemainingReference: d("40")},
		}

		plan, err := PlanFIFO(d("90"), targets)
		require.NoError(t, err)
		require.Len(t, plan.Lines, 2)

		assert.Equal(t, "INV-1", plan.Lines[0].InvoiceNumber)
		assert.True(t, plan.Lines[0].AmountReference.Equal(d("40")))
		assert.True(t, plan.Lines[0].FullyPaid)

		assert.Equal(t, "INV-2", plan.Lines[1].InvoiceNumber)
		assert.True(t, plan.Lines[1].AmountReference.Equal(d("50")))
		assert.False(t, plan.Lines[1].FullyPaid)

		assert.True(t, plan.TotalAllocated.Equal(d("90")))
		assert.True(t, plan.Remaining.IsZero())
	})

	t.Run("never allocates to a later invoice while an earlier one is open", func(t *testing.T) {
		targets := []OpenInvoice{
			{ID: uuid.New(), Number: "D3", Date: day(time.March, 1), RemainingReference: d("10")},
			{ID: uuid.New(), Number: "D1", Date: day(time.January, 1), RemainingReference: d("10")},
			{ID: uuid.New(), Number: "D2", Date: day(time.February, 1), RemainingReference: d("10")},
		}

		plan, err := PlanFIFO(d("15"), targets)
		require.NoError(t, err)
		require.Len(t, plan.Lines, 2)
		assert.Equal(t, "D1", plan.Lines[0].InvoiceNumber)
		assert.Equal(t, "D2", plan.Lines[1].InvoiceNumber)
		assert.True(t, plan.Lines[1].AmountReference.Equal(d("5")))
	})

	t.Run("skips settled targets and keeps the surplus", func(t *testing.T) {
		targets := []OpenInvoice{
			{ID: uuid.New(), Number: "ZERO", Date: day(time.January, 1), RemainingReference: decimal.Zero},
			{ID: uuid.New(), Number: "OPEN", Date: day(time.January, 2), RemainingReference: d("25")},
		}

		plan, err := PlanFIFO(d("100"), targets)
		require.NoError(t, err)
		require.Len(t, plan.Lines, 1)
		assert.Equal(t, "OPEN", plan.Lines[0].InvoiceNumber)
		assert.True(t, plan.Remaining.Equal(d("75")))
	})

	t.Run("no funds", func(t *testing.T) {
		_, err := PlanFIFO(decimal.Zero, nil)
		var verr *shared.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestPlanManual(t *testing.T) {
	invA := OpenInvoice{ID: uuid.New(), Number: "A", Date: day(time.January, 1), RemainingReference: d("100")}
	invB := OpenInvoice{ID: uuid.New(), Number: "B", Date: day(time.January, 2), RemainingReference: d("50")}
	targets := []OpenInvoice{invA, invB}

	t.Run("splits a payment across two invoices", func(t *testing.T) {
		plan, err := PlanManual(d("120"), []ManualLine{
			{InvoiceID: invA.ID, AmountReference: d("100")},
			{InvoiceID: invB.ID, AmountReference: d("20")},
		}, targets)
		require.NoError(t, err)
		require.Len(t, plan.Lines, 2)
		assert.True(t, plan.Lines[0].FullyPaid)
		assert.False(t, plan.Lines[1].FullyPaid)
		assert.True(t, plan.TotalAllocated.Equal(d("120")))
		assert.True(t, plan.Remaining.IsZero())
	})

	t.Run("rejects an amount above the invoice remaining", func(t *testing.T) {
		small := OpenInvoice{ID: uuid.New(), Number: "INV-30", RemainingReference: d("30")}
		_, err := PlanManual(d("100"), []ManualLine{{InvoiceID: small.ID, AmountReference: d("35")}}, []OpenInvoice{small})

		var exceeds *shared.AllocationExceedsRemainingError
		require.True(t, errors.As(err, &exceeds))
		assert.Equal(t, "INV-30", exceeds.InvoiceNumber)
		assert.True(t, exceeds.Remaining.Equal(d("30")))
		assert.True(t, exceeds.Requested.Equal(d("35")))

		var verr *shared.ValidationError
		assert.True(t, errors.As(err, &verr), "exceeding the remaining is a validation failure")
	})

	t.Run("tolerates a cent of rounding", func(t *testing.T) {
		plan, err := PlanManual(d("100"), []ManualLine{{InvoiceID: invB.ID, AmountReference: d("50.01")}}, targets)
		require.NoError(t, err)
		assert.True(t, plan.Lines[0].FullyPaid)
	})

	t.Run("rejects a total above the unallocated amount", func(t *testing.T) {
		_, err := PlanManual(d("60"), []ManualLine{
			{InvoiceID: invA.ID, AmountReference: d("50")},
			{InvoiceID: invB.ID, AmountReference: d("20")},
		}, targets)
		var verr *shared.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "amount", verr.Field)
		assert.Contains(t, verr.Message, "10.00")
	})

	t.Run("merges repeated invoices and skips non-positive lines", func(t *testing.T) {
		plan, err := PlanManual(d("100"), []ManualLine{
			{InvoiceID: invA.ID, AmountReference: d("10")},
			{InvoiceID: invB.ID, AmountReference: decimal.Zero},
			{InvoiceID: invA.ID, AmountReference: d("15")},
		}, targets)
		require.NoError(t, err)
		require.Len(t, plan.Lines, 1)
		assert.True(t, plan.Lines[0].AmountReference.Equal(d("25")))
		assert.True(t, plan.Remaining.Equal(d("75")))
	})

	t.Run("empty request", func(t *testing.T) {
		_, err := PlanManual(d("100"), []ManualLine{{InvoiceID: invA.ID, AmountReference: d("-1")}}, targets)
		var verr *shared.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "allocations", verr.Field)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := PlanManual(d("100"), []ManualLine{{InvoiceID: uuid.New(), AmountReference: d("1")}}, targets)
		var verr *shared.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Equal(t, "invoice_id", verr.Field)
	})
}

func TestPaymentAllocation_Increment(t *testing.T) {
	inv := &Invoice{InvoiceNumber: "INV-1"}
	inv.ID = uuid.New()
	paymentID := uuid.New()

	alloc := NewPaymentAllocation(paymentID, inv, d("600000"), d("40"))
	alloc.Increment(d("150000"), d("10"))

	assert.Equal(t, paymentID, alloc.PaymentID)
	assert.Equal(t, inv.ID, alloc.InvoiceID)
	assert.Equal(t, "INV-1", alloc.InvoiceNumber)
	assert.True(t, alloc.Amount.Equal(d("750000")))
	assert.True(t, alloc.AmountReference.Equal(d("50")))
}
