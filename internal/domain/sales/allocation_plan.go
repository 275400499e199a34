package sales

import (
	"fmt"
	"sort"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OpenInvoice is an allocation target. RemainingReference is in the reference currency.
type OpenInvoice struct {
	ID                 uuid.UUID
	Number             string
	Date               time.Time
	RemainingReference decimal.Decimal
}

// AllocationLine is one planned allocation in the reference currency
type AllocationLine struct {
	InvoiceID       uuid.UUID
	InvoiceNumber   string
	AmountReference decimal.Decimal
	FullyPaid       bool
}

// AllocationPlan is the outcome of planning, before anything is persisted
type AllocationPlan struct {
	Lines          []AllocationLine
	TotalAllocated decimal.Decimal
	Remaining      decimal.Decimal
}

// ManualLine is a caller-chosen allocation, already converted to the reference currency
type ManualLine struct {
	InvoiceID       uuid.UUID
	AmountReference decimal.Decimal
}

// SortFIFO orders targets oldest first: invoice date, then id
func SortFIFO(targets []OpenInvoice) []OpenInvoice {
	sorted := make([]OpenInvoice, len(targets))
	copy(sorted, targets)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// PlanFIFO spreads available over targets oldest first. Targets with nothing
// remaining are skipped without consuming funds; planning stops once the
// funds are used up.
func PlanFIFO(available decimal.Decimal, targets []OpenInvoice) (*AllocationPlan, error) {
	if !available.IsPositive() {
		return nil, shared.NewValidationError("amount", "no unallocated amount left on this payment")
	}

	plan := &AllocationPlan{
		Lines:          make([]AllocationLine, 0),
		TotalAllocated: decimal.Zero,
	}
	remaining := available

	for _, target := range SortFIFO(targets) {
		if !remaining.IsPositive() {
			break
		}
		if !target.RemainingReference.IsPositive() {
			continue
		}

		amount := decimal.Min(remaining, target.RemainingReference)
		plan.Lines = append(plan.Lines, AllocationLine{
			InvoiceID:       target.ID,
			InvoiceNumber:   target.Number,
			AmountReference: amount,
			FullyPaid:       amount.GreaterThanOrEqual(target.RemainingReference),
		})
		plan.TotalAllocated = plan.TotalAllocated.Add(amount)
		remaining = remaining.Sub(amount)
	}

	plan.Remaining = remaining
	return plan, nil
}

// PlanManual validates caller-chosen allocations against the unallocated
// payment amount and each target's remaining balance. Non-positive lines are
// ignored; repeated invoices are merged into one line.
func PlanManual(available decimal.Decimal, requests []ManualLine, targets []OpenInvoice) (*AllocationPlan, error) {
	if !available.IsPositive() {
		return nil, shared.NewValidationError("amount", "no unallocated amount left on this payment")
	}

	byID := make(map[uuid.UUID]OpenInvoice, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	merged := make(map[uuid.UUID]decimal.Decimal)
	order := make([]uuid.UUID, 0, len(requests))
	total := decimal.Zero
	for _, r := range requests {
		if !r.AmountReference.IsPositive() {
			continue
		}
		if _, ok := byID[r.InvoiceID]; !ok {
			return nil, shared.NewValidationError("invoice_id", fmt.Sprintf("invoice %s is not an allocation target", r.InvoiceID))
		}
		if _, seen := merged[r.InvoiceID]; !seen {
			order = append(order, r.InvoiceID)
			merged[r.InvoiceID] = decimal.Zero
		}
		merged[r.InvoiceID] = merged[r.InvoiceID].Add(r.AmountReference)
		total = total.Add(r.AmountReference)
	}
	if len(order) == 0 {
		return nil, shared.NewValidationError("allocations", "at least one allocation with a positive amount is required")
	}

	if fx.Exceeds(total, available) {
		return nil, shared.NewValidationError("amount",
			fmt.Sprintf("total allocations %s exceed the unallocated payment amount %s by %s",
				total.StringFixed(2), available.StringFixed(2), total.Sub(available).StringFixed(2)))
	}

	plan := &AllocationPlan{
		Lines:          make([]AllocationLine, 0, len(order)),
		TotalAllocated: decimal.Zero,
	}
	for _, id := range order {
		target := byID[id]
		amount := merged[id]
		if fx.Exceeds(amount, target.RemainingReference) {
			return nil, shared.NewAllocationExceedsRemainingError(target.Number, target.RemainingReference, amount)
		}
		plan.Lines = append(plan.Lines, AllocationLine{
			InvoiceID:       id,
			InvoiceNumber:   target.Number,
			AmountReference: amount,
			FullyPaid:       fx.AtLeast(amount, target.RemainingReference),
		})
		plan.TotalAllocated = plan.TotalAllocated.Add(amount)
	}
	plan.Remaining = available.Sub(plan.TotalAllocated)
	return plan, nil
}
