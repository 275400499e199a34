package shared

import (
	"context"

	"github.com/shopspring/decimal"
)

// Metrics receives settlement business measurements
type Metrics interface {
	RecordAllocation(ctx context.Context, mode string, invoices int, amountRef decimal.Decimal)
	RecordCreditOverride(ctx context.Context)
	RecordInvoiceTransition(ctx context.Context, status string)
	RecordFXLookup(ctx context.Context, source string)
}

// NopMetrics discards every measurement
type NopMetrics struct{}

func (NopMetrics) RecordAllocation(context.Context, string, int, decimal.Decimal) {}
func (NopMetrics) RecordCreditOverride(context.Context)                          {}
func (NopMetrics) RecordInvoiceTransition(context.Context, string)               {}
func (NopMetrics) RecordFXLookup(context.Context, string)                        {}

var _ Metrics = NopMetrics{}
