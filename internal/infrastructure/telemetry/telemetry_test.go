package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/erp/settlement/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

type ledgerRow struct {
	ID     uint `gorm:"primaryKey"`
	Amount decimal.Decimal `gorm:"type:decimal(18,4)"`
}

func setupTracerWithRecorder(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, recorder
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDisabledProviders(t *testing.T) {
	ctx := context.Background()

	tp, err := NewTracerProvider(ctx, Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("settlement"))
	require.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
	assert.NoError(t, tp.Shutdown(ctx))

	mp, err := NewMeterProvider(ctx, MetricsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("settlement"))
	assert.NoError(t, mp.Shutdown(ctx))

	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.Shutdown(ctx))

	base := zap.NewNop()
	assert.Same(t, base, Bridge(base, "settlement", lp))

	prof, err := NewProfiler(ProfilerConfig{Enabled: false}, nil)
	require.NoError(t, err)
	assert.False(t, prof.IsEnabled())
	assert.NoError(t, prof.Stop())
	assert.NoError(t, prof.Stop())
}

func TestNewProfiler_RequiresAddress(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "settlement"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application name")
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestSettlementMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	m, err := NewSettlementMetrics(provider.Meter("settlement-test"))
	require.NoError(t, err)

	m.RecordAllocation(ctx, "auto", 3, decimal.RequireFromString("150.50"))
	m.RecordAllocation(ctx, "explicit", 1, decimal.RequireFromString("20"))
	m.RecordCreditOverride(ctx)
	m.RecordInvoiceTransition(ctx, "CONFIRMED")
	m.RecordInvoiceTransition(ctx, "CONFIRMED")
	m.RecordInvoiceTransition(ctx, "PAID")
	m.RecordFXLookup(ctx, "fallback")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	byName := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, mt := range sm.Metrics {
			byName[mt.Name] = mt
		}
	}

	allocations := byName["settlement.allocations"].Data.(metricdata.Sum[int64])
	assert.Len(t, allocations.DataPoints, 2)

	amount := byName["settlement.allocation.amount"].Data.(metricdata.Sum[float64])
	var total float64
	for _, dp := range amount.DataPoints {
		total += dp.Value
	}
	assert.InDelta(t, 170.5, total, 0.0001)

	invoices := byName["settlement.allocation.invoices"].Data.(metricdata.Histogram[int64])
	var count uint64
	for _, dp := range invoices.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)

	overrides := byName["settlement.credit.overrides"].Data.(metricdata.Sum[int64])
	require.Len(t, overrides.DataPoints, 1)
	assert.Equal(t, int64(1), overrides.DataPoints[0].Value)

	transitions := byName["settlement.invoice.transitions"].Data.(metricdata.Sum[int64])
	perStatus := map[string]int64{}
	for _, dp := range transitions.DataPoints {
		status, _ := dp.Attributes.Value("status")
		perStatus[status.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"CONFIRMED": 2, "PAID": 1}, perStatus)

	lookups := byName["settlement.fx.lookups"].Data.(metricdata.Sum[int64])
	require.Len(t, lookups.DataPoints, 1)
	source, _ := lookups.DataPoints[0].Attributes.Value("source")
	assert.Equal(t, "fallback", source.AsString())
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := testutil.NewSQLiteDB(t, &ledgerRow{})
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, nil)
	assert.NoError(t, plugin.Register(db))
}

func TestDBTracingPlugin_RecordsQuerySpans(t *testing.T) {
	db := testutil.NewSQLiteDB(t, &ledgerRow{})
	tp, recorder := setupTracerWithRecorder(t)

	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.TracerProvider = tp
	require.NoError(t, NewDBTracingPlugin(cfg, zap.NewNop()).Register(db))

	ctx, span := tp.Tracer("test").Start(context.Background(), "post-ledger")
	require.NoError(t, db.WithContext(ctx).Create(&ledgerRow{Amount: decimal.NewFromInt(10)}).Error)
	var rows []ledgerRow
	require.NoError(t, db.WithContext(ctx).Find(&rows).Error)
	span.End()

	assert.Len(t, rows, 1)
	assert.Greater(t, len(recorder.Ended()), 1, "expected query spans under the parent span")
}

func TestDBTracingPlugin_MarksSlowQueries(t *testing.T) {
	db := testutil.NewSQLiteDB(t, &ledgerRow{})
	tp, recorder := setupTracerWithRecorder(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: time.Millisecond}, zap.NewNop())

	ctx, span := tp.Tracer("test").Start(context.Background(), "slow-insert")
	ctx = context.WithValue(ctx, queryStartTimeKey{}, time.Now().Add(-time.Second))

	res := db.WithContext(ctx).Create(&ledgerRow{Amount: decimal.NewFromInt(5)})
	require.NoError(t, res.Error)
	plugin.after(res)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	attrs := ended[0].Attributes()

	slow, ok := attrValue(attrs, "db.slow_query")
	require.True(t, ok)
	assert.True(t, slow.AsBool())

	rows, ok := attrValue(attrs, "db.rows_affected")
	require.True(t, ok)
	assert.Equal(t, int64(1), rows.AsInt64())

	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "slow_query_warning", ended[0].Events()[0].Name)
}
