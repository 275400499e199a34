package telemetry

import (
	"context"
	"fmt"
	"time"

	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ExportInterval    time.Duration // Default: 60s
	ServiceName       string
	Insecure          bool
}

// MeterProvider wraps the OpenTelemetry MeterProvider with lifecycle management.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	logger   *zap.Logger
	config   MetricsConfig
}

// NewMeterProvider creates and configures a new MeterProvider.
// If metrics are disabled, Meter falls back to the global no-op provider.
func NewMeterProvider(ctx context.Context, cfg MetricsConfig, logger *zap.Logger) (*MeterProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mp := &MeterProvider{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("Metrics disabled, using no-op meter provider")
		return mp, nil
	}

	exportInterval := cfg.ExportInterval
	if exportInterval == 0 {
		exportInterval = 60 * time.Second
	}

	exporterOpts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.CollectorEndpoint),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
	}

	exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval)),
		),
	)
	otel.SetMeterProvider(mp.provider)

	logger.Info("OpenTelemetry MeterProvider initialized",
		zap.String("collector_endpoint", cfg.CollectorEndpoint),
		zap.Duration("export_interval", exportInterval),
		zap.String("service_name", cfg.ServiceName),
	)

	return mp, nil
}

// Shutdown flushes pending metrics and stops the provider.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := mp.provider.Shutdown(shutdownCtx); err != nil {
		mp.logger.Error("Error shutting down meter provider", zap.Error(err))
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	return nil
}

// Meter returns a named meter from the provider.
func (mp *MeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name, opts...)
	}
	return mp.provider.Meter(name, opts...)
}

// IsEnabled returns whether metrics are enabled.
func (mp *MeterProvider) IsEnabled() bool {
	return mp.config.Enabled && mp.provider != nil
}

// SettlementMetrics records allocation, credit, invoice and FX measurements.
type SettlementMetrics struct {
	allocations       metric.Int64Counter
	allocatedInvoices metric.Int64Histogram
	allocatedAmount   metric.Float64Counter
	creditOverrides   metric.Int64Counter
	invoiceStatus     metric.Int64Counter
	fxLookups         metric.Int64Counter
}

// NewSettlementMetrics registers the settlement instruments on meter.
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	m := &SettlementMetrics{}
	var err error

	if m.allocations, err = meter.Int64Counter("settlement.allocations",
		metric.WithDescription("Payment allocation runs"),
		metric.WithUnit("{allocation}")); err != nil {
		return nil, fmt.Errorf("failed to create allocations counter: %w", err)
	}
	if m.allocatedInvoices, err = meter.Int64Histogram("settlement.allocation.invoices",
		metric.WithDescription("Invoices touched by one allocation run"),
		metric.WithUnit("{invoice}"),
		metric.WithExplicitBucketBoundaries(1, 2, 5, 10, 25, 50)); err != nil {
		return nil, fmt.Errorf("failed to create allocation histogram: %w", err)
	}
	if m.allocatedAmount, err = meter.Float64Counter("settlement.allocation.amount",
		metric.WithDescription("Amount allocated in the reference currency"),
		metric.WithUnit("USD")); err != nil {
		return nil, fmt.Errorf("failed to create allocation amount counter: %w", err)
	}
	if m.creditOverrides, err = meter.Int64Counter("settlement.credit.overrides",
		metric.WithDescription("Credit limit overrides recorded at confirmation"),
		metric.WithUnit("{override}")); err != nil {
		return nil, fmt.Errorf("failed to create credit override counter: %w", err)
	}
	if m.invoiceStatus, err = meter.Int64Counter("settlement.invoice.transitions",
		metric.WithDescription("Invoice status transitions"),
		metric.WithUnit("{transition}")); err != nil {
		return nil, fmt.Errorf("failed to create invoice transition counter: %w", err)
	}
	if m.fxLookups, err = meter.Int64Counter("settlement.fx.lookups",
		metric.WithDescription("Daily exchange rate lookups by source"),
		metric.WithUnit("{lookup}")); err != nil {
		return nil, fmt.Errorf("failed to create fx lookup counter: %w", err)
	}

	return m, nil
}

// RecordAllocation records one allocation run.
func (m *SettlementMetrics) RecordAllocation(ctx context.Context, mode string, invoices int, amountRef decimal.Decimal) {
	attrs := metric.WithAttributes(attribute.String("mode", mode))
	m.allocations.Add(ctx, 1, attrs)
	m.allocatedInvoices.Record(ctx, int64(invoices), attrs)
	m.allocatedAmount.Add(ctx, amountRef.InexactFloat64(), attrs)
}

// RecordCreditOverride counts a confirmed credit limit override.
func (m *SettlementMetrics) RecordCreditOverride(ctx context.Context) {
	m.creditOverrides.Add(ctx, 1)
}

// RecordInvoiceTransition counts an invoice entering status.
func (m *SettlementMetrics) RecordInvoiceTransition(ctx context.Context, status string) {
	m.invoiceStatus.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordFXLookup counts a rate lookup served from source (cache, exact, fallback, missing).
func (m *SettlementMetrics) RecordFXLookup(ctx context.Context, source string) {
	m.fxLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}

var _ appshared.Metrics = (*SettlementMetrics)(nil)
