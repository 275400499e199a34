package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in span statements
	SlowQueryThresh time.Duration // default: 200ms
	DBName          string        // reported as db.name on spans

	// TracerProvider overrides the global provider for otelgorm spans.
	TracerProvider trace.TracerProvider
}

// DefaultDBTracingConfig returns the database tracing defaults.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "settlement",
	}
}

// DBTracingPlugin installs otelgorm and annotates its spans with row counts,
// ledger table names and slow query markers.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

type queryStartTimeKey struct{}

// Register installs otelgorm plus the timing callbacks on db.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if p.config.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(p.config.TracerProvider))
	}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_name", p.config.DBName),
	)
	return nil
}

func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		name     string
		register func() error
	}{
		{"create", func() error {
			if err := cb.Create().Before("gorm:create").Register("settle_timing:before_create", p.before); err != nil {
				return err
			}
			return cb.Create().After("gorm:create").Register("settle_timing:after_create", p.after)
		}},
		{"query", func() error {
			if err := cb.Query().Before("gorm:query").Register("settle_timing:before_query", p.before); err != nil {
				return err
			}
			return cb.Query().After("gorm:query").Register("settle_timing:after_query", p.after)
		}},
		{"update", func() error {
			if err := cb.Update().Before("gorm:update").Register("settle_timing:before_update", p.before); err != nil {
				return err
			}
			return cb.Update().After("gorm:update").Register("settle_timing:after_update", p.after)
		}},
		{"delete", func() error {
			if err := cb.Delete().Before("gorm:delete").Register("settle_timing:before_delete", p.before); err != nil {
				return err
			}
			return cb.Delete().After("gorm:delete").Register("settle_timing:after_delete", p.after)
		}},
		{"row", func() error {
			if err := cb.Row().Before("gorm:row").Register("settle_timing:before_row", p.before); err != nil {
				return err
			}
			return cb.Row().After("gorm:row").Register("settle_timing:after_row", p.after)
		}},
		{"raw", func() error {
			if err := cb.Raw().Before("gorm:raw").Register("settle_timing:before_raw", p.before); err != nil {
				return err
			}
			return cb.Raw().After("gorm:raw").Register("settle_timing:after_raw", p.after)
		}},
	}
	for _, s := range steps {
		if err := s.register(); err != nil {
			p.logger.Error("Failed to register db timing callback", zap.String("op", s.name), zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *DBTracingPlugin) before(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey{}, time.Now())
	}
}

func (p *DBTracingPlugin) after(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	var elapsed time.Duration
	startTime, timed := ctx.Value(queryStartTimeKey{}).(time.Time)
	if timed {
		elapsed = time.Since(startTime)
	}
	slow := timed && elapsed > p.config.SlowQueryThresh

	if slow {
		p.logger.Warn("Slow query",
			zap.String("table", db.Statement.Table),
			zap.Duration("elapsed", elapsed),
			zap.Int64("rows", db.Statement.RowsAffected),
		)
	}

	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
