package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcredit "github.com/erp/settlement/internal/application/credit"
	appfx "github.com/erp/settlement/internal/application/fx"
	inventoryapp "github.com/erp/settlement/internal/application/inventory"
	partnerapp "github.com/erp/settlement/internal/application/partner"
	purchasingapp "github.com/erp/settlement/internal/application/purchasing"
	salesapp "github.com/erp/settlement/internal/application/sales"
	appshared "github.com/erp/settlement/internal/application/shared"
	"github.com/erp/settlement/internal/domain/fx"
	"github.com/erp/settlement/internal/infrastructure/cache"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/erp/settlement/internal/infrastructure/logger"
	"github.com/erp/settlement/internal/infrastructure/migration"
	"github.com/erp/settlement/internal/infrastructure/persistence"
	"github.com/erp/settlement/internal/infrastructure/telemetry"
	"github.com/erp/settlement/internal/interfaces/http/handler"
	"github.com/erp/settlement/internal/interfaces/http/middleware"
	"github.com/erp/settlement/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/erp/settlement/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Settlement API
//	@version		1.0
//	@description	Dual-currency invoicing, payment allocation and credit control

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	tel := setupTelemetry(ctx, cfg, log)
	log = tel.logger
	defer func() { _ = log.Sync() }()

	log.Info("Starting settlement service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	db := openDatabase(cfg, log, tel)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	rateCache, err := cache.NewRateCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateCache(ctx)
	if err != nil {
		log.Fatal("Failed to create rate cache", zap.Error(err))
	}

	var metrics appshared.Metrics = appshared.NopMetrics{}
	if tel.meters.IsEnabled() {
		m, err := telemetry.NewSettlementMetrics(tel.meters.Meter("settlement"))
		if err != nil {
			log.Fatal("Failed to create settlement metrics", zap.Error(err))
		}
		metrics = m
	}

	handlers := buildHandlers(cfg, db, rateCache, metrics, log)
	handlers.System.AddCheck("database", db.PingContext)
	if redisCache, ok := rateCache.(*cache.RedisRateCache); ok {
		handlers.System.AddCheck("redis", redisCache.Ping)
	}

	middleware.SetupValidator()
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	profilingCfg := middleware.DefaultProfilingConfig()
	profilingCfg.Enabled = cfg.Profiling.Enabled

	// RequestID and Actor run before tracing so the server span carries them
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Actor(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			Meter:   tel.meters.Meter("settlement.http"),
			Enabled: tel.meters.IsEnabled(),
		}),
		middleware.Profiling(profilingCfg),
	)

	apiMiddleware := []gin.HandlerFunc{middleware.BodyLimit(cfg.HTTP.MaxBodySize)}
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}

	r := router.NewRouter(engine, router.WithMiddleware(apiMiddleware...))
	handlers.System.SetRoutes(handlers.Register(r))
	r.Setup()

	engine.GET("/health", handlers.System.Health)
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:    cfg.Swagger.Enabled,
			AllowedIPs: cfg.Swagger.AllowedIPs,
		}),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if limiter != nil {
		limiter.Stop()
	}
	tel.shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

// telemetryStack holds the OpenTelemetry providers and the logger bridged
// to the OTLP log pipeline
type telemetryStack struct {
	logger   *zap.Logger
	tracer   *telemetry.TracerProvider
	meters   *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) *telemetryStack {
	t := &telemetryStack{logger: log}
	var err error

	t.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	t.meters, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	t.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	t.logger = telemetry.Bridge(log, cfg.Telemetry.ServiceName, t.logs)

	t.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, t.logger)
	if err != nil {
		log.Fatal("Failed to initialize profiler", zap.Error(err))
	}
	if t.profiler.IsEnabled() && t.tracer.IsEnabled() {
		if err := t.tracer.EnableSpanProfiles(); err != nil {
			t.logger.Warn("Span profiles unavailable", zap.Error(err))
		}
	}
	return t
}

func (t *telemetryStack) shutdown(ctx context.Context) {
	if err := t.profiler.Stop(); err != nil {
		t.logger.Error("Profiler shutdown failed", zap.Error(err))
	}
	if err := t.meters.Shutdown(ctx); err != nil {
		t.logger.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := t.tracer.Shutdown(ctx); err != nil {
		t.logger.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		t.logger.Error("Log provider shutdown failed", zap.Error(err))
	}
}

// openDatabase connects, installs query tracing and brings the schema up to
// date: SQL migrations for postgres, AutoMigrate for sqlite.
func openDatabase(cfg *config.Config, log *zap.Logger, tel *telemetryStack) *persistence.Database {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		}, log)
		if err := plugin.Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	if !cfg.Database.AutoMigrate {
		return db
	}
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
		return db
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		log.Fatal("Failed to prepare migrations", zap.Error(err))
	}
	if err := m.Up(); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}
	return db
}

// buildHandlers wires repositories, services and HTTP handlers
func buildHandlers(cfg *config.Config, db *persistence.Database, rateCache appfx.RateCache,
	metrics appshared.Metrics, log *zap.Logger) *handler.Handlers {
	gdb := db.DB

	customerRepo := persistence.NewGormCustomerRepository(gdb)
	supplierRepo := persistence.NewGormSupplierRepository(gdb)
	warehouseRepo := persistence.NewGormWarehouseRepository(gdb)
	ledgerRepo := persistence.NewGormLedgerRepository(gdb)
	invoiceRepo := persistence.NewGormInvoiceRepository(gdb)
	paymentRepo := persistence.NewGormPaymentRepository(gdb)
	returnRepo := persistence.NewGormReturnRepository(gdb)
	orderRepo := persistence.NewGormPurchaseOrderRepository(gdb)
	scope := persistence.NewGormTransactionScope(gdb)

	rates := appfx.NewRateService(persistence.NewGormDailyRateRepository(gdb), rateCache, appfx.Config{
		Policy:          fx.Policy(cfg.FX.Policy),
		MaxLookbackDays: cfg.FX.MaxLookbackDays,
	}, log)
	rates.SetMetrics(metrics)

	stockLedger := inventoryapp.NewStockLedger(log)

	engine := salesapp.NewAllocationEngine(scope, log)
	engine.SetMetrics(metrics)

	invoices := salesapp.NewInvoiceService(scope, invoiceRepo, customerRepo, warehouseRepo, rates, stockLedger, log)
	invoices.SetMetrics(metrics)

	return &handler.Handlers{
		Customers: handler.NewCustomerHandler(
			partnerapp.NewCustomerService(customerRepo, ledgerRepo, rates, log),
			appcredit.NewService(customerRepo, rates, log),
			invoices,
			salesapp.NewStatementService(customerRepo, invoiceRepo, paymentRepo, returnRepo, log),
		),
		Suppliers:  handler.NewSupplierHandler(partnerapp.NewSupplierService(supplierRepo, ledgerRepo, log)),
		Warehouses: handler.NewWarehouseHandler(partnerapp.NewWarehouseService(warehouseRepo, log)),
		Stock: handler.NewStockHandler(inventoryapp.NewStockService(scope,
			persistence.NewGormProductRepository(gdb), persistence.NewGormStockRepository(gdb), stockLedger, log)),
		Invoices: handler.NewInvoiceHandler(invoices, salesapp.NewReturnService(scope, returnRepo, stockLedger, log)),
		Payments: handler.NewPaymentHandler(salesapp.NewPaymentService(scope, paymentRepo, engine, rates, log), engine),
		PurchaseOrders: handler.NewPurchaseOrderHandler(
			purchasingapp.NewService(scope, orderRepo, supplierRepo, warehouseRepo, rates, stockLedger, log)),
		FXRates: handler.NewFXRateHandler(rates),
		Audit:   handler.NewAuditHandler(persistence.NewGormAuditRepository(gdb)),
		System:  handler.NewSystemHandler("Settlement API", version),
	}
}
