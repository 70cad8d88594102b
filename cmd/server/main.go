package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	barcodeapp "github.com/retailops/backend/internal/application/barcode"
	"github.com/retailops/backend/internal/domain/barcode"
	"github.com/retailops/backend/internal/infrastructure/cache"
	"github.com/retailops/backend/internal/infrastructure/config"
	"github.com/retailops/backend/internal/infrastructure/event"
	"github.com/retailops/backend/internal/infrastructure/logger"
	"github.com/retailops/backend/internal/infrastructure/migration"
	"github.com/retailops/backend/internal/infrastructure/persistence"
	"github.com/retailops/backend/internal/infrastructure/telemetry"
	"github.com/retailops/backend/internal/interfaces/http/handler"
	"github.com/retailops/backend/internal/interfaces/http/middleware"
	"github.com/retailops/backend/internal/interfaces/http/router"
	"github.com/retailops/backend/migrations"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.Telemetry.ServiceName,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting barcode service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers are no-ops when disabled
	otelProviders, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := otelProviders.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()

	metrics, err := telemetry.NewBarcodeMetrics(otelProviders.Meter("retailops/barcode"))
	if err != nil {
		log.Fatal("Failed to create barcode metrics", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithExpectedErrors(persistence.IsUniqueViolation),
	)

	dbOpts := []persistence.DatabaseOption{persistence.WithGormLogger(gormLog)}
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracingCfg := telemetry.DefaultDBTracingConfig()
		tracingCfg.Enabled = true
		tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
		dbOpts = append(dbOpts, persistence.WithPlugins(telemetry.NewDBTracingPlugin(tracingCfg, log)))
	}

	if cfg.Database.AutoMigrate {
		if err := migrateSchema(cfg.Database.DSN(), log); err != nil {
			log.Fatal("Failed to migrate database schema", zap.Error(err))
		}
	}

	db, err := persistence.NewDatabase(&cfg.Database, dbOpts...)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Counter store and stored configuration
	store, err := cache.NewCounterStoreFactory(cfg.Barcode, cfg.Redis, db.DB, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create counter store", zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing counter store", zap.Error(err))
		}
	}()

	format, err := barcode.ParseFormat(cfg.Barcode.Format)
	if err != nil {
		log.Fatal("Invalid barcode format", zap.Error(err))
	}

	stored, err := barcodeapp.Bootstrap(ctx, store, cfg.Barcode.Prefix, format, cfg.Barcode.CounterBase, log)
	if err != nil {
		log.Fatal("Failed to bootstrap barcode configuration", zap.Error(err))
	}

	encoder, err := barcode.NewEncoder(stored.Prefix, cfg.Barcode.NamespaceCode)
	if err != nil {
		log.Fatal("Invalid barcode encoder settings", zap.Error(err))
	}
	validator, err := barcode.NewValidator(stored.Prefix)
	if err != nil {
		log.Fatal("Invalid barcode validator settings", zap.Error(err))
	}

	// Events
	eventBus := event.NewInMemoryEventBus(log)
	audit := barcodeapp.NewAuditHandler(log)
	eventBus.Subscribe(audit, audit.EventTypes()...)

	// Application services
	registry := barcodeapp.NewRegistryService(
		persistence.NewGormBarcodeRegistryRepository(db.DB),
		barcodeapp.WithEventPublisher(eventBus),
		barcodeapp.WithRegistryLogger(log),
	)
	generator := barcodeapp.NewGenerator(store, registry, encoder, validator,
		barcodeapp.WithFormat(stored.Format),
		barcodeapp.WithMaxAttempts(cfg.Barcode.MaxRetries),
		barcodeapp.WithBackoff(cfg.Barcode.BackoffInitial, cfg.Barcode.BackoffMax),
		barcodeapp.WithBulkLimits(cfg.Barcode.BulkConcurrency, cfg.Barcode.BulkMaxItems),
		barcodeapp.WithMetrics(metrics),
		barcodeapp.WithLogger(log),
	)
	scanner := barcodeapp.NewScanResolver(registry, validator)

	log.Info("Barcode services ready",
		zap.String("prefix", stored.Prefix),
		zap.String("format", string(stored.Format)),
		zap.String("counter_backend", store.Backend),
	)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	// Global middleware, RequestID first
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.SecureWithConfig(middleware.SecurityConfig{
		HSTSEnabled: cfg.App.Env == "production",
		HSTSMaxAge:  middleware.DefaultSecurityConfig().HSTSMaxAge,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     true,
		}))
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.SpanErrorMarker())
	}

	// Health check (outside the versioned API)
	checks := map[string]handler.Pinger{"database": db}
	if store.Backend == config.CounterBackendRedis {
		checks["redis"] = store
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, checks)
	engine.GET("/health", systemHandler.Health)

	// API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.RequestTimeout(cfg.HTTP.RequestTimeout))

	barcodeHandler := handler.NewBarcodeHandler(generator, registry, scanner, validator)
	r.Register(handler.BarcodeRoutes(barcodeHandler))

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	r.Setup()

	for _, route := range r.Routes() {
		log.Debug("Route registered",
			zap.String("group", route.Group),
			zap.String("method", route.Method),
			zap.String("path", route.Path),
		)
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in a goroutine
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// migrateSchema applies the embedded schema on a dedicated connection,
// which the migrator closes when done
func migrateSchema(dsn string, log *zap.Logger) error {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	m, err := migration.New(conn, migrations.FS, log.Named("migrate"))
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
