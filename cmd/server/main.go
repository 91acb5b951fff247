package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	inventoryapp "github.com/erp/inventory/internal/application/inventory"
	"github.com/erp/inventory/internal/infrastructure/cache"
	"github.com/erp/inventory/internal/infrastructure/config"
	"github.com/erp/inventory/internal/infrastructure/event"
	"github.com/erp/inventory/internal/infrastructure/logger"
	"github.com/erp/inventory/internal/infrastructure/messaging"
	"github.com/erp/inventory/internal/infrastructure/persistence"
	"github.com/erp/inventory/internal/infrastructure/scheduler"
	"github.com/erp/inventory/internal/infrastructure/telemetry"
	"github.com/erp/inventory/internal/interfaces/http/handler"
	"github.com/erp/inventory/internal/interfaces/http/middleware"
	"github.com/erp/inventory/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	version          = "1.0.0"
	maxRequestBody   = 1 << 20
	handlerTimeout   = 15 * time.Second
	shutdownDeadline = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	otelProviders, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		Endpoint:        cfg.Telemetry.CollectorEndpoint,
		Insecure:        cfg.Telemetry.Insecure,
		ServiceName:     cfg.Telemetry.ServiceName,
		SamplingRatio:   cfg.Telemetry.SamplingRatio,
		MetricsInterval: cfg.Telemetry.MetricsInterval,
		Logs:            cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to set up telemetry", zap.Error(err))
	}
	// Re-create the logger so every later component logs through the otel tee
	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		otelCore := otelProviders.ZapCore(logger.ParseLevel(cfg.Log.Level))
		if log, err = logger.New(logCfg, otelCore); err != nil {
			panic("Failed to initialize logger: " + err.Error())
		}
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting inventory service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
	)
	meter := otelProviders.Meter()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServer,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && otelProviders.Tracing() {
		otelProviders.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))

	if cfg.Telemetry.DBTraceEnabled {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, otelProviders.TracerProvider(), log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	stockRepo := persistence.NewGormStockRepository(db.DB)

	coordination, err := cache.NewCoordination(ctx, cfg.Redis, cfg.Inventory.LockWait, log)
	if err != nil {
		log.Fatal("Failed to initialize coordination store", zap.Error(err))
	}

	// Event bus and subscribers
	eventBus := event.NewInMemoryEventBus(log)

	inventoryMetrics, err := telemetry.NewInventoryMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create inventory metrics", zap.Error(err))
	}
	eventBus.Subscribe(inventoryMetrics, inventoryMetrics.EventTypes()...)

	alertHandler := event.NewIdempotentHandler(
		inventoryapp.NewAlertNotificationHandler(log),
		coordination.Idempotency,
		log,
		event.WithKeyFunc(inventoryapp.AlertDedupKey),
		event.WithTTL(cfg.Inventory.AlertDedupWindow),
	)
	eventBus.Subscribe(alertHandler, alertHandler.EventTypes()...)

	var forwarder *messaging.EventForwarder
	if cfg.Kafka.Enabled {
		producer, err := messaging.NewProducer(cfg.Kafka, cfg.Telemetry.ServiceName, otelProviders.TracerProvider(), log)
		if err != nil {
			log.Fatal("Failed to create Kafka producer", zap.Error(err))
		}
		forwarder = messaging.NewEventForwarder(producer, event.NewInventorySerializer(), log)
		eventBus.Subscribe(forwarder, forwarder.EventTypes()...)
		log.Info("Forwarding inventory events to Kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// Application services
	stockService := inventoryapp.NewStockService(stockRepo, coordination.Locker, eventBus, inventoryapp.ServiceConfig{
		LockTTL:     cfg.Inventory.LockTTL,
		SaveRetries: cfg.Inventory.SaveRetries,
		DefaultFEFO: cfg.Inventory.DefaultFEFO,
	}, log)
	sweepService := inventoryapp.NewExpirationSweepService(stockService, stockRepo, log).
		WithRecorder(inventoryMetrics)

	sweepScheduler, err := scheduler.NewIntervalScheduler(scheduler.Config{
		Name:       "expiration_sweep",
		Enabled:    cfg.Inventory.SweepEnabled,
		Interval:   cfg.Inventory.SweepInterval,
		JobTimeout: cfg.Inventory.SweepInterval / 2,
		RunOnStart: true,
	}, scheduler.JobFunc(func(ctx context.Context) error {
		_, err := sweepService.Sweep(ctx)
		return err
	}), log)
	if err != nil {
		log.Fatal("Failed to create sweep scheduler", zap.Error(err))
	}
	if err := sweepScheduler.Start(ctx); err != nil {
		log.Fatal("Failed to start sweep scheduler", zap.Error(err))
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Enabled:        cfg.Telemetry.Enabled,
		TracerProvider: otelProviders.TracerProvider(),
	})...)
	engine.Use(middleware.HTTPMetrics(meter))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(maxRequestBody))
	engine.Use(middleware.Timeout(handlerTimeout))

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, cfg.HTTP.RateLimitBurst)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	health := handler.NewHealthHandler(version).
		WithCheck("database", func(context.Context) error { return db.Ping() }).
		WithCheck("coordination", coordination.Ping)

	router.NewRouter(engine, router.WithHealth(health.Health)).
		Register(router.StockRoutes(handler.NewStockHandler(stockService))).
		Setup()

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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if limiter != nil {
		limiter.Stop()
	}
	if err := sweepScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Sweep scheduler did not stop cleanly", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	if forwarder != nil {
		if err := forwarder.Close(); err != nil {
			log.Warn("Failed to close Kafka producer", zap.Error(err))
		}
	}
	if err := coordination.Close(); err != nil {
		log.Warn("Failed to close coordination store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Failed to stop profiler", zap.Error(err))
	}
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to shut down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
