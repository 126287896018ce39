package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	erpadminapp "github.com/erp/catalogsync/internal/application/erpadmin"
	syncapp "github.com/erp/catalogsync/internal/application/productsync"
	"github.com/erp/catalogsync/internal/infrastructure/auth"
	"github.com/erp/catalogsync/internal/infrastructure/cache"
	"github.com/erp/catalogsync/internal/infrastructure/config"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
	"github.com/erp/catalogsync/internal/infrastructure/migration"
	"github.com/erp/catalogsync/internal/infrastructure/odoo"
	"github.com/erp/catalogsync/internal/infrastructure/odoorest"
	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/erp/catalogsync/internal/infrastructure/scheduler"
	"github.com/erp/catalogsync/internal/infrastructure/telemetry"
	"github.com/erp/catalogsync/internal/interfaces/http/handler"
	"github.com/erp/catalogsync/internal/interfaces/http/middleware"
	"github.com/erp/catalogsync/internal/interfaces/http/router"
	"github.com/erp/catalogsync/migrations"
)

//	@title			catalogsync API
//	@version		1.0
//	@description	ERP to commerce catalog product sync: sync runs, ERP product admin and the localized storefront.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout   = 30 * time.Second
	eventBufferSize   = 256
	slowQueryDuration = 200 * time.Millisecond
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "catalogsync:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logCfg := &logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output}
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:               cfg.Telemetry.Enabled,
		CollectorEndpoint:     cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:         cfg.Telemetry.SamplingRatio,
		ServiceName:           cfg.Telemetry.ServiceName,
		ServiceVersion:        version,
		Insecure:              cfg.Telemetry.Insecure,
		MetricsExportInterval: cfg.Telemetry.MetricsExportInterval,
		LogsEnabled:           cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Error("Telemetry shutdown failed", zap.Error(err))
		}
	}()

	// Rebuild the logger with the OTel log bridge once its provider exists.
	if providers.Logs.IsEnabled() {
		level, err := zapcore.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = zapcore.InfoLevel
		}
		if log, err = logger.New(logCfg, providers.Logs.ZapCore(level)); err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting catalog sync service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("catalog", cfg.Catalog.Driver),
	)

	metrics, err := telemetry.NewSyncMetrics(providers.Meter.Meter("catalogsync"))
	if err != nil {
		return fmt.Errorf("create sync metrics: %w", err)
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.GormLevel(cfg.Log.Level), slowQueryDuration)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:  cfg.Database.DBName,
	}, log); err != nil {
		return fmt.Errorf("register database tracing: %w", err)
	}
	if err := migrateSchema(db, cfg.Database.Driver, log); err != nil {
		return err
	}
	log.Info("Database ready", zap.String("driver", cfg.Database.Driver))

	// Redis-or-memory stores
	stores, err := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log)).Create()
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer func() { _ = stores.Close() }()

	// Catalog and downstream consumers
	catalog, err := newCatalog(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	cms, err := newContentClient(cfg, log)
	if err != nil {
		return err
	}
	bus, err := newEventBus(ctx, cfg, cms, stores, metrics, log)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := bus.Stop(stopCtx); err != nil {
			log.Warn("Event bus stop failed", zap.Error(err))
		}
	}()

	// Sync pipeline
	erp, err := odoo.NewClient(odoo.Config{
		URL:        cfg.Odoo.URL,
		DBName:     cfg.Odoo.DBName,
		Username:   cfg.Odoo.Username,
		APIKey:     cfg.Odoo.APIKey,
		Timeout:    cfg.Odoo.Timeout,
		RateLimit:  cfg.Odoo.RateLimit,
		RateBurst:  cfg.Odoo.RateBurst,
		ReadMethod: cfg.Odoo.ReadMethod,
		ActiveOnly: cfg.Odoo.ActiveOnly,
	}, odoo.WithLogger(log), odoo.WithObserver(metrics))
	if err != nil {
		return fmt.Errorf("create ERP client: %w", err)
	}

	runRepo := persistence.NewGormSyncRunRepository(db.DB)
	orchestratorOpts := []syncapp.Option{
		syncapp.WithEventPublisher(bus),
		syncapp.WithRunCache(stores.LatestRun),
		syncapp.WithMetrics(metrics),
		syncapp.WithPageSize(cfg.Sync.PageSize),
	}
	media, err := newMediaUploader(ctx, cfg, log)
	if err != nil {
		return err
	}
	if media != nil {
		orchestratorOpts = append(orchestratorOpts, syncapp.WithMediaUploader(media))
	}
	orchestrator := syncapp.NewOrchestrator(erp, catalog, runRepo, log, orchestratorOpts...)
	runService := syncapp.NewRunService(runRepo, stores.LatestRun, log)

	// Scheduler
	schedCfg := scheduler.DefaultProductSyncSchedulerConfig()
	schedCfg.MaxConcurrentJobs = cfg.Scheduler.MaxConcurrentJobs
	schedCfg.JobTimeout = cfg.Scheduler.JobTimeout
	schedCfg.RetryAttempts = cfg.Scheduler.RetryAttempts
	schedCfg.RetryDelay = cfg.Scheduler.RetryDelay

	syncScheduler, err := scheduler.NewProductSyncScheduler(schedCfg, scheduler.NewProductSyncExecutor(orchestrator, log), log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	cronTrigger, err := scheduler.NewProductSyncCronTrigger(scheduler.ProductSyncCronConfig{
		CronSchedule:  cfg.Scheduler.CronSchedule,
		CheckInterval: cfg.Scheduler.CheckInterval,
		RunOnStartup:  cfg.Scheduler.RunOnStartup,
	}, syncScheduler, log)
	if err != nil {
		return fmt.Errorf("create cron trigger: %w", err)
	}
	if err := syncScheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if cfg.Scheduler.Enabled {
		if err := cronTrigger.Start(ctx); err != nil {
			return fmt.Errorf("start cron trigger: %w", err)
		}
	} else {
		log.Info("Scheduled sync disabled; manual triggers only")
	}

	// HTTP
	jwtService := auth.NewJWTService(cfg.JWT)
	handlers := router.Handlers{
		System: handler.NewSystemHandler(version,
			handler.HealthCheck{Name: "database", Check: db.Ping},
			handler.HealthCheck{Name: "scheduler", Check: func(context.Context) error {
				if !syncScheduler.IsRunning() {
					return scheduler.ErrSchedulerNotRunning
				}
				return nil
			}},
		),
		Auth:       handler.NewAuthHandler(auth.NewAdminAuthenticator(cfg.Admin), jwtService, stores.TokenBlacklist, log),
		Sync:       handler.NewSyncHandler(runService, cronTrigger, syncScheduler, log),
		Storefront: handler.NewStorefrontHandler(newStorefront(catalog, cms, log)),
	}
	if cfg.OdooREST.Enabled {
		rest, err := odoorest.NewClient(odoorest.Config{
			BaseURL:        cfg.OdooREST.BaseURL,
			Username:       cfg.OdooREST.Username,
			Password:       cfg.OdooREST.Password,
			DBName:         cfg.OdooREST.DBName,
			Timeout:        cfg.OdooREST.Timeout,
			MaxAuthRetries: cfg.OdooREST.MaxAuthRetries,
		}, odoorest.WithLogger(log))
		if err != nil {
			return fmt.Errorf("create ERP REST client: %w", err)
		}
		products := erpadminapp.NewProductService(rest, log, erpadminapp.WithRemovalEvents(catalog, bus))
		handlers.ERPProducts = handler.NewERPProductHandler(products)
	}

	engine := router.NewEngine(router.EngineConfig{
		HTTP:           cfg.HTTP,
		Release:        cfg.App.Env == "production",
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		MeterProvider:  providers.Meter,
		Logger:         log,
	})
	routes := router.RegisterRoutes(engine, handlers, router.RoutesConfig{
		JWT: middleware.JWTMiddlewareConfig{
			JWTService:     jwtService,
			TokenBlacklist: stores.TokenBlacklist,
			Logger:         log,
		},
		LoginLimiter: middleware.NewRateLimiter(cfg.HTTP.LoginRateLimit, cfg.HTTP.LoginBurst),
	})
	log.Info("Routes registered", zap.Int("count", len(routes)))

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		if err := cronTrigger.Stop(shutdownCtx); err != nil {
			log.Warn("Cron trigger stop failed", zap.Error(err))
		}
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Scheduler stop failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	return nil
}

// migrateSchema brings the schema up to date. PostgreSQL runs the embedded
// SQL migrations; SQLite, used for local runs, is auto-migrated from the models.
func migrateSchema(db *persistence.Database, driver string, log *zap.Logger) error {
	if driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := db.SQLDB()
	if err != nil {
		return err
	}
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, log)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	// The migrator is not closed: closing it closes the shared *sql.DB.
	v, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info("Schema migrated", zap.Uint("version", v), zap.Bool("dirty", dirty))
	return nil
}
