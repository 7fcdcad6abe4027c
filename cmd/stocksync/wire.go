package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appstocksync "github.com/erp/stocksync/internal/application/stocksync"
	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/config"
	"github.com/erp/stocksync/internal/infrastructure/erp"
	"github.com/erp/stocksync/internal/infrastructure/lock"
	"github.com/erp/stocksync/internal/infrastructure/notify"
	"github.com/erp/stocksync/internal/infrastructure/persistence"
	"github.com/erp/stocksync/internal/infrastructure/scheduler"
	"github.com/erp/stocksync/internal/infrastructure/storefront"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
)

// components is the wired object graph shared by the commands
type components struct {
	db           *persistence.Database
	repos        appstocksync.Repositories
	storefronts  *storefront.Factory
	orchestrator *appstocksync.Orchestrator
	tracer       *telemetry.TracerProvider
	meter        *telemetry.MeterProvider
	redis        *redis.Client
	log          *zap.Logger
}

// buildComponents opens the database and wires the orchestrator with its
// adapters. Missing ERP credentials are not fatal: the next batch fails
// with a configuration error instead.
func buildComponents(ctx context.Context, cfg *config.Config, version string, log *zap.Logger) (*components, error) {
	c := &components{log: log}

	tracer, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		return nil, err
	}
	c.tracer = tracer

	meter, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.Metrics,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log.Named("telemetry"))
	if err != nil {
		c.close(ctx)
		return nil, err
	}
	c.meter = meter
	syncMetrics, err := telemetry.NewSyncMetrics(meter.Meter(telemetry.MeterName))
	if err != nil {
		c.close(ctx)
		return nil, err
	}

	db, err := persistence.NewDatabase(&cfg.Database, log.Named("gorm"), cfg.Log.Level)
	if err != nil {
		c.close(ctx)
		return nil, err
	}
	c.db = db
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	if cfg.Database.Driver == "sqlite" {
		if err := persistence.AutoMigrate(db.DB); err != nil {
			c.close(ctx)
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
		DBName:          cfg.Database.DBName,
		SlowQueryThresh: cfg.Database.SlowQueryThreshold,
	}, log.Named("telemetry")); err != nil {
		c.close(ctx)
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	gormRepos := db.Repositories()
	c.repos = appstocksync.Repositories{
		Batches:  gormRepos.Batches,
		Results:  gormRepos.Results,
		Caches:   gormRepos.Caches,
		Sites:    gormRepos.Sites,
		Settings: gormRepos.Settings,
		Products: gormRepos.Products,
	}

	var erpService integration.ErpService
	erpClient, err := erp.NewClient(erp.Config{
		BaseURL:           cfg.ERP.BaseURL,
		APIKey:            cfg.ERP.APIKey,
		Timeout:           cfg.ERP.Timeout,
		MaxPages:          cfg.ERP.MaxPages,
		RequestsPerSecond: cfg.ERP.RequestsPerSecond,
	}, log.Named("erp"))
	switch {
	case err == nil:
		erpService = erpClient
	case errors.Is(err, integration.ErrErpNotConfigured):
		log.Warn("ERP client not configured, batches will fail until erp.base_url and erp.api_key are set")
	default:
		c.close(ctx)
		return nil, err
	}

	c.storefronts = storefront.NewFactory(storefront.FactoryConfig{
		Timeout:           cfg.Storefront.Timeout,
		RequestsPerSecond: cfg.Storefront.RequestsPerSecond,
		Burst:             cfg.Storefront.Burst,
	})

	channel, err := notify.Build(ctx, cfg.Notify, log.Named("notify"))
	if err != nil {
		c.close(ctx)
		return nil, fmt.Errorf("build notification channels: %w", err)
	}

	locker, err := c.buildLocker(ctx, cfg)
	if err != nil {
		c.close(ctx)
		return nil, err
	}

	c.orchestrator = appstocksync.NewOrchestrator(c.repos, erpService, c.storefronts, log.Named("sync")).
		WithConfig(appstocksync.OrchestratorConfig{
			BatchTTL:     cfg.Sync.BatchTTL,
			ErpPageSize:  cfg.ERP.PageSize,
			MappingLimit: cfg.ERP.MappingLimit,
			LockTTL:      cfg.Sync.LockTTL,

			ProductMaxAge: cfg.Storefront.ProductCacheTTL,
		}).
		WithNotifier(appstocksync.NewNotifier(channel, log.Named("notifier"))).
		WithMappingCache(appstocksync.NewMappingCache(cfg.Sync.MappingCacheTTL)).
		WithLocker(locker).
		WithMetrics(syncMetrics)

	return c, nil
}

func (c *components) buildLocker(ctx context.Context, cfg *config.Config) (stocksync.BatchLocker, error) {
	if !cfg.Redis.Enabled {
		c.log.Info("Redis disabled, batch creation lock is process-local")
		return lock.NewMemoryBatchLocker(), nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.redis = client
	c.log.Info("Redis batch lock enabled", zap.String("addr", cfg.Redis.Addr()))
	return lock.NewRedisBatchLocker(client, lock.WithLogger(c.log.Named("lock"))), nil
}

// newRunner builds the background runner over the orchestrator
func (c *components) newRunner(cfg *config.Config) (*scheduler.SyncRunner, error) {
	return scheduler.NewSyncRunner(scheduler.SyncRunnerConfig{
		Interval:       cfg.Sync.Interval,
		MaxStepsPerRun: cfg.Sync.MaxStepsPerRun,
		StepTimeout:    cfg.Sync.StepTimeout,
		RunOnStart:     true,
	}, c.orchestrator, c.log.Named("scheduler"))
}

// close releases everything built so far
func (c *components) close(ctx context.Context) {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warn("Error closing redis client", zap.Error(err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.log.Error("Error closing database", zap.Error(err))
		}
	}
	if c.meter != nil {
		if err := c.meter.Shutdown(ctx); err != nil {
			c.log.Warn("Error shutting down meter provider", zap.Error(err))
		}
	}
	if c.tracer != nil {
		if err := c.tracer.Shutdown(ctx); err != nil {
			c.log.Warn("Error shutting down tracer provider", zap.Error(err))
		}
	}
}
