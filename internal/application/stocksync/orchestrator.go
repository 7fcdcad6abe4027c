package stocksync

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
)

const (
	batchCreateLockKey = "stocksync:batch:create"
	batchCreateLockTTL = 30 * time.Second
)

// ErrBatchBusy is returned when another worker is creating the active batch.
var ErrBatchBusy = errors.New("stocksync: batch creation in progress elsewhere")

// OrchestratorConfig holds the tunables of the step state machine.
type OrchestratorConfig struct {
	BatchTTL     time.Duration
	ErpPageSize  int
	MappingLimit int
	LockTTL      time.Duration
	// ProductMaxAge is how long a cached storefront product is trusted
	ProductMaxAge time.Duration
}

// DefaultOrchestratorConfig returns the default configuration
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		BatchTTL:     stocksync.DefaultBatchTTL,
		ErpPageSize:  100,
		MappingLimit: 10000,
		LockTTL:      batchCreateLockTTL,

		ProductMaxAge: DefaultProductMaxAge,
	}
}

// Repositories groups the persistence ports the orchestrator needs.
type Repositories struct {
	Batches  stocksync.BatchRepository
	Results  stocksync.SiteResultRepository
	Caches   stocksync.InventoryCacheRepository
	Sites    stocksync.SiteRepository
	Settings stocksync.SettingsRepository
	Products stocksync.ProductCacheRepository
}

// StepOutcome describes what one RunStep invocation did.
type StepOutcome struct {
	BatchID      string                `json:"batch_id"`
	Step         int                   `json:"step"`
	Kind         stocksync.StepKind    `json:"kind"`
	Status       stocksync.BatchStatus `json:"status"`
	CurrentStep  int                   `json:"current_step"`
	TotalSites   int                   `json:"total_sites"`
	Created      bool                  `json:"created"`
	Done         bool                  `json:"done"`
	ErrorMessage string                `json:"error_message,omitempty"`
}

// Orchestrator drives sync batches one persisted step per invocation:
// step 0 fetches the ERP, steps 1..N sync one site each and step N+1
// aggregates and notifies.
type Orchestrator struct {
	repos        Repositories
	erp          integration.ErpService
	storefronts  integration.StorefrontFactory
	mappingCache *MappingCache
	pipeline     *FilterPipeline
	lookup       *ProductLookup
	syncer       *SiteSyncer
	notifier     *Notifier
	locker       stocksync.BatchLocker
	metrics      *telemetry.SyncMetrics
	config       OrchestratorConfig
	logger       *zap.Logger
	now          func() time.Time
}

// NewOrchestrator wires an orchestrator with the default collaborators built
// from repos.
func NewOrchestrator(repos Repositories, erp integration.ErpService, storefronts integration.StorefrontFactory, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	pipeline := NewFilterPipeline(logger.Named("filter"))
	lookup := NewProductLookup(repos.Products, logger.Named("lookup"))
	executor := NewSiteExecutor(lookup, logger.Named("executor"))
	return &Orchestrator{
		repos:        repos,
		erp:          erp,
		storefronts:  storefronts,
		mappingCache: NewMappingCache(DefaultMappingCacheTTL),
		pipeline:     pipeline,
		lookup:       lookup,
		syncer:       NewSiteSyncer(pipeline, lookup, executor, logger.Named("site")),
		notifier:     NewNotifier(nil, logger.Named("notifier")),
		locker:       noopLocker{},
		config:       DefaultOrchestratorConfig(),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithConfig overrides the orchestrator configuration
func (o *Orchestrator) WithConfig(cfg OrchestratorConfig) *Orchestrator {
	def := DefaultOrchestratorConfig()
	if cfg.BatchTTL <= 0 {
		cfg.BatchTTL = def.BatchTTL
	}
	if cfg.ErpPageSize <= 0 {
		cfg.ErpPageSize = def.ErpPageSize
	}
	if cfg.MappingLimit <= 0 {
		cfg.MappingLimit = def.MappingLimit
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.ProductMaxAge <= 0 {
		cfg.ProductMaxAge = def.ProductMaxAge
	}
	o.lookup.WithMaxAge(cfg.ProductMaxAge)
	o.config = cfg
	return o
}

// WithNotifier sets the notifier for batch reports
func (o *Orchestrator) WithNotifier(n *Notifier) *Orchestrator {
	o.notifier = n
	return o
}

// WithLocker sets the lock serializing batch creation
func (o *Orchestrator) WithLocker(l stocksync.BatchLocker) *Orchestrator {
	if l != nil {
		o.locker = l
	}
	return o
}

// WithMappingCache sets the mapping cache shared across batches
func (o *Orchestrator) WithMappingCache(c *MappingCache) *Orchestrator {
	o.mappingCache = c
	return o
}

// WithMetrics sets the sync metrics. Nil disables recording.
func (o *Orchestrator) WithMetrics(m *telemetry.SyncMetrics) *Orchestrator {
	o.metrics = m
	return o
}

// WithClock overrides the time source
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// RunStep finds or creates the active batch and executes exactly one step.
func (o *Orchestrator) RunStep(ctx context.Context) (*StepOutcome, error) {
	ctx, span := telemetry.StartStepSpan(ctx)
	defer span.End()

	batch, created, err := o.findOrCreate(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	step := batch.CurrentStep
	kind := batch.StepKind()
	telemetry.AnnotateStep(span, batch.ID.String(), step, string(kind))
	log := o.logger.With(zap.String("batch_id", batch.ID.String()), zap.Int("step", step), zap.String("kind", string(kind)))
	log.Info("Running sync step", zap.Bool("created", created), zap.Int("total_sites", batch.TotalSites))

	started := time.Now()
	switch kind {
	case stocksync.StepKindFetch:
		err = o.runFetch(ctx, batch)
	case stocksync.StepKindSite:
		err = o.runSite(ctx, batch)
	case stocksync.StepKindFinalize:
		err = o.runFinalize(ctx, batch)
	}
	o.metrics.RecordStep(ctx, string(kind), time.Since(started), err)

	outcome := &StepOutcome{
		BatchID:      batch.ID.String(),
		Step:         step,
		Kind:         kind,
		Status:       batch.Status,
		CurrentStep:  batch.CurrentStep,
		TotalSites:   batch.TotalSites,
		Created:      created,
		Done:         batch.Status.IsTerminal(),
		ErrorMessage: batch.ErrorMessage,
	}
	if err != nil {
		telemetry.RecordError(span, err)
		log.Error("Sync step failed", zap.Error(err))
		return outcome, err
	}
	span.SetAttributes(telemetry.AttrBatchStatus.String(string(batch.Status)))
	log.Info("Sync step finished", zap.String("status", string(batch.Status)), zap.Int("current_step", batch.CurrentStep))
	return outcome, nil
}

// ActiveBatch returns the current active batch, or ErrBatchNotFound.
func (o *Orchestrator) ActiveBatch(ctx context.Context) (*stocksync.SyncBatch, error) {
	return o.repos.Batches.FindActive(ctx, o.now())
}

// findOrCreate returns the active batch, creating one when none exists.
// A unique active slot in the store turns a lost creation race into a re-read.
func (o *Orchestrator) findOrCreate(ctx context.Context) (*stocksync.SyncBatch, bool, error) {
	batch, err := o.repos.Batches.FindActive(ctx, o.now())
	if err == nil {
		return batch, false, nil
	}
	if !errors.Is(err, stocksync.ErrBatchNotFound) {
		return nil, false, fmt.Errorf("find active batch: %w", err)
	}

	release, err := o.locker.Acquire(ctx, batchCreateLockKey, o.config.LockTTL)
	if err != nil {
		if errors.Is(err, stocksync.ErrLockNotObtained) {
			return nil, false, ErrBatchBusy
		}
		return nil, false, fmt.Errorf("acquire batch lock: %w", err)
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			o.logger.Warn("Failed to release batch lock", zap.Error(rerr))
		}
	}()

	now := o.now()
	if batch, err := o.repos.Batches.FindActive(ctx, now); err == nil {
		return batch, false, nil
	}
	if released, err := o.repos.Batches.ReleaseExpired(ctx, now); err != nil {
		return nil, false, fmt.Errorf("release expired batches: %w", err)
	} else if released > 0 {
		o.logger.Info("Abandoned expired batches", zap.Int64("count", released))
	}

	sites, err := o.repos.Sites.ListEnabled(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("list sites: %w", err)
	}
	ids := make([]string, 0, len(sites))
	for _, s := range sites {
		ids = append(ids, s.ID)
	}

	batch = stocksync.NewSyncBatch(ids, now, o.config.BatchTTL)
	results := make([]*stocksync.SiteResult, 0, len(sites))
	for i, s := range sites {
		results = append(results, stocksync.NewSiteResult(batch.ID, s.ID, s.Name, i+1))
	}

	if err := o.repos.Batches.Create(ctx, batch, results); err != nil {
		if errors.Is(err, stocksync.ErrActiveBatchExists) {
			o.logger.Info("Active batch created concurrently, re-reading")
			existing, ferr := o.repos.Batches.FindActive(ctx, now)
			if ferr != nil {
				return nil, false, fmt.Errorf("re-read active batch: %w", ferr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create batch: %w", err)
	}

	o.logger.Info("Sync batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("total_sites", batch.TotalSites),
		zap.Time("expires_at", batch.ExpiresAt),
	)
	return batch, true, nil
}

// runFetch executes step 0: ERP fetch, warehouse names, global filter,
// mapping load and inventory cache write.
func (o *Orchestrator) runFetch(ctx context.Context, batch *stocksync.SyncBatch) error {
	if err := batch.StartFetching(o.now()); err != nil {
		return err
	}
	if err := o.repos.Batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	settings := o.loadSettings(ctx)
	if batch.TotalSites == 0 {
		return o.failBatch(ctx, batch, settings, stocksync.ErrNoSitesConfigured)
	}
	if o.erp == nil {
		return o.failBatch(ctx, batch, settings, integration.ErrErpNotConfigured)
	}

	records, err := o.erp.FetchAllInventory(ctx, o.config.ErpPageSize)
	if err != nil {
		return o.fetchError(ctx, batch, settings, fmt.Errorf("fetch inventory: %w", err))
	}
	o.resolveWarehouseNames(ctx, records)

	global, _ := o.pipeline.Apply(records, FilterOptions{Filter: settings.Filter, Merge: settings.MergeWarehouses})

	mappings, err := o.mappingCache.Load(ctx, func(ctx context.Context) ([]integration.SkuMapping, error) {
		return o.erp.FetchSkuMappings(ctx, o.config.MappingLimit)
	})
	if err != nil {
		return o.fetchError(ctx, batch, settings, fmt.Errorf("fetch sku mappings: %w", err))
	}

	cache := stocksync.NewInventoryCache(batch, records, mappings, settings, o.now())
	cache.GlobalItems = len(global)
	if err := o.repos.Caches.Save(ctx, cache); err != nil {
		return fmt.Errorf("save inventory cache: %w", err)
	}

	if err := batch.StartSyncing(cache.ID); err != nil {
		return err
	}
	if err := o.repos.Batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	o.logger.Info("Inventory cached",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("records", len(records)),
		zap.Int("global_items", cache.GlobalItems),
		zap.Int("mappings", len(mappings)),
	)
	return nil
}

// fetchError fails the batch on configuration and permanent errors. Transient
// errors leave the batch in fetching so the next invocation retries step 0.
func (o *Orchestrator) fetchError(ctx context.Context, batch *stocksync.SyncBatch, settings stocksync.GlobalSettings, err error) error {
	if integration.ClassifyError(err).IsRetryable() {
		o.logger.Warn("ERP fetch failed, will retry on next invocation",
			zap.String("batch_id", batch.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return o.failBatch(ctx, batch, settings, err)
}

func (o *Orchestrator) resolveWarehouseNames(ctx context.Context, records []integration.ErpStockRecord) {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range records {
		if r.WarehouseID == "" || r.WarehouseName != "" {
			continue
		}
		if _, ok := seen[r.WarehouseID]; !ok {
			seen[r.WarehouseID] = struct{}{}
			ids = append(ids, r.WarehouseID)
		}
	}
	if len(ids) == 0 {
		return
	}

	names, err := o.erp.FetchWarehouseNames(ctx, ids)
	if err != nil {
		o.logger.Warn("Warehouse name resolution failed, matching on IDs", zap.Error(err))
		return
	}
	for i := range records {
		if name, ok := names[records[i].WarehouseID]; ok && records[i].WarehouseName == "" {
			records[i].WarehouseName = name
		}
	}
}

// runSite executes step k for site k. A result that already ran is only
// advanced past.
func (o *Orchestrator) runSite(ctx context.Context, batch *stocksync.SyncBatch) error {
	step := batch.CurrentStep
	siteID, _ := batch.SiteIDForStep(step)

	result, err := o.repos.Results.FindByStep(ctx, batch.ID, step)
	if errors.Is(err, stocksync.ErrSiteResultNotFound) {
		result = stocksync.NewSiteResult(batch.ID, siteID, siteID, step)
	} else if err != nil {
		return fmt.Errorf("load site result: %w", err)
	}

	if !result.Status.IsDone() {
		cache, err := o.repos.Caches.FindByBatch(ctx, batch.ID)
		if err != nil || cache.IsExpired(o.now()) {
			if err == nil {
				err = stocksync.ErrInventoryCacheMissing
			}
			return o.failBatch(ctx, batch, o.loadSettings(ctx), fmt.Errorf("step %d: %w", step, err))
		}

		if err := result.Start(o.now()); err != nil {
			return err
		}
		if err := o.repos.Results.Save(ctx, result); err != nil {
			return fmt.Errorf("save site result: %w", err)
		}

		syncErr := o.syncSite(ctx, siteID, cache, result)
		persistCtx := context.WithoutCancel(ctx)
		if syncErr != nil && ctx.Err() != nil {
			// interrupted, not failed: the result stays running and the
			// next invocation re-runs the same step
			o.logger.Warn("Site step interrupted",
				zap.String("batch_id", batch.ID.String()),
				zap.String("site_id", siteID),
				zap.Error(syncErr),
			)
			if err := o.repos.Results.Save(persistCtx, result); err != nil {
				return fmt.Errorf("save site result: %w", err)
			}
			return fmt.Errorf("step %d interrupted: %w", step, ctx.Err())
		}
		if syncErr != nil {
			o.logger.Error("Site step failed",
				zap.String("batch_id", batch.ID.String()),
				zap.String("site_id", siteID),
				zap.Error(syncErr),
			)
			if err := result.Fail(syncErr.Error(), o.now()); err != nil {
				return err
			}
		} else if err := result.Complete(o.now()); err != nil {
			return err
		}
		if err := o.repos.Results.Save(persistCtx, result); err != nil {
			return fmt.Errorf("save site result: %w", err)
		}
		o.metrics.RecordSite(persistCtx, siteID, telemetry.SiteCounts{
			SyncedToInstock:    result.SyncedToInstock,
			SyncedToOutofstock: result.SyncedToOutofstock,
			Failed:             result.Failed,
			Skipped:            result.Skipped,
		})
		ctx = persistCtx
	} else {
		o.logger.Info("Site step already finished, advancing",
			zap.String("batch_id", batch.ID.String()),
			zap.String("site_id", siteID),
			zap.String("status", string(result.Status)),
		)
	}

	if err := batch.Advance(); err != nil {
		return err
	}
	if err := o.repos.Batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}
	return nil
}

// syncSite runs one site. Panics are converted into a site-level error.
func (o *Orchestrator) syncSite(ctx context.Context, siteID string, cache *stocksync.InventoryCache, result *stocksync.SiteResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Site step panicked",
				zap.String("site_id", siteID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("site %s panicked: %v", siteID, r)
		}
	}()

	ctx, span := telemetry.StartSiteSpan(ctx, siteID)
	defer span.End()

	site, err := o.repos.Sites.FindByID(ctx, siteID)
	if err != nil {
		return fmt.Errorf("load site %s: %w", siteID, err)
	}
	if !site.Enabled {
		return fmt.Errorf("site %s: %w", siteID, stocksync.ErrSiteDisabled)
	}
	result.SiteName = site.Name

	client, err := o.storefronts.ForSite(integration.StorefrontSite{
		ID:             site.ID,
		Name:           site.Name,
		BaseURL:        site.BaseURL,
		ConsumerKey:    site.ConsumerKey,
		ConsumerSecret: site.ConsumerSecret,
	})
	if err != nil {
		return fmt.Errorf("storefront client for %s: %w", siteID, err)
	}

	err = o.syncer.Sync(ctx, SiteSyncInput{
		Site:     site,
		Client:   client,
		Cache:    cache,
		Settings: o.loadSettings(ctx),
		Result:   result,
	})
	span.SetAttributes(telemetry.AttrItemCount.Int(result.TotalChecked))
	if err != nil {
		telemetry.RecordError(span, err)
	}
	return err
}

// runFinalize executes step N+1: aggregate, complete, notify.
func (o *Orchestrator) runFinalize(ctx context.Context, batch *stocksync.SyncBatch) error {
	results, err := o.repos.Results.ListByBatch(ctx, batch.ID)
	if err != nil {
		return fmt.Errorf("list site results: %w", err)
	}

	globalItems := 0
	if cache, err := o.repos.Caches.FindByBatch(ctx, batch.ID); err == nil {
		globalItems = cache.GlobalItems
	}

	now := o.now()
	stats := Aggregate(results, globalItems, batch.Duration(now))
	if err := batch.Complete(stats, now); err != nil {
		return err
	}
	if err := o.repos.Batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	o.logger.Info("Sync batch completed",
		zap.String("batch_id", batch.ID.String()),
		zap.String("overall_status", string(stats.OverallStatus)),
		zap.Int("checked", stats.TotalChecked),
		zap.Int("to_instock", stats.SyncedToInstock),
		zap.Int("to_outofstock", stats.SyncedToOutofstock),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)

	o.metrics.RecordBatch(ctx, string(stats.OverallStatus))
	o.notifier.NotifyCompleted(ctx, batch, results, o.loadSettings(ctx))

	if n, err := o.repos.Caches.DeleteExpired(ctx, now); err != nil {
		o.logger.Warn("Inventory cache cleanup failed", zap.Error(err))
	} else if n > 0 {
		o.logger.Debug("Expired inventory caches removed", zap.Int64("count", n))
	}
	return nil
}

// failBatch marks the batch failed and attempts a failure notification.
func (o *Orchestrator) failBatch(ctx context.Context, batch *stocksync.SyncBatch, settings stocksync.GlobalSettings, cause error) error {
	persistCtx := context.WithoutCancel(ctx)
	if err := batch.Fail(cause.Error(), o.now()); err != nil {
		return err
	}
	if err := o.repos.Batches.Save(persistCtx, batch); err != nil {
		return fmt.Errorf("save failed batch: %w", err)
	}
	o.logger.Error("Sync batch failed",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("step", batch.CurrentStep),
		zap.Error(cause),
	)
	o.notifier.NotifyFailed(persistCtx, batch, settings)
	return nil
}

func (o *Orchestrator) loadSettings(ctx context.Context) stocksync.GlobalSettings {
	settings, err := o.repos.Settings.Get(ctx)
	if err != nil || settings == nil {
		o.logger.Warn("Using default sync settings", zap.Error(err))
		return stocksync.DefaultGlobalSettings()
	}
	return *settings
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}
