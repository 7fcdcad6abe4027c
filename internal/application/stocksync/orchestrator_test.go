package stocksync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryBatchRepo struct {
	mu           sync.Mutex
	batches      map[uuid.UUID]stocksync.SyncBatch
	results      *memoryResultRepo
	beforeCreate func()
}

func newMemoryBatchRepo(results *memoryResultRepo) *memoryBatchRepo {
	return &memoryBatchRepo{batches: make(map[uuid.UUID]stocksync.SyncBatch), results: results}
}

func (r *memoryBatchRepo) FindActive(_ context.Context, now time.Time) (*stocksync.SyncBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches {
		if b.IsActive(now) {
			cp := b
			return &cp, nil
		}
	}
	return nil, stocksync.ErrBatchNotFound
}

func (r *memoryBatchRepo) FindByID(_ context.Context, id uuid.UUID) (*stocksync.SyncBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, stocksync.ErrBatchNotFound
	}
	return &b, nil
}

func (r *memoryBatchRepo) Create(ctx context.Context, batch *stocksync.SyncBatch, results []*stocksync.SiteResult) error {
	if r.beforeCreate != nil {
		r.beforeCreate()
	}
	r.mu.Lock()
	for _, b := range r.batches {
		if !b.Status.IsTerminal() && b.ExpiresAt.After(batch.CreatedAt) {
			r.mu.Unlock()
			return stocksync.ErrActiveBatchExists
		}
	}
	r.batches[batch.ID] = *batch
	r.mu.Unlock()

	for _, res := range results {
		if err := r.results.Save(ctx, res); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryBatchRepo) Save(_ context.Context, batch *stocksync.SyncBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.ID] = *batch
	return nil
}

func (r *memoryBatchRepo) ReleaseExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (r *memoryBatchRepo) ListRecent(_ context.Context, limit int) ([]*stocksync.SyncBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*stocksync.SyncBatch, 0, len(r.batches))
	for _, b := range r.batches {
		cp := b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryBatchRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

type memoryResultRepo struct {
	mu      sync.Mutex
	results map[uuid.UUID]stocksync.SiteResult
}

func newMemoryResultRepo() *memoryResultRepo {
	return &memoryResultRepo{results: make(map[uuid.UUID]stocksync.SiteResult)}
}

func (r *memoryResultRepo) FindByStep(_ context.Context, batchID uuid.UUID, step int) (*stocksync.SiteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.BatchID == batchID && res.StepIndex == step {
			cp := res
			return &cp, nil
		}
	}
	return nil, stocksync.ErrSiteResultNotFound
}

func (r *memoryResultRepo) ListByBatch(_ context.Context, batchID uuid.UUID) ([]*stocksync.SiteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*stocksync.SiteResult
	for _, res := range r.results {
		if res.BatchID == batchID {
			cp := res
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepIndex < out[j].StepIndex })
	return out, nil
}

func (r *memoryResultRepo) Save(_ context.Context, result *stocksync.SiteResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.ID] = *result
	return nil
}

type memoryCacheRepo struct {
	mu     sync.Mutex
	caches map[uuid.UUID]stocksync.InventoryCache
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{caches: make(map[uuid.UUID]stocksync.InventoryCache)}
}

func (r *memoryCacheRepo) Save(_ context.Context, cache *stocksync.InventoryCache) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caches[cache.BatchID] = *cache
	return nil
}

func (r *memoryCacheRepo) FindByBatch(_ context.Context, batchID uuid.UUID) (*stocksync.InventoryCache, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.caches[batchID]
	if !ok {
		return nil, stocksync.ErrInventoryCacheMissing
	}
	return &c, nil
}

func (r *memoryCacheRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.caches {
		if c.IsExpired(now) {
			delete(r.caches, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryCacheRepo) Drop(batchID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, batchID)
}

type memorySiteRepo struct {
	sites []*stocksync.Site
}

func (r *memorySiteRepo) ListEnabled(context.Context) ([]*stocksync.Site, error) {
	var out []*stocksync.Site
	for _, s := range r.sites {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySiteRepo) FindByID(_ context.Context, id string) (*stocksync.Site, error) {
	for _, s := range r.sites {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, stocksync.ErrSiteNotFound
}

func (r *memorySiteRepo) Save(_ context.Context, site *stocksync.Site) error {
	r.sites = append(r.sites, site)
	return nil
}

type memorySettingsRepo struct {
	settings *stocksync.GlobalSettings
}

func (r *memorySettingsRepo) Get(context.Context) (*stocksync.GlobalSettings, error) {
	if r.settings == nil {
		s := stocksync.DefaultGlobalSettings()
		return &s, nil
	}
	cp := *r.settings
	return &cp, nil
}

func (r *memorySettingsRepo) Save(_ context.Context, settings *stocksync.GlobalSettings) error {
	cp := *settings
	r.settings = &cp
	return nil
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (func(context.Context) error, error) {
	return nil, stocksync.ErrLockNotObtained
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

type orchestratorFixture struct {
	batches  *memoryBatchRepo
	results  *memoryResultRepo
	caches   *memoryCacheRepo
	sites    *memorySiteRepo
	products *memoryProductCache
	erp      *MockErpService
	client   *MockStorefront
	channel  *MockChannel
	now      time.Time
	orch     *Orchestrator
}

func newOrchestratorFixture(t *testing.T, withErp bool) *orchestratorFixture {
	f := &orchestratorFixture{
		results:  newMemoryResultRepo(),
		caches:   newMemoryCacheRepo(),
		sites:    &memorySiteRepo{sites: []*stocksync.Site{{ID: "site-1", Name: "Site One", BaseURL: "https://one.example.com", Enabled: true}}},
		products: newMemoryProductCache("site-1", integration.Product{ID: 1, SKU: "X", StockStatus: integration.StockStatusOutOfStock}),
		erp:      new(MockErpService),
		client:   new(MockStorefront),
		channel:  &MockChannel{},
		now:      time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
	}
	f.batches = newMemoryBatchRepo(f.results)

	repos := Repositories{
		Batches:  f.batches,
		Results:  f.results,
		Caches:   f.caches,
		Sites:    f.sites,
		Settings: &memorySettingsRepo{},
		Products: f.products,
	}
	var erp integration.ErpService
	if withErp {
		erp = f.erp
	}
	logger := zaptest.NewLogger(t)
	factory := &MockStorefrontFactory{clients: map[string]integration.Storefront{"site-1": f.client}}
	f.orch = NewOrchestrator(repos, erp, factory, logger).
		WithNotifier(NewNotifier(f.channel, logger)).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *orchestratorFixture) expectFetch(records ...integration.ErpStockRecord) {
	f.erp.On("FetchAllInventory", mock.Anything, mock.Anything).Return(records, nil).Once()
	f.erp.On("FetchSkuMappings", mock.Anything, mock.Anything).Return([]integration.SkuMapping{}, nil).Once()
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestOrchestrator_FullBatch(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, true)
	f.expectFetch(rec("X", "W1", 5, 0))
	f.client.On("UpdateStock", mock.Anything, mock.MatchedBy(func(p *integration.Product) bool { return p.ID == 1 }), integration.NewStatusUpdate(integration.StockStatusInStock)).
		Return(&integration.Product{ID: 1, SKU: "X", StockStatus: integration.StockStatusInStock}, nil).Once()

	fetch, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.True(t, fetch.Created)
	assert.Equal(t, 0, fetch.Step)
	assert.Equal(t, stocksync.StepKindFetch, fetch.Kind)
	assert.Equal(t, stocksync.BatchStatusSyncing, fetch.Status)
	assert.Equal(t, 1, fetch.CurrentStep)
	assert.Equal(t, 1, fetch.TotalSites)

	site, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.False(t, site.Created)
	assert.Equal(t, fetch.BatchID, site.BatchID)
	assert.Equal(t, stocksync.StepKindSite, site.Kind)
	assert.Equal(t, 2, site.CurrentStep)

	final, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, stocksync.StepKindFinalize, final.Kind)
	assert.Equal(t, stocksync.BatchStatusCompleted, final.Status)
	assert.True(t, final.Done)

	batch, err := f.batches.FindByID(ctx, uuid.MustParse(fetch.BatchID))
	require.NoError(t, err)
	require.NotNil(t, batch.Stats)
	assert.Equal(t, stocksync.OverallStatusSuccess, batch.Stats.OverallStatus)
	assert.Equal(t, 1, batch.Stats.SyncedToInstock)
	assert.Equal(t, 1, batch.Stats.SitesCompleted)

	results, err := f.results.ListByBatch(ctx, batch.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stocksync.SiteResultStatusCompleted, results[0].Status)
	assert.Equal(t, "Site One", results[0].SiteName)

	assert.Equal(t, 1, f.channel.Count())
	assert.True(t, f.channel.success[0])
	f.erp.AssertExpectations(t)
	f.client.AssertExpectations(t)

	_, err = f.orch.ActiveBatch(ctx)
	assert.ErrorIs(t, err, stocksync.ErrBatchNotFound)
}

func TestOrchestrator_MissingErpFailsBatch(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, false)

	outcome, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, stocksync.BatchStatusFailed, outcome.Status)
	assert.True(t, outcome.Done)
	assert.Contains(t, outcome.ErrorMessage, "ERP credentials")

	results, err := f.results.ListByBatch(ctx, uuid.MustParse(outcome.BatchID))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, stocksync.SiteResultStatusPending, results[0].Status)

	require.Equal(t, 1, f.channel.Count())
	assert.False(t, f.channel.success[0])
	assert.Equal(t, "Stock sync failed", f.channel.titles[0])
}

func TestOrchestrator_NoSitesFailsBatch(t *testing.T) {
	f := newOrchestratorFixture(t, true)
	f.sites.sites = nil

	outcome, err := f.orch.RunStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stocksync.BatchStatusFailed, outcome.Status)
	assert.Equal(t, 0, outcome.TotalSites)
	assert.Contains(t, outcome.ErrorMessage, stocksync.ErrNoSitesConfigured.Error())
	f.erp.AssertNotCalled(t, "FetchAllInventory", mock.Anything, mock.Anything)
}

func TestOrchestrator_TransientFetchErrorRetries(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, true)
	f.erp.On("FetchAllInventory", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("page 3: %w", integration.ErrUpstreamUnavailable)).Once()

	outcome, err := f.orch.RunStep(ctx)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, stocksync.BatchStatusFetching, outcome.Status)
	assert.Equal(t, 0, outcome.CurrentStep)
	assert.False(t, outcome.Done)

	f.expectFetch(rec("X", "W1", 5, 0))
	retry, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.False(t, retry.Created)
	assert.Equal(t, outcome.BatchID, retry.BatchID)
	assert.Equal(t, stocksync.BatchStatusSyncing, retry.Status)
	assert.Equal(t, 1, f.batches.Count())
}

func TestOrchestrator_AuthErrorFailsBatch(t *testing.T) {
	f := newOrchestratorFixture(t, true)
	f.erp.On("FetchAllInventory", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("status 401: %w", integration.ErrAuthFailed)).Once()

	outcome, err := f.orch.RunStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stocksync.BatchStatusFailed, outcome.Status)
}

func TestOrchestrator_FinishedSiteStepIsNotRerun(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, true)
	f.expectFetch(rec("X", "W1", 5, 0))

	fetch, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	batchID := uuid.MustParse(fetch.BatchID)

	// a previous invocation finished the site but died before advancing
	done, err := f.results.FindByStep(ctx, batchID, 1)
	require.NoError(t, err)
	require.NoError(t, done.Start(f.now))
	require.NoError(t, done.Complete(f.now))
	require.NoError(t, f.results.Save(ctx, done))

	outcome, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.CurrentStep)
	f.client.AssertNotCalled(t, "UpdateStock", mock.Anything, mock.Anything, mock.Anything)

	again, err := f.results.FindByStep(ctx, batchID, 1)
	require.NoError(t, err)
	assert.Equal(t, stocksync.SiteResultStatusCompleted, again.Status)
	assert.Equal(t, 0, again.TotalChecked)
}

func TestOrchestrator_MissingCacheFailsBatch(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, true)
	f.expectFetch(rec("X", "W1", 5, 0))

	fetch, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	f.caches.Drop(uuid.MustParse(fetch.BatchID))

	outcome, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, stocksync.BatchStatusFailed, outcome.Status)
	assert.Contains(t, outcome.ErrorMessage, "inventory cache")
}

func TestOrchestrator_SiteErrorIsContained(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, true)
	f.sites.sites = append(f.sites.sites, &stocksync.Site{ID: "site-2", Name: "Site Two", Enabled: true})
	f.expectFetch(rec("X", "W1", 5, 0))
	f.client.On("UpdateStock", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.Product{ID: 1, SKU: "X", StockStatus: integration.StockStatusInStock}, nil).Once()

	var last *StepOutcome
	for i := 0; i < 4; i++ {
		out, err := f.orch.RunStep(ctx)
		require.NoError(t, err)
		last = out
	}
	assert.Equal(t, stocksync.BatchStatusCompleted, last.Status)

	batch, err := f.batches.FindByID(ctx, uuid.MustParse(last.BatchID))
	require.NoError(t, err)
	assert.Equal(t, stocksync.OverallStatusPartial, batch.Stats.OverallStatus)
	assert.Equal(t, 1, batch.Stats.SitesCompleted)
	assert.Equal(t, 1, batch.Stats.SitesFailed)

	failed, err := f.results.FindByStep(ctx, batch.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, stocksync.SiteResultStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "site-2")
}

func TestOrchestrator_RecordsMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	metrics, err := telemetry.NewSyncMetrics(provider.Meter(telemetry.MeterName))
	require.NoError(t, err)

	f := newOrchestratorFixture(t, true)
	f.orch.WithMetrics(metrics)
	f.expectFetch(rec("X", "W1", 5, 0), rec("Y", "W1", 5, 0))
	f.client.On("UpdateStock", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.Product{ID: 1, SKU: "X", StockStatus: integration.StockStatusInStock}, nil).Once()
	f.client.On("FindProductBySku", mock.Anything, "Y").Return(nil, nil).Once()

	for i := 0; i < 3; i++ {
		_, err := f.orch.RunStep(ctx)
		require.NoError(t, err)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	byName := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}

	items, ok := byName["stocksync_items_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := make(map[string]int64)
	for _, dp := range items.DataPoints {
		site, _ := dp.Attributes.Value(telemetry.AttrMetricSiteID)
		assert.Equal(t, "site-1", site.AsString())
		outcome, _ := dp.Attributes.Value(telemetry.AttrMetricOutcome)
		counts[outcome.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{
		telemetry.OutcomeSyncedInstock: 1,
		telemetry.OutcomeSkipped:       1,
	}, counts)

	steps, ok := byName["stocksync_step_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	kinds := make(map[string]uint64)
	for _, dp := range steps.DataPoints {
		kind, _ := dp.Attributes.Value(telemetry.AttrMetricKind)
		kinds[kind.AsString()] += dp.Count
	}
	assert.Equal(t, map[string]uint64{
		string(stocksync.StepKindFetch):    1,
		string(stocksync.StepKindSite):     1,
		string(stocksync.StepKindFinalize): 1,
	}, kinds)

	batches, ok := byName["stocksync_batches_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, batches.DataPoints, 1)
	want := attribute.NewSet(telemetry.AttrMetricStatus.String(string(stocksync.OverallStatusSuccess)))
	assert.True(t, batches.DataPoints[0].Attributes.Equals(&want))
	assert.Equal(t, int64(1), batches.DataPoints[0].Value)
}

func TestOrchestrator_CancelledSiteStepStaysRunning(t *testing.T) {
	f := newOrchestratorFixture(t, true)
	f.expectFetch(rec("X", "W1", 5, 0), rec("Y", "W1", 5, 0))

	fetch, err := f.orch.RunStep(context.Background())
	require.NoError(t, err)
	batchID := uuid.MustParse(fetch.BatchID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.client.On("UpdateStock", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	outcome, err := f.orch.RunStep(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, outcome)
	assert.Equal(t, 1, outcome.CurrentStep)
	assert.Equal(t, stocksync.BatchStatusSyncing, outcome.Status)

	interrupted, err := f.results.FindByStep(context.Background(), batchID, 1)
	require.NoError(t, err)
	assert.Equal(t, stocksync.SiteResultStatusRunning, interrupted.Status)
	assert.Empty(t, interrupted.ErrorMessage)

	batch, err := f.batches.FindByID(context.Background(), batchID)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.CurrentStep)

	// the next invocation re-runs the same site
	f.client.On("UpdateStock", mock.Anything, mock.Anything, mock.Anything).
		Return(&integration.Product{ID: 1, SKU: "X", StockStatus: integration.StockStatusInStock}, nil).Once()
	f.client.On("FindProductBySku", mock.Anything, "Y").Return(nil, nil).Once()

	retry, err := f.orch.RunStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, retry.CurrentStep)

	rerun, err := f.results.FindByStep(context.Background(), batchID, 1)
	require.NoError(t, err)
	assert.Equal(t, stocksync.SiteResultStatusCompleted, rerun.Status)
	assert.Equal(t, 2, rerun.TotalChecked)
	assert.Equal(t, 1, rerun.SyncedToInstock)
	f.client.AssertExpectations(t)
}

func TestOrchestrator_ExpiredBatchIsReplaced(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, true)
	f.erp.On("FetchAllInventory", mock.Anything, mock.Anything).
		Return(nil, integration.ErrUpstreamUnavailable).Once()

	first, err := f.orch.RunStep(ctx)
	require.Error(t, err)

	f.now = f.now.Add(stocksync.DefaultBatchTTL + time.Minute)
	f.expectFetch(rec("X", "W1", 5, 0))

	second, err := f.orch.RunStep(ctx)
	require.NoError(t, err)
	assert.True(t, second.Created)
	assert.NotEqual(t, first.BatchID, second.BatchID)
	assert.Equal(t, 2, f.batches.Count())
}

func TestOrchestrator_ConcurrentCreateRereads(t *testing.T) {
	f := newOrchestratorFixture(t, false)
	winner := stocksync.NewSyncBatch([]string{"site-1"}, f.now, time.Hour)
	f.batches.beforeCreate = func() {
		_ = f.batches.Save(context.Background(), winner)
	}

	outcome, err := f.orch.RunStep(context.Background())
	require.NoError(t, err)
	assert.False(t, outcome.Created)
	assert.Equal(t, winner.ID.String(), outcome.BatchID)
	assert.Equal(t, 1, f.batches.Count())
}

func TestOrchestrator_LockBusy(t *testing.T) {
	f := newOrchestratorFixture(t, true)
	f.orch.WithLocker(busyLocker{})

	_, err := f.orch.RunStep(context.Background())
	assert.ErrorIs(t, err, ErrBatchBusy)
	assert.Equal(t, 0, f.batches.Count())
}

func TestOrchestrator_ConfigDefaults(t *testing.T) {
	o := NewOrchestrator(Repositories{}, nil, nil, nil).WithConfig(OrchestratorConfig{MappingLimit: 50})
	def := DefaultOrchestratorConfig()
	assert.Equal(t, 50, o.config.MappingLimit)
	assert.Equal(t, def.BatchTTL, o.config.BatchTTL)
	assert.Equal(t, def.ErpPageSize, o.config.ErpPageSize)
	assert.Equal(t, def.LockTTL, o.config.LockTTL)
	assert.Equal(t, DefaultProductMaxAge, o.lookup.maxAge)

	o.WithConfig(OrchestratorConfig{ProductMaxAge: time.Minute})
	assert.Equal(t, time.Minute, o.lookup.maxAge)
}
