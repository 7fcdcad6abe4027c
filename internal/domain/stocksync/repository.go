package stocksync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
)

// BatchRepository persists SyncBatch records and their seeded site results.
type BatchRepository interface {
	// FindActive returns the non-terminal batch whose ExpiresAt is after now,
	// or ErrBatchNotFound.
	FindActive(ctx context.Context, now time.Time) (*SyncBatch, error)

	FindByID(ctx context.Context, id uuid.UUID) (*SyncBatch, error)

	// Create inserts batch and its results atomically. It returns
	// ErrActiveBatchExists when another active batch holds the slot.
	Create(ctx context.Context, batch *SyncBatch, results []*SiteResult) error

	Save(ctx context.Context, batch *SyncBatch) error

	// ReleaseExpired frees the active slot of expired batches without
	// touching their status.
	ReleaseExpired(ctx context.Context, now time.Time) (int64, error)

	ListRecent(ctx context.Context, limit int) ([]*SyncBatch, error)
}

// SiteResultRepository persists per-site results.
type SiteResultRepository interface {
	FindByStep(ctx context.Context, batchID uuid.UUID, step int) (*SiteResult, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*SiteResult, error)
	Save(ctx context.Context, result *SiteResult) error
}

// InventoryCacheRepository persists batch snapshots.
type InventoryCacheRepository interface {
	Save(ctx context.Context, cache *InventoryCache) error
	FindByBatch(ctx context.Context, batchID uuid.UUID) (*InventoryCache, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// SiteRepository reads and writes storefront site configuration.
type SiteRepository interface {
	ListEnabled(ctx context.Context) ([]*Site, error)
	FindByID(ctx context.Context, id string) (*Site, error)
	Save(ctx context.Context, site *Site) error
}

// SettingsRepository reads and writes the global settings row.
// Get returns DefaultGlobalSettings when nothing is stored.
type SettingsRepository interface {
	Get(ctx context.Context) (*GlobalSettings, error)
	Save(ctx context.Context, settings *GlobalSettings) error
}

// ProductCacheRepository is the local cache of storefront products, keyed by
// site and upper-cased SKU.
type ProductCacheRepository interface {
	// Find returns ErrProductCacheMiss when the SKU is not cached.
	Find(ctx context.Context, siteID, sku string) (*integration.Product, error)
	Upsert(ctx context.Context, siteID string, products []integration.Product) error
	CountBySite(ctx context.Context, siteID string) (int64, error)
}

// BatchLocker serializes batch creation across processes. Release must be
// called once the protected section ends.
type BatchLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}
