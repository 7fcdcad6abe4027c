package stocksync

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
)

// InventoryCache is the ERP snapshot of one batch. Records are stored
// warehouse-level, before filtering, so each site step can apply its own
// warehouse rules.
type InventoryCache struct {
	ID              uuid.UUID
	BatchID         uuid.UUID
	Records         []integration.ErpStockRecord
	Mappings        []integration.SkuMapping
	Filter          SiteFilterConfig
	MergeWarehouses bool
	GlobalItems     int
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// NewInventoryCache creates the snapshot for batch, expiring with it.
func NewInventoryCache(batch *SyncBatch, records []integration.ErpStockRecord, mappings []integration.SkuMapping, settings GlobalSettings, now time.Time) *InventoryCache {
	return &InventoryCache{
		ID:              uuid.New(),
		BatchID:         batch.ID,
		Records:         records,
		Mappings:        mappings,
		Filter:          settings.Filter,
		MergeWarehouses: settings.MergeWarehouses,
		CreatedAt:       now,
		ExpiresAt:       batch.ExpiresAt,
	}
}

// IsExpired reports whether the snapshot is no longer usable.
func (c *InventoryCache) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
