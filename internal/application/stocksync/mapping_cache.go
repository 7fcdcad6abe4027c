package stocksync

import (
	"context"
	"sync"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
)

// DefaultMappingCacheTTL is how long fetched mapping rows are reused.
const DefaultMappingCacheTTL = 30 * time.Minute

// MappingLoader fetches raw mapping rows.
type MappingLoader func(ctx context.Context) ([]integration.SkuMapping, error)

// MappingCache holds the last fetched mapping rows with their load time.
// Population is explicit: Populate always fetches, Get never does.
type MappingCache struct {
	mu       sync.RWMutex
	rows     []integration.SkuMapping
	loadedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewMappingCache creates an empty cache.
func NewMappingCache(ttl time.Duration) *MappingCache {
	if ttl <= 0 {
		ttl = DefaultMappingCacheTTL
	}
	return &MappingCache{ttl: ttl, now: time.Now}
}

// WithClock overrides the time source.
func (c *MappingCache) WithClock(now func() time.Time) *MappingCache {
	c.now = now
	return c
}

// Get returns the cached rows while they are fresh.
func (c *MappingCache) Get() ([]integration.SkuMapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.loadedAt.IsZero() || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.rows, true
}

// Populate fetches rows through load and stores them. On error the previous
// value is kept.
func (c *MappingCache) Populate(ctx context.Context, load MappingLoader) ([]integration.SkuMapping, error) {
	rows, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(rows)
	return rows, nil
}

// Set stores rows as freshly loaded.
func (c *MappingCache) Set(rows []integration.SkuMapping) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
	c.loadedAt = c.now()
}

// Load returns fresh cached rows or populates the cache.
func (c *MappingCache) Load(ctx context.Context, load MappingLoader) ([]integration.SkuMapping, error) {
	if rows, ok := c.Get(); ok {
		return rows, nil
	}
	return c.Populate(ctx, load)
}

// LoadedAt returns when the cache was last populated.
func (c *MappingCache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Invalidate drops the cached rows.
func (c *MappingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.loadedAt = time.Time{}
}
