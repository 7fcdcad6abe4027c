package stocksync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// MockErpService is a mock implementation of integration.ErpService
type MockErpService struct {
	mock.Mock
}

func (m *MockErpService) FetchAllInventory(ctx context.Context, pageSize int) ([]integration.ErpStockRecord, error) {
	args := m.Called(ctx, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.ErpStockRecord), args.Error(1)
}

func (m *MockErpService) FetchWarehouseNames(ctx context.Context, ids []string) (map[string]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockErpService) FetchSkuMappings(ctx context.Context, limit int) ([]integration.SkuMapping, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SkuMapping), args.Error(1)
}

// MockStorefront is a mock implementation of integration.Storefront
type MockStorefront struct {
	mock.Mock
}

func (m *MockStorefront) FindProductBySku(ctx context.Context, sku string) (*integration.Product, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockStorefront) GetProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockStorefront) UpdateStock(ctx context.Context, product *integration.Product, update integration.StockUpdate) (*integration.Product, error) {
	args := m.Called(ctx, product, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Product), args.Error(1)
}

func (m *MockStorefront) ListProducts(ctx context.Context, page, perPage int) ([]integration.Product, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Product), args.Error(1)
}

func (m *MockStorefront) ListVariations(ctx context.Context, parentID int64, page, perPage int) ([]integration.Product, error) {
	args := m.Called(ctx, parentID, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.Product), args.Error(1)
}

// MockStorefrontFactory hands out one storefront per site ID
type MockStorefrontFactory struct {
	clients map[string]integration.Storefront
}

func (f *MockStorefrontFactory) ForSite(site integration.StorefrontSite) (integration.Storefront, error) {
	if c, ok := f.clients[site.ID]; ok {
		return c, nil
	}
	return nil, integration.ErrStorefrontNotConfigured
}

// MockChannel records sent notifications
type MockChannel struct {
	mu      sync.Mutex
	titles  []string
	bodies  []string
	success []bool
	fail    bool
}

func (c *MockChannel) Send(_ context.Context, title, body string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.titles = append(c.titles, title)
	c.bodies = append(c.bodies, body)
	c.success = append(c.success, success)
	return !c.fail
}

func (c *MockChannel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.titles)
}

// memoryProductCache is an in-memory stocksync.ProductCacheRepository
type memoryProductCache struct {
	mu    sync.Mutex
	items map[string]integration.Product
}

func newMemoryProductCache(siteID string, products ...integration.Product) *memoryProductCache {
	c := &memoryProductCache{items: make(map[string]integration.Product)}
	_ = c.Upsert(context.Background(), siteID, products)
	return c
}

func (c *memoryProductCache) key(siteID, sku string) string {
	return siteID + "|" + strings.ToUpper(sku)
}

func (c *memoryProductCache) Find(_ context.Context, siteID, sku string) (*integration.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[c.key(siteID, sku)]
	if !ok {
		return nil, stocksync.ErrProductCacheMiss
	}
	return &p, nil
}

func (c *memoryProductCache) Upsert(_ context.Context, siteID string, products []integration.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, p := range products {
		p.RefreshedAt = now
		c.items[c.key(siteID, p.SKU)] = p
	}
	return nil
}

// backdate makes a cached row look refreshed d ago
func (c *memoryProductCache) backdate(siteID, sku string, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := c.key(siteID, sku)
	p := c.items[k]
	p.RefreshedAt = time.Now().Add(-d)
	c.items[k] = p
}

func (c *memoryProductCache) CountBySite(_ context.Context, siteID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for k := range c.items {
		if strings.HasPrefix(k, siteID+"|") {
			n++
		}
	}
	return n, nil
}

func intPtr(v int) *int { return &v }
