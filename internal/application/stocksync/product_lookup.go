package stocksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// DefaultProductMaxAge bounds how long a cached stock status is trusted.
// Storefront stock also changes outside this service (orders, manual
// restocks), so older rows are re-read from the API.
const DefaultProductMaxAge = 30 * time.Minute

// ProductLookup resolves storefront products through the local cache,
// falling back to the live API on a miss or a stale row.
type ProductLookup struct {
	cache  stocksync.ProductCacheRepository
	maxAge time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewProductLookup creates a lookup backed by cache.
func NewProductLookup(cache stocksync.ProductCacheRepository, logger *zap.Logger) *ProductLookup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductLookup{
		cache:  cache,
		maxAge: DefaultProductMaxAge,
		now:    time.Now,
		logger: logger,
	}
}

// WithMaxAge sets how old a cached row may be before it counts as a miss.
// Non-positive values keep the default.
func (l *ProductLookup) WithMaxAge(d time.Duration) *ProductLookup {
	if d > 0 {
		l.maxAge = d
	}
	return l
}

// WithClock overrides the time source used for row age
func (l *ProductLookup) WithClock(now func() time.Time) *ProductLookup {
	l.now = now
	return l
}

func (l *ProductLookup) isFresh(p *integration.Product) bool {
	return !p.RefreshedAt.IsZero() && l.now().Sub(p.RefreshedAt) <= l.maxAge
}

// Find returns the product carrying sku on the site. It wraps
// integration.ErrProductNotFound when neither the cache nor the API knows it.
func (l *ProductLookup) Find(ctx context.Context, siteID string, client integration.Storefront, sku string) (*integration.Product, error) {
	cached, err := l.cache.Find(ctx, siteID, sku)
	switch {
	case err == nil && l.isFresh(cached):
		return cached, nil
	case err == nil:
		l.logger.Debug("Cached product is stale, reloading",
			zap.String("site_id", siteID),
			zap.String("sku", sku),
			zap.Time("refreshed_at", cached.RefreshedAt),
		)
	case !errors.Is(err, stocksync.ErrProductCacheMiss):
		l.logger.Warn("Product cache read failed, using live lookup",
			zap.String("site_id", siteID),
			zap.String("sku", sku),
			zap.Error(err),
		)
	}

	product, err := client.FindProductBySku(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("lookup sku %s: %w", sku, err)
	}
	if product == nil {
		return nil, fmt.Errorf("sku %s: %w", sku, integration.ErrProductNotFound)
	}
	l.Remember(ctx, siteID, product)
	return product, nil
}

// Live reloads product from the API. On failure the given product is
// returned unchanged, so callers fall back to the cached quantity.
func (l *ProductLookup) Live(ctx context.Context, siteID string, client integration.Storefront, product *integration.Product) *integration.Product {
	live, err := client.GetProduct(ctx, product)
	if err != nil || live == nil {
		l.logger.Warn("Live product refresh failed, using cached quantity",
			zap.String("site_id", siteID),
			zap.String("sku", product.SKU),
			zap.Error(err),
		)
		return product
	}
	l.Remember(ctx, siteID, live)
	return live
}

// Remember writes product to the cache. Failures are logged only.
func (l *ProductLookup) Remember(ctx context.Context, siteID string, product *integration.Product) {
	if product == nil || product.SKU == "" {
		return
	}
	if err := l.cache.Upsert(ctx, siteID, []integration.Product{*product}); err != nil {
		l.logger.Warn("Product cache refresh failed",
			zap.String("site_id", siteID),
			zap.String("sku", product.SKU),
			zap.Error(err),
		)
	}
}
