package stocksync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// DetectorConfig bounds a catalog scan.
type DetectorConfig struct {
	PerPage  int
	MaxPages int
}

// DefaultDetectorConfig returns the default scan bounds
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{PerPage: 100, MaxPages: 200}
}

// ProductDetector scans a site's catalog, variations included, into the
// product cache.
type ProductDetector struct {
	cache  stocksync.ProductCacheRepository
	config DetectorConfig
	logger *zap.Logger
}

// NewProductDetector creates a detector writing to cache.
func NewProductDetector(cache stocksync.ProductCacheRepository, config DetectorConfig, logger *zap.Logger) *ProductDetector {
	def := DefaultDetectorConfig()
	if config.PerPage <= 0 {
		config.PerPage = def.PerPage
	}
	if config.MaxPages <= 0 {
		config.MaxPages = def.MaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductDetector{cache: cache, config: config, logger: logger}
}

// RefreshSite scans every product page and returns the number of cached
// products.
func (d *ProductDetector) RefreshSite(ctx context.Context, siteID string, client integration.Storefront) (int, error) {
	total := 0
	for page := 1; page <= d.config.MaxPages; page++ {
		products, err := client.ListProducts(ctx, page, d.config.PerPage)
		if err != nil {
			return total, fmt.Errorf("list products page %d: %w", page, err)
		}

		batch := make([]integration.Product, 0, len(products))
		for _, p := range products {
			if p.Type == "variable" {
				variations, err := d.variations(ctx, client, p.ID)
				if err != nil {
					d.logger.Warn("Variation scan failed",
						zap.String("site_id", siteID),
						zap.Int64("parent_id", p.ID),
						zap.Error(err),
					)
				}
				batch = append(batch, variations...)
			}
			if p.SKU != "" {
				batch = append(batch, p)
			}
		}
		if len(batch) > 0 {
			if err := d.cache.Upsert(ctx, siteID, batch); err != nil {
				return total, fmt.Errorf("cache products page %d: %w", page, err)
			}
			total += len(batch)
		}

		if len(products) < d.config.PerPage {
			d.logger.Info("Product detection finished",
				zap.String("site_id", siteID),
				zap.Int("pages", page),
				zap.Int("products", total),
			)
			return total, nil
		}
	}

	d.logger.Warn("Product detection stopped at page limit",
		zap.String("site_id", siteID),
		zap.Int("max_pages", d.config.MaxPages),
		zap.Int("products", total),
	)
	return total, nil
}

func (d *ProductDetector) variations(ctx context.Context, client integration.Storefront, parentID int64) ([]integration.Product, error) {
	var out []integration.Product
	for page := 1; page <= d.config.MaxPages; page++ {
		items, err := client.ListVariations(ctx, parentID, page, d.config.PerPage)
		if err != nil {
			return out, err
		}
		for _, v := range items {
			v.ParentID = parentID
			if v.SKU != "" {
				out = append(out, v)
			}
		}
		if len(items) < d.config.PerPage {
			break
		}
	}
	return out, nil
}
