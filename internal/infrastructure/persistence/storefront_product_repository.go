package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

const productUpsertBatchSize = 200

// GormProductCacheRepository implements stocksync.ProductCacheRepository using GORM
type GormProductCacheRepository struct {
	db *gorm.DB
}

// NewGormProductCacheRepository creates a new GormProductCacheRepository
func NewGormProductCacheRepository(db *gorm.DB) *GormProductCacheRepository {
	return &GormProductCacheRepository{db: db}
}

// Find looks a SKU up case-insensitively
func (r *GormProductCacheRepository) Find(ctx context.Context, siteID, sku string) (*integration.Product, error) {
	var model models.StorefrontProductModel
	err := r.db.WithContext(ctx).
		Where("site_id = ? AND sku_key = ?", siteID, models.SkuKey(sku)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stocksync.ErrProductCacheMiss
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert stores products of a site. Products without a SKU are ignored and
// within one call the last product per SKU wins.
func (r *GormProductCacheRepository) Upsert(ctx context.Context, siteID string, products []integration.Product) error {
	now := time.Now()
	index := make(map[string]int, len(products))
	rows := make([]models.StorefrontProductModel, 0, len(products))
	for _, p := range products {
		key := models.SkuKey(p.SKU)
		if key == "" {
			continue
		}
		var row models.StorefrontProductModel
		row.FromDomain(siteID, p, now)
		if i, ok := index[key]; ok {
			rows[i] = row
			continue
		}
		index[key] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "site_id"}, {Name: "sku_key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sku", "product_id", "parent_id", "name", "type",
				"stock_status", "stock_quantity", "manage_stock", "updated_at",
			}),
		}).
		CreateInBatches(&rows, productUpsertBatchSize).Error
}

// CountBySite returns the number of cached products of a site
func (r *GormProductCacheRepository) CountBySite(ctx context.Context, siteID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StorefrontProductModel{}).
		Where("site_id = ?", siteID).
		Count(&count).Error
	return count, err
}

// Ensure GormProductCacheRepository implements stocksync.ProductCacheRepository
var _ stocksync.ProductCacheRepository = (*GormProductCacheRepository)(nil)
