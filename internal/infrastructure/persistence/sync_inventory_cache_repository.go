package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormInventoryCacheRepository implements stocksync.InventoryCacheRepository using GORM
type GormInventoryCacheRepository struct {
	db *gorm.DB
}

// NewGormInventoryCacheRepository creates a new GormInventoryCacheRepository
func NewGormInventoryCacheRepository(db *gorm.DB) *GormInventoryCacheRepository {
	return &GormInventoryCacheRepository{db: db}
}

// Save stores the snapshot, replacing any earlier snapshot of the same batch
func (r *GormInventoryCacheRepository) Save(ctx context.Context, cache *stocksync.InventoryCache) error {
	var model models.InventoryCacheModel
	if err := model.FromDomain(cache); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "batch_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"id", "records", "mappings", "filter", "merge_warehouses", "global_items", "created_at", "expires_at"}),
		}).
		Create(&model).Error
}

// FindByBatch returns the snapshot of a batch
func (r *GormInventoryCacheRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) (*stocksync.InventoryCache, error) {
	var model models.InventoryCacheModel
	if err := r.db.WithContext(ctx).First(&model, "batch_id = ?", batchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stocksync.ErrInventoryCacheMissing
		}
		return nil, err
	}
	return model.ToDomain()
}

// DeleteExpired removes snapshots past their expiry
func (r *GormInventoryCacheRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&models.InventoryCacheModel{})
	return result.RowsAffected, result.Error
}

// Ensure GormInventoryCacheRepository implements stocksync.InventoryCacheRepository
var _ stocksync.InventoryCacheRepository = (*GormInventoryCacheRepository)(nil)
