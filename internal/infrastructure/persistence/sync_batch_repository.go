package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormBatchRepository implements stocksync.BatchRepository using GORM
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormBatchRepository) WithTx(tx *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: tx}
}

// FindActive returns the newest non-terminal, unexpired batch
func (r *GormBatchRepository) FindActive(ctx context.Context, now time.Time) (*stocksync.SyncBatch, error) {
	var model models.SyncBatchModel
	err := r.db.WithContext(ctx).
		Where("status IN ? AND expires_at > ?", stocksync.ActiveBatchStatuses, now.UTC()).
		Order("created_at DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stocksync.ErrBatchNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*stocksync.SyncBatch, error) {
	var model models.SyncBatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stocksync.ErrBatchNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Create inserts the batch and its seeded site results in one transaction.
// A second active batch violates the unique active_key index and is reported
// as stocksync.ErrActiveBatchExists.
func (r *GormBatchRepository) Create(ctx context.Context, batch *stocksync.SyncBatch, results []*stocksync.SiteResult) error {
	var model models.SyncBatchModel
	if err := model.FromDomain(batch); err != nil {
		return err
	}
	resultModels := make([]models.SiteResultModel, len(results))
	for i, res := range results {
		if err := resultModels[i].FromDomain(res); err != nil {
			return err
		}
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(resultModels) > 0 {
			if err := tx.Create(&resultModels).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return stocksync.ErrActiveBatchExists
		}
		return err
	}
	return nil
}

// Save updates the batch state. The active slot is only ever released here,
// never reclaimed, so a late save of an expired batch cannot collide with
// its successor.
func (r *GormBatchRepository) Save(ctx context.Context, batch *stocksync.SyncBatch) error {
	var model models.SyncBatchModel
	if err := model.FromDomain(batch); err != nil {
		return err
	}

	columns := []string{
		"status", "current_step", "total_sites", "site_ids", "inventory_cache_id",
		"stats", "error_message", "started_at", "completed_at", "expires_at",
	}
	if batch.Status.IsTerminal() {
		columns = append(columns, "active_key")
	}

	result := r.db.WithContext(ctx).
		Model(&models.SyncBatchModel{}).
		Where("id = ?", batch.ID).
		Select(columns).
		Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return stocksync.ErrBatchNotFound
	}
	return nil
}

// ReleaseExpired clears the active slot of batches past their expiry
func (r *GormBatchRepository) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncBatchModel{}).
		Where("active_key IS NOT NULL AND expires_at <= ?", now.UTC()).
		Update("active_key", nil)
	return result.RowsAffected, result.Error
}

// ListRecent returns the newest batches first
func (r *GormBatchRepository) ListRecent(ctx context.Context, limit int) ([]*stocksync.SyncBatch, error) {
	if limit <= 0 {
		limit = 20
	}
	var batchModels []models.SyncBatchModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&batchModels).Error; err != nil {
		return nil, err
	}
	batches := make([]*stocksync.SyncBatch, len(batchModels))
	for i := range batchModels {
		batch, err := batchModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		batches[i] = batch
	}
	return batches, nil
}

// isUniqueViolation recognizes duplicate-key errors from postgres and sqlite,
// translated or not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

// Ensure GormBatchRepository implements stocksync.BatchRepository
var _ stocksync.BatchRepository = (*GormBatchRepository)(nil)
