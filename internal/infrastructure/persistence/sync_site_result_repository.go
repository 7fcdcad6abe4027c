package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormSiteResultRepository implements stocksync.SiteResultRepository using GORM
type GormSiteResultRepository struct {
	db *gorm.DB
}

// NewGormSiteResultRepository creates a new GormSiteResultRepository
func NewGormSiteResultRepository(db *gorm.DB) *GormSiteResultRepository {
	return &GormSiteResultRepository{db: db}
}

// FindByStep returns the result seeded for a step of a batch
func (r *GormSiteResultRepository) FindByStep(ctx context.Context, batchID uuid.UUID, step int) (*stocksync.SiteResult, error) {
	var model models.SiteResultModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ? AND step_index = ?", batchID, step).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stocksync.ErrSiteResultNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByBatch returns the results of a batch in step order
func (r *GormSiteResultRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*stocksync.SiteResult, error) {
	var resultModels []models.SiteResultModel
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("step_index ASC").
		Find(&resultModels).Error; err != nil {
		return nil, err
	}
	results := make([]*stocksync.SiteResult, len(resultModels))
	for i := range resultModels {
		results[i] = resultModels[i].ToDomain()
	}
	return results, nil
}

// Save writes every column of the result
func (r *GormSiteResultRepository) Save(ctx context.Context, result *stocksync.SiteResult) error {
	var model models.SiteResultModel
	if err := model.FromDomain(result); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormSiteResultRepository implements stocksync.SiteResultRepository
var _ stocksync.SiteResultRepository = (*GormSiteResultRepository)(nil)
