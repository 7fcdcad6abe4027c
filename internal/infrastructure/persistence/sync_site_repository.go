package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormSiteRepository implements stocksync.SiteRepository using GORM
type GormSiteRepository struct {
	db       *gorm.DB
	validate *validator.Validate
}

// NewGormSiteRepository creates a new GormSiteRepository
func NewGormSiteRepository(db *gorm.DB) *GormSiteRepository {
	return &GormSiteRepository{db: db, validate: validator.New()}
}

// ListEnabled returns enabled sites in id order, which is also step order
func (r *GormSiteRepository) ListEnabled(ctx context.Context) ([]*stocksync.Site, error) {
	var siteModels []models.SiteModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&siteModels).Error; err != nil {
		return nil, err
	}
	sites := make([]*stocksync.Site, len(siteModels))
	for i := range siteModels {
		sites[i] = siteModels[i].ToDomain()
	}
	return sites, nil
}

// FindByID finds a site by its ID
func (r *GormSiteRepository) FindByID(ctx context.Context, id string) (*stocksync.Site, error) {
	var model models.SiteModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stocksync.ErrSiteNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save validates and upserts a site
func (r *GormSiteRepository) Save(ctx context.Context, site *stocksync.Site) error {
	if err := r.validate.Struct(site); err != nil {
		return fmt.Errorf("%w: %v", stocksync.ErrInvalidSite, err)
	}
	now := time.Now()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now

	var model models.SiteModel
	if err := model.FromDomain(site); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "base_url", "consumer_key", "consumer_secret", "enabled", "filter", "updated_at"}),
		}).
		Create(&model).Error
}

// Ensure GormSiteRepository implements stocksync.SiteRepository
var _ stocksync.SiteRepository = (*GormSiteRepository)(nil)
