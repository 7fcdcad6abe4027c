package persistence

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/erp/stocksync/internal/domain/stocksync"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormSettingsRepository implements stocksync.SettingsRepository using GORM
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// Get returns the stored settings or the defaults
func (r *GormSettingsRepository) Get(ctx context.Context) (*stocksync.GlobalSettings, error) {
	var model models.SettingsModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", models.SettingsRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			defaults := stocksync.DefaultGlobalSettings()
			return &defaults, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save writes the settings row
func (r *GormSettingsRepository) Save(ctx context.Context, settings *stocksync.GlobalSettings) error {
	settings.UpdatedAt = time.Now()
	var model models.SettingsModel
	if err := model.FromDomain(settings); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

// Ensure GormSettingsRepository implements stocksync.SettingsRepository
var _ stocksync.SettingsRepository = (*GormSettingsRepository)(nil)
