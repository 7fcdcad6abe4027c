package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// SiteModel is the persistence model for a storefront site.
type SiteModel struct {
	ID             string    `gorm:"type:varchar(64);primary_key"`
	Name           string    `gorm:"type:varchar(200);not null"`
	BaseURL        string    `gorm:"type:varchar(500);not null"`
	ConsumerKey    string    `gorm:"type:varchar(200);not null"`
	ConsumerSecret string    `gorm:"type:varchar(200);not null"`
	Enabled        bool      `gorm:"not null;index"`
	FilterJSON     string    `gorm:"type:text;column:filter"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SiteModel) TableName() string {
	return "sync_sites"
}

// ToDomain converts the persistence model to a domain Site.
func (m *SiteModel) ToDomain() *stocksync.Site {
	s := &stocksync.Site{
		ID:             m.ID,
		Name:           m.Name,
		BaseURL:        m.BaseURL,
		ConsumerKey:    m.ConsumerKey,
		ConsumerSecret: m.ConsumerSecret,
		Enabled:        m.Enabled,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.FilterJSON != "" {
		_ = json.Unmarshal([]byte(m.FilterJSON), &s.Filter)
	}
	return s
}

// FromDomain populates the persistence model from a domain Site.
func (m *SiteModel) FromDomain(s *stocksync.Site) error {
	filter, err := json.Marshal(s.Filter)
	if err != nil {
		return err
	}
	m.ID = s.ID
	m.Name = s.Name
	m.BaseURL = s.BaseURL
	m.ConsumerKey = s.ConsumerKey
	m.ConsumerSecret = s.ConsumerSecret
	m.Enabled = s.Enabled
	m.FilterJSON = string(filter)
	m.CreatedAt = s.CreatedAt.UTC()
	m.UpdatedAt = s.UpdatedAt.UTC()
	return nil
}

// SettingsModel stores the single global settings row.
type SettingsModel struct {
	ID                    int    `gorm:"primary_key"`
	FilterJSON            string `gorm:"type:text;column:filter"`
	MergeWarehouses       bool   `gorm:"not null"`
	LowStockThreshold     int    `gorm:"not null"`
	AllowSyncToInstock    bool   `gorm:"not null"`
	AllowSyncToOutofstock bool   `gorm:"not null"`
	NotifyOnSuccess       bool   `gorm:"not null"`
	NotifyOnFailure       bool   `gorm:"not null"`
	NotifyOnNoChanges     bool   `gorm:"not null"`
	MaxNotifiedFailures   int    `gorm:"not null"`
	UpdatedAt             time.Time
}

// SettingsRowID is the primary key of the settings row.
const SettingsRowID = 1

// TableName returns the table name for GORM
func (SettingsModel) TableName() string {
	return "sync_settings"
}

// ToDomain converts the persistence model to domain GlobalSettings.
func (m *SettingsModel) ToDomain() *stocksync.GlobalSettings {
	s := &stocksync.GlobalSettings{
		MergeWarehouses:       m.MergeWarehouses,
		LowStockThreshold:     m.LowStockThreshold,
		AllowSyncToInstock:    m.AllowSyncToInstock,
		AllowSyncToOutofstock: m.AllowSyncToOutofstock,
		NotifyOnSuccess:       m.NotifyOnSuccess,
		NotifyOnFailure:       m.NotifyOnFailure,
		NotifyOnNoChanges:     m.NotifyOnNoChanges,
		MaxNotifiedFailures:   m.MaxNotifiedFailures,
		UpdatedAt:             m.UpdatedAt,
	}
	if m.FilterJSON != "" {
		_ = json.Unmarshal([]byte(m.FilterJSON), &s.Filter)
	}
	return s
}

// FromDomain populates the persistence model from domain GlobalSettings.
func (m *SettingsModel) FromDomain(s *stocksync.GlobalSettings) error {
	filter, err := json.Marshal(s.Filter)
	if err != nil {
		return err
	}
	m.ID = SettingsRowID
	m.FilterJSON = string(filter)
	m.MergeWarehouses = s.MergeWarehouses
	m.LowStockThreshold = s.LowStockThreshold
	m.AllowSyncToInstock = s.AllowSyncToInstock
	m.AllowSyncToOutofstock = s.AllowSyncToOutofstock
	m.NotifyOnSuccess = s.NotifyOnSuccess
	m.NotifyOnFailure = s.NotifyOnFailure
	m.NotifyOnNoChanges = s.NotifyOnNoChanges
	m.MaxNotifiedFailures = s.MaxNotifiedFailures
	m.UpdatedAt = s.UpdatedAt.UTC()
	return nil
}

// StorefrontProductModel is one cached storefront product, keyed by site and
// upper-cased SKU.
type StorefrontProductModel struct {
	SiteID        string                  `gorm:"type:varchar(64);primary_key"`
	SkuKey        string                  `gorm:"type:varchar(200);primary_key"`
	SKU           string                  `gorm:"type:varchar(200);not null"`
	ProductID     int64                   `gorm:"not null"`
	ParentID      int64                   `gorm:"not null;default:0"`
	Name          string                  `gorm:"type:varchar(500)"`
	Type          string                  `gorm:"type:varchar(30)"`
	StockStatus   integration.StockStatus `gorm:"type:varchar(20)"`
	StockQuantity *int
	ManageStock   bool      `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StorefrontProductModel) TableName() string {
	return "storefront_products"
}

// SkuKey normalizes a SKU for cache lookups.
func SkuKey(sku string) string {
	return strings.ToUpper(strings.TrimSpace(sku))
}

// ToDomain converts the cached row to a domain Product.
func (m *StorefrontProductModel) ToDomain() *integration.Product {
	return &integration.Product{
		ID:            m.ProductID,
		ParentID:      m.ParentID,
		SKU:           m.SKU,
		Name:          m.Name,
		Type:          m.Type,
		StockStatus:   m.StockStatus,
		StockQuantity: m.StockQuantity,
		ManageStock:   m.ManageStock,
		RefreshedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the cached row from a domain Product.
func (m *StorefrontProductModel) FromDomain(siteID string, p integration.Product, now time.Time) {
	m.SiteID = siteID
	m.SkuKey = SkuKey(p.SKU)
	m.SKU = p.SKU
	m.ProductID = p.ID
	m.ParentID = p.ParentID
	m.Name = p.Name
	m.Type = p.Type
	m.StockStatus = p.StockStatus
	m.StockQuantity = p.StockQuantity
	m.ManageStock = p.ManageStock
	m.UpdatedAt = now.UTC()
}
