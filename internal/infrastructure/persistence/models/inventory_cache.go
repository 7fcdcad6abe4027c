package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// InventoryCacheModel stores the ERP snapshot of a batch as JSON documents.
type InventoryCacheModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	BatchID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	RecordsJSON     string    `gorm:"type:text;column:records"`
	MappingsJSON    string    `gorm:"type:text;column:mappings"`
	FilterJSON      string    `gorm:"type:text;column:filter"`
	MergeWarehouses bool      `gorm:"not null"`
	GlobalItems     int       `gorm:"not null;default:0"`
	CreatedAt       time.Time `gorm:"not null"`
	ExpiresAt       time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (InventoryCacheModel) TableName() string {
	return "sync_inventory_caches"
}

// ToDomain converts the persistence model to a domain InventoryCache.
func (m *InventoryCacheModel) ToDomain() (*stocksync.InventoryCache, error) {
	c := &stocksync.InventoryCache{
		ID:              m.ID,
		BatchID:         m.BatchID,
		Records:         make([]integration.ErpStockRecord, 0),
		Mappings:        make([]integration.SkuMapping, 0),
		MergeWarehouses: m.MergeWarehouses,
		GlobalItems:     m.GlobalItems,
		CreatedAt:       m.CreatedAt,
		ExpiresAt:       m.ExpiresAt,
	}
	if m.RecordsJSON != "" {
		if err := json.Unmarshal([]byte(m.RecordsJSON), &c.Records); err != nil {
			return nil, fmt.Errorf("decode cached records: %w", err)
		}
	}
	if m.MappingsJSON != "" {
		if err := json.Unmarshal([]byte(m.MappingsJSON), &c.Mappings); err != nil {
			return nil, fmt.Errorf("decode cached mappings: %w", err)
		}
	}
	if m.FilterJSON != "" {
		if err := json.Unmarshal([]byte(m.FilterJSON), &c.Filter); err != nil {
			return nil, fmt.Errorf("decode cached filter: %w", err)
		}
	}
	return c, nil
}

// FromDomain populates the persistence model from a domain InventoryCache.
func (m *InventoryCacheModel) FromDomain(c *stocksync.InventoryCache) error {
	records, err := json.Marshal(c.Records)
	if err != nil {
		return err
	}
	mappings, err := json.Marshal(c.Mappings)
	if err != nil {
		return err
	}
	filter, err := json.Marshal(c.Filter)
	if err != nil {
		return err
	}
	m.ID = c.ID
	m.BatchID = c.BatchID
	m.RecordsJSON = string(records)
	m.MappingsJSON = string(mappings)
	m.FilterJSON = string(filter)
	m.MergeWarehouses = c.MergeWarehouses
	m.GlobalItems = c.GlobalItems
	m.CreatedAt = c.CreatedAt.UTC()
	m.ExpiresAt = c.ExpiresAt.UTC()
	return nil
}
