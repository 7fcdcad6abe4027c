package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

// ActiveSlot is the active_key value held by the one non-terminal batch.
// The unique index on active_key enforces the at-most-one-active rule.
const ActiveSlot = "active"

// SyncBatchModel is the persistence model for the SyncBatch aggregate.
type SyncBatchModel struct {
	ID               uuid.UUID             `gorm:"type:uuid;primary_key"`
	Status           stocksync.BatchStatus `gorm:"type:varchar(20);not null;index"`
	CurrentStep      int                   `gorm:"not null;default:0"`
	TotalSites       int                   `gorm:"not null;default:0"`
	SiteIDsJSON      string                `gorm:"type:text;column:site_ids"`
	InventoryCacheID *uuid.UUID            `gorm:"type:uuid"`
	StatsJSON        string                `gorm:"type:text;column:stats"`
	ErrorMessage     string                `gorm:"type:text"`
	ActiveKey        *string               `gorm:"type:varchar(16);uniqueIndex:idx_sync_batches_active_key"`
	CreatedAt        time.Time             `gorm:"not null;index"`
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ExpiresAt        time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SyncBatchModel) TableName() string {
	return "sync_batches"
}

// ToDomain converts the persistence model to a domain SyncBatch. A row whose
// site_ids or stats column cannot be decoded is reported as an error.
func (m *SyncBatchModel) ToDomain() (*stocksync.SyncBatch, error) {
	b := &stocksync.SyncBatch{
		ID:               m.ID,
		Status:           m.Status,
		CurrentStep:      m.CurrentStep,
		TotalSites:       m.TotalSites,
		SiteIDs:          make([]string, 0),
		InventoryCacheID: m.InventoryCacheID,
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		ExpiresAt:        m.ExpiresAt,
	}
	if m.SiteIDsJSON != "" {
		if err := json.Unmarshal([]byte(m.SiteIDsJSON), &b.SiteIDs); err != nil {
			return nil, fmt.Errorf("decode site_ids of batch %s: %w", m.ID, err)
		}
	}
	if m.StatsJSON != "" {
		var stats stocksync.BatchStats
		if err := json.Unmarshal([]byte(m.StatsJSON), &stats); err != nil {
			return nil, fmt.Errorf("decode stats of batch %s: %w", m.ID, err)
		}
		b.Stats = &stats
	}
	return b, nil
}

// FromDomain populates the persistence model from a domain SyncBatch.
// ActiveKey is derived from the status.
func (m *SyncBatchModel) FromDomain(b *stocksync.SyncBatch) error {
	siteIDs, err := json.Marshal(b.SiteIDs)
	if err != nil {
		return err
	}
	m.ID = b.ID
	m.Status = b.Status
	m.CurrentStep = b.CurrentStep
	m.TotalSites = b.TotalSites
	m.SiteIDsJSON = string(siteIDs)
	m.InventoryCacheID = b.InventoryCacheID
	m.StatsJSON = ""
	if b.Stats != nil {
		stats, err := json.Marshal(b.Stats)
		if err != nil {
			return err
		}
		m.StatsJSON = string(stats)
	}
	m.ErrorMessage = b.ErrorMessage
	m.CreatedAt = b.CreatedAt.UTC()
	m.StartedAt = utcPtr(b.StartedAt)
	m.CompletedAt = utcPtr(b.CompletedAt)
	m.ExpiresAt = b.ExpiresAt.UTC()
	m.ActiveKey = nil
	if !b.Status.IsTerminal() {
		slot := ActiveSlot
		m.ActiveKey = &slot
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
