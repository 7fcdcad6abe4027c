package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

// SiteResultModel is the persistence model for one site step of a batch.
type SiteResultModel struct {
	ID                 uuid.UUID                  `gorm:"type:uuid;primary_key"`
	BatchID            uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_site_results_batch_step,priority:1"`
	StepIndex          int                        `gorm:"not null;uniqueIndex:idx_site_results_batch_step,priority:2"`
	SiteID             string                     `gorm:"type:varchar(64);not null;index"`
	SiteName           string                     `gorm:"type:varchar(200)"`
	Status             stocksync.SiteResultStatus `gorm:"type:varchar(20);not null"`
	TotalChecked       int                        `gorm:"not null;default:0"`
	SyncedToInstock    int                        `gorm:"not null;default:0"`
	SyncedToOutofstock int                        `gorm:"not null;default:0"`
	Failed             int                        `gorm:"not null;default:0"`
	Skipped            int                        `gorm:"not null;default:0"`
	DetailsJSON        string                     `gorm:"type:text;column:details"`
	ErrorMessage       string                     `gorm:"type:text"`
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

// TableName returns the table name for GORM
func (SiteResultModel) TableName() string {
	return "sync_site_results"
}

// ToDomain converts the persistence model to a domain SiteResult.
func (m *SiteResultModel) ToDomain() *stocksync.SiteResult {
	r := &stocksync.SiteResult{
		ID:                 m.ID,
		BatchID:            m.BatchID,
		SiteID:             m.SiteID,
		SiteName:           m.SiteName,
		StepIndex:          m.StepIndex,
		Status:             m.Status,
		TotalChecked:       m.TotalChecked,
		SyncedToInstock:    m.SyncedToInstock,
		SyncedToOutofstock: m.SyncedToOutofstock,
		Failed:             m.Failed,
		Skipped:            m.Skipped,
		ErrorMessage:       m.ErrorMessage,
		StartedAt:          m.StartedAt,
		CompletedAt:        m.CompletedAt,
	}
	if m.DetailsJSON != "" {
		_ = json.Unmarshal([]byte(m.DetailsJSON), &r.Details)
	}
	return r
}

// FromDomain populates the persistence model from a domain SiteResult.
func (m *SiteResultModel) FromDomain(r *stocksync.SiteResult) error {
	m.DetailsJSON = ""
	if len(r.Details) > 0 {
		details, err := json.Marshal(r.Details)
		if err != nil {
			return err
		}
		m.DetailsJSON = string(details)
	}
	m.ID = r.ID
	m.BatchID = r.BatchID
	m.SiteID = r.SiteID
	m.SiteName = r.SiteName
	m.StepIndex = r.StepIndex
	m.Status = r.Status
	m.TotalChecked = r.TotalChecked
	m.SyncedToInstock = r.SyncedToInstock
	m.SyncedToOutofstock = r.SyncedToOutofstock
	m.Failed = r.Failed
	m.Skipped = r.Skipped
	m.ErrorMessage = r.ErrorMessage
	m.StartedAt = utcPtr(r.StartedAt)
	m.CompletedAt = utcPtr(r.CompletedAt)
	return nil
}
