package dto

import (
	"time"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

// BatchResponse represents a sync batch in API responses
type BatchResponse struct {
	ID           string                `json:"id"`
	Status       string                `json:"status"`
	StepKind     string                `json:"step_kind"`
	CurrentStep  int                   `json:"current_step"`
	TotalSites   int                   `json:"total_sites"`
	SiteIDs      []string              `json:"site_ids"`
	Stats        *stocksync.BatchStats `json:"stats,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
	StartedAt    *time.Time            `json:"started_at,omitempty"`
	CompletedAt  *time.Time            `json:"completed_at,omitempty"`
	ExpiresAt    time.Time             `json:"expires_at"`
}

// SiteResultResponse represents one site's step outcome
type SiteResultResponse struct {
	SiteID             string                 `json:"site_id"`
	SiteName           string                 `json:"site_name"`
	StepIndex          int                    `json:"step_index"`
	Status             string                 `json:"status"`
	TotalChecked       int                    `json:"total_checked"`
	SyncedToInstock    int                    `json:"synced_to_instock"`
	SyncedToOutofstock int                    `json:"synced_to_outofstock"`
	Failed             int                    `json:"failed"`
	Skipped            int                    `json:"skipped"`
	Details            []stocksync.ItemDetail `json:"details,omitempty"`
	ErrorMessage       string                 `json:"error_message,omitempty"`
	StartedAt          *time.Time             `json:"started_at,omitempty"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
}

// BatchDetailResponse is a batch with its per-site results
type BatchDetailResponse struct {
	BatchResponse
	Sites []SiteResultResponse `json:"sites"`
}

// TriggerResponse reports whether a wake-up was queued. A trigger that
// arrives while another is pending is absorbed.
type TriggerResponse struct {
	Queued bool `json:"queued"`
}

// HealthResponse represents the service health
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp time.Time         `json:"timestamp"`
}

// ListBatchesRequest holds query parameters for recent batches
type ListBatchesRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// NewBatchResponse converts a domain batch
func NewBatchResponse(b *stocksync.SyncBatch) BatchResponse {
	ids := b.SiteIDs
	if ids == nil {
		ids = []string{}
	}
	return BatchResponse{
		ID:           b.ID.String(),
		Status:       b.Status.String(),
		StepKind:     string(b.StepKind()),
		CurrentStep:  b.CurrentStep,
		TotalSites:   b.TotalSites,
		SiteIDs:      ids,
		Stats:        b.Stats,
		ErrorMessage: b.ErrorMessage,
		CreatedAt:    b.CreatedAt,
		StartedAt:    b.StartedAt,
		CompletedAt:  b.CompletedAt,
		ExpiresAt:    b.ExpiresAt,
	}
}

// NewSiteResultResponse converts a domain site result
func NewSiteResultResponse(r *stocksync.SiteResult) SiteResultResponse {
	return SiteResultResponse{
		SiteID:             r.SiteID,
		SiteName:           r.SiteName,
		StepIndex:          r.StepIndex,
		Status:             r.Status.String(),
		TotalChecked:       r.TotalChecked,
		SyncedToInstock:    r.SyncedToInstock,
		SyncedToOutofstock: r.SyncedToOutofstock,
		Failed:             r.Failed,
		Skipped:            r.Skipped,
		Details:            r.Details,
		ErrorMessage:       r.ErrorMessage,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
	}
}

// NewBatchDetailResponse converts a batch and its results
func NewBatchDetailResponse(b *stocksync.SyncBatch, results []*stocksync.SiteResult) BatchDetailResponse {
	sites := make([]SiteResultResponse, 0, len(results))
	for _, r := range results {
		sites = append(sites, NewSiteResultResponse(r))
	}
	return BatchDetailResponse{BatchResponse: NewBatchResponse(b), Sites: sites}
}
