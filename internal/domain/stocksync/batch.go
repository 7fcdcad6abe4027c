package stocksync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultBatchTTL bounds how long a batch may stay active.
const DefaultBatchTTL = 2 * time.Hour

// BatchStatus represents the lifecycle state of a SyncBatch
type BatchStatus string

const (
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusFetching  BatchStatus = "fetching"
	BatchStatusSyncing   BatchStatus = "syncing"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// ActiveBatchStatuses lists the non-terminal statuses.
var ActiveBatchStatuses = []BatchStatus{BatchStatusPending, BatchStatusFetching, BatchStatusSyncing}

// IsValid returns true if the status is valid
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusPending, BatchStatusFetching, BatchStatusSyncing,
		BatchStatusCompleted, BatchStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for completed and failed
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// String returns the string representation of BatchStatus
func (s BatchStatus) String() string {
	return string(s)
}

// StepKind describes what the batch's current step does.
type StepKind string

const (
	StepKindFetch    StepKind = "fetch"
	StepKindSite     StepKind = "site"
	StepKindFinalize StepKind = "finalize"
	StepKindDone     StepKind = "done"
)

// SyncBatch is one end-to-end reconciliation run over a fixed site set.
//
// Step 0 fetches the ERP, steps 1..TotalSites sync one site each and step
// TotalSites+1 aggregates and notifies.
type SyncBatch struct {
	ID               uuid.UUID
	Status           BatchStatus
	CurrentStep      int
	TotalSites       int
	SiteIDs          []string
	InventoryCacheID *uuid.UUID
	Stats            *BatchStats
	ErrorMessage     string
	CreatedAt        time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	ExpiresAt        time.Time
}

// NewSyncBatch creates a pending batch covering siteIDs.
func NewSyncBatch(siteIDs []string, now time.Time, ttl time.Duration) *SyncBatch {
	if ttl <= 0 {
		ttl = DefaultBatchTTL
	}
	ids := make([]string, len(siteIDs))
	copy(ids, siteIDs)
	return &SyncBatch{
		ID:          uuid.New(),
		Status:      BatchStatusPending,
		CurrentStep: 0,
		TotalSites:  len(ids),
		SiteIDs:     ids,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// IsActive returns true while the batch is non-terminal and not expired.
func (b *SyncBatch) IsActive(now time.Time) bool {
	return !b.Status.IsTerminal() && b.ExpiresAt.After(now)
}

// FinalizeStep returns the index of the aggregation step.
func (b *SyncBatch) FinalizeStep() int {
	return b.TotalSites + 1
}

// StepKind classifies CurrentStep.
func (b *SyncBatch) StepKind() StepKind {
	switch {
	case b.Status.IsTerminal():
		return StepKindDone
	case b.CurrentStep == 0:
		return StepKindFetch
	case b.CurrentStep <= b.TotalSites:
		return StepKindSite
	default:
		return StepKindFinalize
	}
}

// SiteIDForStep returns the site handled by step k (1-based).
func (b *SyncBatch) SiteIDForStep(step int) (string, bool) {
	if step < 1 || step > len(b.SiteIDs) {
		return "", false
	}
	return b.SiteIDs[step-1], true
}

// StartFetching moves a pending batch into fetching. Re-entering fetching
// after an interrupted step 0 is allowed.
func (b *SyncBatch) StartFetching(now time.Time) error {
	switch b.Status {
	case BatchStatusPending:
		b.Status = BatchStatusFetching
		b.StartedAt = &now
		return nil
	case BatchStatusFetching:
		return nil
	default:
		return b.transitionError(BatchStatusFetching)
	}
}

// StartSyncing records the inventory cache and moves to step 1.
func (b *SyncBatch) StartSyncing(cacheID uuid.UUID) error {
	if b.Status != BatchStatusFetching {
		return b.transitionError(BatchStatusSyncing)
	}
	b.Status = BatchStatusSyncing
	b.InventoryCacheID = &cacheID
	b.CurrentStep = 1
	return nil
}

// Advance moves past the current site step.
func (b *SyncBatch) Advance() error {
	if b.Status != BatchStatusSyncing || b.CurrentStep > b.TotalSites {
		return b.transitionError(BatchStatusSyncing)
	}
	b.CurrentStep++
	return nil
}

// Complete marks the batch completed with its aggregated stats.
func (b *SyncBatch) Complete(stats BatchStats, now time.Time) error {
	if b.Status != BatchStatusSyncing {
		return b.transitionError(BatchStatusCompleted)
	}
	b.Status = BatchStatusCompleted
	b.Stats = &stats
	b.CompletedAt = &now
	return nil
}

// Fail marks the batch failed. Only the first fatal error is kept.
func (b *SyncBatch) Fail(reason string, now time.Time) error {
	if b.Status.IsTerminal() {
		return b.transitionError(BatchStatusFailed)
	}
	b.Status = BatchStatusFailed
	if b.ErrorMessage == "" {
		b.ErrorMessage = reason
	}
	b.CompletedAt = &now
	return nil
}

// Duration returns the elapsed time between start and completion (or now).
func (b *SyncBatch) Duration(now time.Time) time.Duration {
	start := b.CreatedAt
	if b.StartedAt != nil {
		start = *b.StartedAt
	}
	end := now
	if b.CompletedAt != nil {
		end = *b.CompletedAt
	}
	if end.Before(start) {
		return 0
	}
	return end.Sub(start)
}

func (b *SyncBatch) transitionError(to BatchStatus) error {
	return fmt.Errorf("%w: batch %s from %s to %s (step %d)", ErrInvalidTransition, b.ID, b.Status, to, b.CurrentStep)
}
