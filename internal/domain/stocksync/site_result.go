package stocksync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MaxResultDetails caps the stored per-item details of one site result.
// Counters stay exact beyond the cap.
const MaxResultDetails = 500

// SiteResultStatus represents the state of one site's step
type SiteResultStatus string

const (
	SiteResultStatusPending   SiteResultStatus = "pending"
	SiteResultStatusRunning   SiteResultStatus = "running"
	SiteResultStatusCompleted SiteResultStatus = "completed"
	SiteResultStatusFailed    SiteResultStatus = "failed"
)

// IsDone returns true when the step already ran to an outcome
func (s SiteResultStatus) IsDone() bool {
	return s == SiteResultStatusCompleted || s == SiteResultStatusFailed
}

// String returns the string representation of SiteResultStatus
func (s SiteResultStatus) String() string {
	return string(s)
}

// ItemOutcome is the accounted outcome of one ERP SKU on one site.
type ItemOutcome string

const (
	ItemOutcomeSyncedToInstock    ItemOutcome = "synced_instock"
	ItemOutcomeSyncedToOutofstock ItemOutcome = "synced_outofstock"
	ItemOutcomeFailed             ItemOutcome = "failed"
	ItemOutcomeSkipped            ItemOutcome = "skipped"
)

// ItemDetail records what happened to one ERP SKU.
type ItemDetail struct {
	ErpSku         string      `json:"erp_sku"`
	StorefrontSkus []string    `json:"storefront_skus,omitempty"`
	Action         SyncAction  `json:"action,omitempty"`
	Outcome        ItemOutcome `json:"outcome"`
	ErrorKind      string      `json:"error_kind,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// SiteResult is the persisted outcome of one site step in a batch.
type SiteResult struct {
	ID                 uuid.UUID
	BatchID            uuid.UUID
	SiteID             string
	SiteName           string
	StepIndex          int
	Status             SiteResultStatus
	TotalChecked       int
	SyncedToInstock    int
	SyncedToOutofstock int
	Failed             int
	Skipped            int
	Details            []ItemDetail
	ErrorMessage       string
	StartedAt          *time.Time
	CompletedAt        *time.Time
}

// NewSiteResult seeds a pending result for a site at the given step.
func NewSiteResult(batchID uuid.UUID, siteID, siteName string, step int) *SiteResult {
	return &SiteResult{
		ID:        uuid.New(),
		BatchID:   batchID,
		SiteID:    siteID,
		SiteName:  siteName,
		StepIndex: step,
		Status:    SiteResultStatusPending,
	}
}

// Start marks the result running. A result left running by an interrupted
// invocation may be restarted; its counters are reset.
func (r *SiteResult) Start(now time.Time) error {
	if r.Status.IsDone() {
		return fmt.Errorf("%w: site result %s is %s", ErrInvalidTransition, r.SiteID, r.Status)
	}
	r.Status = SiteResultStatusRunning
	r.StartedAt = &now
	r.resetCounters()
	return nil
}

// Complete marks a running result completed.
func (r *SiteResult) Complete(now time.Time) error {
	if r.Status != SiteResultStatusRunning {
		return fmt.Errorf("%w: site result %s is %s", ErrInvalidTransition, r.SiteID, r.Status)
	}
	r.Status = SiteResultStatusCompleted
	r.CompletedAt = &now
	return nil
}

// Fail marks the result failed with a site-level error.
func (r *SiteResult) Fail(reason string, now time.Time) error {
	if r.Status.IsDone() {
		return fmt.Errorf("%w: site result %s is %s", ErrInvalidTransition, r.SiteID, r.Status)
	}
	r.Status = SiteResultStatusFailed
	r.ErrorMessage = reason
	r.CompletedAt = &now
	return nil
}

// Record accounts one ERP SKU.
func (r *SiteResult) Record(detail ItemDetail) {
	r.TotalChecked++
	switch detail.Outcome {
	case ItemOutcomeSyncedToInstock:
		r.SyncedToInstock++
	case ItemOutcomeSyncedToOutofstock:
		r.SyncedToOutofstock++
	case ItemOutcomeFailed:
		r.Failed++
	default:
		r.Skipped++
	}

	// skipped items carry no information worth storing
	if detail.Outcome == ItemOutcomeSkipped && detail.Message == "" {
		return
	}
	if len(r.Details) < MaxResultDetails {
		r.Details = append(r.Details, detail)
	}
}

// Changes returns the number of successful updates.
func (r *SiteResult) Changes() int {
	return r.SyncedToInstock + r.SyncedToOutofstock
}

// FailedDetails returns the recorded failures in order.
func (r *SiteResult) FailedDetails() []ItemDetail {
	var out []ItemDetail
	for _, d := range r.Details {
		if d.Outcome == ItemOutcomeFailed {
			out = append(out, d)
		}
	}
	return out
}

func (r *SiteResult) resetCounters() {
	r.TotalChecked = 0
	r.SyncedToInstock = 0
	r.SyncedToOutofstock = 0
	r.Failed = 0
	r.Skipped = 0
	r.Details = nil
	r.ErrorMessage = ""
}
