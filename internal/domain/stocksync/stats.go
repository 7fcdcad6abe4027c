package stocksync

// OverallStatus summarizes a completed batch.
type OverallStatus string

const (
	OverallStatusSuccess   OverallStatus = "success"
	OverallStatusNoChanges OverallStatus = "no_changes"
	OverallStatusPartial   OverallStatus = "partial"
	OverallStatusFailed    OverallStatus = "failed"
)

// BatchStats aggregates all site results of a batch.
type BatchStats struct {
	TotalChecked       int           `json:"total_checked"`
	SyncedToInstock    int           `json:"synced_to_instock"`
	SyncedToOutofstock int           `json:"synced_to_outofstock"`
	Failed             int           `json:"failed"`
	Skipped            int           `json:"skipped"`
	SitesCompleted     int           `json:"sites_completed"`
	SitesFailed        int           `json:"sites_failed"`
	GlobalItems        int           `json:"global_items"`
	OverallStatus      OverallStatus `json:"overall_status"`
	DurationSeconds    float64       `json:"duration_seconds"`
}

// Changes returns the number of successful updates.
func (s BatchStats) Changes() int {
	return s.SyncedToInstock + s.SyncedToOutofstock
}
