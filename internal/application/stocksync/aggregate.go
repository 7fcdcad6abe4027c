package stocksync

import (
	"time"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

// Aggregate folds site results into batch totals and the overall status:
// partial when anything failed, no_changes when nothing changed, success
// otherwise.
func Aggregate(results []*stocksync.SiteResult, globalItems int, duration time.Duration) stocksync.BatchStats {
	stats := stocksync.BatchStats{
		GlobalItems:     globalItems,
		DurationSeconds: duration.Seconds(),
	}
	for _, r := range results {
		stats.TotalChecked += r.TotalChecked
		stats.SyncedToInstock += r.SyncedToInstock
		stats.SyncedToOutofstock += r.SyncedToOutofstock
		stats.Failed += r.Failed
		stats.Skipped += r.Skipped
		switch r.Status {
		case stocksync.SiteResultStatusCompleted:
			stats.SitesCompleted++
		case stocksync.SiteResultStatusFailed:
			stats.SitesFailed++
		}
	}

	switch {
	case stats.Failed > 0 || stats.SitesFailed > 0:
		stats.OverallStatus = stocksync.OverallStatusPartial
	case stats.Changes() == 0:
		stats.OverallStatus = stocksync.OverallStatusNoChanges
	default:
		stats.OverallStatus = stocksync.OverallStatusSuccess
	}
	return stats
}
