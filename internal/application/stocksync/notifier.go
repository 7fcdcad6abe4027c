package stocksync

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/stocksync"
)

// Channel delivers a report. Send returns false when delivery failed.
type Channel interface {
	Send(ctx context.Context, title, body string, success bool) bool
}

// Notifier reports finished batches through a Channel, gated by settings.
// Delivery failures never propagate.
type Notifier struct {
	channel Channel
	logger  *zap.Logger
}

// NewNotifier creates a notifier. A nil channel disables notifications.
func NewNotifier(channel Channel, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{channel: channel, logger: logger}
}

// ShouldNotify applies the notifyOn* switches to an overall status.
func ShouldNotify(status stocksync.OverallStatus, settings stocksync.GlobalSettings) bool {
	switch status {
	case stocksync.OverallStatusSuccess:
		return settings.NotifyOnSuccess
	case stocksync.OverallStatusNoChanges:
		return settings.NotifyOnNoChanges
	case stocksync.OverallStatusPartial, stocksync.OverallStatusFailed:
		return settings.NotifyOnFailure
	default:
		return false
	}
}

// NotifyCompleted reports a completed batch. It returns whether a message
// was delivered.
func (n *Notifier) NotifyCompleted(ctx context.Context, batch *stocksync.SyncBatch, results []*stocksync.SiteResult, settings stocksync.GlobalSettings) bool {
	if batch.Stats == nil {
		return false
	}
	status := batch.Stats.OverallStatus
	if !ShouldNotify(status, settings) {
		n.logger.Debug("Notification suppressed", zap.String("batch_id", batch.ID.String()), zap.String("status", string(status)))
		return false
	}
	title, body := FormatCompletedReport(batch, results, settings.MaxNotifiedFailures)
	return n.send(ctx, batch, title, body, status != stocksync.OverallStatusPartial)
}

// NotifyFailed reports a failed batch.
func (n *Notifier) NotifyFailed(ctx context.Context, batch *stocksync.SyncBatch, settings stocksync.GlobalSettings) bool {
	if !ShouldNotify(stocksync.OverallStatusFailed, settings) {
		return false
	}
	title := "Stock sync failed"
	body := fmt.Sprintf("Batch %s failed at step %d.\nError: %s\n", batch.ID, batch.CurrentStep, batch.ErrorMessage)
	return n.send(ctx, batch, title, body, false)
}

func (n *Notifier) send(ctx context.Context, batch *stocksync.SyncBatch, title, body string, success bool) bool {
	if n.channel == nil {
		return false
	}
	if ok := n.channel.Send(ctx, title, body, success); !ok {
		n.logger.Warn("Notification delivery failed", zap.String("batch_id", batch.ID.String()), zap.String("title", title))
		return false
	}
	return true
}

// FormatCompletedReport renders the summary of a completed batch, listing at
// most maxFailures failed SKUs.
func FormatCompletedReport(batch *stocksync.SyncBatch, results []*stocksync.SiteResult, maxFailures int) (string, string) {
	if maxFailures <= 0 {
		maxFailures = stocksync.DefaultMaxNotifiedFailures
	}
	stats := batch.Stats

	var title string
	switch stats.OverallStatus {
	case stocksync.OverallStatusPartial:
		title = "Stock sync finished with failures"
	case stocksync.OverallStatusNoChanges:
		title = "Stock sync finished: no changes"
	default:
		title = "Stock sync finished"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Batch: %s\n", batch.ID)
	fmt.Fprintf(&b, "Sites: %d completed, %d failed\n", stats.SitesCompleted, stats.SitesFailed)
	fmt.Fprintf(&b, "Checked: %d\n", stats.TotalChecked)
	fmt.Fprintf(&b, "Synced to instock: %d\n", stats.SyncedToInstock)
	fmt.Fprintf(&b, "Synced to outofstock: %d\n", stats.SyncedToOutofstock)
	fmt.Fprintf(&b, "Failed: %d\n", stats.Failed)
	fmt.Fprintf(&b, "Skipped: %d\n", stats.Skipped)
	fmt.Fprintf(&b, "Duration: %.1fs\n", stats.DurationSeconds)

	listed := 0
	for _, r := range results {
		if r.Status == stocksync.SiteResultStatusFailed && listed < maxFailures {
			fmt.Fprintf(&b, "- site %s: %s\n", r.SiteName, r.ErrorMessage)
			listed++
		}
		for _, d := range r.FailedDetails() {
			if listed >= maxFailures {
				break
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", r.SiteName, d.ErpSku, d.Message)
			listed++
		}
	}
	if more := stats.Failed + stats.SitesFailed - listed; more > 0 && listed > 0 {
		fmt.Fprintf(&b, "... and %d more\n", more)
	}
	return title, b.String()
}
