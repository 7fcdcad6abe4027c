// Package stocksync contains the Stock Sync bounded context.
// A SyncBatch reconciles ERP stock against every enabled storefront site,
// one persisted step at a time so that a run survives short-lived workers.
//
// Key concepts:
//   - SyncBatch: Aggregate root driving the pending -> fetching -> syncing -> completed state machine
//   - SiteResult: Outcome of one site's step (exactly one per site and batch)
//   - InventoryCache: ERP snapshot written at step 0 and read by every site step
//   - SiteFilterConfig: Per-site filter overrides layered over GlobalSettings
package stocksync
