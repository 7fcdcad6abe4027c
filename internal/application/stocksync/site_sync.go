package stocksync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// SiteSyncInput is everything one site step works on.
type SiteSyncInput struct {
	Site     *stocksync.Site
	Client   integration.Storefront
	Cache    *stocksync.InventoryCache
	Settings stocksync.GlobalSettings
	Result   *stocksync.SiteResult
}

// SiteSyncer runs filter, mapping, decision and execution for one site and
// records every ERP SKU into the site result.
type SiteSyncer struct {
	pipeline *FilterPipeline
	lookup   *ProductLookup
	executor *SiteExecutor
	logger   *zap.Logger
}

// NewSiteSyncer wires a SiteSyncer.
func NewSiteSyncer(pipeline *FilterPipeline, lookup *ProductLookup, executor *SiteExecutor, logger *zap.Logger) *SiteSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteSyncer{pipeline: pipeline, lookup: lookup, executor: executor, logger: logger}
}

// Sync processes every filtered item sequentially. Item errors are recorded
// in the result; only a cancelled context aborts the site.
func (s *SiteSyncer) Sync(ctx context.Context, in SiteSyncInput) error {
	log := s.logger.With(zap.String("site_id", in.Site.ID), zap.String("site_name", in.Site.Name))

	filter := stocksync.MergeFilterConfig(in.Cache.Filter, in.Site.Filter)
	items, _ := s.pipeline.Apply(in.Cache.Records, FilterOptions{Filter: filter, Merge: in.Cache.MergeWarehouses})
	if !in.Cache.MergeWarehouses {
		var dropped int
		if items, dropped = DedupeBySku(items); dropped > 0 {
			log.Warn("Duplicate SKUs without warehouse merge, keeping first row", zap.Int("dropped", dropped))
		}
	}

	index := BuildMappingIndex(in.Cache.Mappings)
	policy := PolicyFromSettings(in.Settings)
	log.Info("Site sync started", zap.Int("items", len(items)), zap.Int("mappings", index.Len()))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("site %s interrupted after %d items: %w", in.Site.ID, in.Result.TotalChecked, err)
		}
		in.Result.Record(s.syncItem(ctx, in, filter, index, policy, item))
	}

	log.Info("Site sync finished",
		zap.Int("checked", in.Result.TotalChecked),
		zap.Int("to_instock", in.Result.SyncedToInstock),
		zap.Int("to_outofstock", in.Result.SyncedToOutofstock),
		zap.Int("failed", in.Result.Failed),
		zap.Int("skipped", in.Result.Skipped),
	)
	return nil
}

// skuOutcome is the result of one storefront SKU of a fan-out.
type skuOutcome struct {
	sku      string
	decision stocksync.SyncDecision
	applied  bool
	notFound bool
	// skipErr is a lookup error that leaves the SKU untouched without
	// failing the item.
	skipErr error
	err     error
}

func (s *SiteSyncer) syncItem(ctx context.Context, in SiteSyncInput, filter stocksync.SiteFilterConfig, index *MappingIndex, policy DecisionPolicy, item integration.ErpStockRecord) stocksync.ItemDetail {
	skus := index.ResolveStorefrontSkus(item.SkuCode)
	outcomes := make([]skuOutcome, 0, len(skus))
	for _, sku := range skus {
		outcomes = append(outcomes, s.syncSku(ctx, in, filter, policy, item, sku))
	}
	return accountFanOut(item.SkuCode, skus, outcomes)
}

func (s *SiteSyncer) syncSku(ctx context.Context, in SiteSyncInput, filter stocksync.SiteFilterConfig, policy DecisionPolicy, item integration.ErpStockRecord, sku string) skuOutcome {
	out := skuOutcome{sku: sku}

	product, err := s.lookup.Find(ctx, in.Site.ID, in.Client, sku)
	if err != nil {
		if errors.Is(err, integration.ErrProductNotFound) {
			out.notFound = true
			return out
		}
		if isSkippableLookupError(err) {
			s.logger.Warn("Skipping storefront SKU",
				zap.String("site_id", in.Site.ID),
				zap.String("sku", sku),
				zap.Error(err))
			out.skipErr = err
			return out
		}
		out.err = err
		return out
	}

	input := DecisionInput{
		ErpSku:        item.SkuCode,
		StorefrontSku: sku,
		NetStock:      item.NetStock(),
		CurrentStatus: product.StockStatus,
		LiveQuantity:  liveQuantity(product),
		Filter:        filter,
	}
	if NeedsLiveQuantity(input, policy) {
		product = s.lookup.Live(ctx, in.Site.ID, in.Client, product)
		input.CurrentStatus = product.StockStatus
		input.LiveQuantity = liveQuantity(product)
	}

	out.decision = Decide(input, policy)
	if out.decision.IsNoop() {
		return out
	}
	if _, err := s.executor.Apply(ctx, in.Site.ID, in.Client, product, out.decision); err != nil {
		out.err = err
		return out
	}
	out.applied = true
	return out
}

// accountFanOut folds the storefront SKUs of one ERP SKU into a single
// outcome: any failure fails the item (first error wins, "partial: x/y" when
// some succeeded), otherwise the first success counts once, otherwise skipped.
func accountFanOut(erpSku string, skus []string, outcomes []skuOutcome) stocksync.ItemDetail {
	detail := stocksync.ItemDetail{ErpSku: erpSku, StorefrontSkus: skus}

	var firstErr *skuOutcome
	var firstOK *skuOutcome
	succeeded := 0
	notFound := 0
	var firstSkip *skuOutcome
	for i := range outcomes {
		o := &outcomes[i]
		switch {
		case o.err != nil:
			if firstErr == nil {
				firstErr = o
			}
		case o.applied:
			succeeded++
			if firstOK == nil {
				firstOK = o
			}
		case o.notFound:
			notFound++
		case o.skipErr != nil:
			if firstSkip == nil {
				firstSkip = o
			}
		}
	}

	switch {
	case firstErr != nil:
		detail.Outcome = stocksync.ItemOutcomeFailed
		detail.Action = firstErr.decision.Action
		detail.ErrorKind = integration.ClassifyError(firstErr.err).String()
		detail.Message = fmt.Sprintf("%s: %v", firstErr.sku, firstErr.err)
		if succeeded > 0 {
			detail.Message = fmt.Sprintf("partial: %d/%d; %s", succeeded, len(outcomes), detail.Message)
		}
	case firstOK != nil:
		detail.Action = firstOK.decision.Action
		if firstOK.decision.TargetStatus == integration.StockStatusOutOfStock {
			detail.Outcome = stocksync.ItemOutcomeSyncedToOutofstock
		} else {
			detail.Outcome = stocksync.ItemOutcomeSyncedToInstock
		}
	default:
		detail.Outcome = stocksync.ItemOutcomeSkipped
		if notFound == len(outcomes) && notFound > 0 {
			detail.ErrorKind = integration.ErrorKindNotFound.String()
			detail.Message = "not found on storefront"
		} else if firstSkip != nil {
			detail.ErrorKind = integration.ClassifyError(firstSkip.skipErr).String()
			detail.Message = fmt.Sprintf("%s: %v", firstSkip.sku, firstSkip.skipErr)
		}
	}
	return detail
}

// isSkippableLookupError reports whether a product lookup error concerns
// only the SKU itself, such as a malformed SKU or an unreadable product body.
func isSkippableLookupError(err error) bool {
	return errors.Is(err, integration.ErrInvalidSku) || errors.Is(err, integration.ErrInvalidResponse)
}

func liveQuantity(p *integration.Product) *int {
	if q, ok := p.Quantity(); ok {
		return &q
	}
	return nil
}
