package stocksync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// SiteExecutor applies decided transitions to one storefront. Each update is
// attempted once; classification is left to the caller.
type SiteExecutor struct {
	lookup *ProductLookup
	logger *zap.Logger
}

// NewSiteExecutor creates an executor refreshing the cache through lookup.
func NewSiteExecutor(lookup *ProductLookup, logger *zap.Logger) *SiteExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteExecutor{lookup: lookup, logger: logger}
}

// BuildUpdate converts a decision into the storefront payload. Status-only
// transitions disable stock management; quantity syncs enable it and force
// outofstock at or below zero.
func BuildUpdate(d stocksync.SyncDecision) (integration.StockUpdate, error) {
	switch d.Action {
	case stocksync.SyncActionToInstock:
		return integration.NewStatusUpdate(integration.StockStatusInStock), nil
	case stocksync.SyncActionToOutofstock:
		return integration.NewStatusUpdate(integration.StockStatusOutOfStock), nil
	case stocksync.SyncActionQuantity:
		if d.TargetQuantity == nil {
			return integration.StockUpdate{}, fmt.Errorf("quantity decision for %s without target", d.StorefrontSku)
		}
		return integration.NewQuantityUpdate(d.TargetStatus, *d.TargetQuantity), nil
	default:
		return integration.StockUpdate{}, fmt.Errorf("no update for action %s", d.Action)
	}
}

// Apply sends the decision for product and returns the updated product.
func (e *SiteExecutor) Apply(ctx context.Context, siteID string, client integration.Storefront, product *integration.Product, d stocksync.SyncDecision) (*integration.Product, error) {
	update, err := BuildUpdate(d)
	if err != nil {
		return nil, err
	}

	updated, err := client.UpdateStock(ctx, product, update)
	if err != nil {
		e.logger.Warn("Stock update failed",
			zap.String("site_id", siteID),
			zap.String("sku", d.StorefrontSku),
			zap.String("action", d.Action.String()),
			zap.String("error_kind", integration.ClassifyError(err).String()),
			zap.Error(err),
		)
		return nil, err
	}

	e.logger.Info("Stock updated",
		zap.String("site_id", siteID),
		zap.String("sku", d.StorefrontSku),
		zap.String("action", d.Action.String()),
		zap.String("status", update.Status.String()),
		zap.String("reason", d.Reason),
	)

	if updated == nil {
		updated = applyLocally(product, update)
	}
	e.lookup.Remember(ctx, siteID, updated)
	return updated, nil
}

// applyLocally projects update onto a copy of product for the cache.
func applyLocally(product *integration.Product, update integration.StockUpdate) *integration.Product {
	p := *product
	p.StockStatus = update.Status
	if update.ManageStock != nil {
		p.ManageStock = *update.ManageStock
	}
	if update.Quantity != nil {
		q := *update.Quantity
		p.StockQuantity = &q
	} else if !p.ManageStock {
		p.StockQuantity = nil
	}
	return &p
}
