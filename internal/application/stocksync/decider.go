package stocksync

import (
	"fmt"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// DecisionPolicy carries the sync-wide switches the decider honours.
type DecisionPolicy struct {
	LowStockThreshold     int
	AllowSyncToInstock    bool
	AllowSyncToOutofstock bool
}

// PolicyFromSettings derives a DecisionPolicy from global settings.
func PolicyFromSettings(s stocksync.GlobalSettings) DecisionPolicy {
	low := s.LowStockThreshold
	if low <= 0 {
		low = stocksync.DefaultLowStockThreshold
	}
	return DecisionPolicy{
		LowStockThreshold:     low,
		AllowSyncToInstock:    s.AllowSyncToInstock,
		AllowSyncToOutofstock: s.AllowSyncToOutofstock,
	}
}

// DecisionInput is one (ERP item, storefront product) pair.
type DecisionInput struct {
	ErpSku        string
	StorefrontSku string
	NetStock      int
	CurrentStatus integration.StockStatus
	// LiveQuantity is the last known managed quantity on the storefront, nil
	// when the storefront does not manage stock for the product.
	LiveQuantity *int
	Filter       stocksync.SiteFilterConfig
}

// Decide computes the transition for one storefront SKU. Rules, in order:
// a matching threshold rule replaces the site threshold; instock at or below
// the threshold goes out of stock; instock inside the low-stock band with no
// threshold rule syncs quantity down to min(net, live); outofstock above the
// threshold goes in stock; anything else is skipped.
func Decide(in DecisionInput, policy DecisionPolicy) stocksync.SyncDecision {
	threshold, custom := in.Filter.ThresholdFor(in.ErpSku)
	if !custom {
		threshold, custom = in.Filter.ThresholdFor(in.StorefrontSku)
	}
	if !custom {
		threshold = in.Filter.DefaultThreshold()
	}

	current := in.CurrentStatus.Normalize()
	d := stocksync.SyncDecision{
		StorefrontSku: in.StorefrontSku,
		CurrentStatus: current,
		TargetStatus:  current,
		Action:        stocksync.SyncActionNone,
		Threshold:     threshold,
		NetStock:      in.NetStock,
	}

	switch current {
	case integration.StockStatusInStock:
		switch {
		case in.NetStock <= threshold:
			if !policy.AllowSyncToOutofstock {
				return skip(d, "sync to outofstock disabled")
			}
			d.Action = stocksync.SyncActionToOutofstock
			d.TargetStatus = integration.StockStatusOutOfStock
			d.Reason = fmt.Sprintf("net stock %d <= threshold %d", in.NetStock, threshold)
			return d
		case !custom && in.NetStock > 0 && in.NetStock <= policy.LowStockThreshold:
			return decideQuantity(d, in, policy)
		default:
			return skip(d, "in stock")
		}
	case integration.StockStatusOutOfStock:
		if in.NetStock <= threshold {
			return skip(d, "out of stock")
		}
		if !policy.AllowSyncToInstock {
			return skip(d, "sync to instock disabled")
		}
		d.Action = stocksync.SyncActionToInstock
		d.TargetStatus = integration.StockStatusInStock
		d.Reason = fmt.Sprintf("net stock %d > threshold %d", in.NetStock, threshold)
		return d
	default:
		return skip(d, fmt.Sprintf("unknown stock status %q", in.CurrentStatus))
	}
}

// decideQuantity applies the anti-oversell rule: the target never exceeds the
// ERP net stock nor the live storefront quantity.
func decideQuantity(d stocksync.SyncDecision, in DecisionInput, policy DecisionPolicy) stocksync.SyncDecision {
	if in.LiveQuantity == nil {
		return skip(d, "storefront does not manage stock")
	}
	live := *in.LiveQuantity
	target := min(in.NetStock, live)
	if target == live {
		return skip(d, "quantity already in sync")
	}
	if !policy.AllowSyncToInstock {
		return skip(d, "sync to instock disabled")
	}
	d.Action = stocksync.SyncActionQuantity
	d.TargetQuantity = &target
	d.Reason = fmt.Sprintf("low stock: quantity %d -> %d", live, target)
	return d
}

func skip(d stocksync.SyncDecision, reason string) stocksync.SyncDecision {
	d.Action = stocksync.SyncActionNone
	d.TargetStatus = d.CurrentStatus
	d.TargetQuantity = nil
	d.Reason = reason
	return d
}

// NeedsLiveQuantity reports whether the decision for in depends on the live
// storefront quantity, i.e. the item falls into the low-stock band.
func NeedsLiveQuantity(in DecisionInput, policy DecisionPolicy) bool {
	if in.CurrentStatus.Normalize() != integration.StockStatusInStock {
		return false
	}
	if _, custom := in.Filter.ThresholdFor(in.ErpSku); custom {
		return false
	}
	if _, custom := in.Filter.ThresholdFor(in.StorefrontSku); custom {
		return false
	}
	return in.NetStock > in.Filter.DefaultThreshold() && in.NetStock > 0 && in.NetStock <= policy.LowStockThreshold
}
