package stocksync

import (
	"time"
)

// DefaultLowStockThreshold is the upper bound of the anti-oversell band.
const DefaultLowStockThreshold = 10

// DefaultMaxNotifiedFailures caps the failed SKUs listed in a notification.
const DefaultMaxNotifiedFailures = 10

// ThresholdRule overrides the in-stock threshold for SKUs matching Pattern.
// A SKU is out of stock while its net stock is at or below Threshold.
type ThresholdRule struct {
	Pattern   string `json:"pattern" mapstructure:"pattern"`
	Threshold int    `json:"threshold" mapstructure:"threshold"`
}

// SkuWarehouseRule restricts which warehouses count toward SKUs matching Pattern.
type SkuWarehouseRule struct {
	Pattern    string   `json:"pattern" mapstructure:"pattern"`
	Warehouses []string `json:"warehouses" mapstructure:"warehouses"`
}

// SiteFilterConfig holds the filters of one site, or the global defaults.
// List fields are comma or newline separated.
type SiteFilterConfig struct {
	SkuWhitelist       string             `json:"sku_whitelist,omitempty" mapstructure:"sku_whitelist"`
	ExcludeSkuPrefixes string             `json:"exclude_sku_prefixes,omitempty" mapstructure:"exclude_sku_prefixes"`
	CategoryFilters    string             `json:"category_filters,omitempty" mapstructure:"category_filters"`
	ExcludeWarehouses  string             `json:"exclude_warehouses,omitempty" mapstructure:"exclude_warehouses"`
	SkuWarehouseRules  []SkuWarehouseRule `json:"sku_warehouse_rules,omitempty" mapstructure:"sku_warehouse_rules"`
	ThresholdRules     []ThresholdRule    `json:"threshold_rules,omitempty" mapstructure:"threshold_rules"`
	InstockThreshold   *int               `json:"instock_threshold,omitempty" mapstructure:"instock_threshold"`
}

// MergeFilterConfig layers site over global: every non-empty site value wins.
func MergeFilterConfig(global, site SiteFilterConfig) SiteFilterConfig {
	out := global
	if hasItems(site.SkuWhitelist) {
		out.SkuWhitelist = site.SkuWhitelist
	}
	if hasItems(site.ExcludeSkuPrefixes) {
		out.ExcludeSkuPrefixes = site.ExcludeSkuPrefixes
	}
	if hasItems(site.CategoryFilters) {
		out.CategoryFilters = site.CategoryFilters
	}
	if hasItems(site.ExcludeWarehouses) {
		out.ExcludeWarehouses = site.ExcludeWarehouses
	}
	if len(site.SkuWarehouseRules) > 0 {
		out.SkuWarehouseRules = site.SkuWarehouseRules
	}
	if len(site.ThresholdRules) > 0 {
		out.ThresholdRules = site.ThresholdRules
	}
	if site.InstockThreshold != nil {
		t := *site.InstockThreshold
		out.InstockThreshold = &t
	}
	return out
}

// DefaultThreshold returns the configured in-stock threshold, 0 when unset.
func (c SiteFilterConfig) DefaultThreshold() int {
	if c.InstockThreshold == nil {
		return 0
	}
	return *c.InstockThreshold
}

// ThresholdFor returns the first threshold rule matching sku.
func (c SiteFilterConfig) ThresholdFor(sku string) (int, bool) {
	for _, rule := range c.ThresholdRules {
		if MatchSkuPattern(rule.Pattern, sku) {
			return rule.Threshold, true
		}
	}
	return 0, false
}

// WarehouseRuleFor returns the first warehouse rule matching sku.
func (c SiteFilterConfig) WarehouseRuleFor(sku string) (SkuWarehouseRule, bool) {
	for _, rule := range c.SkuWarehouseRules {
		if MatchSkuPattern(rule.Pattern, sku) {
			return rule, true
		}
	}
	return SkuWarehouseRule{}, false
}

// Site is one storefront the batch pushes stock to.
type Site struct {
	ID             string `validate:"required,max=64"`
	Name           string `validate:"required,max=200"`
	BaseURL        string `validate:"required,url"`
	ConsumerKey    string `validate:"required"`
	ConsumerSecret string `validate:"required"`
	Enabled        bool
	Filter         SiteFilterConfig
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GlobalSettings are the sync-wide defaults and switches.
type GlobalSettings struct {
	Filter                SiteFilterConfig
	MergeWarehouses       bool
	LowStockThreshold     int
	AllowSyncToInstock    bool
	AllowSyncToOutofstock bool
	NotifyOnSuccess       bool
	NotifyOnFailure       bool
	NotifyOnNoChanges     bool
	MaxNotifiedFailures   int
	UpdatedAt             time.Time
}

// DefaultGlobalSettings returns the settings used when none are stored.
func DefaultGlobalSettings() GlobalSettings {
	return GlobalSettings{
		MergeWarehouses:       true,
		LowStockThreshold:     DefaultLowStockThreshold,
		AllowSyncToInstock:    true,
		AllowSyncToOutofstock: true,
		NotifyOnSuccess:       true,
		NotifyOnFailure:       true,
		NotifyOnNoChanges:     false,
		MaxNotifiedFailures:   DefaultMaxNotifiedFailures,
	}
}
