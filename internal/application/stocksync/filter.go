package stocksync

import (
	"strings"

	"go.uber.org/zap"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/domain/stocksync"
)

// Filter stage names, in pipeline order.
const (
	StageExcludeWarehouses = "exclude_warehouses"
	StageMergeWarehouses   = "merge_warehouses"
	StageExcludePrefixes   = "exclude_sku_prefixes"
	StageWhitelist         = "sku_whitelist"
	StageCategories        = "category_filters"
)

// mergedWarehouseID marks a row summed across warehouses.
const mergedWarehouseID = "*"

// FilterOptions configures one pipeline run.
type FilterOptions struct {
	Filter stocksync.SiteFilterConfig
	Merge  bool
}

// StageCount is the row count around one stage.
type StageCount struct {
	Stage   string
	Before  int
	After   int
	Skipped bool
}

// Removed returns how many rows the stage dropped.
func (c StageCount) Removed() int {
	return c.Before - c.After
}

// FilterReport lists the stage counts of one run.
type FilterReport struct {
	Stages []StageCount
}

// Stage returns the count of the named stage.
func (r FilterReport) Stage(name string) (StageCount, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageCount{}, false
}

// FilterPipeline narrows raw ERP rows down to the items a site syncs.
// Stages run in a fixed order: warehouse exclusion, merge, SKU prefix
// exclusion, whitelist, categories.
type FilterPipeline struct {
	logger *zap.Logger
}

// NewFilterPipeline creates a pipeline logging stage counts to logger.
func NewFilterPipeline(logger *zap.Logger) *FilterPipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilterPipeline{logger: logger}
}

// Apply runs every stage over records. The input slice is not modified.
func (p *FilterPipeline) Apply(records []integration.ErpStockRecord, opts FilterOptions) ([]integration.ErpStockRecord, FilterReport) {
	var report FilterReport
	items := records

	run := func(stage string, skip bool, fn func([]integration.ErpStockRecord) []integration.ErpStockRecord) {
		before := len(items)
		if !skip {
			items = fn(items)
		}
		count := StageCount{Stage: stage, Before: before, After: len(items), Skipped: skip}
		report.Stages = append(report.Stages, count)
		p.logger.Debug("Filter stage applied",
			zap.String("stage", stage),
			zap.Int("before", count.Before),
			zap.Int("after", count.After),
			zap.Bool("skipped", skip),
		)
	}

	cfg := opts.Filter
	run(StageExcludeWarehouses, !hasWarehouseRules(cfg), func(in []integration.ErpStockRecord) []integration.ErpStockRecord {
		return ExcludeWarehouses(in, cfg)
	})
	run(StageMergeWarehouses, !opts.Merge, MergeWarehouses)
	prefixes := stocksync.SplitList(cfg.ExcludeSkuPrefixes)
	run(StageExcludePrefixes, len(prefixes) == 0, func(in []integration.ErpStockRecord) []integration.ErpStockRecord {
		return ExcludeSkuPrefixes(in, prefixes)
	})
	whitelist := stocksync.SplitList(cfg.SkuWhitelist)
	run(StageWhitelist, len(whitelist) == 0, func(in []integration.ErpStockRecord) []integration.ErpStockRecord {
		return ApplyWhitelist(in, whitelist)
	})
	categories := stocksync.SplitList(cfg.CategoryFilters)
	run(StageCategories, len(categories) == 0, func(in []integration.ErpStockRecord) []integration.ErpStockRecord {
		return ApplyCategoryFilters(in, categories)
	})

	p.logger.Info("Filter pipeline finished",
		zap.Int("input", len(records)),
		zap.Int("output", len(items)),
		zap.Bool("merge", opts.Merge),
	)
	return items, report
}

func hasWarehouseRules(cfg stocksync.SiteFilterConfig) bool {
	return len(stocksync.SplitList(cfg.ExcludeWarehouses)) > 0 || len(cfg.SkuWarehouseRules) > 0
}

// ExcludeWarehouses drops rows whose warehouse contains an excluded
// substring, then applies per-SKU warehouse rules.
func ExcludeWarehouses(records []integration.ErpStockRecord, cfg stocksync.SiteFilterConfig) []integration.ErpStockRecord {
	excluded := upperAll(stocksync.SplitList(cfg.ExcludeWarehouses))
	out := make([]integration.ErpStockRecord, 0, len(records))
	for _, r := range records {
		if containsAny(r.WarehouseName, excluded) || containsAny(r.WarehouseID, excluded) {
			continue
		}
		if rule, ok := cfg.WarehouseRuleFor(r.SkuCode); ok {
			allowed := upperAll(rule.Warehouses)
			if !containsAny(r.WarehouseName, allowed) && !containsAny(r.WarehouseID, allowed) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// MergeWarehouses sums quantities of rows sharing a SKU. Output keeps the
// order of first appearance and the descriptive fields of the first row.
func MergeWarehouses(records []integration.ErpStockRecord) []integration.ErpStockRecord {
	index := make(map[string]int, len(records))
	out := make([]integration.ErpStockRecord, 0, len(records))
	for _, r := range records {
		if i, ok := index[r.SkuCode]; ok {
			out[i].SellableQty += r.SellableQty
			out[i].BackorderQty += r.BackorderQty
			out[i].WarehouseID = mergedWarehouseID
			out[i].WarehouseName = ""
			continue
		}
		index[r.SkuCode] = len(out)
		out = append(out, r)
	}
	return out
}

// ExcludeSkuPrefixes drops rows whose SKU starts with any prefix, ignoring case.
func ExcludeSkuPrefixes(records []integration.ErpStockRecord, prefixes []string) []integration.ErpStockRecord {
	upper := upperAll(prefixes)
	out := make([]integration.ErpStockRecord, 0, len(records))
	for _, r := range records {
		sku := strings.ToUpper(r.SkuCode)
		drop := false
		for _, p := range upper {
			if strings.HasPrefix(sku, p) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, r)
		}
	}
	return out
}

// ApplyWhitelist keeps rows whose SKU or name contains any entry, ignoring case.
func ApplyWhitelist(records []integration.ErpStockRecord, whitelist []string) []integration.ErpStockRecord {
	upper := upperAll(whitelist)
	out := make([]integration.ErpStockRecord, 0, len(records))
	for _, r := range records {
		if containsAny(r.SkuCode, upper) || containsAny(r.Name, upper) {
			out = append(out, r)
		}
	}
	return out
}

// ApplyCategoryFilters keeps rows with any category level containing an entry.
func ApplyCategoryFilters(records []integration.ErpStockRecord, categories []string) []integration.ErpStockRecord {
	upper := upperAll(categories)
	out := make([]integration.ErpStockRecord, 0, len(records))
	for _, r := range records {
		for _, c := range r.Categories() {
			if containsAny(c, upper) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// DedupeBySku keeps the first row of each SKU and returns how many were dropped.
func DedupeBySku(records []integration.ErpStockRecord) ([]integration.ErpStockRecord, int) {
	seen := make(map[string]struct{}, len(records))
	out := make([]integration.ErpStockRecord, 0, len(records))
	for _, r := range records {
		if _, ok := seen[r.SkuCode]; ok {
			continue
		}
		seen[r.SkuCode] = struct{}{}
		out = append(out, r)
	}
	return out, len(records) - len(out)
}

func upperAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToUpper(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// containsAny reports whether s contains any of the upper-cased needles.
func containsAny(s string, needles []string) bool {
	if s == "" {
		return false
	}
	hay := strings.ToUpper(s)
	for _, n := range needles {
		if strings.Contains(hay, n) {
			return true
		}
	}
	return false
}
