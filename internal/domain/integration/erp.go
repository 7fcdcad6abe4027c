package integration

import (
	"context"
	"strings"
)

// ---------------------------------------------------------------------------
// ERP value objects
// ---------------------------------------------------------------------------

// ErpStockRecord is one inventory row reported by the ERP, keyed by
// (SkuCode, WarehouseID) until warehouses are merged.
type ErpStockRecord struct {
	SkuCode       string `json:"sku_code"`
	Name          string `json:"name,omitempty"`
	SellableQty   int    `json:"sellable_qty"`
	BackorderQty  int    `json:"backorder_qty"`
	WarehouseID   string `json:"warehouse_id"`
	WarehouseName string `json:"warehouse_name,omitempty"`
	Category1     string `json:"category1,omitempty"`
	Category2     string `json:"category2,omitempty"`
	Category3     string `json:"category3,omitempty"`
}

// NetStock returns sellable minus backorder quantity. The result may be negative.
func (r ErpStockRecord) NetStock() int {
	return r.SellableQty - r.BackorderQty
}

// Warehouse returns the warehouse label used for matching, preferring the
// resolved name over the raw identifier.
func (r ErpStockRecord) Warehouse() string {
	if r.WarehouseName != "" {
		return r.WarehouseName
	}
	return r.WarehouseID
}

// Categories returns category levels 1 to 3.
func (r ErpStockRecord) Categories() [3]string {
	return [3]string{r.Category1, r.Category2, r.Category3}
}

// SkuMapping is one row of the external ERP-to-storefront SKU mapping table.
type SkuMapping struct {
	ErpSku        string `json:"erp_sku"`
	StorefrontSku string `json:"storefront_sku"`
}

// IsValid returns true when both sides are non-blank
func (m SkuMapping) IsValid() bool {
	return strings.TrimSpace(m.ErpSku) != "" && strings.TrimSpace(m.StorefrontSku) != ""
}

// ---------------------------------------------------------------------------
// ErpService port
// ---------------------------------------------------------------------------

// ErpService is the port to the authoritative inventory system.
// Implementations page through results and bound the number of pages fetched.
type ErpService interface {
	// FetchAllInventory returns every warehouse-level inventory row.
	FetchAllInventory(ctx context.Context, pageSize int) ([]ErpStockRecord, error)

	// FetchWarehouseNames resolves warehouse identifiers to display names.
	FetchWarehouseNames(ctx context.Context, ids []string) (map[string]string, error)

	// FetchSkuMappings returns at most limit mapping rows.
	FetchSkuMappings(ctx context.Context, limit int) ([]SkuMapping, error)
}
