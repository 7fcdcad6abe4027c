package stocksync

import (
	"strings"

	"github.com/erp/stocksync/internal/domain/integration"
)

// MappingIndex is a bidirectional index between ERP SKUs and storefront SKUs.
// Storefront keys are upper-cased; ERP keys are kept as reported.
type MappingIndex struct {
	toStorefront map[string][]string
	toErp        map[string]string
	rows         int
}

// BuildMappingIndex indexes raw mapping rows. Blank rows are ignored and a
// storefront SKU mapped twice keeps its first ERP SKU.
func BuildMappingIndex(rows []integration.SkuMapping) *MappingIndex {
	idx := &MappingIndex{
		toStorefront: make(map[string][]string),
		toErp:        make(map[string]string),
	}
	for _, row := range rows {
		if !row.IsValid() {
			continue
		}
		erpSku := strings.TrimSpace(row.ErpSku)
		sfSku := strings.TrimSpace(row.StorefrontSku)
		key := strings.ToUpper(sfSku)
		if _, seen := idx.toErp[key]; seen {
			continue
		}
		idx.toErp[key] = erpSku
		idx.toStorefront[erpSku] = append(idx.toStorefront[erpSku], sfSku)
		idx.rows++
	}
	return idx
}

// StorefrontSkus returns the storefront SKUs mapped to erpSku, or an empty
// slice when unmapped.
func (m *MappingIndex) StorefrontSkus(erpSku string) []string {
	if m == nil {
		return []string{}
	}
	skus := m.toStorefront[strings.TrimSpace(erpSku)]
	out := make([]string, len(skus))
	copy(out, skus)
	return out
}

// ErpSku returns the canonical ERP SKU of a storefront SKU.
func (m *MappingIndex) ErpSku(storefrontSku string) (string, bool) {
	if m == nil {
		return "", false
	}
	erp, ok := m.toErp[strings.ToUpper(strings.TrimSpace(storefrontSku))]
	return erp, ok
}

// Len returns the number of indexed storefront SKUs.
func (m *MappingIndex) Len() int {
	if m == nil {
		return 0
	}
	return m.rows
}

// ResolveStorefrontSkus returns the mapped storefront SKUs, falling back to
// the ERP SKU itself when unmapped.
func (m *MappingIndex) ResolveStorefrontSkus(erpSku string) []string {
	if skus := m.StorefrontSkus(erpSku); len(skus) > 0 {
		return skus
	}
	return []string{erpSku}
}

// CanonicalErpSku returns the ERP SKU a storefront SKU is accounted under,
// which is the SKU itself when unmapped.
func (m *MappingIndex) CanonicalErpSku(storefrontSku string) string {
	if erp, ok := m.ErpSku(storefrontSku); ok {
		return erp
	}
	return storefrontSku
}
