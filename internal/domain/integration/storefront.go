package integration

import (
	"context"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// StockStatus represents the availability flag shown on a storefront
// ---------------------------------------------------------------------------

// StockStatus represents the availability flag shown on a storefront
type StockStatus string

const (
	// StockStatusInStock marks a product as purchasable
	StockStatusInStock StockStatus = "instock"
	// StockStatusOutOfStock marks a product as unavailable
	StockStatusOutOfStock StockStatus = "outofstock"
	// StockStatusOnBackorder is reported by some storefronts and treated as in stock
	StockStatusOnBackorder StockStatus = "onbackorder"
)

// IsValid returns true if the status is valid
func (s StockStatus) IsValid() bool {
	switch s {
	case StockStatusInStock, StockStatusOutOfStock, StockStatusOnBackorder:
		return true
	default:
		return false
	}
}

// String returns the string representation of StockStatus
func (s StockStatus) String() string {
	return string(s)
}

// Normalize folds onbackorder into instock and lower-cases unknown values.
func (s StockStatus) Normalize() StockStatus {
	n := StockStatus(strings.ToLower(strings.TrimSpace(string(s))))
	if n == StockStatusOnBackorder {
		return StockStatusInStock
	}
	return n
}

// ---------------------------------------------------------------------------
// Product is the storefront's view of one sellable item
// ---------------------------------------------------------------------------

// Product is a simple storefront product or a variation of a variable product.
type Product struct {
	ID            int64       `json:"id"`
	ParentID      int64       `json:"parent_id"`
	SKU           string      `json:"sku"`
	Name          string      `json:"name,omitempty"`
	Type          string      `json:"type,omitempty"`
	StockStatus   StockStatus `json:"stock_status"`
	StockQuantity *int        `json:"stock_quantity"`
	ManageStock   bool        `json:"manage_stock"`

	// RefreshedAt is set on products read from the local cache and is zero
	// for products fetched live.
	RefreshedAt time.Time `json:"-"`
}

// IsVariation returns true if the product is addressed through its parent
func (p *Product) IsVariation() bool {
	return p.ParentID != 0
}

// Quantity returns the managed quantity, if any.
func (p *Product) Quantity() (int, bool) {
	if p.StockQuantity == nil || !p.ManageStock {
		return 0, false
	}
	return *p.StockQuantity, true
}

// StockUpdate is the payload of a stock change on one product.
// Quantity is only honoured together with ManageStock.
type StockUpdate struct {
	Status      StockStatus
	ManageStock *bool
	Quantity    *int
}

// NewStatusUpdate creates an update that lets the status alone govern availability
func NewStatusUpdate(status StockStatus) StockUpdate {
	manage := false
	return StockUpdate{Status: status, ManageStock: &manage}
}

// NewQuantityUpdate creates a managed quantity update. A quantity at or below
// zero always forces outofstock.
func NewQuantityUpdate(status StockStatus, quantity int) StockUpdate {
	manage := true
	q := quantity
	if q <= 0 {
		status = StockStatusOutOfStock
	}
	return StockUpdate{Status: status, ManageStock: &manage, Quantity: &q}
}

// ---------------------------------------------------------------------------
// Storefront port
// ---------------------------------------------------------------------------

// Storefront is the port to one storefront site.
type Storefront interface {
	// FindProductBySku returns nil, nil when no product carries the SKU.
	FindProductBySku(ctx context.Context, sku string) (*Product, error)

	// GetProduct reloads a product by its address.
	GetProduct(ctx context.Context, product *Product) (*Product, error)

	// UpdateStock applies update to product, addressing variations through their parent.
	UpdateStock(ctx context.Context, product *Product, update StockUpdate) (*Product, error)

	// ListProducts returns one page of products.
	ListProducts(ctx context.Context, page, perPage int) ([]Product, error)

	// ListVariations returns one page of variations of a variable product.
	ListVariations(ctx context.Context, parentID int64, page, perPage int) ([]Product, error)
}

// StorefrontSite carries what an adapter needs to reach one site.
type StorefrontSite struct {
	ID             string
	Name           string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
}

// StorefrontFactory builds a Storefront client for a site.
type StorefrontFactory interface {
	ForSite(site StorefrontSite) (Storefront, error)
}
