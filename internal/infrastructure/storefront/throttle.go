package storefront

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/erp/stocksync/internal/domain/integration"
)

// Throttled limits the call rate of a wrapped Storefront. Every call waits
// for a token, which spaces consecutive updates to the same site.
type Throttled struct {
	next    integration.Storefront
	limiter *rate.Limiter
}

var _ integration.Storefront = (*Throttled)(nil)

// NewThrottled wraps next with a limiter of rps calls per second
func NewThrottled(next integration.Storefront, rps float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Throttled{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (t *Throttled) wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: throttle: %v", integration.ErrUpstreamUnavailable, err)
	}
	return nil
}

func (t *Throttled) FindProductBySku(ctx context.Context, sku string) (*integration.Product, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.FindProductBySku(ctx, sku)
}

func (t *Throttled) GetProduct(ctx context.Context, product *integration.Product) (*integration.Product, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.GetProduct(ctx, product)
}

func (t *Throttled) UpdateStock(ctx context.Context, product *integration.Product, update integration.StockUpdate) (*integration.Product, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.UpdateStock(ctx, product, update)
}

func (t *Throttled) ListProducts(ctx context.Context, page, perPage int) ([]integration.Product, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListProducts(ctx, page, perPage)
}

func (t *Throttled) ListVariations(ctx context.Context, parentID int64, page, perPage int) ([]integration.Product, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListVariations(ctx, parentID, page, perPage)
}
