package storefront

import (
	"fmt"
	"time"

	"github.com/erp/stocksync/internal/domain/integration"
)

// FactoryConfig holds settings shared by every site client
type FactoryConfig struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Factory builds a throttled client per site
type Factory struct {
	config FactoryConfig
}

var _ integration.StorefrontFactory = (*Factory)(nil)

// NewFactory creates a storefront factory
func NewFactory(cfg FactoryConfig) *Factory {
	return &Factory{config: cfg}
}

// ForSite returns a client for site. Each call gets its own limiter, so the
// rate applies per site and per step.
func (f *Factory) ForSite(site integration.StorefrontSite) (integration.Storefront, error) {
	client, err := NewClient(Config{
		BaseURL:        site.BaseURL,
		ConsumerKey:    site.ConsumerKey,
		ConsumerSecret: site.ConsumerSecret,
		Timeout:        f.config.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.ID, err)
	}
	if f.config.RequestsPerSecond <= 0 {
		return client, nil
	}
	return NewThrottled(client, f.config.RequestsPerSecond, f.config.Burst), nil
}
