package storefront

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/integration"
)

func TestFactory_ForSite(t *testing.T) {
	site := integration.StorefrontSite{
		ID:             "eu",
		BaseURL:        "https://eu.example.com",
		ConsumerKey:    "k",
		ConsumerSecret: "s",
	}

	t.Run("unthrottled", func(t *testing.T) {
		client, err := NewFactory(FactoryConfig{}).ForSite(site)
		require.NoError(t, err)
		assert.IsType(t, &Client{}, client)
	})

	t.Run("throttled", func(t *testing.T) {
		client, err := NewFactory(FactoryConfig{RequestsPerSecond: 5}).ForSite(site)
		require.NoError(t, err)
		assert.IsType(t, &Throttled{}, client)
	})

	t.Run("missing credentials", func(t *testing.T) {
		bad := site
		bad.ConsumerSecret = ""
		_, err := NewFactory(FactoryConfig{}).ForSite(bad)
		assert.ErrorIs(t, err, integration.ErrStorefrontNotConfigured)
		assert.Contains(t, err.Error(), "site eu")
	})
}

func TestThrottled_SpacesCalls(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, ConsumerKey: "k", ConsumerSecret: "s"})
	require.NoError(t, err)
	throttled := NewThrottled(client, 20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := throttled.FindProductBySku(context.Background(), "X")
		require.NoError(t, err)
	}
	// 20 rps with burst 1: the 2nd and 3rd calls each wait ~50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), calls.Load())
}

func TestThrottled_CancelledContext(t *testing.T) {
	client, err := NewClient(Config{BaseURL: "http://127.0.0.1:1", ConsumerKey: "k", ConsumerSecret: "s"})
	require.NoError(t, err)
	throttled := NewThrottled(client, 0.001, 1)

	// consume the only token
	ctx, cancel := context.WithCancel(context.Background())
	_ = throttled.limiter.Wait(ctx)
	cancel()

	_, err = throttled.ListProducts(ctx, 1, 10)
	assert.ErrorIs(t, err, integration.ErrUpstreamUnavailable)
}
