package stocksync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/stocksync/internal/domain/integration"
)

func TestBuildMappingIndex(t *testing.T) {
	idx := BuildMappingIndex([]integration.SkuMapping{
		{ErpSku: "A100", StorefrontSku: "a100-single"},
		{ErpSku: "A100", StorefrontSku: "A100-PACK6"},
		{ErpSku: "B200", StorefrontSku: "b200"},
		{ErpSku: "C300", StorefrontSku: "A100-PACK6"}, // duplicate storefront SKU keeps first owner
		{ErpSku: "", StorefrontSku: "orphan"},
	})

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, []string{"a100-single", "A100-PACK6"}, idx.StorefrontSkus("A100"))

	erp, ok := idx.ErpSku("A100-SINGLE")
	require.True(t, ok)
	assert.Equal(t, "A100", erp)

	erp, ok = idx.ErpSku("a100-pack6")
	require.True(t, ok)
	assert.Equal(t, "A100", erp)

	_, ok = idx.ErpSku("orphan")
	assert.False(t, ok)
	assert.Empty(t, idx.StorefrontSkus("C300"))
}

func TestMappingIndex_UnmappedReturnsEmpty(t *testing.T) {
	idx := BuildMappingIndex([]integration.SkuMapping{{ErpSku: "A", StorefrontSku: "a-1"}})

	for _, sku := range []string{"X", "a-1", "", "B"} {
		got := idx.StorefrontSkus(sku)
		assert.NotNil(t, got)
		assert.Empty(t, got, "sku %q", sku)
	}
}

func TestMappingIndex_IdentityFallback(t *testing.T) {
	t.Run("empty mapping source restores 1:1 identity", func(t *testing.T) {
		idx := BuildMappingIndex(nil)
		for _, sku := range []string{"X", "Y-2", "z"} {
			assert.Equal(t, []string{sku}, idx.ResolveStorefrontSkus(sku))
			assert.Equal(t, sku, idx.CanonicalErpSku(sku))
		}
	})

	t.Run("nil index behaves as empty", func(t *testing.T) {
		var idx *MappingIndex
		assert.Equal(t, []string{"X"}, idx.ResolveStorefrontSkus("X"))
		assert.Equal(t, 0, idx.Len())
	})

	t.Run("mapped sku fans out", func(t *testing.T) {
		idx := BuildMappingIndex([]integration.SkuMapping{
			{ErpSku: "X", StorefrontSku: "x-1"},
			{ErpSku: "X", StorefrontSku: "x-6"},
		})
		assert.Equal(t, []string{"x-1", "x-6"}, idx.ResolveStorefrontSkus("X"))
		assert.Equal(t, "X", idx.CanonicalErpSku("X-6"))
	})
}

func TestMappingCache(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMappingCache(time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	calls := 0
	loader := func(context.Context) ([]integration.SkuMapping, error) {
		calls++
		return []integration.SkuMapping{{ErpSku: "A", StorefrontSku: "a"}}, nil
	}

	_, ok := cache.Get()
	assert.False(t, ok, "empty cache is never fresh")

	rows, err := cache.Load(ctx, loader)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, now, cache.LoadedAt())

	_, err = cache.Load(ctx, loader)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "fresh value is reused")

	now = now.Add(time.Minute)
	_, err = cache.Load(ctx, loader)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired value is reloaded")

	t.Run("failed populate keeps previous rows", func(t *testing.T) {
		_, err := cache.Populate(ctx, func(context.Context) ([]integration.SkuMapping, error) {
			return nil, errors.New("erp down")
		})
		require.Error(t, err)
		rows, ok := cache.Get()
		assert.True(t, ok)
		assert.Len(t, rows, 1)
	})

	t.Run("invalidate", func(t *testing.T) {
		cache.Invalidate()
		_, ok := cache.Get()
		assert.False(t, ok)
	})
}
