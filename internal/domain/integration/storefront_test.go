package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStockStatus_Normalize(t *testing.T) {
	assert.Equal(t, StockStatusInStock, StockStatus("InStock").Normalize())
	assert.Equal(t, StockStatusInStock, StockStatusOnBackorder.Normalize())
	assert.Equal(t, StockStatusOutOfStock, StockStatus(" outofstock ").Normalize())
	assert.False(t, StockStatus("unknown").IsValid())
}

func TestNewQuantityUpdate(t *testing.T) {
	t.Run("positive quantity keeps requested status", func(t *testing.T) {
		u := NewQuantityUpdate(StockStatusInStock, 3)
		require.NotNil(t, u.ManageStock)
		require.NotNil(t, u.Quantity)
		assert.True(t, *u.ManageStock)
		assert.Equal(t, 3, *u.Quantity)
		assert.Equal(t, StockStatusInStock, u.Status)
	})

	t.Run("zero quantity forces outofstock", func(t *testing.T) {
		u := NewQuantityUpdate(StockStatusInStock, 0)
		assert.Equal(t, StockStatusOutOfStock, u.Status)
	})

	t.Run("negative quantity forces outofstock", func(t *testing.T) {
		u := NewQuantityUpdate(StockStatusInStock, -2)
		assert.Equal(t, StockStatusOutOfStock, u.Status)
		assert.Equal(t, -2, *u.Quantity)
	})
}

func TestNewStatusUpdate(t *testing.T) {
	u := NewStatusUpdate(StockStatusInStock)
	require.NotNil(t, u.ManageStock)
	assert.False(t, *u.ManageStock)
	assert.Nil(t, u.Quantity)
}

func TestProduct_Quantity(t *testing.T) {
	qty := 4
	p := &Product{ID: 1, StockQuantity: &qty, ManageStock: true}
	got, ok := p.Quantity()
	assert.True(t, ok)
	assert.Equal(t, 4, got)
	assert.False(t, p.IsVariation())

	p.ManageStock = false
	_, ok = p.Quantity()
	assert.False(t, ok)

	v := &Product{ID: 2, ParentID: 1}
	assert.True(t, v.IsVariation())
}
