package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	item, err := NewItem("item-1", "Clean Architecture", 12000, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)

	_, err = NewItem("item-2", "bad price", -1, 3)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = NewItem("item-3", "bad stock", 100, -1)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestReserve(t *testing.T) {
	item, err := NewItem("item-1", "Clean Architecture", 12000, 3)
	require.NoError(t, err)

	require.NoError(t, item.Reserve(2))
	assert.Equal(t, 1, item.Quantity)
}

func TestReserve_ExactStockReachesZero(t *testing.T) {
	item, err := NewItem("item-1", "Clean Architecture", 12000, 2)
	require.NoError(t, err)

	require.NoError(t, item.Reserve(2))
	assert.Equal(t, 0, item.Quantity)
}

func TestReserve_InsufficientStock(t *testing.T) {
	item, err := NewItem("item-1", "Clean Architecture", 12000, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, item.Reserve(2), ErrInsufficientStock)
	assert.Equal(t, 1, item.Quantity)
}

func TestReserve_InvalidQuantity(t *testing.T) {
	item, err := NewItem("item-1", "Clean Architecture", 12000, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, item.Reserve(0), ErrInvalidQuantity)
	assert.ErrorIs(t, item.Reserve(-1), ErrInvalidQuantity)
}

func TestRelease(t *testing.T) {
	item, err := NewItem("item-1", "Clean Architecture", 12000, 0)
	require.NoError(t, err)

	require.NoError(t, item.Release(5))
	assert.Equal(t, 5, item.Quantity)

	assert.ErrorIs(t, item.Release(0), ErrInvalidQuantity)
}
