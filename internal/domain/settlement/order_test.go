package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	order, err := NewOrder([]Line{
		{ItemID: "item-1", Quantity: 1},
		{ItemID: "item-2", Quantity: 3},
	})
	require.NoError(t, err)
	assert.Len(t, order.Lines, 2)
}

func TestNewOrder_Empty(t *testing.T) {
	_, err := NewOrder(nil)
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder([]Line{})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNewOrder_NonPositiveQuantity(t *testing.T) {
	_, err := NewOrder([]Line{{ItemID: "item-1", Quantity: 0}})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	_, err = NewOrder([]Line{{ItemID: "item-1", Quantity: -2}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNewOrder_DuplicateItem(t *testing.T) {
	_, err := NewOrder([]Line{
		{ItemID: "item-1", Quantity: 1},
		{ItemID: "item-1", Quantity: 2},
	})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNewOrder_MissingItemID(t *testing.T) {
	_, err := NewOrder([]Line{{ItemID: "", Quantity: 1}})
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestNewOrder_CopiesLines(t *testing.T) {
	lines := []Line{{ItemID: "item-1", Quantity: 1}}
	order, err := NewOrder(lines)
	require.NoError(t, err)

	lines[0].Quantity = 99
	assert.Equal(t, 1, order.Lines[0].Quantity)
}
