package catalog

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("catalog: item not found")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInvalidPrice      = errors.New("catalog: unit price must be zero or greater")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrConflict          = errors.New("catalog: version conflict")
)

// Item is a sellable inventory record. UnitPrice is in currency minor units.
// Quantity never goes negative; it is mutated only through Reserve and Release.
type Item struct {
	ID        string
	Title     string
	UnitPrice int64
	Quantity  int
	Version   int64
	UpdatedAt time.Time
}

func NewItem(id, title string, unitPrice int64, quantity int) (*Item, error) {
	if unitPrice < 0 {
		return nil, ErrInvalidPrice
	}
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Item{
		ID:        id,
		Title:     title,
		UnitPrice: unitPrice,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Reserve removes quantity from stock. Requesting exactly the remaining
// stock is allowed and drives the quantity to zero.
func (i *Item) Reserve(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.Quantity {
		return ErrInsufficientStock
	}
	i.Quantity -= quantity
	i.touch()
	return nil
}

// Release returns quantity to stock. Used for restocking and for
// compensating a partially applied settlement.
func (i *Item) Release(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.Quantity += quantity
	i.touch()
	return nil
}

func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	clone := *i
	return &clone
}

func (i *Item) touch() {
	i.UpdatedAt = time.Now().UTC()
}
