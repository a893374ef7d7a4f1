package settlement

import "time"

// Line is one requested item of an order.
type Line struct {
	ItemID   string
	Quantity int
}

// Order is the call-scoped input of a settlement: an ordered sequence of
// lines with unique item ids.
type Order struct {
	Lines []Line
}

// NewOrder validates the structural preconditions of a settlement. Empty
// orders, non-positive quantities, and duplicate item ids are caller errors
// rejected before any resource is touched.
func NewOrder(lines []Line) (*Order, error) {
	if len(lines) == 0 {
		return nil, invalidOrder("order has no lines")
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if line.ItemID == "" {
			return nil, invalidOrder("line item id is required")
		}
		if line.Quantity <= 0 {
			return nil, invalidOrder("line quantity must be greater than zero")
		}
		if _, dup := seen[line.ItemID]; dup {
			return nil, invalidOrder("duplicate item id " + line.ItemID)
		}
		seen[line.ItemID] = struct{}{}
	}
	return &Order{Lines: append([]Line(nil), lines...)}, nil
}

// ReceiptLine records the priced outcome of one order line.
type ReceiptLine struct {
	ItemID    string
	Title     string
	UnitPrice int64
	Quantity  int
	LineTotal int64
}

// Receipt summarizes a successful settlement. It is immutable once created.
type Receipt struct {
	SettlementID     string
	AccountID        string
	Lines            []ReceiptLine
	OrderTotal       int64
	ResultingBalance int64
	SettledAt        time.Time
}
