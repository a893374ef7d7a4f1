package settlement

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder marks malformed input: empty orders, non-positive
	// quantities, duplicate item ids.
	ErrInvalidOrder = errors.New("settlement: invalid order")

	// ErrConflict is returned when the bounded optimistic retry budget is
	// exhausted. The whole call is safe to retry.
	ErrConflict = errors.New("settlement: concurrent update conflict")

	// ErrIO wraps a persistence failure surfaced after rollback completed.
	ErrIO = errors.New("settlement: persistence failure")
)

func invalidOrder(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidOrder, reason)
}

// NotFoundError identifies the missing resource of an aborted settlement.
type NotFoundError struct {
	Resource string // "account" or "item"
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("settlement: %s %s not found", e.Resource, e.ID)
}

// InsufficientStockError reports the first line whose requested quantity
// exceeds the available stock.
type InsufficientStockError struct {
	ItemID    string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("settlement: insufficient stock for item %s: requested %d, available %d",
		e.ItemID, e.Requested, e.Available)
}

// InsufficientBalanceError reports an order total exceeding the account
// balance at validation time.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("settlement: insufficient balance: required %d, available %d",
		e.Required, e.Available)
}

// FatalInconsistencyError is raised when a compensating rollback could not
// be completed: inventory and balance may disagree and external
// reconciliation is required. It must never be swallowed.
type FatalInconsistencyError struct {
	SettlementID string
	AccountID    string
	Cause        error
}

func (e *FatalInconsistencyError) Error() string {
	return fmt.Sprintf("settlement %s: rollback failed, state requires reconciliation: %v",
		e.SettlementID, e.Cause)
}

func (e *FatalInconsistencyError) Unwrap() error { return e.Cause }
