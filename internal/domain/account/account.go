package account

import (
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("account: not found")
	ErrInvalidAmount       = errors.New("account: amount must be greater than zero")
	ErrInsufficientBalance = errors.New("account: insufficient balance")
	ErrConflict            = errors.New("account: version conflict")
)

// Account is a funding account owned by exactly one user. Balance is in
// currency minor units and never goes negative; it changes only through
// Credit and Debit.
type Account struct {
	ID        string
	UserID    string
	Alias     string
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an account with a zero starting balance.
func New(id, userID, alias string) *Account {
	now := time.Now().UTC()
	return &Account{
		ID:        id,
		UserID:    userID,
		Alias:     alias,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	a.Balance += amount
	a.touch()
	return nil
}

// Debit removes amount from the balance. Debiting the exact balance is
// allowed and drives it to zero.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > a.Balance {
		return ErrInsufficientBalance
	}
	a.Balance -= amount
	a.touch()
	return nil
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

func (a *Account) touch() {
	a.UpdatedAt = time.Now().UTC()
}
