package account

import "context"

// Repository persists funding accounts. Save performs an optimistic write
// keyed on Version and returns ErrConflict on a lost race.
type Repository interface {
	Get(ctx context.Context, id string) (*Account, error)
	Create(ctx context.Context, acct *Account) error
	Save(ctx context.Context, acct *Account) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*Account, error)
}
