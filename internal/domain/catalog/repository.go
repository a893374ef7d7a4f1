package catalog

import "context"

// Repository persists items. Save performs an optimistic write: it only
// succeeds when the stored version equals the version the caller read,
// otherwise it returns ErrConflict.
type Repository interface {
	Get(ctx context.Context, id string) (*Item, error)
	Create(ctx context.Context, item *Item) error
	Save(ctx context.Context, item *Item) error
	List(ctx context.Context) ([]*Item, error)
}
