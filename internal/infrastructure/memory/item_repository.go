package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/mossleaf/bookmart/internal/domain/catalog"
)

// ItemRepository is a mutex-guarded in-memory item store with
// compare-and-swap semantics on Item.Version.
type ItemRepository struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
}

func NewItemRepository() *ItemRepository {
	return &ItemRepository{
		items: make(map[string]*domain.Item),
	}
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return item.Clone(), nil
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if item == nil || item.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; exists {
		return domain.ErrConflict
	}
	r.items[item.ID] = item.Clone()
	return nil
}

// Save stores the item only when the caller holds the current version.
func (r *ItemRepository) Save(ctx context.Context, item *domain.Item) error {
	_ = ctx
	if item == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.items[item.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != item.Version {
		return domain.ErrConflict
	}

	next := item.Clone()
	next.Version++
	r.items[item.ID] = next
	return nil
}

func (r *ItemRepository) List(ctx context.Context) ([]*domain.Item, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
