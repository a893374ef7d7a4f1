package memory

import (
	"context"
	"sort"
	"sync"

	domain "github.com/mossleaf/bookmart/internal/domain/account"
)

// AccountRepository is a mutex-guarded in-memory account store with
// compare-and-swap semantics on Account.Version.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

func (r *AccountRepository) Get(ctx context.Context, id string) (*domain.Account, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return acct.Clone(), nil
}

func (r *AccountRepository) Create(ctx context.Context, acct *domain.Account) error {
	_ = ctx
	if acct == nil || acct.ID == "" {
		return domain.ErrNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.accounts[acct.ID]; exists {
		return domain.ErrConflict
	}
	r.accounts[acct.ID] = acct.Clone()
	return nil
}

func (r *AccountRepository) Save(ctx context.Context, acct *domain.Account) error {
	_ = ctx
	if acct == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[acct.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != acct.Version {
		return domain.ErrConflict
	}

	next := acct.Clone()
	next.Version++
	r.accounts[acct.ID] = next
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	_ = ctx

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Account, 0, 4)
	for _, acct := range r.accounts {
		if acct.UserID == userID {
			out = append(out, acct.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
