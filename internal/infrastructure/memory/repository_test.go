package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domaccount "github.com/mossleaf/bookmart/internal/domain/account"
	domcatalog "github.com/mossleaf/bookmart/internal/domain/catalog"
	domuser "github.com/mossleaf/bookmart/internal/domain/user"
)

func newItem(t *testing.T, id string, stock int) *domcatalog.Item {
	t.Helper()
	item, err := domcatalog.NewItem(id, "title "+id, 1000, stock)
	require.NoError(t, err)
	return item
}

func TestItemRepository_SaveStaleVersion(t *testing.T) {
	repo := NewItemRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newItem(t, "item-1", 5)))

	first, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)

	require.NoError(t, first.Reserve(1))
	require.NoError(t, repo.Save(ctx, first))

	// The second reader now holds a stale version.
	require.NoError(t, second.Reserve(1))
	assert.ErrorIs(t, repo.Save(ctx, second), domcatalog.ErrConflict)

	stored, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 4, stored.Quantity)
}

func TestItemRepository_SaveBumpsVersion(t *testing.T) {
	repo := NewItemRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newItem(t, "item-1", 5)))

	item, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	before := item.Version

	require.NoError(t, repo.Save(ctx, item))

	after, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, before+1, after.Version)
}

func TestItemRepository_CreateDuplicate(t *testing.T) {
	repo := NewItemRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newItem(t, "item-1", 5)))
	assert.ErrorIs(t, repo.Create(ctx, newItem(t, "item-1", 9)), domcatalog.ErrConflict)
}

func TestItemRepository_GetReturnsClone(t *testing.T) {
	repo := NewItemRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newItem(t, "item-1", 5)))

	item, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	item.Quantity = 0

	stored, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Quantity)
}

func TestItemRepository_List(t *testing.T) {
	repo := NewItemRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newItem(t, "item-b", 1)))
	require.NoError(t, repo.Create(ctx, newItem(t, "item-a", 1)))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "item-a", all[0].ID)
	assert.Equal(t, "item-b", all[1].ID)
}

func TestItemRepository_ConcurrentSaves(t *testing.T) {
	repo := NewItemRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newItem(t, "item-1", 100)))

	// Each goroutine retries its read-modify-write until it lands; all
	// 20 reservations must be applied exactly once.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := repo.Get(ctx, "item-1")
				if err != nil {
					t.Error(err)
					return
				}
				if err := item.Reserve(1); err != nil {
					t.Error(err)
					return
				}
				err = repo.Save(ctx, item)
				if err == nil {
					return
				}
				if !errors.Is(err, domcatalog.ErrConflict) {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	stored, err := repo.Get(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 80, stored.Quantity)
}

func TestAccountRepository_SaveStaleVersion(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	acct := domaccount.New("acct-1", "user-1", "main")
	require.NoError(t, acct.Credit(1000))
	require.NoError(t, repo.Create(ctx, acct))

	first, err := repo.Get(ctx, "acct-1")
	require.NoError(t, err)
	second, err := repo.Get(ctx, "acct-1")
	require.NoError(t, err)

	require.NoError(t, first.Debit(500))
	require.NoError(t, repo.Save(ctx, first))

	require.NoError(t, second.Debit(500))
	assert.ErrorIs(t, repo.Save(ctx, second), domaccount.ErrConflict)

	stored, err := repo.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.EqualValues(t, 500, stored.Balance)
}

func TestAccountRepository_Delete(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domaccount.New("acct-1", "user-1", "main")))
	require.NoError(t, repo.Delete(ctx, "acct-1"))

	_, err := repo.Get(ctx, "acct-1")
	assert.ErrorIs(t, err, domaccount.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "acct-1"), domaccount.ErrNotFound)
}

func TestAccountRepository_ListByUser(t *testing.T) {
	repo := NewAccountRepository()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domaccount.New("acct-1", "user-1", "main")))
	require.NoError(t, repo.Create(ctx, domaccount.New("acct-2", "user-2", "theirs")))
	require.NoError(t, repo.Create(ctx, domaccount.New("acct-3", "user-1", "spare")))

	owned, err := repo.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	none, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u, err := domuser.New("user-1", "Yusuke", "yu")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "yu", got.Nickname)

	assert.ErrorIs(t, repo.Create(ctx, u), domuser.ErrConflict)

	_, err = repo.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domuser.ErrNotFound)
}
