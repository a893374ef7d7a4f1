package redisrepo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	domain "github.com/mossleaf/bookmart/internal/domain/catalog"
)

const itemKeyPrefix = "item:"

// saveItemScript performs the optimistic write atomically: the hash is only
// rewritten when its version field still matches the version the caller
// read. Returns 1 on success, 0 on a lost race, -1 when the key is missing.
var saveItemScript = redis.NewScript(`
local key = KEYS[1]
local expected = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'version')
if not current then
	return -1
end
if tonumber(current) ~= expected then
	return 0
end

redis.call('HSET', key,
	'title', ARGV[2],
	'unit_price', ARGV[3],
	'quantity', ARGV[4],
	'version', expected + 1,
	'updated_at', ARGV[5])
return 1
`)

// ItemRepository keeps catalog items in Redis hashes. It offers the same
// versioned-save contract as the MySQL and in-memory adapters, with the
// compare-and-swap executed server-side in a Lua script.
type ItemRepository struct {
	client *redis.Client
}

func NewItemRepository(client *redis.Client) *ItemRepository {
	return &ItemRepository{client: client}
}

func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	fields, err := r.client.HGetAll(ctx, itemKeyPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return itemFromFields(id, fields)
}

func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	key := itemKeyPrefix + item.ID

	ok, err := r.client.HSetNX(ctx, key, "version", item.Version).Result()
	if err != nil {
		return fmt.Errorf("redis: hsetnx: %w", err)
	}
	if !ok {
		return domain.ErrConflict
	}

	err = r.client.HSet(ctx, key,
		"title", item.Title,
		"unit_price", item.UnitPrice,
		"quantity", item.Quantity,
		"updated_at", item.UpdatedAt.UnixNano(),
	).Err()
	if err != nil {
		return fmt.Errorf("redis: hset: %w", err)
	}

	return r.client.SAdd(ctx, itemKeyPrefix+"all", item.ID).Err()
}

func (r *ItemRepository) Save(ctx context.Context, item *domain.Item) error {
	result, err := saveItemScript.Run(ctx, r.client,
		[]string{itemKeyPrefix + item.ID},
		item.Version,
		item.Title,
		item.UnitPrice,
		item.Quantity,
		item.UpdatedAt.UnixNano(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis: save item: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return domain.ErrNotFound
	default:
		return domain.ErrConflict
	}
}

func (r *ItemRepository) List(ctx context.Context) ([]*domain.Item, error) {
	ids, err := r.client.SMembers(ctx, itemKeyPrefix+"all").Result()
	if err != nil {
		return nil, fmt.Errorf("redis: smembers: %w", err)
	}
	sort.Strings(ids)

	out := make([]*domain.Item, 0, len(ids))
	for _, id := range ids {
		item, err := r.Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func itemFromFields(id string, fields map[string]string) (*domain.Item, error) {
	unitPrice, err := strconv.ParseInt(fields["unit_price"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: parse unit_price: %w", err)
	}
	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return nil, fmt.Errorf("redis: parse quantity: %w", err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: parse version: %w", err)
	}
	updatedAt, _ := strconv.ParseInt(fields["updated_at"], 10, 64)

	return &domain.Item{
		ID:        id,
		Title:     fields["title"],
		UnitPrice: unitPrice,
		Quantity:  quantity,
		Version:   version,
		UpdatedAt: time.Unix(0, updatedAt).UTC(),
	}, nil
}
