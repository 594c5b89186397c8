package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/lending-ledger/internal/port"
)

const (
	stockKeyPrefix       = "stock:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// setStockIfNewerScript ignores writes whose book version is below the stored one, so
// workers applying events out of order cannot move the mirror backwards.
var setStockIfNewerScript = redis.NewScript(`
local key = KEYS[1]
local version = tonumber(ARGV[2])

local current = redis.call('HGET', key, 'version')
if current and tonumber(current) > version then
	return 0
end

redis.call('HSET', key, 'quantity', ARGV[1], 'version', ARGV[2])
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

var _ port.CacheRepository = (*RedisAdapter)(nil)

func stockKey(bookID int64) string {
	return stockKeyPrefix + strconv.FormatInt(bookID, 10)
}

func (r *RedisAdapter) SetStock(ctx context.Context, bookID int64, quantity int, version int64) error {
	return setStockIfNewerScript.Run(ctx, r.client, []string{stockKey(bookID)},
		quantity, version).Err()
}

func (r *RedisAdapter) GetStock(ctx context.Context, bookID int64) (int, bool, error) {
	quantity, err := r.client.HGet(ctx, stockKey(bookID), "quantity").Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return quantity, true, nil
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
