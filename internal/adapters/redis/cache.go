package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"property_reviews/internal/adapters/observability"
)

// Cache is a JSON read-through cache. The database stays the source of
// truth; entries are only ever deleted or replaced wholesale.
type Cache struct {
	c      *redis.Client
	prefix string
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}), "rms:")
}

func NewWithClient(c *redis.Client, prefix string) *Cache {
	return &Cache{c: c, prefix: prefix}
}

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	v, err := r.c.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(v, dst); err != nil {
		// a corrupt entry is treated as a miss and evicted
		observability.ObserveCache("redis", "miss")
		_ = r.c.Del(ctx, r.prefix+key).Err()
		return false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	observability.ObserveCache("redis", "hit")
	return true, nil
}

// setIfNewer keeps a version floor under KEYS[2] without expiry, so a
// fill computed from an older read is refused even after the value itself
// has expired or been deleted.
var setIfNewer = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur and tonumber(cur) > tonumber(ARGV[2]) then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2])
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func (r *Cache) SetIfNewer(ctx context.Context, key string, v any, version int64, ttlSec int) (bool, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	k := r.prefix + key
	n, err := setIfNewer.Run(ctx, r.c, []string{k, k + ":version"}, b, version, ttlSec).Int()
	if err != nil {
		return false, err
	}
	if n == 0 {
		observability.ObserveCache("redis", "stale")
		return false, nil
	}
	observability.ObserveCache("redis", "set")
	return true, nil
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	return r.c.Del(ctx, r.prefix+key).Err()
}

func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }
