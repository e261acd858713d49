package contacts

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"leadbot/pkg/utils"
)

// Cache stores built indexes for a short time.
type Cache interface {
	Get(ctx context.Context, key string) (Index, bool, error)
	Set(ctx context.Context, key string, idx Index, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]memoryItem
}

type memoryItem struct {
	idx     Index
	expires time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now, items: map[string]memoryItem{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Index, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(it.expires) {
		delete(c.items, key)
		return nil, false, nil
	}
	return it.idx, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, idx Index, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{idx: idx, expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

// RedisCache shares built indexes between API replicas.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "leadbot:contacts:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Index, bool, error) {
	var idx Index
	found, err := utils.GetJSON(ctx, c.rdb, c.prefix+key, &idx)
	if err != nil || !found {
		return nil, false, err
	}
	return idx, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, idx Index, ttl time.Duration) error {
	return utils.SetJSON(ctx, c.rdb, c.prefix+key, idx, ttl)
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.prefix + k
	}
	return eris.Wrap(c.rdb.Del(ctx, full...).Err(), "contacts: delete cached index")
}
