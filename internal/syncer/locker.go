package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"leadbot/pkg/utils"
)

// Locker provides the single-flight guard around sync runs. Two syncs
// appending to the same event log at once would each dedup against a stale
// view and write duplicates.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// MemoryLocker guards a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	now  func() time.Time
	held map[string]time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{now: time.Now, held: map[string]time.Time{}}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if exp, ok := l.held[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.held[key] = now.Add(ttl)
	return true, nil
}

func (l *MemoryLocker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// RedisLocker guards every replica sharing a redis. It is a concurrency cap
// of one, so a crashed holder frees the slot when the TTL lapses.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker { return &RedisLocker{rdb: rdb} }

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, key, 1, ttl)
}

func (l *RedisLocker) Unlock(ctx context.Context, key string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, key)
}
