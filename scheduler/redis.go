package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

const (
	cycleLockKey   = "jobscout:cycle-lock"
	cooldownPrefix = "jobscout:cooldown:"
)

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-key lease shared by every instance pointing at the
// same Redis. The TTL must outlast the longest cycle.
type RedisLock struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLock creates a RedisLock. ttl defaults to 2h.
func NewRedisLock(rdb *redis.Client, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisLock{rdb: rdb, ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, cycleLockKey, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{cycleLockKey}, token).Err(); err != nil {
			slog.Warn("cycle lock release failed", "error", err)
		}
	}
	return release, true, nil
}

// RedisCooldowns keeps captcha benches in Redis so they survive restarts
// and apply to every instance.
type RedisCooldowns struct {
	rdb *redis.Client
}

func NewRedisCooldowns(rdb *redis.Client) *RedisCooldowns {
	return &RedisCooldowns{rdb: rdb}
}

func (c *RedisCooldowns) Bench(ctx context.Context, key string, d time.Duration) error {
	return c.rdb.Set(ctx, cooldownPrefix+key, time.Now().Add(d).Unix(), d).Err()
}

func (c *RedisCooldowns) Benched(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cooldownPrefix+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryCooldowns is the in-process cooldown table.
type MemoryCooldowns struct {
	mu    sync.Mutex
	until map[string]time.Time
	now   func() time.Time
}

// NewMemoryCooldowns creates a MemoryCooldowns. now defaults to time.Now.
func NewMemoryCooldowns(now func() time.Time) *MemoryCooldowns {
	if now == nil {
		now = time.Now
	}
	return &MemoryCooldowns{until: make(map[string]time.Time), now: now}
}

func (c *MemoryCooldowns) Bench(_ context.Context, key string, d time.Duration) error {
	c.mu.Lock()
	c.until[key] = c.now().Add(d)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCooldowns) Benched(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.until[key]
	if !ok {
		return false, nil
	}
	if !c.now().Before(until) {
		delete(c.until, key)
		return false, nil
	}
	return true, nil
}
