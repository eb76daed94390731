package models

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// Cache stores the last model list.
type Cache interface {
	Get(ctx context.Context) ([]string, bool, error)
	Set(ctx context.Context, models []string) error
}

// MemoryCache keeps the list in process.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	models  []string
	expires time.Time
}

// NewMemoryCache returns a cache whose entries live for ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now}
}

func (c *MemoryCache) Get(context.Context) ([]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.models == nil || !c.now().Before(c.expires) {
		return nil, false, nil
	}
	return append([]string{}, c.models...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, models []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = append([]string{}, models...)
	c.expires = c.now().Add(c.ttl)
	return nil
}

// redisClient is the subset of redis.Cmdable the cache needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache stores the list as JSON under a single key.
type RedisCache struct {
	rdb redisClient
	key string
	ttl time.Duration
}

// NewRedisCache stores under "<prefix>:models".
func NewRedisCache(rdb redisClient, prefix string, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, key: prefix + ":models", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context) ([]string, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", c.key, err)
	}

	var models []string
	if err := sonic.Unmarshal(raw, &models); err != nil {
		return nil, false, fmt.Errorf("decode cached models: %w", err)
	}
	return models, true, nil
}

func (c *RedisCache) Set(ctx context.Context, models []string) error {
	data, err := sonic.Marshal(models)
	if err != nil {
		return fmt.Errorf("encode models: %w", err)
	}
	if err := c.rdb.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key, err)
	}
	return nil
}
