// Package cache holds read-through caches for daily exchange rates.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "settle:fx:daily:"

// RedisRateCache stores daily rate snapshots in Redis so every instance
// sees a rate change as soon as the entry is invalidated.
type RedisRateCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisRateCache creates a cache over an existing client. A zero ttl keeps
// entries until they are deleted.
func NewRedisRateCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisRateCache {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisRateCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (c *RedisRateCache) key(date time.Time) string {
	return c.keyPrefix + fx.DateOnly(date).Format(time.DateOnly)
}

// Get returns the cached snapshot for date
func (c *RedisRateCache) Get(ctx context.Context, date time.Time) (fx.Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, c.key(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return fx.Snapshot{}, false, nil
	}
	if err != nil {
		return fx.Snapshot{}, false, fmt.Errorf("failed to read cached rate: %w", err)
	}

	var s fx.Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.client.Del(ctx, c.key(date)).Err()
		return fx.Snapshot{}, false, nil
	}
	return s, true, nil
}

// Set caches s under date
func (c *RedisRateCache) Set(ctx context.Context, date time.Time, s fx.Snapshot) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode rate snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.key(date), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache rate: %w", err)
	}
	return nil
}

// Delete drops the cached snapshot for date
func (c *RedisRateCache) Delete(ctx context.Context, date time.Time) error {
	if err := c.client.Del(ctx, c.key(date)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached rate: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (c *RedisRateCache) Close() error {
	return c.client.Close()
}

// Ping checks that Redis answers
func (c *RedisRateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
