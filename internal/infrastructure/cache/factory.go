package cache

import (
	"context"
	"fmt"
	"time"

	appfx "github.com/erp/settlement/internal/application/fx"
	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateCacheFactory creates the daily rate cache from configuration
type RateCacheFactory struct {
	cfg                   config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RateCacheFactoryOption configures a RateCacheFactory
type RateCacheFactoryOption func(*RateCacheFactory)

// WithLogger sets the factory logger
func WithLogger(logger *zap.Logger) RateCacheFactoryOption {
	return func(f *RateCacheFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// in-process cache. Default true.
func WithInMemoryFallback(allow bool) RateCacheFactoryOption {
	return func(f *RateCacheFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRateCacheFactory creates a new factory
func NewRateCacheFactory(cfg config.RedisConfig, opts ...RateCacheFactoryOption) *RateCacheFactory {
	f := &RateCacheFactory{
		cfg:                   cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisCache connects to Redis and verifies the connection
func (f *RateCacheFactory) CreateRedisCache(ctx context.Context) (*RedisRateCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.cfg.Addr(),
		Password: f.cfg.Password,
		DB:       f.cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRateCache(client, "", f.cfg.RateCacheTTL), nil
}

// CreateCache returns a Redis cache when enabled and reachable, otherwise the
// in-process cache if fallback is allowed
func (f *RateCacheFactory) CreateCache(ctx context.Context) (appfx.RateCache, error) {
	if !f.cfg.Enabled {
		f.logger.Info("Redis disabled, using in-memory rate cache")
		return NewInMemoryRateCache(f.cfg.RateCacheTTL), nil
	}

	c, err := f.CreateRedisCache(ctx)
	if err == nil {
		f.logger.Info("Using Redis rate cache", zap.String("addr", f.cfg.Addr()))
		return c, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for rate cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory rate cache; "+
		"rate edits will not invalidate other instances",
		zap.Error(err),
	)
	return NewInMemoryRateCache(f.cfg.RateCacheTTL), nil
}
