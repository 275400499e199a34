package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/settlement/internal/domain/fx"
)

type entry struct {
	snapshot  fx.Snapshot
	expiresAt time.Time // zero means no expiry
}

// InMemoryRateCache caches snapshots in process. It is used when Redis is
// disabled and is only correct for a single instance.
type InMemoryRateCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryRateCache creates an in-process cache
func NewInMemoryRateCache(ttl time.Duration) *InMemoryRateCache {
	return &InMemoryRateCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func dayKey(date time.Time) string {
	return fx.DateOnly(date).Format(time.DateOnly)
}

// Get returns the cached snapshot for date
func (c *InMemoryRateCache) Get(_ context.Context, date time.Time) (fx.Snapshot, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[dayKey(date)]
	c.mu.RUnlock()
	if !ok {
		return fx.Snapshot{}, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, dayKey(date))
		c.mu.Unlock()
		return fx.Snapshot{}, false, nil
	}
	return e.snapshot, true, nil
}

// Set caches s under date
func (c *InMemoryRateCache) Set(_ context.Context, date time.Time, s fx.Snapshot) error {
	e := entry{snapshot: s}
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[dayKey(date)] = e
	c.mu.Unlock()
	return nil
}

// Delete drops the cached snapshot for date
func (c *InMemoryRateCache) Delete(_ context.Context, date time.Time) error {
	c.mu.Lock()
	delete(c.entries, dayKey(date))
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached days
func (c *InMemoryRateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
