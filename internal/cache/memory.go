package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is the default MatrixCache: an in-process map. Used when
// Redis is not configured, and in tests.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheItem
}

type cacheItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache creates an in-memory MatrixCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]cacheItem)}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.data[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		return nil, false, nil
	}
	return item.value, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var exp time.Time
	if expiration > 0 {
		exp = time.Now().Add(expiration)
	}
	c.data[key] = cacheItem{value: append([]byte(nil), value...), expiration: exp}
	return nil
}

func (c *MemoryCache) Close() error { return nil }

var _ MatrixCache = (*MemoryCache)(nil)
