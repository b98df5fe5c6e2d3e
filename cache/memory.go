package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process CodeCache for tests and local development
// without redis.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false
	}
	return entry.value, true
}

func (c *MemoryCache) SetCode(_ context.Context, key, code string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: code, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) GetCode(_ context.Context, key string) (string, error) {
	code, _ := c.get(key)
	return code, nil
}

func (c *MemoryCache) DeleteCode(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) Denylist(_ context.Context, tokenId string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[denylistKey(tokenId)] = memoryEntry{value: "1", expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) IsDenylisted(_ context.Context, tokenId string) (bool, error) {
	_, ok := c.get(denylistKey(tokenId))
	return ok, nil
}
