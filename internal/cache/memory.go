package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider used when no Redis server is configured.
type MemoryProvider struct {
	mu    sync.RWMutex
	data  map[string]entry
	now   func() time.Time
	limit int
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates a cache holding at most limit entries; zero means unbounded.
func NewMemoryProvider(limit int) *MemoryProvider {
	return &MemoryProvider{data: make(map[string]entry), now: time.Now, limit: limit}
}

// Get returns a copy of the value stored under key.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if c.expired(it) {
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && c.expired(cur) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores value with an optional TTL. When full, expired entries are purged
// first and then an arbitrary entry is evicted.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists && c.limit > 0 && len(c.data) >= c.limit {
		c.evictLocked()
	}
	c.data[key] = entry{value: append([]byte(nil), value...), expiresAt: expires}
	return nil
}

// Del removes an entry.
func (c *MemoryProvider) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Close drops every entry.
func (c *MemoryProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	return nil
}

// Len reports the number of stored entries, including expired ones not yet purged.
func (c *MemoryProvider) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *MemoryProvider) expired(it entry) bool {
	return !it.expiresAt.IsZero() && c.now().After(it.expiresAt)
}

func (c *MemoryProvider) evictLocked() {
	for k, it := range c.data {
		if c.expired(it) {
			delete(c.data, k)
		}
	}
	if len(c.data) < c.limit {
		return
	}
	for k := range c.data {
		delete(c.data, k)
		return
	}
}
