package cache

import (
	"context"
	"sync"
	"time"

	"fruition-api/pkg/clock"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func newEntry(value []byte, ttl time.Duration, now time.Time) *cacheEntry {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := &cacheEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	return entry
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryCache is an in-process Cache. Notification state kept here is
// lost on restart and not shared between instances.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	clock   clock.Clock

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

// NewMemoryCache creates a memory cache on the wall clock.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(clock.Real{})
}

// NewMemoryCacheWithClock creates a memory cache whose expiry is measured
// against clk. Expired entries are swept once a minute.
func NewMemoryCacheWithClock(clk clock.Clock) *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[string]*cacheEntry),
		clock:           clk,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go c.cleanup()

	return c
}

// Get retrieves a copy of the value stored under key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(c.clock.Now()) {
		return nil, ErrCacheMiss
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a copy of value.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := newEntry(value, ttl, c.clock.Now())

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
	return nil
}

// Delete removes a value by key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Exists checks if a key exists and is not expired.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	return ok && !entry.expired(c.clock.Now()), nil
}

// SetIfAbsent stores a copy of value unless a live entry exists.
func (c *MemoryCache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && !entry.expired(now) {
		return false, nil
	}
	c.entries[key] = newEntry(value, ttl, now)
	return true, nil
}

// Len returns the number of stored entries, expired ones included until
// the next sweep.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
	return nil
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.expired(now) {
			delete(c.entries, key)
		}
	}
}

var _ Cache = (*MemoryCache)(nil)
