package store

import (
	"context"
	"sync"
	"time"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache. Expired entries are evicted when read
// and by Sweep.
type MemoryCache struct {
	Clock core.Clock

	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty cache reading time from clock.
func NewMemoryCache(clock core.Clock) *MemoryCache {
	return &MemoryCache{Clock: clock, entries: make(map[string]memoryEntry)}
}

// Get returns a copy of the value stored under key if it has not expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.Clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true
}

// Set stores a copy of value for ttl. Non-positive ttl is a no-op.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]memoryEntry)
	}
	c.entries[key] = memoryEntry{value: stored, expiresAt: c.Clock.Now().Add(ttl)}
}

// Delete removes key.
func (c *MemoryCache) Delete(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports stored entries, expired ones included until swept.
func (c *MemoryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *MemoryCache) Sweep() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.Clock.Now()
	removed := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (c *MemoryCache) StartSweeper(ctx context.Context, interval time.Duration) {
	if c == nil || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	return nil
}
