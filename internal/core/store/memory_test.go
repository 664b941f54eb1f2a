package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestMemoryCacheGetSet(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	cache := NewMemoryCache(clock.Now)

	_, ok := cache.Get(ctx, "prices:BTC")
	require.False(t, ok)

	cache.Set(ctx, "prices:BTC", []byte(`{"price":1}`), time.Minute)
	value, ok := cache.Get(ctx, "prices:BTC")
	require.True(t, ok)
	require.Equal(t, `{"price":1}`, string(value))
}

func TestMemoryCacheNeverReturnsExpired(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	cache := NewMemoryCache(clock.Now)

	cache.Set(ctx, "k", []byte("v"), time.Minute)

	clock.Advance(59 * time.Second)
	_, ok := cache.Get(ctx, "k")
	require.True(t, ok)

	clock.Advance(time.Second)
	_, ok = cache.Get(ctx, "k")
	require.False(t, ok)
	require.Zero(t, cache.Len(), "expired entry is evicted on read")
}

func TestMemoryCacheNonPositiveTTLIsNoop(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(nil)

	cache.Set(ctx, "zero", []byte("v"), 0)
	cache.Set(ctx, "negative", []byte("v"), -time.Second)

	assert.Zero(t, cache.Len())
}

func TestMemoryCacheCopiesValues(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(nil)

	original := []byte("abc")
	cache.Set(ctx, "k", original, time.Minute)
	original[0] = 'x'

	value, _ := cache.Get(ctx, "k")
	require.Equal(t, "abc", string(value))

	value[1] = 'y'
	again, _ := cache.Get(ctx, "k")
	require.Equal(t, "abc", string(again))
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()
	clock := newManualClock()
	cache := NewMemoryCache(clock.Now)

	cache.Set(ctx, "short", []byte("1"), time.Second)
	cache.Set(ctx, "long", []byte("2"), time.Hour)

	clock.Advance(time.Minute)
	require.Equal(t, 1, cache.Sweep())
	require.Equal(t, 1, cache.Len())
}

func TestMemoryCacheDeleteAndClose(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(nil)

	cache.Set(ctx, "a", []byte("1"), time.Minute)
	cache.Set(ctx, "b", []byte("2"), time.Minute)

	cache.Delete("a")
	require.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Close())
	require.Zero(t, cache.Len())
}

func TestMemoryCacheStartSweeperStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := newManualClock()
	cache := NewMemoryCache(clock.Now)

	cache.Set(ctx, "k", []byte("v"), time.Millisecond)
	clock.Advance(time.Second)
	cache.StartSweeper(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool { return cache.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
}
