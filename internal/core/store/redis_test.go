package store

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
)

// closedAddr returns a local address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func TestNewRedisCacheRequiresAddress(t *testing.T) {
	_, err := NewRedisCache(config.RedisConfig{}, nil)
	require.Error(t, err)

	_, err = NewRedisCache(config.RedisConfig{URL: "://bad"}, nil)
	require.Error(t, err)
}

func TestNewRedisCacheFromURL(t *testing.T) {
	cache, err := NewRedisCache(config.RedisConfig{URL: "redis://cache.internal:6380/3"}, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	require.Equal(t, "cache.internal:6380", cache.Addr())
	require.Equal(t, defaultRedisOpTimeout, cache.opTimeout)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	srv := newRESPServer(t)
	cache, err := NewRedisCache(config.RedisConfig{Addr: srv.Addr(), OpTimeout: time.Second}, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	require.NoError(t, cache.Ping(ctx))

	_, ok := cache.Get(ctx, "prices:BTC")
	require.False(t, ok)

	payload := []byte(`[{"symbol":"BTC","price":64000}]`)
	cache.Set(ctx, "prices:BTC", payload, 60*time.Second)

	got, ok := cache.Get(ctx, "prices:BTC")
	require.True(t, ok)
	assert.Equal(t, payload, got)
	assert.Equal(t, []string{"ex", "60"}, srv.Expiry("prices:BTC"))
}

func TestRedisCacheSubSecondTTLUsesMilliseconds(t *testing.T) {
	srv := newRESPServer(t)
	cache, err := NewRedisCache(config.RedisConfig{Addr: srv.Addr(), OpTimeout: time.Second}, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	cache.Set(ctx, "news:all:5", []byte(`[]`), 1500*time.Millisecond)
	assert.Equal(t, []string{"px", "1500"}, srv.Expiry("news:all:5"))

	cache.Set(ctx, "whales:24", []byte(`[]`), 0)
	assert.False(t, srv.Has("whales:24"))
}

func TestOpenCacheRedisBackendRoundTrip(t *testing.T) {
	srv := newRESPServer(t)
	cache, err := OpenCache(context.Background(), config.CacheConfig{
		Enabled: true,
		Backend: config.CacheBackendRedis,
		Redis:   config.RedisConfig{Addr: srv.Addr(), OpTimeout: time.Second},
	}, nil, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	cache.Set(ctx, "economic", []byte(`{"events":[]}`), time.Minute)
	got, ok := cache.Get(ctx, "economic")
	require.True(t, ok)
	assert.JSONEq(t, `{"events":[]}`, string(got))
}

func TestRedisCacheUnreachableDegradesToMiss(t *testing.T) {
	cache, err := NewRedisCache(config.RedisConfig{
		Addr:        closedAddr(t),
		DialTimeout: 50 * time.Millisecond,
		OpTimeout:   100 * time.Millisecond,
	}, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	ctx := context.Background()
	start := time.Now()

	cache.Set(ctx, "prices:BTC", []byte(`[]`), time.Minute)
	_, ok := cache.Get(ctx, "prices:BTC")

	require.False(t, ok)
	require.Error(t, cache.Ping(ctx))
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestOpenCacheRedisBackendUnreachable(t *testing.T) {
	cache, err := OpenCache(context.Background(), config.CacheConfig{
		Enabled: true,
		Backend: config.CacheBackendRedis,
		Redis: config.RedisConfig{
			Addr:        closedAddr(t),
			DialTimeout: 50 * time.Millisecond,
			OpTimeout:   100 * time.Millisecond,
		},
	}, nil, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	require.Equal(t, config.CacheBackendRedis, Backend(cache))
	_, isPinger := cache.(Pinger)
	require.True(t, isPinger)
}
