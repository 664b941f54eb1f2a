package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
)

func TestOpenCacheDisabledIsNop(t *testing.T) {
	cache, err := OpenCache(context.Background(), config.CacheConfig{Enabled: false, Backend: "redis"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "disabled", Backend(cache))

	cache.Set(context.Background(), "k", []byte("v"), time.Minute)
	_, ok := cache.Get(context.Background(), "k")
	require.False(t, ok)
	require.NoError(t, cache.Close())
}

func TestOpenCacheMemoryBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache, err := OpenCache(ctx, config.CacheConfig{Enabled: true, Backend: config.CacheBackendMemory}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, config.CacheBackendMemory, Backend(cache))
}

func TestOpenCacheUnknownBackend(t *testing.T) {
	_, err := OpenCache(context.Background(), config.CacheConfig{Enabled: true, Backend: "memcached"}, nil, nil)
	require.ErrorContains(t, err, "unsupported cache backend")
}
