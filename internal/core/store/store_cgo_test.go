//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/stretchr/testify/require"
)

func openMemoryStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestOpenMemoryStore(t *testing.T) {
	store := openMemoryStore(t)
	require.Equal(t, "libsql", store.Driver())
	require.Equal(t, 1, store.DB.Stats().MaxOpenConnections)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := openMemoryStore(t)
	require.NoError(t, store.Migrate(context.Background()))

	var version string
	require.NoError(t, store.DB.QueryRow(`SELECT value FROM store_meta WHERE key = 'schema_version'`).Scan(&version))
	require.Equal(t, schemaVersion, version)
}

func TestCachedPayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SetCachedPayload(ctx, "prices:BTC", []byte(`[{"symbol":"BTC"}]`), time.Minute, now))

	payload, err := store.GetCachedPayload(ctx, "prices:BTC", now.Add(59*time.Second))
	require.NoError(t, err)
	require.JSONEq(t, `[{"symbol":"BTC"}]`, string(payload))

	expired, err := store.GetCachedPayload(ctx, "prices:BTC", now.Add(time.Minute))
	require.NoError(t, err)
	require.Nil(t, expired)

	// Upsert replaces the payload and extends the expiry.
	require.NoError(t, store.SetCachedPayload(ctx, "prices:BTC", []byte(`[]`), time.Hour, now.Add(time.Minute)))
	payload, err = store.GetCachedPayload(ctx, "prices:BTC", now.Add(2*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "[]", string(payload))
}

func TestSetCachedPayloadIgnoresNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	store := openMemoryStore(t)
	now := time.Now()

	require.NoError(t, store.SetCachedPayload(ctx, "news:all:20", []byte(`[]`), 0, now))

	payload, err := store.GetCachedPayload(ctx, "news:all:20", now)
	require.NoError(t, err)
	require.Nil(t, payload)
}

func TestPurgeExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	cache := NewSQLCache(openMemoryStore(t), clock, nil)
	cache.Set(ctx, "short", []byte(`1`), time.Second)
	cache.Set(ctx, "long", []byte(`2`), time.Hour)

	now = now.Add(time.Minute)
	removed, err := cache.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, ok := cache.Get(ctx, "short")
	require.False(t, ok)
	value, ok := cache.Get(ctx, "long")
	require.True(t, ok)
	require.Equal(t, "2", string(value))
	require.NoError(t, cache.Ping(ctx))
}

func TestOpenCacheLibsqlBackend(t *testing.T) {
	cache, err := OpenCache(context.Background(), config.CacheConfig{
		Enabled: true,
		Backend: config.CacheBackendLibsql,
		Store:   config.StoreConfig{Path: ":memory:"},
	}, nil, nil)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	require.Equal(t, config.CacheBackendLibsql, Backend(cache))
	_, ok := cache.(Purger)
	require.True(t, ok)
}
