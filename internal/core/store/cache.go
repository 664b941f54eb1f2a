package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

// Cache is a best-effort key/value store with per-entry expiry. Get never
// returns an expired entry and reports backend failures as a miss; Set
// swallows failures.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Close() error
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Purger is implemented by backends that keep expired rows until asked.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// OpenCache builds the cache backend selected by cfg. A disabled cache is a
// Nop. A redis backend that cannot be reached at startup is still returned;
// its operations degrade to misses until redis comes back.
func OpenCache(ctx context.Context, cfg config.CacheConfig, clock core.Clock, logger *logging.Logger) (Cache, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}

	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.Backend {
	case "", config.CacheBackendMemory:
		cache := NewMemoryCache(clock)
		cache.StartSweeper(ctx, cfg.SweepInterval)
		return cache, nil
	case config.CacheBackendRedis:
		cache, err := NewRedisCache(cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		if err := cache.Ping(ctx); err != nil && logger != nil {
			logger.Warn("Redis cache unreachable, reads will miss until it recovers",
				zap.String("addr", cache.Addr()),
				zap.Error(err))
		}
		return cache, nil
	case config.CacheBackendLibsql:
		st, err := Open(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return NewSQLCache(st, clock, logger), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// Nop is the disabled cache: every Get misses and every Set is dropped.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]byte, bool) { return nil, false }

func (Nop) Set(context.Context, string, []byte, time.Duration) {}

func (Nop) Close() error { return nil }

// Backend names the implementation behind c for logs and health output.
func Backend(c Cache) string {
	switch c.(type) {
	case *MemoryCache:
		return config.CacheBackendMemory
	case *RedisCache:
		return config.CacheBackendRedis
	case *SQLCache:
		return config.CacheBackendLibsql
	case Nop, *Nop:
		return "disabled"
	default:
		return "custom"
	}
}
