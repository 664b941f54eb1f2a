package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
)

const defaultRedisOpTimeout = 500 * time.Millisecond

// RedisCache is a Cache backed by redis GET and SET ... EX.
type RedisCache struct {
	client    *redis.Client
	opTimeout time.Duration
	logger    *logging.Logger
}

// NewRedisCache builds a client from cfg. It does not contact the server.
func NewRedisCache(cfg config.RedisConfig, logger *logging.Logger) (*RedisCache, error) {
	var opts *redis.Options
	if url := strings.TrimSpace(cfg.URL); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		addr := strings.TrimSpace(cfg.Addr)
		if addr == "" {
			return nil, errors.New("redis url or addr is required")
		}
		opts = &redis.Options{
			Addr:     addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}

	return NewRedisCacheWithClient(redis.NewClient(opts), cfg.OpTimeout, logger), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, opTimeout time.Duration, logger *logging.Logger) *RedisCache {
	if opTimeout <= 0 {
		opTimeout = defaultRedisOpTimeout
	}
	return &RedisCache{client: client, opTimeout: opTimeout, logger: logger}
}

// Addr returns the configured server address.
func (c *RedisCache) Addr() string {
	if c == nil || c.client == nil {
		return ""
	}
	return c.client.Options().Addr
}

// Get returns the value under key. Redis expires entries itself, so anything
// returned is live.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.debug("Redis cache read failed", key, err)
		}
		return nil, false
	}
	return value, true
}

// Set stores value with an expiry of ttl. Non-positive ttl is a no-op.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil || c.client == nil || ttl <= 0 {
		return
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.debug("Redis cache write failed", key, err)
	}
}

// Ping reports whether the server answers.
func (c *RedisCache) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("redis cache is not initialized")
	}

	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis %s: %w", c.Addr(), err)
	}
	return nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *RedisCache) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *RedisCache) debug(msg, key string, err error) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("cache_key", key), zap.Error(err))
	}
}
