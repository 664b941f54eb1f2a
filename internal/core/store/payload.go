package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

// GetCachedPayload returns the payload stored under key if it has not
// expired at now. A missing row is (nil, nil).
func (s *Store) GetCachedPayload(ctx context.Context, key string, now time.Time) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("cache key is required")
	}

	var payload string
	row := s.DB.QueryRowContext(ctx, `
		SELECT payload
		FROM payload_cache
		WHERE key = ? AND expires_at > ?
	`, key, now.UTC().UnixMilli())

	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached payload: %w", err)
	}

	return []byte(payload), nil
}

// SetCachedPayload upserts payload under key with an expiry of now+ttl.
func (s *Store) SetCachedPayload(ctx context.Context, key string, payload []byte, ttl time.Duration, now time.Time) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 {
		return nil
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("cache key is required")
	}

	now = now.UTC()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO payload_cache (key, payload, stored_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload = excluded.payload,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at
	`, key, string(payload), now.UnixMilli(), now.Add(ttl).UnixMilli())
	if err != nil {
		return fmt.Errorf("store cached payload: %w", err)
	}

	return nil
}

// PurgeExpiredAt deletes rows that expired at or before now.
func (s *Store) PurgeExpiredAt(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM payload_cache WHERE expires_at <= ?`, now.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge cached payloads: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count purged payloads: %w", err)
	}
	return removed, nil
}

// SQLCache adapts a libsql Store to the Cache interface.
type SQLCache struct {
	store  *Store
	clock  core.Clock
	logger *logging.Logger
}

// NewSQLCache wraps st. The cache owns st and closes it on Close.
func NewSQLCache(st *Store, clock core.Clock, logger *logging.Logger) *SQLCache {
	return &SQLCache{store: st, clock: clock, logger: logger}
}

func (c *SQLCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.store.GetCachedPayload(ctx, key, c.clock.Now())
	if err != nil {
		c.debug("Store cache read failed", key, err)
		return nil, false
	}
	if payload == nil {
		return nil, false
	}
	return payload, true
}

func (c *SQLCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.store.SetCachedPayload(ctx, key, value, ttl, c.clock.Now()); err != nil {
		c.debug("Store cache write failed", key, err)
	}
}

// PurgeExpired deletes expired rows.
func (c *SQLCache) PurgeExpired(ctx context.Context) (int64, error) {
	return c.store.PurgeExpiredAt(ctx, c.clock.Now())
}

// Ping checks the database connection.
func (c *SQLCache) Ping(ctx context.Context) error {
	if c.store == nil || c.store.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return c.store.DB.PingContext(ctx)
}

func (c *SQLCache) Close() error {
	return c.store.Close()
}

func (c *SQLCache) debug(msg, key string, err error) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("cache_key", key), zap.Error(err))
	}
}
