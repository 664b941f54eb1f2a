package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/provider"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/store"
)

// feedRuntime bundles the feed service with the cache it owns.
type feedRuntime struct {
	Service *provider.Service
	Cache   store.Cache
}

// Close releases the cache backend.
func (r *feedRuntime) Close() error {
	if r == nil || r.Cache == nil {
		return nil
	}
	return r.Cache.Close()
}

// openFeeds opens the configured cache and wires the feed service on top of it.
// ctx bounds background cache maintenance.
func openFeeds(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*feedRuntime, error) {
	clock := core.Clock(core.SystemClock)

	cache, err := store.OpenCache(ctx, cfg.Cache, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Cache.Backend, err)
	}

	service, err := provider.NewService(provider.Options{
		Config:    cfg,
		Cache:     cache,
		Logger:    logger,
		Clock:     clock,
		UserAgent: fmt.Sprintf("%s/%s", appIdentity.BinaryName, versionInfo.Version),
	})
	if err != nil {
		_ = cache.Close()
		return nil, err
	}

	if logger != nil {
		logger.Debug("Feed service ready",
			zap.String("cache_backend", store.Backend(cache)),
			zap.Bool("collapse_concurrent", cfg.Feeds.CollapseConcurrent))
	}

	return &feedRuntime{Service: service, Cache: cache}, nil
}

// uptimeInterval is how often serve refreshes the uptime and limiter gauges.
const uptimeInterval = 15 * time.Second
