package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/provider"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/store"
	errwrap "github.com/CryptoZapCommunity/crypto-zap-dash/internal/errors"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify the configuration, the static fallback datasets and the cache backend before starting the server.",
	Run: func(cmd *cobra.Command, args []string) {
		logger := observability.CLILogger
		logger.Info("Running health check...")

		cfg, err := loadConfig()
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Configuration invalid", errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid"))
			return
		}
		logger.Info("✅ Configuration valid")

		if _, err := provider.StaticDatasets(); err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Static datasets unavailable", err)
			return
		}
		logger.Info("✅ Static fallback datasets loaded")

		active := 0
		for _, domain := range core.Domains {
			for _, planned := range provider.Plan(cfg, domain) {
				if planned.Active() {
					active++
				}
			}
			logger.Debug("Cascade planned", zap.String("domain", string(domain)))
		}
		logger.Info("✅ Sources planned", zap.Int("active", active))

		if !cfg.Cache.Enabled {
			logger.Info("✅ Cache disabled")
			logger.Info("✅ All health checks passed")
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cache, err := store.OpenCache(ctx, cfg.Cache, core.SystemClock, logger)
		if err != nil {
			ExitWithCode(logger, foundry.ExitFailure, "Cache backend unavailable", err)
			return
		}
		defer func() { _ = cache.Close() }()

		if pinger, ok := cache.(store.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				logger.Warn("⚠️  Cache backend unreachable, feeds will run uncached",
					zap.String("backend", store.Backend(cache)),
					zap.Error(err))
				return
			}
		}
		logger.Info("✅ Cache backend ready", zap.String("backend", store.Backend(cache)))
		logger.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
