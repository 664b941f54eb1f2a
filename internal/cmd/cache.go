package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/store"
	errwrap "github.com/CryptoZapCommunity/crypto-zap-dash/internal/errors"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/metrics"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the payload cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired entries from the configured cache",
	Long: `Delete expired entries from the configured cache backend.

The libsql backend keeps expired rows until purged. Memory and redis
backends expire entries on their own, so purge is a no-op for them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}
		if !cfg.Cache.Enabled {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cache is disabled; nothing to purge")
			return nil
		}

		ctx := cmd.Context()
		cache, err := store.OpenCache(ctx, cfg.Cache, core.SystemClock, observability.CLILogger)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to open cache")
		}
		defer func() { _ = cache.Close() }()

		purger, ok := cache.(store.Purger)
		if !ok {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "The %s cache expires entries itself; nothing to purge\n", store.Backend(cache))
			return nil
		}

		removed, err := purger.PurgeExpired(ctx)
		if err != nil {
			return errwrap.WrapDatabaseError(ctx, err, "failed to purge expired cache entries")
		}
		metrics.SetCachePurgeRemoved(removed)

		observability.CLILogger.Debug("Purged expired cache entries",
			zap.String("backend", store.Backend(cache)),
			zap.Int64("removed", removed))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", removed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}
