package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
	errwrap "github.com/CryptoZapCommunity/crypto-zap-dash/internal/errors"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/metrics"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/server"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil // Signal handlers are registered before the server starts
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Every /api request is admitted by the per-client rate limiter, then resolved
through the domain's fallback cascade with cache-aside memoization.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (logging level only; restart for the rest)

The server will cleanly shut down the HTTP server, close the cache and flush
logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging, namespace)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(identity.BinaryName, cfg.Metrics.Port, namespace); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
		}

		logger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		// Background maintenance stops once shutdown begins.
		ctx, stopBackground := context.WithCancel(context.Background())
		defer stopBackground()

		feeds, err := openFeeds(ctx, cfg, logger)
		if err != nil {
			logger.Error("Failed to open feed service", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "feed service initialization failed")
		}

		var limiter *engine.RateLimiter
		if cfg.RateLimit.Enabled {
			limiter = engine.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.PerHour, nil)
			limiter.StartJanitor(ctx, cfg.RateLimit.CleanupInterval)
			logger.Info("Rate limiting enabled",
				zap.Int("per_minute", cfg.RateLimit.PerMinute),
				zap.Int("per_hour", cfg.RateLimit.PerHour),
				zap.Strings("exempt_paths", cfg.RateLimit.ExemptPaths))
		}

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		hm.RegisterChecker("telemetry", handlers.TelemetryChecker{Required: cfg.Metrics.Enabled})
		hm.RegisterChecker("cache", handlers.CacheChecker{Cache: feeds.Cache})

		handlers.SetAppIdentity(identity)

		opts := server.Options{
			Server:      cfg.Server,
			Feeds:       feeds.Service,
			ExemptPaths: cfg.RateLimit.ExemptPaths,
			Health:      hm,
		}
		if limiter != nil {
			opts.Limiter = limiter
		}
		srv := server.New(opts)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the cache once requests have drained
		signals.OnShutdown(func(ctx context.Context) error {
			stopBackground()
			if err := feeds.Close(); err != nil {
				logger.Warn("Cache close returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					logger.Error("Failed to reload config file",
						zap.String("file", viper.ConfigFileUsed()),
						zap.Error(err))
					return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
				}
			}

			reloaded, err := loadConfig()
			if err != nil {
				logger.Error("Reloaded configuration is invalid", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			// Only the log level applies live. Limits, providers, cache and
			// listener settings take effect on restart.
			observability.SetServerLogLevel(reloaded.Logging.Level)
			logger.Info("Configuration reloaded",
				zap.String("file", viper.ConfigFileUsed()),
				zap.String("log_level", reloaded.Logging.Level))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		startedAt := time.Now()
		metrics.SetServerStartTime(startedAt.Unix())
		go reportRuntimeGauges(ctx, startedAt, limiter)

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// reportRuntimeGauges refreshes uptime and limiter gauges until ctx is done.
func reportRuntimeGauges(ctx context.Context, startedAt time.Time, limiter *engine.RateLimiter) {
	ticker := time.NewTicker(uptimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetServerUptime(int64(time.Since(startedAt).Seconds()))
			metrics.SetRateLimitTrackedClients(limiter.Clients())
		}
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
