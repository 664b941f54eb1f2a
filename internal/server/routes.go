package server

import (
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/appid"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	if health == nil {
		health = handlers.GetHealthManager()
	}
	if health != nil {
		s.router.Get("/health", health.HealthHandler)
		s.router.Get("/health/live", health.LivenessHandler)
		s.router.Get("/health/ready", health.ReadinessHandler)
		s.router.Get("/health/startup", health.StartupHandler)
	} else {
		s.router.Get("/health", handlers.HealthHandler)
		s.router.Get("/health/live", handlers.LivenessHandler)
		s.router.Get("/health/ready", handlers.ReadinessHandler)
		s.router.Get("/health/startup", handlers.StartupHandler)
	}

	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	if s.opts.Feeds != nil {
		feeds := handlers.NewFeedHandler(s.opts.Feeds)
		s.router.Route("/api", func(r chi.Router) {
			r.Get("/prices", feeds.Prices)
			r.Get("/news", feeds.News)
			r.Get("/economic-calendar", feeds.EconomicCalendar)
			r.Get("/whale-transactions", feeds.WhaleTransactions)
			r.Get("/airdrops", feeds.Airdrops)
			r.Get("/trending-coins", feeds.TrendingCoins)
			r.Get("/fred/indicators", feeds.FREDIndicators)
			r.Get("/fred/rate-history", feeds.RateHistory)
		})
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	tokenVar := appid.Get().EnvVar("ADMIN_TOKEN")
	adminToken := os.Getenv(tokenVar)
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + tokenVar + " set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
