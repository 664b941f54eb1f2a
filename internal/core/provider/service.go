package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/metrics"
)

// Options configures a Service.
type Options struct {
	Config     *config.Config
	Cache      engine.Cache
	HTTPClient *http.Client
	Logger     *logging.Logger
	Clock      core.Clock
	UserAgent  string
}

// Service resolves each domain through its fallback cascade. Sources are
// rebuilt on every call from the current configuration.
type Service struct {
	Config       *config.Config
	Orchestrator *engine.Orchestrator
	Logger       *logging.Logger
	Clock        core.Clock

	datasets *Datasets
	fetch    *fetcher
}

// NewService wires a Service from opts.
func NewService(opts Options) (*Service, error) {
	datasets, err := StaticDatasets()
	if err != nil {
		return nil, fmt.Errorf("load static datasets: %w", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}

	budgets := make(map[string]int, len(cfg.Providers))
	for name, provider := range cfg.Providers {
		budgets[name] = provider.RequestsPerMinute
	}

	return &Service{
		Config: cfg,
		Orchestrator: &engine.Orchestrator{
			Cache:    opts.Cache,
			Logger:   opts.Logger,
			Clock:    opts.Clock,
			Collapse: cfg.Feeds.CollapseConcurrent,
		},
		Logger:   opts.Logger,
		Clock:    opts.Clock,
		datasets: datasets,
		fetch: &fetcher{
			client:    opts.HTTPClient,
			pacer:     NewPacer(budgets),
			userAgent: opts.UserAgent,
		},
	}, nil
}

// Datasets exposes the static payloads.
func (s *Service) Datasets() *Datasets {
	return s.datasets
}

// fetchFunc fetches one domain payload from one planned source.
type fetchFunc[T any] func(ctx context.Context, src PlannedSource) (T, error)

// buildSources turns the active plan for domain into engine sources, in
// catalog order.
func buildSources[T any](s *Service, domain core.Domain, fetchers map[string]fetchFunc[T], valid func(T) bool) []engine.Source[T] {
	var sources []engine.Source[T]
	for _, planned := range Plan(s.Config, domain) {
		if !planned.Active() {
			continue
		}
		fetch, ok := fetchers[planned.Name]
		if !ok {
			continue
		}

		src := planned
		sources = append(sources, engine.Source[T]{
			Name:    src.Name,
			Timeout: src.Timeout,
			TTL:     src.TTL,
			Valid:   valid,
			Fetch: func(ctx context.Context) (T, error) {
				return fetch(ctx, src)
			},
		})
	}
	return sources
}

// record logs and meters one resolution.
func record[T any](s *Service, domain core.Domain, key string, res engine.Resolution[T], items int) {
	for _, attempt := range res.Attempts {
		if attempt.Err != nil {
			metrics.RecordSourceFailure(string(domain), attempt.Source)
		}
	}
	metrics.RecordFeedResolution(string(domain), res.Source, res.FromCache, res.Elapsed)

	if s.Logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("domain", string(domain)),
		zap.String("cache_key", key),
		zap.String("source", res.Source),
		zap.Bool("from_cache", res.FromCache),
		zap.Bool("shared", res.Shared),
		zap.Int("attempts", len(res.Attempts)),
		zap.Int("items", items),
		zap.Duration("elapsed", res.Elapsed.Round(time.Millisecond)),
	}
	switch {
	case res.Abandoned:
		s.Logger.Debug("Feed resolution abandoned by caller", fields...)
	case res.Source == core.SourceStatic:
		s.Logger.Warn("Feed served from static dataset", fields...)
	default:
		s.Logger.Debug("Feed resolved", fields...)
	}
}
