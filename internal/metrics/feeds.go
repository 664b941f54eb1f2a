package metrics

import (
	"strconv"
	"time"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
)

// Feed and admission metrics
const (
	FeedResolutionsTotal    = "feed_resolutions_total"
	FeedResolutionDuration  = "feed_resolution_duration_ms"
	FeedSourceFailuresTotal = "feed_source_failures_total"
	RateLimitDecisionsTotal = "ratelimit_decisions_total"
	RateLimitTrackedClients = "ratelimit_tracked_clients"
	UpstreamRequestsTotal   = "upstream_requests_total"
	CacheLastPurgeRemoved   = "cache_last_purge_removed"
)

// RecordFeedResolution records which source answered a domain request.
func RecordFeedResolution(domain, source string, fromCache bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	_ = observability.TelemetrySystem.Counter(
		FeedResolutionsTotal,
		1,
		map[string]string{
			"domain":     domain,
			"source":     source,
			"from_cache": strconv.FormatBool(fromCache),
		},
	)

	_ = observability.TelemetrySystem.Histogram(
		FeedResolutionDuration,
		duration,
		map[string]string{
			"domain": domain,
		},
	)
}

// RecordSourceFailure records one failed source attempt within a cascade.
func RecordSourceFailure(domain, source string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			FeedSourceFailuresTotal,
			1,
			map[string]string{
				"domain": domain,
				"source": source,
			},
		)
	}
}

// RecordRateLimitDecision records an inbound admission outcome.
func RecordRateLimitDecision(allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitDecisionsTotal,
			1,
			map[string]string{
				"outcome": outcome,
			},
		)
	}
}

// SetRateLimitTrackedClients reports how many clients the limiter remembers.
func SetRateLimitTrackedClients(count int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			RateLimitTrackedClients,
			float64(count),
			nil,
		)
	}
}

// RecordUpstreamRequest records an outbound provider call by status class.
func RecordUpstreamRequest(provider string, status int) {
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			UpstreamRequestsTotal,
			1,
			map[string]string{
				"provider": provider,
				"status":   class,
			},
		)
	}
}

// SetCachePurgeRemoved records how many rows the last expiry purge removed.
func SetCachePurgeRemoved(removed int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(
			CacheLastPurgeRemoved,
			float64(removed),
			nil,
		)
	}
}
