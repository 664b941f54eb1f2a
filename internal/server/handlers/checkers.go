package handlers

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
)

// ErrDegraded marks a check that failed without making the service unusable.
var ErrDegraded = stderrors.New("degraded")

// Pinger is implemented by cache backends that can be pinged.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheChecker pings the payload cache. A cache outage only turns lookups
// into misses, so failures report degraded rather than unhealthy.
type CacheChecker struct {
	Cache any
}

// CheckHealth implements HealthChecker.
func (c CacheChecker) CheckHealth(ctx context.Context) error {
	pinger, ok := c.Cache.(Pinger)
	if !ok {
		return nil
	}
	if err := pinger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: cache: %v", ErrDegraded, err)
	}
	return nil
}

// TelemetryChecker reports degraded when metrics were requested but the
// telemetry system is not running.
type TelemetryChecker struct {
	Required bool
}

// CheckHealth implements HealthChecker.
func (c TelemetryChecker) CheckHealth(context.Context) error {
	if c.Required && observability.TelemetrySystem == nil {
		return fmt.Errorf("%w: telemetry not initialized", ErrDegraded)
	}
	return nil
}
