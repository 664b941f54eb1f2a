package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces outbound calls per provider so a burst of inbound misses
// cannot exhaust an upstream quota. Providers without a budget are unpaced.
type Pacer struct {
	mu       sync.Mutex
	budgets  map[string]int
	limiters map[string]*rate.Limiter
}

// NewPacer builds a pacer from requests-per-minute budgets keyed by provider.
func NewPacer(budgets map[string]int) *Pacer {
	copied := make(map[string]int, len(budgets))
	for name, perMinute := range budgets {
		if perMinute > 0 {
			copied[name] = perMinute
		}
	}
	return &Pacer{budgets: copied, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until provider may issue one request or ctx ends.
func (p *Pacer) Wait(ctx context.Context, provider string) error {
	limiter := p.limiter(provider)
	if limiter == nil {
		return nil
	}
	return limiter.Wait(ctx)
}

// Budget returns the requests-per-minute budget for provider, or 0.
func (p *Pacer) Budget(provider string) int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budgets[provider]
}

func (p *Pacer) limiter(provider string) *rate.Limiter {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	perMinute, ok := p.budgets[provider]
	if !ok {
		return nil
	}
	if limiter, ok := p.limiters[provider]; ok {
		return limiter
	}

	burst := perMinute / 10
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	p.limiters[provider] = limiter
	return limiter
}
