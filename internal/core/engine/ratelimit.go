package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

// UnknownClient is the shared bucket for requests without a usable identity.
const UnknownClient = "unknown"

// RateLimit represents a sliding window and its request ceiling.
type RateLimit struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// DefaultLimits mirrors the public API defaults: 60/minute and 1000/hour.
var DefaultLimits = []RateLimit{
	{RequestsPerWindow: 60, WindowDuration: time.Minute},
	{RequestsPerWindow: 1000, WindowDuration: time.Hour},
}

// RateLimiter enforces per-client sliding-window admission across one or more
// independent windows. Each client keeps a single ordered slice of admitted
// timestamps; every window counts its own survivors against its own cutoff.
type RateLimiter struct {
	Limits []RateLimit
	Clock  core.Clock

	mu      sync.Mutex
	clients map[string][]time.Time
}

// NewRateLimiter builds a limiter with minute and hour ceilings. Non-positive
// values fall back to DefaultLimits.
func NewRateLimiter(perMinute, perHour int, clock core.Clock) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultLimits[0].RequestsPerWindow
	}
	if perHour <= 0 {
		perHour = DefaultLimits[1].RequestsPerWindow
	}
	return &RateLimiter{
		Limits: []RateLimit{
			{RequestsPerWindow: perMinute, WindowDuration: time.Minute},
			{RequestsPerWindow: perHour, WindowDuration: time.Hour},
		},
		Clock: clock,
	}
}

// Admit decides whether clientID may proceed. An admitted request is recorded;
// a rejected one is not and therefore never consumes quota.
func (r *RateLimiter) Admit(clientID string) core.Decision {
	if r == nil {
		return core.Decision{Allowed: true}
	}

	key := normalizeClient(clientID)
	limits := r.limits()

	// Read the clock under the lock so appended stamps stay ordered.
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Clock.Now()

	if r.clients == nil {
		r.clients = make(map[string][]time.Time)
	}

	// Stamps must never decrease; a wall clock stepped backwards is pinned
	// to the newest recorded stamp.
	if prev := r.clients[key]; len(prev) > 0 && now.Before(prev[len(prev)-1]) {
		now = prev[len(prev)-1]
	}

	stamps := prune(r.clients[key], now, longestWindow(limits))

	decision := core.Decision{Allowed: true, Remaining: -1}
	for _, limit := range limits {
		inWindow := countSince(stamps, now.Add(-limit.WindowDuration))
		if inWindow >= limit.RequestsPerWindow {
			r.store(key, stamps)
			return core.Decision{
				Allowed:    false,
				Limit:      limit.RequestsPerWindow,
				Remaining:  0,
				RetryAfter: retryAfter(stamps, now, limit),
				Window:     limit.WindowDuration,
			}
		}

		remaining := limit.RequestsPerWindow - inWindow - 1
		if decision.Remaining < 0 || remaining < decision.Remaining {
			decision.Limit = limit.RequestsPerWindow
			decision.Remaining = remaining
			decision.Window = limit.WindowDuration
		}
	}

	r.store(key, append(stamps, now))
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	return decision
}

// Remaining returns how many more requests clientID may issue right now,
// taking the tightest window.
func (r *RateLimiter) Remaining(clientID string) int {
	if r == nil {
		return 0
	}

	key := normalizeClient(clientID)
	limits := r.limits()

	r.mu.Lock()
	now := r.Clock.Now()
	stamps := prune(r.clients[key], now, longestWindow(limits))
	r.store(key, stamps)
	r.mu.Unlock()

	remaining := -1
	for _, limit := range limits {
		left := limit.RequestsPerWindow - countSince(stamps, now.Add(-limit.WindowDuration))
		if left < 0 {
			left = 0
		}
		if remaining < 0 || left < remaining {
			remaining = left
		}
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Sweep prunes every client and forgets those with no surviving timestamps.
// It returns the number of clients removed.
func (r *RateLimiter) Sweep() int {
	if r == nil {
		return 0
	}

	horizon := longestWindow(r.limits())

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.Clock.Now()

	removed := 0
	for key, stamps := range r.clients {
		stamps = prune(stamps, now, horizon)
		if len(stamps) == 0 {
			delete(r.clients, key)
			removed++
			continue
		}
		r.clients[key] = stamps
	}
	return removed
}

// Clients reports how many client windows are currently tracked.
func (r *RateLimiter) Clients() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// StartJanitor runs Sweep every interval until ctx is done.
func (r *RateLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if r == nil || interval <= 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

func (r *RateLimiter) limits() []RateLimit {
	if len(r.Limits) == 0 {
		return DefaultLimits
	}
	return r.Limits
}

// store writes stamps back, dropping empty windows so idle clients vanish.
func (r *RateLimiter) store(key string, stamps []time.Time) {
	if len(stamps) == 0 {
		delete(r.clients, key)
		return
	}
	r.clients[key] = stamps
}

func normalizeClient(clientID string) string {
	key := strings.TrimSpace(clientID)
	if key == "" {
		return UnknownClient
	}
	return key
}

func longestWindow(limits []RateLimit) time.Duration {
	var longest time.Duration
	for _, limit := range limits {
		if limit.WindowDuration > longest {
			longest = limit.WindowDuration
		}
	}
	return longest
}

// prune drops timestamps at or before now-horizon. Stamps are sorted, so the
// survivors are a suffix.
func prune(stamps []time.Time, now time.Time, horizon time.Duration) []time.Time {
	if len(stamps) == 0 {
		return nil
	}
	idx := firstAfter(stamps, now.Add(-horizon))
	if idx == 0 {
		return stamps
	}
	if idx >= len(stamps) {
		return nil
	}
	kept := make([]time.Time, len(stamps)-idx)
	copy(kept, stamps[idx:])
	return kept
}

func countSince(stamps []time.Time, cutoff time.Time) int {
	return len(stamps) - firstAfter(stamps, cutoff)
}

func firstAfter(stamps []time.Time, cutoff time.Time) int {
	return sort.Search(len(stamps), func(i int) bool {
		return stamps[i].After(cutoff)
	})
}

// retryAfter is the time until enough in-window stamps age out for one more
// request to fit under limit.
func retryAfter(stamps []time.Time, now time.Time, limit RateLimit) time.Duration {
	inWindow := stamps[firstAfter(stamps, now.Add(-limit.WindowDuration)):]
	excess := len(inWindow) - limit.RequestsPerWindow
	if excess < 0 || len(inWindow) == 0 {
		return 0
	}
	wait := inWindow[excess].Add(limit.WindowDuration).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}
