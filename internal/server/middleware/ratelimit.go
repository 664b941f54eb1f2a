package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/metrics"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
)

// Rate limit response headers
const (
	HeaderRetryAfter         = "Retry-After"
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
)

// RateLimitedMessage is returned to callers that exceed their quota.
const RateLimitedMessage = "Rate limit exceeded. Please try again later."

// Admitter decides whether a client may proceed.
type Admitter interface {
	Admit(clientID string) core.Decision
}

// ClientID identifies the caller: the first X-Forwarded-For entry, else the
// host part of RemoteAddr, else "unknown".
func ClientID(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}

// RateLimit admits each request through limiter before calling next.
// Requests whose path matches an exempt pattern skip admission; a trailing *
// matches any suffix.
func RateLimit(limiter Admitter, exempt []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isExempt(r.URL.Path, exempt) {
				next.ServeHTTP(w, r)
				return
			}

			client := ClientID(r)
			decision := limiter.Admit(client)
			metrics.RecordRateLimitDecision(decision.Allowed)

			w.Header().Set(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
			w.Header().Set(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retrySeconds := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retrySeconds < 1 {
				retrySeconds = 1
			}
			w.Header().Set(HeaderRetryAfter, strconv.Itoa(retrySeconds))

			if observability.ServerLogger != nil {
				observability.ServerLogger.Info("Request rejected by rate limiter",
					zap.String("client", client),
					zap.String("path", r.URL.Path),
					zap.Int("limit", decision.Limit),
					zap.Duration("window", decision.Window),
					zap.Int("retry_after_s", retrySeconds),
					zap.String("requestID", GetRequestID(r.Context())))
			}

			envelope := errors.NewErrorEnvelope("RATE_LIMITED", RateLimitedMessage).
				WithCorrelationID(GetRequestID(r.Context()))
			envelope, _ = envelope.WithContext(map[string]interface{}{
				"retry_after_seconds": retrySeconds,
				"limit":               decision.Limit,
				"window_seconds":      int(decision.Window.Seconds()),
			})
			writeErrorResponse(w, envelope, http.StatusTooManyRequests)
		})
	}
}

func isExempt(path string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
			if strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if path == pattern {
			return true
		}
	}
	return false
}
