// Package provider turns upstream market-data APIs into ordered fallback
// cascades for each domain and resolves them through the engine.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/metrics"
)

const (
	defaultUserAgent   = "cryptozap/1 (+https://github.com/CryptoZapCommunity/crypto-zap-dash)"
	maxResponseBytes   = 4 << 20
	defaultHTTPTimeout = 15 * time.Second
)

// ErrMalformedResponse marks a 2xx body that is not valid JSON.
var ErrMalformedResponse = errors.New("upstream returned malformed JSON")

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Provider   string
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s responded with HTTP %d", e.Provider, e.StatusCode)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// request describes one upstream GET.
type request struct {
	provider string
	baseURL  string
	path     string
	query    url.Values
	headers  map[string]string
}

// fetcher issues upstream requests with pacing and size limits.
type fetcher struct {
	client    *http.Client
	pacer     *Pacer
	userAgent string
}

func (f *fetcher) getJSON(ctx context.Context, req request) (gjson.Result, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx, req.provider); err != nil {
			return gjson.Result{}, fmt.Errorf("%s pacing: %w", req.provider, err)
		}
	}

	endpoint, err := buildURL(req.baseURL, req.path, req.query)
	if err != nil {
		return gjson.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", f.agent())
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	client := f.client
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		metrics.RecordUpstreamRequest(req.provider, 0)
		return gjson.Result{}, fmt.Errorf("%s request failed: %w", req.provider, err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	metrics.RecordUpstreamRequest(req.provider, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return gjson.Result{}, &StatusError{
			Provider:   req.provider,
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s read body: %w", req.provider, err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%s: %w", req.provider, ErrMalformedResponse)
	}

	return gjson.ParseBytes(body), nil
}

func (f *fetcher) agent() string {
	if f != nil && strings.TrimSpace(f.userAgent) != "" {
		return f.userAgent
	}
	return defaultUserAgent
}

func buildURL(base, path string, query url.Values) (string, error) {
	parsed, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return "", fmt.Errorf("invalid upstream url: %w", err)
	}
	if len(query) > 0 {
		merged := parsed.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		parsed.RawQuery = merged.Encode()
	}
	return parsed.String(), nil
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if wait := time.Until(when); wait > 0 {
			return wait
		}
	}
	return 0
}

// Shared gjson readers. Upstreams disagree on whether numbers are strings.

func floatOf(r gjson.Result) float64 {
	if r.Type == gjson.String {
		v, _ := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		return v
	}
	return r.Float()
}

func stringOf(r gjson.Result) string {
	return strings.TrimSpace(r.String())
}

// timeOf reads RFC3339 strings, unix seconds, or unix milliseconds.
func timeOf(r gjson.Result) *time.Time {
	switch r.Type {
	case gjson.Number:
		n := r.Int()
		if n <= 0 {
			return nil
		}
		var t time.Time
		if n > 1e12 {
			t = time.UnixMilli(n).UTC()
		} else {
			t = time.Unix(n, 0).UTC()
		}
		return &t
	case gjson.String:
		value := strings.TrimSpace(r.Str)
		if value == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, value); err == nil {
				t = t.UTC()
				return &t
			}
		}
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return timeOf(gjson.Result{Type: gjson.Number, Num: float64(n), Raw: value})
		}
	}
	return nil
}

// shortID derives a stable identifier for upstream items that carry none.
func shortID(value string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(value)).String()[:8]
}
