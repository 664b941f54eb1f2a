package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
	apperrors "github.com/CryptoZapCommunity/crypto-zap-dash/internal/errors"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/server/handlers"
)

type staticFeeds struct{}

func (staticFeeds) Prices(context.Context, []string) engine.Resolution[[]core.Price] {
	return engine.Resolution[[]core.Price]{Source: core.SourceStatic, Index: -1, Payload: []core.Price{{Symbol: "BTC"}}}
}

func (staticFeeds) News(context.Context, string, int) engine.Resolution[[]core.NewsArticle] {
	return engine.Resolution[[]core.NewsArticle]{Source: core.SourceStatic, Index: -1, Payload: []core.NewsArticle{}}
}

func (staticFeeds) Economic(context.Context) engine.Resolution[[]core.EconomicEvent] {
	return engine.Resolution[[]core.EconomicEvent]{Source: core.SourceStatic, Index: -1, Payload: []core.EconomicEvent{}}
}

func (staticFeeds) Whales(context.Context, int) engine.Resolution[[]core.WhaleTransaction] {
	return engine.Resolution[[]core.WhaleTransaction]{Source: core.SourceStatic, Index: -1, Payload: []core.WhaleTransaction{}}
}

func (staticFeeds) Airdrops(context.Context, string) engine.Resolution[[]core.Airdrop] {
	return engine.Resolution[[]core.Airdrop]{Source: core.SourceStatic, Index: -1, Payload: []core.Airdrop{}}
}

func (staticFeeds) Trending(context.Context) engine.Resolution[[]core.Price] {
	return engine.Resolution[[]core.Price]{Source: core.SourceStatic, Index: -1, Payload: []core.Price{}}
}

func (staticFeeds) Indicators(context.Context) engine.Resolution[[]core.Indicator] {
	return engine.Resolution[[]core.Indicator]{Source: core.SourceStatic, Index: -1, Payload: []core.Indicator{}}
}

func (staticFeeds) RateHistory(context.Context, int) engine.Resolution[[]core.RatePoint] {
	return engine.Resolution[[]core.RatePoint]{Source: core.SourceStatic, Index: -1, Payload: []core.RatePoint{}}
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(Options{})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServerWithoutFeedsHasNoAPIRoutes(t *testing.T) {
	srv := New(Options{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerServesFeeds(t *testing.T) {
	srv := New(Options{Feeds: staticFeeds{}})

	for _, path := range []string{"/api/prices", "/api/news", "/api/economic-calendar", "/api/whale-transactions", "/api/airdrops",
		"/api/trending-coins", "/api/fred/indicators", "/api/fred/rate-history"} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, core.SourceStatic, rec.Header().Get(handlers.DataSourceHeader), path)
	}
}

func TestServerRateLimitsAPIButNotHealth(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := engine.NewRateLimiter(1, 10, func() time.Time { return now })

	health := handlers.NewHealthManager("test")
	srv := New(Options{
		Feeds:       staticFeeds{},
		Limiter:     limiter,
		ExemptPaths: []string{"/health*", "/version"},
		Health:      health,
	})

	serve := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, serve("/api/prices").Code)

	rejected := serve("/api/news")
	require.Equal(t, http.StatusTooManyRequests, rejected.Code)
	assert.Equal(t, "60", rejected.Header().Get("Retry-After"))

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rejected.Body).Decode(&body))
	assert.Equal(t, "RATE_LIMITED", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve("/health").Code)
		assert.Equal(t, http.StatusOK, serve("/version").Code)
	}
}

func TestServerRecoversFromPanickingFeed(t *testing.T) {
	srv := New(Options{Feeds: panickingFeeds{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type panickingFeeds struct {
	staticFeeds
}

func (panickingFeeds) Prices(context.Context, []string) engine.Resolution[[]core.Price] {
	panic("boom")
}
