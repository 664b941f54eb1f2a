package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/provider"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/store"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/server"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/server/handlers"
)

const marketsBody = `[
  {"id":"bitcoin","symbol":"btc","name":"Bitcoin","current_price":43250.5,"price_change_percentage_24h":2.5,"market_cap":847000000000,"total_volume":25000000000},
  {"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":2650.25,"price_change_percentage_24h":-1.2,"market_cap":318000000000,"total_volume":15000000000}
]`

type feedEnvelope struct {
	Success bool              `json:"success"`
	Source  string            `json:"source"`
	Data    []json.RawMessage `json:"data"`
}

// newFeedStack wires the real feed service over a fake upstream that only
// serves CoinGecko markets; every other upstream path fails.
func newFeedStack(t *testing.T, perMinute int) (*httptest.Server, *http.Client, *atomic.Int32) {
	t.Helper()

	var marketHits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" || r.URL.Query().Get("order") != "market_cap_desc" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		marketHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, marketsBody)
	}))
	t.Cleanup(upstream.Close)

	providers := map[string]config.ProviderConfig{}
	for name := range provider.DefaultBaseURLs {
		providers[name] = config.ProviderConfig{BaseURL: upstream.URL}
	}
	cfg := &config.Config{
		Providers: providers,
		Feeds:     config.FeedsConfig{CollapseConcurrent: true},
	}

	cache := store.NewMemoryCache(nil)
	t.Cleanup(func() { _ = cache.Close() })

	service, err := provider.NewService(provider.Options{
		Config: cfg,
		Cache:  cache,
		Logger: observability.ServerLogger,
	})
	require.NoError(t, err)

	health := handlers.NewHealthManager("test")
	health.RegisterChecker("cache", handlers.CacheChecker{Cache: cache})

	ts, client := newTestServer(t, server.Options{
		Feeds:       service,
		Limiter:     engine.NewRateLimiter(perMinute, 1000, nil),
		ExemptPaths: []string{"/health*", "/metrics", "/version"},
		Health:      health,
	}, nil)
	return ts, client, &marketHits
}

func getFeed(t *testing.T, client *http.Client, url string) (*http.Response, feedEnvelope) {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	var body feedEnvelope
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestFeeds_LiveThenCachedThenRateLimited(t *testing.T) {
	observability.InitServerLogger("test", config.LoggingConfig{Level: "error", Profile: "simple"})

	ts, client, hits := newFeedStack(t, 2)

	resp, body := getFeed(t, client, ts.URL+"/api/prices?symbols=btc,eth")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, provider.SourceCoinGeckoPublic, resp.Header.Get(handlers.DataSourceHeader))
	assert.True(t, body.Success)
	assert.Len(t, body.Data, 2)

	resp, body = getFeed(t, client, ts.URL+"/api/prices?symbols=ETH,BTC")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.SourceCache, body.Source)
	assert.Len(t, body.Data, 2)
	assert.Equal(t, int32(1), hits.Load())

	resp, _ = getFeed(t, client, ts.URL+"/api/prices")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp, _ = getFeed(t, client, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFeeds_StaticWhenUpstreamsFail(t *testing.T) {
	observability.InitServerLogger("test", config.LoggingConfig{Level: "error", Profile: "simple"})

	ts, client, _ := newFeedStack(t, 100)

	for _, path := range []string{"/api/news?limit=3", "/api/economic-calendar", "/api/whale-transactions?hours=6", "/api/airdrops?status=upcoming", "/api/fred/indicators", "/api/fred/rate-history?months=6"} {
		resp, body := getFeed(t, client, ts.URL+path)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, core.SourceStatic, body.Source, path)
		assert.True(t, body.Success, path)
	}

	resp, body := getFeed(t, client, ts.URL+"/api/news?limit=3")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.SourceStatic, body.Source, "static payloads are never cached")
	assert.LessOrEqual(t, len(body.Data), 3)

	resp, body = getFeed(t, client, ts.URL+"/api/fred/rate-history?months=6")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body.Data, 6)
}

func TestFeeds_TrendingStaticMovers(t *testing.T) {
	observability.InitServerLogger("test", config.LoggingConfig{Level: "error", Profile: "simple"})

	ts, client, _ := newFeedStack(t, 100)

	resp, err := client.Get(ts.URL + "/api/trending-coins")
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, core.SourceStatic, resp.Header.Get(handlers.DataSourceHeader))

	var body struct {
		Data core.Movers `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Data.Gainers)
	require.NotEmpty(t, body.Data.Losers)
	for _, coin := range body.Data.Gainers {
		assert.Positive(t, coin.Change24h, coin.Symbol)
	}
	for _, coin := range body.Data.Losers {
		assert.Negative(t, coin.Change24h, coin.Symbol)
	}
}

func TestFeeds_InvalidParameters(t *testing.T) {
	ts, client, _ := newFeedStack(t, 100)

	for _, path := range []string{"/api/news?limit=0", "/api/whale-transactions?hours=500", "/api/airdrops?status=paused", "/api/fred/rate-history?months=0", "/api/fred/rate-history?months=121"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
	}
}
