package provider

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

func TestPlanDefaults(t *testing.T) {
	planned := Plan(&config.Config{}, core.DomainPrices)

	require.Len(t, planned, 3)
	assert.Equal(t, SourceCoinGecko, planned[0].Name)
	assert.Equal(t, "no api key", planned[0].Skipped)
	assert.False(t, planned[0].Active())

	public := planned[1]
	assert.True(t, public.Active())
	assert.Equal(t, DefaultBaseURLs[ProviderCoinGecko], public.BaseURL)
	assert.Equal(t, publicTimeout, public.Timeout)
	assert.Equal(t, 60*time.Second, public.TTL)
}

func TestPlanOverrides(t *testing.T) {
	disabled := false
	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{
			ProviderNewsAPI: {APIKey: "k", BaseURL: "http://news.local"},
		},
		Feeds: config.FeedsConfig{
			Sources: map[string]config.SourceConfig{
				SourceNewsAPI:           {Timeout: 2 * time.Second, TTL: time.Minute},
				SourceCryptoCompareNews: {Enabled: &disabled},
			},
		},
	}

	planned := Plan(cfg, core.DomainNews)

	require.Len(t, planned, 3)
	newsAPI := planned[0]
	assert.True(t, newsAPI.Active())
	assert.Equal(t, "http://news.local", newsAPI.BaseURL)
	assert.Equal(t, 2*time.Second, newsAPI.Timeout)
	assert.Equal(t, time.Minute, newsAPI.TTL)

	assert.Equal(t, "no api key", planned[1].Skipped)
	assert.Equal(t, "disabled", planned[2].Skipped)
}

func TestPlanKeyedTimeout(t *testing.T) {
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{ProviderFRED: {APIKey: "k"}}}

	planned := Plan(cfg, core.DomainEconomic)

	require.Len(t, planned, 2)
	assert.Equal(t, keyedTimeout, planned[1].Timeout)
	assert.Equal(t, 900*time.Second, planned[1].TTL)
}

func TestCatalogCoversEveryDomain(t *testing.T) {
	for _, domain := range core.Domains {
		assert.NotEmpty(t, Plan(nil, domain), "domain %s has no sources", domain)
		assert.Positive(t, DomainTTLs[domain])
	}
	for _, spec := range Catalog {
		assert.NotEmpty(t, DefaultBaseURLs[spec.Provider], "provider %s has no base url", spec.Provider)
	}
}

func TestPacerUnbudgetedProviderIsUnpaced(t *testing.T) {
	pacer := NewPacer(map[string]int{"paced": 60, "zero": 0})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 100; i++ {
		require.NoError(t, pacer.Wait(ctx, "other"))
		require.NoError(t, pacer.Wait(ctx, "zero"))
	}
	assert.Equal(t, 60, pacer.Budget("paced"))
	assert.Zero(t, pacer.Budget("zero"))
}

func TestPacerBudgetedProviderRunsOutOfBurst(t *testing.T) {
	pacer := NewPacer(map[string]int{"paced": 30})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// 30 per minute allows a burst of 3, then one request every 2s.
	assert.NoError(t, pacer.Wait(ctx, "paced"))
	assert.NoError(t, pacer.Wait(ctx, "paced"))
	assert.NoError(t, pacer.Wait(ctx, "paced"))
	assert.Error(t, pacer.Wait(ctx, "paced"))
}

func TestPacerWaitHonoursContext(t *testing.T) {
	pacer := NewPacer(map[string]int{"slow": 1})
	require.NoError(t, pacer.Wait(context.Background(), "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, pacer.Wait(ctx, "slow"))
	assert.NoError(t, pacer.Wait(context.Background(), "unpaced"))

	var nilPacer *Pacer
	assert.NoError(t, nilPacer.Wait(ctx, "slow"))
}

func TestBuildURL(t *testing.T) {
	got, err := buildURL("https://api.example.com/v3/", "/coins/markets", url.Values{"ids": {"bitcoin"}})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v3/coins/markets?ids=bitcoin", got)

	got, err = buildURL("https://api.example.com?fixed=1", "", url.Values{"q": {"a b"}})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com?fixed=1&q=a+b", got)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 120*time.Second, parseRetryAfter("120"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("-5"))
	assert.Zero(t, parseRetryAfter("Mon, 01 Jan 2001 00:00:00 GMT"))

	future := time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)
	assert.InDelta(t, time.Hour.Seconds(), parseRetryAfter(future).Seconds(), 5)
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Provider: "coingecko", StatusCode: 429, RetryAfter: time.Minute}
	assert.Equal(t, "coingecko responded with HTTP 429 (retry after 1m0s)", err.Error())

	var target *StatusError
	wrapped := errors.Join(errors.New("cascade"), err)
	require.ErrorAs(t, wrapped, &target)
	assert.Equal(t, 429, target.StatusCode)
}

func TestMalformedResponse(t *testing.T) {
	u, srv := newUpstream(t)
	u.handle("/broken", jsonBody(`{"not json`))

	f := &fetcher{}
	_, err := f.getJSON(context.Background(), request{provider: "test", baseURL: srv.URL, path: "/broken"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestFetcherSendsUserAgent(t *testing.T) {
	u, srv := newUpstream(t)
	var agent string
	u.handle("/ok", func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		jsonBody(`{}`)(w, r)
	})

	_, err := (&fetcher{userAgent: "cryptozap-test/1"}).getJSON(context.Background(), request{provider: "test", baseURL: srv.URL, path: "/ok"})
	require.NoError(t, err)
	assert.Equal(t, "cryptozap-test/1", agent)

	_, err = (&fetcher{}).getJSON(context.Background(), request{provider: "test", baseURL: srv.URL, path: "/ok"})
	require.NoError(t, err)
	assert.Equal(t, defaultUserAgent, agent)
}
