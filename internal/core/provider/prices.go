package provider

import (
	"context"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// defaultPriceSymbols is the basket used by sources that need explicit
// symbols when the caller asked for the top of the market.
var defaultPriceSymbols = []string{"BTC", "ETH", "SOL", "ADA", "DOT", "LINK", "UNI", "LTC", "XRP", "BCH"}

const maxPriceSymbols = 50

// NormalizeSymbols upper-cases, trims, dedups and sorts symbols.
func NormalizeSymbols(symbols []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, raw := range symbols {
		for _, part := range strings.Split(raw, ",") {
			symbol := strings.ToUpper(strings.TrimSpace(part))
			if symbol == "" || seen[symbol] {
				continue
			}
			seen[symbol] = true
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	if len(out) > maxPriceSymbols {
		out = out[:maxPriceSymbols]
	}
	return out
}

// PricesKey is the cache key for a price request.
func PricesKey(symbols []string) string {
	if len(symbols) == 0 {
		return "prices:TOP"
	}
	return "prices:" + strings.Join(symbols, ",")
}

// Prices resolves market snapshots for symbols, or the top of the market when
// symbols is empty.
func (s *Service) Prices(ctx context.Context, symbols []string) engine.Resolution[[]core.Price] {
	symbols = NormalizeSymbols(symbols)
	key := PricesKey(symbols)

	fetchers := map[string]fetchFunc[[]core.Price]{
		SourceCoinGecko: func(ctx context.Context, src PlannedSource) ([]core.Price, error) {
			return s.coinGeckoMarkets(ctx, src, symbols)
		},
		SourceCoinGeckoPublic: func(ctx context.Context, src PlannedSource) ([]core.Price, error) {
			return s.coinGeckoMarkets(ctx, src, symbols)
		},
		SourceCryptoComparePublic: func(ctx context.Context, src PlannedSource) ([]core.Price, error) {
			return s.cryptoComparePrices(ctx, src, symbols)
		},
	}

	res := engine.Resolve(ctx, s.Orchestrator, key,
		buildSources(s, core.DomainPrices, fetchers, engine.NonEmpty[[]core.Price]),
		s.datasets.PricesFor(symbols))
	record(s, core.DomainPrices, key, res, len(res.Payload))
	return res
}

func (s *Service) coinGeckoMarkets(ctx context.Context, src PlannedSource, symbols []string) ([]core.Price, error) {
	query := url.Values{
		"vs_currency":             {"usd"},
		"order":                   {"market_cap_desc"},
		"per_page":                {"50"},
		"page":                    {"1"},
		"price_change_percentage": {"24h"},
	}
	if len(symbols) > 0 {
		query.Set("symbols", strings.ToLower(strings.Join(symbols, ",")))
	}

	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/coins/markets",
		query:    query,
		headers:  coinGeckoHeaders(src),
	})
	if err != nil {
		return nil, err
	}
	return parseCoinGeckoMarkets(doc, symbols), nil
}

func (s *Service) cryptoComparePrices(ctx context.Context, src PlannedSource, symbols []string) ([]core.Price, error) {
	basket := symbols
	if len(basket) == 0 {
		basket = defaultPriceSymbols
	}

	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/data/pricemultifull",
		query: url.Values{
			"fsyms": {strings.Join(basket, ",")},
			"tsyms": {"USD"},
		},
		headers: apiKeyHeader("authorization", src.apiKey, "Apikey "),
	})
	if err != nil {
		return nil, err
	}
	return parseCryptoComparePrices(doc, basket), nil
}

func coinGeckoHeaders(src PlannedSource) map[string]string {
	// The public source never sends the key.
	if !src.Keyed {
		return nil
	}
	return apiKeyHeader("x-cg-demo-api-key", src.apiKey, "")
}

func apiKeyHeader(name, key, prefix string) map[string]string {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	return map[string]string{name: prefix + key}
}

func parseCoinGeckoMarkets(doc gjson.Result, symbols []string) []core.Price {
	wanted := symbolSet(symbols)
	prices := []core.Price{}
	doc.ForEach(func(_, coin gjson.Result) bool {
		symbol := strings.ToUpper(stringOf(coin.Get("symbol")))
		if symbol == "" || (len(wanted) > 0 && !wanted[symbol]) {
			return true
		}
		prices = append(prices, core.Price{
			ID:          stringOf(coin.Get("id")),
			Symbol:      symbol,
			Name:        stringOf(coin.Get("name")),
			Price:       floatOf(coin.Get("current_price")),
			Change24h:   floatOf(coin.Get("price_change_percentage_24h")),
			MarketCap:   floatOf(coin.Get("market_cap")),
			Volume24h:   floatOf(coin.Get("total_volume")),
			Image:       stringOf(coin.Get("image")),
			LastUpdated: timeOf(coin.Get("last_updated")),
		})
		return true
	})
	return prices
}

func parseCryptoComparePrices(doc gjson.Result, symbols []string) []core.Price {
	prices := []core.Price{}
	for _, symbol := range symbols {
		raw := doc.Get("RAW." + symbol + ".USD")
		if !raw.Exists() {
			continue
		}
		image := stringOf(raw.Get("IMAGEURL"))
		if image != "" && strings.HasPrefix(image, "/") {
			image = "https://www.cryptocompare.com" + image
		}
		prices = append(prices, core.Price{
			ID:          strings.ToLower(symbol),
			Symbol:      symbol,
			Name:        symbol,
			Price:       floatOf(raw.Get("PRICE")),
			Change24h:   floatOf(raw.Get("CHANGEPCT24HOUR")),
			MarketCap:   floatOf(raw.Get("MKTCAP")),
			Volume24h:   floatOf(raw.Get("VOLUME24HOURTO")),
			Image:       image,
			LastUpdated: timeOf(raw.Get("LASTUPDATE")),
		})
	}
	return prices
}
