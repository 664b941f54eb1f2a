package provider

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// TrendingKey is the cache key for trending coins.
const TrendingKey = "trending"

// moversPerSide caps gainers and losers taken from the market listing.
const moversPerSide = 10

// Trending resolves the coins moving most over 24h. Callers split the payload
// with core.SplitMovers.
func (s *Service) Trending(ctx context.Context) engine.Resolution[[]core.Price] {
	fetchers := map[string]fetchFunc[[]core.Price]{
		SourceCoinGeckoTrending: s.coinGeckoTrending,
		SourceCoinGeckoMovers:   s.coinGeckoMovers,
	}

	res := engine.Resolve(ctx, s.Orchestrator, TrendingKey,
		buildSources(s, core.DomainTrending, fetchers, hasMovers),
		s.datasets.TrendingCoins())
	record(s, core.DomainTrending, TrendingKey, res, len(res.Payload))
	return res
}

// hasMovers rejects a payload in which nothing went up or down.
func hasMovers(coins []core.Price) bool {
	for _, coin := range coins {
		if coin.Change24h != 0 {
			return true
		}
	}
	return false
}

func (s *Service) coinGeckoTrending(ctx context.Context, src PlannedSource) ([]core.Price, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/search/trending",
		headers:  coinGeckoHeaders(src),
	})
	if err != nil {
		return nil, err
	}
	return parseCoinGeckoTrending(doc), nil
}

func (s *Service) coinGeckoMovers(ctx context.Context, src PlannedSource) ([]core.Price, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/coins/markets",
		query: url.Values{
			"vs_currency":             {"usd"},
			"order":                   {"volume_desc"},
			"per_page":                {"100"},
			"page":                    {"1"},
			"price_change_percentage": {"24h"},
		},
	})
	if err != nil {
		return nil, err
	}
	return rankMovers(parseCoinGeckoMarkets(doc, nil), moversPerSide), nil
}

func parseCoinGeckoTrending(doc gjson.Result) []core.Price {
	coins := []core.Price{}
	doc.Get("coins.#.item").ForEach(func(_, item gjson.Result) bool {
		symbol := strings.ToUpper(stringOf(item.Get("symbol")))
		if symbol == "" {
			return true
		}
		data := item.Get("data")
		coins = append(coins, core.Price{
			ID:        stringOf(item.Get("id")),
			Symbol:    symbol,
			Name:      stringOf(item.Get("name")),
			Price:     floatOf(data.Get("price")),
			Change24h: floatOf(data.Get("price_change_percentage_24h.usd")),
			MarketCap: moneyOf(data.Get("market_cap")),
			Volume24h: moneyOf(data.Get("total_volume")),
			Image:     stringOf(item.Get("large")),
		})
		return true
	})
	return coins
}

// rankMovers keeps the n biggest gainers, biggest first, followed by the n
// biggest losers, biggest drop first.
func rankMovers(coins []core.Price, n int) []core.Price {
	movers := core.SplitMovers(coins)
	sort.SliceStable(movers.Gainers, func(i, j int) bool { return movers.Gainers[i].Change24h > movers.Gainers[j].Change24h })
	sort.SliceStable(movers.Losers, func(i, j int) bool { return movers.Losers[i].Change24h < movers.Losers[j].Change24h })
	if len(movers.Gainers) > n {
		movers.Gainers = movers.Gainers[:n]
	}
	if len(movers.Losers) > n {
		movers.Losers = movers.Losers[:n]
	}
	return append(movers.Gainers, movers.Losers...)
}

// moneyOf reads amounts CoinGecko formats as "$1,234,567".
func moneyOf(r gjson.Result) float64 {
	if r.Type != gjson.String {
		return r.Float()
	}
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(r.Str)
	v, _ := strconv.ParseFloat(cleaned, 64)
	return v
}
