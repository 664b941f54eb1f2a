package provider

import (
	"context"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// newListingMaxCap is the market cap below which a listed coin is treated as
// a likely distribution candidate.
const newListingMaxCap = 100_000_000

// NormalizeAirdropStatus lower-cases status and rejects unknown values. Empty
// input means every status.
func NormalizeAirdropStatus(status string) (string, bool) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" || status == "all" {
		return "", true
	}
	for _, known := range core.AirdropStatuses {
		if status == known {
			return status, true
		}
	}
	return status, false
}

// AirdropsKey is the cache key for an airdrop request.
func AirdropsKey(status string) string {
	if status == "" {
		status = "all"
	}
	return "airdrops:" + status
}

// Airdrops resolves distributions with status, or all of them when status
// is empty.
func (s *Service) Airdrops(ctx context.Context, status string) engine.Resolution[[]core.Airdrop] {
	status, ok := NormalizeAirdropStatus(status)
	if !ok {
		status = ""
	}
	key := AirdropsKey(status)

	fetchers := map[string]fetchFunc[[]core.Airdrop]{
		SourceAirdropAPI: func(ctx context.Context, src PlannedSource) ([]core.Airdrop, error) {
			return s.airdropAPI(ctx, src, status)
		},
		SourceCoinGeckoNewListings: func(ctx context.Context, src PlannedSource) ([]core.Airdrop, error) {
			return s.coinGeckoNewListings(ctx, src, status)
		},
	}

	res := engine.Resolve(ctx, s.Orchestrator, key,
		buildSources(s, core.DomainAirdrops, fetchers, engine.NonEmpty[[]core.Airdrop]),
		s.datasets.AirdropsFor(status))
	record(s, core.DomainAirdrops, key, res, len(res.Payload))
	return res
}

func (s *Service) airdropAPI(ctx context.Context, src PlannedSource, status string) ([]core.Airdrop, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/airdrops",
		query:    query,
		headers:  apiKeyHeader("Authorization", src.apiKey, "Bearer "),
	})
	if err != nil {
		return nil, err
	}
	return parseAirdropAPI(doc, status), nil
}

func (s *Service) coinGeckoNewListings(ctx context.Context, src PlannedSource, status string) ([]core.Airdrop, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/coins/markets",
		query: url.Values{
			"vs_currency": {"usd"},
			"order":       {"market_cap_asc"},
			"per_page":    {"50"},
			"page":        {"1"},
		},
		headers: coinGeckoHeaders(src),
	})
	if err != nil {
		return nil, err
	}
	return parseCoinGeckoNewListings(doc, status), nil
}

func parseAirdropAPI(doc gjson.Result, status string) []core.Airdrop {
	items := doc.Get("airdrops")
	if !items.Exists() {
		items = doc.Get("data")
	}

	airdrops := []core.Airdrop{}
	items.ForEach(func(_, item gjson.Result) bool {
		name := stringOf(item.Get("name"))
		if name == "" {
			return true
		}
		itemStatus := strings.ToLower(stringOf(item.Get("status")))
		if itemStatus == "" {
			itemStatus = core.AirdropUpcoming
		}
		if status != "" && itemStatus != status {
			return true
		}
		id := stringOf(item.Get("id"))
		if id == "" {
			id = shortID(name)
		}
		airdrops = append(airdrops, core.Airdrop{
			ID:          "airdrop-api-" + id,
			Name:        name,
			Symbol:      strings.ToUpper(stringOf(item.Get("symbol"))),
			Description: stringOf(item.Get("description")),
			Status:      itemStatus,
			Blockchain:  stringOf(item.Get("blockchain")),
			Website:     stringOf(item.Get("website")),
			StartDate:   timeOf(item.Get("start_date")),
			EndDate:     timeOf(item.Get("end_date")),
		})
		return true
	})
	return airdrops
}

// parseCoinGeckoNewListings reports small-cap listings as upcoming
// distributions. Only the upcoming view can contain them.
func parseCoinGeckoNewListings(doc gjson.Result, status string) []core.Airdrop {
	airdrops := []core.Airdrop{}
	if status != "" && status != core.AirdropUpcoming {
		return airdrops
	}
	doc.ForEach(func(_, coin gjson.Result) bool {
		name := stringOf(coin.Get("name"))
		capUSD := floatOf(coin.Get("market_cap"))
		if name == "" || capUSD <= 0 || capUSD >= newListingMaxCap {
			return true
		}
		id := stringOf(coin.Get("id"))
		airdrops = append(airdrops, core.Airdrop{
			ID:          "coingecko-" + id,
			Name:        name,
			Symbol:      strings.ToUpper(stringOf(coin.Get("symbol"))),
			Description: "Recently listed small-cap token",
			Status:      core.AirdropUpcoming,
			Website:     "https://www.coingecko.com/en/coins/" + id,
			StartDate:   timeOf(coin.Get("atl_date")),
		})
		return true
	})
	return airdrops
}
