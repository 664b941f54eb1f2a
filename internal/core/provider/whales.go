package provider

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// Whale window bounds, in hours.
const (
	DefaultWhaleHours = 24
	MaxWhaleHours     = 168
)

const (
	whaleMinValueUSD = 500000
	whaleLimit       = 50
	// etherscanWatchAddress is a high-volume exchange hot wallet whose
	// transfers stand in for whale flow when Whale Alert is unavailable.
	etherscanWatchAddress = "0x28C6c06298d514Db089934071355E5743bf21d60"
	etherscanWatchLabel   = "Binance"
)

// NormalizeWhaleHours clamps hours into [1, MaxWhaleHours], with zero or
// negative input meaning the default window.
func NormalizeWhaleHours(hours int) int {
	switch {
	case hours <= 0:
		return DefaultWhaleHours
	case hours > MaxWhaleHours:
		return MaxWhaleHours
	default:
		return hours
	}
}

// WhalesKey is the cache key for a whale request.
func WhalesKey(hours int) string {
	return fmt.Sprintf("whales:%d", hours)
}

// Whales resolves large transfers seen in the last hours.
func (s *Service) Whales(ctx context.Context, hours int) engine.Resolution[[]core.WhaleTransaction] {
	hours = NormalizeWhaleHours(hours)
	key := WhalesKey(hours)

	fetchers := map[string]fetchFunc[[]core.WhaleTransaction]{
		SourceWhaleAlert: func(ctx context.Context, src PlannedSource) ([]core.WhaleTransaction, error) {
			return s.whaleAlert(ctx, src, hours)
		},
		SourceEtherscan: func(ctx context.Context, src PlannedSource) ([]core.WhaleTransaction, error) {
			return s.etherscanTransfers(ctx, src, hours)
		},
		SourceCoinGeckoVolume: s.coinGeckoVolume,
	}

	res := engine.Resolve(ctx, s.Orchestrator, key,
		buildSources(s, core.DomainWhales, fetchers, engine.NonEmpty[[]core.WhaleTransaction]),
		s.datasets.WhaleTransactions())
	record(s, core.DomainWhales, key, res, len(res.Payload))
	return res
}

func (s *Service) whaleAlert(ctx context.Context, src PlannedSource, hours int) ([]core.WhaleTransaction, error) {
	start := s.Clock.Now().Add(-time.Duration(hours) * time.Hour)
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/transactions",
		query: url.Values{
			"api_key":   {src.apiKey},
			"min_value": {strconv.Itoa(whaleMinValueUSD)},
			"limit":     {strconv.Itoa(whaleLimit)},
			"start":     {strconv.FormatInt(start.Unix(), 10)},
		},
	})
	if err != nil {
		return nil, err
	}
	if result := doc.Get("result").String(); result != "" && result != "success" {
		return nil, fmt.Errorf("whale alert result %q: %s", result, doc.Get("message").String())
	}
	return parseWhaleAlert(doc), nil
}

func (s *Service) etherscanTransfers(ctx context.Context, src PlannedSource, hours int) ([]core.WhaleTransaction, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/api",
		query: url.Values{
			"module":     {"account"},
			"action":     {"txlist"},
			"address":    {etherscanWatchAddress},
			"startblock": {"0"},
			"endblock":   {"99999999"},
			"page":       {"1"},
			"offset":     {strconv.Itoa(whaleLimit)},
			"sort":       {"desc"},
			"apikey":     {src.apiKey},
		},
	})
	if err != nil {
		return nil, err
	}
	if status := doc.Get("status").String(); status != "1" {
		return nil, fmt.Errorf("etherscan status %q: %s", status, doc.Get("message").String())
	}
	since := s.Clock.Now().Add(-time.Duration(hours) * time.Hour)
	return parseEtherscanTransfers(doc, since), nil
}

func (s *Service) coinGeckoVolume(ctx context.Context, src PlannedSource) ([]core.WhaleTransaction, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/coins/markets",
		query: url.Values{
			"vs_currency": {"usd"},
			"order":       {"volume_desc"},
			"per_page":    {"10"},
			"page":        {"1"},
		},
		headers: coinGeckoHeaders(src),
	})
	if err != nil {
		return nil, err
	}
	return parseCoinGeckoVolume(doc, s.Clock.Now()), nil
}

func parseWhaleAlert(doc gjson.Result) []core.WhaleTransaction {
	transactions := []core.WhaleTransaction{}
	doc.Get("transactions").ForEach(func(_, item gjson.Result) bool {
		hash := stringOf(item.Get("hash"))
		if hash == "" {
			return true
		}
		transactions = append(transactions, core.WhaleTransaction{
			ID:         "whale-alert-" + stringOf(item.Get("id")),
			Hash:       hash,
			Blockchain: stringOf(item.Get("blockchain")),
			Asset:      strings.ToUpper(stringOf(item.Get("symbol"))),
			Amount:     floatOf(item.Get("amount")),
			ValueUSD:   floatOf(item.Get("amount_usd")),
			From:       stringOf(item.Get("from.address")),
			To:         stringOf(item.Get("to.address")),
			FromLabel:  stringOf(item.Get("from.owner")),
			ToLabel:    stringOf(item.Get("to.owner")),
			Timestamp:  timeOrZero(item.Get("timestamp")),
		})
		return true
	})
	sortWhales(transactions)
	return transactions
}

// parseEtherscanTransfers keeps non-zero transfers newer than since.
func parseEtherscanTransfers(doc gjson.Result, since time.Time) []core.WhaleTransaction {
	transactions := []core.WhaleTransaction{}
	doc.Get("result").ForEach(func(_, item gjson.Result) bool {
		hash := stringOf(item.Get("hash"))
		when := timeOrZero(item.Get("timeStamp"))
		if hash == "" || when.Before(since) {
			return true
		}
		amount := weiToEther(stringOf(item.Get("value")))
		if amount <= 0 {
			return true
		}

		from := stringOf(item.Get("from"))
		to := stringOf(item.Get("to"))
		tx := core.WhaleTransaction{
			ID:         "etherscan-" + shortID(hash),
			Hash:       hash,
			Blockchain: "ethereum",
			Asset:      "ETH",
			Amount:     amount,
			From:       from,
			To:         to,
			Timestamp:  when,
		}
		if strings.EqualFold(from, etherscanWatchAddress) {
			tx.FromLabel = etherscanWatchLabel
		}
		if strings.EqualFold(to, etherscanWatchAddress) {
			tx.ToLabel = etherscanWatchLabel
		}
		transactions = append(transactions, tx)
		return true
	})
	sortWhales(transactions)
	return transactions
}

// parseCoinGeckoVolume synthesizes one aggregate entry per high-volume asset.
func parseCoinGeckoVolume(doc gjson.Result, now time.Time) []core.WhaleTransaction {
	transactions := []core.WhaleTransaction{}
	doc.ForEach(func(_, coin gjson.Result) bool {
		symbol := strings.ToUpper(stringOf(coin.Get("symbol")))
		volume := floatOf(coin.Get("total_volume"))
		price := floatOf(coin.Get("current_price"))
		if symbol == "" || volume < whaleMinValueUSD || price <= 0 {
			return true
		}
		id := stringOf(coin.Get("id"))
		transactions = append(transactions, core.WhaleTransaction{
			ID:         "coingecko-volume-" + id,
			Blockchain: id,
			Asset:      symbol,
			Amount:     volume / price,
			ValueUSD:   volume,
			FromLabel:  "24h volume",
			Timestamp:  now.UTC(),
		})
		return true
	})
	return transactions
}

func weiToEther(value string) float64 {
	wei, ok := new(big.Int).SetString(value, 10)
	if !ok || wei.Sign() <= 0 {
		return 0
	}
	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return ether
}

func sortWhales(transactions []core.WhaleTransaction) {
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Timestamp.After(transactions[j].Timestamp)
	})
}
