package provider

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

//go:embed fallback/*.yaml
var fallbackFS embed.FS

// Datasets holds the last-resort payloads served when every live source for
// a domain fails.
type Datasets struct {
	Prices   []core.Price            `yaml:"prices"`
	News     []core.NewsArticle      `yaml:"news"`
	Economic []core.EconomicEvent    `yaml:"economic"`
	Whales   []core.WhaleTransaction `yaml:"whales"`
	Airdrops []core.Airdrop          `yaml:"airdrops"`
	Trending []core.Price            `yaml:"trending"`
	// Indicators and Rates are newest first.
	Indicators []core.Indicator `yaml:"indicators"`
	Rates      []core.RatePoint `yaml:"rates"`
}

var (
	datasetsOnce sync.Once
	datasets     *Datasets
	datasetsErr  error
)

// StaticDatasets parses the embedded datasets once.
func StaticDatasets() (*Datasets, error) {
	datasetsOnce.Do(func() {
		datasets, datasetsErr = loadDatasets()
	})
	return datasets, datasetsErr
}

func loadDatasets() (*Datasets, error) {
	merged := &Datasets{}
	for _, domain := range core.Domains {
		name := "fallback/" + string(domain) + ".yaml"
		data, err := fallbackFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		var part Datasets
		if err := yaml.Unmarshal(data, &part); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		merged.Prices = append(merged.Prices, part.Prices...)
		merged.News = append(merged.News, part.News...)
		merged.Economic = append(merged.Economic, part.Economic...)
		merged.Whales = append(merged.Whales, part.Whales...)
		merged.Airdrops = append(merged.Airdrops, part.Airdrops...)
		merged.Trending = append(merged.Trending, part.Trending...)
		merged.Indicators = append(merged.Indicators, part.Indicators...)
		merged.Rates = append(merged.Rates, part.Rates...)
	}
	return merged, nil
}

// PricesFor returns static prices, restricted to symbols when any are given.
func (d *Datasets) PricesFor(symbols []string) []core.Price {
	if d == nil {
		return []core.Price{}
	}
	if len(symbols) == 0 {
		return append([]core.Price{}, d.Prices...)
	}

	wanted := symbolSet(symbols)
	out := []core.Price{}
	for _, price := range d.Prices {
		if wanted[strings.ToUpper(price.Symbol)] {
			out = append(out, price)
		}
	}
	return out
}

// NewsFor returns static articles in category, at most limit of them.
func (d *Datasets) NewsFor(category string, limit int) []core.NewsArticle {
	if d == nil {
		return []core.NewsArticle{}
	}
	out := []core.NewsArticle{}
	for _, article := range d.News {
		if category != "" && category != core.NewsCategoryAll && article.Category != category {
			continue
		}
		out = append(out, article)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// EconomicEvents returns the static calendar.
func (d *Datasets) EconomicEvents() []core.EconomicEvent {
	if d == nil {
		return []core.EconomicEvent{}
	}
	return append([]core.EconomicEvent{}, d.Economic...)
}

// WhaleTransactions returns the static transfers.
func (d *Datasets) WhaleTransactions() []core.WhaleTransaction {
	if d == nil {
		return []core.WhaleTransaction{}
	}
	return append([]core.WhaleTransaction{}, d.Whales...)
}

// AirdropsFor returns static airdrops with status, or all when status is empty.
func (d *Datasets) AirdropsFor(status string) []core.Airdrop {
	if d == nil {
		return []core.Airdrop{}
	}
	out := []core.Airdrop{}
	for _, airdrop := range d.Airdrops {
		if status == "" || airdrop.Status == status {
			out = append(out, airdrop)
		}
	}
	return out
}

// TrendingCoins returns the static movers.
func (d *Datasets) TrendingCoins() []core.Price {
	if d == nil {
		return []core.Price{}
	}
	return append([]core.Price{}, d.Trending...)
}

// IndicatorBoard returns the static FRED readings.
func (d *Datasets) IndicatorBoard() []core.Indicator {
	if d == nil {
		return []core.Indicator{}
	}
	return append([]core.Indicator{}, d.Indicators...)
}

// RatesFor returns at most months static rate points, newest first.
func (d *Datasets) RatesFor(months int) []core.RatePoint {
	if d == nil {
		return []core.RatePoint{}
	}
	points := d.Rates
	if months > 0 && len(points) > months {
		points = points[:months]
	}
	return append([]core.RatePoint{}, points...)
}

func symbolSet(symbols []string) map[string]bool {
	set := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		set[strings.ToUpper(strings.TrimSpace(symbol))] = true
	}
	return set
}
