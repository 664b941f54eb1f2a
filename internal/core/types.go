package core

import "time"

// Domain identifies a logical data domain served by the feed service.
type Domain string

const (
	DomainPrices   Domain = "prices"
	DomainNews     Domain = "news"
	DomainEconomic Domain = "economic"
	DomainWhales   Domain = "whales"
	DomainAirdrops Domain = "airdrops"
	DomainTrending Domain = "trending"
	// DomainIndicators and DomainRates are read from FRED.
	DomainIndicators Domain = "indicators"
	DomainRates      Domain = "rates"
)

// Domains lists every domain in display order.
var Domains = []Domain{
	DomainPrices, DomainNews, DomainEconomic, DomainWhales, DomainAirdrops,
	DomainTrending, DomainIndicators, DomainRates,
}

// ParseDomain resolves a domain name, accepting a few aliases used by the HTTP routes.
func ParseDomain(value string) (Domain, bool) {
	switch value {
	case "prices", "price", "markets":
		return DomainPrices, true
	case "news":
		return DomainNews, true
	case "economic", "economic-calendar", "calendar":
		return DomainEconomic, true
	case "whales", "whale-transactions":
		return DomainWhales, true
	case "airdrops":
		return DomainAirdrops, true
	case "trending", "trending-coins", "movers":
		return DomainTrending, true
	case "indicators", "fred-indicators":
		return DomainIndicators, true
	case "rates", "rate-history", "fed-rates":
		return DomainRates, true
	default:
		return "", false
	}
}

// News categories accepted by the news domain.
const (
	NewsCategoryAll         = "all"
	NewsCategoryCrypto      = "crypto"
	NewsCategoryMacro       = "macro"
	NewsCategoryGeopolitics = "geopolitics"
)

// NewsCategories lists the accepted news categories.
var NewsCategories = []string{NewsCategoryAll, NewsCategoryCrypto, NewsCategoryMacro, NewsCategoryGeopolitics}

// Airdrop lifecycle states.
const (
	AirdropUpcoming = "upcoming"
	AirdropActive   = "active"
	AirdropEnded    = "ended"
)

// AirdropStatuses lists the accepted airdrop states.
var AirdropStatuses = []string{AirdropUpcoming, AirdropActive, AirdropEnded}

// Resolution source sentinels.
const (
	SourceCache  = "cache"
	SourceStatic = "static"
)

// Price is a market snapshot for one asset.
type Price struct {
	ID          string     `json:"id" yaml:"id"`
	Symbol      string     `json:"symbol" yaml:"symbol"`
	Name        string     `json:"name" yaml:"name"`
	Price       float64    `json:"price" yaml:"price"`
	Change24h   float64    `json:"priceChange24h" yaml:"change_24h"`
	MarketCap   float64    `json:"marketCap,omitempty" yaml:"market_cap"`
	Volume24h   float64    `json:"volume24h,omitempty" yaml:"volume_24h"`
	Image       string     `json:"image,omitempty" yaml:"image"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty" yaml:"-"`
}

// NewsArticle is a single headline.
type NewsArticle struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Summary     string    `json:"summary,omitempty" yaml:"summary"`
	URL         string    `json:"url" yaml:"url"`
	Source      string    `json:"source" yaml:"source"`
	Category    string    `json:"category" yaml:"category"`
	PublishedAt time.Time `json:"publishedAt" yaml:"published_at"`
}

// EconomicEvent is a scheduled or released macro indicator.
type EconomicEvent struct {
	ID       string    `json:"id" yaml:"id"`
	Title    string    `json:"title" yaml:"title"`
	Country  string    `json:"country" yaml:"country"`
	Currency string    `json:"currency,omitempty" yaml:"currency"`
	Impact   string    `json:"impact" yaml:"impact"`
	Actual   string    `json:"actual,omitempty" yaml:"actual"`
	Forecast string    `json:"forecast,omitempty" yaml:"forecast"`
	Previous string    `json:"previous,omitempty" yaml:"previous"`
	Date     time.Time `json:"eventTime" yaml:"date"`
}

// WhaleTransaction is a large on-chain transfer.
type WhaleTransaction struct {
	ID         string    `json:"id" yaml:"id"`
	Hash       string    `json:"transactionHash" yaml:"hash"`
	Blockchain string    `json:"blockchain" yaml:"blockchain"`
	Asset      string    `json:"asset" yaml:"asset"`
	Amount     float64   `json:"amount" yaml:"amount"`
	ValueUSD   float64   `json:"valueUsd" yaml:"value_usd"`
	From       string    `json:"fromAddress" yaml:"from"`
	To         string    `json:"toAddress" yaml:"to"`
	FromLabel  string    `json:"fromExchange,omitempty" yaml:"from_label"`
	ToLabel    string    `json:"toExchange,omitempty" yaml:"to_label"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
}

// Airdrop is an announced or ongoing token distribution.
type Airdrop struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Symbol      string     `json:"symbol" yaml:"symbol"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Status      string     `json:"status" yaml:"status"`
	Blockchain  string     `json:"blockchain,omitempty" yaml:"blockchain"`
	Website     string     `json:"website,omitempty" yaml:"website"`
	StartDate   *time.Time `json:"startDate,omitempty" yaml:"start_date"`
	EndDate     *time.Time `json:"endDate,omitempty" yaml:"end_date"`
}

// Movers is the trending set split by the sign of the 24h change. Coins that
// did not move are in neither list.
type Movers struct {
	Gainers []Price `json:"gainers"`
	Losers  []Price `json:"losers"`
}

// SplitMovers partitions coins into gainers and losers, keeping input order.
func SplitMovers(coins []Price) Movers {
	movers := Movers{Gainers: []Price{}, Losers: []Price{}}
	for _, coin := range coins {
		switch {
		case coin.Change24h > 0:
			movers.Gainers = append(movers.Gainers, coin)
		case coin.Change24h < 0:
			movers.Losers = append(movers.Losers, coin)
		}
	}
	return movers
}

// Indicator types.
const (
	IndicatorRateDecision = "rate_decision"
	IndicatorEconomic     = "economic_indicator"
)

// Indicator is the latest reading of one macro series.
type Indicator struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Type         string    `json:"type" yaml:"type"`
	Content      string    `json:"content" yaml:"content"`
	Value        float64   `json:"value" yaml:"value"`
	Unit         string    `json:"unit,omitempty" yaml:"unit"`
	InterestRate *float64  `json:"interestRate,omitempty" yaml:"interest_rate"`
	PublishedAt  time.Time `json:"publishedAt" yaml:"published_at"`
}

// RatePoint is one monthly federal funds rate observation.
type RatePoint struct {
	Date string  `json:"date" yaml:"date"`
	Rate float64 `json:"rate" yaml:"rate"`
}
