package provider

import (
	"time"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
)

// Upstream provider names, matching the providers.* config blocks.
const (
	ProviderCoinGecko     = "coingecko"
	ProviderCryptoCompare = "cryptocompare"
	ProviderNewsAPI       = "newsapi"
	ProviderCryptoPanic   = "cryptopanic"
	ProviderAlphaVantage  = "alphavantage"
	ProviderFRED          = "fred"
	ProviderWhaleAlert    = "whale_alert"
	ProviderEtherscan     = "etherscan"
	ProviderAirdropAPI    = "airdrop_api"
)

// Source names, matching the feeds.sources.* config blocks.
const (
	SourceCoinGecko            = "coingecko"
	SourceCoinGeckoPublic      = "coingecko-public"
	SourceCryptoComparePublic  = "cryptocompare-public"
	SourceNewsAPI              = "newsapi"
	SourceCryptoPanic          = "cryptopanic"
	SourceCryptoCompareNews    = "cryptocompare-news"
	SourceAlphaVantage         = "alphavantage"
	SourceFRED                 = "fred"
	SourceWhaleAlert           = "whale-alert"
	SourceEtherscan            = "etherscan"
	SourceCoinGeckoVolume      = "coingecko-volume"
	SourceAirdropAPI           = "airdrop-api"
	SourceCoinGeckoNewListings = "coingecko-new-listings"
	SourceCoinGeckoTrending    = "coingecko-trending"
	SourceCoinGeckoMovers      = "coingecko-movers"
	SourceFREDIndicators       = "fred-indicators"
	SourceFREDRates            = "fred-rates"
)

const (
	keyedTimeout  = 5 * time.Second
	publicTimeout = 8 * time.Second
)

// DefaultBaseURLs are used when a provider block sets no base_url.
var DefaultBaseURLs = map[string]string{
	ProviderCoinGecko:     "https://api.coingecko.com/api/v3",
	ProviderCryptoCompare: "https://min-api.cryptocompare.com",
	ProviderNewsAPI:       "https://newsapi.org/v2",
	ProviderCryptoPanic:   "https://cryptopanic.com/api/v1",
	ProviderAlphaVantage:  "https://www.alphavantage.co",
	ProviderFRED:          "https://api.stlouisfed.org/fred",
	ProviderWhaleAlert:    "https://api.whale-alert.io/v1",
	ProviderEtherscan:     "https://api.etherscan.io",
	ProviderAirdropAPI:    "https://api.airdropalert.com/v1",
}

// DomainTTLs is how long a live payload stays cached per domain.
var DomainTTLs = map[core.Domain]time.Duration{
	core.DomainPrices:     60 * time.Second,
	core.DomainNews:       300 * time.Second,
	core.DomainEconomic:   900 * time.Second,
	core.DomainWhales:     120 * time.Second,
	core.DomainAirdrops:   1800 * time.Second,
	core.DomainTrending:   300 * time.Second,
	core.DomainIndicators: 3600 * time.Second,
	core.DomainRates:      3600 * time.Second,
}

// SourceSpec is the static description of one source in a cascade.
type SourceSpec struct {
	Name     string
	Provider string
	Domain   core.Domain
	// Keyed sources are skipped when their provider has no API key.
	Keyed bool
}

// Catalog lists every source in cascade order per domain.
var Catalog = []SourceSpec{
	{Name: SourceCoinGecko, Provider: ProviderCoinGecko, Domain: core.DomainPrices, Keyed: true},
	{Name: SourceCoinGeckoPublic, Provider: ProviderCoinGecko, Domain: core.DomainPrices},
	{Name: SourceCryptoComparePublic, Provider: ProviderCryptoCompare, Domain: core.DomainPrices},

	{Name: SourceNewsAPI, Provider: ProviderNewsAPI, Domain: core.DomainNews, Keyed: true},
	{Name: SourceCryptoPanic, Provider: ProviderCryptoPanic, Domain: core.DomainNews, Keyed: true},
	{Name: SourceCryptoCompareNews, Provider: ProviderCryptoCompare, Domain: core.DomainNews},

	{Name: SourceAlphaVantage, Provider: ProviderAlphaVantage, Domain: core.DomainEconomic, Keyed: true},
	{Name: SourceFRED, Provider: ProviderFRED, Domain: core.DomainEconomic, Keyed: true},

	{Name: SourceWhaleAlert, Provider: ProviderWhaleAlert, Domain: core.DomainWhales, Keyed: true},
	{Name: SourceEtherscan, Provider: ProviderEtherscan, Domain: core.DomainWhales, Keyed: true},
	{Name: SourceCoinGeckoVolume, Provider: ProviderCoinGecko, Domain: core.DomainWhales},

	{Name: SourceAirdropAPI, Provider: ProviderAirdropAPI, Domain: core.DomainAirdrops, Keyed: true},
	{Name: SourceCoinGeckoNewListings, Provider: ProviderCoinGecko, Domain: core.DomainAirdrops},

	{Name: SourceCoinGeckoTrending, Provider: ProviderCoinGecko, Domain: core.DomainTrending, Keyed: true},
	{Name: SourceCoinGeckoMovers, Provider: ProviderCoinGecko, Domain: core.DomainTrending},

	{Name: SourceFREDIndicators, Provider: ProviderFRED, Domain: core.DomainIndicators, Keyed: true},

	{Name: SourceFREDRates, Provider: ProviderFRED, Domain: core.DomainRates, Keyed: true},
}

// PlannedSource is a catalog entry resolved against configuration.
type PlannedSource struct {
	SourceSpec
	BaseURL string
	Timeout time.Duration
	TTL     time.Duration
	// Skipped explains why the source is left out of the cascade, if it is.
	Skipped string

	apiKey string
}

// Active reports whether the source takes part in the cascade.
func (p PlannedSource) Active() bool {
	return p.Skipped == ""
}

// Plan resolves the catalog for domain against cfg. Skipped sources are
// included so callers can show why they are absent.
func Plan(cfg *config.Config, domain core.Domain) []PlannedSource {
	var planned []PlannedSource
	for _, spec := range Catalog {
		if spec.Domain != domain {
			continue
		}

		provider := cfg.Provider(spec.Provider)
		override := cfg.Source(spec.Name)

		entry := PlannedSource{
			SourceSpec: spec,
			BaseURL:    provider.BaseURL,
			Timeout:    publicTimeout,
			TTL:        DomainTTLs[domain],
			apiKey:     provider.APIKey,
		}
		if entry.BaseURL == "" {
			entry.BaseURL = DefaultBaseURLs[spec.Provider]
		}
		if spec.Keyed {
			entry.Timeout = keyedTimeout
		}
		if override.Timeout > 0 {
			entry.Timeout = override.Timeout
		}
		if override.TTL > 0 {
			entry.TTL = override.TTL
		}

		switch {
		case !override.IsEnabled():
			entry.Skipped = "disabled"
		case spec.Keyed && entry.apiKey == "":
			entry.Skipped = "no api key"
		}

		planned = append(planned, entry)
	}
	return planned
}
