package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// Rate history bounds, in months.
const (
	DefaultRateMonths = 12
	MaxRateMonths     = 120
)

// IndicatorsKey is the cache key for the FRED indicator board.
const IndicatorsKey = "indicators"

const fedFundsSeries = "FEDFUNDS"

// NormalizeRateMonths clamps months into [1, MaxRateMonths], with zero or
// negative input meaning the default span.
func NormalizeRateMonths(months int) int {
	switch {
	case months <= 0:
		return DefaultRateMonths
	case months > MaxRateMonths:
		return MaxRateMonths
	default:
		return months
	}
}

// RatesKey is the cache key for a rate history request.
func RatesKey(months int) string {
	return fmt.Sprintf("rates:%d", months)
}

// Indicators resolves the latest reading of each tracked FRED series.
func (s *Service) Indicators(ctx context.Context) engine.Resolution[[]core.Indicator] {
	fetchers := map[string]fetchFunc[[]core.Indicator]{
		SourceFREDIndicators: s.fredIndicatorBoard,
	}

	res := engine.Resolve(ctx, s.Orchestrator, IndicatorsKey,
		buildSources(s, core.DomainIndicators, fetchers, engine.NonEmpty[[]core.Indicator]),
		s.datasets.IndicatorBoard())
	record(s, core.DomainIndicators, IndicatorsKey, res, len(res.Payload))
	return res
}

// RateHistory resolves the federal funds rate for the last months, newest first.
func (s *Service) RateHistory(ctx context.Context, months int) engine.Resolution[[]core.RatePoint] {
	months = NormalizeRateMonths(months)
	key := RatesKey(months)

	fetchers := map[string]fetchFunc[[]core.RatePoint]{
		SourceFREDRates: func(ctx context.Context, src PlannedSource) ([]core.RatePoint, error) {
			doc, err := s.fredObservations(ctx, src, fedFundsSeries, months)
			if err != nil {
				return nil, err
			}
			return parseFREDRates(doc, months), nil
		},
	}

	res := engine.Resolve(ctx, s.Orchestrator, key,
		buildSources(s, core.DomainRates, fetchers, engine.NonEmpty[[]core.RatePoint]),
		s.datasets.RatesFor(months))
	record(s, core.DomainRates, key, res, len(res.Payload))
	return res
}

// fredObservations reads the newest limit observations of seriesID.
func (s *Service) fredObservations(ctx context.Context, src PlannedSource, seriesID string, limit int) (gjson.Result, error) {
	return s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/series/observations",
		query: url.Values{
			"series_id":  {seriesID},
			"api_key":    {src.apiKey},
			"file_type":  {"json"},
			"limit":      {strconv.Itoa(limit)},
			"sort_order": {"desc"},
		},
	})
}

func (s *Service) fredIndicatorBoard(ctx context.Context, src PlannedSource) ([]core.Indicator, error) {
	var (
		indicators []core.Indicator
		errs       []error
	)
	for _, series := range fredSeries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.fredObservations(ctx, src, series.ID, 1)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", series.ID, err))
			continue
		}
		if indicator, ok := parseFREDIndicator(doc, series.ID, series.Title, series.Unit); ok {
			indicators = append(indicators, indicator)
		}
	}

	if len(indicators) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return indicators, nil
}

func parseFREDIndicator(doc gjson.Result, seriesID, title, unit string) (core.Indicator, bool) {
	latest := doc.Get("observations.0")
	raw := stringOf(latest.Get("value"))
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return core.Indicator{}, false
	}

	indicator := core.Indicator{
		ID:    "fred-" + strings.ToLower(seriesID),
		Title: title,
		Type:  core.IndicatorEconomic,
		Value: value,
		Unit:  unit,
	}
	if published := timeOf(latest.Get("date")); published != nil {
		indicator.PublishedAt = *published
	}

	if seriesID == fedFundsSeries {
		rate := value
		indicator.Type = core.IndicatorRateDecision
		indicator.InterestRate = &rate
		indicator.Content = fmt.Sprintf("The Federal Reserve target rate stands at %s%%", raw)
	} else {
		indicator.Content = fmt.Sprintf("Latest %s reading: %s%s", title, raw, unit)
	}
	return indicator, true
}

// parseFREDRates keeps at most months observations, skipping FRED's "."
// placeholder for missing values.
func parseFREDRates(doc gjson.Result, months int) []core.RatePoint {
	points := []core.RatePoint{}
	doc.Get("observations").ForEach(func(_, obs gjson.Result) bool {
		rate, err := strconv.ParseFloat(stringOf(obs.Get("value")), 64)
		date := stringOf(obs.Get("date"))
		if err != nil || date == "" {
			return true
		}
		points = append(points, core.RatePoint{Date: date, Rate: rate})
		return len(points) < months
	})
	return points
}
