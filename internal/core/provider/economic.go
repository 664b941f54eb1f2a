package provider

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
)

// EconomicKey is the cache key for the economic calendar.
const EconomicKey = "economic"

// fredSeries are the indicators read from FRED, in display order.
var fredSeries = []struct {
	ID     string
	Title  string
	Unit   string
	Impact string
}{
	{ID: "FEDFUNDS", Title: "Federal Funds Rate", Unit: "%", Impact: "high"},
	{ID: "CPIAUCSL", Title: "Consumer Price Index", Unit: "", Impact: "high"},
	{ID: "UNRATE", Title: "Unemployment Rate", Unit: "%", Impact: "high"},
	{ID: "GDP", Title: "Gross Domestic Product", Unit: "B", Impact: "medium"},
}

// Economic resolves the macro calendar.
func (s *Service) Economic(ctx context.Context) engine.Resolution[[]core.EconomicEvent] {
	fetchers := map[string]fetchFunc[[]core.EconomicEvent]{
		SourceAlphaVantage: s.alphaVantageCalendar,
		SourceFRED:         s.fredIndicators,
	}

	res := engine.Resolve(ctx, s.Orchestrator, EconomicKey,
		buildSources(s, core.DomainEconomic, fetchers, engine.NonEmpty[[]core.EconomicEvent]),
		s.datasets.EconomicEvents())
	record(s, core.DomainEconomic, EconomicKey, res, len(res.Payload))
	return res
}

func (s *Service) alphaVantageCalendar(ctx context.Context, src PlannedSource) ([]core.EconomicEvent, error) {
	doc, err := s.fetch.getJSON(ctx, request{
		provider: src.Provider,
		baseURL:  src.BaseURL,
		path:     "/query",
		query: url.Values{
			"function": {"ECONOMIC_CALENDAR"},
			"apikey":   {src.apiKey},
		},
	})
	if err != nil {
		return nil, err
	}
	// Alpha Vantage reports quota and key problems with a 200 and a note.
	fields := doc.Map()
	for _, field := range []string{"Note", "Information", "Error Message"} {
		if note, ok := fields[field]; ok {
			return nil, fmt.Errorf("alphavantage: %s", note.String())
		}
	}
	return parseAlphaVantageCalendar(doc), nil
}

func (s *Service) fredIndicators(ctx context.Context, src PlannedSource) ([]core.EconomicEvent, error) {
	var (
		events []core.EconomicEvent
		errs   []error
	)
	for _, series := range fredSeries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		doc, err := s.fredObservations(ctx, src, series.ID, 2)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", series.ID, err))
			continue
		}
		if event, ok := parseFREDObservations(doc, series.ID, series.Title, series.Unit, series.Impact); ok {
			events = append(events, event)
		}
	}

	if len(events) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return events, nil
}

func parseAlphaVantageCalendar(doc gjson.Result) []core.EconomicEvent {
	events := []core.EconomicEvent{}
	doc.Get("economic_calendar").ForEach(func(_, item gjson.Result) bool {
		title := stringOf(item.Get("name"))
		if title == "" {
			return true
		}
		when := timeOrZero(item.Get("time"))
		impact := strings.ToLower(stringOf(item.Get("impact")))
		if impact == "" {
			impact = "medium"
		}
		events = append(events, core.EconomicEvent{
			ID:       "alphavantage-" + shortID(title+"|"+item.Get("time").String()),
			Title:    title,
			Country:  stringOf(item.Get("country")),
			Currency: stringOf(item.Get("currency")),
			Impact:   impact,
			Actual:   stringOf(item.Get("actual")),
			Forecast: stringOf(item.Get("forecast")),
			Previous: stringOf(item.Get("previous")),
			Date:     when,
		})
		return true
	})
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })
	return events
}

// parseFREDObservations turns the two most recent observations into one
// event. FRED marks missing values with ".".
func parseFREDObservations(doc gjson.Result, seriesID, title, unit, impact string) (core.EconomicEvent, bool) {
	observations := doc.Get("observations").Array()
	if len(observations) == 0 {
		return core.EconomicEvent{}, false
	}

	latest := observations[0]
	actual := stringOf(latest.Get("value"))
	if actual == "" || actual == "." {
		return core.EconomicEvent{}, false
	}

	event := core.EconomicEvent{
		ID:       "fred-" + strings.ToLower(seriesID) + "-" + stringOf(latest.Get("date")),
		Title:    title,
		Country:  "US",
		Currency: "USD",
		Impact:   impact,
		Actual:   actual + unit,
		Date:     timeOrZero(latest.Get("date")),
	}
	if len(observations) > 1 {
		if previous := stringOf(observations[1].Get("value")); previous != "" && previous != "." {
			event.Previous = previous + unit
		}
	}
	return event, true
}
