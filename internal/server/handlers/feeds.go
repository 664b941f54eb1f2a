package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/provider"
)

// DataSourceHeader names the source that produced a feed response.
const DataSourceHeader = "X-Data-Source"

// FeedService resolves each domain through its fallback cascade.
type FeedService interface {
	Prices(ctx context.Context, symbols []string) engine.Resolution[[]core.Price]
	News(ctx context.Context, category string, limit int) engine.Resolution[[]core.NewsArticle]
	Economic(ctx context.Context) engine.Resolution[[]core.EconomicEvent]
	Whales(ctx context.Context, hours int) engine.Resolution[[]core.WhaleTransaction]
	Airdrops(ctx context.Context, status string) engine.Resolution[[]core.Airdrop]
	Trending(ctx context.Context) engine.Resolution[[]core.Price]
	Indicators(ctx context.Context) engine.Resolution[[]core.Indicator]
	RateHistory(ctx context.Context, months int) engine.Resolution[[]core.RatePoint]
}

// FeedResponse is the body of every feed endpoint.
type FeedResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Source  string `json:"source"`
	Data    any    `json:"data"`
}

// FeedHandler serves the domain endpoints.
type FeedHandler struct {
	service FeedService
}

// NewFeedHandler wraps service.
func NewFeedHandler(service FeedService) *FeedHandler {
	return &FeedHandler{service: service}
}

// Prices handles GET /api/prices?symbols=BTC,ETH
func (h *FeedHandler) Prices(w http.ResponseWriter, r *http.Request) {
	var symbols []string
	if raw := r.URL.Query().Get("symbols"); raw != "" {
		symbols = provider.NormalizeSymbols([]string{raw})
		if len(symbols) == 0 {
			respondWithError(w, r, invalidParam("symbols", raw, "expected comma-separated ticker symbols"))
			return
		}
	}

	res := h.service.Prices(r.Context(), symbols)
	writeFeed(w, res.Source, "Prices retrieved", res.Payload)
}

// News handles GET /api/news?category=&limit=
func (h *FeedHandler) News(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	category, ok := provider.NormalizeNewsCategory(query.Get("category"))
	if !ok {
		respondWithError(w, r, invalidParam("category", query.Get("category"),
			"expected one of "+strings.Join(core.NewsCategories, ", ")))
		return
	}

	limit, err := intParam(query.Get("limit"), provider.DefaultNewsLimit, 1, provider.MaxNewsLimit)
	if err != nil {
		respondWithError(w, r, invalidParam("limit", query.Get("limit"), err.Error()))
		return
	}

	res := h.service.News(r.Context(), category, limit)
	writeFeed(w, res.Source, "News retrieved", res.Payload)
}

// EconomicCalendar handles GET /api/economic-calendar
func (h *FeedHandler) EconomicCalendar(w http.ResponseWriter, r *http.Request) {
	res := h.service.Economic(r.Context())
	writeFeed(w, res.Source, "Economic calendar retrieved", res.Payload)
}

// WhaleTransactions handles GET /api/whale-transactions?hours=
func (h *FeedHandler) WhaleTransactions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("hours")
	hours, err := intParam(raw, provider.DefaultWhaleHours, 1, provider.MaxWhaleHours)
	if err != nil {
		respondWithError(w, r, invalidParam("hours", raw, err.Error()))
		return
	}

	res := h.service.Whales(r.Context(), hours)
	writeFeed(w, res.Source, "Whale transactions retrieved", res.Payload)
}

// Airdrops handles GET /api/airdrops?status=
func (h *FeedHandler) Airdrops(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("status")
	status, ok := provider.NormalizeAirdropStatus(raw)
	if !ok {
		respondWithError(w, r, invalidParam("status", raw,
			"expected one of "+strings.Join(core.AirdropStatuses, ", ")))
		return
	}

	res := h.service.Airdrops(r.Context(), status)
	writeFeed(w, res.Source, "Airdrops retrieved", res.Payload)
}

// TrendingCoins handles GET /api/trending-coins
func (h *FeedHandler) TrendingCoins(w http.ResponseWriter, r *http.Request) {
	res := h.service.Trending(r.Context())
	writeFeed(w, res.Source, "Trending coins retrieved", core.SplitMovers(res.Payload))
}

// FREDIndicators handles GET /api/fred/indicators
func (h *FeedHandler) FREDIndicators(w http.ResponseWriter, r *http.Request) {
	res := h.service.Indicators(r.Context())
	writeFeed(w, res.Source, "Economic indicators retrieved", res.Payload)
}

// RateHistory handles GET /api/fred/rate-history?months=
func (h *FeedHandler) RateHistory(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("months")
	months, err := intParam(raw, provider.DefaultRateMonths, 1, provider.MaxRateMonths)
	if err != nil {
		respondWithError(w, r, invalidParam("months", raw, err.Error()))
		return
	}

	res := h.service.RateHistory(r.Context(), months)
	writeFeed(w, res.Source, "Rate history retrieved", res.Payload)
}

func writeFeed(w http.ResponseWriter, source, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(DataSourceHeader, source)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(FeedResponse{
		Success: true,
		Message: message,
		Source:  source,
		Data:    data,
	})
}

// intParam parses an optional integer in [min, max]. Empty input yields def.
func intParam(raw string, def, min, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("expected an integer")
	}
	if value < min || value > max {
		return 0, fmt.Errorf("must be between %d and %d", min, max)
	}
	return value, nil
}

func invalidParam(name, value, reason string) *errors.ErrorEnvelope {
	envelope := errors.NewErrorEnvelope("INVALID_INPUT", fmt.Sprintf("invalid %s parameter", name))
	envelope = envelope.WithDetails(map[string]interface{}{
		"parameter": name,
		"value":     value,
		"reason":    reason,
	})
	return envelope
}
