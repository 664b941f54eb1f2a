package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/spf13/cobra"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/engine"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/provider"
	errwrap "github.com/CryptoZapCommunity/crypto-zap-dash/internal/errors"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/metrics"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/observability"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/output"
)

// fetchParams carries the per-domain query flags.
type fetchParams struct {
	symbols  []string
	category string
	limit    int
	hours    int
	status   string
	months   int
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <domain>",
	Short: "Resolve one domain through its fallback cascade",
	Long: `Resolve one domain exactly as the HTTP API would and report which source
answered, how long each attempt took and how many items came back.

Domains: prices, news, economic, whales, airdrops, trending, indicators, rates.

Examples:
  cryptozap fetch prices --symbols BTC,ETH
  cryptozap fetch news --category macro --limit 5 -o json
  cryptozap fetch whales --hours 6 --data
  cryptozap fetch rates --months 24`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		domain, ok := core.ParseDomain(args[0])
		if !ok {
			return errwrap.NewInvalidInputError(fmt.Sprintf("unknown domain %q", args[0]))
		}

		format, err := output.ParseFormat(mustGetString(cmd, "output"))
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		params, err := fetchParamsFromFlags(cmd)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}
		if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
			cfg.Cache.Enabled = false
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		feeds, err := openFeeds(ctx, cfg, observability.CLILogger)
		if err != nil {
			return errwrap.WrapInternal(ctx, err, "feed service initialization failed")
		}
		defer func() { _ = feeds.Close() }()

		report := resolveDomain(ctx, feeds.Service, domain, params)
		operation := "fetch_" + string(domain)
		metrics.RecordOperation(operation, report.Source != core.SourceStatic)
		for _, attempt := range report.Attempts {
			if attempt.Code != "" {
				metrics.RecordOperationError(operation, attempt.Code)
			}
		}

		if withData, _ := cmd.Flags().GetBool("data"); !withData {
			report.Data = nil
		}

		rendered, err := output.NewFormatter(format).FormatFetch(report)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	addFetchFlags(fetchCmd)
}

func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "output format: table, json, markdown")
	cmd.Flags().StringSlice("symbols", nil, "price symbols (prices)")
	cmd.Flags().String("category", core.NewsCategoryAll, "news category: all, crypto, macro, geopolitics (news)")
	cmd.Flags().Int("limit", provider.DefaultNewsLimit, "maximum articles (news)")
	cmd.Flags().Int("hours", provider.DefaultWhaleHours, "lookback window in hours (whales)")
	cmd.Flags().String("status", "", "airdrop status: upcoming, active, ended (airdrops)")
	cmd.Flags().Int("months", provider.DefaultRateMonths, "rate history span in months (rates)")
	cmd.Flags().Bool("data", false, "include the payload in the output")
	cmd.Flags().Bool("no-cache", false, "bypass the configured cache")
	cmd.Flags().Duration("timeout", 30*time.Second, "overall deadline for the resolution")
}

func fetchParamsFromFlags(cmd *cobra.Command) (fetchParams, error) {
	var params fetchParams

	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	params.symbols = provider.NormalizeSymbols(symbols)

	category, ok := provider.NormalizeNewsCategory(mustGetString(cmd, "category"))
	if !ok {
		return params, errwrap.NewInvalidInputError(fmt.Sprintf("unknown news category %q", mustGetString(cmd, "category")))
	}
	params.category = category

	params.limit, _ = cmd.Flags().GetInt("limit")
	if params.limit < 1 || params.limit > provider.MaxNewsLimit {
		return params, errwrap.NewInvalidInputError(fmt.Sprintf("--limit must be between 1 and %d", provider.MaxNewsLimit))
	}

	params.hours, _ = cmd.Flags().GetInt("hours")
	if params.hours < 1 || params.hours > provider.MaxWhaleHours {
		return params, errwrap.NewInvalidInputError(fmt.Sprintf("--hours must be between 1 and %d", provider.MaxWhaleHours))
	}

	status, ok := provider.NormalizeAirdropStatus(mustGetString(cmd, "status"))
	if !ok {
		return params, errwrap.NewInvalidInputError(fmt.Sprintf("unknown airdrop status %q", mustGetString(cmd, "status")))
	}
	params.status = status

	params.months, _ = cmd.Flags().GetInt("months")
	if params.months < 1 || params.months > provider.MaxRateMonths {
		return params, errwrap.NewInvalidInputError(fmt.Sprintf("--months must be between 1 and %d", provider.MaxRateMonths))
	}

	return params, nil
}

// resolveDomain runs one resolution and summarizes it.
func resolveDomain(ctx context.Context, service *provider.Service, domain core.Domain, params fetchParams) *output.FetchReport {
	switch domain {
	case core.DomainPrices:
		return newFetchReport(domain, provider.PricesKey(params.symbols), service.Prices(ctx, params.symbols))
	case core.DomainNews:
		return newFetchReport(domain, provider.NewsKey(params.category, params.limit),
			service.News(ctx, params.category, params.limit))
	case core.DomainEconomic:
		return newFetchReport(domain, provider.EconomicKey, service.Economic(ctx))
	case core.DomainWhales:
		return newFetchReport(domain, provider.WhalesKey(params.hours), service.Whales(ctx, params.hours))
	case core.DomainTrending:
		return newFetchReport(domain, provider.TrendingKey, service.Trending(ctx))
	case core.DomainIndicators:
		return newFetchReport(domain, provider.IndicatorsKey, service.Indicators(ctx))
	case core.DomainRates:
		months := provider.NormalizeRateMonths(params.months)
		return newFetchReport(domain, provider.RatesKey(months), service.RateHistory(ctx, months))
	default:
		return newFetchReport(domain, provider.AirdropsKey(params.status), service.Airdrops(ctx, params.status))
	}
}

func newFetchReport[E any](domain core.Domain, key string, res engine.Resolution[[]E]) *output.FetchReport {
	report := &output.FetchReport{
		Domain:    string(domain),
		Key:       key,
		Source:    res.Source,
		FromCache: res.FromCache,
		Shared:    res.Shared,
		Abandoned: res.Abandoned,
		Elapsed:   res.Elapsed.Round(time.Millisecond),
		ElapsedMS: res.Elapsed.Milliseconds(),
		Items:     len(res.Payload),
		Attempts:  make([]output.AttemptRow, 0, len(res.Attempts)),
		Data:      res.Payload,
	}
	for _, attempt := range res.Attempts {
		row := output.AttemptRow{Source: attempt.Source, ElapsedMS: attempt.Elapsed.Milliseconds()}
		if attempt.Err != nil {
			row.Code = classifyAttempt(attempt.Err).Code
			row.Error = attempt.Err.Error()
		}
		report.Attempts = append(report.Attempts, row)
	}
	return report
}

// classifyAttempt maps a failed source onto the error taxonomy so attempts
// can be counted by cause.
func classifyAttempt(err error) *gferrors.ErrorEnvelope {
	ctx := context.Background()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errwrap.WrapTimeout(ctx, err, "source timed out")
	case errors.Is(err, engine.ErrInvalidPayload), errors.Is(err, provider.ErrMalformedResponse):
		return errwrap.WrapDataProcessing(ctx, err, "source returned no usable data")
	default:
		return errwrap.WrapExternalService(ctx, err, "source request failed")
	}
}
