package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/config"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/core/provider"
	errwrap "github.com/CryptoZapCommunity/crypto-zap-dash/internal/errors"
	"github.com/CryptoZapCommunity/crypto-zap-dash/internal/output"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources [domain...]",
	Short: "Show the fallback cascade for each domain",
	Long: `Show the sources each domain tries, in order, with the timeout and cache TTL
that apply after configuration overrides. Sources without an API key or
disabled in config are listed as skipped.

Domains: prices, news, economic, whales, airdrops.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(mustGetString(cmd, "output"))
		if err != nil {
			return errwrap.NewInvalidInputError(err.Error())
		}

		domains, err := parseDomains(args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration invalid")
		}

		rendered, err := output.NewFormatter(format).FormatSources(sourceRows(cfg, domains))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), rendered)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
	sourcesCmd.Flags().StringP("output", "o", "table", "output format: table, json, markdown")
}

func parseDomains(args []string) ([]core.Domain, error) {
	if len(args) == 0 {
		return core.Domains, nil
	}
	domains := make([]core.Domain, 0, len(args))
	for _, arg := range args {
		domain, ok := core.ParseDomain(arg)
		if !ok {
			return nil, errwrap.NewInvalidInputError(fmt.Sprintf("unknown domain %q", arg))
		}
		domains = append(domains, domain)
	}
	return domains, nil
}

func sourceRows(cfg *config.Config, domains []core.Domain) []output.SourceRow {
	var rows []output.SourceRow
	for _, domain := range domains {
		for i, planned := range provider.Plan(cfg, domain) {
			rows = append(rows, output.SourceRow{
				Domain:   string(domain),
				Position: i + 1,
				Name:     planned.Name,
				Provider: planned.Provider,
				Keyed:    planned.Keyed,
				Timeout:  planned.Timeout,
				TTL:      planned.TTL,
				Skipped:  planned.Skipped,
			})
		}
	}
	return rows
}

func mustGetString(cmd *cobra.Command, name string) string {
	value, _ := cmd.Flags().GetString(name)
	return value
}
