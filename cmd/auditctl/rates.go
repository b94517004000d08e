package main

import (
	"fmt"
	"text/tabwriter"

	"taxaudit/internal/config"
	"taxaudit/internal/withholding"

	"github.com/spf13/cobra"
)

func newRatesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Print the resolved rate table",
		Long: `Print one row per (service type, regime) pair with the rate of every tax
kind. "-" marks a kind that is not withheld; a minimum taxable amount is shown
after the rate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("rates")
			format, _ := cmd.Flags().GetString("format")
			if path == "" {
				path = a.cfg.Audit.RateTableFile
			}

			table, err := config.LoadRateTable(path)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), table.Rules())
			case "table":
			default:
				return fmt.Errorf("unknown format %q, use table or json", format)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprint(tw, "SERVICE\tREGIME")
			for _, kind := range withholding.TaxKinds {
				fmt.Fprintf(tw, "\t%s", kind)
			}
			fmt.Fprintln(tw)

			for _, rule := range table.Rules() {
				fmt.Fprintf(tw, "%s\t%s", rule.ServiceType, rule.Regime)
				for _, kind := range withholding.TaxKinds {
					fmt.Fprintf(tw, "\t%s", formatKindRule(rule.Kind(kind)))
				}
				fmt.Fprintln(tw)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().String("rates", "", "Rate file (YAML, JSON or TOML); defaults to RATE_TABLE_FILE, then the built-in table")
	cmd.Flags().String("format", "table", "Output format: table or json")
	return cmd
}

func formatKindRule(kr withholding.KindRule) string {
	if !kr.Applicable {
		return "-"
	}
	s := kr.Rate.Shift(2).String() + "%"
	if kr.MinimumTaxable.IsPositive() {
		s += " (min " + kr.MinimumTaxable.StringFixed(2) + ")"
	}
	return s
}
