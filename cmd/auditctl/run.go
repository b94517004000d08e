package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"taxaudit/internal/config"
	"taxaudit/internal/logger"
	"taxaudit/internal/paymentfile"
	"taxaudit/internal/withholding"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// errFindings is returned by --fail-on-findings when a run is not clean.
var errFindings = errors.New("non-compliant payments found")

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Audit the payments of a JSON export",
		Long: `Reconcile every payment in a JSON export against the rate table.

With --client only that client's payments are audited; otherwise every client
in the export is audited in order of first appearance.`,
		Example: `  # Audit one client with the built-in rate table
  auditctl run --payments payments.json --client 0b5c...

  # Audit every client with a custom rate file, as JSON
  auditctl run --payments payments.json --rates rates.yaml --format json

  # Exit non-zero when anything is out of tolerance
  auditctl run --payments payments.json --fail-on-findings`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAudit(cmd)
		},
	}

	cmd.Flags().String("payments", "", "Payment export (JSON)")
	cmd.Flags().String("rates", "", "Rate file (YAML, JSON or TOML); defaults to RATE_TABLE_FILE, then the built-in table")
	cmd.Flags().String("client", "", "Audit only this client")
	cmd.Flags().Int("workers", -1, "Concurrent reconciliations (0 = one per CPU, default from AUDIT_WORKERS)")
	cmd.Flags().String("tolerance", "", "Allowed difference per tax kind (default from AUDIT_TOLERANCE)")
	cmd.Flags().String("format", "table", "Output format: table or json")
	cmd.Flags().Bool("partial", false, "Print the records finished so far when interrupted")
	cmd.Flags().Bool("fail-on-findings", false, "Exit with an error when a payment is non-compliant or fails")
	_ = cmd.MarkFlagRequired("payments")

	return cmd
}

func (a *app) runAudit(cmd *cobra.Command) error {
	log := logger.WithComponent("run")

	paymentsPath, _ := cmd.Flags().GetString("payments")
	ratesPath, _ := cmd.Flags().GetString("rates")
	clientID, _ := cmd.Flags().GetString("client")
	workers, _ := cmd.Flags().GetInt("workers")
	toleranceStr, _ := cmd.Flags().GetString("tolerance")
	format, _ := cmd.Flags().GetString("format")
	partial, _ := cmd.Flags().GetBool("partial")
	failOnFindings, _ := cmd.Flags().GetBool("fail-on-findings")

	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q, use table or json", format)
	}

	if workers < 0 {
		workers = a.cfg.Audit.Workers
	}
	tolerance := a.cfg.Audit.Tolerance
	if toleranceStr != "" {
		t, err := decimal.NewFromString(toleranceStr)
		if err != nil {
			return fmt.Errorf("invalid tolerance %q: %w", toleranceStr, err)
		}
		if t.IsNegative() {
			return fmt.Errorf("tolerance must be >= 0, got %s", t)
		}
		tolerance = t
	}
	if ratesPath == "" {
		ratesPath = a.cfg.Audit.RateTableFile
	}

	table, err := config.LoadRateTable(ratesPath)
	if err != nil {
		return err
	}
	src, err := paymentfile.Open(paymentsPath)
	if err != nil {
		return err
	}

	engine := withholding.NewEngine(table,
		withholding.WithTolerance(tolerance),
		withholding.WithWorkers(workers),
		withholding.WithSource(src),
	)

	var opts []withholding.RunOption
	if partial {
		opts = append(opts, withholding.AllowPartial())
	}

	clients := src.Clients()
	if clientID != "" {
		clients = []string{clientID}
	}

	log.Info().
		Str("payments", paymentsPath).
		Int("clients", len(clients)).
		Int("rules", table.Len()).
		Str("tolerance", tolerance.String()).
		Msg("Starting audit")

	results, err := auditClients(cmd.Context(), engine, clients, opts...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == "json" {
		if clientID != "" {
			err = writeJSON(out, results[0])
		} else {
			err = writeJSON(out, results)
		}
	} else {
		err = writeResults(out, results)
	}
	if err != nil {
		return err
	}

	if failOnFindings {
		for _, res := range results {
			if res.Aggregate.NonCompliantCount > 0 || res.FailureCount > 0 {
				return errFindings
			}
		}
	}
	return nil
}

// auditClients runs the engine for each client in turn. An interrupted run
// that kept its partial result ends the loop with that result last.
func auditClients(ctx context.Context, engine *withholding.Engine, clients []string, opts ...withholding.RunOption) ([]*withholding.AuditResult, error) {
	log := logger.WithComponent("run")

	results := make([]*withholding.AuditResult, 0, len(clients))
	for _, id := range clients {
		res, err := engine.RunAudit(ctx, id, opts...)
		if res != nil && res.Partial {
			log.Warn().Err(err).Str("client_id", id).Msg("Audit interrupted, results are partial")
			return append(results, res), nil
		}
		if err != nil {
			return nil, fmt.Errorf("audit client %s: %w", id, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeResults(w io.Writer, results []*withholding.AuditResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		agg := res.Aggregate
		fmt.Fprintf(tw, "Client %s: %d payments, %d non-compliant, %d failed\n",
			res.ClientID, agg.PaymentCount, agg.NonCompliantCount, res.FailureCount)

		fmt.Fprintln(tw, "DOCUMENT\tSERVICE\tREGIME\tGROSS\tEXPECTED\tACTUAL\tDELTA\tCLASSIFICATION")
		for _, r := range res.Records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.DocumentNumber, r.ServiceType, r.SupplierRegime,
				r.GrossAmount.StringFixed(2), r.Expected.Sum().StringFixed(2),
				r.Actual.Sum().StringFixed(2), r.Delta.Sum().StringFixed(2), r.Classification)
		}
		fmt.Fprintf(tw, "TOTAL\t\t\t%s\t%s\t%s\t%s\t\n",
			agg.TotalGross.StringFixed(2), agg.TotalExpected.Sum().StringFixed(2),
			agg.TotalActual.Sum().StringFixed(2), agg.TotalDelta.Sum().StringFixed(2))

		fmt.Fprint(tw, "DELTA BY KIND")
		for _, kind := range withholding.TaxKinds {
			fmt.Fprintf(tw, "\t%s %s", kind, agg.TotalDelta.Get(kind).StringFixed(2))
		}
		fmt.Fprintln(tw)

		for _, f := range res.Failures {
			fmt.Fprintf(tw, "FAILED\t%s\t%s\t%s\n", f.DocumentNumber, f.Kind, f.Message)
		}
		if res.Partial {
			fmt.Fprintln(tw, "PARTIAL RESULT: run was interrupted")
		}
	}

	return tw.Flush()
}
