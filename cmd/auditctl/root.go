package main

import (
	"taxaudit/internal/config"
	"taxaudit/internal/logger"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

// app carries the configuration loaded before every subcommand.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "auditctl",
		Short: "Withholding audit CLI",
		Long: `auditctl reconciles the federal and municipal withholdings (IR, PIS,
COFINS, CSLL and ISS) recorded on service payments against the rate table,
reading payments from a JSON export instead of the database.

Audit defaults (AUDIT_WORKERS, AUDIT_TOLERANCE, RATE_TABLE_FILE) and logging
settings are read from the environment and the --env file. Logs go to stderr
unless LOG_OUTPUT names a file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, _ := cmd.Flags().GetString("env")
			cfg, err := config.Load(envFile)
			if err != nil {
				return err
			}

			logCfg := cfg.GetLoggerConfig()
			if logCfg.Output == "" || logCfg.Output == "stdout" {
				logCfg.Output = "stderr"
			}
			if err := logger.Setup(logCfg); err != nil {
				return err
			}

			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().String("env", config.DefaultEnvFile, "Environment file to load before reading the environment")

	root.AddCommand(newRunCmd(a), newRatesCmd(a))
	return root
}
