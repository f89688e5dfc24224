package main

import (
	"github.com/GoPolymarket/apilogs/internal/config"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "apilogs-inspector",
		Short: "Inspect call log channels and redaction rules",
		Long: `apilogs-inspector loads the same configuration as the server and lets
you check what each channel would emit before deploying it.

Examples:
  apilogs-inspector channels
  apilogs-inspector redact --channel api_logs_redacted --file call.json
  apilogs-inspector prune`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./configs/config.yaml)")

	load := func() (*config.Config, error) { return config.Load(cfgFile) }
	cmd.AddCommand(channelsCommand(load))
	cmd.AddCommand(redactCommand(load))
	cmd.AddCommand(pruneCommand(load))
	return cmd
}

type configLoader func() (*config.Config, error)
