package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hbdrevv/email-filter-utility/internal/config"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
)

var (
	statusColor  = color.New(color.FgCyan)
	errorColor   = color.New(color.FgRed)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
)

// app carries what the persistent flags resolve to.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "email-filter",
		Short: "Remove suppressed email addresses from a client list",
		Long: `email-filter removes every row of a client list whose email address
appears in a suppression list. Both lists may be CSV or XLSX files.

Quick start:
  email-filter filter --client clients.csv --suppression unsubscribes.xlsx
  email-filter serve                 # Local upload form on a free port`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv(a.configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", a.configPath, err)
			}
			logger.Configure(cfg.Logging.Level, cfg.Logging.Redact())
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", config.DefaultPath, "path to the YAML config file")

	cmd.AddCommand(newFilterCmd(a))
	cmd.AddCommand(newServeCmd(a))
	return cmd
}
