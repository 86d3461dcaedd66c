package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/hbdrevv/email-filter-utility/internal/config"
	"github.com/hbdrevv/email-filter-utility/internal/loader"
	"github.com/hbdrevv/email-filter-utility/internal/normalize"
	"github.com/hbdrevv/email-filter-utility/internal/repository/postgres"
	"github.com/hbdrevv/email-filter-utility/internal/report"
	"github.com/hbdrevv/email-filter-utility/internal/service/filtering"
	"github.com/hbdrevv/email-filter-utility/internal/suppression"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

const (
	sourceFile     = "file"
	sourcePostgres = "postgres"
)

type filterFlags struct {
	client      string
	suppression string
	source      string
	emailColumn string
	out         string
	removed     string
	sheet       string
	gmailPlus   bool
	gmailDots   bool
	dropInvalid bool
	noRemoved   bool
}

func newFilterCmd(a *app) *cobra.Command {
	f := &filterFlags{}

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter a client list against a suppression list",
		Long: `Filter writes the client rows whose email is not in the suppression list
to --out, and the removed rows with the reason for removal to --removed.

The suppression list is read from --suppression, or from the configured
PostgreSQL query with --suppression-source postgres.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.applyDefaults(cmd, a.cfg)
			return runFilter(cmd, a.cfg, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.client, "client", "", "client list (CSV or XLSX)")
	flags.StringVar(&f.suppression, "suppression", "", "suppression list (CSV or XLSX)")
	flags.StringVar(&f.source, "suppression-source", sourceFile, "where the suppression list comes from: file or postgres")
	flags.StringVar(&f.emailColumn, "email-column", "", "email column name in both lists (default: detect)")
	flags.StringVar(&f.out, "out", "", "filtered output path (default: output.filtered_name)")
	flags.StringVar(&f.removed, "removed", "", "removed rows output path (default: output.removed_name)")
	flags.BoolVar(&f.noRemoved, "no-removed", false, "do not write the removed rows file")
	flags.StringVar(&f.sheet, "sheet", "", "worksheet to read from XLSX input (default: first sheet)")
	flags.BoolVar(&f.gmailPlus, "gmail-plus", false, "treat Gmail plus aliases as the same address")
	flags.BoolVar(&f.gmailDots, "gmail-dots", false, "ignore dots in Gmail local parts")
	flags.BoolVar(&f.dropInvalid, "drop-invalid", false, "remove rows with an empty or invalid email")
	_ = cmd.MarkFlagRequired("client")

	return cmd
}

// applyDefaults fills the flags the user did not set from config.
func (f *filterFlags) applyDefaults(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if !changed("email-column") {
		f.emailColumn = cfg.Filter.EmailColumn
	}
	if !changed("sheet") {
		f.sheet = cfg.Loader.Sheet
	}
	if !changed("gmail-plus") {
		f.gmailPlus = cfg.Filter.CollapseGmailPlus
	}
	if !changed("gmail-dots") {
		f.gmailDots = cfg.Filter.CollapseGmailDots
	}
	if !changed("drop-invalid") {
		f.dropInvalid = cfg.Filter.DropInvalidOrEmpty
	}
	if f.out == "" {
		f.out = cfg.Output.FilteredName
	}
	if f.removed == "" {
		f.removed = cfg.Output.RemovedName
	}
	if f.noRemoved {
		f.removed = ""
	}
}

func runFilter(cmd *cobra.Command, cfg *config.Config, f *filterFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if f.source != sourceFile && f.source != sourcePostgres {
		return fmt.Errorf("unknown --suppression-source %q (want %s or %s)", f.source, sourceFile, sourcePostgres)
	}
	if f.source == sourceFile && f.suppression == "" {
		return filtering.ErrMissingInput
	}

	l, err := loader.New(loader.Options{Sheet: f.sheet, FallbackEncoding: cfg.Loader.FallbackEncoding})
	if err != nil {
		return err
	}
	r, err := report.NewFromFile(cfg.Report.Template)
	if err != nil {
		return err
	}

	var opts []filtering.Option
	if f.source == sourcePostgres {
		db, err := openDatabase(cmd, cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, filtering.WithSuppressionSource(
			postgres.NewSuppressionSource(db, cfg.Postgres.Timeout()), cfg.Postgres.SuppressionQuery))
	}
	svc := filtering.NewService(l, r, cfg.Output, opts...)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Loading lists..."
	s.Start()

	client, err := l.Load(f.client, f.emailColumn)
	if err != nil {
		s.Stop()
		return fmt.Errorf("load client list: %w", err)
	}

	var supp *table.Table
	if f.source == sourcePostgres {
		supp, err = svc.LoadSuppressionFromSource(ctx, f.emailColumn)
	} else {
		supp, err = l.Load(f.suppression, f.emailColumn)
		if err != nil {
			err = fmt.Errorf("load suppression list: %w", err)
		}
	}
	if err != nil {
		s.Stop()
		return err
	}

	s.Lock()
	s.Suffix = " Filtering..."
	s.Unlock()
	outcome, err := svc.Filter(client, supp, f.emailColumn, suppression.Options{
		Normalize: normalize.Options{
			CollapseGmailPlus: f.gmailPlus,
			CollapseGmailDots: f.gmailDots,
		},
		DropInvalidOrEmpty: f.dropInvalid,
	})
	s.Stop()
	if err != nil {
		return err
	}

	if err := filtering.WriteOutputs(outcome, f.out, f.removed); err != nil {
		return fmt.Errorf("write outputs: %w", err)
	}

	successColor.Fprintln(out, outcome.Summary)
	fmt.Fprintln(out)
	statusColor.Fprintf(out, "Filtered list: %s (%d rows)\n", f.out, outcome.Result.Kept.Len())
	if f.removed != "" {
		statusColor.Fprintf(out, "Removed rows:  %s (%d rows)\n", f.removed, outcome.Result.Removed.Len())
	}
	return nil
}

func openDatabase(cmd *cobra.Command, cfg *config.Config) (*sql.DB, error) {
	if cfg.Postgres.DatabaseURL == "" {
		return nil, filtering.ErrNoDatabase
	}
	statusColor.Fprintln(cmd.ErrOrStderr(), "Connecting to the suppression database...")
	return postgres.Open(cmd.Context(), cfg.Postgres.DatabaseURL)
}
