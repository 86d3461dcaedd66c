package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hbdrevv/email-filter-utility/internal/api"
	"github.com/hbdrevv/email-filter-utility/internal/config"
	"github.com/hbdrevv/email-filter-utility/internal/loader"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
	"github.com/hbdrevv/email-filter-utility/internal/repository/postgres"
	"github.com/hbdrevv/email-filter-utility/internal/report"
	"github.com/hbdrevv/email-filter-utility/internal/service/filtering"
	"github.com/hbdrevv/email-filter-utility/internal/storage"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the local upload form",
		Long: `Serve starts the upload form on 127.0.0.1. Port 0, the default, picks a
free port; the address is printed once the server is listening.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(cmd, a.cfg)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: server.port or PORT)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := buildServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	addr, err := srv.Listen()
	if err != nil {
		return err
	}
	logger.Info("server listening", "addr", addr, "storage", cfg.Storage.Type)
	statusColor.Fprintf(cmd.OutOrStdout(), "Email filter running at http://%s (Ctrl+C to stop)\n", addr)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// buildServer wires the loader, renderer, download store and the optional
// suppression database into a server. cleanup releases the connections.
func buildServer(ctx context.Context, cfg *config.Config) (*api.Server, func(), error) {
	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
	}

	l, err := loader.New(loader.Options{Sheet: cfg.Loader.Sheet, FallbackEncoding: cfg.Loader.FallbackEncoding})
	if err != nil {
		return nil, nil, err
	}
	r, err := report.NewFromFile(cfg.Report.Template)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	checks := map[string]api.PingFunc{"database": nil}
	if c, ok := store.(io.Closer); ok {
		closers = append(closers, c)
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["download_store"] = p.Ping
	}

	opts := []filtering.Option{filtering.WithStore(store)}
	databaseEnabled := false
	if cfg.Postgres.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.DatabaseURL)
		if err != nil {
			// Uploaded suppression files still work without the database.
			logger.Warn("suppression database unavailable", "error", err)
			warnColor.Fprintf(os.Stderr, "Warning: suppression database unavailable: %v\n", err)
		} else {
			closers = append(closers, db)
			checks["database"] = db.PingContext
			databaseEnabled = true
			opts = append(opts, filtering.WithSuppressionSource(
				postgres.NewSuppressionSource(db, cfg.Postgres.Timeout()), cfg.Postgres.SuppressionQuery))
		}
	}

	svc := filtering.NewService(l, r, cfg.Output, opts...)
	h := api.NewHandlers(svc, cfg.Filter, cfg.Server.MaxUploadBytes(), databaseEnabled)
	return api.NewServer(cfg.Server, h, api.NewHealthChecker(checks)), cleanup, nil
}
