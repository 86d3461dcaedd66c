package filtering

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hbdrevv/email-filter-utility/internal/config"
	"github.com/hbdrevv/email-filter-utility/internal/export"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
	"github.com/hbdrevv/email-filter-utility/internal/report"
	"github.com/hbdrevv/email-filter-utility/internal/storage"
	"github.com/hbdrevv/email-filter-utility/internal/suppression"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// File is one named input.
type File struct {
	Name   string
	Reader io.Reader
}

// Request describes a filter run over uploaded files.
type Request struct {
	Client      File
	Suppression File
	// UseDatabase reads the suppression list from the configured
	// SuppressionSource instead of Suppression.
	UseDatabase bool
	EmailColumn string
	Options     suppression.Options
}

// Outcome is the result of a run.
type Outcome struct {
	Result  *suppression.Result
	Summary string
}

// Download identifies a stored output file.
type Download struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Rows        int    `json:"rows"`
}

// Service implements a filter run. It is safe for concurrent use.
type Service struct {
	loader   TableLoader
	renderer *report.Renderer
	store    storage.Store
	source   SuppressionSource
	query    string
	output   config.OutputConfig
}

// Option configures optional collaborators.
type Option func(*Service)

// WithStore enables Publish.
func WithStore(store storage.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithSuppressionSource enables Request.UseDatabase with the given query.
func WithSuppressionSource(src SuppressionSource, query string) Option {
	return func(s *Service) {
		s.source = src
		s.query = query
	}
}

// NewService creates a service. output names the generated files.
func NewService(l TableLoader, r *report.Renderer, output config.OutputConfig, opts ...Option) *Service {
	s := &Service{loader: l, renderer: r, output: output}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run loads both lists and filters the client list.
func (s *Service) Run(ctx context.Context, req Request) (*Outcome, error) {
	if req.Client.Reader == nil || (!req.UseDatabase && req.Suppression.Reader == nil) {
		return nil, ErrMissingInput
	}

	client, err := s.loader.LoadReader(req.Client.Name, req.Client.Reader, req.EmailColumn)
	if err != nil {
		return nil, fmt.Errorf("load client list: %w", err)
	}

	var supp *table.Table
	if req.UseDatabase {
		supp, err = s.LoadSuppressionFromSource(ctx, req.EmailColumn)
	} else {
		supp, err = s.loader.LoadReader(req.Suppression.Name, req.Suppression.Reader, req.EmailColumn)
		if err != nil {
			err = fmt.Errorf("load suppression list: %w", err)
		}
	}
	if err != nil {
		return nil, err
	}

	return s.Filter(client, supp, req.EmailColumn, req.Options)
}

// LoadSuppressionFromSource reads the suppression list from the configured
// SuppressionSource.
func (s *Service) LoadSuppressionFromSource(ctx context.Context, emailColumn string) (*table.Table, error) {
	if s.source == nil {
		return nil, ErrNoDatabase
	}
	supp, err := s.source.Load(ctx, s.query, emailColumn)
	if err != nil {
		return nil, fmt.Errorf("load suppression list from database: %w", err)
	}
	return supp, nil
}

// Filter filters already loaded tables and renders the summary.
func (s *Service) Filter(client, supp *table.Table, emailColumn string, opts suppression.Options) (*Outcome, error) {
	start := time.Now()

	res, err := suppression.Filter(client, supp, emailColumn, opts)
	if err != nil {
		return nil, err
	}

	logger.Debug("suppression set built",
		"entries", res.Set.Len(),
		"memory_bytes", res.Set.MemoryBytes(),
		"bloom_fp_rate", res.Set.FalsePositiveRate(),
	)

	summary, err := s.renderer.Render(res.Stats)
	if err != nil {
		return nil, err
	}

	logger.Info("filter run complete",
		"client", client.Source,
		"suppression", supp.Source,
		"rows_before", res.Stats.RowsBefore,
		"suppression_entries", res.Stats.SuppressionEntries,
		"removed", res.Stats.RemovedTotal,
		"kept", res.Stats.Kept,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Outcome{Result: res, Summary: summary}, nil
}

// Publish encodes the kept and removed tables and stores them, returning
// the filtered download first.
func (s *Service) Publish(ctx context.Context, o *Outcome) ([]Download, error) {
	if s.store == nil {
		return nil, ErrStoreNotEnabled
	}

	files := []struct {
		name string
		t    *table.Table
	}{
		{s.output.FilteredName, o.Result.Kept},
		{s.output.RemovedName, o.Result.Removed},
	}

	downloads := make([]Download, 0, len(files))
	for _, f := range files {
		format := export.FormatFor(f.name)
		data, err := export.Encode(f.t, format)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.name, err)
		}
		id, err := s.store.Put(ctx, storage.Object{
			Name:        f.name,
			ContentType: format.ContentType(),
			Data:        data,
		})
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", f.name, err)
		}
		downloads = append(downloads, Download{
			ID:          id,
			Name:        f.name,
			ContentType: format.ContentType(),
			Rows:        f.t.Len(),
		})
	}
	return downloads, nil
}

// Fetch returns a stored download.
func (s *Service) Fetch(ctx context.Context, id string) (*storage.Object, error) {
	if s.store == nil {
		return nil, ErrStoreNotEnabled
	}
	return s.store.Get(ctx, id)
}

// WriteOutputs writes the kept and removed tables to local paths. An empty
// removedPath skips the audit file.
func WriteOutputs(o *Outcome, filteredPath, removedPath string) error {
	if err := export.WriteFile(filteredPath, o.Result.Kept); err != nil {
		return err
	}
	if removedPath == "" {
		return nil
	}
	return export.WriteFile(removedPath, o.Result.Removed)
}
