package filtering

import (
	"context"
	"io"

	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// TableLoader parses an uploaded or local file into a table.
type TableLoader interface {
	LoadReader(name string, r io.Reader, emailColumn string) (*table.Table, error)
	Load(path, emailColumn string) (*table.Table, error)
}

// SuppressionSource reads a suppression table from somewhere other than a
// file, such as a database query.
type SuppressionSource interface {
	Load(ctx context.Context, query, emailColumn string) (*table.Table, error)
}
