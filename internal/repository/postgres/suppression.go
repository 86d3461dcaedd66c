// Package postgres reads suppression lists from PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hbdrevv/email-filter-utility/internal/loader"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// SourceName is the Table.Source of tables read from the database.
const SourceName = "postgres"

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(3)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// SuppressionSource turns the result of a SQL query into a suppression table.
type SuppressionSource struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSuppressionSource creates a source on db. A zero timeout means the
// caller's context alone bounds the query.
func NewSuppressionSource(db *sql.DB, timeout time.Duration) *SuppressionSource {
	return &SuppressionSource{db: db, timeout: timeout}
}

// Load runs query and returns its rows as a table whose header is the
// result's column names. NULLs become empty cells. emailColumn selects the
// email column; empty means detect it from the column names.
func (s *SuppressionSource) Load(ctx context.Context, query, emailColumn string) (*table.Table, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query suppressions: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}
	t := table.New(SourceName, loader.UniqueHeader(cols))

	col, err := emailColumnFor(t, emailColumn)
	if err != nil {
		return nil, err
	}
	t.EmailColumn = col

	cells := make([]sql.NullString, len(cols))
	dest := make([]interface{}, len(cols))
	for i := range cells {
		dest[i] = &cells[i]
	}
	values := make([]string, len(cols))
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan suppression row: %w", err)
		}
		for i, c := range cells {
			values[i] = c.String
		}
		t.Append(values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suppressions: %w", err)
	}

	logger.Info("suppression list loaded from database",
		"rows", t.Len(),
		"email_column", col,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return t, nil
}

func emailColumnFor(t *table.Table, explicit string) (string, error) {
	if explicit != "" {
		if col, ok := t.FindColumn(explicit); ok {
			return col, nil
		}
		return "", &table.SchemaError{File: SourceName, Column: explicit, Headers: t.Header()}
	}
	if col, ok := loader.DetectEmailColumn(t.Header()); ok {
		return col, nil
	}
	if len(t.Header()) == 1 {
		return t.Header()[0], nil
	}
	return "", &table.SchemaError{File: SourceName, Headers: t.Header()}
}
