package suppression

import (
	"strconv"

	"github.com/hbdrevv/email-filter-utility/internal/normalize"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// Reason explains why a client row was removed.
type Reason string

const (
	ReasonSuppressionMatch Reason = "suppression_match"
	ReasonEmptyOrInvalid   Reason = "empty_or_invalid_email"
)

// ReasonColumn heads the column Filter prepends to the removed rows.
const ReasonColumn = "Reason"

// Options controls a filter run.
type Options struct {
	Normalize normalize.Options
	// DropInvalidOrEmpty removes client rows whose email cell is empty or
	// holds no address. By default such rows are kept.
	DropInvalidOrEmpty bool
}

// Stats summarizes a filter run.
type Stats struct {
	RowsBefore         int  `json:"rows_before"`
	RemovedTotal       int  `json:"removed_total"`
	SuppressionMatches int  `json:"suppression_matches"`
	EmptyOrInvalid     int  `json:"empty_or_invalid"`
	Kept               int  `json:"kept"`
	SuppressionEntries int  `json:"suppression_entries"`
	CollapseGmailPlus  bool `json:"collapse_gmail_plus"`
	CollapseGmailDots  bool `json:"collapse_gmail_dots"`
	DropInvalidOrEmpty bool `json:"drop_invalid_or_empty"`
}

// Result holds the output of Filter.
type Result struct {
	// Kept has the client header and the surviving rows in input order.
	Kept *table.Table
	// Removed has ReasonColumn followed by the client header.
	Removed *table.Table
	Stats   Stats
	// Set is the suppression set the run matched against.
	Set *Set
}

// Filter returns the client rows whose email is not in the suppression table.
//
// A non-empty emailColumn names the email column of both tables and is
// matched case-insensitively; otherwise each table's detected EmailColumn is
// used. A client cell holding several addresses is suppressed when any of
// them is in the set. Rows with an empty or unparseable email are kept
// unless opts.DropInvalidOrEmpty is set.
func Filter(client, supp *table.Table, emailColumn string, opts Options) (*Result, error) {
	clientCol, err := resolveColumn(client, emailColumn)
	if err != nil {
		return nil, err
	}
	suppCol, err := resolveColumn(supp, emailColumn)
	if err != nil {
		return nil, err
	}

	set := BuildSet(supp, suppCol, opts.Normalize)

	kept := client.Schema()
	kept.EmailColumn = clientCol

	header := client.Header()
	removed := table.New(client.Source, append([]string{reasonColumnFor(header)}, header...))
	removed.EmailColumn = clientCol

	stats := Stats{
		RowsBefore:         client.Len(),
		SuppressionEntries: set.Len(),
		CollapseGmailPlus:  opts.Normalize.CollapseGmailPlus,
		CollapseGmailDots:  opts.Normalize.CollapseGmailDots,
		DropInvalidOrEmpty: opts.DropInvalidOrEmpty,
	}

	for _, row := range client.Rows() {
		cell, _ := row.Get(clientCol)
		reason := classify(normalize.Cell(cell, opts.Normalize), set, opts.DropInvalidOrEmpty)
		switch reason {
		case "":
			kept.AppendRow(row)
			continue
		case ReasonSuppressionMatch:
			stats.SuppressionMatches++
		case ReasonEmptyOrInvalid:
			stats.EmptyOrInvalid++
		}
		removed.Append(append([]string{string(reason)}, row.Values()...))
	}

	stats.Kept = kept.Len()
	stats.RemovedTotal = removed.Len()
	return &Result{Kept: kept, Removed: removed, Stats: stats, Set: set}, nil
}

// classify returns the removal reason for a row, or "" to keep it.
// A suppression match takes precedence over an invalid address.
func classify(emails []string, set *Set, dropInvalid bool) Reason {
	for _, e := range emails {
		if set.ContainsEmail(e) {
			return ReasonSuppressionMatch
		}
	}
	if len(emails) == 0 && dropInvalid {
		return ReasonEmptyOrInvalid
	}
	return ""
}

func resolveColumn(t *table.Table, explicit string) (string, error) {
	if explicit != "" {
		if col, ok := t.FindColumn(explicit); ok {
			return col, nil
		}
		return "", &table.SchemaError{File: t.Source, Column: explicit, Headers: t.Header()}
	}
	if t.EmailColumn != "" && t.HasColumn(t.EmailColumn) {
		return t.EmailColumn, nil
	}
	return "", &table.SchemaError{File: t.Source, Headers: t.Header()}
}

// reasonColumnFor picks a name for the reason column that does not collide
// with a client column.
func reasonColumnFor(header []string) string {
	taken := make(map[string]bool, len(header))
	for _, h := range header {
		taken[h] = true
	}
	name := ReasonColumn
	for i := 1; taken[name]; i++ {
		name = ReasonColumn + "." + strconv.Itoa(i)
	}
	return name
}
