// Package table holds the in-memory tabular model shared by the loader, the
// filter engine and the exporters: a header plus an ordered list of rows.
package table

import "strings"

// Table is an ordered sequence of Rows sharing one header.
type Table struct {
	Source      string // file or query the table was read from
	EmailColumn string // header name of the detected email column
	header      []string
	index       map[string]int
	rows        []Row
}

// Row is an ordered mapping from column name to cell value. Missing cells
// are the empty string. Rows are not modified after they are appended.
type Row struct {
	header []string
	index  map[string]int
	values []string
}

// New creates an empty table with the given header. Header names must be
// unique; the loader guarantees this by suffixing duplicates.
func New(source string, header []string) *Table {
	h := append([]string(nil), header...)
	idx := make(map[string]int, len(h))
	for i, name := range h {
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	return &Table{Source: source, header: h, index: idx}
}

// Append adds a row. Short rows are padded with empty cells and extra cells
// beyond the header width are dropped.
func (t *Table) Append(values []string) {
	v := make([]string, len(t.header))
	copy(v, values)
	t.rows = append(t.rows, Row{header: t.header, index: t.index, values: v})
}

// AppendRow adds an existing row, re-keyed to this table's header by column
// name. Columns the row does not have become empty cells.
func (t *Table) AppendRow(r Row) {
	v := make([]string, len(t.header))
	for i, name := range t.header {
		v[i], _ = r.Get(name)
	}
	t.rows = append(t.rows, Row{header: t.header, index: t.index, values: v})
}

// Header returns a copy of the column names in order.
func (t *Table) Header() []string { return append([]string(nil), t.header...) }

// Rows returns the rows in order. The slice must not be modified.
func (t *Table) Rows() []Row { return t.rows }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether the header contains name exactly.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// FindColumn resolves name against the header, first exactly and then
// ignoring case and surrounding whitespace. It returns the header's spelling.
func (t *Table) FindColumn(name string) (string, bool) {
	if t.HasColumn(name) {
		return name, true
	}
	want := strings.ToLower(strings.TrimSpace(name))
	for _, h := range t.header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return h, true
		}
	}
	return "", false
}

// Schema returns an empty table with the same source, header and email column.
func (t *Table) Schema() *Table {
	out := New(t.Source, t.header)
	out.EmailColumn = t.EmailColumn
	return out
}

// Records returns the header followed by every row as plain string slices,
// the shape encoding/csv and the XLSX writer expect.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.rows)+1)
	out = append(out, t.Header())
	for _, r := range t.rows {
		out = append(out, r.Values())
	}
	return out
}

// Get returns the cell for column name and whether the column exists.
func (r Row) Get(name string) (string, bool) {
	i, ok := r.index[name]
	if !ok {
		return "", false
	}
	return r.values[i], true
}

// Value returns the cell at position i.
func (r Row) Value(i int) string { return r.values[i] }

// Values returns a copy of the cells in header order.
func (r Row) Values() []string { return append([]string(nil), r.values...) }

// Columns returns the header the row belongs to.
func (r Row) Columns() []string { return append([]string(nil), r.header...) }
