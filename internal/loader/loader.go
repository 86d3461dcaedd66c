// Package loader reads client and suppression lists from delimited text or
// XLSX files into tables and identifies their email column.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"

	"github.com/hbdrevv/email-filter-utility/internal/normalize"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// Options controls parsing.
type Options struct {
	// Sheet selects the XLSX worksheet. Empty means the first sheet.
	Sheet string
	// FallbackEncoding decodes input that is not valid UTF-8, for example
	// "windows-1252". Empty means such input is rejected with an EncodingError.
	FallbackEncoding string
}

// Loader parses tabular files. It holds no state between calls and is safe
// for concurrent use.
type Loader struct {
	opts     Options
	fallback encoding.Encoding
}

// New creates a Loader. It fails if the fallback encoding is unknown.
func New(opts Options) (*Loader, error) {
	l := &Loader{opts: opts}
	if opts.FallbackEncoding != "" {
		enc, err := lookupEncoding(opts.FallbackEncoding)
		if err != nil {
			return nil, err
		}
		l.fallback = enc
	}
	return l, nil
}

// Load reads the file at path. emailColumn names the email column; empty
// means detect it from the header.
func (l *Loader) Load(path, emailColumn string) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &table.FormatError{File: filepath.Base(path), Reason: "cannot open file", Err: err}
	}
	return l.parse(filepath.Base(path), data, emailColumn)
}

// LoadReader reads an uploaded file. name is the client-side filename and
// selects the format by its extension.
func (l *Loader) LoadReader(name string, r io.Reader, emailColumn string) (*table.Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &table.FormatError{File: name, Reason: "cannot read upload", Err: err}
	}
	return l.parse(name, data, emailColumn)
}

type format int

const (
	formatDelimited format = iota
	formatSpreadsheet
	formatUnknown
)

var (
	zipSignature = []byte("PK\x03\x04")
	oleSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

func detectFormat(name string, data []byte) format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".txt":
		return formatDelimited
	case ".xlsx", ".xlsm", ".xls":
		return formatSpreadsheet
	}
	if bytes.HasPrefix(data, zipSignature) {
		return formatSpreadsheet
	}
	return formatUnknown
}

func (l *Loader) parse(name string, data []byte, emailColumn string) (*table.Table, error) {
	if bytes.HasPrefix(data, oleSignature) {
		return nil, &table.FormatError{File: name, Reason: "legacy .xls workbooks are not supported, save the file as .xlsx or .csv"}
	}

	var (
		records [][]string
		err     error
	)
	switch detectFormat(name, data) {
	case formatSpreadsheet:
		records, err = readSpreadsheet(name, data, l.opts.Sheet)
	case formatDelimited:
		records, err = l.readDelimited(name, data)
	default:
		// Unknown extension: text first, then workbook.
		records, err = l.readDelimited(name, data)
		if err != nil {
			if wb, wbErr := readSpreadsheet(name, data, l.opts.Sheet); wbErr == nil {
				records, err = wb, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return build(name, records, emailColumn)
}

// build turns raw records into a Table: the first non-blank record is the
// header and fully blank records are dropped.
func build(name string, records [][]string, emailColumn string) (*table.Table, error) {
	records = dropBlank(records)
	if len(records) == 0 {
		return nil, &table.FormatError{File: name, Reason: "no header row"}
	}

	t := table.New(name, UniqueHeader(records[0]))
	for _, rec := range records[1:] {
		t.Append(rec)
	}

	col, err := resolveEmailColumn(t, emailColumn)
	if err != nil {
		return nil, err
	}
	t.EmailColumn = col

	logger.Debug("table loaded",
		"file", name,
		"rows", t.Len(),
		"columns", len(t.Header()),
		"email_column", col,
	)
	return t, nil
}

func resolveEmailColumn(t *table.Table, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	if explicit != "" {
		if col, ok := t.FindColumn(explicit); ok {
			return col, nil
		}
		return "", &table.SchemaError{File: t.Source, Column: explicit, Headers: t.Header()}
	}

	header := t.Header()
	for _, h := range header {
		if normalize.LooksLikeEmail(h) {
			return "", &table.SchemaError{
				File:    t.Source,
				Headers: header,
				Reason:  "the first row contains an email address, a header row is required",
			}
		}
	}

	col, ok := DetectEmailColumn(header)
	if !ok {
		return "", &table.SchemaError{File: t.Source, Headers: header}
	}
	return col, nil
}

func dropBlank(records [][]string) [][]string {
	out := records[:0]
	for _, rec := range records {
		for _, cell := range rec {
			if strings.TrimSpace(cell) != "" {
				out = append(out, rec)
				break
			}
		}
	}
	return out
}

// UniqueHeader names blank header cells "Unnamed: N" and suffixes repeated
// names with ".1", ".2", ... so every column can be addressed by name.
func UniqueHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		name := h
		for n := 1; seen[name]; n++ {
			name = fmt.Sprintf("%s.%d", h, n)
		}
		seen[name] = true
		header[i] = name
	}
	return header
}
