package table

import (
	"errors"
	"fmt"
)

// Sentinels matched with errors.Is. The typed errors below unwrap to them.
var (
	ErrFormat   = errors.New("file is not readable tabular data")
	ErrSchema   = errors.New("no email column found")
	ErrEncoding = errors.New("unexpected character encoding")
)

// FormatError is returned when a file cannot be parsed as tabular data.
type FormatError struct {
	File   string
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Reason)
}

func (e *FormatError) Unwrap() []error { return causes(ErrFormat, e.Err) }

// SchemaError is returned when no plausible email column exists.
type SchemaError struct {
	File    string
	Column  string // requested column, empty when auto-detecting
	Headers []string
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: column %q not found (columns: %v)", e.File, e.Column, e.Headers)
	}
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.File, e.Reason)
	}
	return fmt.Sprintf("%s: %v (columns: %v)", e.File, ErrSchema, e.Headers)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// EncodingError is returned when input bytes are not in a supported encoding.
type EncodingError struct {
	File   string
	Offset int
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.File, ErrEncoding, e.Err)
	}
	return fmt.Sprintf("%s: invalid UTF-8 at byte %d", e.File, e.Offset)
}

func (e *EncodingError) Unwrap() []error { return causes(ErrEncoding, e.Err) }

// UserMessage turns an error from loading or filtering into the message shown
// on the interactive surface. Internal failures get a generic message.
func UserMessage(err error) string {
	var (
		fe *FormatError
		se *SchemaError
		ee *EncodingError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fe):
		return fmt.Sprintf("Could not read %s as a CSV or Excel file (%s).", fe.File, fe.Reason)
	case errors.As(err, &se):
		if se.Column != "" {
			return fmt.Sprintf("Column %q was not found in %s. Available columns: %s.", se.Column, se.File, joinColumns(se.Headers))
		}
		if se.Reason != "" {
			return fmt.Sprintf("Could not detect the email column in %s: %s.", se.File, se.Reason)
		}
		return fmt.Sprintf("Could not detect the email column in %s. Please enter it explicitly.", se.File)
	case errors.As(err, &ee):
		return fmt.Sprintf("%s is not UTF-8 encoded. Re-save it as UTF-8 or configure a fallback encoding.", ee.File)
	default:
		return "Something went wrong while filtering. Check the server log for details."
	}
}

func causes(sentinel, err error) []error {
	if err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, err}
}

func joinColumns(cols []string) string {
	if len(cols) == 0 {
		return "(none)"
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%q", c)
	}
	return out
}
