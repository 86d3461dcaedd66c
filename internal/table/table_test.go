package table

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendPadsAndTruncates(t *testing.T) {
	tbl := New("clients.csv", []string{"email", "name", "city"})
	tbl.Append([]string{"x@y.com"})
	tbl.Append([]string{"z@y.com", "Zed", "Oslo", "extra"})

	want := [][]string{
		{"email", "name", "city"},
		{"x@y.com", "", ""},
		{"z@y.com", "Zed", "Oslo"},
	}
	if diff := cmp.Diff(want, tbl.Records()); diff != "" {
		t.Errorf("Records() mismatch (-want +got):\n%s", diff)
	}
}

func TestRowGet(t *testing.T) {
	tbl := New("clients.csv", []string{"Email", "Name"})
	tbl.Append([]string{"a@b.com", "Ann"})

	row := tbl.Rows()[0]
	v, ok := row.Get("Name")
	assert.True(t, ok)
	assert.Equal(t, "Ann", v)

	_, ok = row.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, "a@b.com", row.Value(0))
	assert.Equal(t, []string{"Email", "Name"}, row.Columns())
}

func TestRowsAreIsolatedFromCallerSlices(t *testing.T) {
	tbl := New("clients.csv", []string{"email"})
	values := []string{"a@b.com"}
	tbl.Append(values)
	values[0] = "changed@b.com"

	assert.Equal(t, "a@b.com", tbl.Rows()[0].Value(0))

	got := tbl.Rows()[0].Values()
	got[0] = "mutated"
	assert.Equal(t, "a@b.com", tbl.Rows()[0].Value(0))
}

func TestFindColumn(t *testing.T) {
	tbl := New("clients.csv", []string{"Id", " Email Address "})

	name, ok := tbl.FindColumn("email address")
	require.True(t, ok)
	assert.Equal(t, " Email Address ", name)

	name, ok = tbl.FindColumn("Id")
	require.True(t, ok)
	assert.Equal(t, "Id", name)

	_, ok = tbl.FindColumn("phone")
	assert.False(t, ok)
}

func TestSchemaKeepsHeaderAndEmailColumn(t *testing.T) {
	tbl := New("clients.csv", []string{"email", "name"})
	tbl.EmailColumn = "email"
	tbl.Append([]string{"a@b.com", "Ann"})

	empty := tbl.Schema()
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, []string{"email", "name"}, empty.Header())
	assert.Equal(t, "email", empty.EmailColumn)
	assert.Equal(t, "clients.csv", empty.Source)
}

func TestAppendRowRekeysByName(t *testing.T) {
	src := New("clients.csv", []string{"email", "name"})
	src.Append([]string{"a@b.com", "Ann"})

	dst := New("removed.csv", []string{"Reason", "email", "name"})
	dst.AppendRow(src.Rows()[0])

	assert.Equal(t, []string{"", "a@b.com", "Ann"}, dst.Rows()[0].Values())
}

func TestErrorsUnwrapToSentinels(t *testing.T) {
	var err error = &FormatError{File: "a.csv", Reason: "bad quote", Err: fmt.Errorf("line 3")}
	assert.True(t, errors.Is(err, ErrFormat))

	err = fmt.Errorf("load client list: %w", &SchemaError{File: "a.csv", Headers: []string{"id"}})
	assert.True(t, errors.Is(err, ErrSchema))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "a.csv", se.File)

	err = &EncodingError{File: "a.csv", Offset: 12}
	assert.True(t, errors.Is(err, ErrEncoding))
	assert.Contains(t, err.Error(), "byte 12")
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"format", &FormatError{File: "a.csv", Reason: "no header row"}, "Could not read a.csv as a CSV or Excel file (no header row)."},
		{"schema explicit", &SchemaError{File: "a.csv", Column: "mail", Headers: []string{"id", "e"}}, `Column "mail" was not found in a.csv. Available columns: "id", "e".`},
		{"schema detect", &SchemaError{File: "a.csv"}, "Could not detect the email column in a.csv. Please enter it explicitly."},
		{"encoding", fmt.Errorf("wrap: %w", &EncodingError{File: "a.csv"}), "a.csv is not UTF-8 encoded. Re-save it as UTF-8 or configure a fallback encoding."},
		{"internal", errors.New("disk full"), "Something went wrong while filtering. Check the server log for details."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}
