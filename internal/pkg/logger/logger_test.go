package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nopWriter{})
		Configure("info", true)
	})
	return &buf
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]string{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"john.doe@example.com", "jo***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"  jane@example.org ", "ja***@example.org"},
		{"not-an-email", "***@***"},
		{"a@b@c.com", "***@***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactEmail(tt.in), tt.in)
	}
}

func TestLogRedactsEmails(t *testing.T) {
	buf := capture(t)
	Configure("debug", true)

	Info("row kept for john.doe@example.com", "email", "mary@example.com", "path", "lists/clients.csv")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "row kept for jo***@example.com", lines[0]["msg"])
	assert.Equal(t, "ma***@example.com", lines[0]["email"])
	assert.Equal(t, "lists/clients.csv", lines[0]["path"])
}

func TestLogWithoutRedaction(t *testing.T) {
	buf := capture(t)
	Configure("info", false)

	Warn("suppressed", "email", "mary@example.com")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "mary@example.com", lines[0]["email"])
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t)
	Configure("warn", true)

	Debug("hidden")
	Info("hidden")
	Warn("shown")
	Error("shown too")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "ERROR", lines[1]["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel(" error "))
	assert.Equal(t, INFO, ParseLevel("verbose"))
	assert.Equal(t, "WARN", WARN.String())
}
