package loader

import (
	"bytes"
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/hbdrevv/email-filter-utility/internal/table"
)

var delimiters = []rune{',', ';', '\t', '|'}

func (l *Loader) readDelimited(name string, data []byte) ([][]string, error) {
	text, err := l.decode(name, data)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(text, 0) >= 0 {
		return nil, &table.FormatError{File: name, Reason: "file contains binary data"}
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.Comma = sniffDelimiter(firstLine(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, &table.FormatError{File: name, Reason: "malformed delimited text", Err: err}
	}
	return records, nil
}

// decode returns data as UTF-8 without a byte order mark.
func (l *Loader) decode(name string, data []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeUTF16(name, data, unicode.LittleEndian)
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeUTF16(name, data, unicode.BigEndian)
	}

	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data, nil
	}
	if l.fallback == nil {
		return nil, &table.EncodingError{File: name, Offset: invalidOffset(data)}
	}
	out, err := l.fallback.NewDecoder().Bytes(data)
	if err != nil {
		return nil, &table.EncodingError{File: name, Err: err}
	}
	return out, nil
}

func decodeUTF16(name string, data []byte, order unicode.Endianness) ([]byte, error) {
	out, err := unicode.UTF16(order, unicode.ExpectBOM).NewDecoder().Bytes(data)
	if err != nil {
		return nil, &table.EncodingError{File: name, Err: err}
	}
	return out, nil
}

func invalidOffset(data []byte) int {
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return len(data)
}

func firstLine(text []byte) string {
	if i := bytes.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSuffix(string(text), "\r")
}

// sniffDelimiter picks the candidate that occurs most often outside quotes in
// the header line. Ties go to the earlier candidate; no candidate means ','.
func sniffDelimiter(line string) rune {
	counts := make(map[rune]int, len(delimiters))
	inQuotes := false
	for _, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
			continue
		}
		if !inQuotes {
			counts[r]++
		}
	}
	best, bestCount := ',', 0
	for _, d := range delimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
