// Package report renders the run summary shown after a filter run.
package report

import (
	"fmt"
	"os"
	"strings"

	"github.com/osteele/liquid"

	"github.com/hbdrevv/email-filter-utility/internal/suppression"
)

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = `✅ Done.
- Rows before filter: {{ rows_before | thousands }}
- Removed total: {{ removed_total | thousands }}
  • Suppression matches: {{ suppression_matches | thousands }}
  • Empty/invalid emails: {{ empty_or_invalid | thousands }}
- Kept (ready to upload): {{ kept | thousands }}
- Gmail canonicalization: plus={{ collapse_gmail_plus | on_off }}, dots={{ collapse_gmail_dots | on_off }}`

// Renderer renders Stats through a parsed Liquid template.
type Renderer struct {
	tpl *liquid.Template
}

// New parses src, or DefaultTemplate when src is empty.
func New(src string) (*Renderer, error) {
	if strings.TrimSpace(src) == "" {
		src = DefaultTemplate
	}

	engine := liquid.NewEngine()
	registerFilters(engine)

	tpl, err := engine.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &Renderer{tpl: tpl}, nil
}

// NewFromFile parses the template at path; an empty path means the default.
func NewFromFile(path string) (*Renderer, error) {
	if path == "" {
		return New("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report template: %w", err)
	}
	return New(string(data))
}

// Render returns the summary for stats.
func (r *Renderer) Render(stats suppression.Stats) (string, error) {
	out, err := r.tpl.RenderString(map[string]interface{}{
		"rows_before":           stats.RowsBefore,
		"removed_total":         stats.RemovedTotal,
		"suppression_matches":   stats.SuppressionMatches,
		"empty_or_invalid":      stats.EmptyOrInvalid,
		"kept":                  stats.Kept,
		"suppression_entries":   stats.SuppressionEntries,
		"collapse_gmail_plus":   stats.CollapseGmailPlus,
		"collapse_gmail_dots":   stats.CollapseGmailDots,
		"drop_invalid_or_empty": stats.DropInvalidOrEmpty,
	})
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}

func registerFilters(engine *liquid.Engine) {
	// {{ count | thousands }} -> 1,234,567
	engine.RegisterFilter("thousands", func(value interface{}) string {
		switch v := value.(type) {
		case int:
			return Thousands(int64(v))
		case int64:
			return Thousands(v)
		case float64:
			return Thousands(int64(v))
		default:
			return fmt.Sprintf("%v", value)
		}
	})

	engine.RegisterFilter("on_off", func(value interface{}) string {
		if b, ok := value.(bool); ok && b {
			return "ON"
		}
		return "OFF"
	})
}

// Thousands formats n with comma group separators.
func Thousands(n int64) string {
	str := fmt.Sprintf("%d", n)
	neg := n < 0
	if neg {
		str = str[1:]
	}

	var result strings.Builder
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}

	if neg {
		return "-" + result.String()
	}
	return result.String()
}
