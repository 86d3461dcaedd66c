// Package normalize canonicalizes email addresses before they are compared.
//
// An address is normalized by NFKC, surrounding whitespace is trimmed, the
// whole address is Unicode case-folded and an internationalized domain is
// converted to punycode. Gmail local-part rewrites are opt-in.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// addressPattern finds address-shaped tokens inside a cell, so that values
// like "Ann <ann@example.com>" or "a@x.com; b@x.com" still yield addresses.
// The local part accepts the RFC 5322 atext characters.
var addressPattern = regexp.MustCompile("[\\p{L}\\p{N}.!#$%&'*+/=?^_`{|}~\\-]+@[\\p{L}\\p{N}.\\-]+\\.\\p{L}{2,}")

// listSeparators mark a cell that holds more than a bare address.
const listSeparators = ",;<>\""

var gmailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
}

// Options controls the optional Gmail rewrites. The zero value applies
// plain case-folding and trimming only.
type Options struct {
	CollapseGmailPlus bool // drop "+tag" from gmail.com / googlemail.com local parts
	CollapseGmailDots bool // drop "." from gmail.com / googlemail.com local parts
}

// Email returns the canonical form of a single address. Input without an
// "@" is returned folded and trimmed but otherwise untouched.
func Email(raw string, opts Options) string {
	// cases.Caser keeps state and must not be shared between goroutines.
	e := cases.Fold().String(strings.TrimSpace(norm.NFKC.String(raw)))
	local, domain, ok := strings.Cut(e, "@")
	if !ok {
		return e
	}

	if ascii, err := idna.ToASCII(domain); err == nil {
		domain = ascii
	}

	if gmailDomains[domain] {
		if opts.CollapseGmailPlus {
			local, _, _ = strings.Cut(local, "+")
		}
		if opts.CollapseGmailDots {
			local = strings.ReplaceAll(local, ".", "")
		}
	}
	return local + "@" + domain
}

// ExtractEmails returns the address-shaped tokens of a cell in order of
// appearance, after NFKC normalization. An empty result means the cell is
// empty or holds nothing that parses as an address.
func ExtractEmails(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	return addressPattern.FindAllString(norm.NFKC.String(cell), -1)
}

// Cell returns the canonical forms of the addresses in cell. A cell holding
// one bare token with a single "@" is normalized whole; lists and display
// names go through ExtractEmails.
func Cell(cell string, opts Options) []string {
	if v, ok := bareAddress(cell); ok {
		return []string{Email(v, opts)}
	}
	found := ExtractEmails(cell)
	if len(found) == 0 {
		return nil
	}
	out := make([]string, 0, len(found))
	for _, e := range found {
		if c := Email(e, opts); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// bareAddress reports whether the trimmed cell is a single token of the form
// local@domain, with no whitespace or list punctuation.
func bareAddress(cell string) (string, bool) {
	v := strings.TrimSpace(norm.NFKC.String(cell))
	if strings.Count(v, "@") != 1 || strings.ContainsAny(v, listSeparators) {
		return "", false
	}
	if strings.IndexFunc(v, unicode.IsSpace) >= 0 {
		return "", false
	}
	local, domain, _ := strings.Cut(v, "@")
	if local == "" || domain == "" {
		return "", false
	}
	return v, true
}

// LooksLikeEmail reports whether val is shaped like a single address.
// It is used to spot files whose first row is data rather than a header.
func LooksLikeEmail(val string) bool {
	v := strings.TrimSpace(val)
	if len(v) < 5 || len(v) > 254 {
		return false
	}
	at := strings.LastIndex(v, "@")
	if at < 1 || at >= len(v)-1 {
		return false
	}
	domain := v[at+1:]
	return strings.Contains(domain, ".") && len(domain) >= 3
}

// IsMD5Hex reports whether val is a 32-digit hex string, the form hashed
// suppression exports use for each address.
func IsMD5Hex(val string) bool {
	v := strings.TrimSpace(val)
	if len(v) != 32 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
