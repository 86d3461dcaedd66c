package loader

import "strings"

// emailColumnCandidates are tried in order, ignoring case and surrounding
// whitespace, before falling back to the first header containing "mail".
var emailColumnCandidates = []string{
	"email",
	"e-mail",
	"email address",
	"email_address",
	"emailaddress",
	"user_email",
	"mail",
	"subscriber_email",
	"plaintextemail",
}

// DetectEmailColumn returns the header name that most plausibly holds email
// addresses.
func DetectEmailColumn(header []string) (string, bool) {
	byKey := make(map[string]string, len(header))
	for _, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := byKey[key]; !dup {
			byKey[key] = h
		}
	}
	for _, c := range emailColumnCandidates {
		if h, ok := byKey[c]; ok {
			return h, true
		}
	}
	for _, h := range header {
		if strings.Contains(strings.ToLower(h), "mail") {
			return h, true
		}
	}
	return "", false
}
