package filtering

import (
	"errors"

	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// Sentinel errors for the filtering service layer.
var (
	ErrMissingInput    = errors.New("both the client list and the suppression list are required")
	ErrNoDatabase      = errors.New("no suppression database is configured")
	ErrStoreNotEnabled = errors.New("no download store is configured")
)

// UserMessage maps an error from Run or Publish to the text shown to the user.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingInput):
		return "Please upload both files."
	case errors.Is(err, ErrNoDatabase):
		return "The database suppression source is not configured."
	default:
		return table.UserMessage(err)
	}
}
