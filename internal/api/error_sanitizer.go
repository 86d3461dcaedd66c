package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hbdrevv/email-filter-utility/internal/pkg/httputil"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
	"github.com/hbdrevv/email-filter-utility/internal/service/filtering"
	"github.com/hbdrevv/email-filter-utility/internal/storage"
	"github.com/hbdrevv/email-filter-utility/internal/table"
)

// errBadForm is returned when the request is not a multipart form.
var errBadForm = errors.New("request must be multipart/form-data")

// publicError is what a handler shows for a failed request. Internal errors
// never reach the client; they are logged and replaced by a generic text.
type publicError struct {
	Status  int
	Code    string
	Message string
}

// classify maps an error from parsing, filtering or publishing to a status
// code and a message that is safe to show.
func classify(err error, maxUploadBytes int64) publicError {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return publicError{http.StatusRequestEntityTooLarge, "too_large",
			fmt.Sprintf("The upload is larger than the %d MB limit.", maxUploadBytes>>20)}
	case errors.Is(err, errBadForm):
		return publicError{http.StatusBadRequest, "bad_request", "Please submit the upload form."}
	case errors.Is(err, filtering.ErrMissingInput):
		return publicError{http.StatusBadRequest, "missing_input", filtering.UserMessage(err)}
	case errors.Is(err, filtering.ErrNoDatabase):
		return publicError{http.StatusBadRequest, "no_database", filtering.UserMessage(err)}
	case errors.Is(err, table.ErrFormat):
		return publicError{http.StatusUnprocessableEntity, "invalid_file", table.UserMessage(err)}
	case errors.Is(err, table.ErrSchema):
		return publicError{http.StatusUnprocessableEntity, "email_column", table.UserMessage(err)}
	case errors.Is(err, table.ErrEncoding):
		return publicError{http.StatusUnprocessableEntity, "encoding", table.UserMessage(err)}
	case errors.Is(err, storage.ErrNotFound):
		return publicError{http.StatusNotFound, "not_found", "This download has expired. Please run the filter again."}
	default:
		return publicError{http.StatusInternalServerError, "internal", table.UserMessage(err)}
	}
}

// sanitize classifies err and logs it. 5xx errors are logged with the full
// internal error; user errors only at debug level.
func sanitize(r *http.Request, err error, maxUploadBytes int64) publicError {
	pe := classify(err, maxUploadBytes)
	if pe.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", r.URL.Path, "status", pe.Status, "error", err)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "status", pe.Status, "error", err)
	}
	return pe
}

// respondSafeError sends a sanitized JSON error response to the client.
func respondSafeError(w http.ResponseWriter, pe publicError) {
	httputil.Error(w, pe.Status, pe.Message, pe.Code)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.JSON(w, status, data)
}
