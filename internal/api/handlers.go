package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hbdrevv/email-filter-utility/internal/config"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/httputil"
	"github.com/hbdrevv/email-filter-utility/internal/pkg/logger"
	"github.com/hbdrevv/email-filter-utility/internal/service/filtering"
	"github.com/hbdrevv/email-filter-utility/internal/storage"
	"github.com/hbdrevv/email-filter-utility/internal/suppression"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexPage = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Form field names shared by the HTML form and the JSON endpoint.
const (
	fieldClientFile       = "client_file"
	fieldSuppressionFile  = "suppression_file"
	fieldSuppressionFrom  = "suppression_source"
	fieldEmailColumn      = "email_column"
	fieldCollapsePlus     = "collapse_gmail_plus"
	fieldCollapseDots     = "collapse_gmail_dots"
	fieldDropInvalid      = "drop_invalid_or_empty"
	sourceDatabase        = "database"
	multipartMemoryBudget = 32 << 20
)

// FilterService is the part of the filtering service the handlers use.
type FilterService interface {
	Run(ctx context.Context, req filtering.Request) (*filtering.Outcome, error)
	Publish(ctx context.Context, o *filtering.Outcome) ([]filtering.Download, error)
	Fetch(ctx context.Context, id string) (*storage.Object, error)
}

// Handlers contains the HTTP handlers for the upload form.
type Handlers struct {
	svc             FilterService
	defaults        config.FilterConfig
	maxUploadBytes  int64
	databaseEnabled bool
}

// NewHandlers creates handlers. defaults pre-fill the form and apply to API
// requests that omit a switch. databaseEnabled offers the database as a
// suppression source.
func NewHandlers(svc FilterService, defaults config.FilterConfig, maxUploadBytes int64, databaseEnabled bool) *Handlers {
	return &Handlers{
		svc:             svc,
		defaults:        defaults,
		maxUploadBytes:  maxUploadBytes,
		databaseEnabled: databaseEnabled,
	}
}

// DownloadLink is a stored output file with the URL that fetches it.
type DownloadLink struct {
	filtering.Download
	URL string `json:"url"`
}

// FilterResponse is the JSON body of a successful POST /api/filter.
type FilterResponse struct {
	Summary   string            `json:"summary"`
	Stats     suppression.Stats `json:"stats"`
	Downloads []DownloadLink    `json:"downloads"`
}

type pageData struct {
	Defaults        config.FilterConfig
	UseDatabase     bool
	DatabaseEnabled bool
	MaxUploadMB     int64
	Summary         string
	Error           string
	Downloads       []DownloadLink
}

// Index renders the empty upload form.
//
//	GET /
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, h.newPage())
}

// FilterForm runs a filter from the HTML form and renders the result page.
//
//	POST /filter
func (h *Handlers) FilterForm(w http.ResponseWriter, r *http.Request) {
	page := h.newPage()

	resp, err := h.handleFilter(w, r, false, &page)
	if err != nil {
		pe := sanitize(r, err, h.maxUploadBytes)
		page.Error = pe.Message
		h.renderPage(w, pe.Status, page)
		return
	}

	page.Summary = resp.Summary
	page.Downloads = resp.Downloads
	h.renderPage(w, http.StatusOK, page)
}

// FilterAPI runs a filter and returns the summary, the stats and download
// links as JSON.
//
//	POST /api/filter
func (h *Handlers) FilterAPI(w http.ResponseWriter, r *http.Request) {
	resp, err := h.handleFilter(w, r, true, nil)
	if err != nil {
		respondSafeError(w, sanitize(r, err, h.maxUploadBytes))
		return
	}
	httputil.OK(w, resp)
}

// Download serves a stored output file as an attachment.
//
//	GET /downloads/{id}
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	obj, err := h.svc.Fetch(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondSafeError(w, sanitize(r, err, h.maxUploadBytes))
		return
	}

	w.Header().Set("Content-Type", obj.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(obj.Data); err != nil {
		logger.Warn("download write failed", "name", obj.Name, "error", err)
	}
}

// handleFilter parses the upload, runs the filter and publishes both
// outputs. Absent switches default to the configured value for API
// requests and to false for the HTML form, where an unticked checkbox is
// not submitted. page, when set, is updated with the submitted values.
func (h *Handlers) handleFilter(w http.ResponseWriter, r *http.Request, api bool, page *pageData) (*FilterResponse, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemoryBudget); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, errBadForm
		}
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	req := filtering.Request{
		UseDatabase: r.FormValue(fieldSuppressionFrom) == sourceDatabase,
		EmailColumn: strings.TrimSpace(r.FormValue(fieldEmailColumn)),
	}
	if req.EmailColumn == "" && api {
		req.EmailColumn = h.defaults.EmailColumn
	}

	fallback := h.defaults
	if !api {
		fallback = config.FilterConfig{}
	}
	req.Options = suppression.Options{
		DropInvalidOrEmpty: formFlag(r, fieldDropInvalid, fallback.DropInvalidOrEmpty),
	}
	req.Options.Normalize.CollapseGmailPlus = formFlag(r, fieldCollapsePlus, fallback.CollapseGmailPlus)
	req.Options.Normalize.CollapseGmailDots = formFlag(r, fieldCollapseDots, fallback.CollapseGmailDots)

	if page != nil {
		page.UseDatabase = req.UseDatabase
		page.Defaults = config.FilterConfig{
			EmailColumn:        req.EmailColumn,
			CollapseGmailPlus:  req.Options.Normalize.CollapseGmailPlus,
			CollapseGmailDots:  req.Options.Normalize.CollapseGmailDots,
			DropInvalidOrEmpty: req.Options.DropInvalidOrEmpty,
		}
	}

	var err error
	if req.Client, err = formFile(r, fieldClientFile); err != nil {
		return nil, err
	}
	defer closeFile(req.Client)
	if !req.UseDatabase {
		if req.Suppression, err = formFile(r, fieldSuppressionFile); err != nil {
			return nil, err
		}
		defer closeFile(req.Suppression)
	}

	outcome, err := h.svc.Run(r.Context(), req)
	if err != nil {
		return nil, err
	}
	downloads, err := h.svc.Publish(r.Context(), outcome)
	if err != nil {
		return nil, err
	}

	links := make([]DownloadLink, len(downloads))
	for i, d := range downloads {
		links[i] = DownloadLink{Download: d, URL: "/downloads/" + d.ID}
	}
	return &FilterResponse{
		Summary:   outcome.Summary,
		Stats:     outcome.Result.Stats,
		Downloads: links,
	}, nil
}

func (h *Handlers) newPage() pageData {
	return pageData{
		Defaults:        h.defaults,
		DatabaseEnabled: h.databaseEnabled,
		MaxUploadMB:     h.maxUploadBytes >> 20,
	}
}

func (h *Handlers) renderPage(w http.ResponseWriter, status int, page pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexPage.Execute(w, page); err != nil {
		logger.Error("render page failed", "error", err)
	}
}

// formFile returns the uploaded file for field. A missing upload yields a
// File with a nil Reader.
func formFile(r *http.Request, field string) (filtering.File, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return filtering.File{}, nil
	}
	if err != nil {
		return filtering.File{}, err
	}
	return filtering.File{Name: hdr.Filename, Reader: f}, nil
}

func closeFile(f filtering.File) {
	if c, ok := f.Reader.(io.Closer); ok {
		c.Close()
	}
}

// formFlag reads a checkbox or boolean field. Absent fields use def.
func formFlag(r *http.Request, field string, def bool) bool {
	vals, ok := r.MultipartForm.Value[field]
	if !ok || len(vals) == 0 {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(vals[0])) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
