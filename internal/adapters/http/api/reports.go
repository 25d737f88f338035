package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/footprint/internal/domain/export"
	"github.com/okian/footprint/internal/domain/filter"
	"github.com/okian/footprint/internal/domain/query"
	"github.com/okian/footprint/pkg/logger"
)

type queryResponse struct {
	View       query.Mode       `json:"view"`
	Rows       any              `json:"rows"`
	Pagination query.Pagination `json:"pagination"`
	Stats      query.Stats      `json:"stats"`
	PageStats  query.Stats      `json:"pageStats"`
}

// ReportsHandler serves the dashboard reads.
type ReportsHandler struct {
	querier Querier
	timeout time.Duration
	log     logger.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(querier Querier, timeout time.Duration, log logger.Logger) *ReportsHandler {
	return &ReportsHandler{querier: querier, timeout: timeout, log: log}
}

// HandleQuery handles GET /api/journeys.
func (h *ReportsHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "api.query_journeys"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.querier.Query(ctx, parseRequest(r.URL.Query()))
	if err != nil {
		h.writeReadError(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		View:       res.Mode,
		Rows:       res.Rows(),
		Pagination: res.Pagination,
		Stats:      res.Stats,
		PageStats:  res.PageStats,
	})
}

// HandleExport handles GET /api/journeys/export. The file is rendered
// completely before the first byte is written.
func (h *ReportsHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_journeys"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	req := parseRequest(r.URL.Query())
	out, err := h.querier.Export(ctx, req)
	if err != nil {
		h.writeReadError(ctx, w, op, err)
		return
	}

	name := export.Filename(string(query.ParseMode(string(req.Mode))), h.querier.Now())
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// HandleFacets handles GET /api/journeys/facets.
func (h *ReportsHandler) HandleFacets(w http.ResponseWriter, r *http.Request) {
	const op = "api.journey_facets"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f, err := h.querier.Facets(ctx)
	if err != nil {
		h.writeReadError(ctx, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *ReportsHandler) writeReadError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	h.log.Error(ctx, "journeys read failed", logger.String("op", op), logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrInternal, err))
}

// parseRequest maps query parameters to a query request. Bad values fall
// back to defaults instead of failing the request.
func parseRequest(q url.Values) query.Request {
	return query.Request{
		Mode: query.ParseMode(q.Get("view")),
		Filter: filter.Build(filter.Params{
			Range:       q.Get("range"),
			Search:      q.Get("search"),
			Interaction: q.Get("interaction"),
			Devices:     q["device"],
			OS:          q["os"],
			Browsers:    q["browser"],
			Locations:   q["location"],
			MinDuration: q.Get("minDuration"),
			MaxDuration: q.Get("maxDuration"),
		}),
		SortField: strings.TrimSpace(q.Get("sortField")),
		SortOrder: strings.TrimSpace(q.Get("sortOrder")),
		Page:      atoiOrZero(q.Get("page")),
		PageSize:  atoiOrZero(q.Get("limit")),
	}
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
