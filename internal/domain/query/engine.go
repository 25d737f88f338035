// Package query filters, aggregates, sorts and paginates stored journeys
// for the operator dashboard and renders CSV exports.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/footprint/internal/adapters/repository"
	"github.com/okian/footprint/internal/domain/export"
	"github.com/okian/footprint/internal/domain/filter"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/pkg/logger"
	"github.com/okian/footprint/pkg/metrics"
)

const (
	tracerName         = "github.com/okian/footprint/internal/domain/query"
	defaultPageSize    = 20
	defaultMaxPageSize = 100
)

// Operation names used in metrics.
const (
	opQuery  = "query"
	opExport = "export"
	opFacets = "facets"
)

// Engine executes journey queries against a store.
type Engine struct {
	store           repository.Store
	clock           quartz.Clock
	tracer          trace.Tracer
	log             logger.Logger
	defaultPageSize int
	maxPageSize     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithPageSizes sets the default page size and its cap.
func WithPageSizes(def, limit int) Option {
	return func(e *Engine) {
		if def > 0 {
			e.defaultPageSize = def
		}
		if limit > 0 {
			e.maxPageSize = limit
		}
	}
}

// WithClock sets the clock relative time windows are measured against.
func WithClock(c quartz.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Engine reading from store.
func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		clock:           quartz.NewReal(),
		tracer:          otel.Tracer(tracerName),
		log:             logger.Discard(),
		defaultPageSize: defaultPageSize,
		maxPageSize:     defaultMaxPageSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.defaultPageSize > e.maxPageSize {
		e.defaultPageSize = e.maxPageSize
	}
	return e
}

// Query returns one page of rows for req.
func (e *Engine) Query(ctx context.Context, req Request) (Result, error) {
	mode := ParseMode(string(req.Mode))
	ctx, span := e.tracer.Start(ctx, "query.Query", trace.WithAttributes(
		attribute.String("query.view", string(mode)),
		attribute.Int("query.criteria", len(req.Filter.Criteria)),
	))
	defer span.End()
	start := time.Now()

	journeys, err := e.matching(ctx, req.Filter)
	if err != nil {
		return Result{}, e.fail(ctx, span, opQuery, err)
	}

	res := Result{Mode: mode, Stats: summarize(journeys)}
	size := e.pageSize(req.PageSize)

	switch mode {
	case ModeVisitor:
		rows := groupVisitors(journeys)
		sortVisitors(rows, req.SortField, req.SortOrder)
		var lo, hi int
		res.Pagination, lo, hi = paginate(len(rows), req.Page, size)
		res.Visitors = rows[lo:hi]
		for _, v := range res.Visitors {
			res.PageStats.TotalSessions += v.SessionCount
			res.PageStats.TotalDuration += v.TotalDuration
			res.PageStats.TotalEvents += v.TotalEvents
		}
	case ModeEvent:
		rows := flatten(journeys)
		var lo, hi int
		res.Pagination, lo, hi = paginate(len(rows), req.Page, size)
		res.Events = rows[lo:hi]
		sessions := make(map[string]struct{})
		for _, r := range res.Events {
			sessions[r.SessionID] = struct{}{}
			res.PageStats.TotalDuration += r.Duration
		}
		res.PageStats.TotalSessions = len(sessions)
		res.PageStats.TotalEvents = len(res.Events)
	default:
		sortSessions(journeys, req.SortField, req.SortOrder)
		var lo, hi int
		res.Pagination, lo, hi = paginate(len(journeys), req.Page, size)
		res.Sessions = journeys[lo:hi]
		res.PageStats = summarize(res.Sessions)
	}

	latency := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordQueryLatency(string(mode), latency)
	metrics.RecordQueryRows(string(mode), res.Pagination.Total)
	span.SetAttributes(attribute.Int("query.total", res.Pagination.Total))
	e.log.Debug(ctx, "journeys queried",
		logger.String("view", string(mode)),
		logger.Int("total", res.Pagination.Total),
		logger.Int("page", res.Pagination.Page),
		logger.Float64("latency_ms", latency),
	)
	return res, nil
}

// Export renders every row matching req as CSV. Pagination is ignored.
func (e *Engine) Export(ctx context.Context, req Request) ([]byte, error) {
	mode := ParseMode(string(req.Mode))
	ctx, span := e.tracer.Start(ctx, "query.Export", trace.WithAttributes(attribute.String("query.view", string(mode))))
	defer span.End()

	journeys, err := e.matching(ctx, req.Filter)
	if err != nil {
		return nil, e.fail(ctx, span, opExport, err)
	}

	var (
		out []byte
		n   int
	)
	switch mode {
	case ModeVisitor:
		rows := groupVisitors(journeys)
		sortVisitors(rows, req.SortField, req.SortOrder)
		n = len(rows)
		out, err = export.Visitors(rows)
	case ModeEvent:
		rows := flatten(journeys)
		n = len(rows)
		out, err = export.Events(rows)
	default:
		sortSessions(journeys, req.SortField, req.SortOrder)
		n = len(journeys)
		out, err = export.Sessions(journeys)
	}
	if err != nil {
		return nil, e.fail(ctx, span, opExport, fmt.Errorf("%w: %w", ErrExport, err))
	}

	metrics.RecordExportRows(string(mode), n)
	return out, nil
}

// Facets returns the distinct filter values across all journeys.
func (e *Engine) Facets(ctx context.Context) (Facets, error) {
	ctx, span := e.tracer.Start(ctx, "query.Facets")
	defer span.End()

	journeys, err := e.store.ListJourneys(ctx, time.Time{})
	if err != nil {
		return Facets{}, e.fail(ctx, span, opFacets, fmt.Errorf("%w: %w", ErrStorage, err))
	}
	return facets(journeys), nil
}

// Now is the engine's current time, used for export filenames.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

func (e *Engine) matching(ctx context.Context, f filter.Filter) ([]model.Journey, error) {
	now := e.clock.Now()
	journeys, err := e.store.ListJourneys(ctx, f.Since(now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return f.Apply(journeys, now), nil
}

func (e *Engine) pageSize(n int) int {
	switch {
	case n <= 0:
		return e.defaultPageSize
	case n > e.maxPageSize:
		return e.maxPageSize
	default:
		return n
	}
}

func (e *Engine) fail(ctx context.Context, span trace.Span, op string, err error) error {
	metrics.RecordQueryError(op)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	e.log.Error(ctx, "journey query failed", logger.String("op", op), logger.Error(err))
	return err
}

// paginate clamps page to at least 1 and returns the slice bounds for it.
// Pages past the end are empty.
func paginate(total, page, size int) (Pagination, int, int) {
	if page < 1 {
		page = 1
	}
	p := Pagination{Total: total, Page: page, PageSize: size, Pages: (total + size - 1) / size}
	lo := (page - 1) * size
	if lo > total {
		lo = total
	}
	hi := lo + size
	if hi > total {
		hi = total
	}
	return p, lo, hi
}
