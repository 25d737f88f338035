// Package api exposes the journeys HTTP contracts: ingestion for the
// tracker and query, export and facets for the operator dashboard.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/okian/footprint/internal/domain/ingest"
	"github.com/okian/footprint/internal/domain/model"
	"github.com/okian/footprint/internal/domain/query"
	"github.com/okian/footprint/pkg/logger"
)

const (
	defaultRequestTimeout = 10 * time.Second
	maxBodyBytes          = 64 << 10
)

// Ingestor records tracker reports.
type Ingestor interface {
	CreateSession(ctx context.Context, in ingest.SessionInput) (model.Journey, error)
	RecordImpression(ctx context.Context, in ingest.ImpressionInput) (bool, error)
	RecordAction(ctx context.Context, in ingest.ActionInput) (bool, error)
}

// Querier serves the dashboard reads.
type Querier interface {
	Query(ctx context.Context, req query.Request) (query.Result, error)
	Export(ctx context.Context, req query.Request) ([]byte, error)
	Facets(ctx context.Context) (query.Facets, error)
	Now() time.Time
}

// Server wires HTTP routes for the journeys API.
type Server struct {
	opsHandler      *OpsHandler
	journeysHandler *JourneysHandler
	reportsHandler  *ReportsHandler

	origins   []string
	rateLimit int
}

// Option configures a Server.
type Option func(*serverConfig)

type serverConfig struct {
	origins        []string
	requestTimeout time.Duration
	rateLimit      int
	log            logger.Logger
}

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(c *serverConfig) {
		if len(origins) > 0 {
			c.origins = origins
		}
	}
}

// WithRequestTimeout bounds the storage work of each request.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *serverConfig) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithIngestRateLimit caps ingestion requests per client IP per minute.
func WithIngestRateLimit(perMinute int) Option {
	return func(c *serverConfig) {
		c.rateLimit = perMinute
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(ingestor Ingestor, querier Querier, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{
		origins:        []string{"*"},
		requestTimeout: defaultRequestTimeout,
		log:            logger.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		opsHandler:      NewOpsHandler(statsProvider),
		journeysHandler: NewJourneysHandler(ingestor, cfg.requestTimeout, cfg.log),
		reportsHandler:  NewReportsHandler(querier, cfg.requestTimeout, cfg.log),
		origins:         cfg.origins,
		rateLimit:       cfg.rateLimit,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	limit := rateLimit(s.rateLimit)

	mux.HandleFunc("/healthz", MetricsMiddleware(s.opsHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.opsHandler.HandleStats, "stats"))

	mux.Handle("/api/journeys/sessions", limit(MetricsMiddleware(s.journeysHandler.HandleCreateSession, "sessions")))
	mux.Handle("/api/journeys/impressions", limit(MetricsMiddleware(s.journeysHandler.HandleRecordImpression, "impressions")))
	mux.Handle("/api/journeys/actions", limit(MetricsMiddleware(s.journeysHandler.HandleRecordAction, "actions")))

	mux.HandleFunc("/api/journeys", MetricsMiddleware(s.reportsHandler.HandleQuery, "journeys"))
	mux.HandleFunc("/api/journeys/export", MetricsMiddleware(s.reportsHandler.HandleExport, "export"))
	mux.HandleFunc("/api/journeys/facets", MetricsMiddleware(s.reportsHandler.HandleFacets, "facets"))
}

// Handler wraps mux with CORS and tracing.
func (s *Server) Handler(mux http.Handler) http.Handler {
	return otelhttp.NewHandler(corsMiddleware(s.origins)(mux), "footprint.http")
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
