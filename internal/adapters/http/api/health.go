package api

import (
	"maps"
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/footprint/pkg/metrics"
)

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

// OpsHandler serves the operational endpoints: the Prometheus scrape, which
// doubles as the liveness check, and the service stats.
type OpsHandler struct {
	metrics http.Handler
	stats   StatsProvider
	started time.Time
}

// NewOpsHandler creates the handler behind /healthz and /stats.
func NewOpsHandler(stats StatsProvider) *OpsHandler {
	return &OpsHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
		stats:   stats,
		started: time.Now(),
	}
}

// HandleHealth handles GET /healthz.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	h.metrics.ServeHTTP(w, r)
}

// HandleStats handles GET /stats. The provider's map is copied before the
// uptime is added.
func (h *OpsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := maps.Clone(h.stats.GetStats())
	if out == nil {
		out = map[string]any{}
	}
	out["uptimeSeconds"] = math.Floor(time.Since(h.started).Seconds())
	writeJSON(w, http.StatusOK, out)
}
