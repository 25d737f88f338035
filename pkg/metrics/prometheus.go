// Package metrics provides Prometheus metrics for the footprint telemetry service.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	rowBuckets      []float64
	refreshInterval time.Duration
	constLabels     prometheus.Labels
	registry        prometheus.Registerer

	// Ingestion
	sessionsCreated  prometheus.Counter
	impressions      *prometheus.CounterVec
	actions          *prometheus.CounterVec
	ingestErrors     *prometheus.CounterVec
	ingestLatency    *prometheus.HistogramVec
	journeysTotal    prometheus.Gauge
	busPublished     *prometheus.CounterVec
	busPublishErrors prometheus.Counter

	// Query and export
	queryLatency *prometheus.HistogramVec
	queryRows    *prometheus.HistogramVec
	exportRows   *prometheus.CounterVec
	queryErrors  *prometheus.CounterVec

	// Repository
	repositoryWriteLatency prometheus.Histogram
	repositoryReadLatency  prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// Archive queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueDropped       prometheus.Counter

	// Archive workers
	workerActiveCount prometheus.Gauge
	archiveBatches    prometheus.Counter
	archiveEvents     prometheus.Counter
	archiveErrors     prometheus.Counter
	archiveLatency    prometheus.Histogram

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "footprint",
		subsystem:       "journeys",
		latencyBuckets:  []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		rowBuckets:      []float64{0, 1, 5, 10, 20, 50, 100, 500, 1000, 5000},
		refreshInterval: defaultRefreshInterval,
		constLabels:     prometheus.Labels{},
		registry:        prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.sessionsCreated = m.counter("sessions_created_total", "Total number of sessions created")
	m.impressions = m.counterVec("impressions_total", "Section impression reports by outcome (inserted, merged)", "outcome")
	m.actions = m.counterVec("actions_total", "Action reports by outcome (recorded, duplicate)", "outcome")
	m.ingestErrors = m.counterVec("ingest_errors_total", "Ingestion failures by operation and kind", "operation", "kind")
	m.ingestLatency = m.histogramVec("ingest_latency_milliseconds", "Ingestion latency in milliseconds", m.latencyBuckets, "operation")
	m.journeysTotal = m.gauge("journeys", "Number of stored journeys")
	m.busPublished = m.counterVec("bus_published_total", "Telemetry events published on the journey bus", "kind")
	m.busPublishErrors = m.counter("bus_publish_errors_total", "Journey bus publish failures")

	m.queryLatency = m.histogramVec("query_latency_milliseconds", "Query latency in milliseconds by view", m.latencyBuckets, "view")
	m.queryRows = m.histogramVec("query_rows", "Rows matched by a query before pagination", m.rowBuckets, "view")
	m.exportRows = m.counterVec("export_rows_total", "Rows written to CSV exports by view", "view")
	m.queryErrors = m.counterVec("query_errors_total", "Query failures by operation", "operation")

	m.repositoryWriteLatency = m.histogram("repository_write_latency_milliseconds", "Repository write latency in milliseconds", m.latencyBuckets)
	m.repositoryReadLatency = m.histogram("repository_read_latency_milliseconds", "Repository read latency in milliseconds", m.latencyBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.latencyBuckets, "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total", "HTTP error responses by endpoint and code", "endpoint", "method", "code")

	m.queueSize = m.gauge("archive_queue_size", "Current size of the archive queue")
	m.queueCapacity = m.gauge("archive_queue_capacity", "Maximum capacity of the archive queue")
	m.queueUtilization = m.gauge("archive_queue_utilization_ratio", "Archive queue utilization ratio (0-1)")
	m.queueEnqueueRate = m.counter("archive_queue_enqueue_total", "Events enqueued for archiving")
	m.queueDequeueRate = m.counter("archive_queue_dequeue_total", "Events dequeued for archiving")
	m.queueEnqueueErrors = m.counter("archive_queue_enqueue_errors_total", "Archive enqueue failures")
	m.queueDropped = m.counter("archive_queue_dropped_total", "Events dropped because the archive queue was full")

	m.workerActiveCount = m.gauge("archive_workers_active", "Number of running archive workers")
	m.archiveBatches = m.counter("archive_batches_total", "Batches written to the archive sink")
	m.archiveEvents = m.counter("archive_events_total", "Events written to the archive sink")
	m.archiveErrors = m.counter("archive_errors_total", "Archive sink write failures")
	m.archiveLatency = m.histogram("archive_write_latency_milliseconds", "Archive batch write latency in milliseconds", m.latencyBuckets)

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordSessionCreated increments the sessions counter.
func RecordSessionCreated() { globalManager.sessionsCreated.Inc() }

// RecordImpression counts an impression report; merged is true when an
// existing interaction was overwritten.
func RecordImpression(merged bool) {
	outcome := "inserted"
	if merged {
		outcome = "merged"
	}
	globalManager.impressions.WithLabelValues(outcome).Inc()
}

// RecordAction counts an action report.
func RecordAction(duplicate bool) {
	outcome := "recorded"
	if duplicate {
		outcome = "duplicate"
	}
	globalManager.actions.WithLabelValues(outcome).Inc()
}

// RecordIngestError counts an ingestion failure.
func RecordIngestError(operation, kind string) {
	globalManager.ingestErrors.WithLabelValues(operation, kind).Inc()
}

// RecordIngestLatency records ingestion latency in milliseconds.
func RecordIngestLatency(operation string, latencyMs float64) {
	globalManager.ingestLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateJourneysTotal sets the stored journey count.
func UpdateJourneysTotal(count int) { globalManager.journeysTotal.Set(float64(count)) }

// RecordBusPublish counts a published telemetry event.
func RecordBusPublish(kind string) { globalManager.busPublished.WithLabelValues(kind).Inc() }

// RecordBusPublishError counts a failed publish.
func RecordBusPublishError() { globalManager.busPublishErrors.Inc() }

// RecordQueryLatency records query latency for a view.
func RecordQueryLatency(view string, latencyMs float64) {
	globalManager.queryLatency.WithLabelValues(view).Observe(latencyMs)
}

// RecordQueryRows records how many rows a query matched.
func RecordQueryRows(view string, rows int) {
	globalManager.queryRows.WithLabelValues(view).Observe(float64(rows))
}

// RecordExportRows adds exported rows for a view.
func RecordExportRows(view string, rows int) {
	globalManager.exportRows.WithLabelValues(view).Add(float64(rows))
}

// RecordQueryError counts a failed query operation.
func RecordQueryError(operation string) { globalManager.queryErrors.WithLabelValues(operation).Inc() }

// RecordRepositoryWriteLatency records a repository write in milliseconds.
func RecordRepositoryWriteLatency(latencyMs float64) {
	globalManager.repositoryWriteLatency.Observe(latencyMs)
}

// RecordRepositoryReadLatency records a repository read in milliseconds.
func RecordRepositoryReadLatency(latencyMs float64) {
	globalManager.repositoryReadLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, code string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, code).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueDropped counts an event dropped on backpressure.
func RecordQueueDropped() { globalManager.queueDropped.Inc() }

// UpdateWorkerActiveCount sets the number of running archive workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordArchiveBatch records a successful sink write.
func RecordArchiveBatch(events int, latencyMs float64) {
	globalManager.archiveBatches.Inc()
	globalManager.archiveEvents.Add(float64(events))
	globalManager.archiveLatency.Observe(latencyMs)
}

// RecordArchiveError counts a failed sink write.
func RecordArchiveError() { globalManager.archiveErrors.Inc() }

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// CollectSystemMetrics samples runtime memory, goroutine and GC figures.
func CollectSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.Alloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		RecordSystemGCPauseTime(float64(ms.PauseNs[(ms.NumGC+255)%256]) / float64(time.Millisecond))
	}
}

// RefreshInterval returns how often gauges should be refreshed.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
