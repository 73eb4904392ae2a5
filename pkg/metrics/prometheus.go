// Package metrics provides Prometheus metrics for the Synapse matching engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the engine records into.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Cycle metrics - one observation per weekly run.
	cyclesRun        prometheus.Counter
	cyclesFailed     prometheus.Counter
	cycleDuration    prometheus.Histogram
	lastCycleMatches prometheus.Gauge

	// Ingestion metrics.
	slotsIngested   prometheus.Counter
	validationSkips prometheus.Counter

	// Matching and commit metrics.
	bucketsProcessed *prometheus.CounterVec // pass: exact|fallback
	matcherLatency   prometheus.Histogram
	matchesCommitted *prometheus.CounterVec // pass: exact|fallback
	commitConflicts  prometheus.Counter
	storeErrors      prometheus.Counter

	// Store state gauges.
	openSlots  prometheus.Gauge
	totalUsers prometheus.Gauge

	// Queue metrics.
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics.
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// HTTP metrics.
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error breakdown.
	errorsByComponent *prometheus.CounterVec

	// System metrics.
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "synapse",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.cyclesRun = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cycles_run_total",
		Help:      "Total matching cycles started.",
	})
	m.cyclesFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cycles_failed_total",
		Help:      "Total matching cycles aborted before completion.",
	})
	m.cycleDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "cycle_duration_ms",
		Help:      "Wall-clock duration of a full cycle run in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.lastCycleMatches = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "last_cycle_matches",
		Help:      "Matches created by the most recent cycle.",
	})

	m.slotsIngested = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "slots_ingested_total",
		Help:      "Open slots accepted into matching pools.",
	})
	m.validationSkips = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "slot_validation_skips_total",
		Help:      "Slots rejected at ingestion for validation reasons.",
	})

	m.bucketsProcessed = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "buckets_processed_total",
		Help:      "Matching pools processed, by pass.",
	}, []string{"pass"})
	m.matcherLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "matcher_latency_ms",
		Help:      "Pair-selection latency per pool in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.matchesCommitted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "matches_committed_total",
		Help:      "Matches committed to the store, by pass.",
	}, []string{"pass"})
	m.commitConflicts = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "commit_conflicts_total",
		Help:      "Pair commits skipped after losing the optimistic slot guard.",
	})
	m.storeErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_errors_total",
		Help:      "Transient store failures observed during a cycle.",
	})

	m.openSlots = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "open_slots",
		Help:      "Open availability slots currently in the store.",
	})
	m.totalUsers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "total_users",
		Help:      "User profiles known to the store.",
	})

	m.queueSize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "bucket_queue_size",
		Help:      "Pools currently waiting in the bucket queue.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "bucket_queue_capacity",
		Help:      "Configured bucket queue capacity.",
	})
	m.queueUtilization = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "bucket_queue_utilization",
		Help:      "Bucket queue fill ratio (0-1).",
	})
	m.queueEnqueues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "bucket_queue_enqueues_total",
		Help:      "Pools enqueued for processing.",
	})
	m.queueDequeues = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "bucket_queue_dequeues_total",
		Help:      "Pools handed to workers.",
	})
	m.queueEnqueueErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "bucket_queue_enqueue_errors_total",
		Help:      "Pool enqueue attempts rejected (full or closed queue).",
	})

	m.workerActive = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "workers_active",
		Help:      "Workers currently running.",
	})
	m.workerLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "worker_bucket_latency_ms",
		Help:      "Per-pool processing latency (score, match, commit) in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "worker_errors_total",
		Help:      "Pools that failed processing.",
	})

	m.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served.",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.errorsByComponent = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "errors_total",
		Help:      "Errors by component and kind.",
	}, []string{"component", "kind"})

	m.systemMemoryUsage = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "system_memory_bytes",
		Help:      "Allocated heap bytes.",
	})
	m.systemGoroutineCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "system_goroutines",
		Help:      "Live goroutines.",
	})
	m.systemGCPauseTime = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "system_gc_pause_ms",
		Help:      "Average GC pause in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers recording into the global manager.

// RecordCycleRun counts a started cycle.
func RecordCycleRun() {
	globalManager.cyclesRun.Inc()
}

// RecordCycleFailed counts an aborted cycle.
func RecordCycleFailed() {
	globalManager.cyclesFailed.Inc()
}

// RecordCycleDuration records full-cycle wall time.
func RecordCycleDuration(latencyMs float64) {
	globalManager.cycleDuration.Observe(latencyMs)
}

// UpdateLastCycleMatches sets the match count of the latest cycle.
func UpdateLastCycleMatches(count int) {
	globalManager.lastCycleMatches.Set(float64(count))
}

// RecordSlotsIngested counts slots accepted into pools.
func RecordSlotsIngested(count int) {
	globalManager.slotsIngested.Add(float64(count))
}

// RecordValidationSkip counts a slot rejected at ingestion.
func RecordValidationSkip() {
	globalManager.validationSkips.Inc()
}

// RecordBucketProcessed counts one processed pool for a pass.
func RecordBucketProcessed(pass string) {
	globalManager.bucketsProcessed.WithLabelValues(pass).Inc()
}

// RecordMatcherLatency records pair-selection latency for one pool.
func RecordMatcherLatency(latencyMs float64) {
	globalManager.matcherLatency.Observe(latencyMs)
}

// RecordMatchCommitted counts one committed match for a pass.
func RecordMatchCommitted(pass string) {
	globalManager.matchesCommitted.WithLabelValues(pass).Inc()
}

// RecordCommitConflict counts a pair skipped on a stale slot.
func RecordCommitConflict() {
	globalManager.commitConflicts.Inc()
}

// RecordStoreError counts a transient store failure.
func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// UpdateOpenSlots sets the Open-slot gauge.
func UpdateOpenSlots(count int) {
	globalManager.openSlots.Set(float64(count))
}

// UpdateTotalUsers sets the known-users gauge.
func UpdateTotalUsers(count int) {
	globalManager.totalUsers.Set(float64(count))
}

// UpdateQueueSize sets the bucket queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the bucket queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the bucket queue fill ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts a pool enqueued.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue counts a pool dequeued.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerActiveCount sets the active worker gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWorkerProcessingLatency records one pool's processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError counts a pool that failed processing.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest counts a served request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records request latency.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent counts an error by component and kind.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry metrics are served from.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
