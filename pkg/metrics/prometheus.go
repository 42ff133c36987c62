// Package metrics provides Prometheus metrics for the gamebot service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// latencyBuckets are in milliseconds.
var latencyBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Manager manages all Prometheus metrics for the gamebot service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Deliveries and scoring
	deliveriesReceived *prometheus.CounterVec
	deliveriesDup      prometheus.Counter
	deliveriesIgnored  *prometheus.CounterVec
	deliveriesRejected *prometheus.CounterVec
	eventsScored       *prometheus.CounterVec
	experienceAwarded  *prometheus.CounterVec
	processingLatency  prometheus.Histogram

	// Diff provider
	diffFetches   *prometheus.CounterVec
	diffLatency   prometheus.Histogram
	githubRetries prometheus.Counter

	// Ledger
	ledgerWrites       *prometheus.CounterVec
	ledgerRetries      prometheus.Counter
	ledgerWriteLatency prometheus.Histogram

	// Repository
	repositoryRecordsTotal   prometheus.Gauge
	repositoryDocumentsTotal prometheus.Gauge
	repositoryUpdateLatency  prometheus.Histogram
	repositoryQueryLatency   prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gamebot",
		subsystem:        "engine",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.deliveriesReceived = m.counterVec("deliveries_received_total", "Webhook deliveries accepted for scoring by event kind", "kind")
	m.deliveriesDup = m.counter("deliveries_duplicate_total", "Redelivered webhook ids acknowledged without scoring")
	m.deliveriesIgnored = m.counterVec("deliveries_ignored_total", "Webhook deliveries of event kinds that are not scored", "event")
	m.deliveriesRejected = m.counterVec("deliveries_rejected_total", "Webhook deliveries rejected by reason", "reason")
	m.eventsScored = m.counterVec("events_scored_total", "Events scored and merged into the ledger by kind", "kind")
	m.experienceAwarded = m.counterVec("experience_awarded_total", "Experience points awarded by event kind", "kind")
	m.processingLatency = m.histogram("processing_latency_milliseconds", "Time from dequeue to ledger merge in milliseconds")

	m.diffFetches = m.counterVec("diff_fetches_total", "Compare requests by outcome", "outcome")
	m.diffLatency = m.histogram("diff_latency_milliseconds", "Compare request latency in milliseconds")
	m.githubRetries = m.counter("github_retries_total", "GitHub API requests retried after a transient failure")

	m.ledgerWrites = m.counterVec("ledger_writes_total", "Ledger increments by outcome", "outcome")
	m.ledgerRetries = m.counter("ledger_retries_total", "Ledger increment attempts after the first")
	m.ledgerWriteLatency = m.histogram("ledger_write_latency_milliseconds", "Ledger merge latency including retries in milliseconds")

	m.repositoryRecordsTotal = m.gauge("repository_records_total", "Ledger entries held by the store")
	m.repositoryDocumentsTotal = m.gauge("repository_documents_total", "Audit documents held by the store")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Store increment latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Store read latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current number of deliveries waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of deliveries the queue holds")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Deliveries enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Deliveries dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts refused because the queue was full or closed")
	m.queueProcessingLatency = m.histogram("queue_wait_milliseconds", "Time deliveries spend queued in milliseconds")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently processing a delivery")
	m.workerIdleCount = m.gauge("worker_idle_count", "Workers waiting for a delivery")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Deliveries a worker failed to process")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint, method and type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap memory in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds")
}

// Delivery and scoring metrics.

// RecordDeliveryReceived counts a delivery accepted for scoring.
func RecordDeliveryReceived(kind string) {
	globalManager.deliveriesReceived.WithLabelValues(kind).Inc()
}

// RecordDeliveryDuplicate counts a redelivered id.
func RecordDeliveryDuplicate() { globalManager.deliveriesDup.Inc() }

// RecordDeliveryIgnored counts an unsupported event.
func RecordDeliveryIgnored(event string) {
	globalManager.deliveriesIgnored.WithLabelValues(event).Inc()
}

// RecordDeliveryRejected counts a rejected delivery.
func RecordDeliveryRejected(reason string) {
	globalManager.deliveriesRejected.WithLabelValues(reason).Inc()
}

// RecordEventScored counts a scored event and the experience it earned.
func RecordEventScored(kind string, experience int64) {
	globalManager.eventsScored.WithLabelValues(kind).Inc()
	globalManager.experienceAwarded.WithLabelValues(kind).Add(float64(experience))
}

// RecordProcessingLatency records dequeue-to-merge latency.
func RecordProcessingLatency(latencyMs float64) { globalManager.processingLatency.Observe(latencyMs) }

// Diff provider metrics.

// RecordDiffFetch counts a compare request by outcome.
func RecordDiffFetch(outcome string) { globalManager.diffFetches.WithLabelValues(outcome).Inc() }

// RecordDiffLatency records compare request latency.
func RecordDiffLatency(latencyMs float64) { globalManager.diffLatency.Observe(latencyMs) }

// RecordGitHubRetry counts a retried GitHub request.
func RecordGitHubRetry() { globalManager.githubRetries.Inc() }

// Ledger metrics.

// RecordLedgerWrite counts a merge by outcome.
func RecordLedgerWrite(outcome string) { globalManager.ledgerWrites.WithLabelValues(outcome).Inc() }

// RecordLedgerRetry counts a repeated increment attempt.
func RecordLedgerRetry() { globalManager.ledgerRetries.Inc() }

// RecordLedgerWriteLatency records merge latency.
func RecordLedgerWriteLatency(latencyMs float64) { globalManager.ledgerWriteLatency.Observe(latencyMs) }

// Repository metrics.

// UpdateRepositoryRecordsTotal sets the ledger entry count.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// UpdateRepositoryDocumentsTotal sets the audit document count.
func UpdateRepositoryDocumentsTotal(count int) {
	globalManager.repositoryDocumentsTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records store increment latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records store read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records how long a delivery waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the configured number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP metrics.

// RecordHTTPRequest counts a request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error metrics.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method and type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets heap memory in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
