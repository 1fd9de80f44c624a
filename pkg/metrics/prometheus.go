// Package metrics provides Prometheus metrics for the standings service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultNamespace = "standings"
	defaultSubsystem = "display"
)

// Latency buckets in milliseconds, tuned for store reads and HTTP handlers.
var defaultLatencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Poll pipeline
	pollsTotal     *prometheus.CounterVec
	fetchLatency   prometheus.Histogram
	rankingSize    prometheus.Gauge
	snapshotSize   prometheus.Gauge
	triggersTotal  *prometheus.CounterVec
	triggerDrops   prometheus.Counter
	triggerBacklog prometheus.Gauge

	// Engine
	movementsTotal   *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	celebrations     *prometheus.CounterVec
	enginePhase      *prometheus.GaugeVec

	// Store
	storeOps       *prometheus.CounterVec
	storeOpLatency *prometheus.HistogramVec

	// Bus
	notifications     *prometheus.CounterVec
	notificationDupes prometheus.Counter

	// Display stream
	displayClients prometheus.Gauge
	framesSent     *prometheus.CounterVec
	framesDropped  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemory     prometheus.Gauge
	systemGoroutines prometheus.Gauge
	systemGCPause    prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        defaultNamespace,
		subsystem:        defaultSubsystem,
		histogramBuckets: defaultLatencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.pollsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "polls_total",
		Help: "Poll cycles by outcome (applied, failed, malformed)",
	}, []string{"outcome"})

	m.fetchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "fetch_latency_milliseconds",
		Help:    "Latency of ranking fetches from the score store",
		Buckets: m.histogramBuckets,
	})

	m.rankingSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ranking_entries",
		Help: "Entries in the last applied ranking",
	})

	m.snapshotSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshot_entries",
		Help: "Identities held by the rank snapshot",
	})

	m.triggersTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "poll_triggers_total",
		Help: "Poll triggers accepted by reason",
	}, []string{"reason"})

	m.triggerDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "poll_triggers_coalesced_total",
		Help: "Poll triggers dropped because one was already pending",
	})

	m.triggerBacklog = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "poll_trigger_backlog",
		Help: "Pending poll triggers",
	})

	m.movementsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "movements_total",
		Help: "Classified entry movements by tag",
	}, []string{"tag"})

	m.transitionsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "transitions_total",
		Help: "Layout transitions by mode (smooth, snap)",
	}, []string{"mode"})

	m.celebrations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "celebrations_total",
		Help: "Celebration bursts fired by tier",
	}, []string{"tier"})

	m.enginePhase = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "engine_phase",
		Help: "1 for the engine's current phase, 0 otherwise",
	}, []string{"phase"})

	m.storeOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "store_operations_total",
		Help: "Score store operations by backend, operation and result",
	}, []string{"backend", "op", "result"})

	m.storeOpLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "store_operation_latency_milliseconds",
		Help:    "Score store operation latency",
		Buckets: m.histogramBuckets,
	}, []string{"backend", "op"})

	m.notifications = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bus_notifications_total",
		Help: "Mutation notifications by direction (published, received) and topic",
	}, []string{"direction", "topic"})

	m.notificationDupes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "bus_notifications_duplicate_total",
		Help: "Mutation notifications ignored because their id was already seen",
	})

	m.displayClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "display_clients",
		Help: "Connected display websocket clients",
	})

	m.framesSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frames_sent_total",
		Help: "Frames delivered to display clients by type",
	}, []string{"type"})

	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "frames_dropped_total",
		Help: "Frames dropped for slow display clients",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_errors_total",
		Help: "HTTP responses with status >= 400 by endpoint and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemory = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_alloc_bytes",
		Help: "Bytes of allocated heap objects",
	})

	m.systemGoroutines = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Number of goroutines",
	})

	m.systemGCPause = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "gc_pause_avg_milliseconds",
		Help: "Average GC pause time in milliseconds",
	})
}

// Poll pipeline.

// RecordPoll counts a finished poll cycle.
func RecordPoll(outcome string) {
	globalManager.pollsTotal.WithLabelValues(outcome).Inc()
}

// RecordFetchLatency records a store fetch latency.
func RecordFetchLatency(d time.Duration) {
	globalManager.fetchLatency.Observe(ms(d))
}

// UpdateRankingSize sets the size of the last applied ranking.
func UpdateRankingSize(n int) {
	globalManager.rankingSize.Set(float64(n))
}

// UpdateSnapshotSize sets the number of tracked identities.
func UpdateSnapshotSize(n int) {
	globalManager.snapshotSize.Set(float64(n))
}

// RecordTrigger counts an accepted poll trigger.
func RecordTrigger(reason string) {
	globalManager.triggersTotal.WithLabelValues(reason).Inc()
}

// RecordTriggerCoalesced counts a trigger dropped on a full queue.
func RecordTriggerCoalesced() {
	globalManager.triggerDrops.Inc()
}

// UpdateTriggerBacklog sets the pending trigger count.
func UpdateTriggerBacklog(n int) {
	globalManager.triggerBacklog.Set(float64(n))
}

// Engine.

// RecordMovement counts one classified tag.
func RecordMovement(tag string) {
	globalManager.movementsTotal.WithLabelValues(tag).Inc()
}

// RecordTransition counts a transition by mode.
func RecordTransition(mode string) {
	globalManager.transitionsTotal.WithLabelValues(mode).Inc()
}

// RecordCelebration counts a fired burst by tier.
func RecordCelebration(tier string) {
	globalManager.celebrations.WithLabelValues(tier).Inc()
}

// UpdateEnginePhase flips the phase gauge so exactly one phase reads 1.
func UpdateEnginePhase(current string, all []string) {
	for _, p := range all {
		v := 0.0
		if p == current {
			v = 1
		}
		globalManager.enginePhase.WithLabelValues(p).Set(v)
	}
}

// Store.

// RecordStoreOp records one store operation and its latency.
func RecordStoreOp(backend, op string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	globalManager.storeOps.WithLabelValues(backend, op, result).Inc()
	globalManager.storeOpLatency.WithLabelValues(backend, op).Observe(ms(d))
}

// Bus.

// RecordNotification counts a published or received notification.
func RecordNotification(direction, topic string) {
	globalManager.notifications.WithLabelValues(direction, topic).Inc()
}

// RecordNotificationDuplicate counts an ignored duplicate.
func RecordNotificationDuplicate() {
	globalManager.notificationDupes.Inc()
}

// Display stream.

// UpdateDisplayClients sets the number of connected display clients.
func UpdateDisplayClients(n int) {
	globalManager.displayClients.Set(float64(n))
}

// RecordFrameSent counts a frame delivered to one client.
func RecordFrameSent(frameType string) {
	globalManager.framesSent.WithLabelValues(frameType).Inc()
}

// RecordFrameDropped counts a frame not delivered to a slow client.
func RecordFrameDropped() {
	globalManager.framesDropped.Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an error response.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemory.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutines.Set(float64(n))
}

// RecordSystemGCPauseTime sets the average GC pause.
func RecordSystemGCPauseTime(avgMS float64) {
	globalManager.systemGCPause.Set(avgMS)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
