// Package metrics provides Prometheus metrics for the triage booth.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan outcomes.
const (
	ScanRevealed  = "revealed"
	ScanDuplicate = "duplicate"
	ScanUnknown   = "unknown"
	ScanNoSession = "no_session"
)

// Manager manages all Prometheus metrics for the booth.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Game flow
	sessionsStarted  prometheus.Counter
	scans            *prometheus.CounterVec
	decisions        prometheus.Counter
	decisionsIgnored *prometheus.CounterVec
	resets           *prometheus.CounterVec
	decisionScore    prometheus.Histogram
	decisionSeconds  prometheus.Histogram
	leaderboardSize  prometheus.Gauge

	// Relay
	connections      prometheus.Gauge
	topicSubscribers prometheus.Gauge
	relayMessages    *prometheus.CounterVec
	relayDropped     prometheus.Counter
	relayDuplicates  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec

	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "triage",
		subsystem:        "booth",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.sessionsStarted = m.counter("sessions_started_total", "Total number of sessions started")
	m.scans = m.counterVec("scans_total", "Scans received by outcome", "outcome")
	m.decisions = m.counter("decisions_total", "Total number of scored decisions")
	m.decisionsIgnored = m.counterVec("decisions_ignored_total", "Decisions dropped without scoring", "reason")
	m.resets = m.counterVec("resets_total", "Resets by kind", "kind")
	m.leaderboardSize = m.gauge("leaderboard_size", "Current number of leaderboard entries")

	m.decisionScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "decision_score",
		Help:      "Distribution of decision scores",
		Buckets:   prometheus.LinearBuckets(0, 1, 16),
	})

	m.decisionSeconds = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "decision_seconds",
		Help:      "Time from decision unlock to submission",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
	})

	m.connections = m.gauge("ws_connections", "Open websocket connections")
	m.topicSubscribers = m.gauge("topic_subscribers", "Subscribers on the broadcast topic")
	m.relayMessages = m.counterVec("relay_messages_total", "Relay messages by direction", "direction")
	m.relayDropped = m.counter("relay_dropped_total", "Subscribers evicted for a full send buffer")
	m.relayDuplicates = m.counter("relay_duplicates_total", "Inbound messages dropped as re-sent")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// Game flow.

// RecordSessionStarted increments the session counter.
func RecordSessionStarted() {
	globalManager.sessionsStarted.Inc()
}

// RecordScan counts a scan by outcome.
func RecordScan(outcome string) {
	globalManager.scans.WithLabelValues(outcome).Inc()
}

// RecordDecision records a scored decision.
func RecordDecision(score int, seconds float64) {
	globalManager.decisions.Inc()
	globalManager.decisionScore.Observe(float64(score))
	globalManager.decisionSeconds.Observe(seconds)
}

// RecordDecisionIgnored counts a decision dropped for reason.
func RecordDecisionIgnored(reason string) {
	globalManager.decisionsIgnored.WithLabelValues(reason).Inc()
}

// RecordReset counts a reset of kind ("session" or "leaderboard").
func RecordReset(kind string) {
	globalManager.resets.WithLabelValues(kind).Inc()
}

// UpdateLeaderboardSize sets the leaderboard size.
func UpdateLeaderboardSize(n int) {
	globalManager.leaderboardSize.Set(float64(n))
}

// Relay.

// UpdateConnections sets the number of open websocket connections.
func UpdateConnections(n int) {
	globalManager.connections.Set(float64(n))
}

// UpdateTopicSubscribers sets the number of topic subscribers.
func UpdateTopicSubscribers(n int) {
	globalManager.topicSubscribers.Set(float64(n))
}

// RecordRelayMessage counts a relay message; direction is "in" or "out".
func RecordRelayMessage(direction string) {
	globalManager.relayMessages.WithLabelValues(direction).Inc()
}

// RecordRelayDrop counts a subscriber evicted for a full buffer.
func RecordRelayDrop() {
	globalManager.relayDropped.Inc()
}

// RecordRelayDuplicate counts an inbound message dropped as re-sent.
func RecordRelayDuplicate() {
	globalManager.relayDuplicates.Inc()
}

// HTTP.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
