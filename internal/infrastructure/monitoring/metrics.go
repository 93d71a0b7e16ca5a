package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	BreakerState     *prometheus.GaugeVec
	BreakerTrips     *prometheus.CounterVec
	BreakerFastFails *prometheus.CounterVec

	// Cache metrics
	CacheEntries       prometheus.Gauge
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	CacheStaleServes   prometheus.Counter
	CacheInvalidations prometheus.Counter

	// Connection lifecycle metrics
	ConnectionOnline prometheus.Gauge
	ClientRecreates  prometheus.Counter
	RecreatesSkipped prometheus.Counter
	TeardownFailures prometheus.Counter

	// Platform call metrics
	PlatformCalls    *prometheus.CounterVec
	PlatformDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64
	TotalErrors       int64
	ActiveConnections int64
	TotalDuration     float64 // sum of all request durations
	RequestCount      int64   // count for averaging
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		BreakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gateway_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
		BreakerTrips: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_breaker_trips_total",
				Help: "Total number of circuit breaker trips",
			},
			[]string{"breaker"},
		),
		BreakerFastFails: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_breaker_fast_fails_total",
				Help: "Total number of calls refused by an open breaker",
			},
			[]string{"breaker"},
		),

		// Cache metrics
		CacheEntries: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_cache_entries",
				Help: "Number of entries currently cached",
			},
		),
		CacheHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_cache_hits_total",
				Help: "Total number of fresh cache hits",
			},
		),
		CacheMisses: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_cache_misses_total",
				Help: "Total number of cache misses",
			},
		),
		CacheStaleServes: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_cache_stale_serves_total",
				Help: "Total number of stale values served while revalidating",
			},
		),
		CacheInvalidations: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_cache_invalidations_total",
				Help: "Total number of cache invalidations",
			},
		),

		// Connection lifecycle metrics
		ConnectionOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_connection_online",
				Help: "Whether the platform connection is online (1) or not (0)",
			},
		),
		ClientRecreates: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_client_recreates_total",
				Help: "Total number of platform client recreations",
			},
		),
		RecreatesSkipped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_client_recreates_skipped_total",
				Help: "Total number of recreations skipped by the throttle",
			},
		),
		TeardownFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_client_teardown_failures_total",
				Help: "Total number of old-client teardown failures",
			},
		),

		// Platform call metrics
		PlatformCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_platform_calls_total",
				Help: "Total number of platform calls",
			},
			[]string{"service", "operation", "status"},
		),
		PlatformDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_platform_duration_seconds",
				Help:    "Platform call duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"service", "operation"},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gateway_uptime_seconds",
				Help: "Gateway uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordPlatformCall records one call through a service breaker
func (m *Metrics) RecordPlatformCall(service, operation, status string, duration time.Duration) {
	m.PlatformCalls.WithLabelValues(service, operation, status).Inc()
	m.PlatformDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

// SetBreakerState records a breaker's current state
func (m *Metrics) SetBreakerState(breaker string, state int) {
	m.BreakerState.WithLabelValues(breaker).Set(float64(state))
}

// IncBreakerTrips increments a breaker's trip counter
func (m *Metrics) IncBreakerTrips(breaker string) {
	m.BreakerTrips.WithLabelValues(breaker).Inc()
}

// IncBreakerFastFails increments a breaker's fast-fail counter
func (m *Metrics) IncBreakerFastFails(breaker string) {
	m.BreakerFastFails.WithLabelValues(breaker).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// SetConnectionOnline records whether the platform connection is online
func (m *Metrics) SetConnectionOnline(online bool) {
	v := 0.0
	if online {
		v = 1.0
	}
	m.ConnectionOnline.Set(v)
	m.mu.Lock()
	m.snapshot.ActiveConnections = int64(v)
	m.mu.Unlock()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}
