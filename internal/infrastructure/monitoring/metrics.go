package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
)

// Metrics holds all Prometheus metrics. It subscribes to the executor event
// stream through Emit.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Execution metrics
	Executions        *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ExecutionAttempts *prometheus.HistogramVec
	ExecutionErrors   *prometheus.CounterVec

	// Strategy lifecycle metrics
	StrategyEvents *prometheus.CounterVec
	ScoreDelta     *prometheus.HistogramVec

	// Breaker metrics
	BreakerTransitions *prometheus.CounterVec
	BreakersOpen       *prometheus.GaugeVec

	// Persistence metrics
	StoreCalls    *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot
	open     map[string]bool

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalExecutions int64   `json:"total_executions"`
	TotalFailures   int64   `json:"total_failures"`
	Promotions      int64   `json:"promotions"`
	Evictions       int64   `json:"evictions"`
	OpenBreakers    int64   `json:"open_breakers"`
	TotalLatency    float64 `json:"total_latency_seconds"`
}

// NewMetrics creates a new metrics collector registered on reg. A nil reg
// uses the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),
		open:      make(map[string]bool),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptive_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adaptive_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Execution metrics
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptive_executions_total",
				Help: "Total number of adaptive executions",
			},
			[]string{"executor", "strategy", "status"},
		),
		ExecutionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adaptive_execution_duration_seconds",
				Help:    "Adaptive execution duration in seconds, including retries",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"executor"},
		),
		ExecutionAttempts: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adaptive_execution_attempts",
				Help:    "Attempts made per adaptive execution",
				Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
			},
			[]string{"executor"},
		),
		ExecutionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptive_execution_errors_total",
				Help: "Total number of failed executions by error type",
			},
			[]string{"executor", "error_type"},
		),

		// Strategy lifecycle metrics
		StrategyEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptive_strategy_events_total",
				Help: "Strategy lifecycle events (promoted, candidate, discarded, evicted)",
			},
			[]string{"executor", "event"},
		),
		ScoreDelta: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adaptive_promotion_score_delta",
				Help:    "Score improvement over the baseline at promotion",
				Buckets: []float64{.01, .025, .05, .1, .2, .3, .5},
			},
			[]string{"executor"},
		),

		// Breaker metrics
		BreakerTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptive_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"executor", "to"},
		),
		BreakersOpen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adaptive_breakers_open",
				Help: "Number of strategies whose breaker is open",
			},
			[]string{"executor"},
		),

		// Persistence metrics
		StoreCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adaptive_store_calls_total",
				Help: "Total number of strategy persistence calls",
			},
			[]string{"backend", "method", "status"},
		),
		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adaptive_store_duration_seconds",
				Help:    "Strategy persistence call duration in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"backend", "method"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "adaptive_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Emit implements events.Sink
func (m *Metrics) Emit(e events.Event) {
	switch e.Type {
	case events.TypeExecution:
		m.RecordExecution(e)
	case events.TypeCircuitStateChanged:
		m.recordBreaker(e)
	default:
		m.StrategyEvents.WithLabelValues(e.Executor, string(e.Type)).Inc()
		m.mu.Lock()
		switch e.Type {
		case events.TypeStrategyPromoted:
			m.snapshot.Promotions++
		case events.TypeStrategyEvicted:
			m.snapshot.Evictions++
		}
		m.mu.Unlock()
		if e.Type == events.TypeStrategyPromoted {
			m.ScoreDelta.WithLabelValues(e.Executor).Observe(e.ScoreDelta)
		}
	}
}

// RecordExecution records one adaptive execution
func (m *Metrics) RecordExecution(e events.Event) {
	status := "success"
	if !e.Success {
		status = "failure"
		m.ExecutionErrors.WithLabelValues(e.Executor, string(e.ErrorType)).Inc()
	}
	m.Executions.WithLabelValues(e.Executor, e.StrategyName, status).Inc()
	m.ExecutionDuration.WithLabelValues(e.Executor).Observe(e.Latency.Seconds())
	m.ExecutionAttempts.WithLabelValues(e.Executor).Observe(float64(e.Attempts))

	m.mu.Lock()
	m.snapshot.TotalExecutions++
	m.snapshot.TotalLatency += e.Latency.Seconds()
	if !e.Success {
		m.snapshot.TotalFailures++
	}
	m.mu.Unlock()
}

func (m *Metrics) recordBreaker(e events.Event) {
	m.BreakerTransitions.WithLabelValues(e.Executor, e.To).Inc()

	key := e.Executor + "/" + e.StrategyName
	m.mu.Lock()
	defer m.mu.Unlock()

	wasOpen := m.open[key]
	isOpen := e.To == "open"
	switch {
	case isOpen && !wasOpen:
		m.open[key] = true
		m.snapshot.OpenBreakers++
		m.BreakersOpen.WithLabelValues(e.Executor).Inc()
	case !isOpen && wasOpen:
		delete(m.open, key)
		m.snapshot.OpenBreakers--
		m.BreakersOpen.WithLabelValues(e.Executor).Dec()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// RecordStoreCall records a persistence call
func (m *Metrics) RecordStoreCall(backend, method, status string, duration time.Duration) {
	m.StoreCalls.WithLabelValues(backend, method, status).Inc()
	m.StoreDuration.WithLabelValues(backend, method).Observe(duration.Seconds())
}
