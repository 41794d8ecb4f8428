package strategy

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Counters is a lock-free outcome accumulator. Executions are derived from
// successes and failures, so successes+failures == executions always holds.
type Counters struct {
	successes atomic.Uint64
	failures  atomic.Uint64
	attempts  atomic.Uint64
	latency   atomic.Int64 // nanoseconds
}

// Record adds one outcome
func (c *Counters) Record(success bool, latency time.Duration, attempts int) {
	if attempts < 1 {
		attempts = 1
	}
	if latency < 0 {
		latency = 0
	}
	c.attempts.Add(uint64(attempts))
	c.latency.Add(int64(latency))
	if success {
		c.successes.Add(1)
	} else {
		c.failures.Add(1)
	}
}

// Snapshot returns a consistent-enough read of the counters
func (c *Counters) Snapshot() MetricsSnapshot {
	s := c.successes.Load()
	f := c.failures.Load()
	return MetricsSnapshot{
		Executions:        s + f,
		Successes:         s,
		Failures:          f,
		Attempts:          c.attempts.Load(),
		CumulativeLatency: time.Duration(c.latency.Load()),
	}
}

func (c *Counters) restore(s MetricsSnapshot) {
	c.successes.Store(s.Successes)
	c.failures.Store(s.Failures)
	c.attempts.Store(s.Attempts)
	c.latency.Store(int64(s.CumulativeLatency))
}

// Metrics accumulates outcomes for one strategy, overall and per context key
type Metrics struct {
	Counters

	perContext sync.Map // string -> *Counters
}

// NewMetrics creates empty metrics
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one outcome overall and under contextKey (when non-empty)
func (m *Metrics) Record(contextKey string, success bool, latency time.Duration, attempts int) {
	m.Counters.Record(success, latency, attempts)
	if contextKey == "" {
		return
	}
	m.context(contextKey).Record(success, latency, attempts)
}

// ForContext returns the sub-metrics of one context key
func (m *Metrics) ForContext(contextKey string) MetricsSnapshot {
	if c, ok := m.perContext.Load(contextKey); ok {
		return c.(*Counters).Snapshot()
	}
	return MetricsSnapshot{}
}

// Contexts returns a snapshot of every context partition
func (m *Metrics) Contexts() map[string]MetricsSnapshot {
	out := make(map[string]MetricsSnapshot)
	m.perContext.Range(func(k, v any) bool {
		out[k.(string)] = v.(*Counters).Snapshot()
		return true
	})
	return out
}

// ContextKeys returns the sorted context keys seen so far
func (m *Metrics) ContextKeys() []string {
	var keys []string
	m.perContext.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

func (m *Metrics) context(key string) *Counters {
	if c, ok := m.perContext.Load(key); ok {
		return c.(*Counters)
	}
	c, _ := m.perContext.LoadOrStore(key, &Counters{})
	return c.(*Counters)
}

// Restore seeds the metrics from a persisted snapshot
func (m *Metrics) Restore(overall MetricsSnapshot, perContext map[string]MetricsSnapshot) {
	m.Counters.restore(overall)
	for k, s := range perContext {
		m.context(k).restore(s)
	}
}

// MetricsSnapshot is a read-only copy of accumulated outcomes
type MetricsSnapshot struct {
	Executions        uint64        `json:"executions"`
	Successes         uint64        `json:"successes"`
	Failures          uint64        `json:"failures"`
	Attempts          uint64        `json:"attempts"`
	CumulativeLatency time.Duration `json:"cumulative_latency"`
}

// SuccessRate is successes/executions, 0 without executions
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Executions)
}

// FailureRate is 1-SuccessRate, so 1 without executions
func (s MetricsSnapshot) FailureRate() float64 {
	return 1 - s.SuccessRate()
}

// AvgLatency is cumulativeLatency/executions
func (s MetricsSnapshot) AvgLatency() time.Duration {
	if s.Executions == 0 {
		return 0
	}
	return s.CumulativeLatency / time.Duration(s.Executions)
}

// AvgAttempts is attempts/executions
func (s MetricsSnapshot) AvgAttempts() float64 {
	if s.Executions == 0 {
		return 0
	}
	return float64(s.Attempts) / float64(s.Executions)
}
