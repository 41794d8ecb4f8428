package fallback

import (
	"sort"
	"sync"
	"time"
)

// serviceCounters are the outcomes of one service in one context
type serviceCounters struct {
	attempts  uint64
	successes uint64
	latency   time.Duration
}

func (c serviceCounters) successRate() float64 {
	if c.attempts == 0 {
		return 0
	}
	return float64(c.successes) / float64(c.attempts)
}

func (c serviceCounters) avgLatency() time.Duration {
	if c.attempts == 0 {
		return 0
	}
	return c.latency / time.Duration(c.attempts)
}

// ServiceStats is the exported view of one service in one context
type ServiceStats struct {
	Attempts    uint64        `json:"attempts"`
	Successes   uint64        `json:"successes"`
	SuccessRate float64       `json:"success_rate"`
	AvgLatency  time.Duration `json:"avg_latency"`
	Score       float64       `json:"score"`
}

// contextStats holds per-service counters for one context key
type contextStats struct {
	calls    uint64
	services map[string]serviceCounters
}

// tracker keeps per-service counters per context key, outside any strategy,
// so every order learned for a context is judged on the same evidence
type tracker struct {
	mu       sync.Mutex
	contexts map[string]*contextStats
}

func newTracker() *tracker {
	return &tracker{contexts: make(map[string]*contextStats)}
}

func (t *tracker) context(key string) *contextStats {
	cs, ok := t.contexts[key]
	if !ok {
		cs = &contextStats{services: make(map[string]serviceCounters)}
		t.contexts[key] = cs
	}
	return cs
}

// recordCall counts one chain invocation for key
func (t *tracker) recordCall(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.context(key).calls++
}

// recordAttempt counts one service attempt for key
func (t *tracker) recordAttempt(key, service string, success bool, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs := t.context(key)
	c := cs.services[service]
	c.attempts++
	c.latency += latency
	if success {
		c.successes++
	}
	cs.services[service] = c
}

// snapshot copies the counters of key
func (t *tracker) snapshot(key string) (calls uint64, services map[string]serviceCounters) {
	t.mu.Lock()
	defer t.mu.Unlock()

	services = make(map[string]serviceCounters)
	cs, ok := t.contexts[key]
	if !ok {
		return 0, services
	}
	for name, c := range cs.services {
		services[name] = c
	}
	return cs.calls, services
}

func (t *tracker) keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, len(t.contexts))
	for k := range t.contexts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// serviceScores rates each service as 0.7*successRate + 0.3*latencyScore,
// where latencyScore is the fastest observed average over the service's own.
// Services never tried score 0.
func serviceScores(names []string, counters map[string]serviceCounters) map[string]float64 {
	var fastest time.Duration
	for _, name := range names {
		c := counters[name]
		if c.attempts == 0 {
			continue
		}
		if avg := c.avgLatency(); fastest == 0 || avg < fastest {
			fastest = avg
		}
	}

	scores := make(map[string]float64, len(names))
	for _, name := range names {
		c := counters[name]
		if c.attempts == 0 {
			scores[name] = 0
			continue
		}
		latencyScore := 1.0
		if avg := c.avgLatency(); avg > 0 && fastest > 0 {
			latencyScore = float64(fastest) / float64(avg)
		}
		scores[name] = 0.7*c.successRate() + 0.3*latencyScore
	}
	return scores
}

// rankServices orders services by score, keeping the current relative order
// on ties
func rankServices(order []string, scores map[string]float64) []string {
	ranked := append([]string(nil), order...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i]] > scores[ranked[j]]
	})
	return ranked
}

// chainScore predicts 0.7*P(success) + 0.3/expectedAttempts for an order,
// treating services as independent
func chainScore(order []string, counters map[string]serviceCounters) float64 {
	reach := 1.0 // probability that the chain gets to the current service
	expected := 0.0
	for _, name := range order {
		expected += reach
		reach *= 1 - counters[name].successRate()
	}
	if expected < 1 {
		expected = 1
	}
	return 0.7*(1-reach) + 0.3/expected
}
