package timeout

import (
	"slices"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// sample is one observed call. A call cut off by its timeout only says the
// operation needed longer than that, so its latency is a lower bound.
type sample struct {
	latency  time.Duration
	timedOut bool
}

// window is a bounded ring of samples for one context key
type window struct {
	samples []sample
	next    int
}

func (w *window) add(s sample) {
	if len(w.samples) < cap(w.samples) {
		w.samples = append(w.samples, s)
		return
	}
	w.samples[w.next] = s
	w.next = (w.next + 1) % len(w.samples)
}

// learner keeps a rolling latency window per context key
type learner struct {
	mu       sync.Mutex
	size     int
	contexts map[string]*window
}

func newLearner(size int) *learner {
	return &learner{size: size, contexts: make(map[string]*window)}
}

// observe records one call for key
func (l *learner) observe(key string, latency time.Duration, timedOut bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.contexts[key]
	if !ok {
		w = &window{samples: make([]sample, 0, l.size)}
		l.contexts[key] = w
	}
	w.add(sample{latency: latency, timedOut: timedOut})
}

// latencies is an immutable view of one context's window
type latencies struct {
	total    int
	timeouts int
	// observed holds every sample in sorted milliseconds, timed out calls at
	// the timeout that cut them off
	observed []float64
	// completed holds the latencies of calls that finished, in sorted
	// milliseconds
	completed []float64
	// bound is the longest timeout that cut off a call in the window
	bound float64
}

func (l *learner) latencies(key string) latencies {
	l.mu.Lock()
	defer l.mu.Unlock()

	var v latencies
	w, ok := l.contexts[key]
	if !ok {
		return v
	}
	v.observed = make([]float64, 0, len(w.samples))
	v.completed = make([]float64, 0, len(w.samples))
	for _, s := range w.samples {
		ms := float64(s.latency) / float64(time.Millisecond)
		v.total++
		v.observed = append(v.observed, ms)
		if s.timedOut {
			v.timeouts++
			v.bound = max(v.bound, ms)
			continue
		}
		v.completed = append(v.completed, ms)
	}
	slices.Sort(v.observed)
	slices.Sort(v.completed)
	return v
}

// quantile returns the p-quantile of every observed call. Timed out calls
// count at their bound, so a window full of timeouts reaches the timeout
// that produced them.
func (v latencies) quantile(p float64) time.Duration {
	if len(v.observed) == 0 {
		return 0
	}
	ms := stat.Quantile(p, stat.Empirical, v.observed, nil)
	return time.Duration(ms * float64(time.Millisecond))
}

// predictedSuccess is the share of calls that would have finished within
// timeout. A timed out call is assumed to finish within any timeout longer
// than every bound in the window, and within no other.
func (v latencies) predictedSuccess(timeout time.Duration) float64 {
	if v.total == 0 {
		return 0
	}
	limit := float64(timeout) / float64(time.Millisecond)
	within := sort.SearchFloat64s(v.completed, limit)
	for within < len(v.completed) && v.completed[within] == limit {
		within++
	}
	if v.timeouts > 0 && limit > v.bound {
		within += v.timeouts
	}
	return float64(within) / float64(v.total)
}

// keys returns the observed context keys in sorted order
func (l *learner) keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := make([]string, 0, len(l.contexts))
	for k := range l.contexts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
