package retry

import (
	"sort"
	"sync"
)

// sample is one observed call: the attempt that succeeded, or the number of
// attempts made before giving up (a censored observation)
type sample struct {
	attempts int
	success  bool
}

// history is a bounded ring of samples for one context key
type history struct {
	samples []sample
	next    int
}

func (h *history) add(s sample) {
	if len(h.samples) < cap(h.samples) {
		h.samples = append(h.samples, s)
		return
	}
	h.samples[h.next] = s
	h.next = (h.next + 1) % len(h.samples)
}

// learner keeps the attempts-to-success distribution per context key
type learner struct {
	mu       sync.Mutex
	window   int
	contexts map[string]*history
}

func newLearner(window int) *learner {
	return &learner{window: window, contexts: make(map[string]*history)}
}

// observe records one call for key
func (l *learner) observe(key string, attempts int, success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.contexts[key]
	if !ok {
		h = &history{samples: make([]sample, 0, l.window)}
		l.contexts[key] = h
	}
	h.add(sample{attempts: attempts, success: success})
}

// distribution is an immutable view of one context's samples
type distribution struct {
	total     int
	successes int
	// succeededAt[n] counts calls that succeeded on attempt n
	succeededAt map[int]int
}

func (l *learner) distribution(key string) distribution {
	l.mu.Lock()
	defer l.mu.Unlock()

	d := distribution{succeededAt: make(map[int]int)}
	h, ok := l.contexts[key]
	if !ok {
		return d
	}
	for _, s := range h.samples {
		d.total++
		if s.success {
			d.successes++
			d.succeededAt[s.attempts]++
		}
	}
	return d
}

// predictedSuccess estimates the success rate with the given retry count.
// A censored failure only says the call needed more attempts than were made,
// so it is counted as a failure for every retry count.
func (d distribution) predictedSuccess(retries int) float64 {
	if d.total == 0 {
		return 0
	}
	covered := 0
	for attempts, n := range d.succeededAt {
		if attempts <= retries+1 {
			covered += n
		}
	}
	return float64(covered) / float64(d.total)
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
