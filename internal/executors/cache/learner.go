package cache

import "sync"

// LookupStats counts lookups of one strategy in one context
type LookupStats struct {
	Hits     uint64 `json:"hits"`
	Cold     uint64 `json:"cold"`
	Stale    uint64 `json:"stale"`
	Capacity uint64 `json:"capacity"`
}

// Lookups is the total number of lookups
func (s LookupStats) Lookups() uint64 {
	return s.Hits + s.Cold + s.Stale + s.Capacity
}

// HitRate is hits/lookups, 0 without lookups
func (s LookupStats) HitRate() float64 {
	if n := s.Lookups(); n > 0 {
		return float64(s.Hits) / float64(n)
	}
	return 0
}

func (s LookupStats) fraction(n uint64) float64 {
	if total := s.Lookups(); total > 0 {
		return float64(n) / float64(total)
	}
	return 0
}

// learner keeps lookup outcomes per context key and strategy
type learner struct {
	mu       sync.Mutex
	contexts map[string]map[string]*LookupStats
}

func newLearner() *learner {
	return &learner{contexts: make(map[string]map[string]*LookupStats)}
}

func (l *learner) observe(contextKey, strategyName string, kind MissKind) {
	l.mu.Lock()
	defer l.mu.Unlock()

	byStrategy, ok := l.contexts[contextKey]
	if !ok {
		byStrategy = make(map[string]*LookupStats)
		l.contexts[contextKey] = byStrategy
	}
	s, ok := byStrategy[strategyName]
	if !ok {
		s = &LookupStats{}
		byStrategy[strategyName] = s
	}

	switch kind {
	case MissNone:
		s.Hits++
	case MissCold:
		s.Cold++
	case MissStale:
		s.Stale++
	case MissCapacity:
		s.Capacity++
	}
}

// stats returns the counters of one strategy in one context
func (l *learner) stats(contextKey, strategyName string) (LookupStats, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.contexts[contextKey][strategyName]
	if !ok {
		return LookupStats{}, false
	}
	return *s, true
}

// forget drops the counters of the named strategies in every context
func (l *learner) forget(names ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, byStrategy := range l.contexts {
		for _, name := range names {
			delete(byStrategy, name)
		}
		if len(byStrategy) == 0 {
			delete(l.contexts, key)
		}
	}
}

// export copies every counter, keyed by context then strategy
func (l *learner) export() map[string]map[string]LookupStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]map[string]LookupStats, len(l.contexts))
	for key, byStrategy := range l.contexts {
		m := make(map[string]LookupStats, len(byStrategy))
		for name, s := range byStrategy {
			m[name] = *s
		}
		out[key] = m
	}
	return out
}
