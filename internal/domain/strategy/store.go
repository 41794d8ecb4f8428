package strategy

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrBaselineRequired  = errors.New("baseline strategy must use the always pattern")
	ErrBaselineImmutable = errors.New("baseline strategy cannot be replaced or removed")
	ErrNotFound          = errors.New("strategy not found")
)

// Scorer ranks strategies; higher is better
type Scorer func(*Strategy) float64

// Store owns the strategies of one executor. maxStrategies bounds the number
// of learned (non-baseline) strategies; the baseline is always present.
type Store struct {
	mu         sync.RWMutex
	strategies map[string]*Strategy
	baseline   *Strategy
	max        int
	score      Scorer
}

// NewStore creates a store holding only the baseline
func NewStore(baseline *Strategy, maxStrategies int, score Scorer) (*Store, error) {
	if baseline == nil || !baseline.IsBaseline() {
		return nil, ErrBaselineRequired
	}
	if maxStrategies < 1 {
		return nil, fmt.Errorf("maxStrategies must be positive, got %d", maxStrategies)
	}
	if score == nil {
		score = func(s *Strategy) float64 { return s.Metrics.Snapshot().SuccessRate() }
	}
	return &Store{
		strategies: map[string]*Strategy{baseline.Name: baseline},
		baseline:   baseline,
		max:        maxStrategies,
		score:      score,
	}, nil
}

// Baseline returns the baseline strategy
func (st *Store) Baseline() *Strategy {
	return st.baseline
}

// Get looks up a strategy by name
func (st *Store) Get(name string) (*Strategy, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.strategies[name]
	return s, ok
}

// InsertIfAbsent adds s unless a strategy with the same name exists. When the
// bound is exceeded, the lowest-scoring learned strategy (possibly s itself)
// is evicted and returned.
func (st *Store) InsertIfAbsent(s *Strategy) (inserted bool, evicted *Strategy, err error) {
	if s.IsBaseline() {
		return false, nil, ErrBaselineImmutable
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.strategies[s.Name]; exists {
		return false, nil, nil
	}
	st.strategies[s.Name] = s

	if len(st.strategies)-1 > st.max {
		evicted = st.lowestLocked()
		delete(st.strategies, evicted.Name)
		evicted.removed.Store(true)
	}
	return evicted != s, evicted, nil
}

// Remove deletes a learned strategy
func (st *Store) Remove(name string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.strategies[name]
	if !ok {
		return ErrNotFound
	}
	if s == st.baseline {
		return ErrBaselineImmutable
	}
	delete(st.strategies, name)
	s.removed.Store(true)
	return nil
}

// Matching returns learned strategies whose pattern matches key
func (st *Store) Matching(key string) []*Strategy {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var out []*Strategy
	for _, s := range st.strategies {
		if s != st.baseline && s.Pattern.Matches(key) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// All returns every strategy, baseline first, the rest by name
func (st *Store) All() []*Strategy {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Strategy, 0, len(st.strategies))
	for _, s := range st.strategies {
		if s != st.baseline {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return append([]*Strategy{st.baseline}, out...)
}

// Len returns the number of strategies including the baseline
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.strategies)
}

// Score applies the store's scorer
func (st *Store) Score(s *Strategy) float64 {
	return st.score(s)
}

func (st *Store) lowestLocked() *Strategy {
	var (
		worst      *Strategy
		worstScore float64
	)
	for _, s := range st.strategies {
		if s == st.baseline {
			continue
		}
		score := st.score(s)
		switch {
		case worst == nil, score < worstScore:
			worst, worstScore = s, score
		case score == worstScore && s.CreatedAt.Before(worst.CreatedAt):
			worst = s
		case score == worstScore && s.CreatedAt.Equal(worst.CreatedAt) && s.Name < worst.Name:
			worst = s
		}
	}
	return worst
}
