package strategy

import (
	"sync/atomic"
	"time"
)

// BaselineName is the name given to every executor's baseline strategy
const BaselineName = "baseline"

// Strategy is a named, versioned bundle of parameters with its own outcome
// statistics.
type Strategy struct {
	Name        string
	Description string
	Version     int
	Parameters  Parameters
	Pattern     Pattern
	Metrics     *Metrics
	CreatedAt   time.Time

	// PriorScore is the score that justified the strategy's promotion. It
	// stands in for the observed score until enough executions exist.
	PriorScore float64

	validated atomic.Bool
	trials    atomic.Int64
	decided   atomic.Bool
	removed   atomic.Bool
}

// New creates a strategy with empty metrics
func New(name, description string, params Parameters, pattern Pattern) *Strategy {
	return &Strategy{
		Name:        name,
		Description: description,
		Version:     1,
		Parameters:  params.Clone(),
		Pattern:     pattern,
		Metrics:     NewMetrics(),
		CreatedAt:   time.Now(),
	}
}

// NewBaseline creates the validated, match-everything baseline strategy
func NewBaseline(description string, params Parameters) *Strategy {
	s := New(BaselineName, description, params, Always())
	s.validated.Store(true)
	s.decided.Store(true)
	return s
}

// IsBaseline reports whether the strategy is the store's baseline
func (s *Strategy) IsBaseline() bool {
	return s.Pattern.IsAlways()
}

// Validated reports whether the strategy is eligible for full traffic
func (s *Strategy) Validated() bool {
	return s.validated.Load()
}

// MarkValidated promotes the strategy out of its validation window
func (s *Strategy) MarkValidated() {
	s.validated.Store(true)
}

// ReserveTrial claims one validation execution. It returns false once
// limit trials have been handed out.
func (s *Strategy) ReserveTrial(limit int) bool {
	for {
		n := s.trials.Load()
		if n >= int64(limit) {
			return false
		}
		if s.trials.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Trials returns the number of reserved validation executions
func (s *Strategy) Trials() int {
	return int(s.trials.Load())
}

// Decide returns true exactly once; callers use it to settle a validation
// window without racing each other.
func (s *Strategy) Decide() bool {
	return s.decided.CompareAndSwap(false, true)
}

// Removed reports whether the strategy was evicted from or removed out of
// its store. Domains use it to drop per-strategy state.
func (s *Strategy) Removed() bool {
	return s.removed.Load()
}
