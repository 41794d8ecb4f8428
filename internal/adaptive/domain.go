package adaptive

import (
	"context"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Domain is what a concrete executor (retry, fallback, cache, timeout) plugs
// into the core. Implementations must be safe for concurrent use. Score is
// called while the strategy store is locked, so it must not call back into
// the executor.
type Domain[In, Out any] interface {
	// Name identifies the domain in strategy names and events
	Name() string
	// Baseline returns the parameters of the never-evicted default strategy
	Baseline() strategy.Parameters
	// ValidateParameters rejects malformed parameter sets
	ValidateParameters(strategy.Parameters) error
	// Run executes the wrapped operation under the invocation's strategy
	Run(ctx context.Context, inv *Invocation[In]) Outcome[Out]
	// Score rates a strategy given metrics observed under it; higher is better
	Score(s *strategy.Strategy, snap strategy.MetricsSnapshot) float64
	// ConsiderNewStrategy inspects the learner state for one context and
	// returns zero or more proposals
	ConsiderNewStrategy(view LearningView) []Proposal
	// DomainStats exports learner state for inspection
	DomainStats() map[string]any
}

// Invocation is one Execute call as seen by the domain
type Invocation[In any] struct {
	Input      In
	Context    execution.Context
	ContextKey string
	Strategy   *strategy.Strategy

	// Learning is false in DISABLED mode; domains must not feed their
	// collectors then.
	Learning bool
}

// Outcome is what a domain reports back for one invocation
type Outcome[Out any] struct {
	Value       Out
	Err         error
	Attempts    int
	Annotations map[string]any
}

// LearningView is the state a learning pass runs against
type LearningView struct {
	ContextKey string
	// Current is the strategy the proposal must beat for ContextKey
	Current  *strategy.Strategy
	Baseline *strategy.Strategy

	MinObservations   int
	ImprovementMargin float64
}

// Proposal is a candidate strategy produced by a learning pass. Score and
// BaselineScore are predictions from the same model; the proposal is only
// promoted when Score > BaselineScore.
type Proposal struct {
	// Name is optional; by default it is derived from the pattern and parameters
	Name          string
	Description   string
	Parameters    strategy.Parameters
	Pattern       strategy.Pattern
	Score         float64
	BaselineScore float64
}
