package fallback

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// ParamOrder is the parameter holding the service order
const ParamOrder = "order"

// Service is one named entry of a fallback chain
type Service[In, Out any] struct {
	Name string
	Op   execution.Operation[In, Out]
}

// Config configures an adaptive fallback chain
type Config struct {
	adaptive.Options
}

// DefaultConfig returns the configuration of a fallback chain called name
func DefaultConfig(name string) Config {
	return Config{Options: adaptive.DefaultOptions(name)}
}

// Executor tries services in its strategy's order and learns, per context,
// which order serves best
type Executor[In, Out any] struct {
	*adaptive.Executor[In, Out]
}

// New creates a fallback chain. services are registered primary first; that
// order is the baseline.
func New[In, Out any](services []Service[In, Out], cfg Config) (*Executor[In, Out], error) {
	if len(services) == 0 {
		return nil, execution.NewConfigurationError("services", "at least one service is required")
	}
	if err := adaptive.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	d := &domain[In, Out]{
		ops:     make(map[string]execution.Operation[In, Out], len(services)),
		tracker: newTracker(),
		logger:  cfg.Logger,
	}
	for i, svc := range services {
		name := strings.TrimSpace(svc.Name)
		switch {
		case name == "":
			return nil, execution.NewConfigurationError(fmt.Sprintf("services[%d]", i), "name is required")
		case svc.Op == nil:
			return nil, execution.NewConfigurationError(fmt.Sprintf("services[%d]", i), execution.ErrNoOperation.Error())
		}
		if _, dup := d.ops[name]; dup {
			return nil, execution.NewConfigurationError(fmt.Sprintf("services[%d]", i), fmt.Sprintf("duplicate service %q", name))
		}
		d.ops[name] = svc.Op
		d.names = append(d.names, name)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.logger = d.logger.Named("fallback")

	core, err := adaptive.New[In, Out](d, cfg.Options)
	if err != nil {
		return nil, err
	}
	return &Executor[In, Out]{Executor: core}, nil
}

// domain implements adaptive.Domain for fallback chains
type domain[In, Out any] struct {
	names   []string
	ops     map[string]execution.Operation[In, Out]
	tracker *tracker
	logger  *zap.Logger
}

func (d *domain[In, Out]) Name() string { return "fallback" }

func (d *domain[In, Out]) Baseline() strategy.Parameters {
	return strategy.Parameters{ParamOrder: slices.Clone(d.names)}
}

// ValidateParameters accepts any permutation of the registered services
func (d *domain[In, Out]) ValidateParameters(sp strategy.Parameters) error {
	order, err := sp.Strings(ParamOrder)
	if err != nil {
		return execution.NewConfigurationError(ParamOrder, err.Error())
	}
	if len(order) != len(d.names) {
		return execution.NewConfigurationError(ParamOrder, fmt.Sprintf("expected %d services, got %d", len(d.names), len(order)))
	}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if _, ok := d.ops[name]; !ok {
			return execution.NewConfigurationError(ParamOrder, fmt.Sprintf("unknown service %q", name))
		}
		if seen[name] {
			return execution.NewConfigurationError(ParamOrder, fmt.Sprintf("duplicate service %q", name))
		}
		seen[name] = true
	}
	return nil
}

// Run tries the services strictly in order and stops at the first success
func (d *domain[In, Out]) Run(ctx context.Context, inv *adaptive.Invocation[In]) adaptive.Outcome[Out] {
	order, err := inv.Strategy.Parameters.Strings(ParamOrder)
	if err != nil {
		return adaptive.Outcome[Out]{Err: execution.Permanent(err), Attempts: 1}
	}
	if inv.Learning {
		d.tracker.recordCall(inv.ContextKey)
	}

	failures := make([]execution.ServiceFailure, 0, len(order))
	for i, name := range order {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return adaptive.Outcome[Out]{
				Err:         fmt.Errorf("fallback chain stopped before %q: %w", name, ctxErr),
				Attempts:    max(i, 1),
				Annotations: map[string]any{"failures": len(failures)},
			}
		}

		start := time.Now()
		out, err := d.ops[name](ctx, inv.Input, inv.Context)
		if inv.Learning {
			d.tracker.recordAttempt(inv.ContextKey, name, err == nil, time.Since(start))
		}
		if err == nil {
			return adaptive.Outcome[Out]{
				Value:    out,
				Attempts: i + 1,
				Annotations: map[string]any{
					"service":  name,
					"failures": len(failures),
				},
			}
		}

		d.logger.Debug("service failed, trying next",
			zap.String("strategy", inv.Strategy.Name),
			zap.String("service", name),
			zap.Error(err),
		)
		failures = append(failures, execution.ServiceFailure{Service: name, Err: err})
	}

	return adaptive.Outcome[Out]{
		Err:         &execution.AllFallbacksExhaustedError{Failures: failures},
		Attempts:    len(order),
		Annotations: map[string]any{"failures": len(failures)},
	}
}

// Score weighs observed chain success against the services tried per call
func (d *domain[In, Out]) Score(_ *strategy.Strategy, snap strategy.MetricsSnapshot) float64 {
	attempts := snap.AvgAttempts()
	if attempts < 1 {
		attempts = 1
	}
	return 0.7*snap.SuccessRate() + 0.3/attempts
}

// ConsiderNewStrategy re-sorts the services by score and proposes the new
// order when its predicted chain score beats the current order's
func (d *domain[In, Out]) ConsiderNewStrategy(view adaptive.LearningView) []adaptive.Proposal {
	calls, counters := d.tracker.snapshot(view.ContextKey)
	if calls < uint64(view.MinObservations) {
		return nil
	}

	current, err := view.Current.Parameters.Strings(ParamOrder)
	if err != nil {
		return nil
	}
	baseline, err := view.Baseline.Parameters.Strings(ParamOrder)
	if err != nil {
		return nil
	}

	ranked := rankServices(current, serviceScores(current, counters))
	if slices.Equal(ranked, current) {
		return nil
	}

	score := chainScore(ranked, counters)
	if score <= chainScore(current, counters)*(1+view.ImprovementMargin) {
		return nil
	}

	return []adaptive.Proposal{{
		Description:   fmt.Sprintf("order %s for %s", strings.Join(ranked, " > "), view.ContextKey),
		Parameters:    strategy.Parameters{ParamOrder: ranked},
		Score:         score,
		BaselineScore: chainScore(baseline, counters),
	}}
}

// DomainStats exports the per-service counters of every context
func (d *domain[In, Out]) DomainStats() map[string]any {
	contexts := make(map[string]any)
	for _, key := range d.tracker.keys() {
		calls, counters := d.tracker.snapshot(key)
		scores := serviceScores(d.names, counters)

		services := make(map[string]ServiceStats, len(d.names))
		for _, name := range d.names {
			c := counters[name]
			services[name] = ServiceStats{
				Attempts:    c.attempts,
				Successes:   c.successes,
				SuccessRate: c.successRate(),
				AvgLatency:  c.avgLatency(),
				Score:       scores[name],
			}
		}
		contexts[key] = map[string]any{
			"calls":    calls,
			"services": services,
		}
	}
	return map[string]any{
		"services": slices.Clone(d.names),
		"contexts": contexts,
	}
}
