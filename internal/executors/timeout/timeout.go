package timeout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Config configures an adaptive timeout executor
type Config struct {
	adaptive.Options

	// Baseline is the never-evicted default strategy
	Baseline Parameters

	// MinTimeout and MaxTimeout clamp every timeout the learner derives
	MinTimeout time.Duration `validate:"gt=0"`
	MaxTimeout time.Duration `validate:"gtfield=MinTimeout"`
	// SampleWindow bounds the latencies remembered per context key
	SampleWindow int `validate:"gte=1"`
}

// DefaultConfig returns the configuration of a timeout executor called name
func DefaultConfig(name string) Config {
	return Config{
		Options:      adaptive.DefaultOptions(name),
		Baseline:     DefaultParameters(),
		MinTimeout:   10 * time.Millisecond,
		MaxTimeout:   5 * time.Minute,
		SampleWindow: 200,
	}
}

// Executor bounds a wrapped operation by a timeout it learns, per context,
// from the operation's observed latencies
type Executor[In, Out any] struct {
	*adaptive.Executor[In, Out]
}

// New creates an adaptive timeout executor around op. op must return once
// its context is done; otherwise it keeps running after the timeout fires.
func New[In, Out any](op execution.Operation[In, Out], cfg Config) (*Executor[In, Out], error) {
	if op == nil {
		return nil, execution.NewConfigurationError("operation", execution.ErrNoOperation.Error())
	}
	if err := adaptive.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	d := &domain[In, Out]{
		op:      op,
		cfg:     cfg,
		learner: newLearner(cfg.SampleWindow),
		logger:  cfg.Logger,
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.logger = d.logger.Named("timeout")

	core, err := adaptive.New[In, Out](d, cfg.Options)
	if err != nil {
		return nil, err
	}
	return &Executor[In, Out]{Executor: core}, nil
}

// domain implements adaptive.Domain for timeouts
type domain[In, Out any] struct {
	op      execution.Operation[In, Out]
	cfg     Config
	learner *learner
	logger  *zap.Logger
}

func (d *domain[In, Out]) Name() string { return "timeout" }

func (d *domain[In, Out]) Baseline() strategy.Parameters {
	return d.cfg.Baseline.Map()
}

func (d *domain[In, Out]) ValidateParameters(sp strategy.Parameters) error {
	p, err := ParseParameters(sp)
	if err != nil {
		return execution.NewConfigurationError("parameters", err.Error())
	}
	return p.Validate(d.cfg.MinTimeout, d.cfg.MaxTimeout)
}

type result[Out any] struct {
	out Out
	err error
}

// Run races the operation against the strategy's timeout. When the timer
// wins the operation's context is canceled and a *execution.TimeoutError is
// returned; when the caller's context ends first the cancellation is
// returned instead.
func (d *domain[In, Out]) Run(ctx context.Context, inv *adaptive.Invocation[In]) adaptive.Outcome[Out] {
	p, err := ParseParameters(inv.Strategy.Parameters)
	if err != nil {
		return adaptive.Outcome[Out]{Err: execution.Permanent(err), Attempts: 1}
	}
	annotations := map[string]any{ParamTimeoutMs: int(p.Timeout.Milliseconds())}

	opCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	done := make(chan result[Out], 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("operation panicked",
					zap.String("strategy", inv.Strategy.Name),
					zap.Any("panic", r),
				)
				done <- result[Out]{err: execution.Permanent(fmt.Errorf("%w: %v", execution.ErrOperationPanicked, r))}
			}
		}()
		out, err := d.op(opCtx, inv.Input, inv.Context)
		done <- result[Out]{out: out, err: err}
	}()

	select {
	case r := <-done:
		// An operation that gave up because its context ended is reported
		// like the timer or cancellation that ended it
		if r.err == nil || opCtx.Err() == nil {
			d.observe(inv, time.Since(start), false)
			return adaptive.Outcome[Out]{Value: r.out, Err: r.err, Attempts: 1, Annotations: annotations}
		}
	case <-opCtx.Done():
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		annotations["canceled"] = true
		return adaptive.Outcome[Out]{
			Err:         fmt.Errorf("operation abandoned after %s: %w", time.Since(start).Round(time.Millisecond), ctxErr),
			Attempts:    1,
			Annotations: annotations,
		}
	}
	d.observe(inv, p.Timeout, true)
	annotations["timed_out"] = true
	return adaptive.Outcome[Out]{
		Err:         &execution.TimeoutError{Timeout: p.Timeout},
		Attempts:    1,
		Annotations: annotations,
	}
}

func (d *domain[In, Out]) observe(inv *adaptive.Invocation[In], latency time.Duration, timedOut bool) {
	if inv.Learning {
		d.learner.observe(inv.ContextKey, latency, timedOut)
	}
}

// Score weighs observed success against how tight the timeout is around the
// strategy's average latency
func (d *domain[In, Out]) Score(s *strategy.Strategy, snap strategy.MetricsSnapshot) float64 {
	p, err := ParseParameters(s.Parameters)
	if err != nil {
		return 0
	}
	return score(snap.SuccessRate(), snap.AvgLatency(), p.Timeout)
}

// score is 0.6*success + 0.4*min(1, reference/timeout)
func score(success float64, reference, timeout time.Duration) float64 {
	headroom := 0.0
	if timeout > 0 {
		headroom = min(1, float64(reference)/float64(timeout))
	}
	return 0.6*success + 0.4*headroom
}

// derive turns a latency quantile into a timeout within the configured bounds
func (d *domain[In, Out]) derive(target time.Duration, buffer float64) time.Duration {
	t := time.Duration(buffer * float64(target)).Round(time.Millisecond)
	return min(max(t, d.cfg.MinTimeout), d.cfg.MaxTimeout)
}

// ConsiderNewStrategy proposes buffer_factor times the target latency
// percentile of the context when that predicts a better score than the
// current timeout. Candidates are scored against the derived timeout, so a
// timeout below it earns no headroom for being tight.
func (d *domain[In, Out]) ConsiderNewStrategy(view adaptive.LearningView) []adaptive.Proposal {
	v := d.learner.latencies(view.ContextKey)
	if v.total < view.MinObservations {
		return nil
	}

	current, err := ParseParameters(view.Current.Parameters)
	if err != nil {
		return nil
	}
	baseline, err := ParseParameters(view.Baseline.Parameters)
	if err != nil {
		return nil
	}

	target := v.quantile(current.PercentileTarget)
	chosen := d.derive(target, current.BufferFactor)
	if chosen == current.Timeout {
		return nil
	}

	predicted := score(v.predictedSuccess(chosen), chosen, chosen)
	if predicted <= score(v.predictedSuccess(current.Timeout), chosen, current.Timeout)*(1+view.ImprovementMargin) {
		return nil
	}

	params := current
	params.Timeout = chosen
	return []adaptive.Proposal{{
		Description: fmt.Sprintf("%s timeout for %s (p%.0f %s)",
			chosen, view.ContextKey, current.PercentileTarget*100, target.Round(time.Microsecond)),
		Parameters:    params.Map(),
		Score:         predicted,
		BaselineScore: score(v.predictedSuccess(baseline.Timeout), chosen, baseline.Timeout),
	}}
}

// DomainStats exports the latency window summary per context
func (d *domain[In, Out]) DomainStats() map[string]any {
	contexts := make(map[string]any)
	for _, key := range d.learner.keys() {
		v := d.learner.latencies(key)
		contexts[key] = map[string]any{
			"samples":  v.total,
			"timeouts": v.timeouts,
			"p50_ms":   float64(v.quantile(0.5)) / float64(time.Millisecond),
			"p95_ms":   float64(v.quantile(0.95)) / float64(time.Millisecond),
			"p99_ms":   float64(v.quantile(0.99)) / float64(time.Millisecond),
		}
	}
	return map[string]any{
		"min_timeout": d.cfg.MinTimeout.String(),
		"max_timeout": d.cfg.MaxTimeout.String(),
		"contexts":    contexts,
	}
}
