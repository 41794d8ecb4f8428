package retry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/adaptive"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Config configures an adaptive retry executor
type Config struct {
	adaptive.Options

	// Baseline is the never-evicted default strategy
	Baseline Parameters

	// MaxRetriesCeiling is the largest retry count the learner may propose;
	// it also normalizes the efficiency term of the score
	MaxRetriesCeiling int `validate:"gte=1,lte=100"`
	// JitterFraction is the ± randomization applied to delays when jitter is on
	JitterFraction float64 `validate:"gte=0,lt=1"`
	// SuccessTolerance is how far below the best achievable predicted
	// success rate a retry count may fall and still be considered
	SuccessTolerance float64 `validate:"gte=0,lt=1"`
	// SampleWindow bounds the calls remembered per context key
	SampleWindow int `validate:"gte=1"`
}

// DefaultConfig returns the configuration of a retry executor called name
func DefaultConfig(name string) Config {
	return Config{
		Options:           adaptive.DefaultOptions(name),
		Baseline:          DefaultParameters(),
		MaxRetriesCeiling: 5,
		JitterFraction:    0.1,
		SuccessTolerance:  0.01,
		SampleWindow:      200,
	}
}

// Executor retries a wrapped operation and learns, per context, how many
// retries it actually needs
type Executor[In, Out any] struct {
	*adaptive.Executor[In, Out]
}

// New creates an adaptive retry executor around op
func New[In, Out any](op execution.Operation[In, Out], cfg Config) (*Executor[In, Out], error) {
	if op == nil {
		return nil, execution.NewConfigurationError("operation", execution.ErrNoOperation.Error())
	}
	if err := adaptive.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	d := &domain[In, Out]{
		op:         op,
		cfg:        cfg,
		classifier: cfg.Classifier,
		learner:    newLearner(cfg.SampleWindow),
		logger:     cfg.Logger,
	}
	if d.classifier == nil {
		d.classifier = execution.DefaultClassifier
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.logger = d.logger.Named("retry")

	core, err := adaptive.New[In, Out](d, cfg.Options)
	if err != nil {
		return nil, err
	}
	return &Executor[In, Out]{Executor: core}, nil
}

// domain implements adaptive.Domain for retries
type domain[In, Out any] struct {
	op         execution.Operation[In, Out]
	cfg        Config
	classifier execution.Classifier
	learner    *learner
	logger     *zap.Logger
}

func (d *domain[In, Out]) Name() string { return "retry" }

func (d *domain[In, Out]) Baseline() strategy.Parameters {
	return d.cfg.Baseline.Map()
}

func (d *domain[In, Out]) ValidateParameters(sp strategy.Parameters) error {
	p, err := ParseParameters(sp)
	if err != nil {
		return execution.NewConfigurationError("parameters", err.Error())
	}
	return p.Validate(d.cfg.MaxRetriesCeiling)
}

// Run calls the operation until it succeeds, fails permanently or the
// strategy's retries are used up. Back-off sleeps end early when ctx is done.
func (d *domain[In, Out]) Run(ctx context.Context, inv *adaptive.Invocation[In]) adaptive.Outcome[Out] {
	p, err := ParseParameters(inv.Strategy.Parameters)
	if err != nil {
		return adaptive.Outcome[Out]{Err: execution.Permanent(err), Attempts: 1}
	}
	delays := p.BackOff(d.cfg.JitterFraction)
	annotations := map[string]any{ParamMaxRetries: p.MaxRetries}

	var (
		out     Out
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= p.Attempts(); attempt++ {
		out, lastErr = d.op(ctx, inv.Input, inv.Context)
		if lastErr == nil {
			d.observe(inv, attempt, true)
			return adaptive.Outcome[Out]{Value: out, Attempts: attempt, Annotations: annotations}
		}

		errType := d.classifier(lastErr)
		if !errType.Retryable() || attempt == p.Attempts() {
			break
		}

		delay := delays.NextBackOff()
		d.logger.Debug("retrying",
			zap.String("strategy", inv.Strategy.Name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)
		if err := sleep(ctx, delay); err != nil {
			annotations["interrupted"] = true
			return adaptive.Outcome[Out]{
				Err:         fmt.Errorf("retry back-off interrupted after %d attempts: %w (last error: %v)", attempt, err, lastErr),
				Attempts:    attempt,
				Annotations: annotations,
			}
		}
	}

	d.observe(inv, attempt, false)
	return adaptive.Outcome[Out]{Err: lastErr, Attempts: attempt, Annotations: annotations}
}

func (d *domain[In, Out]) observe(inv *adaptive.Invocation[In], attempts int, success bool) {
	if inv.Learning {
		d.learner.observe(inv.ContextKey, attempts, success)
	}
}

// Score weighs observed success against the retries the strategy allows
func (d *domain[In, Out]) Score(s *strategy.Strategy, snap strategy.MetricsSnapshot) float64 {
	p, err := ParseParameters(s.Parameters)
	if err != nil {
		return 0
	}
	return d.score(snap.SuccessRate(), p.MaxRetries)
}

// score is 0.7*success + 0.3*(1 - retries/ceiling)
func (d *domain[In, Out]) score(success float64, retries int) float64 {
	efficiency := 1 - float64(retries)/float64(d.cfg.MaxRetriesCeiling)
	if efficiency < 0 {
		efficiency = 0
	}
	return 0.7*success + 0.3*efficiency
}

// ConsiderNewStrategy proposes the smallest retry count that reaches the
// best achievable predicted success rate, plus one retry of headroom
func (d *domain[In, Out]) ConsiderNewStrategy(view adaptive.LearningView) []adaptive.Proposal {
	dist := d.learner.distribution(view.ContextKey)
	if dist.total < view.MinObservations || dist.successes == 0 {
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

	ceiling := d.cfg.MaxRetriesCeiling
	best := 0.0
	for r := 0; r <= ceiling; r++ {
		if p := dist.predictedSuccess(r); p > best {
			best = p
		}
	}

	chosen := ceiling
	for r := 0; r <= ceiling; r++ {
		if dist.predictedSuccess(r) >= best-d.cfg.SuccessTolerance {
			chosen = r
			break
		}
	}
	if chosen < ceiling {
		chosen++
	}
	if chosen == current.MaxRetries {
		return nil
	}

	score := d.score(dist.predictedSuccess(chosen), chosen)
	currentScore := d.score(dist.predictedSuccess(current.MaxRetries), current.MaxRetries)
	if score <= currentScore*(1+view.ImprovementMargin) {
		return nil
	}

	params := current
	params.MaxRetries = chosen
	return []adaptive.Proposal{{
		Description:   fmt.Sprintf("%d retries for %s (predicted success %.2f)", chosen, view.ContextKey, dist.predictedSuccess(chosen)),
		Parameters:    params.Map(),
		Score:         score,
		BaselineScore: d.score(dist.predictedSuccess(baseline.MaxRetries), baseline.MaxRetries),
	}}
}

// DomainStats exports the attempts-to-success distribution per context
func (d *domain[In, Out]) DomainStats() map[string]any {
	contexts := make(map[string]any)
	for _, key := range d.learner.keys() {
		dist := d.learner.distribution(key)
		succeededAt := make(map[string]int, len(dist.succeededAt))
		for attempts, n := range dist.succeededAt {
			succeededAt[strconv.Itoa(attempts)] = n
		}
		contexts[key] = map[string]any{
			"samples":             dist.total,
			"successes":           dist.successes,
			"attempts_to_success": succeededAt,
		}
	}
	return map[string]any{
		"max_retries_ceiling": d.cfg.MaxRetriesCeiling,
		"contexts":            contexts,
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
