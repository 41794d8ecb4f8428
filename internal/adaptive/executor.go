package adaptive

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/adaptive/internal/shared/utils"
)

// Executor is the domain-independent core: it selects a strategy for each
// call, runs the domain under it, records the outcome and lets the domain
// propose better strategies.
type Executor[In, Out any] struct {
	domain Domain[In, Out]
	opts   Options
	mode   atomic.Int32

	store    *strategy.Store
	breakers sync.Map // strategy name -> *resilience.Breaker
	rejected sync.Map // names discarded after validation
	reported sync.Map // proposals already reported without being inserted

	learning sync.Mutex
	limiter  *rate.Limiter
	ids      *utils.StrategyIdentifier
	logger   *zap.Logger
}

// New builds an executor around domain. Invalid options or baseline
// parameters return a *execution.ConfigurationError.
func New[In, Out any](domain Domain[In, Out], opts Options) (*Executor[In, Out], error) {
	if domain == nil {
		return nil, execution.NewConfigurationError("domain", "is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	params := domain.Baseline()
	if err := domain.ValidateParameters(params); err != nil {
		var cfgErr *execution.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, cfgErr
		}
		return nil, execution.NewConfigurationError("baseline", err.Error())
	}

	e := &Executor[In, Out]{
		domain: domain,
		opts:   opts,
		ids:    utils.NewStrategyIdentifier(nil),
		logger: opts.Logger.With(zap.String("executor", opts.Name)),
	}
	e.mode.Store(int32(opts.Mode))
	if opts.LearnInterval > 0 {
		e.limiter = rate.NewLimiter(rate.Every(opts.LearnInterval), 1)
	}

	baseline := strategy.NewBaseline(fmt.Sprintf("%s baseline", domain.Name()), params)
	store, err := strategy.NewStore(baseline, opts.MaxStrategies, func(s *strategy.Strategy) float64 {
		return e.effectiveScore(s, "")
	})
	if err != nil {
		return nil, execution.NewConfigurationError("MaxStrategies", err.Error())
	}
	e.store = store

	e.restore()
	return e, nil
}

// Name returns the executor name
func (e *Executor[In, Out]) Name() string {
	return e.opts.Name
}

// Mode returns the current learning mode
func (e *Executor[In, Out]) Mode() LearningMode {
	return LearningMode(e.mode.Load())
}

// SetMode switches the learning mode and returns the previous one.
// Strategies already learned are kept.
func (e *Executor[In, Out]) SetMode(mode LearningMode) (LearningMode, error) {
	if !mode.Valid() {
		return e.Mode(), execution.NewConfigurationError("mode", fmt.Sprintf("unknown learning mode %d", int(mode)))
	}
	prev := LearningMode(e.mode.Swap(int32(mode)))
	if prev != mode {
		e.logger.Info("learning mode changed", zap.Stringer("from", prev), zap.Stringer("to", mode))
	}
	return prev, nil
}

// Store exposes the strategy store for inspection
func (e *Executor[In, Out]) Store() *strategy.Store {
	return e.store
}

// Execute runs input under the strategy selected for ec. Operational failures
// are reported in the result, never as a Go error or panic.
func (e *Executor[In, Out]) Execute(ctx context.Context, input In, ec execution.Context) execution.Result[Out] {
	start := time.Now()
	mode := e.Mode()
	key := e.opts.KeyExtractor(ec)
	sel := e.selectStrategy(mode, key)

	ctx, span := e.opts.Tracer.StartExecution(ctx, e.opts.Name, sel.strategy.Name, key, ec.CorrelationID())
	if sel.bypassed != nil {
		span.AddEvent("strategy_bypassed", attribute.String("reason", sel.bypassed.Error()))
	}

	out := e.run(ctx, &Invocation[In]{
		Input:      input,
		Context:    ec,
		ContextKey: key,
		Strategy:   sel.strategy,
		Learning:   mode.learns(),
	})

	latency := time.Since(start)
	attempts := out.Attempts
	if attempts < 1 {
		attempts = 1
	}
	success := out.Err == nil
	errType := execution.ErrorTypeNone
	if !success {
		errType = e.opts.Classifier(out.Err)
	}

	sel.strategy.Metrics.Record(key, success, latency, attempts)
	sel.done(success)
	span.Finish(attempts, string(errType), out.Err)

	e.emit(events.Event{
		Type:          events.TypeExecution,
		StrategyName:  sel.strategy.Name,
		ContextKey:    key,
		CorrelationID: ec.CorrelationID(),
		Success:       success,
		Latency:       latency,
		Attempts:      attempts,
		ErrorType:     errType,
	})

	if sel.trial {
		e.settleTrial(ctx, sel.strategy, key)
	}
	e.learn(ctx, mode, key)

	return execution.Result[Out]{
		Value:         out.Value,
		StrategyUsed:  sel.strategy.Name,
		Attempts:      attempts,
		Success:       success,
		Err:           out.Err,
		ErrorType:     errType,
		Latency:       latency,
		ContextKey:    key,
		CorrelationID: ec.CorrelationID(),
		Annotations:   out.Annotations,
	}
}

// run calls the domain, turning panics into permanent failures
func (e *Executor[In, Out]) run(ctx context.Context, inv *Invocation[In]) (out Outcome[Out]) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("operation panicked",
				zap.String("strategy", inv.Strategy.Name),
				zap.Any("panic", r),
			)
			out = Outcome[Out]{
				Err:      execution.Permanent(fmt.Errorf("%w: %v", execution.ErrOperationPanicked, r)),
				Attempts: 1,
			}
		}
	}()
	return e.domain.Run(ctx, inv)
}

// effectiveScore is the prior score until a strategy has MinObservations
// executions, then the domain score of its observed metrics. Metrics for
// contextKey are preferred when there are enough of them.
func (e *Executor[In, Out]) effectiveScore(s *strategy.Strategy, contextKey string) float64 {
	minObs := uint64(e.opts.MinObservations)
	snap := s.Metrics.ForContext(contextKey)
	if snap.Executions < minObs {
		snap = s.Metrics.Snapshot()
	}
	if snap.Executions < minObs && !s.IsBaseline() {
		return s.PriorScore
	}
	return e.domain.Score(s, snap)
}

func (e *Executor[In, Out]) breakerFor(s *strategy.Strategy) *resilience.Breaker {
	if b, ok := e.breakers.Load(s.Name); ok {
		return b.(*resilience.Breaker)
	}
	b, _ := e.breakers.LoadOrStore(s.Name, resilience.New(s.Name, resilience.Settings{
		Window:      e.opts.BreakerWindow,
		MinRequests: e.opts.BreakerMinRequests,
		Threshold:   e.opts.CircuitBreakerThreshold,
		Cooldown:    e.opts.BreakerCooldown,
		Now:         e.opts.Clock,
		OnStateChange: func(name string, from, to resilience.State) {
			e.emit(events.Event{
				Type:         events.TypeCircuitStateChanged,
				StrategyName: name,
				From:         from.String(),
				To:           to.String(),
			})
		},
	}))
	return b.(*resilience.Breaker)
}

// Persist saves every learned strategy with its current metrics. Useful on
// shutdown; promotions are saved as they happen.
func (e *Executor[In, Out]) Persist(ctx context.Context) error {
	var errs []error
	for _, s := range e.store.All() {
		if s.IsBaseline() || !s.Validated() {
			continue
		}
		if err := e.save(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// restore loads persisted strategies. Failures are logged, never fatal.
func (e *Executor[In, Out]) restore() {
	ctx, cancel := e.persistContext(context.Background())
	defer cancel()

	records, err := e.opts.Persistence.Load(ctx, e.opts.OwnerID)
	if err != nil {
		e.logger.Warn("failed to load persisted strategies", zap.String("owner", e.opts.OwnerID), zap.Error(err))
		return
	}

	loaded := 0
	for _, rec := range records {
		s, err := strategy.FromRecord(rec)
		if err != nil {
			e.logger.Warn("skipping malformed strategy record", zap.String("strategy", rec.Name), zap.Error(err))
			continue
		}
		if s.IsBaseline() {
			continue
		}
		if err := e.domain.ValidateParameters(s.Parameters); err != nil {
			e.logger.Warn("skipping strategy with invalid parameters", zap.String("strategy", rec.Name), zap.Error(err))
			continue
		}
		if inserted, _, _ := e.store.InsertIfAbsent(s); inserted {
			loaded++
		}
	}
	if loaded > 0 {
		e.logger.Info("restored persisted strategies", zap.Int("count", loaded))
	}
}

func (e *Executor[In, Out]) save(ctx context.Context, s *strategy.Strategy) error {
	ctx, cancel := e.persistContext(ctx)
	defer cancel()
	return e.opts.Persistence.Save(ctx, e.opts.OwnerID, s.Record())
}

// persist saves s, logging failures
func (e *Executor[In, Out]) persist(ctx context.Context, s *strategy.Strategy) {
	if err := e.save(ctx, s); err != nil {
		e.logger.Warn("failed to persist strategy", zap.String("strategy", s.Name), zap.Error(err))
	}
}

// persistContext detaches from the caller's cancellation and applies PersistTimeout
func (e *Executor[In, Out]) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if e.opts.PersistTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.PersistTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Executor[In, Out]) emit(ev events.Event) {
	ev.Executor = e.opts.Name
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	e.opts.Sink.Emit(ev)
}

// ranked is a matching strategy with its effective score for one context
type ranked struct {
	strategy *strategy.Strategy
	score    float64
}

// rank orders matches by effective score, then pattern specificity, then name
func (e *Executor[In, Out]) rank(matches []*strategy.Strategy, key string) []ranked {
	out := make([]ranked, 0, len(matches))
	for _, s := range matches {
		out = append(out, ranked{strategy: s, score: e.effectiveScore(s, key)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if sa, sb := a.strategy.Pattern.Specificity(), b.strategy.Pattern.Specificity(); sa != sb {
			return sa > sb
		}
		return a.strategy.Name < b.strategy.Name
	})
	return out
}
