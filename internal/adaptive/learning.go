package adaptive

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/resilience"
)

// learn runs one learning pass for key. Passes never overlap; a call that
// finds one in progress, or arrives before LearnInterval elapsed, skips.
func (e *Executor[In, Out]) learn(ctx context.Context, mode LearningMode, key string) {
	if !mode.learns() {
		return
	}
	if !e.learning.TryLock() {
		return
	}
	defer e.learning.Unlock()

	if e.limiter != nil && !e.limiter.Allow() {
		return
	}

	proposals := e.domain.ConsiderNewStrategy(LearningView{
		ContextKey:        key,
		Current:           e.current(key),
		Baseline:          e.store.Baseline(),
		MinObservations:   e.opts.MinObservations,
		ImprovementMargin: e.opts.ImprovementMargin,
	})
	for _, p := range proposals {
		e.consider(ctx, mode, key, p)
	}
}

// current is the strategy a proposal for key has to beat: a candidate still
// under validation, else the best validated match, else the baseline
func (e *Executor[In, Out]) current(key string) *strategy.Strategy {
	ordered := e.rank(e.store.Matching(key), key)
	for _, r := range ordered {
		if !r.strategy.Validated() && r.strategy.Trials() < e.opts.ValidationWindow {
			return r.strategy
		}
	}
	if best := e.bestValidated(ordered, key); best != nil {
		return best
	}
	return e.store.Baseline()
}

// consider applies one proposal according to mode
func (e *Executor[In, Out]) consider(ctx context.Context, mode LearningMode, key string, p Proposal) {
	if err := e.domain.ValidateParameters(p.Parameters); err != nil {
		e.logger.Warn("ignoring proposal with invalid parameters", zap.String("context_key", key), zap.Error(err))
		return
	}
	if p.Pattern.IsAlways() {
		p.Pattern = strategy.ForContextKey(key)
	}

	name := p.Name
	if name == "" {
		name = e.ids.Name(e.opts.Name, p.Pattern.String(), p.Parameters.Canonical())
	}
	if _, rejected := e.rejected.Load(name); rejected {
		return
	}
	if _, exists := e.store.Get(name); exists {
		return
	}

	delta := p.Score - p.BaselineScore
	if delta <= 0 {
		if _, seen := e.reported.LoadOrStore("discarded:"+name, struct{}{}); seen {
			return
		}
		e.emit(events.Event{
			Type:         events.TypeStrategyDiscarded,
			StrategyName: name,
			ContextKey:   key,
			Parameters:   p.Parameters.Clone(),
			ScoreDelta:   delta,
			Reason:       "does not beat baseline",
		})
		return
	}

	if mode == ModeObserve {
		if _, seen := e.reported.LoadOrStore(name, struct{}{}); !seen {
			e.emit(events.Event{
				Type:         events.TypeStrategyCandidate,
				StrategyName: name,
				ContextKey:   key,
				Parameters:   p.Parameters.Clone(),
				ScoreDelta:   delta,
				Reason:       "observe only",
			})
		}
		return
	}

	s := strategy.New(name, p.Description, p.Parameters, p.Pattern)
	s.PriorScore = p.Score
	if mode == ModeActive {
		s.MarkValidated()
		s.Decide()
	}

	inserted, evicted, err := e.store.InsertIfAbsent(s)
	if err != nil {
		e.logger.Error("failed to insert strategy", zap.String("strategy", name), zap.Error(err))
		return
	}
	if evicted != nil {
		e.breakers.Delete(evicted.Name)
		e.emit(events.Event{
			Type:         events.TypeStrategyEvicted,
			StrategyName: evicted.Name,
			ContextKey:   key,
			Parameters:   evicted.Parameters.Clone(),
			Reason:       "store full",
		})
	}
	if !inserted {
		return
	}

	if mode == ModeActive {
		e.logger.Info("strategy promoted",
			zap.String("strategy", name),
			zap.String("pattern", p.Pattern.String()),
			zap.Float64("score_delta", delta),
		)
		e.emit(events.Event{
			Type:         events.TypeStrategyPromoted,
			StrategyName: name,
			ContextKey:   key,
			Parameters:   p.Parameters.Clone(),
			ScoreDelta:   delta,
		})
		e.persist(ctx, s)
		return
	}

	e.emit(events.Event{
		Type:         events.TypeStrategyCandidate,
		StrategyName: name,
		ContextKey:   key,
		Parameters:   p.Parameters.Clone(),
		ScoreDelta:   delta,
		Reason:       "validating",
	})
}

// settleTrial decides a validation candidate once its window is complete.
// An open breaker ends the window early.
func (e *Executor[In, Out]) settleTrial(ctx context.Context, s *strategy.Strategy, key string) {
	if s.Validated() {
		return
	}
	if e.breakerFor(s).State() == resilience.StateOpen {
		e.settle(ctx, s, key, false, 0, "circuit opened during validation")
		return
	}

	window := e.opts.ValidationWindow
	snap := s.Metrics.Snapshot()
	if s.Trials() < window || snap.Executions < uint64(window) {
		return
	}

	delta := e.domain.Score(s, snap) - e.effectiveScore(e.store.Baseline(), key)
	reason := "beat baseline"
	if delta <= 0 {
		reason = "did not beat baseline"
	}
	e.settle(ctx, s, key, delta > 0, delta, reason)
}

// settle keeps or drops a validation candidate, at most once per strategy
func (e *Executor[In, Out]) settle(ctx context.Context, s *strategy.Strategy, key string, keep bool, delta float64, reason string) {
	if !s.Decide() {
		return
	}

	if keep {
		s.MarkValidated()
		e.logger.Info("strategy validated",
			zap.String("strategy", s.Name),
			zap.String("context_key", key),
			zap.Float64("score_delta", delta),
		)
		e.emit(events.Event{
			Type:         events.TypeStrategyPromoted,
			StrategyName: s.Name,
			ContextKey:   key,
			Parameters:   s.Parameters.Clone(),
			ScoreDelta:   delta,
			Reason:       reason,
		})
		e.persist(ctx, s)
		return
	}

	if err := e.store.Remove(s.Name); err != nil {
		e.logger.Debug("discarded strategy already gone", zap.String("strategy", s.Name), zap.Error(err))
	}
	e.rejected.Store(s.Name, struct{}{})
	e.breakers.Delete(s.Name)
	e.logger.Info("strategy discarded",
		zap.String("strategy", s.Name),
		zap.String("context_key", key),
		zap.String("reason", reason),
	)
	e.emit(events.Event{
		Type:         events.TypeStrategyDiscarded,
		StrategyName: s.Name,
		ContextKey:   key,
		Parameters:   s.Parameters.Clone(),
		ScoreDelta:   delta,
		Reason:       reason,
	})
}
