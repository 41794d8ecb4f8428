package adaptive

import (
	"context"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
	"github.com/GriffinCanCode/adaptive/internal/infrastructure/resilience"
)

// selection is the outcome of SelectStrategy for one call
type selection struct {
	strategy *strategy.Strategy
	// done reports the outcome to the strategy's breaker
	done func(success bool)
	// trial marks a VALIDATE-mode trial execution
	trial bool
	// bypassed is set when the preferred strategy's breaker was open
	bypassed *execution.CircuitOpenError
}

// SelectStrategy returns the strategy Execute would use for ec, without
// reserving breaker or validation capacity.
func (e *Executor[In, Out]) SelectStrategy(ec execution.Context) *strategy.Strategy {
	key := e.opts.KeyExtractor(ec)
	mode := e.Mode()
	if !mode.deviates() {
		return e.store.Baseline()
	}

	ordered := e.rank(e.store.Matching(key), key)
	if mode == ModeValidate {
		for _, r := range ordered {
			s := r.strategy
			if !s.Validated() && s.Trials() < e.opts.ValidationWindow {
				return s
			}
		}
	}
	if best := e.bestValidated(ordered, key); best != nil && e.breakerFor(best).State() != resilience.StateOpen {
		return best
	}
	return e.store.Baseline()
}

// selectStrategy picks the strategy for one call and reserves breaker and
// validation capacity for it
func (e *Executor[In, Out]) selectStrategy(mode LearningMode, key string) selection {
	if !mode.deviates() {
		return e.baselineSelection(nil)
	}

	ordered := e.rank(e.store.Matching(key), key)

	// Candidates under validation get their bounded share first
	if mode == ModeValidate {
		if sel, ok := e.trialSelection(ordered, key); ok {
			return sel
		}
	}

	if best := e.bestValidated(ordered, key); best != nil {
		done, err := e.breakerFor(best).Allow()
		if err == nil {
			return selection{strategy: best, done: done}
		}
		bypass := &execution.CircuitOpenError{Strategy: best.Name}
		e.logger.Debug("falling back to baseline", zap.String("context_key", key), zap.Error(bypass))
		return e.baselineSelection(bypass)
	}
	return e.baselineSelection(nil)
}

// bestValidated returns the top validated match, or nil when none beats the
// baseline's score for key
func (e *Executor[In, Out]) bestValidated(ordered []ranked, key string) *strategy.Strategy {
	for _, r := range ordered {
		if !r.strategy.Validated() {
			continue
		}
		if e.effectiveScore(e.store.Baseline(), key) > r.score {
			return nil
		}
		return r.strategy
	}
	return nil
}

// trialSelection hands out one unit of validation budget
func (e *Executor[In, Out]) trialSelection(ordered []ranked, key string) (selection, bool) {
	for _, r := range ordered {
		s := r.strategy
		if s.Validated() || !s.ReserveTrial(e.opts.ValidationWindow) {
			continue
		}
		done, err := e.breakerFor(s).Allow()
		if err != nil {
			// A candidate whose breaker opened during its trial is not kept
			e.settle(context.Background(), s, key, false, 0, "circuit opened during validation")
			continue
		}
		return selection{strategy: s, done: done, trial: true}, true
	}
	return selection{}, false
}

// baselineSelection serves the call from the baseline. The baseline's
// breaker is informational: it never blocks the call.
func (e *Executor[In, Out]) baselineSelection(bypassed *execution.CircuitOpenError) selection {
	baseline := e.store.Baseline()
	done, err := e.breakerFor(baseline).Allow()
	if err != nil {
		done = func(bool) {}
	}
	return selection{strategy: baseline, done: done, bypassed: bypassed}
}
