/*
Package resilience provides the circuit breaker that guards learned strategies.

# Overview

Every strategy an adaptive executor selects gets its own Breaker. When the
success rate over the trailing window drops below the threshold, the breaker
opens and the executor silently falls back to its baseline until the cooldown
elapses.

# Features

- Three-state circuit breaker (Closed, Open, Half-Open)
- Trailing-window success rate with a minimum sample count
- Exactly one trial request while half-open
- Generation checks, so late outcomes from a previous state are ignored
- State change callbacks for monitoring

# Usage

	breaker := resilience.New("retry/learned", resilience.Settings{
		Window:      20,
		MinRequests: 5,
		Threshold:   0.5,
		Cooldown:    30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Info("breaker", zap.String("name", name), zap.Stringer("to", to))
		},
	})

	done, err := breaker.Allow()
	if err != nil {
		// use the baseline instead
	}
	result, err := call()
	done(err == nil)

# Pattern

	Closed --[window rate < threshold]-> Open --[cooldown]-> Half-Open --[success]-> Closed
	                                                           |
	                                                      [failure]
	                                                           |
	                                                           v
	                                                         Open
*/
package resilience
