/*
Package adaptive is the domain-independent core of the adaptive executors.

# Overview

An Executor wraps a Domain (retry, fallback, cache, timeout) and, for every
call, picks a strategy for the call's context, runs the domain under it,
records the outcome and lets the domain propose better strategies. The
baseline strategy is always present and is what every call falls back to.

# Learning Modes

  - DISABLED: baseline only, learners are not fed
  - OBSERVE:  baseline only, proposals are reported as candidate events
  - VALIDATE: proposals get ValidationWindow trial calls, then are kept or dropped
  - ACTIVE:   proposals that beat the baseline serve traffic immediately

# Selection

Learned strategies carry a context pattern. For a context key the matching
strategies are ranked by effective score (the score that justified them until
they have MinObservations calls of their own), then by pattern specificity,
then by name. A validated strategy only serves when it still outscores the
baseline for that context and its circuit breaker admits the call.

# Usage

	opts := adaptive.DefaultOptions("payments")
	opts.Mode = adaptive.ModeActive
	opts.Sink = events.NewBus(logging.NewEventSink(logger), metrics)

	exec, err := adaptive.New[Request, Response](domain, opts)
	if err != nil {
		return err
	}
	result := exec.Execute(ctx, req, execution.NewContext(map[string]string{
		"environment": "production",
	}))
	if !result.Success {
		// result.ErrorType tells why
	}
*/
package adaptive
