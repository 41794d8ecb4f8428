// Package timeout provides the adaptive timeout executor.
//
// Strategies carry timeout_ms, buffer_factor and percentile_target. Each call
// runs the operation under context.WithTimeout; when the timer fires first
// the operation's context is canceled and the call fails with
// *execution.TimeoutError, which callers can tell apart from a failure of
// the operation itself.
//
// Learning:
//
// The executor keeps a rolling window of latencies per context key. A
// learning pass derives
//
//	timeout = buffer_factor * quantile(latencies, percentile_target)
//
// clamped to [MinTimeout, MaxTimeout], and proposes it when
//
//	0.6*predictedSuccess + 0.4*min(1, quantile/timeout)
//
// beats the current timeout by ImprovementMargin. Timed out calls count as
// failures for every candidate timeout.
package timeout
