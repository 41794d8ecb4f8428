// Package retry provides the adaptive retry executor.
//
// Strategies carry max_retries, initial_delay, backoff_factor, max_delay and
// jitter. Delays follow min(initial*factor^n, max_delay), randomized by
// ±JitterFraction when jitter is on. Permanent errors stop immediately and
// back-off sleeps end when the caller's context is done.
//
// Learning:
//
// For every context key the executor remembers on which attempt calls
// succeeded. Failed calls are censored observations: they only say that more
// attempts would have been needed, so they count as failures for every retry
// count. A learning pass picks the smallest retry count whose predicted
// success rate is within SuccessTolerance of the best achievable one, adds one
// retry of headroom and proposes it when
//
//	0.7*predictedSuccess(r) + 0.3*(1 - r/MaxRetriesCeiling)
//
// beats the strategy currently serving the context by ImprovementMargin.
package retry
