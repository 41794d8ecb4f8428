// Package fallback provides the adaptive fallback chain.
//
// A chain is a list of named services, primary first. A strategy's "order"
// parameter is a permutation of those services; calls try them strictly in
// that order and stop at the first success. When every service fails the
// result carries an *execution.AllFallbacksExhaustedError listing each
// failure.
//
// Per-service counters (attempts, successes, latency) are kept per context
// key, independent of the strategy that produced them. Each service scores
//
//	0.7*successRate + 0.3*(fastestAvgLatency/avgLatency)
//
// and a learning pass proposes the score-sorted order when its predicted
// chain score, 0.7*P(success) + 0.3/expectedAttempts, beats the current
// order's by ImprovementMargin.
package fallback
