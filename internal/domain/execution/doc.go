// Package execution defines the per-call vocabulary shared by all adaptive
// executors: the immutable execution Context, the Result envelope and the
// error taxonomy.
//
// Context Keys:
//
// Strategies are matched against a normalized context key rather than the raw
// metadata map. A key is a list of "<field>:<value>" segments, lower-cased,
// sorted by field and joined by "|":
//
//	env:production
//	env:staging|priority:high
//
// Error Taxonomy:
//   - TransientError: retryable (network, rate limits)
//   - PermanentError: terminal, retries stop immediately
//   - TimeoutError: the executor's timer fired, distinct from operation errors
//   - AllFallbacksExhaustedError: every entry of a fallback chain failed
//   - CircuitOpenError: a strategy was bypassed, never surfaced to callers
//   - ConfigurationError: returned by constructors, fatal to construction
//
// Example Usage:
//
//	ec := execution.NewContext(map[string]string{"environment": "production"})
//	res := exec.Execute(ctx, input, ec)
//	if !res.Success {
//		log.Warn("call failed", zap.String("type", string(res.ErrorType)))
//	}
package execution
