package execution

import "time"

// Result is the uniform envelope returned by every adaptive executor.
// Callers branch on Success; operational failures are never returned as
// Go errors.
type Result[T any] struct {
	Value         T
	StrategyUsed  string
	Attempts      int
	Success       bool
	Err           error
	ErrorType     ErrorType
	Latency       time.Duration
	ContextKey    string
	CorrelationID string

	// Annotations carry domain details such as the serving fallback
	// service, cache hit flag or applied timeout.
	Annotations map[string]any
}

// Annotation returns a single annotation value
func (r Result[T]) Annotation(key string) (any, bool) {
	v, ok := r.Annotations[key]
	return v, ok
}
