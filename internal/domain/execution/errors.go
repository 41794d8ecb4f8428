package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrorType classifies an execution failure
type ErrorType string

const (
	ErrorTypeNone               ErrorType = ""
	ErrorTypeTransient          ErrorType = "transient"
	ErrorTypePermanent          ErrorType = "permanent"
	ErrorTypeFallbacksExhausted ErrorType = "fallbacks_exhausted"
	ErrorTypeTimeout            ErrorType = "timeout"
	ErrorTypeCircuitOpen        ErrorType = "circuit_open"
	ErrorTypeConfiguration      ErrorType = "configuration"
	ErrorTypeCanceled           ErrorType = "canceled"
)

var (
	ErrTimeout               = errors.New("operation timed out")
	ErrCircuitOpen           = errors.New("strategy circuit is open")
	ErrAllFallbacksExhausted = errors.New("all fallbacks exhausted")
	ErrInvalidConfiguration  = errors.New("invalid configuration")
	ErrOperationPanicked     = errors.New("operation panicked")
	ErrNoOperation           = errors.New("operation is required")
)

// TransientError marks an error as retryable
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks an error as terminal; retries stop immediately
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// Permanent wraps err as a PermanentError
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// TimeoutError reports that the timer fired before the operation finished
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// CircuitOpenError reports that a strategy was bypassed by its breaker.
// It never reaches callers; the executor falls back to the baseline.
type CircuitOpenError struct {
	Strategy string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for strategy %q", e.Strategy)
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// ServiceFailure is one failed entry of a fallback chain
type ServiceFailure struct {
	Service string
	Err     error
}

// AllFallbacksExhaustedError reports that every service of a chain failed
type AllFallbacksExhaustedError struct {
	Failures []ServiceFailure
}

func (e *AllFallbacksExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Service, f.Err))
	}
	return fmt.Sprintf("all %d fallbacks exhausted (%s)", len(e.Failures), strings.Join(parts, "; "))
}

func (e *AllFallbacksExhaustedError) Is(target error) bool { return target == ErrAllFallbacksExhausted }

// ConfigurationError is returned synchronously by constructors
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// NewConfigurationError creates a ConfigurationError
func NewConfigurationError(field, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: reason}
}

// ConfigurationErrors merges several field errors into one, sorted by field
func ConfigurationErrors(errs []*ConfigurationError) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	reasons := make([]string, 0, len(errs))
	for _, e := range errs {
		reasons = append(reasons, e.Field+": "+e.Reason)
	}
	return &ConfigurationError{Reason: strings.Join(reasons, "; ")}
}

// Classifier maps an operation error to an ErrorType
type Classifier func(error) ErrorType

// DefaultClassifier recognizes the error types of this package and context
// errors. Anything else is transient.
func DefaultClassifier(err error) ErrorType {
	if err == nil {
		return ErrorTypeNone
	}

	var (
		permanent *PermanentError
		transient *TransientError
		timeout   *TimeoutError
		exhausted *AllFallbacksExhaustedError
		circuit   *CircuitOpenError
		config    *ConfigurationError
	)

	switch {
	case errors.As(err, &permanent):
		return ErrorTypePermanent
	case errors.As(err, &transient):
		return ErrorTypeTransient
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.As(err, &exhausted):
		return ErrorTypeFallbacksExhausted
	case errors.As(err, &circuit):
		return ErrorTypeCircuitOpen
	case errors.As(err, &config):
		return ErrorTypeConfiguration
	default:
		return ErrorTypeTransient
	}
}

// Retryable reports whether an error type may succeed on another attempt
func (t ErrorType) Retryable() bool {
	return t == ErrorTypeTransient || t == ErrorTypeTimeout
}
