package retry

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Parameter names
const (
	ParamMaxRetries    = "max_retries"
	ParamInitialDelay  = "initial_delay"
	ParamBackoffFactor = "backoff_factor"
	ParamMaxDelay      = "max_delay"
	ParamJitter        = "jitter"
)

// Parameters is the typed form of a retry strategy
type Parameters struct {
	MaxRetries    int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	Jitter        bool
}

// DefaultParameters returns the stock baseline
func DefaultParameters() Parameters {
	return Parameters{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      60 * time.Second,
		Jitter:        true,
	}
}

// ParseParameters reads a strategy's parameters
func ParseParameters(sp strategy.Parameters) (Parameters, error) {
	var (
		p   Parameters
		err error
	)
	if p.MaxRetries, err = sp.Int(ParamMaxRetries); err != nil {
		return p, err
	}
	if p.InitialDelay, err = sp.Duration(ParamInitialDelay); err != nil {
		return p, err
	}
	if p.BackoffFactor, err = sp.Float(ParamBackoffFactor); err != nil {
		return p, err
	}
	if p.MaxDelay, err = sp.Duration(ParamMaxDelay); err != nil {
		return p, err
	}
	if p.Jitter, err = sp.Bool(ParamJitter); err != nil {
		return p, err
	}
	return p, nil
}

// Map converts p to strategy parameters
func (p Parameters) Map() strategy.Parameters {
	return strategy.Parameters{
		ParamMaxRetries:    p.MaxRetries,
		ParamInitialDelay:  p.InitialDelay,
		ParamBackoffFactor: p.BackoffFactor,
		ParamMaxDelay:      p.MaxDelay,
		ParamJitter:        p.Jitter,
	}
}

// Validate checks p against the largest retry count the executor may use
func (p Parameters) Validate(ceiling int) error {
	switch {
	case p.MaxRetries < 0 || p.MaxRetries > ceiling:
		return execution.NewConfigurationError(ParamMaxRetries, fmt.Sprintf("must be in [0, %d], got %d", ceiling, p.MaxRetries))
	case p.InitialDelay < 0:
		return execution.NewConfigurationError(ParamInitialDelay, "must not be negative")
	case p.BackoffFactor < 1:
		return execution.NewConfigurationError(ParamBackoffFactor, fmt.Sprintf("must be at least 1, got %g", p.BackoffFactor))
	case p.MaxDelay < p.InitialDelay:
		return execution.NewConfigurationError(ParamMaxDelay, "must not be below initial_delay")
	}
	return nil
}

// Attempts is the total number of calls the strategy allows
func (p Parameters) Attempts() int {
	return p.MaxRetries + 1
}

// BackOff returns the delay sequence min(initial*factor^n, max), randomized
// by ±jitterFraction when jitter is on
func (p Parameters) BackOff(jitterFraction float64) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval: p.InitialDelay,
		Multiplier:      p.BackoffFactor,
		MaxInterval:     p.MaxDelay,
	}
	if p.Jitter {
		b.RandomizationFactor = jitterFraction
	}
	b.Reset()
	return b
}
