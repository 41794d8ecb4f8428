package timeout

import (
	"fmt"
	"time"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
	"github.com/GriffinCanCode/adaptive/internal/domain/strategy"
)

// Parameter names
const (
	ParamTimeoutMs        = "timeout_ms"
	ParamBufferFactor     = "buffer_factor"
	ParamPercentileTarget = "percentile_target"
)

// Parameters is the typed form of a timeout strategy
type Parameters struct {
	Timeout time.Duration
	// BufferFactor scales the target percentile into a timeout
	BufferFactor float64
	// PercentileTarget is the latency quantile the timeout is derived from
	PercentileTarget float64
}

// DefaultParameters returns the stock baseline
func DefaultParameters() Parameters {
	return Parameters{
		Timeout:          30 * time.Second,
		BufferFactor:     1.5,
		PercentileTarget: 0.95,
	}
}

// ParseParameters reads a strategy's parameters
func ParseParameters(sp strategy.Parameters) (Parameters, error) {
	ms, err := sp.Int(ParamTimeoutMs)
	if err != nil {
		return Parameters{}, err
	}
	buffer, err := sp.Float(ParamBufferFactor)
	if err != nil {
		return Parameters{}, err
	}
	pct, err := sp.Float(ParamPercentileTarget)
	if err != nil {
		return Parameters{}, err
	}
	return Parameters{
		Timeout:          time.Duration(ms) * time.Millisecond,
		BufferFactor:     buffer,
		PercentileTarget: pct,
	}, nil
}

// Map converts p to strategy parameters. The timeout is stored in whole
// milliseconds.
func (p Parameters) Map() strategy.Parameters {
	return strategy.Parameters{
		ParamTimeoutMs:        int(p.Timeout.Milliseconds()),
		ParamBufferFactor:     p.BufferFactor,
		ParamPercentileTarget: p.PercentileTarget,
	}
}

// Validate checks p against the configured timeout bounds
func (p Parameters) Validate(minTimeout, maxTimeout time.Duration) error {
	switch {
	case p.Timeout < minTimeout || p.Timeout > maxTimeout:
		return execution.NewConfigurationError(ParamTimeoutMs,
			fmt.Sprintf("must be in [%d, %d], got %d", minTimeout.Milliseconds(), maxTimeout.Milliseconds(), p.Timeout.Milliseconds()))
	case p.BufferFactor < 1:
		return execution.NewConfigurationError(ParamBufferFactor, fmt.Sprintf("must be at least 1, got %g", p.BufferFactor))
	case p.PercentileTarget <= 0 || p.PercentileTarget > 1:
		return execution.NewConfigurationError(ParamPercentileTarget, fmt.Sprintf("must be in (0, 1], got %g", p.PercentileTarget))
	}
	return nil
}
