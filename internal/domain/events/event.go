package events

import (
	"time"

	"github.com/GriffinCanCode/adaptive/internal/domain/execution"
)

// Type identifies what happened
type Type string

const (
	TypeExecution           Type = "execution"
	TypeStrategyPromoted    Type = "strategy_promoted"
	TypeStrategyCandidate   Type = "strategy_candidate"
	TypeStrategyDiscarded   Type = "strategy_discarded"
	TypeStrategyEvicted     Type = "strategy_evicted"
	TypeCircuitStateChanged Type = "circuit_state_changed"
)

// Event is the structured record emitted by an adaptive executor. Fields that
// do not apply to a Type are left zero.
type Event struct {
	Type          Type      `json:"event"`
	Executor      string    `json:"executor"`
	StrategyName  string    `json:"strategy_name,omitempty"`
	ContextKey    string    `json:"context_key,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Time          time.Time `json:"time"`

	// execution
	Success   bool                `json:"success"`
	Latency   time.Duration       `json:"latency,omitempty"`
	Attempts  int                 `json:"attempts,omitempty"`
	ErrorType execution.ErrorType `json:"error_type,omitempty"`

	// strategy lifecycle
	Parameters map[string]any `json:"parameters,omitempty"`
	ScoreDelta float64        `json:"score_delta,omitempty"`
	Reason     string         `json:"reason,omitempty"`

	// circuit_state_changed
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// LatencyMs reports the latency in fractional milliseconds
func (e Event) LatencyMs() float64 {
	return float64(e.Latency) / float64(time.Millisecond)
}
