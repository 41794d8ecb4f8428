package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/adaptive/internal/domain/events"
)

// EventSink writes executor events to a zap logger. Executions are logged at
// debug, lifecycle changes at info and breaker trips at warn.
type EventSink struct {
	logger *zap.Logger
}

// NewEventSink creates a sink logging to logger
func NewEventSink(logger *zap.Logger) *EventSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventSink{logger: logger.Named("events")}
}

// Emit implements events.Sink
func (s *EventSink) Emit(e events.Event) {
	level := levelFor(e)
	ce := s.logger.Check(level, string(e.Type))
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("executor", e.Executor),
		zap.String("strategy", e.StrategyName),
	}
	if e.ContextKey != "" {
		fields = append(fields, zap.String("context_key", e.ContextKey))
	}
	if e.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", e.CorrelationID))
	}

	switch e.Type {
	case events.TypeExecution:
		fields = append(fields,
			zap.Bool("success", e.Success),
			zap.Float64("latency_ms", e.LatencyMs()),
			zap.Int("attempts", e.Attempts),
		)
		if e.ErrorType != "" {
			fields = append(fields, zap.String("error_type", string(e.ErrorType)))
		}
	case events.TypeCircuitStateChanged:
		fields = append(fields, zap.String("from", e.From), zap.String("to", e.To))
	default:
		fields = append(fields, zap.Any("parameters", e.Parameters))
		if e.ScoreDelta != 0 {
			fields = append(fields, zap.Float64("score_delta", e.ScoreDelta))
		}
		if e.Reason != "" {
			fields = append(fields, zap.String("reason", e.Reason))
		}
	}

	ce.Write(fields...)
}

func levelFor(e events.Event) zapcore.Level {
	switch e.Type {
	case events.TypeExecution, events.TypeStrategyCandidate:
		return zapcore.DebugLevel
	case events.TypeCircuitStateChanged:
		if e.To == "open" {
			return zapcore.WarnLevel
		}
		return zapcore.InfoLevel
	default:
		return zapcore.InfoLevel
	}
}
