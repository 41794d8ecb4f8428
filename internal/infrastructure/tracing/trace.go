package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// InstrumentationName is the otel instrumentation scope of this module
const InstrumentationName = "github.com/GriffinCanCode/adaptive"

// Attribute keys attached to execution spans
const (
	AttrExecutor      = attribute.Key("adaptive.executor")
	AttrStrategy      = attribute.Key("adaptive.strategy")
	AttrContextKey    = attribute.Key("adaptive.context_key")
	AttrCorrelationID = attribute.Key("adaptive.correlation_id")
	AttrAttempts      = attribute.Key("adaptive.attempts")
	AttrErrorType     = attribute.Key("adaptive.error_type")
)

// Tracer starts spans around adaptive executions
type Tracer struct {
	service string
	tracer  trace.Tracer
	logger  *zap.Logger
}

// New creates a tracer backed by the global otel provider
func New(service string, logger *zap.Logger) *Tracer {
	return NewWithProvider(otel.GetTracerProvider(), service, logger)
}

// NewWithProvider creates a tracer backed by the given provider
func NewWithProvider(provider trace.TracerProvider, service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracer{
		service: service,
		tracer:  provider.Tracer(InstrumentationName),
		logger:  logger,
	}
}

// Span is one traced execution
type Span struct {
	span   trace.Span
	logger *zap.Logger
}

// StartExecution opens the span for one Execute call
func (t *Tracer) StartExecution(ctx context.Context, executor, strategyName, contextKey, correlationID string) (context.Context, *Span) {
	ctx, span := t.tracer.Start(ctx, fmt.Sprintf("%s.%s.Execute", t.service, executor),
		trace.WithAttributes(
			AttrExecutor.String(executor),
			AttrStrategy.String(strategyName),
			AttrContextKey.String(contextKey),
			AttrCorrelationID.String(correlationID),
		),
	)
	return ctx, &Span{span: span, logger: t.logger}
}

// SetAttributes adds attributes to the span
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// AddEvent records a point-in-time event on the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish records the outcome and ends the span
func (s *Span) Finish(attempts int, errorType string, err error) {
	s.span.SetAttributes(AttrAttempts.Int(attempts))
	if err != nil {
		s.span.SetAttributes(AttrErrorType.String(errorType))
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()

	if ce := s.logger.Check(zap.DebugLevel, "span completed"); ce != nil {
		sc := s.span.SpanContext()
		ce.Write(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
	}
}

// GetTraceID returns the trace ID carried by ctx, or "" when there is none
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the span ID carried by ctx, or "" when there is none
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
