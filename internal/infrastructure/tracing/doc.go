/*
Package tracing wraps OpenTelemetry for adaptive executions.

# Overview

Every Execute call runs inside a span named "<service>.<executor>.Execute"
carrying the executor, the selected strategy, the context key and the
correlation ID. The span records the attempt count and, on failure, the
classified error type. Exporters are configured by the host process through
the global otel provider; without one the spans are no-ops.

# Usage

	tracer := tracing.New("adaptive", logger)

	ctx, span := tracer.StartExecution(ctx, "retry", "baseline", "env:production", corrID)
	value, err := op(ctx)
	span.Finish(attempts, string(errType), err)

	// HTTP server
	router.Use(tracing.HTTPMiddleware("adaptive", nil), tracing.EchoTraceID())
*/
package tracing
