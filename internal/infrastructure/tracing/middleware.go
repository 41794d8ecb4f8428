package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware creates Gin middleware for HTTP tracing. Trace context is
// read from W3C traceparent headers; a nil provider uses the global one.
func HTTPMiddleware(service string, provider trace.TracerProvider) gin.HandlerFunc {
	var opts []otelgin.Option
	if provider != nil {
		opts = append(opts, otelgin.WithTracerProvider(provider))
	}
	return otelgin.Middleware(service, opts...)
}

// EchoTraceID writes the active trace ID into the X-Trace-ID response header.
// It must run after HTTPMiddleware.
func EchoTraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if traceID := GetTraceID(c.Request.Context()); traceID != "" {
			c.Header("X-Trace-ID", traceID)
		}
		c.Next()
	}
}
