// Package logging provides structured logging using uber/zap.
//
// This package offers production-ready logging with two modes:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// EventSink subscribes a logger to the executor event stream, so promotions,
// evictions and breaker trips show up in the logs without extra wiring.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	bus := events.NewBus(logging.NewEventSink(logger.Logger))
//	logger.Info("Server starting", zap.String("port", "8080"))
package logging
