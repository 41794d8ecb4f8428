// Package config provides 12-factor configuration for the adaptive inspection
// server and the executors it hosts.
//
// Configuration is built in three layers: Default, then an optional YAML or
// TOML file (by extension) named by ADAPTIVE_CONFIG_FILE, then environment
// variables. The result is validated with go-playground/validator.
//
// Configuration Sections:
//   - Server: HTTP listener, CORS origins and shutdown timeout
//   - Logging: Log level and output format
//   - Tracing: Span exporter (none, stdout) and sample ratio
//   - RateLimit: Per-client rate limiting of the server
//   - Persistence: Strategy store backend (none, badger, sqlite)
//   - Executor: Learning mode and tunables shared by every executor
//   - Demo: Synthetic workload of cmd/server
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	opts := cfg.Executor.Options("payments")
//
// Environment Variables:
//   - SERVER_PORT, SERVER_HOST, SERVER_CORS_ORIGINS, SERVER_SHUTDOWN_TIMEOUT
//   - SERVER_RATE_LIMIT_RPS, SERVER_RATE_LIMIT_BURST, SERVER_RATE_LIMIT_ENABLED
//   - LOG_LEVEL, LOG_DEV
//   - TRACING_EXPORTER, TRACING_SAMPLE_RATIO
//   - PERSISTENCE_BACKEND, PERSISTENCE_PATH
//   - ADAPTIVE_MODE, ADAPTIVE_MAX_STRATEGIES, ADAPTIVE_MIN_OBSERVATIONS,
//     ADAPTIVE_VALIDATION_WINDOW, ADAPTIVE_IMPROVEMENT_MARGIN,
//     ADAPTIVE_BREAKER_THRESHOLD, ADAPTIVE_BREAKER_WINDOW,
//     ADAPTIVE_BREAKER_MIN_REQUESTS, ADAPTIVE_BREAKER_COOLDOWN,
//     ADAPTIVE_LEARN_INTERVAL, ADAPTIVE_PERSIST_TIMEOUT
//   - DEMO_ENABLED, DEMO_INTERVAL
package config
