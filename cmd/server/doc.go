// Package main is the entry point for the adaptive execution server.
//
// The server hosts four adaptive executors (retry, timeout, fallback and
// cache) around simulated backends whose failure rates and latencies differ
// between the production and staging environments, and exposes their learned
// strategies over HTTP.
//
// Configuration:
//   - Defaults, then an optional YAML or TOML file, then environment variables
//   - -config overrides ADAPTIVE_CONFIG_FILE
//
// Usage:
//
//	# Synthetic traffic, strategies kept in Badger
//	DEMO_ENABLED=true PERSISTENCE_BACKEND=badger PERSISTENCE_PATH=/tmp/adaptive ./server
//
//	# Development mode (console encoding, stack traces)
//	./server -dev -config adaptive.yaml
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, persisting learned strategies
package main
