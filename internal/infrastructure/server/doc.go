// Package server exposes the adaptive executors of a process over HTTP.
//
// Routes:
//
//	GET  /                         service banner
//	GET  /health                   liveness with a per-process instance ID
//	GET  /metrics                  Prometheus exposition
//	GET  /executors                one summary per registered executor
//	GET  /executors/:name          full strategy stats of one executor
//	PUT  /executors/:name/mode     switch the learning mode, body {"mode": "active"}
//	POST /executors/:name/persist  save learned strategies now
//
// Requests are traced with otelgin, counted by the monitoring middleware and
// optionally rate limited per client IP.
package server
