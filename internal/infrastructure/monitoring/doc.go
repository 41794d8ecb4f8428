/*
Package monitoring provides Prometheus metrics for adaptive executors.

# Overview

Metrics is an events.Sink: subscribe it to an executor's event bus and every
execution, promotion, eviction and breaker transition is counted. Collectors
are registered on the registerer passed to NewMetrics, so tests and embedders
can use a private registry.

# Features

- Execution counts, latency and attempt histograms per executor
- Error counts by error type
- Strategy lifecycle counters and promotion score deltas
- Open breaker gauge
- Persistence call timing through InstrumentPersistence
- HTTP request metrics for the inspection server

# Usage

	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	bus := events.NewBus(metrics)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
*/
package monitoring
