/*
Package monitoring provides Prometheus metrics for the shell service.

# Overview

Metrics are registered on a caller-supplied prometheus.Registerer so tests
and embedded uses can keep them off the global registry. Every recording
method is safe to call on a nil *Metrics.

# Features

- HTTP request metrics (latency, throughput)
- Command execution counts and durations per shell mode
- Sandbox boot attempts, interrupts and server-ready events
- Mode transitions between the simulated and sandboxed backends
- Terminal session and WebSocket connection gauges

# Usage

	registry := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(registry)

	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	timer := monitoring.NewTimer(metrics, "mock")
	// ... run command ...
	timer.Stop()
*/
package monitoring
