/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the gateway,
tracking HTTP requests, platform calls, circuit breakers, the cache and the
connection lifecycle.

# Features

- HTTP request metrics (latency, throughput, size)
- Platform call metrics (duration, status)
- Circuit breaker metrics (state, trips, fast-fails)
- Cache metrics (hits, misses, stale serves, invalidations)
- Connection lifecycle metrics (recreates, teardown failures)
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Publish cache and connection snapshots
	bridge := monitoring.NewBridge(metrics)
	bridge.SyncCache(cacheMgr.GetStats())
	bridge.SyncConnection(conns.GetStatus(), conns.GetMetrics())

	// Time platform operations
	timer := monitoring.NewTimer(metrics, "content", "list_posts")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
