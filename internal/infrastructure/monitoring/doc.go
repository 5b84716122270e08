/*
Package monitoring provides Prometheus metrics for the IPC daemon.

# Overview

Tracks the two mechanisms the daemon operates: managed process pipes
(opens, closes, spawn failures, live stream count) and the FIFO rendezvous
protocol (requests, responses, broken peers, malformed frames, request
latency, stale-channel sweeps).

# Usage

	metrics := monitoring.New()

	metrics.StreamOpens.Inc()
	metrics.StreamsOpen.Set(float64(registry.Len()))

	timer := monitoring.NewTimer(metrics)
	// ... handle request ...
	timer.Stop()

# Metrics Endpoint

Each collector owns a private registry; expose it with:

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
