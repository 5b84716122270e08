//go:build unix

// Package main is the entry point for the ipckit rendezvous daemon.
//
// The daemon listens on a well-known named pipe for framed requests, runs
// each request's payload as a shell command through the managed process-pipe
// facility, and answers on the requesting client's own channel.
//
// Architecture:
//
//	Client (ipcc) → well-known FIFO → ipcd → /bin/sh -c <payload>
//	             ← per-client FIFO  ←
//
// The daemon provides:
//   - FIFO rendezvous listener with per-request failure isolation
//   - Managed process pipes with paired reaping
//   - Stale per-client channel sweeping
//   - Operational HTTP endpoints (/health, /streams, /metrics)
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./ipcd -fifo /tmp/ipckit.fifo -ops-port 8600
//
//	# Development mode (colored logs, debug level)
//	./ipcd -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
