// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the gateway.
//
// # Description
//
// This package implements Prometheus metrics for monitoring the chat and
// claims middleware. Metrics include:
//   - Request counters (by route, status)
//   - Auth decision counters (issued, unauthenticated, rate-limited)
//   - Stream event counters and session duration histograms
//   - Active stream and WebSocket connection gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const metricsNamespace = "nphies_gateway"

// Subsystem for gateway metrics
const gatewaySubsystem = "http"

// GatewayMetrics holds all Prometheus metrics for the gateway.
//
// # Fields
//
//   - RequestsTotal: Counter of HTTP requests by route and status code.
//   - RequestDurationSeconds: Histogram of request latency by route.
//   - AuthDecisionsTotal: Counter of admission outcomes at the guard.
//   - SessionsTotal: Counter of stream sessions by transport and outcome.
//   - SessionDurationSeconds: Histogram of stream session duration.
//   - StreamEventsTotal: Counter of emitted stream events by kind.
//   - ActiveSessions: Gauge of currently running stream sessions.
//   - ActiveConnections: Gauge of registered WebSocket connections.
//
// # Thread Safety
//
// All operations are thread-safe.
type GatewayMetrics struct {
	// RequestsTotal counts HTTP requests.
	// Labels: route, status (HTTP status code as string)
	RequestsTotal *prometheus.CounterVec

	// RequestDurationSeconds measures request latency.
	// Labels: route
	RequestDurationSeconds *prometheus.HistogramVec

	// AuthDecisionsTotal counts admission outcomes at the auth guard.
	// Labels: decision (admitted, unauthenticated, rate_limited)
	AuthDecisionsTotal *prometheus.CounterVec

	// SessionsTotal counts stream sessions.
	// Labels: transport (sse, websocket), outcome (success, error, cancelled)
	SessionsTotal *prometheus.CounterVec

	// SessionDurationSeconds measures stream session duration.
	// Labels: transport
	SessionDurationSeconds *prometheus.HistogramVec

	// StreamEventsTotal counts emitted stream events by kind.
	// Labels: event_type
	StreamEventsTotal *prometheus.CounterVec

	// ActiveSessions tracks currently running stream sessions.
	// Labels: transport
	ActiveSessions *prometheus.GaugeVec

	// ActiveConnections tracks registered WebSocket connections.
	ActiveConnections prometheus.Gauge
}

// DefaultMetrics is the singleton instance of GatewayMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *GatewayMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *GatewayMetrics {
	DefaultMetrics = &GatewayMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"route", "status"},
		),

		RequestDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: gatewaySubsystem,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"route"},
		),

		AuthDecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "auth",
				Name:      "decisions_total",
				Help:      "Total admission decisions at the auth guard",
			},
			[]string{"decision"},
		),

		SessionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "sessions_total",
				Help:      "Total stream sessions by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),

		SessionDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "session_duration_seconds",
				Help:      "Stream session duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"transport"},
		),

		StreamEventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "events_total",
				Help:      "Total emitted stream events by kind",
			},
			[]string{"event_type"},
		),

		ActiveSessions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "stream",
				Name:      "active_sessions",
				Help:      "Number of currently running stream sessions",
			},
			[]string{"transport"},
		),

		ActiveConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: "websocket",
				Name:      "active_connections",
				Help:      "Number of registered WebSocket connections",
			},
		),
	}
	return DefaultMetrics
}
