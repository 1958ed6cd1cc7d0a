// Parley - Realtime Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/parley

// Package metrics holds the Prometheus collectors for Parley.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of WebSocket messages received",
		},
	)

	WSEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_events_dropped_total",
			Help: "Inbound realtime events dropped before routing",
		},
		[]string{"reason"}, // "malformed", "rate_limited", "unknown_type"
	)

	WSAuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_auth_failures_total",
			Help: "WebSocket upgrades refused for missing or invalid credentials",
		},
	)

	// Presence Metrics
	PresenceOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_operations_total",
			Help: "Presence directory operations by backend and result",
		},
		[]string{"backend", "operation", "result"}, // result: "ok", "fallback"
	)

	PresenceMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "presence_backend_mode",
			Help: "Presence backend selected at startup (1 for the active mode)",
		},
		[]string{"mode"},
	)

	// Delivery Metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Realtime notifications by event and outcome",
		},
		[]string{"event", "result"}, // result: "delivered", "offline"
	)

	TypingTimersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "typing_timers_active",
			Help: "Pending typing expiry timers",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPresenceOp records one presence directory operation.
func RecordPresenceOp(backend, operation string, fallback bool) {
	result := "ok"
	if fallback {
		result = "fallback"
	}
	PresenceOperations.WithLabelValues(backend, operation, result).Inc()
}

// SetPresenceMode marks mode as the active presence backend.
func SetPresenceMode(mode string) {
	for _, m := range []string{"memory", "shared", "degraded"} {
		v := 0.0
		if m == mode {
			v = 1
		}
		PresenceMode.WithLabelValues(m).Set(v)
	}
}

// RecordDelivery records the outcome of a realtime notification.
func RecordDelivery(event string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "offline"
	}
	Deliveries.WithLabelValues(event, result).Inc()
}

// RecordEventDropped records a dropped inbound realtime event.
func RecordEventDropped(reason string) {
	WSEventsDropped.WithLabelValues(reason).Inc()
}

// RecordBreakerTransition records a circuit breaker state change.
func RecordBreakerTransition(name string, from, to gobreaker.State) {
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

var (
	// Store Metrics
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Badger store operations by operation and result",
		},
		[]string{"operation", "result"}, // result: "ok", "not_found", "conflict", "error"
	)

	StoreGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_gc_runs_total",
			Help: "Value log garbage collection runs",
		},
	)

	StoreGCDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_gc_duration_seconds",
			Help:    "Value log garbage collection duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)
)

// RecordStoreOp records one store operation with its result label.
func RecordStoreOp(operation, result string) {
	StoreOperations.WithLabelValues(operation, result).Inc()
}

// RecordStoreGC records a garbage collection pass.
func RecordStoreGC(duration time.Duration) {
	StoreGCRuns.Inc()
	StoreGCDuration.Observe(duration.Seconds())
}
