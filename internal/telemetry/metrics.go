/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visar_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIRequestDuration tracks HTTP request latency.
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visar_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visar_api_active_connections",
			Help: "Number of in-flight API requests",
		},
	)

	// RotationSelectionsTotal counts selection decisions by reason.
	RotationSelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visar_rotation_selections_total",
			Help: "Total number of active-video selection decisions",
		},
		[]string{"reason"},
	)

	// RotationSelectionDuration tracks end-to-end selection latency.
	RotationSelectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "visar_rotation_selection_duration_seconds",
			Help:    "Selection decision duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	// RotationAdvancesTotal counts persisted rotation state advances.
	RotationAdvancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visar_rotation_advances_total",
			Help: "Total number of rotation state advances persisted",
		},
	)

	// RotationConflictsTotal counts lost compare-and-swap races.
	RotationConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visar_rotation_state_conflicts_total",
			Help: "Total number of rotation state write conflicts",
		},
	)

	// SweeperTicksTotal counts boundary sweeper passes.
	SweeperTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visar_sweeper_ticks_total",
			Help: "Total number of boundary sweeper passes",
		},
	)

	// SweeperErrorsTotal counts failed sweeps by stage.
	SweeperErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visar_sweeper_errors_total",
			Help: "Total number of boundary sweeper errors",
		},
		[]string{"stage"},
	)

	// WebhookDeliveriesTotal counts webhook delivery attempts by outcome.
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visar_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"outcome"},
	)

	// ExpiryIntentsTotal counts emitted expiry reminder intents.
	ExpiryIntentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visar_expiry_intents_total",
			Help: "Total number of expiry reminder intents emitted",
		},
		[]string{"entity_type"},
	)

	// CacheHitsTotal counts decision cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visar_decision_cache_hits_total",
			Help: "Total number of decision cache hits",
		},
	)

	// CacheMissesTotal counts decision cache misses.
	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "visar_decision_cache_misses_total",
			Help: "Total number of decision cache misses",
		},
	)

	// DatabaseQueryDuration tracks database operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "visar_database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// DatabaseErrorsTotal counts database operation errors.
	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visar_database_errors_total",
			Help: "Total number of database errors",
		},
		[]string{"operation", "kind"},
	)

	// DatabaseConnectionsActive gauges open database connections.
	DatabaseConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "visar_database_connections_active",
			Help: "Number of open database connections",
		},
	)
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
