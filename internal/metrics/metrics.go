// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_events_processed_total",
			Help: "Total number of events evaluated by the pipeline",
		},
		[]string{"event_kind", "decision"}, // "transaction"|"account", "APPROVED"|"FRAUD_DETECTED"
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_events_rejected_total",
			Help: "Total number of events rejected before evaluation",
		},
		[]string{"reason"}, // "invalid", "duplicate_in_flight"
	)

	EventsReplayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_events_replayed_total",
			Help: "Total number of repeated event ids answered from the decision cache",
		},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_pipeline_duration_seconds",
			Help:    "End-to-end evaluation latency per event",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"event_kind"},
	)

	// Detector Metrics
	AlertsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_generated_total",
			Help: "Total number of alerts raised",
		},
		[]string{"detector", "layer", "status"},
	)

	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_detector_errors_total",
			Help: "Total number of detector checks skipped because a dependency failed",
		},
		[]string{"detector"},
	)

	DetectorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_detector_duration_seconds",
			Help:    "Duration of individual detector checks",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"detector"},
	)

	BehavioralScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentinel_behavioral_score",
			Help:    "Distribution of predictive behavioral scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	// Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_store_operation_duration_seconds",
			Help:    "Duration of state and relationship store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"store", "operation", "error_type"},
	)

	// Sink Metrics
	AlertsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_published_total",
			Help: "Total number of alerts delivered to a sink",
		},
		[]string{"sink"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alert_publish_failures_total",
			Help: "Total number of failed alert publishes",
		},
		[]string{"sink"},
	)

	AlertPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_alert_persist_failures_total",
			Help: "Total number of alerts that could not be persisted",
		},
	)

	// Ingest Metrics
	IngestMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_ingest_messages_consumed_total",
			Help: "Total number of messages read from the ingest stream",
		},
	)

	IngestMessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_ingest_messages_failed_total",
			Help: "Total number of ingest messages that could not be processed",
		},
		[]string{"reason"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_api_rate_limit_hits_total",
			Help: "Total number of rate-limited API requests",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_app_info",
			Help: "Application build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordEvent records a completed pipeline evaluation.
func RecordEvent(kind, decision string, duration time.Duration) {
	EventsProcessed.WithLabelValues(kind, decision).Inc()
	PipelineDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordRejected records an event rejected before evaluation.
func RecordRejected(reason string) {
	EventsRejected.WithLabelValues(reason).Inc()
}

// RecordAlert records a raised alert.
func RecordAlert(detector, layer, status string) {
	AlertsGenerated.WithLabelValues(detector, layer, status).Inc()
}

// RecordDetector records one detector check and whether it failed.
func RecordDetector(detector string, duration time.Duration, err error) {
	DetectorDuration.WithLabelValues(detector).Observe(duration.Seconds())
	if err != nil {
		DetectorErrors.WithLabelValues(detector).Inc()
	}
}

// RecordStoreOperation records a store call.
func RecordStoreOperation(store, operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(store, operation, classifyError(err)).Inc()
	}
}

// RecordPublish records an alert publish attempt to a sink.
func RecordPublish(sink string, err error) {
	if err != nil {
		PublishFailures.WithLabelValues(sink).Inc()
		return
	}
	AlertsPublished.WithLabelValues(sink).Inc()
}

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

// classifyError keeps error_type label cardinality bounded.
func classifyError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "circuit breaker"):
		return "circuit_open"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "unavailable"):
		return "connection"
	case strings.Contains(msg, "conflict"):
		return "conflict"
	default:
		return "other"
	}
}
