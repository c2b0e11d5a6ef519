// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry through promauto and
exposed at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Pipeline:
  - sentinel_events_processed_total{event_kind, decision}
  - sentinel_events_rejected_total{reason}
  - sentinel_events_replayed_total
  - sentinel_pipeline_duration_seconds{event_kind}

Detectors:
  - sentinel_alerts_generated_total{detector, layer, status}
  - sentinel_detector_errors_total{detector}
  - sentinel_detector_duration_seconds{detector}
  - sentinel_behavioral_score

Stores and sinks:
  - sentinel_store_operation_duration_seconds{store, operation}
  - sentinel_store_errors_total{store, operation, error_type}
  - sentinel_alerts_published_total{sink}
  - sentinel_alert_publish_failures_total{sink}
  - sentinel_alert_persist_failures_total

Ingest:
  - sentinel_ingest_messages_consumed_total
  - sentinel_ingest_messages_failed_total{reason}

HTTP:
  - sentinel_api_requests_total{method, endpoint, status_code}
  - sentinel_api_request_duration_seconds{method, endpoint}
  - sentinel_api_active_requests
  - sentinel_api_rate_limit_hits_total{endpoint}

Circuit breakers:
  - sentinel_circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - sentinel_circuit_breaker_requests_total{name, result}
  - sentinel_circuit_breaker_transitions_total{name, from, to}

# Usage

	start := time.Now()
	decision, err := engine.Process(ctx, tx)
	metrics.RecordEvent("transaction", string(decision.Status), time.Since(start))

Label values are bounded: detector names come from a fixed set and store
errors are classified into a handful of error_type values.
*/
package metrics
