// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package sink delivers alerts to downstream consumers.
//
// Every sink implements detection.AlertSink and publishes the same JSON
// envelope:
//
//	{"alert": {...}, "event_type": "fraud_alert", "timestamp": "...", "source": "sentinel"}
//
// Available sinks:
//   - RedisSink: PUBLISH on a pub/sub channel (alerts_channel by default)
//   - WebhookSink: HTTP POST, rate limited
//   - KafkaSink: franz-go producer keyed by account id
//   - NATSSink: Watermill JetStream publisher (requires -tags=nats)
//
// Fanout combines several sinks, and WithBreaker guards a sink with a
// circuit breaker. Delivery is at-most-once: a failed publish is counted
// and logged by the caller, never retried here.
package sink
