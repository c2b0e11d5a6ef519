// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package main is the entry point for the Sentinel fraud detection server.
//
// Sentinel evaluates transaction and account events through three detection
// layers (reactive rules, specialized agents, behavioral analysis), persists
// every alert and fans it out to the configured sinks.
//
// # Startup
//
//  1. Configuration: koanf layering of defaults, config.yaml and environment
//  2. State store: Redis or embedded Badger, behind a circuit breaker, with
//     blocklist sets seeded from state.sets
//  3. Relationship store: embedded DuckDB or PostgreSQL, migrated on open
//  4. Alert sinks: Redis pub/sub, webhook, Kafka and NATS
//  5. Detection engine
//  6. HTTP API (chi) and, when enabled, the Kafka ingest consumer
//  7. Supervisor tree (suture)
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests, the ingest consumer commits what it processed, and the
// detection engine flushes pending alert publishes before stores and sinks
// are closed.
//
// # Example Usage
//
//	export STATE_BACKEND=badger BADGER_IN_MEMORY=true
//	export STORE_DIALECT=duckdb STORE_DSN=:memory: REDIS_SINK_ENABLED=false
//	./sentinel
//
//	curl -X POST localhost:8080/api/v1/transactions \
//	  -d '{"id":"T1","account_id":"A1","amount":50,"type":"purchase"}'
package main
