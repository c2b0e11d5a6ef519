// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package config provides centralized configuration management for Sentinel.

Configuration is layered with koanf v2: built-in defaults, an optional .env
file preloaded with godotenv, an optional YAML file, then environment
variables. Each layer overrides the one before it.

# Configuration Structure

  - server: HTTP listener, timeouts, rate limiting and CORS
  - logging: zerolog level, format and caller
  - state: ephemeral backend (redis or badger) and blocklist sets seeded at startup
  - redis, badger: backend connection settings
  - store: relationship store dialect (duckdb or postgres) and DSN
  - breaker: circuit breaker thresholds shared by stores and sinks
  - detection: failure policy, idempotency and every detector threshold
  - scorer: predictive scorer of the behavioral layer
  - sinks: redis, webhook, kafka and nats alert sinks
  - ingest: Kafka consumer group feeding the engine
  - supervisor: suture restart policy

# Environment Variables

Only mapped variables are read (see envMappings). Common ones:

  - HTTP_PORT, HTTP_HOST, ENVIRONMENT, CORS_ORIGINS
  - LOG_LEVEL, LOG_FORMAT
  - STATE_BACKEND, REDIS_ADDR, BADGER_PATH
  - STORE_DIALECT, STORE_DSN (or DATABASE_URL)
  - FAILURE_POLICY, IDEMPOTENCY_TTL, CHARGEBACK_RATIO_POLICY
  - WEBHOOK_ENABLED, WEBHOOK_URL, WEBHOOK_HEADERS (key=value,key=value)
  - KAFKA_SINK_ENABLED, KAFKA_SINK_BROKERS, NATS_SINK_ENABLED, NATS_URL
  - INGEST_ENABLED, INGEST_BROKERS, INGEST_TOPIC, INGEST_GROUP
  - SEED_WATCHLIST, SEED_IP_BLACKLIST (comma-separated members)

CONFIG_PATH selects the YAML file; DOTENV_PATH selects the .env file.

# Validation

Validate checks every section and reports all failures joined together.
Struct tags are checked with the validation package; cross-field rules
(postgres DSN, production CORS, enabled sinks) are checked in code.
*/
package config
