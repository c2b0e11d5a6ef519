// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package testinfra provides container-backed fixtures for integration tests.
//
// Everything here is behind the integration build tag and uses
// testcontainers-go:
//
//	go test -tags integration ./internal/testinfra/...
//
// NewRedisContainer backs the Redis state store and pub/sub alert sink,
// NewPostgresContainer backs the relationship store's postgres dialect, and
// MockWebhookServer captures webhook alert deliveries. Tests skip when
// Docker is unavailable.
package testinfra
