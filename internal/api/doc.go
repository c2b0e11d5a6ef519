// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package api provides the Sentinel HTTP API on the chi router.

# Endpoints

Event ingestion (synchronous decision):

  - POST /api/v1/transactions: evaluate a transaction
  - POST /api/v1/accounts: evaluate an account registration or change

Alerts and engine state:

  - GET /api/v1/alerts: list alerts (account_id, event_id, status, detector, limit, offset)
  - GET /api/v1/alerts/{id}: one alert
  - GET /api/v1/stats: engine counters
  - GET /api/v1/detectors: registered detectors
  - PUT /api/v1/detectors/{type}: {"enabled": bool, "config": {...}}

Operations:

  - GET /api/v1/health/live, GET /api/v1/health/ready
  - GET /metrics: Prometheus exposition

# Responses

Every JSON response uses the APIResponse envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "INVALID_EVENT", "message": "..."}, "meta": {...}}

Error mapping:

  - 400 INVALID_EVENT / VALIDATION_FAILED / BAD_REQUEST
  - 404 NOT_FOUND (unknown alert or detector)
  - 409 DUPLICATE_IN_FLIGHT (same event id is being processed)
  - 413 PAYLOAD_TOO_LARGE
  - 429 TOO_MANY_REQUESTS
  - 503 SERVICE_UNAVAILABLE (store down, readiness failure)

A decision of FRAUD_DETECTED is a successful evaluation and answers 200.

# Middleware

Global: request id with logging context, RealIP, Recoverer, go-chi/cors.
Per group: go-chi/httprate limits, security headers, Prometheus metrics,
body size limit. Alert listings are gzip-compressed when the client accepts it.
*/
package api
