// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package middleware provides HTTP middleware shared by the Sentinel API.

All middleware has the chi signature func(http.Handler) http.Handler and
can be passed straight to r.Use.

  - RequestID: assigns or propagates X-Request-ID and seeds the logging
    context with request and correlation ids
  - PrometheusMetrics: records sentinel_api_requests_total, request
    duration and the in-flight gauge, labelled by chi route pattern

Order matters: RequestID runs first so every later log line carries the id.
PrometheusMetrics must run inside the router so the route pattern is known
when the handler returns.
*/
package middleware
