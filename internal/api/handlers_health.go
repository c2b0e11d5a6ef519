// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/sentinel/internal/logging"
)

// DependencyStatus is one line of the readiness report.
type DependencyStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Breaker string `json:"breaker,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadinessReport is the body of the readiness probe.
type ReadinessReport struct {
	Ready        bool               `json:"ready"`
	Uptime       float64            `json:"uptime"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
//
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Every dependency is pinged; any failure answers 503 with the report.
//
// GET /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	report := h.readiness(r.Context())

	rw := NewResponseWriter(w, r)
	if !report.Ready {
		logging.Ctx(r.Context()).Warn().Interface("dependencies", report.Dependencies).Msg("readiness check failed")
		rw.ServiceUnavailable("not ready", report)
		return
	}
	rw.Success(report)
}

func (h *Handler) readiness(ctx context.Context) ReadinessReport {
	ctx, cancel := context.WithTimeout(ctx, h.readyTimeout)
	defer cancel()

	report := ReadinessReport{
		Ready:        true,
		Uptime:       time.Since(h.startTime).Seconds(),
		Dependencies: make([]DependencyStatus, 0, len(h.dependencies)),
	}
	for _, dep := range h.dependencies {
		status := DependencyStatus{Name: dep.Name, Healthy: true}
		if dep.Breaker != nil {
			status.Breaker = dep.Breaker.State()
		}
		if dep.Pinger != nil {
			if err := dep.Pinger.Ping(ctx); err != nil {
				status.Healthy = false
				status.Error = err.Error()
				report.Ready = false
			}
		}
		report.Dependencies = append(report.Dependencies, status)
	}
	return report
}
