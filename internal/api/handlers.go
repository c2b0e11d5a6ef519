// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/detection"
)

// Engine is the part of the detection engine the API drives.
type Engine interface {
	Process(ctx context.Context, event detection.Event) (*detection.Decision, error)
	Detectors() []detection.DetectorInfo
	SetDetectorEnabled(t detection.DetectorType, enabled bool) error
	ConfigureDetector(t detection.DetectorType, config json.RawMessage) error
	Metrics() detection.EngineMetrics
}

// AlertReader serves alert lookups.
type AlertReader interface {
	GetAlert(ctx context.Context, id string) (*detection.Alert, error)
	ListAlerts(ctx context.Context, filter detection.AlertFilter) ([]detection.Alert, error)
	GetAlertCount(ctx context.Context, filter detection.AlertFilter) (int, error)
}

// Pinger is a backing store the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes a circuit breaker's state name.
type BreakerReporter interface {
	State() string
}

// Dependency is one entry of the readiness report. Breaker may be nil.
type Dependency struct {
	Name    string
	Pinger  Pinger
	Breaker BreakerReporter
}

// Handler serves the Sentinel HTTP API.
type Handler struct {
	engine       Engine
	alerts       AlertReader
	dependencies []Dependency
	readyTimeout time.Duration
	startTime    time.Time
}

// NewHandler creates a Handler. Dependencies are reported by the readiness
// probe in the order given.
func NewHandler(engine Engine, alerts AlertReader, deps ...Dependency) *Handler {
	return &Handler{
		engine:       engine,
		alerts:       alerts,
		dependencies: deps,
		readyTimeout: 2 * time.Second,
		startTime:    time.Now(),
	}
}
