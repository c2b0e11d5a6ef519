// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package services

import (
	"context"
)

// DetectionEngine is satisfied by *detection.Engine.
type DetectionEngine interface {
	// RunWithContext blocks until ctx is canceled, then drains pending
	// alert publishes before returning.
	RunWithContext(ctx context.Context) error
}

// DetectionService ties the engine's lifetime to the messaging layer so
// alerts still being fanned out to sinks are flushed on shutdown.
type DetectionService struct {
	engine DetectionEngine
	name   string
}

// NewDetectionService wraps engine.
func NewDetectionService(engine DetectionEngine) *DetectionService {
	return &DetectionService{
		engine: engine,
		name:   "detection-engine",
	}
}

// Serve implements suture.Service.
func (d *DetectionService) Serve(ctx context.Context) error {
	return d.engine.RunWithContext(ctx)
}

func (d *DetectionService) String() string {
	return d.name
}
