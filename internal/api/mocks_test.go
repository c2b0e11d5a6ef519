// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/detection"
)

type fakeEngine struct {
	mu         sync.Mutex
	decision   *detection.Decision
	err        error
	events     []detection.Event
	detectors  []detection.DetectorInfo
	configured map[detection.DetectorType]json.RawMessage
	configErr  error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		decision: &detection.Decision{EventID: "T1", Status: detection.DecisionApproved, Alerts: []detection.Alert{}},
		detectors: []detection.DetectorInfo{
			{Type: detection.DetectorVelocity, Layer: detection.LayerReactive, Status: detection.StatusBlocked, Enabled: true},
			{Type: detection.DetectorChargeback, Layer: detection.LayerAgent, Status: detection.StatusBlocked, Enabled: true},
		},
		configured: make(map[detection.DetectorType]json.RawMessage),
	}
}

func (f *fakeEngine) Process(_ context.Context, event detection.Event) (*detection.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	if f.err != nil {
		return nil, f.err
	}
	return f.decision, nil
}

func (f *fakeEngine) Detectors() []detection.DetectorInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]detection.DetectorInfo(nil), f.detectors...)
}

func (f *fakeEngine) SetDetectorEnabled(t detection.DetectorType, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.detectors {
		if f.detectors[i].Type == t {
			f.detectors[i].Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", detection.ErrUnknownDetector, t)
}

func (f *fakeEngine) ConfigureDetector(t detection.DetectorType, config json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.configErr != nil {
		return f.configErr
	}
	f.configured[t] = config
	return nil
}

func (f *fakeEngine) Metrics() detection.EngineMetrics {
	return detection.EngineMetrics{EventsProcessed: 7, AlertsGenerated: 2}
}

func (f *fakeEngine) lastEvent(t *testing.T) detection.Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		t.Fatal("engine received no events")
	}
	return f.events[len(f.events)-1]
}

type fakeAlerts struct {
	alerts     []detection.Alert
	err        error
	lastFilter detection.AlertFilter
}

func (f *fakeAlerts) GetAlert(_ context.Context, id string) (*detection.Alert, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.alerts {
		if f.alerts[i].ID == id {
			return &f.alerts[i], nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", id, detection.ErrNotFound)
}

func (f *fakeAlerts) ListAlerts(_ context.Context, filter detection.AlertFilter) ([]detection.Alert, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	end := min(filter.Offset+filter.Limit, len(f.alerts))
	if filter.Offset >= end {
		return []detection.Alert{}, nil
	}
	return f.alerts[filter.Offset:end], nil
}

func (f *fakeAlerts) GetAlertCount(context.Context, detection.AlertFilter) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.alerts), nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeBreaker string

func (b fakeBreaker) State() string { return string(b) }

// newTestRouter builds the full router with rate limiting disabled.
func newTestRouter(engine Engine, alerts AlertReader, deps ...Dependency) http.Handler {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	cfg.MaxBodyBytes = 4096
	return NewRouter(NewHandler(engine, alerts, deps...), cfg).SetupChi()
}
