// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// Configurable is implemented by detectors whose thresholds can be replaced at
// runtime.
type Configurable interface {
	Configure(config json.RawMessage) error
}

// settings holds a detector's configuration and enabled flag. Checks take a
// snapshot under the read lock so a concurrent Configure never tears a config.
type settings[C any] struct {
	mu       sync.RWMutex
	config   C
	enabled  bool
	validate func(C) error
	apply    func(C)
}

func newSettings[C any](config C, validate func(C) error) *settings[C] {
	return &settings[C]{config: config, enabled: true, validate: validate}
}

// snapshot returns the current config and whether the detector is enabled.
func (s *settings[C]) snapshot() (C, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.enabled
}

// Enabled returns whether this detector is enabled.
func (s *settings[C]) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled enables or disables the detector.
func (s *settings[C]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// Config returns the current configuration.
func (s *settings[C]) Config() C {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Configure replaces the configuration after validating it.
func (s *settings[C]) Configure(raw json.RawMessage) error {
	var next C
	if err := json.Unmarshal(raw, &next); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.validate != nil {
		if err := s.validate(next); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = next
	if s.apply != nil {
		s.apply(next)
	}
	return nil
}

func positiveScore(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("score must be between 0 and 100, got %d", score)
	}
	return nil
}

func miss(t DetectorType) Signal {
	return Signal{Detector: t}
}

func hit(t DetectorType, score int, format string, args ...any) Signal {
	return Signal{Detector: t, Fired: true, Score: score, Reason: fmt.Sprintf(format, args...)}
}
