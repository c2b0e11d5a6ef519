// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"errors"
	"testing"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultEngineConfig().Validate() error = %v", err)
	}

	if cfg.FailurePolicy != FailOpen {
		t.Errorf("FailurePolicy = %s, want open", cfg.FailurePolicy)
	}
	if cfg.Reactive.Velocity.MaxCount != 10 {
		t.Errorf("Velocity.MaxCount = %d, want 10", cfg.Reactive.Velocity.MaxCount)
	}
	if cfg.Behavioral.WindowSize != 5 {
		t.Errorf("Behavioral.WindowSize = %d, want 5", cfg.Behavioral.WindowSize)
	}
	if cfg.Agents.Dormant.InactiveDays != 80 {
		t.Errorf("Dormant.InactiveDays = %d, want 80", cfg.Agents.Dormant.InactiveDays)
	}
}

func TestEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"unknown failure policy", func(c *EngineConfig) { c.FailurePolicy = "maybe" }},
		{"zero publish timeout", func(c *EngineConfig) { c.PublishTimeout = 0 }},
		{"unnamed watchlist", func(c *EngineConfig) { c.Reactive.Watchlist.Set = "" }},
		{"inverted small range", func(c *EngineConfig) { c.Reactive.SmallTransaction.MinAmount = 100_000 }},
		{"zero velocity window", func(c *EngineConfig) { c.Reactive.Velocity.Window = 0 }},
		{"hour out of range", func(c *EngineConfig) { c.Reactive.OffHours.StartHour = 24 }},
		{"unknown ratio policy", func(c *EngineConfig) { c.Agents.Chargeback.RatioPolicy = "guess" }},
		{"zero multiplier", func(c *EngineConfig) { c.Agents.Chargeback.SpendMultiplier = 0 }},
		{"zero identity matches", func(c *EngineConfig) { c.Agents.IdentityCollision.MinMatches = 0 }},
		{"empty window", func(c *EngineConfig) { c.Behavioral.WindowSize = 0 }},
		{"zero fallback std", func(c *EngineConfig) { c.Behavioral.FallbackStdDev = 0 }},
		{"zero lock ttl", func(c *EngineConfig) { c.Idempotency.LockTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEngineConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestEngineConfig_ValidateObservedIgnoresMultiplier(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Agents.Chargeback.RatioPolicy = RatioObserved
	cfg.Agents.Chargeback.SpendMultiplier = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestEngineConfig_ValidateDisabledIdempotency(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.Idempotency = IdempotencyConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
