// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"testing"
)

func TestRatioScorer_Score(t *testing.T) {
	tests := []struct {
		name          string
		features      Features
		wantAnomalous bool
		wantScore     int
	}{
		{
			name:      "no history",
			features:  Features{Amount: 5000},
			wantScore: 60,
		},
		{
			name:      "in line with window",
			features:  Features{Amount: 1500, WindowAverage: 1000, WindowSize: 3},
			wantScore: 70,
		},
		{
			name:      "prior signals bias",
			features:  Features{Amount: 1500, WindowAverage: 1000, WindowSize: 3, PriorSignals: []DetectorType{DetectorVelocity, DetectorOffHours}},
			wantScore: 74,
		},
		{
			name:      "spike with thin history",
			features:  Features{Amount: 10_000, WindowAverage: 1000, WindowSize: 1},
			wantScore: 80,
		},
		{
			name:          "just over spike factor",
			features:      Features{Amount: 3500, WindowAverage: 1000, WindowSize: 2},
			wantAnomalous: true,
			wantScore:     86,
		},
		{
			name:          "large spike clamps",
			features:      Features{Amount: 100_000, WindowAverage: 1000, WindowSize: 4},
			wantAnomalous: true,
			wantScore:     99,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RatioScorer{}.Score(context.Background(), tt.features)
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if got.Anomalous != tt.wantAnomalous || got.Score != tt.wantScore {
				t.Errorf("Score() = %+v, want anomalous=%v score=%d", got, tt.wantAnomalous, tt.wantScore)
			}
		})
	}
}

func TestRandomScorer_Deterministic(t *testing.T) {
	a, b := NewRandomScorer(42), NewRandomScorer(42)
	f := Features{Amount: 1000, WindowAverage: 900, WindowSize: 3}

	anomalies := 0
	for i := 0; i < 1000; i++ {
		pa, _ := a.Score(context.Background(), f)
		pb, _ := b.Score(context.Background(), f)
		if pa != pb {
			t.Fatalf("iteration %d: %+v != %+v for the same seed", i, pa, pb)
		}
		if pa.Score < 60 || pa.Score > 80 {
			t.Errorf("Score = %d outside the non-spike band", pa.Score)
		}
		if pa.Anomalous {
			anomalies++
		}
	}
	if anomalies < 50 || anomalies > 150 {
		t.Errorf("anomalies = %d of 1000, want about 100", anomalies)
	}
}

func TestNewScorer(t *testing.T) {
	for _, name := range []string{"", ScorerRatio, ScorerRandom, ScorerStatic} {
		if s, err := NewScorer(name, 1); err != nil || s == nil {
			t.Errorf("NewScorer(%q) = %v, %v", name, s, err)
		}
	}
	if _, err := NewScorer("neural", 1); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewScorer(neural) error = %v, want ErrInvalidConfig", err)
	}
}

func TestStaticScorer(t *testing.T) {
	s := StaticScorer{Prediction: Prediction{Anomalous: true, Score: 91}}
	got, _ := s.Score(context.Background(), Features{})
	if !got.Anomalous || got.Score != 91 {
		t.Errorf("Score() = %+v", got)
	}
}
