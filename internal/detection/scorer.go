// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Features is the input of the predictive step.
type Features struct {
	Amount         float64
	HistoricalMean float64

	// WindowAverage is the mean amount of the account's previous window
	// entries, not counting the current event. WindowSize is their count.
	WindowAverage float64
	WindowSize    int

	// PriorSignals are the detectors that already fired for this event.
	PriorSignals []DetectorType
}

// Prediction is the output of the predictive step.
type Prediction struct {
	Anomalous bool
	Score     int
}

// Scorer is the pluggable predictive model of the behavioral layer.
type Scorer interface {
	Score(ctx context.Context, f Features) (Prediction, error)
}

// Scorer names accepted by NewScorer.
const (
	ScorerRatio  = "ratio"
	ScorerRandom = "random"
	ScorerStatic = "static"
)

// NewScorer returns the named scorer. seed is only used by the random scorer.
func NewScorer(name string, seed uint64) (Scorer, error) {
	switch name {
	case ScorerRatio, "":
		return RatioScorer{}, nil
	case ScorerRandom:
		return NewRandomScorer(seed), nil
	case ScorerStatic:
		return StaticScorer{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown scorer %q", ErrInvalidConfig, name)
	}
}

const (
	spikeFactor      = 3
	minWindowHistory = 2
	maxSignalBias    = 6
)

// RatioScorer is the deterministic default. An amount above three times the
// recent window average, with at least two earlier window entries, is
// anomalous and scores 85..99 growing with the ratio. Everything else scores
// 60..80 and is never anomalous. Each prior signal adds 2 points, capped at
// 6, within the band.
type RatioScorer struct{}

// Score implements Scorer.
func (RatioScorer) Score(_ context.Context, f Features) (Prediction, error) {
	bias := min(2*len(f.PriorSignals), maxSignalBias)

	if f.WindowSize >= minWindowHistory && f.WindowAverage > 0 && f.Amount > spikeFactor*f.WindowAverage {
		ratio := f.Amount / f.WindowAverage
		score := 85 + int((ratio-spikeFactor)*2) + bias
		return Prediction{Anomalous: true, Score: clamp(score, 85, 99)}, nil
	}

	score := 60
	if f.WindowAverage > 0 {
		score += int(20 * f.Amount / (spikeFactor * f.WindowAverage))
	}
	return Prediction{Score: clamp(score+bias, 60, 80)}, nil
}

// RandomScorer flags 10% of events at random and scores by the window spike
// band. It stands in for an untrained model in demos and load tests.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScorer creates a RandomScorer with a fixed seed.
func NewRandomScorer(seed uint64) *RandomScorer {
	return &RandomScorer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Score implements Scorer.
func (s *RandomScorer) Score(_ context.Context, f Features) (Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	anomalous := s.rng.Float64() < 0.1
	if f.Amount > spikeFactor*f.WindowAverage {
		return Prediction{Anomalous: anomalous, Score: 85 + s.rng.IntN(15)}, nil
	}
	return Prediction{Anomalous: anomalous, Score: 60 + s.rng.IntN(21)}, nil
}

// StaticScorer always returns the same prediction. The zero value never fires.
type StaticScorer struct {
	Prediction Prediction
}

// Score implements Scorer.
func (s StaticScorer) Score(context.Context, Features) (Prediction, error) {
	return s.Prediction, nil
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
