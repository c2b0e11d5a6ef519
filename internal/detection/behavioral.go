// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// BehavioralResult is the outcome of the behavioral layer. PredictiveScore is
// reported even when nothing fired.
type BehavioralResult struct {
	Signal          Signal
	PredictiveScore int
}

// BehavioralLayer scores an event against the account's history and its
// short-term sliding window. Steps run in order and the first hit wins:
// cumulative amount, z-score, predictive scorer. Callers serialize events of
// the same account; the Engine holds the account lock across Evaluate.
type BehavioralLayer struct {
	config BehavioralConfig
	state  StateStore
	rel    RelationshipStore
	scorer Scorer
}

// NewBehavioralLayer creates the behavioral layer. A nil scorer uses RatioScorer.
func NewBehavioralLayer(state StateStore, rel RelationshipStore, scorer Scorer, cfg BehavioralConfig) *BehavioralLayer {
	if scorer == nil {
		scorer = RatioScorer{}
	}
	return &BehavioralLayer{
		config: cfg,
		state:  state,
		rel:    rel,
		scorer: scorer,
	}
}

// Evaluate runs the behavioral steps. prior lists detectors that already fired
// for this event; it only biases the predictive scorer.
func (l *BehavioralLayer) Evaluate(ctx context.Context, tx *TransactionEvent, prior []DetectorType) (BehavioralResult, []DetectorFailure) {
	var failures []DetectorFailure
	fail := func(t DetectorType, err error) {
		logging.Ctx(ctx).Warn().Err(err).Str("detector", string(t)).Msg("behavioral step skipped")
		metrics.RecordDetector(string(t), 0, err)
		failures = append(failures, DetectorFailure{Detector: t, Err: err})
	}

	window, err := l.pushWindow(ctx, tx)
	if err != nil {
		fail(DetectorPredictive, err)
	}

	if sig, err := l.checkCumulative(ctx, tx); err != nil {
		fail(DetectorMonetaryFixed, err)
	} else if sig.Fired {
		return BehavioralResult{Signal: sig}, failures
	}

	profile, err := l.profile(ctx, tx)
	if err != nil {
		fail(DetectorMonetaryZScore, err)
	} else if sig := l.checkZScore(tx, profile); sig.Fired {
		return BehavioralResult{Signal: sig}, failures
	}

	features := windowFeatures(tx, window)
	features.HistoricalMean = profile.Mean
	features.PriorSignals = prior

	start := time.Now()
	pred, err := l.scorer.Score(ctx, features)
	metrics.RecordDetector(string(DetectorPredictive), time.Since(start), err)
	if err != nil {
		fail(DetectorPredictive, fmt.Errorf("failed to score: %w", err))
		return BehavioralResult{}, failures
	}
	metrics.BehavioralScore.Observe(float64(pred.Score))

	result := BehavioralResult{PredictiveScore: pred.Score, Signal: miss(DetectorPredictive)}
	if pred.Anomalous && pred.Score > l.config.PredictiveMinScore {
		result.Signal = hit(DetectorPredictive, pred.Score,
			"AI Behavioral Deviation Detected (%d%% Risk)", pred.Score)
	}
	return result, failures
}

// pushWindow appends the event to the account window and returns the window
// as it was before the push.
func (l *BehavioralLayer) pushWindow(ctx context.Context, tx *TransactionEvent) ([]WindowEntry, error) {
	entry, err := json.Marshal(WindowEntry{EventID: tx.ID, Amount: tx.Amount, At: occurredAt(tx)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode window entry: %w", err)
	}

	raw, err := l.state.PushWindow(ctx, StateKey(KeyWindow, tx.AccountID), entry, l.config.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to push window: %w", err)
	}

	window := make([]WindowEntry, 0, len(raw))
	for _, r := range raw {
		var e WindowEntry
		if err := json.Unmarshal(r, &e); err != nil {
			continue
		}
		if e.EventID == tx.ID {
			continue
		}
		window = append(window, e)
	}
	return window, nil
}

func (l *BehavioralLayer) checkCumulative(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	agg, err := l.rel.AggregateTransactions(ctx, TransactionFilter{
		AccountID:      tx.AccountID,
		Direction:      DirectionOutgoing,
		Since:          occurredAt(tx).Add(-l.config.CumulativeWindow),
		ExcludeEventID: tx.ID,
	})
	if err != nil {
		return miss(DetectorMonetaryFixed), fmt.Errorf("failed to aggregate outgoing volume: %w", err)
	}
	if agg.Sum+tx.Amount <= l.config.CumulativeThreshold {
		return miss(DetectorMonetaryFixed), nil
	}
	return hit(DetectorMonetaryFixed, l.config.CumulativeScore,
		"Monetary Anomaly (Fixed): Cumulative > %.0f", l.config.CumulativeThreshold), nil
}

// profile builds the account's amount profile from all prior outgoing
// transactions. Accounts without history get the fallback profile.
func (l *BehavioralLayer) profile(ctx context.Context, tx *TransactionEvent) (AccountProfile, error) {
	agg, err := l.rel.AggregateTransactions(ctx, TransactionFilter{
		AccountID:      tx.AccountID,
		Direction:      DirectionOutgoing,
		ExcludeEventID: tx.ID,
	})
	if err != nil {
		return AccountProfile{Mean: l.config.FallbackMean, StdDev: l.config.FallbackStdDev},
			fmt.Errorf("failed to load account profile: %w", err)
	}
	return buildProfile(agg, l.config), nil
}

func buildProfile(agg Aggregate, cfg BehavioralConfig) AccountProfile {
	p := AccountProfile{Mean: cfg.FallbackMean, StdDev: cfg.FallbackStdDev, Count: agg.Count}
	if agg.Count == 0 {
		return p
	}
	p.Mean = agg.Mean
	p.StdDev = math.Max(math.Sqrt(max(agg.Variance, 0)), 1)
	return p
}

func (l *BehavioralLayer) checkZScore(tx *TransactionEvent, p AccountProfile) Signal {
	z := (tx.Amount - p.Mean) / math.Max(p.StdDev, 1)
	if z <= l.config.ZScoreThreshold {
		return miss(DetectorMonetaryZScore)
	}
	return hit(DetectorMonetaryZScore, l.config.ZScoreScore,
		"Monetary Anomaly (Behavioral): Z-Score %.2f > %.0f", z, l.config.ZScoreThreshold)
}

func windowFeatures(tx *TransactionEvent, window []WindowEntry) Features {
	f := Features{Amount: tx.Amount, WindowSize: len(window)}
	if len(window) == 0 {
		return f
	}
	var sum float64
	for _, e := range window {
		sum += e.Amount
	}
	f.WindowAverage = sum / float64(len(window))
	return f
}
