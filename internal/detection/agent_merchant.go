// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// MerchantCashbackDetector flags merchants paying out an unusual share of
// their sales volume as cashback.
type MerchantCashbackDetector struct {
	*settings[MerchantCashbackConfig]
	store RelationshipStore
}

// NewMerchantCashbackDetector creates a new merchant cashback detector.
func NewMerchantCashbackDetector(store RelationshipStore, cfg MerchantCashbackConfig) *MerchantCashbackDetector {
	return &MerchantCashbackDetector{
		settings: newSettings(cfg, func(c MerchantCashbackConfig) error {
			if c.Window <= 0 || c.MinCount <= 0 || c.MinRate <= 0 {
				return errors.New("window, min_count and min_rate must be positive")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (d *MerchantCashbackDetector) Type() DetectorType { return DetectorMerchantCashback }

// Check compares the merchant's cashback volume to its sales volume.
func (d *MerchantCashbackDetector) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := d.snapshot()
	if !enabled || tx.MerchantID == "" {
		return miss(DetectorMerchantCashback), nil
	}

	byKind, err := d.store.AggregateTransactionsByKind(ctx, TransactionFilter{
		MerchantID: tx.MerchantID,
		Kinds:      []TxKind{KindSale, KindCashback},
		Since:      occurredAt(tx).Add(-cfg.Window),
	})
	if err != nil {
		return miss(DetectorMerchantCashback), fmt.Errorf("failed to aggregate merchant kinds: %w", err)
	}

	cashback, sales := byKind[KindCashback], byKind[KindSale]
	var rate float64
	if sales.Sum > 0 {
		rate = cashback.Sum / sales.Sum
	}
	if cashback.Count < cfg.MinCount || rate < cfg.MinRate {
		return miss(DetectorMerchantCashback), nil
	}
	return hit(DetectorMerchantCashback, cfg.Score,
		"High Merchant Cashback Rate: %.1f%% (%d trx)", rate*100, cashback.Count), nil
}

// MerchantBehaviorDetector flags amounts far outside a merchant's usual range.
type MerchantBehaviorDetector struct {
	*settings[MerchantBehaviorConfig]
	store RelationshipStore
}

// NewMerchantBehaviorDetector creates a new merchant behavior detector.
func NewMerchantBehaviorDetector(store RelationshipStore, cfg MerchantBehaviorConfig) *MerchantBehaviorDetector {
	return &MerchantBehaviorDetector{
		settings: newSettings(cfg, func(c MerchantBehaviorConfig) error {
			if c.Window <= 0 || c.ZScoreThreshold <= 0 || c.DefaultStdDev <= 0 {
				return errors.New("window, zscore_threshold and default_stddev must be positive")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (d *MerchantBehaviorDetector) Type() DetectorType { return DetectorMerchantBehavior }

// Check computes the z-score of the amount against the merchant's history,
// excluding the event itself.
func (d *MerchantBehaviorDetector) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := d.snapshot()
	if !enabled || tx.MerchantID == "" {
		return miss(DetectorMerchantBehavior), nil
	}

	agg, err := d.store.AggregateTransactions(ctx, TransactionFilter{
		MerchantID:     tx.MerchantID,
		Since:          occurredAt(tx).Add(-cfg.Window),
		ExcludeEventID: tx.ID,
	})
	if err != nil {
		return miss(DetectorMerchantBehavior), fmt.Errorf("failed to aggregate merchant history: %w", err)
	}

	mean, std := cfg.DefaultMean, cfg.DefaultStdDev
	if agg.Count > 0 {
		mean = agg.Mean
		std = math.Sqrt(agg.Variance)
		if std == 0 {
			std = 1
		}
	}

	z := (tx.Amount - mean) / std
	if z <= cfg.ZScoreThreshold {
		return miss(DetectorMerchantBehavior), nil
	}
	return hit(DetectorMerchantBehavior, cfg.Score,
		"Merchant Behavior Change: Z-Score %.2f (Amount spike)", z), nil
}
