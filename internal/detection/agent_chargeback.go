// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ChargebackRatioPolicy computes the ratio of disputed volume to the spend it
// disputes.
type ChargebackRatioPolicy interface {
	Ratio(ctx context.Context, tx *TransactionEvent, chargebacks Aggregate, since time.Time) (float64, error)
}

// EstimatedSpendPolicy estimates the original spend as chargeback volume times
// Multiplier. With the default 1.2 the ratio is a constant 0.83, so the
// count threshold decides.
type EstimatedSpendPolicy struct {
	Multiplier float64
}

// Ratio implements ChargebackRatioPolicy.
func (p EstimatedSpendPolicy) Ratio(_ context.Context, _ *TransactionEvent, chargebacks Aggregate, _ time.Time) (float64, error) {
	spend := chargebacks.Sum * p.Multiplier
	if spend <= 0 {
		return 0, nil
	}
	return chargebacks.Sum / spend, nil
}

// spendKinds are the transaction kinds that represent money leaving the account.
var spendKinds = []TxKind{KindSale, KindPayment, KindTransfer, KindDebit, KindCashOut}

// ObservedSpendPolicy divides chargeback volume by the account's actual
// outgoing spend in the observation window.
type ObservedSpendPolicy struct {
	Store RelationshipStore
}

// Ratio implements ChargebackRatioPolicy. An account with disputes but no
// recorded spend has ratio 1.
func (p ObservedSpendPolicy) Ratio(ctx context.Context, tx *TransactionEvent, chargebacks Aggregate, since time.Time) (float64, error) {
	spend, err := p.Store.AggregateTransactions(ctx, TransactionFilter{
		AccountID: tx.AccountID,
		Direction: DirectionOutgoing,
		Kinds:     spendKinds,
		Since:     since,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to aggregate spend: %w", err)
	}
	switch {
	case spend.Sum > 0:
		return chargebacks.Sum / spend.Sum, nil
	case chargebacks.Sum > 0:
		return 1, nil
	default:
		return 0, nil
	}
}

// NewChargebackRatioPolicy returns the policy named in cfg.
func NewChargebackRatioPolicy(cfg ChargebackConfig, store RelationshipStore) ChargebackRatioPolicy {
	if cfg.RatioPolicy == RatioObserved {
		return ObservedSpendPolicy{Store: store}
	}
	return EstimatedSpendPolicy{Multiplier: cfg.SpendMultiplier}
}

// ChargebackDetector flags accounts that repeatedly dispute transactions.
// It only runs for REFUND and CHARGEBACK events.
type ChargebackDetector struct {
	*settings[ChargebackConfig]
	store  RelationshipStore
	policy ChargebackRatioPolicy
}

// NewChargebackDetector creates a new chargeback abuse detector.
func NewChargebackDetector(store RelationshipStore, cfg ChargebackConfig) *ChargebackDetector {
	d := &ChargebackDetector{
		settings: newSettings(cfg, validateChargeback),
		store:    store,
		policy:   NewChargebackRatioPolicy(cfg, store),
	}
	d.apply = func(c ChargebackConfig) { d.policy = NewChargebackRatioPolicy(c, store) }
	return d
}

// Type returns the detector type.
func (d *ChargebackDetector) Type() DetectorType { return DetectorChargeback }

// Check evaluates the account's dispute history.
func (d *ChargebackDetector) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	d.mu.RLock()
	cfg, enabled, policy := d.config, d.enabled, d.policy
	d.mu.RUnlock()

	if !enabled || (tx.Kind != KindRefund && tx.Kind != KindChargeback) {
		return miss(DetectorChargeback), nil
	}

	since := occurredAt(tx).Add(-cfg.Window)
	agg, err := d.store.AggregateTransactions(ctx, TransactionFilter{
		AccountID: tx.AccountID,
		Direction: DirectionEither,
		Kinds:     []TxKind{KindRefund, KindChargeback},
		Since:     since,
	})
	if err != nil {
		return miss(DetectorChargeback), fmt.Errorf("failed to aggregate chargebacks: %w", err)
	}
	if agg.Count < cfg.MinCount {
		return miss(DetectorChargeback), nil
	}

	ratio, err := policy.Ratio(ctx, tx, agg, since)
	if err != nil {
		return miss(DetectorChargeback), err
	}
	if ratio < cfg.MinRatio {
		return miss(DetectorChargeback), nil
	}
	return hit(DetectorChargeback, cfg.Score,
		"Account Chargeback Abuse (%d refunds, %.0f%% ratio)", agg.Count, ratio*100), nil
}

func validateChargeback(c ChargebackConfig) error {
	if c.Window <= 0 || c.MinCount <= 0 {
		return errors.New("window and min_count must be positive")
	}
	if c.RatioPolicy != RatioEstimated && c.RatioPolicy != RatioObserved {
		return fmt.Errorf("unknown ratio_policy %q", c.RatioPolicy)
	}
	if c.RatioPolicy == RatioEstimated && c.SpendMultiplier <= 0 {
		return errors.New("spend_multiplier must be positive")
	}
	return positiveScore(c.Score)
}

// occurredAt anchors observation windows on the event time.
func occurredAt(tx *TransactionEvent) time.Time {
	if tx.OccurredAt.IsZero() {
		return time.Now()
	}
	return tx.OccurredAt
}
