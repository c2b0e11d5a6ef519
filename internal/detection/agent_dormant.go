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

// DormantAccountDetector flags accounts that suddenly transact after a long
// silence.
type DormantAccountDetector struct {
	*settings[DormantConfig]
	store RelationshipStore
}

// NewDormantAccountDetector creates a new dormant account detector.
func NewDormantAccountDetector(store RelationshipStore, cfg DormantConfig) *DormantAccountDetector {
	return &DormantAccountDetector{
		settings: newSettings(cfg, func(c DormantConfig) error {
			if c.InactiveDays <= 0 {
				return errors.New("inactive_days must be positive")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (d *DormantAccountDetector) Type() DetectorType { return DetectorDormantAccount }

// Check finds the latest prior transaction touching the account. Accounts
// with no prior activity are new, not dormant.
func (d *DormantAccountDetector) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return miss(DetectorDormantAccount), nil
	}

	agg, err := d.store.AggregateTransactions(ctx, TransactionFilter{
		AccountID:      tx.AccountID,
		Direction:      DirectionEither,
		ExcludeEventID: tx.ID,
	})
	if err != nil {
		return miss(DetectorDormantAccount), fmt.Errorf("failed to find last activity: %w", err)
	}
	if agg.Count == 0 || agg.Latest.IsZero() {
		return miss(DetectorDormantAccount), nil
	}

	days := int(occurredAt(tx).Sub(agg.Latest) / (24 * time.Hour))
	if days <= cfg.InactiveDays {
		return miss(DetectorDormantAccount), nil
	}
	return hit(DetectorDormantAccount, cfg.Score,
		"Dormant Account Transaction: Last active %d days ago", days), nil
}
