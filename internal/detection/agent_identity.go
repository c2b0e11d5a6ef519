// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// IdentityCollisionDetector flags new accounts whose identity attributes
// already belong to another account.
type IdentityCollisionDetector struct {
	*settings[IdentityCollisionConfig]
	store RelationshipStore
}

// NewIdentityCollisionDetector creates a new identity collision detector.
func NewIdentityCollisionDetector(store RelationshipStore, cfg IdentityCollisionConfig) *IdentityCollisionDetector {
	return &IdentityCollisionDetector{
		settings: newSettings(cfg, func(c IdentityCollisionConfig) error {
			if c.MinMatches < 1 || c.MinMatches > 3 {
				return errors.New("min_matches must be between 1 and 3")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (d *IdentityCollisionDetector) Type() DetectorType { return DetectorIdentityCollision }

// CheckAccount matches ktp, address and phone against other accounts.
func (d *IdentityCollisionDetector) CheckAccount(ctx context.Context, acc *AccountEvent) (Signal, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return miss(DetectorIdentityCollision), nil
	}

	present := 0
	for _, v := range []string{acc.KTP, acc.Address, acc.Phone} {
		if v != "" {
			present++
		}
	}
	if present < cfg.MinMatches {
		return miss(DetectorIdentityCollision), nil
	}

	matches, err := d.store.FindIdentityMatches(ctx, acc, cfg.MinMatches)
	if err != nil {
		return miss(DetectorIdentityCollision), fmt.Errorf("failed to find identity matches: %w", err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if m.AccountID != acc.AccountID && m.Matches >= cfg.MinMatches {
			ids = append(ids, m.AccountID)
		}
	}
	if len(ids) == 0 {
		return miss(DetectorIdentityCollision), nil
	}
	return hit(DetectorIdentityCollision, cfg.Score,
		"Stolen Identity Detected: Matches found with %s", strings.Join(ids, ", ")), nil
}

// identityAttributes is the fixed order attributes are checked and reported in.
var identityAttributes = []string{"ktp", "address", "phone", "name"}

// IdentityWatchlistDetector flags accounts whose attributes appear on the
// known-fraud identity watchlists.
type IdentityWatchlistDetector struct {
	*settings[IdentityWatchlistConfig]
	store StateStore
}

// NewIdentityWatchlistDetector creates a new fraud identity watchlist detector.
func NewIdentityWatchlistDetector(store StateStore, cfg IdentityWatchlistConfig) *IdentityWatchlistDetector {
	return &IdentityWatchlistDetector{
		settings: newSettings(cfg, func(c IdentityWatchlistConfig) error {
			if c.MinMatches < 1 || c.MinMatches > len(identityAttributes) {
				return fmt.Errorf("min_matches must be between 1 and %d", len(identityAttributes))
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (d *IdentityWatchlistDetector) Type() DetectorType { return DetectorIdentityWatchlist }

// CheckAccount looks up each attribute in its watchlist set.
func (d *IdentityWatchlistDetector) CheckAccount(ctx context.Context, acc *AccountEvent) (Signal, error) {
	cfg, enabled := d.snapshot()
	if !enabled {
		return miss(DetectorIdentityWatchlist), nil
	}

	attrs := acc.Attributes()
	var matched []string
	for _, name := range identityAttributes {
		value, ok := attrs[name]
		if !ok {
			continue
		}
		member, err := d.store.IsMember(ctx, cfg.SetPrefix+name, value)
		if err != nil {
			return miss(DetectorIdentityWatchlist), fmt.Errorf("failed to check %s watchlist: %w", name, err)
		}
		if member {
			matched = append(matched, name)
		}
	}

	if len(matched) < cfg.MinMatches {
		return miss(DetectorIdentityWatchlist), nil
	}
	return hit(DetectorIdentityWatchlist, cfg.Score,
		"Fraud Identity Watchlist Match: %s", strings.Join(matched, ", ")), nil
}
