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
	"sync/atomic"
	"time"

	"github.com/tomtom215/sentinel/internal/cache"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// DetectorFailure records a detector that could not run.
type DetectorFailure struct {
	Detector DetectorType
	Err      error
}

// ReactiveLayer runs the fast ordered rules. The first rule to fire ends the
// pass; later rules are not evaluated and their counters are not touched.
type ReactiveLayer struct {
	rules []Detector
}

// NewReactiveLayer builds the rules in evaluation order.
func NewReactiveLayer(store StateStore, cfg ReactiveConfig) *ReactiveLayer {
	return &ReactiveLayer{rules: []Detector{
		NewWatchlistRule(store, cfg.Watchlist),
		NewIPBlacklistRule(store, cfg.IPBlacklist),
		NewKeywordRule(cfg.Keyword),
		NewSmallTransactionRule(store, cfg.SmallTransaction),
		NewNightAccumulationRule(store, cfg.NightAccumulation),
		NewVelocityRule(store, cfg.Velocity),
		NewOffHoursRule(cfg.OffHours),
	}}
}

// Rules returns the rules in evaluation order.
func (l *ReactiveLayer) Rules() []Detector {
	return l.rules
}

// Evaluate returns the first fired signal, if any, plus the rules that failed
// before it. A failed rule is skipped.
func (l *ReactiveLayer) Evaluate(ctx context.Context, tx *TransactionEvent) (Signal, []DetectorFailure) {
	var failures []DetectorFailure

	for _, rule := range l.rules {
		if !rule.Enabled() {
			continue
		}

		start := time.Now()
		sig, err := rule.Check(ctx, tx)
		metrics.RecordDetector(string(rule.Type()), time.Since(start), err)

		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("detector", string(rule.Type())).Msg("reactive rule skipped")
			failures = append(failures, DetectorFailure{Detector: rule.Type(), Err: err})
			continue
		}
		if sig.Fired {
			return sig, failures
		}
	}
	return Signal{}, failures
}

// WatchlistRule blocks accounts on the dynamic watchlist.
type WatchlistRule struct {
	*settings[SetRuleConfig]
	store StateStore
}

// NewWatchlistRule creates the watchlist rule.
func NewWatchlistRule(store StateStore, cfg SetRuleConfig) *WatchlistRule {
	return &WatchlistRule{settings: newSettings(cfg, validateSetRule), store: store}
}

// Type returns the detector type.
func (r *WatchlistRule) Type() DetectorType { return DetectorWatchlist }

// Check evaluates the event against the watchlist.
func (r *WatchlistRule) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled {
		return miss(DetectorWatchlist), nil
	}

	member, err := r.store.IsMember(ctx, cfg.Set, tx.AccountID)
	if err != nil {
		return miss(DetectorWatchlist), fmt.Errorf("failed to check watchlist: %w", err)
	}
	if !member {
		return miss(DetectorWatchlist), nil
	}
	return hit(DetectorWatchlist, cfg.Score, "Account in Dynamic Watchlist"), nil
}

// IPBlacklistRule blocks transactions from blacklisted source addresses.
type IPBlacklistRule struct {
	*settings[SetRuleConfig]
	store StateStore
}

// NewIPBlacklistRule creates the IP blacklist rule.
func NewIPBlacklistRule(store StateStore, cfg SetRuleConfig) *IPBlacklistRule {
	return &IPBlacklistRule{settings: newSettings(cfg, validateSetRule), store: store}
}

// Type returns the detector type.
func (r *IPBlacklistRule) Type() DetectorType { return DetectorIPBlacklist }

// Check evaluates the event against the IP blacklist.
func (r *IPBlacklistRule) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled || tx.IPAddress == "" {
		return miss(DetectorIPBlacklist), nil
	}

	member, err := r.store.IsMember(ctx, cfg.Set, tx.IPAddress)
	if err != nil {
		return miss(DetectorIPBlacklist), fmt.Errorf("failed to check ip blacklist: %w", err)
	}
	if !member {
		return miss(DetectorIPBlacklist), nil
	}
	return hit(DetectorIPBlacklist, cfg.Score, "IP Blacklist Match: %s", tx.IPAddress), nil
}

func validateSetRule(c SetRuleConfig) error {
	if c.Set == "" {
		return errors.New("set must be named")
	}
	return positiveScore(c.Score)
}

// KeywordRule blocks transactions whose description mentions credentials.
type KeywordRule struct {
	*settings[KeywordConfig]
	matcher atomic.Pointer[cache.AhoCorasick]
}

// NewKeywordRule creates the keyword rule.
func NewKeywordRule(cfg KeywordConfig) *KeywordRule {
	r := &KeywordRule{settings: newSettings(cfg, func(c KeywordConfig) error {
		if len(c.Keywords) == 0 {
			return errors.New("keywords must not be empty")
		}
		return positiveScore(c.Score)
	})}
	r.apply = func(c KeywordConfig) { r.matcher.Store(cache.NewAhoCorasick(c.Keywords)) }
	r.apply(cfg)
	return r
}

// Type returns the detector type.
func (r *KeywordRule) Type() DetectorType { return DetectorSensitiveKeyword }

// Check evaluates the description for sensitive keywords.
func (r *KeywordRule) Check(_ context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled || tx.Description == "" {
		return miss(DetectorSensitiveKeyword), nil
	}

	m, ok := r.matcher.Load().SearchFirst(tx.Description)
	if !ok {
		return miss(DetectorSensitiveKeyword), nil
	}
	return hit(DetectorSensitiveKeyword, cfg.Score, "Sensitive Keyword Detected: %s", m.Pattern), nil
}

// SmallTransactionRule counts small-amount transactions per account.
type SmallTransactionRule struct {
	*settings[SmallTransactionConfig]
	store StateStore
}

// NewSmallTransactionRule creates the repeated small transaction rule.
func NewSmallTransactionRule(store StateStore, cfg SmallTransactionConfig) *SmallTransactionRule {
	return &SmallTransactionRule{
		settings: newSettings(cfg, func(c SmallTransactionConfig) error {
			if c.MinAmount > c.MaxAmount {
				return errors.New("min_amount must not exceed max_amount")
			}
			if c.Window <= 0 {
				return errors.New("window must be positive")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (r *SmallTransactionRule) Type() DetectorType { return DetectorSmallTransaction }

// Check increments the small transaction counter for amounts in range.
func (r *SmallTransactionRule) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled || tx.Amount < cfg.MinAmount || tx.Amount > cfg.MaxAmount {
		return miss(DetectorSmallTransaction), nil
	}

	count, err := r.store.Incr(ctx, StateKey(KeySmallTransactions, tx.AccountID), cfg.Window)
	if err != nil {
		return miss(DetectorSmallTransaction), fmt.Errorf("failed to count small transactions: %w", err)
	}
	if count <= cfg.MaxCount {
		return miss(DetectorSmallTransaction), nil
	}
	return hit(DetectorSmallTransaction, cfg.Score,
		"Repeated Small Transaction: %dx in %s", count, shortDuration(cfg.Window)), nil
}

// NightAccumulationRule accumulates night-time value per account.
type NightAccumulationRule struct {
	*settings[NightAccumulationConfig]
	store StateStore
}

// NewNightAccumulationRule creates the night value accumulation rule.
func NewNightAccumulationRule(store StateStore, cfg NightAccumulationConfig) *NightAccumulationRule {
	return &NightAccumulationRule{
		settings: newSettings(cfg, func(c NightAccumulationConfig) error {
			if c.Window <= 0 {
				return errors.New("window must be positive")
			}
			if c.MaxAmount <= 0 {
				return errors.New("max_amount must be positive")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (r *NightAccumulationRule) Type() DetectorType { return DetectorNightAccumulation }

// Check adds the amount to the night accumulator during night hours.
func (r *NightAccumulationRule) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled {
		return miss(DetectorNightAccumulation), nil
	}
	hour, ok := tx.Hour()
	if !ok || !inHourRange(hour, cfg.StartHour, cfg.EndHour) {
		return miss(DetectorNightAccumulation), nil
	}

	cum, err := r.store.IncrFloat(ctx, StateKey(KeyNightCumulative, tx.AccountID), tx.Amount, cfg.Window)
	if err != nil {
		return miss(DetectorNightAccumulation), fmt.Errorf("failed to accumulate night value: %w", err)
	}
	if cum <= cfg.MaxAmount {
		return miss(DetectorNightAccumulation), nil
	}
	return hit(DetectorNightAccumulation, cfg.Score,
		"Time & Value Anomaly: Night accumulation %.0f > %s", cum, shortAmount(cfg.MaxAmount)), nil
}

// VelocityRule counts every transaction per account within the window.
type VelocityRule struct {
	*settings[VelocityConfig]
	store StateStore
}

// NewVelocityRule creates the recency velocity rule.
func NewVelocityRule(store StateStore, cfg VelocityConfig) *VelocityRule {
	return &VelocityRule{
		settings: newSettings(cfg, func(c VelocityConfig) error {
			if c.Window <= 0 || c.MaxCount <= 0 {
				return errors.New("window and max_count must be positive")
			}
			return positiveScore(c.Score)
		}),
		store: store,
	}
}

// Type returns the detector type.
func (r *VelocityRule) Type() DetectorType { return DetectorVelocity }

// Check increments the recency counter.
func (r *VelocityRule) Check(ctx context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled {
		return miss(DetectorVelocity), nil
	}

	count, err := r.store.Incr(ctx, StateKey(KeyRecency, tx.AccountID), cfg.Window)
	if err != nil {
		return miss(DetectorVelocity), fmt.Errorf("failed to count recent transactions: %w", err)
	}
	if count <= cfg.MaxCount {
		return miss(DetectorVelocity), nil
	}
	return hit(DetectorVelocity, cfg.Score,
		"Recency Anomaly (Velocity): >%d trx in %.0fs", cfg.MaxCount, cfg.Window.Seconds()), nil
}

// OffHoursRule flags transactions in the dead of night. It is stateless.
type OffHoursRule struct {
	*settings[OffHoursConfig]
}

// NewOffHoursRule creates the off-hours rule.
func NewOffHoursRule(cfg OffHoursConfig) *OffHoursRule {
	return &OffHoursRule{settings: newSettings(cfg, func(c OffHoursConfig) error {
		if c.StartHour < 0 || c.StartHour > 23 || c.EndHour < 0 || c.EndHour > 23 {
			return errors.New("hours must be between 0 and 23")
		}
		return positiveScore(c.Score)
	})}
}

// Type returns the detector type.
func (r *OffHoursRule) Type() DetectorType { return DetectorOffHours }

// Check evaluates the transaction hour.
func (r *OffHoursRule) Check(_ context.Context, tx *TransactionEvent) (Signal, error) {
	cfg, enabled := r.snapshot()
	if !enabled {
		return miss(DetectorOffHours), nil
	}
	hour, ok := tx.Hour()
	if !ok || !inHourRange(hour, cfg.StartHour, cfg.EndHour) {
		return miss(DetectorOffHours), nil
	}
	return hit(DetectorOffHours, cfg.Score, "Time Anomaly: Transaction at %s (Off-hours)", tx.TimeOfDay()), nil
}

// inHourRange reports whether hour lies in [start, end], wrapping past
// midnight when start > end.
func inHourRange(hour, start, end int) bool {
	if start > end {
		return hour >= start || hour <= end
	}
	return hour >= start && hour <= end
}

// shortDuration renders whole hours as "1h" and whole minutes as "30m".
func shortDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	default:
		return d.String()
	}
}

// shortAmount renders whole millions in the local "jt" (juta) notation.
func shortAmount(v float64) string {
	if v >= 1_000_000 && math.Mod(v, 1_000_000) == 0 {
		return fmt.Sprintf("%.0fjt", v/1_000_000)
	}
	return fmt.Sprintf("%.0f", v)
}
