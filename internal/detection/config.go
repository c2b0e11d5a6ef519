// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"errors"
	"fmt"
	"time"
)

// FailurePolicy decides what happens when a store-backed detector cannot run.
type FailurePolicy string

const (
	// FailOpen skips the check and keeps processing.
	FailOpen FailurePolicy = "open"
	// FailClosed raises a blocking alert for blocking-class detectors that
	// could not run.
	FailClosed FailurePolicy = "closed"
)

// RatioPolicyName selects the chargeback ratio computation.
type RatioPolicyName string

const (
	// RatioEstimated divides chargeback volume by an estimate of the original
	// spend (chargeback volume times SpendMultiplier).
	RatioEstimated RatioPolicyName = "estimated"
	// RatioObserved divides chargeback volume by the account's observed
	// outgoing spend in the same window.
	RatioObserved RatioPolicyName = "observed"
)

// SetRuleConfig configures a membership rule backed by a named set.
type SetRuleConfig struct {
	// Set is the state store set consulted for membership.
	Set string `json:"set" koanf:"set"`

	// Score for generated alerts.
	Score int `json:"score" koanf:"score"`
}

// KeywordConfig configures the sensitive keyword rule.
type KeywordConfig struct {
	// Keywords are matched case-insensitively as substrings of the description.
	Keywords []string `json:"keywords" koanf:"keywords"`

	Score int `json:"score" koanf:"score"`
}

// SmallTransactionConfig configures the repeated small transaction rule.
type SmallTransactionConfig struct {
	// MinAmount and MaxAmount bound the small range, inclusive.
	MinAmount float64 `json:"min_amount" koanf:"min_amount"`
	MaxAmount float64 `json:"max_amount" koanf:"max_amount"`

	// Window is the counter expiry.
	Window time.Duration `json:"window" koanf:"window"`

	// MaxCount is the count that must be exceeded to fire.
	MaxCount int64 `json:"max_count" koanf:"max_count"`

	Score int `json:"score" koanf:"score"`
}

// NightAccumulationConfig configures the night value accumulation rule.
type NightAccumulationConfig struct {
	// StartHour and EndHour bound the night period: hour >= StartHour or hour <= EndHour.
	StartHour int `json:"start_hour" koanf:"start_hour"`
	EndHour   int `json:"end_hour" koanf:"end_hour"`

	Window time.Duration `json:"window" koanf:"window"`

	// MaxAmount is the cumulative amount that must be exceeded to fire.
	MaxAmount float64 `json:"max_amount" koanf:"max_amount"`

	Score int `json:"score" koanf:"score"`
}

// VelocityConfig configures the recency velocity rule.
type VelocityConfig struct {
	Window   time.Duration `json:"window" koanf:"window"`
	MaxCount int64         `json:"max_count" koanf:"max_count"`
	Score    int           `json:"score" koanf:"score"`
}

// OffHoursConfig configures the off-hours rule.
type OffHoursConfig struct {
	StartHour int `json:"start_hour" koanf:"start_hour"`
	EndHour   int `json:"end_hour" koanf:"end_hour"`
	Score     int `json:"score" koanf:"score"`
}

// ReactiveConfig groups the reactive layer rules.
type ReactiveConfig struct {
	Watchlist         SetRuleConfig           `json:"watchlist" koanf:"watchlist"`
	IPBlacklist       SetRuleConfig           `json:"ip_blacklist" koanf:"ip_blacklist"`
	Keyword           KeywordConfig           `json:"keyword" koanf:"keyword"`
	SmallTransaction  SmallTransactionConfig  `json:"small_transaction" koanf:"small_transaction"`
	NightAccumulation NightAccumulationConfig `json:"night_accumulation" koanf:"night_accumulation"`
	Velocity          VelocityConfig          `json:"velocity" koanf:"velocity"`
	OffHours          OffHoursConfig          `json:"off_hours" koanf:"off_hours"`
}

// DefaultReactiveConfig returns the production thresholds.
func DefaultReactiveConfig() ReactiveConfig {
	return ReactiveConfig{
		Watchlist:   SetRuleConfig{Set: "watchlist", Score: 99},
		IPBlacklist: SetRuleConfig{Set: "ip_blacklist", Score: 95},
		Keyword: KeywordConfig{
			Keywords: []string{"PIN", "OTP", "CVV", "CREDIT CARD", "PASSWORD"},
			Score:    88,
		},
		SmallTransaction: SmallTransactionConfig{
			MinAmount: 10_000,
			MaxAmount: 50_000,
			Window:    time.Hour,
			MaxCount:  5,
			Score:     85,
		},
		NightAccumulation: NightAccumulationConfig{
			StartHour: 22,
			EndHour:   5,
			Window:    8 * time.Hour,
			MaxAmount: 50_000_000,
			Score:     92,
		},
		Velocity: VelocityConfig{Window: time.Hour, MaxCount: 10, Score: 95},
		OffHours: OffHoursConfig{StartHour: 23, EndHour: 4, Score: 85},
	}
}

// ChargebackConfig configures the chargeback abuse agent.
type ChargebackConfig struct {
	Window   time.Duration `json:"window" koanf:"window"`
	MinCount int64         `json:"min_count" koanf:"min_count"`
	MinRatio float64       `json:"min_ratio" koanf:"min_ratio"`

	// RatioPolicy selects how the chargeback ratio is computed.
	RatioPolicy RatioPolicyName `json:"ratio_policy" koanf:"ratio_policy"`

	// SpendMultiplier is used by the estimated ratio policy.
	SpendMultiplier float64 `json:"spend_multiplier" koanf:"spend_multiplier"`

	Score int `json:"score" koanf:"score"`
}

// MerchantCashbackConfig configures the merchant cashback agent.
type MerchantCashbackConfig struct {
	Window   time.Duration `json:"window" koanf:"window"`
	MinCount int64         `json:"min_count" koanf:"min_count"`
	MinRate  float64       `json:"min_rate" koanf:"min_rate"`
	Score    int           `json:"score" koanf:"score"`
}

// MerchantBehaviorConfig configures the merchant behavior agent.
type MerchantBehaviorConfig struct {
	Window          time.Duration `json:"window" koanf:"window"`
	ZScoreThreshold float64       `json:"zscore_threshold" koanf:"zscore_threshold"`

	// DefaultMean and DefaultStdDev stand in when the merchant has no history.
	DefaultMean   float64 `json:"default_mean" koanf:"default_mean"`
	DefaultStdDev float64 `json:"default_stddev" koanf:"default_stddev"`

	Score int `json:"score" koanf:"score"`
}

// DormantConfig configures the dormant account agent.
type DormantConfig struct {
	// InactiveDays is the gap that must be exceeded to fire.
	InactiveDays int `json:"inactive_days" koanf:"inactive_days"`
	Score        int `json:"score" koanf:"score"`
}

// IdentityCollisionConfig configures the identity collision agent.
type IdentityCollisionConfig struct {
	MinMatches int `json:"min_matches" koanf:"min_matches"`
	Score      int `json:"score" koanf:"score"`
}

// IdentityWatchlistConfig configures the fraud identity watchlist agent.
type IdentityWatchlistConfig struct {
	// SetPrefix is prepended to the attribute name: watchlist_ktp, watchlist_phone...
	SetPrefix  string `json:"set_prefix" koanf:"set_prefix"`
	MinMatches int    `json:"min_matches" koanf:"min_matches"`
	Score      int    `json:"score" koanf:"score"`
}

// AgentConfig groups the specialized agents.
type AgentConfig struct {
	Chargeback        ChargebackConfig        `json:"chargeback" koanf:"chargeback"`
	MerchantCashback  MerchantCashbackConfig  `json:"merchant_cashback" koanf:"merchant_cashback"`
	MerchantBehavior  MerchantBehaviorConfig  `json:"merchant_behavior" koanf:"merchant_behavior"`
	Dormant           DormantConfig           `json:"dormant" koanf:"dormant"`
	IdentityCollision IdentityCollisionConfig `json:"identity_collision" koanf:"identity_collision"`
	IdentityWatchlist IdentityWatchlistConfig `json:"identity_watchlist" koanf:"identity_watchlist"`
}

// DefaultAgentConfig returns the production thresholds.
func DefaultAgentConfig() AgentConfig {
	week := 7 * 24 * time.Hour
	return AgentConfig{
		Chargeback: ChargebackConfig{
			Window:          week,
			MinCount:        3,
			MinRatio:        0.75,
			RatioPolicy:     RatioEstimated,
			SpendMultiplier: 1.2,
			Score:           88,
		},
		MerchantCashback: MerchantCashbackConfig{Window: week, MinCount: 3, MinRate: 0.3, Score: 85},
		MerchantBehavior: MerchantBehaviorConfig{
			Window:          30 * 24 * time.Hour,
			ZScoreThreshold: 5,
			DefaultMean:     1000,
			DefaultStdDev:   100,
			Score:           90,
		},
		Dormant:           DormantConfig{InactiveDays: 80, Score: 80},
		IdentityCollision: IdentityCollisionConfig{MinMatches: 2, Score: 95},
		IdentityWatchlist: IdentityWatchlistConfig{SetPrefix: "watchlist_", MinMatches: 2, Score: 99},
	}
}

// BehavioralConfig configures the behavioral layer.
type BehavioralConfig struct {
	// WindowSize is the number of recent transactions kept per account.
	WindowSize int `json:"window_size" koanf:"window_size"`

	// CumulativeWindow and CumulativeThreshold drive the fixed monetary check.
	CumulativeWindow    time.Duration `json:"cumulative_window" koanf:"cumulative_window"`
	CumulativeThreshold float64       `json:"cumulative_threshold" koanf:"cumulative_threshold"`
	CumulativeScore     int           `json:"cumulative_score" koanf:"cumulative_score"`

	ZScoreThreshold float64 `json:"zscore_threshold" koanf:"zscore_threshold"`
	ZScoreScore     int     `json:"zscore_score" koanf:"zscore_score"`

	// FallbackMean and FallbackStdDev stand in for accounts without history.
	FallbackMean   float64 `json:"fallback_mean" koanf:"fallback_mean"`
	FallbackStdDev float64 `json:"fallback_stddev" koanf:"fallback_stddev"`

	// PredictiveMinScore is the score the predictive scorer must exceed.
	PredictiveMinScore int `json:"predictive_min_score" koanf:"predictive_min_score"`
}

// DefaultBehavioralConfig returns the production thresholds.
func DefaultBehavioralConfig() BehavioralConfig {
	return BehavioralConfig{
		WindowSize:          5,
		CumulativeWindow:    30 * 24 * time.Hour,
		CumulativeThreshold: 100_000_000,
		CumulativeScore:     95,
		ZScoreThreshold:     5,
		ZScoreScore:         90,
		FallbackMean:        500_000,
		FallbackStdDev:      250_000,
		PredictiveMinScore:  80,
	}
}

// IdempotencyConfig configures duplicate event suppression.
type IdempotencyConfig struct {
	Enabled bool `json:"enabled" koanf:"enabled"`

	// DecisionTTL is how long a decision is replayed for a repeated event id.
	DecisionTTL time.Duration `json:"decision_ttl" koanf:"decision_ttl"`

	// LockTTL bounds how long an in-flight marker survives a crashed worker.
	LockTTL time.Duration `json:"lock_ttl" koanf:"lock_ttl"`
}

// EngineConfig configures the detection engine.
type EngineConfig struct {
	FailurePolicy FailurePolicy `json:"failure_policy" koanf:"failure_policy"`

	// PublishTimeout bounds each asynchronous alert publish.
	PublishTimeout time.Duration `json:"publish_timeout" koanf:"publish_timeout"`

	Reactive    ReactiveConfig    `json:"reactive" koanf:"reactive"`
	Agents      AgentConfig       `json:"agents" koanf:"agents"`
	Behavioral  BehavioralConfig  `json:"behavioral" koanf:"behavioral"`
	Idempotency IdempotencyConfig `json:"idempotency" koanf:"idempotency"`
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		FailurePolicy:  FailOpen,
		PublishTimeout: 5 * time.Second,
		Reactive:       DefaultReactiveConfig(),
		Agents:         DefaultAgentConfig(),
		Behavioral:     DefaultBehavioralConfig(),
		Idempotency: IdempotencyConfig{
			Enabled:     true,
			DecisionTTL: 24 * time.Hour,
			LockTTL:     30 * time.Second,
		},
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *EngineConfig) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.FailurePolicy {
	case FailOpen, FailClosed:
	default:
		add("failure_policy must be %q or %q, got %q", FailOpen, FailClosed, c.FailurePolicy)
	}
	if c.PublishTimeout <= 0 {
		add("publish_timeout must be positive")
	}

	r := c.Reactive
	if r.Watchlist.Set == "" || r.IPBlacklist.Set == "" {
		add("reactive watchlist and ip_blacklist sets must be named")
	}
	if r.SmallTransaction.MinAmount > r.SmallTransaction.MaxAmount {
		add("small_transaction min_amount %.0f exceeds max_amount %.0f",
			r.SmallTransaction.MinAmount, r.SmallTransaction.MaxAmount)
	}
	for name, w := range map[string]time.Duration{
		"small_transaction":  r.SmallTransaction.Window,
		"night_accumulation": r.NightAccumulation.Window,
		"velocity":           r.Velocity.Window,
	} {
		if w <= 0 {
			add("reactive %s window must be positive", name)
		}
	}
	for name, h := range map[string]int{
		"night_accumulation.start_hour": r.NightAccumulation.StartHour,
		"night_accumulation.end_hour":   r.NightAccumulation.EndHour,
		"off_hours.start_hour":          r.OffHours.StartHour,
		"off_hours.end_hour":            r.OffHours.EndHour,
	} {
		if h < 0 || h > 23 {
			add("reactive %s must be between 0 and 23, got %d", name, h)
		}
	}

	a := c.Agents
	switch a.Chargeback.RatioPolicy {
	case RatioEstimated:
		if a.Chargeback.SpendMultiplier <= 0 {
			add("chargeback spend_multiplier must be positive")
		}
	case RatioObserved:
	default:
		add("chargeback ratio_policy must be %q or %q, got %q", RatioEstimated, RatioObserved, a.Chargeback.RatioPolicy)
	}
	if a.Chargeback.Window <= 0 || a.MerchantCashback.Window <= 0 || a.MerchantBehavior.Window <= 0 {
		add("agent windows must be positive")
	}
	if a.MerchantBehavior.DefaultStdDev <= 0 {
		add("merchant_behavior default_stddev must be positive")
	}
	if a.Dormant.InactiveDays <= 0 {
		add("dormant inactive_days must be positive")
	}
	if a.IdentityCollision.MinMatches < 1 || a.IdentityWatchlist.MinMatches < 1 {
		add("identity min_matches must be at least 1")
	}

	b := c.Behavioral
	if b.WindowSize < 1 {
		add("behavioral window_size must be at least 1")
	}
	if b.CumulativeWindow <= 0 {
		add("behavioral cumulative_window must be positive")
	}
	if b.FallbackStdDev <= 0 {
		add("behavioral fallback_stddev must be positive")
	}

	if c.Idempotency.Enabled && (c.Idempotency.DecisionTTL <= 0 || c.Idempotency.LockTTL <= 0) {
		add("idempotency ttls must be positive when enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
