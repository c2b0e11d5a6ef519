// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// AgentLayer runs the specialized agents concurrently. Every agent runs for
// every event; results are returned in registration order.
type AgentLayer struct {
	transaction []Detector
	account     []AccountDetector
}

// NewAgentLayer builds the transaction and account agents.
func NewAgentLayer(state StateStore, rel RelationshipStore, cfg AgentConfig) *AgentLayer {
	return &AgentLayer{
		transaction: []Detector{
			NewChargebackDetector(rel, cfg.Chargeback),
			NewMerchantCashbackDetector(rel, cfg.MerchantCashback),
			NewMerchantBehaviorDetector(rel, cfg.MerchantBehavior),
			NewDormantAccountDetector(rel, cfg.Dormant),
		},
		account: []AccountDetector{
			NewIdentityCollisionDetector(rel, cfg.IdentityCollision),
			NewIdentityWatchlistDetector(state, cfg.IdentityWatchlist),
		},
	}
}

// TransactionAgents returns the transaction agents.
func (l *AgentLayer) TransactionAgents() []Detector { return l.transaction }

// AccountAgents returns the account agents.
func (l *AgentLayer) AccountAgents() []AccountDetector { return l.account }

type agentResult struct {
	sig Signal
	err error
}

// Evaluate runs the transaction agents and returns the fired signals.
func (l *AgentLayer) Evaluate(ctx context.Context, tx *TransactionEvent) ([]Signal, []DetectorFailure) {
	checks := make([]func(context.Context) (Signal, error), 0, len(l.transaction))
	types := make([]DetectorType, 0, len(l.transaction))
	for _, d := range l.transaction {
		if !d.Enabled() {
			continue
		}
		checks = append(checks, func(ctx context.Context) (Signal, error) { return d.Check(ctx, tx) })
		types = append(types, d.Type())
	}
	return runAgents(ctx, types, checks)
}

// EvaluateAccount runs the account agents and returns the fired signals.
func (l *AgentLayer) EvaluateAccount(ctx context.Context, acc *AccountEvent) ([]Signal, []DetectorFailure) {
	checks := make([]func(context.Context) (Signal, error), 0, len(l.account))
	types := make([]DetectorType, 0, len(l.account))
	for _, d := range l.account {
		if !d.Enabled() {
			continue
		}
		checks = append(checks, func(ctx context.Context) (Signal, error) { return d.CheckAccount(ctx, acc) })
		types = append(types, d.Type())
	}
	return runAgents(ctx, types, checks)
}

// runAgents fans the checks out with errgroup. Checks never return errors to
// the group so one failing agent does not cancel the others.
func runAgents(ctx context.Context, types []DetectorType, checks []func(context.Context) (Signal, error)) ([]Signal, []DetectorFailure) {
	results := make([]agentResult, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			start := time.Now()
			sig, err := check(ctx)
			metrics.RecordDetector(string(types[i]), time.Since(start), err)
			results[i] = agentResult{sig: sig, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var fired []Signal
	var failures []DetectorFailure
	for i, r := range results {
		if r.err != nil {
			logging.Ctx(ctx).Warn().Err(r.err).Str("detector", string(types[i])).Msg("agent skipped")
			failures = append(failures, DetectorFailure{Detector: types[i], Err: r.err})
			continue
		}
		if r.sig.Fired {
			fired = append(fired, r.sig)
		}
	}
	return fired, failures
}
