// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/logging"
)

// IdempotencyGuard suppresses double counting when a caller retries an event.
// A completed event's decision is cached and replayed; a concurrent duplicate
// is rejected with ErrDuplicateInFlight. When the state store is unreachable
// the guard steps aside and the event is processed.
type IdempotencyGuard struct {
	store  StateStore
	config IdempotencyConfig
}

// NewIdempotencyGuard creates a guard over store.
func NewIdempotencyGuard(store StateStore, cfg IdempotencyConfig) *IdempotencyGuard {
	return &IdempotencyGuard{store: store, config: cfg}
}

// Begin checks the decision cache and takes the in-flight lock for scope/id.
// It returns a cached decision when one exists. Otherwise the caller must call
// finish with the final decision, or nil when processing failed.
func (g *IdempotencyGuard) Begin(ctx context.Context, scope, id string) (cached *Decision, finish func(*Decision), err error) {
	noop := func(*Decision) {}
	if g == nil || !g.config.Enabled {
		return nil, noop, nil
	}

	log := logging.Ctx(ctx)
	decisionKey := StateKey(KeyDecision, scope+":"+id)
	lockKey := StateKey(KeyInFlight, scope+":"+id)

	raw, found, err := g.store.Get(ctx, decisionKey)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("idempotency cache unavailable, processing without guard")
		return nil, noop, nil
	case found:
		var d Decision
		if err := json.Unmarshal([]byte(raw), &d); err == nil {
			d.Replayed = true
			return &d, noop, nil
		}
		log.Warn().Msg("discarding unreadable cached decision")
	}

	acquired, err := g.store.SetNX(ctx, lockKey, "processing", g.config.LockTTL)
	if err != nil {
		log.Warn().Err(err).Msg("idempotency lock unavailable, processing without guard")
		return nil, noop, nil
	}
	if !acquired {
		return nil, noop, ErrDuplicateInFlight
	}

	finish = func(d *Decision) {
		// The request context may already be done; cache and unlock regardless.
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()

		if d != nil {
			if data, err := json.Marshal(d); err == nil {
				if err := g.store.Set(bg, decisionKey, string(data), g.config.DecisionTTL); err != nil {
					log.Warn().Err(err).Msg("failed to cache decision")
				}
			}
		}
		if err := g.store.Del(bg, lockKey); err != nil {
			log.Warn().Err(err).Msg("failed to release idempotency lock")
		}
	}
	return nil, finish, nil
}
