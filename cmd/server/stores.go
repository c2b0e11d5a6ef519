// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/sentinel/internal/config"
	"github.com/tomtom215/sentinel/internal/ephemeral"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/relstore"
)

// stateStores holds the ephemeral store and the handles main needs beyond
// the detection.StateStore view of it.
type stateStores struct {
	store *ephemeral.Guarded

	// redis is shared with the Redis alert sink. It is set whenever either
	// the state backend or the sink uses Redis.
	redis *redis.Client

	// badger is set for the embedded backend so its GC loop can be
	// supervised.
	badger *ephemeral.BadgerStore
}

func openState(ctx context.Context, cfg *config.Config) (*stateStores, error) {
	s := &stateStores{}

	var backend ephemeral.Store
	switch cfg.State.Backend {
	case config.StateBackendBadger:
		bs, err := ephemeral.OpenBadger(cfg.Badger)
		if err != nil {
			return nil, fmt.Errorf("open badger state store: %w", err)
		}
		s.badger = bs
		backend = bs
		if cfg.Sinks.Redis.Enabled {
			s.redis = ephemeral.NewRedisClient(cfg.Redis)
		}
		logging.Info().Str("path", cfg.Badger.Path).Bool("in_memory", cfg.Badger.InMemory).Msg("Badger state store opened")
	default:
		s.redis = ephemeral.NewRedisClient(cfg.Redis)
		backend = ephemeral.NewRedisStore(s.redis)
		logging.Info().Str("addr", cfg.Redis.Addr).Msg("Redis state store configured")
	}

	s.store = ephemeral.NewGuarded(backend, "state-store", cfg.Breaker)

	// An unreachable store is not fatal: the engine's failure policy decides
	// what happens to events until it recovers.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.Ping(pingCtx); err != nil {
		logging.Warn().Err(err).Msg("State store unreachable at startup")
		return s, nil
	}

	if len(cfg.State.Sets) > 0 {
		if err := ephemeral.Seed(pingCtx, s.store, cfg.State.Sets); err != nil {
			logging.Warn().Err(err).Msg("Failed to seed blocklist sets")
		} else {
			logging.Info().Int("sets", len(cfg.State.Sets)).Msg("Blocklist sets seeded")
		}
	}
	return s, nil
}

// close closes the store, and the Redis client when only the sink used it.
func (s *stateStores) close() {
	if err := s.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing state store")
	}
	if s.badger != nil && s.redis != nil {
		if err := s.redis.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing redis client")
		}
	}
}

func openRelStore(ctx context.Context, cfg *config.Config) (*relstore.Guarded, error) {
	store, err := relstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open relationship store: %w", err)
	}
	logging.Info().Str("dialect", store.Dialect()).Msg("Relationship store opened")
	return relstore.NewGuarded(store, "relationship-store", cfg.Breaker), nil
}
