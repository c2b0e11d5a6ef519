// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ephemeral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
)

// Store is a state store that can also seed sets and report health.
type Store interface {
	detection.StateStore
	AddMembers(ctx context.Context, set string, members ...string) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*RedisStore)(nil)
	_ Store = (*BadgerStore)(nil)
	_ Store = (*Guarded)(nil)
)

// Guarded wraps a store in a circuit breaker. While the circuit is open every
// call fails fast with detection.ErrStoreUnavailable.
type Guarded struct {
	next    Store
	breaker *breaker.Breaker
}

// NewGuarded wraps next. Only infrastructure errors count toward opening
// the circuit; a caller's own cancellation does not.
func NewGuarded(next Store, name string, cfg breaker.Config) *Guarded {
	return &Guarded{
		next:    next,
		breaker: breaker.New(name, cfg, tripsBreaker),
	}
}

func tripsBreaker(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return detection.IsInfrastructureError(err)
}

// Breaker returns the breaker guarding the store.
func (g *Guarded) Breaker() *breaker.Breaker { return g.breaker }

func guard[T any](g *Guarded, fn func() (T, error)) (T, error) {
	v, err := breaker.Do(g.breaker, fn)
	if err != nil && breaker.IsOpen(err) {
		return v, fmt.Errorf("%w: %s circuit breaker: %w", detection.ErrStoreUnavailable, g.breaker.Name(), err)
	}
	return v, err
}

// Incr implements detection.StateStore.
func (g *Guarded) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return guard(g, func() (int64, error) { return g.next.Incr(ctx, key, ttl) })
}

// IncrFloat implements detection.StateStore.
func (g *Guarded) IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	return guard(g, func() (float64, error) { return g.next.IncrFloat(ctx, key, delta, ttl) })
}

// PushWindow implements detection.StateStore.
func (g *Guarded) PushWindow(ctx context.Context, key string, value []byte, size int) ([][]byte, error) {
	return guard(g, func() ([][]byte, error) { return g.next.PushWindow(ctx, key, value, size) })
}

// IsMember implements detection.StateStore.
func (g *Guarded) IsMember(ctx context.Context, set, member string) (bool, error) {
	return guard(g, func() (bool, error) { return g.next.IsMember(ctx, set, member) })
}

// SetNX implements detection.StateStore.
func (g *Guarded) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return guard(g, func() (bool, error) { return g.next.SetNX(ctx, key, value, ttl) })
}

type getResult struct {
	value string
	found bool
}

// Get implements detection.StateStore.
func (g *Guarded) Get(ctx context.Context, key string) (string, bool, error) {
	r, err := guard(g, func() (getResult, error) {
		v, found, err := g.next.Get(ctx, key)
		return getResult{value: v, found: found}, err
	})
	return r.value, r.found, err
}

// Set implements detection.StateStore.
func (g *Guarded) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, err := guard(g, func() (struct{}, error) { return struct{}{}, g.next.Set(ctx, key, value, ttl) })
	return err
}

// Del implements detection.StateStore.
func (g *Guarded) Del(ctx context.Context, key string) error {
	_, err := guard(g, func() (struct{}, error) { return struct{}{}, g.next.Del(ctx, key) })
	return err
}

// AddMembers seeds a set through the breaker.
func (g *Guarded) AddMembers(ctx context.Context, set string, members ...string) error {
	_, err := guard(g, func() (struct{}, error) { return struct{}{}, g.next.AddMembers(ctx, set, members...) })
	return err
}

// Ping bypasses the breaker so readiness reflects the backend itself.
func (g *Guarded) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}

// Close closes the wrapped store.
func (g *Guarded) Close() error {
	return g.next.Close()
}

// Seed adds the configured set members to store. Sets are keyed by name.
func Seed(ctx context.Context, store Store, sets map[string][]string) error {
	for name, members := range sets {
		if err := store.AddMembers(ctx, name, members...); err != nil {
			return fmt.Errorf("failed to seed set %s: %w", name, err)
		}
	}
	return nil
}
