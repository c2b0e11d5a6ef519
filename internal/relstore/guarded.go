// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package relstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
)

// Store is everything the service needs from the relationship store.
type Store interface {
	detection.RelationshipStore
	detection.AlertStore
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*Guarded)(nil)
)

// Guarded wraps a Store in a circuit breaker. Query failures and lookups
// that find nothing do not count toward opening it.
type Guarded struct {
	next    Store
	breaker *breaker.Breaker
}

// NewGuarded wraps next.
func NewGuarded(next Store, name string, cfg breaker.Config) *Guarded {
	return &Guarded{
		next:    next,
		breaker: breaker.New(name, cfg, tripsBreaker),
	}
}

func tripsBreaker(err error) bool {
	return errors.Is(err, detection.ErrStoreUnavailable) || errors.Is(err, context.DeadlineExceeded)
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

func guardErr(g *Guarded, fn func() error) error {
	_, err := guard(g, func() (struct{}, error) { return struct{}{}, fn() })
	return err
}

func (g *Guarded) UpsertAccount(ctx context.Context, account *detection.AccountEvent) error {
	return guardErr(g, func() error { return g.next.UpsertAccount(ctx, account) })
}

func (g *Guarded) UpsertTransaction(ctx context.Context, tx *detection.TransactionEvent) error {
	return guardErr(g, func() error { return g.next.UpsertTransaction(ctx, tx) })
}

func (g *Guarded) AggregateTransactions(ctx context.Context, filter detection.TransactionFilter) (detection.Aggregate, error) {
	return guard(g, func() (detection.Aggregate, error) { return g.next.AggregateTransactions(ctx, filter) })
}

func (g *Guarded) AggregateTransactionsByKind(ctx context.Context, filter detection.TransactionFilter) (map[detection.TxKind]detection.Aggregate, error) {
	return guard(g, func() (map[detection.TxKind]detection.Aggregate, error) {
		return g.next.AggregateTransactionsByKind(ctx, filter)
	})
}

func (g *Guarded) FindIdentityMatches(ctx context.Context, account *detection.AccountEvent, minMatches int) ([]detection.IdentityMatch, error) {
	return guard(g, func() ([]detection.IdentityMatch, error) {
		return g.next.FindIdentityMatches(ctx, account, minMatches)
	})
}

func (g *Guarded) SaveAlert(ctx context.Context, alert *detection.Alert) error {
	return guardErr(g, func() error { return g.next.SaveAlert(ctx, alert) })
}

func (g *Guarded) GetAlert(ctx context.Context, id string) (*detection.Alert, error) {
	return guard(g, func() (*detection.Alert, error) { return g.next.GetAlert(ctx, id) })
}

func (g *Guarded) ListAlerts(ctx context.Context, filter detection.AlertFilter) ([]detection.Alert, error) {
	return guard(g, func() ([]detection.Alert, error) { return g.next.ListAlerts(ctx, filter) })
}

func (g *Guarded) GetAlertCount(ctx context.Context, filter detection.AlertFilter) (int, error) {
	return guard(g, func() (int, error) { return g.next.GetAlertCount(ctx, filter) })
}

// Ping bypasses the breaker so readiness reflects the database itself.
func (g *Guarded) Ping(ctx context.Context) error { return g.next.Ping(ctx) }

// Close closes the wrapped store.
func (g *Guarded) Close() error { return g.next.Close() }
