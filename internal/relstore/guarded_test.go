// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package relstore

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
)

// stubStore embeds Store so tests only implement the methods they call.
type stubStore struct {
	Store
	getErr error
	aggErr error
	calls  int
}

func (s *stubStore) GetAlert(context.Context, string) (*detection.Alert, error) {
	s.calls++
	return nil, s.getErr
}

func (s *stubStore) AggregateTransactions(context.Context, detection.TransactionFilter) (detection.Aggregate, error) {
	s.calls++
	return detection.Aggregate{}, s.aggErr
}

func guardedConfig() breaker.Config {
	return breaker.Config{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 2}
}

func TestGuarded_OpensOnUnavailable(t *testing.T) {
	next := &stubStore{aggErr: fmt.Errorf("%w: connection refused", detection.ErrStoreUnavailable)}
	g := NewGuarded(next, "relstore-test-open", guardedConfig())
	ctx := context.Background()

	for range 2 {
		_, _ = g.AggregateTransactions(ctx, detection.TransactionFilter{})
	}
	_, err := g.AggregateTransactions(ctx, detection.TransactionFilter{})
	if !errors.Is(err, detection.ErrStoreUnavailable) || !breaker.IsOpen(err) {
		t.Errorf("error = %v, want open-circuit ErrStoreUnavailable", err)
	}
	if next.calls != 2 {
		t.Errorf("backend calls = %d, want 2", next.calls)
	}
}

func TestGuarded_NotFoundDoesNotTrip(t *testing.T) {
	next := &stubStore{getErr: detection.ErrNotFound}
	g := NewGuarded(next, "relstore-test-notfound", guardedConfig())

	for range 5 {
		if _, err := g.GetAlert(context.Background(), "missing"); !errors.Is(err, detection.ErrNotFound) {
			t.Fatalf("GetAlert() error = %v, want ErrNotFound", err)
		}
	}
	if g.Breaker().State() != "closed" {
		t.Errorf("breaker state = %s, want closed", g.Breaker().State())
	}
}

func TestGuarded_QueryFailureDoesNotTrip(t *testing.T) {
	next := &stubStore{aggErr: fmt.Errorf("%w: bad column", detection.ErrQueryFailure)}
	g := NewGuarded(next, "relstore-test-query", guardedConfig())

	for range 5 {
		_, _ = g.AggregateTransactions(context.Background(), detection.TransactionFilter{})
	}
	if g.Breaker().State() != "closed" {
		t.Errorf("breaker state = %s, want closed", g.Breaker().State())
	}
}

func TestGuarded_OverSQLStore(t *testing.T) {
	g := NewGuarded(newTestStore(t), "relstore-test-pass", guardedConfig())
	ctx := context.Background()

	alert := &detection.Alert{ID: "a1", EventID: "T1", AccountID: "A", DetectorType: detection.DetectorVelocity,
		Layer: detection.LayerReactive, Description: "x", Score: 95, Status: detection.StatusBlocked, CreatedAt: testNow}
	if err := g.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}
	n, err := g.GetAlertCount(ctx, detection.AlertFilter{AccountID: "A"})
	if err != nil || n != 1 {
		t.Errorf("GetAlertCount() = %d, %v; want 1", n, err)
	}
	if err := g.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
