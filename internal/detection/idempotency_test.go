// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{Enabled: true, DecisionTTL: time.Hour, LockTTL: 30 * time.Second}
}

func TestIdempotencyGuard_Replay(t *testing.T) {
	store := newMockStateStore(nil)
	guard := NewIdempotencyGuard(store, testIdempotencyConfig())
	ctx := context.Background()

	cached, finish, err := guard.Begin(ctx, "tx", "T1")
	if err != nil || cached != nil {
		t.Fatalf("Begin() = %v, %v; want fresh start", cached, err)
	}
	finish(&Decision{EventID: "T1", Status: DecisionFraudDetected, Alerts: []Alert{{ID: "a1"}}, BehavioralScore: 70})

	cached, _, err = guard.Begin(ctx, "tx", "T1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if cached == nil {
		t.Fatal("Begin() returned no cached decision")
	}
	if !cached.Replayed || cached.Status != DecisionFraudDetected || len(cached.Alerts) != 1 || cached.BehavioralScore != 70 {
		t.Errorf("cached = %+v", cached)
	}

	// Scopes are independent.
	if cached, _, _ := guard.Begin(ctx, "acc", "T1"); cached != nil {
		t.Error("account scope replayed a transaction decision")
	}
}

func TestIdempotencyGuard_DuplicateInFlight(t *testing.T) {
	guard := NewIdempotencyGuard(newMockStateStore(nil), testIdempotencyConfig())
	ctx := context.Background()

	_, finish, err := guard.Begin(ctx, "tx", "T1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	if _, _, err := guard.Begin(ctx, "tx", "T1"); !errors.Is(err, ErrDuplicateInFlight) {
		t.Errorf("second Begin() error = %v, want ErrDuplicateInFlight", err)
	}

	// A failed run releases the lock without caching.
	finish(nil)
	cached, _, err := guard.Begin(ctx, "tx", "T1")
	if err != nil || cached != nil {
		t.Errorf("Begin() after failed run = %v, %v; want fresh start", cached, err)
	}
}

func TestIdempotencyGuard_LockExpires(t *testing.T) {
	clock := newFakeClock()
	guard := NewIdempotencyGuard(newMockStateStore(clock.Now), testIdempotencyConfig())
	ctx := context.Background()

	if _, _, err := guard.Begin(ctx, "tx", "T1"); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	clock.Advance(31 * time.Second)
	if _, _, err := guard.Begin(ctx, "tx", "T1"); err != nil {
		t.Errorf("Begin() after lock expiry error = %v", err)
	}
}

func TestIdempotencyGuard_FailOpen(t *testing.T) {
	store := newMockStateStore(nil)
	store.setErr(ErrStoreUnavailable)
	guard := NewIdempotencyGuard(store, testIdempotencyConfig())

	cached, finish, err := guard.Begin(context.Background(), "tx", "T1")
	if err != nil || cached != nil {
		t.Fatalf("Begin() = %v, %v; want processing without guard", cached, err)
	}
	finish(&Decision{EventID: "T1"})
}

func TestIdempotencyGuard_Disabled(t *testing.T) {
	store := newMockStateStore(nil)
	guard := NewIdempotencyGuard(store, IdempotencyConfig{})

	for range 2 {
		cached, finish, err := guard.Begin(context.Background(), "tx", "T1")
		if err != nil || cached != nil {
			t.Fatalf("Begin() = %v, %v", cached, err)
		}
		finish(&Decision{EventID: "T1"})
	}
	if len(store.strs) != 0 {
		t.Errorf("disabled guard wrote %d keys", len(store.strs))
	}
}

func TestIdempotencyGuard_FinishAfterCancel(t *testing.T) {
	store := newMockStateStore(nil)
	guard := NewIdempotencyGuard(store, testIdempotencyConfig())

	ctx, cancel := context.WithCancel(context.Background())
	_, finish, err := guard.Begin(ctx, "tx", "T1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	cancel()
	finish(&Decision{EventID: "T1", Status: DecisionApproved})

	if cached, _, _ := guard.Begin(context.Background(), "tx", "T1"); cached == nil {
		t.Error("decision was not cached after the caller's context ended")
	}
}
