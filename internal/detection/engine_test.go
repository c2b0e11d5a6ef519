// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewEngine(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)

	infos := te.Detectors()
	if len(infos) != 13 {
		t.Fatalf("Detectors() = %d, want 13", len(infos))
	}
	if infos[0].Layer != LayerReactive {
		t.Errorf("first detector layer = %s, want reactive", infos[0].Layer)
	}
	for _, info := range infos {
		if !info.Enabled {
			t.Errorf("detector %s disabled by default", info.Type)
		}
		if info.Type == DetectorMerchantCashback && info.Status != StatusFlaggedForReview {
			t.Errorf("merchant cashback status = %s, want FLAGGED_FOR_REVIEW", info.Status)
		}
		if info.Type == DetectorChargeback && info.Status != StatusBlocked {
			t.Errorf("chargeback status = %s, want BLOCKED", info.Status)
		}
	}
}

func TestNewEngine_Errors(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.FailurePolicy = "sometimes"
	if _, err := NewEngine(Dependencies{}, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("NewEngine(bad config) error = %v, want ErrInvalidConfig", err)
	}

	if _, err := NewEngine(Dependencies{}, DefaultEngineConfig()); err == nil {
		t.Error("NewEngine() without stores succeeded")
	}
}

func TestEngine_ProcessApproved(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)

	d, err := te.Process(context.Background(), &TransactionEvent{ID: "T1", AccountID: "ACC-1", Amount: 150_000, Kind: KindPayment, Time: "10:00"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if d.Status != DecisionApproved {
		t.Errorf("Status = %s, want APPROVED (alerts %+v)", d.Status, d.Alerts)
	}
	if d.Alerts == nil || len(d.Alerts) != 0 {
		t.Errorf("Alerts = %v, want empty non-nil slice", d.Alerts)
	}
	if te.rel.upserts != 1 {
		t.Errorf("transactions persisted = %d, want 1", te.rel.upserts)
	}
}

func TestEngine_VelocityScenario(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	var last *Decision
	for i := 1; i <= 11; i++ {
		d, err := te.ProcessTransaction(ctx, &TransactionEvent{
			ID:        fmt.Sprintf("T%d", i),
			AccountID: "ACC-1",
			Amount:    1000,
			Kind:      KindTransfer,
		})
		if err != nil {
			t.Fatalf("ProcessTransaction(%d) error = %v", i, err)
		}
		if i <= 10 && d.Status != DecisionApproved {
			t.Fatalf("transaction %d = %s, want APPROVED (alerts %+v)", i, d.Status, d.Alerts)
		}
		te.clock.Advance(time.Minute)
		last = d
	}

	if last.Status != DecisionFraudDetected {
		t.Fatalf("11th transaction = %s, want FRAUD_DETECTED", last.Status)
	}
	alert, ok := findAlert(last.Alerts, DetectorVelocity)
	if !ok {
		t.Fatalf("alerts = %+v, want recency velocity alert", last.Alerts)
	}
	if alert.Score != 95 || alert.Status != StatusBlocked || alert.Layer != LayerReactive {
		t.Errorf("alert = %+v, want blocked reactive alert at 95", alert)
	}
	if alert.EventID != "T11" || alert.AccountID != "ACC-1" || alert.ID == "" {
		t.Errorf("alert identity = %+v", alert)
	}

	if err := te.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if te.alerts.count() != 1 || te.sink.count() != 1 {
		t.Errorf("stored %d, published %d; want 1 and 1", te.alerts.count(), te.sink.count())
	}
}

func TestEngine_ReactiveHitStillRunsAgents(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	te.state.addMember("watchlist", "ACC-1")

	d, err := te.ProcessTransaction(context.Background(), &TransactionEvent{
		ID: "T1", AccountID: "ACC-1", Amount: 2_000_000, Kind: KindTransfer, Time: "12:00",
	})
	if err != nil {
		t.Fatalf("ProcessTransaction() error = %v", err)
	}

	if _, ok := findAlert(d.Alerts, DetectorWatchlist); !ok {
		t.Errorf("missing watchlist alert: %+v", d.Alerts)
	}
	z, ok := findAlert(d.Alerts, DetectorMonetaryZScore)
	if !ok {
		t.Fatalf("missing behavioral alert: %+v", d.Alerts)
	}
	if z.Status != StatusFlaggedForReview || z.Layer != LayerBehavioral {
		t.Errorf("behavioral alert = %+v, want flagged for review", z)
	}
}

func TestEngine_IdentityCollision(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	first := &AccountEvent{
		AccountID: "ACC-A",
		KTP:       "317000000",
		Address:   "Jl. Mawar Merah No 5 Jakarta",
		Phone:     "08123456789",
	}
	d, err := te.ProcessAccount(ctx, first)
	if err != nil {
		t.Fatalf("ProcessAccount(first) error = %v", err)
	}
	if d.Status != DecisionApproved {
		t.Fatalf("first account = %s, want APPROVED", d.Status)
	}

	second := &AccountEvent{
		AccountID: "ACC-B",
		KTP:       "317000000",
		Address:   "Jl. Mawar Merah No 5 Jakarta",
		Phone:     "08999999999",
	}
	d, err = te.Process(ctx, second)
	if err != nil {
		t.Fatalf("Process(second) error = %v", err)
	}
	if d.Status != DecisionFraudDetected {
		t.Fatalf("second account = %s, want FRAUD_DETECTED", d.Status)
	}
	alert, ok := findAlert(d.Alerts, DetectorIdentityCollision)
	if !ok {
		t.Fatalf("alerts = %+v, want identity collision", d.Alerts)
	}
	if alert.Score != 95 || alert.Status != StatusBlocked {
		t.Errorf("alert = %+v, want blocked at 95", alert)
	}
	if alert.Description != "Stolen Identity Detected: Matches found with ACC-A" {
		t.Errorf("Description = %q", alert.Description)
	}
}

func TestEngine_ChargebackBlocks(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	var d *Decision
	for i := 1; i <= 3; i++ {
		var err error
		d, err = te.ProcessTransaction(ctx, &TransactionEvent{
			ID: fmt.Sprintf("R%d", i), AccountID: "ACC-CB", Amount: 250_000, Kind: KindRefund, Time: "13:00",
		})
		if err != nil {
			t.Fatalf("ProcessTransaction() error = %v", err)
		}
		if i < 3 {
			if _, ok := findAlert(d.Alerts, DetectorChargeback); ok {
				t.Fatalf("refund %d raised chargeback alert", i)
			}
		}
	}

	alert, ok := findAlert(d.Alerts, DetectorChargeback)
	if !ok {
		t.Fatalf("alerts = %+v, want chargeback abuse", d.Alerts)
	}
	if alert.Status != StatusBlocked || alert.Layer != LayerAgent || alert.Score != 88 {
		t.Errorf("alert = %+v", alert)
	}
}

func TestEngine_InvalidEvent(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)

	_, err := te.ProcessTransaction(context.Background(), &TransactionEvent{ID: "T1", AccountID: "A", Amount: -5})
	if !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("error = %v, want ErrInvalidEvent", err)
	}
	if te.rel.upserts != 0 {
		t.Error("invalid event was persisted")
	}
	if m := te.Metrics(); m.EventsProcessed != 0 {
		t.Errorf("EventsProcessed = %d, want 0", m.EventsProcessed)
	}
}

func TestEngine_Replay(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()
	tx := &TransactionEvent{ID: "T1", AccountID: "A", Amount: 2_000_000, Kind: KindTransfer, Time: "12:00"}

	first, err := te.ProcessTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("ProcessTransaction() error = %v", err)
	}
	second, err := te.ProcessTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("retry error = %v", err)
	}

	if !second.Replayed || second.Status != first.Status || len(second.Alerts) != len(first.Alerts) {
		t.Errorf("retry = %+v, want replay of %+v", second, first)
	}
	if te.rel.upserts != 1 {
		t.Errorf("transactions persisted = %d, want 1", te.rel.upserts)
	}
	if v := te.state.values[StateKey(KeyRecency, "A")]; v != 1 {
		t.Errorf("recency counter = %v after retry, want 1", v)
	}

	m := te.Metrics()
	if m.EventsProcessed != 1 || m.EventsReplayed != 1 {
		t.Errorf("metrics = %+v, want 1 processed and 1 replayed", m)
	}
}

func TestEngine_ConcurrentDuplicate(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	// Hold the in-flight lock as a concurrent worker would.
	_, finish, err := te.guard.Begin(ctx, "tx", "T1")
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer finish(nil)

	_, err = te.ProcessTransaction(ctx, &TransactionEvent{ID: "T1", AccountID: "A", Amount: 10})
	if !errors.Is(err, ErrDuplicateInFlight) {
		t.Errorf("error = %v, want ErrDuplicateInFlight", err)
	}
}

func TestEngine_FailOpen(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	te.state.setErr(fmt.Errorf("%w: connection refused", ErrStoreUnavailable))
	te.rel.setErr(fmt.Errorf("%w: connection refused", ErrStoreUnavailable))

	d, err := te.ProcessTransaction(context.Background(), &TransactionEvent{ID: "T1", AccountID: "A", Amount: 1000, Time: "12:00"})
	if err != nil {
		t.Fatalf("ProcessTransaction() error = %v", err)
	}
	if d.Status != DecisionApproved {
		t.Errorf("Status = %s, want APPROVED with stores down (alerts %+v)", d.Status, d.Alerts)
	}
	if m := te.Metrics(); m.DetectionErrors == 0 {
		t.Error("DetectionErrors = 0, want failures recorded")
	}
}

func TestEngine_FailClosed(t *testing.T) {
	cfg := DefaultEngineConfig()
	cfg.FailurePolicy = FailClosed
	te := newTestEngine(t, cfg, nil)
	te.state.setErr(fmt.Errorf("%w: connection refused", ErrStoreUnavailable))

	d, err := te.ProcessTransaction(context.Background(), &TransactionEvent{ID: "T1", AccountID: "A", Amount: 1000, Time: "12:00"})
	if err != nil {
		t.Fatalf("ProcessTransaction() error = %v", err)
	}
	if d.Status != DecisionFraudDetected {
		t.Fatalf("Status = %s, want FRAUD_DETECTED", d.Status)
	}
	alert, ok := findAlert(d.Alerts, DetectorWatchlist)
	if !ok {
		t.Fatalf("alerts = %+v, want watchlist unavailable", d.Alerts)
	}
	if alert.Description != "watchlist unavailable" || alert.Score != 100 || alert.Status != StatusBlocked {
		t.Errorf("alert = %+v", alert)
	}

	// Behavioral failures never block.
	if _, ok := findAlert(d.Alerts, DetectorPredictive); ok {
		t.Error("behavioral failure raised a blocking alert")
	}
}

func TestEngine_PublishFailureKeepsDecision(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	te.sink.err = errors.New("broker down")
	te.state.addMember("watchlist", "A")
	ctx := context.Background()

	d, err := te.ProcessTransaction(ctx, &TransactionEvent{ID: "T1", AccountID: "A", Amount: 1000, Time: "12:00"})
	if err != nil {
		t.Fatalf("ProcessTransaction() error = %v", err)
	}
	if d.Status != DecisionFraudDetected {
		t.Errorf("Status = %s, want FRAUD_DETECTED", d.Status)
	}
	if err := te.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if m := te.Metrics(); m.PublishFailures != 1 {
		t.Errorf("PublishFailures = %d, want 1", m.PublishFailures)
	}
	if te.alerts.count() != 1 {
		t.Errorf("stored alerts = %d, want 1", te.alerts.count())
	}
}

func TestEngine_PersistFailureKeepsDecision(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	te.alerts.err = errors.New("disk full")
	te.state.addMember("watchlist", "A")

	d, err := te.ProcessTransaction(context.Background(), &TransactionEvent{ID: "T1", AccountID: "A", Amount: 1000, Time: "12:00"})
	if err != nil {
		t.Fatalf("ProcessTransaction() error = %v", err)
	}
	if d.Status != DecisionFraudDetected || len(d.Alerts) != 1 {
		t.Errorf("decision = %+v", d)
	}
	if m := te.Metrics(); m.PersistFailures != 1 {
		t.Errorf("PersistFailures = %d, want 1", m.PersistFailures)
	}
}

func TestEngine_SetDetectorEnabled(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	te.state.addMember("watchlist", "A")

	if err := te.SetDetectorEnabled(DetectorWatchlist, false); err != nil {
		t.Fatalf("SetDetectorEnabled() error = %v", err)
	}
	d, _ := te.ProcessTransaction(context.Background(), &TransactionEvent{ID: "T1", AccountID: "A", Amount: 1000, Time: "12:00"})
	if d.Status != DecisionApproved {
		t.Errorf("Status = %s with watchlist disabled, want APPROVED", d.Status)
	}

	if err := te.SetDetectorEnabled("nonexistent", true); !errors.Is(err, ErrUnknownDetector) {
		t.Errorf("SetDetectorEnabled(unknown) error = %v, want ErrUnknownDetector", err)
	}
}

func TestEngine_ConfigureDetector(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	err := te.ConfigureDetector(DetectorVelocity, []byte(`{"window":3600000000000,"max_count":2,"score":77}`))
	if err != nil {
		t.Fatalf("ConfigureDetector() error = %v", err)
	}

	var d *Decision
	for i := 1; i <= 3; i++ {
		d, _ = te.ProcessTransaction(ctx, &TransactionEvent{ID: fmt.Sprint(i), AccountID: "A", Amount: 1000, Time: "12:00"})
	}
	alert, ok := findAlert(d.Alerts, DetectorVelocity)
	if !ok || alert.Score != 77 {
		t.Errorf("alerts = %+v, want velocity at 77 on the 3rd transaction", d.Alerts)
	}

	if err := te.ConfigureDetector(DetectorVelocity, []byte(`{"window":0}`)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("ConfigureDetector(invalid) error = %v, want ErrInvalidConfig", err)
	}
	if err := te.ConfigureDetector("nonexistent", []byte(`{}`)); !errors.Is(err, ErrUnknownDetector) {
		t.Errorf("ConfigureDetector(unknown) error = %v, want ErrUnknownDetector", err)
	}
}

func TestEngine_ConcurrentAccounts(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for a := range 4 {
		for i := range 11 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := te.ProcessTransaction(ctx, &TransactionEvent{
					ID: fmt.Sprintf("A%d-T%d", a, i), AccountID: fmt.Sprintf("ACC-%d", a), Amount: 1000, Time: "12:00",
				})
				if err != nil {
					t.Errorf("ProcessTransaction() error = %v", err)
				}
			}()
		}
	}
	wg.Wait()
	if err := te.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	// Each account crosses the velocity threshold exactly once.
	velocity := 0
	for _, a := range te.alerts.alerts {
		if a.DetectorType == DetectorVelocity {
			velocity++
		}
	}
	if velocity != 4 {
		t.Errorf("velocity alerts = %d, want 4", velocity)
	}
	if m := te.Metrics(); m.EventsProcessed != 44 {
		t.Errorf("EventsProcessed = %d, want 44", m.EventsProcessed)
	}
}

func TestEngine_RunWithContext(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- te.RunWithContext(ctx) }()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithContext() did not return after cancel")
	}
}

func TestEngine_SerializesSameAccount(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	entered := make(chan string, 3)
	release := make(chan struct{})
	te.rel.upsertHook = func(tx *TransactionEvent) {
		entered <- tx.ID
		if tx.ID == "T1" {
			<-release
		}
	}

	var wg sync.WaitGroup
	process := func(id, account string) {
		defer wg.Done()
		if _, err := te.ProcessTransaction(ctx, &TransactionEvent{ID: id, AccountID: account, Amount: 1000, Kind: KindPayment}); err != nil {
			t.Errorf("ProcessTransaction(%s) error = %v", id, err)
		}
	}

	wg.Add(1)
	go process("T1", "ACC-1")
	if got := <-entered; got != "T1" {
		t.Fatalf("first upsert = %s, want T1", got)
	}

	wg.Add(2)
	go process("T2", "ACC-1")
	go process("T3", "ACC-2")

	select {
	case got := <-entered:
		if got != "T3" {
			t.Fatalf("upsert while T1 held = %s, want T3 (other account)", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("other account blocked by ACC-1")
	}

	select {
	case got := <-entered:
		t.Fatalf("upsert %s ran while ACC-1 was held", got)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()
	if got := <-entered; got != "T2" {
		t.Errorf("last upsert = %s, want T2", got)
	}
}

func TestEngine_FlatHistorySpike(t *testing.T) {
	te := newTestEngine(t, DefaultEngineConfig(), nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		te.clock.Advance(time.Hour)
		d, err := te.ProcessTransaction(ctx, &TransactionEvent{ID: fmt.Sprintf("F%d", i), AccountID: "FLAT", Amount: 1000, Kind: KindPayment, Time: "10:00"})
		if err != nil {
			t.Fatalf("ProcessTransaction(F%d) error = %v", i, err)
		}
		if d.Status != DecisionApproved {
			t.Fatalf("F%d Status = %s, want APPROVED (alerts %+v)", i, d.Status, d.Alerts)
		}
	}

	te.clock.Advance(time.Hour)
	d, err := te.ProcessTransaction(ctx, &TransactionEvent{ID: "F4", AccountID: "FLAT", Amount: 1_001_000, Kind: KindPayment, Time: "10:00"})
	if err != nil {
		t.Fatalf("ProcessTransaction(F4) error = %v", err)
	}
	alert, ok := findAlert(d.Alerts, DetectorMonetaryZScore)
	if !ok {
		t.Fatalf("Alerts = %+v, want monetary z-score alert", d.Alerts)
	}
	if alert.Status != StatusFlaggedForReview {
		t.Errorf("Status = %s, want FLAGGED_FOR_REVIEW", alert.Status)
	}
}
