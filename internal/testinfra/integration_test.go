// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

//go:build integration

package testinfra

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ephemeral"
	"github.com/tomtom215/sentinel/internal/relstore"
	"github.com/tomtom215/sentinel/internal/sink"
)

func testAlert() *detection.Alert {
	return &detection.Alert{
		ID:           "alert-it-1",
		EventID:      "T-it-1",
		AccountID:    "A-it",
		DetectorType: detection.DetectorVelocity,
		Layer:        detection.LayerReactive,
		Description:  "Recency Anomaly (Velocity): >10 trx in 3600s",
		Score:        95,
		Status:       detection.StatusBlocked,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestRedisStateStore_Integration(t *testing.T) {
	SkipIfNoDocker(t)
	ctx := context.Background()

	rc, err := NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("NewRedisContainer() error = %v", err)
	}
	CleanupContainer(t, rc)

	cfg := ephemeral.DefaultRedisConfig()
	cfg.Addr = rc.Addr
	store := ephemeral.NewRedisStore(ephemeral.NewRedisClient(cfg))
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	for i := int64(1); i <= 3; i++ {
		n, err := store.Incr(ctx, "velocity:A-it", time.Hour)
		if err != nil || n != i {
			t.Fatalf("Incr() = %d, %v; want %d", n, err, i)
		}
	}
	ttl := store.Client().PTTL(ctx, "velocity:A-it").Val()
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("PTTL = %v, want (0, 1h]", ttl)
	}

	sum, err := store.IncrFloat(ctx, "daily:A-it", 12.5, time.Hour)
	if err != nil || sum != 12.5 {
		t.Errorf("IncrFloat() = %v, %v; want 12.5", sum, err)
	}

	for _, v := range []string{"1", "2", "3", "4"} {
		if _, err := store.PushWindow(ctx, "window:A-it", []byte(v), 3); err != nil {
			t.Fatalf("PushWindow() error = %v", err)
		}
	}
	window, _ := store.PushWindow(ctx, "window:A-it", []byte("5"), 3)
	if len(window) != 3 || string(window[0]) != "3" || string(window[2]) != "5" {
		t.Errorf("window = %q, want [3 4 5]", window)
	}

	if err := ephemeral.Seed(ctx, store, map[string][]string{"blacklist:ip": {"10.0.0.66"}}); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if ok, _ := store.IsMember(ctx, "blacklist:ip", "10.0.0.66"); !ok {
		t.Error("IsMember(blacklisted ip) = false, want true")
	}

	if ok, _ := store.SetNX(ctx, "inflight:T-it", "1", time.Minute); !ok {
		t.Error("first SetNX() = false, want true")
	}
	if ok, _ := store.SetNX(ctx, "inflight:T-it", "1", time.Minute); ok {
		t.Error("second SetNX() = true, want false")
	}
}

func TestRedisAlertSink_Integration(t *testing.T) {
	SkipIfNoDocker(t)
	ctx := context.Background()

	rc, err := NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("NewRedisContainer() error = %v", err)
	}
	CleanupContainer(t, rc)

	cfg := ephemeral.DefaultRedisConfig()
	cfg.Addr = rc.Addr
	client := ephemeral.NewRedisClient(cfg)
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(ctx, sink.DefaultRedisChannel)
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	if err := sink.NewRedisSink(client, "").Publish(ctx, testAlert()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var payload sink.Payload
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.Alert.ID != "alert-it-1" || payload.EventType != sink.EventTypeFraudAlert {
			t.Errorf("payload = %+v", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message received on alerts channel")
	}
}

func TestPostgresRelationshipStore_Integration(t *testing.T) {
	SkipIfNoDocker(t)
	ctx := context.Background()

	pc, err := NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("NewPostgresContainer() error = %v", err)
	}
	CleanupContainer(t, pc)

	cfg := relstore.DefaultConfig()
	cfg.Dialect = relstore.DialectPostgres
	cfg.DSN = pc.DSN
	store, err := relstore.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now().UTC()
	for i, amount := range []float64{100, 250} {
		err := store.UpsertTransaction(ctx, &detection.TransactionEvent{
			ID:         []string{"T1", "T2"}[i],
			AccountID:  "A1",
			MerchantID: "M1",
			Kind:       "purchase",
			Amount:     amount,
			OccurredAt: now.Add(-time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("UpsertTransaction() error = %v", err)
		}
	}

	agg, err := store.AggregateTransactions(ctx, detection.TransactionFilter{AccountID: "A1", Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("AggregateTransactions() error = %v", err)
	}
	if agg.Count != 2 || agg.Sum != 350 {
		t.Errorf("aggregate = %+v, want count 2 sum 350", agg)
	}

	alert := testAlert()
	if err := store.SaveAlert(ctx, alert); err != nil {
		t.Fatalf("SaveAlert() error = %v", err)
	}
	got, err := store.GetAlert(ctx, alert.ID)
	if err != nil || got.AccountID != "A-it" {
		t.Errorf("GetAlert() = %+v, %v", got, err)
	}
}

func TestWebhookSink_Integration(t *testing.T) {
	server := NewMockWebhookServer(t)

	ws, err := sink.NewWebhookSink(sink.WebhookConfig{
		Enabled: true,
		URL:     server.URL() + "/alerts",
		Auth:    "Bearer test-token",
	})
	if err != nil {
		t.Fatalf("NewWebhookSink() error = %v", err)
	}
	if err := ws.Publish(context.Background(), testAlert()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !server.WaitForCaptures(1, 2*time.Second) {
		t.Fatal("webhook not delivered")
	}

	c := server.Captures()[0]
	if c.Path != "/alerts" || c.Headers.Get("Authorization") != "Bearer test-token" {
		t.Errorf("capture = %s %s auth=%q", c.Method, c.Path, c.Headers.Get("Authorization"))
	}
	if !strings.Contains(string(c.Body), `"event_type":"fraud_alert"`) {
		t.Errorf("body = %s, want fraud_alert envelope", c.Body)
	}
}
