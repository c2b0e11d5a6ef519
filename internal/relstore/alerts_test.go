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

	"github.com/tomtom215/sentinel/internal/detection"
)

func seedAlerts(t *testing.T, s *SQLStore) {
	t.Helper()
	ctx := context.Background()
	for i := range 5 {
		status := detection.StatusFlaggedForReview
		detector := detection.DetectorMonetaryZScore
		if i%2 == 0 {
			status = detection.StatusBlocked
			detector = detection.DetectorVelocity
		}
		account := "A"
		if i == 4 {
			account = "B"
		}
		alert := &detection.Alert{
			ID:           fmt.Sprintf("alert-%d", i),
			EventID:      fmt.Sprintf("T%d", i),
			AccountID:    account,
			DetectorType: detector,
			Layer:        detection.LayerReactive,
			Description:  "Recency Anomaly (Velocity): >10 trx in 3600s",
			Score:        90 + i,
			Status:       status,
			CreatedAt:    testNow.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveAlert(ctx, alert); err != nil {
			t.Fatalf("SaveAlert(%s) error = %v", alert.ID, err)
		}
	}
}

func TestSaveAndGetAlert(t *testing.T) {
	s := newTestStore(t)
	seedAlerts(t, s)
	ctx := context.Background()

	got, err := s.GetAlert(ctx, "alert-2")
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if got.EventID != "T2" || got.Score != 92 || got.Status != detection.StatusBlocked ||
		got.DetectorType != detection.DetectorVelocity || got.Layer != detection.LayerReactive {
		t.Errorf("GetAlert() = %+v", got)
	}
	if !got.CreatedAt.Equal(testNow.Add(2 * time.Minute)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, testNow.Add(2*time.Minute))
	}

	if _, err := s.GetAlert(ctx, "missing"); !errors.Is(err, detection.ErrNotFound) {
		t.Errorf("GetAlert(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSaveAlert_Immutable(t *testing.T) {
	s := newTestStore(t)
	seedAlerts(t, s)
	ctx := context.Background()

	changed := &detection.Alert{ID: "alert-0", EventID: "other", AccountID: "A", Score: 1, CreatedAt: testNow}
	if err := s.SaveAlert(ctx, changed); err != nil {
		t.Fatalf("SaveAlert(existing) error = %v", err)
	}
	got, _ := s.GetAlert(ctx, "alert-0")
	if got.EventID != "T0" || got.Score != 90 {
		t.Errorf("alert-0 = %+v, want unchanged", got)
	}

	if err := s.SaveAlert(ctx, nil); err == nil {
		t.Error("SaveAlert(nil) error = nil, want error")
	}
}

func TestListAlerts(t *testing.T) {
	s := newTestStore(t)
	seedAlerts(t, s)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter detection.AlertFilter
		want   []string
	}{
		{"all newest first", detection.AlertFilter{}, []string{"alert-4", "alert-3", "alert-2", "alert-1", "alert-0"}},
		{"by account", detection.AlertFilter{AccountID: "B"}, []string{"alert-4"}},
		{"by status", detection.AlertFilter{Status: detection.StatusFlaggedForReview}, []string{"alert-3", "alert-1"}},
		{"by detector", detection.AlertFilter{AccountID: "A", DetectorType: detection.DetectorVelocity}, []string{"alert-2", "alert-0"}},
		{"by event", detection.AlertFilter{EventID: "T1"}, []string{"alert-1"}},
		{"paged", detection.AlertFilter{Limit: 2, Offset: 1}, []string{"alert-3", "alert-2"}},
		{"none", detection.AlertFilter{AccountID: "Z"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts, err := s.ListAlerts(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAlerts() error = %v", err)
			}
			if alerts == nil {
				t.Fatal("ListAlerts() = nil, want non-nil slice")
			}
			ids := make([]string, len(alerts))
			for i, a := range alerts {
				ids[i] = a.ID
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Errorf("ListAlerts() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestGetAlertCount(t *testing.T) {
	s := newTestStore(t)
	seedAlerts(t, s)
	ctx := context.Background()

	tests := []struct {
		filter detection.AlertFilter
		want   int
	}{
		{detection.AlertFilter{}, 5},
		{detection.AlertFilter{AccountID: "A"}, 4},
		{detection.AlertFilter{Status: detection.StatusBlocked}, 3},
		{detection.AlertFilter{AccountID: "A", Limit: 1}, 4},
	}
	for _, tt := range tests {
		got, err := s.GetAlertCount(ctx, tt.filter)
		if err != nil {
			t.Fatalf("GetAlertCount(%+v) error = %v", tt.filter, err)
		}
		if got != tt.want {
			t.Errorf("GetAlertCount(%+v) = %d, want %d", tt.filter, got, tt.want)
		}
	}
}
