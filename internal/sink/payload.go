// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/detection"
)

const (
	// EventTypeFraudAlert is the event_type of every published envelope.
	EventTypeFraudAlert = "fraud_alert"

	// Source identifies this service in published envelopes.
	Source = "sentinel"
)

// Payload is the envelope published for an alert.
type Payload struct {
	Alert     detection.Alert `json:"alert"`
	EventType string          `json:"event_type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// Encode builds and marshals the envelope for alert.
func Encode(alert *detection.Alert, now time.Time) ([]byte, error) {
	if alert == nil {
		return nil, fmt.Errorf("alert cannot be nil")
	}
	data, err := json.Marshal(Payload{
		Alert:     *alert,
		EventType: EventTypeFraudAlert,
		Timestamp: now.UTC(),
		Source:    Source,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal alert payload: %w", err)
	}
	return data, nil
}
