// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// EventID implements Event.
func (t *TransactionEvent) EventID() string { return t.ID }

// Account implements Event.
func (t *TransactionEvent) Account() string { return t.AccountID }

func (t *TransactionEvent) isEvent() {}

// Validate rejects transactions the pipeline cannot evaluate.
func (t *TransactionEvent) Validate() error {
	switch {
	case strings.TrimSpace(t.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidEvent)
	case strings.TrimSpace(t.AccountID) == "":
		return fmt.Errorf("%w: account_id is required", ErrInvalidEvent)
	case math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0):
		return fmt.Errorf("%w: amount must be a finite number", ErrInvalidEvent)
	case t.Amount < 0:
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidEvent)
	}
	if t.Time != "" {
		if _, err := parseHour(t.Time); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
	}
	return nil
}

// Hour returns the local hour of day of the transaction. The Time field wins;
// otherwise the hour of OccurredAt is used. ok is false when neither is set.
func (t *TransactionEvent) Hour() (hour int, ok bool) {
	if t.Time != "" {
		h, err := parseHour(t.Time)
		return h, err == nil
	}
	if !t.OccurredAt.IsZero() {
		return t.OccurredAt.Hour(), true
	}
	return 0, false
}

// TimeOfDay returns the time-of-day string used in alert descriptions.
func (t *TransactionEvent) TimeOfDay() string {
	if t.Time != "" {
		return t.Time
	}
	if !t.OccurredAt.IsZero() {
		return t.OccurredAt.Format("15:04:05")
	}
	return ""
}

// parseHour extracts the hour from "HH:MM" or "HH:MM:SS".
func parseHour(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time %q must be HH:MM or HH:MM:SS", s)
	}
	limits := []int{23, 59, 59}
	var hour int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || len(p) == 0 || len(p) > 2 || n < 0 || n > limits[i] {
			return 0, fmt.Errorf("time %q must be HH:MM or HH:MM:SS", s)
		}
		if i == 0 {
			hour = n
		}
	}
	return hour, nil
}

// EventID implements Event. Account events are keyed by account id.
func (a *AccountEvent) EventID() string { return a.AccountID }

// Account implements Event.
func (a *AccountEvent) Account() string { return a.AccountID }

func (a *AccountEvent) isEvent() {}

// Validate rejects account events without an account id.
func (a *AccountEvent) Validate() error {
	if strings.TrimSpace(a.AccountID) == "" {
		return fmt.Errorf("%w: account_id is required", ErrInvalidEvent)
	}
	return nil
}

// Attributes returns the identity attributes that may be matched, keyed by
// attribute name. Empty attributes are omitted so they never match.
func (a *AccountEvent) Attributes() map[string]string {
	attrs := make(map[string]string, 4)
	for name, v := range map[string]string{
		"ktp":     a.KTP,
		"address": a.Address,
		"phone":   a.Phone,
		"name":    a.Name,
	} {
		if v != "" {
			attrs[name] = v
		}
	}
	return attrs
}

// Envelope kinds carried on the ingest stream.
const (
	EnvelopeTransaction = "transaction"
	EnvelopeAccount     = "account"
)

type envelope struct {
	Kind string `json:"kind"`
}

// DecodeEvent decodes a stream message of the form {"kind": "...", ...}.
// Messages without a kind are treated as transactions.
func DecodeEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %w", ErrInvalidEvent, err)
	}

	switch env.Kind {
	case EnvelopeTransaction, "":
		var tx TransactionEvent
		if err := json.Unmarshal(data, &tx); err != nil {
			return nil, fmt.Errorf("%w: malformed transaction: %w", ErrInvalidEvent, err)
		}
		return &tx, nil
	case EnvelopeAccount:
		var acc AccountEvent
		if err := json.Unmarshal(data, &acc); err != nil {
			return nil, fmt.Errorf("%w: malformed account: %w", ErrInvalidEvent, err)
		}
		return &acc, nil
	default:
		return nil, fmt.Errorf("%w: unknown event kind %q", ErrInvalidEvent, env.Kind)
	}
}
