// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/detection"
)

// TransactionRequest is the body of POST /api/v1/transactions.
// Amount is a pointer so an omitted amount is rejected rather than read as 0.
type TransactionRequest struct {
	ID          string     `json:"id" validate:"required,max=128"`
	AccountID   string     `json:"account_id" validate:"required,max=128"`
	MerchantID  string     `json:"merchant_id,omitempty" validate:"max=128"`
	Amount      *float64   `json:"amount" validate:"required,gte=0"`
	Time        string     `json:"time,omitempty" validate:"omitempty,clock"`
	Type        string     `json:"type" validate:"required,max=32"`
	Description string     `json:"description,omitempty" validate:"max=1024"`
	IPAddress   string     `json:"ip_address,omitempty" validate:"omitempty,ipaddr"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Event converts the request into a pipeline event.
func (r *TransactionRequest) Event() *detection.TransactionEvent {
	tx := &detection.TransactionEvent{
		ID:          r.ID,
		AccountID:   r.AccountID,
		MerchantID:  r.MerchantID,
		Time:        r.Time,
		Kind:        detection.TxKind(r.Type),
		Description: r.Description,
		IPAddress:   r.IPAddress,
	}
	if r.Amount != nil {
		tx.Amount = *r.Amount
	}
	if r.Timestamp != nil {
		tx.OccurredAt = *r.Timestamp
	}
	return tx
}

// AccountRequest is the body of POST /api/v1/accounts.
type AccountRequest struct {
	AccountID string `json:"account_id" validate:"required,max=128"`
	KTP       string `json:"ktp,omitempty" validate:"max=64"`
	Address   string `json:"address,omitempty" validate:"max=512"`
	Phone     string `json:"phone,omitempty" validate:"max=32"`
	Name      string `json:"name,omitempty" validate:"max=256"`
}

// Event converts the request into a pipeline event.
func (r *AccountRequest) Event() *detection.AccountEvent {
	return &detection.AccountEvent{
		AccountID: r.AccountID,
		KTP:       r.KTP,
		Address:   r.Address,
		Phone:     r.Phone,
		Name:      r.Name,
	}
}

// AlertsRequest holds the validated query parameters of GET /api/v1/alerts.
type AlertsRequest struct {
	AccountID string `json:"account_id" validate:"max=128"`
	EventID   string `json:"event_id" validate:"max=128"`
	Status    string `json:"status" validate:"omitempty,oneof=BLOCKED FLAGGED_FOR_REVIEW"`
	Detector  string `json:"detector" validate:"max=64"`
	Limit     int    `json:"limit" validate:"min=1,max=1000"`
	Offset    int    `json:"offset" validate:"min=0,max=1000000"`
}

// Filter converts the request into a store filter.
func (r *AlertsRequest) Filter() detection.AlertFilter {
	return detection.AlertFilter{
		AccountID:    r.AccountID,
		EventID:      r.EventID,
		Status:       detection.AlertStatus(r.Status),
		DetectorType: detection.DetectorType(r.Detector),
		Limit:        r.Limit,
		Offset:       r.Offset,
	}
}

// DetectorUpdateRequest is the body of PUT /api/v1/detectors/{type}.
// Either field may be omitted; at least one is required.
type DetectorUpdateRequest struct {
	Enabled *bool           `json:"enabled,omitempty"`
	Config  json.RawMessage `json:"config,omitempty"`
}
