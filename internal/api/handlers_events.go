// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
)

// Transactions evaluates one transaction and returns the decision.
//
// POST /api/v1/transactions
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	h.process(w, r, req.Event())
}

// Accounts evaluates an account registration or profile change.
//
// POST /api/v1/accounts
func (h *Handler) Accounts(w http.ResponseWriter, r *http.Request) {
	var req AccountRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	h.process(w, r, req.Event())
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request, event detection.Event) {
	ctx := logging.ContextWithEvent(r.Context(), event.EventID(), event.Account())

	decision, err := h.engine.Process(ctx, event)
	if err != nil {
		respondProcessError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(decision)
}
