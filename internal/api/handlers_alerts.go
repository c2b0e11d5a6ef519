// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

const defaultAlertLimit = 50

// Alerts lists stored alerts, newest first.
//
// GET /api/v1/alerts?account_id=&event_id=&status=&detector=&limit=&offset=
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := AlertsRequest{
		AccountID: q.Get("account_id"),
		EventID:   q.Get("event_id"),
		Status:    q.Get("status"),
		Detector:  q.Get("detector"),
		Limit:     getIntParam(r, "limit", defaultAlertLimit),
		Offset:    getIntParam(r, "offset", 0),
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	ctx := r.Context()
	filter := req.Filter()
	alerts, err := h.alerts.ListAlerts(ctx, filter)
	if err != nil {
		respondProcessError(w, r, err)
		return
	}
	total, err := h.alerts.GetAlertCount(ctx, filter)
	if err != nil {
		respondProcessError(w, r, err)
		return
	}

	NewResponseWriter(w, r).SuccessWithPagination(alerts, &PaginationMeta{
		Total:   int64(total),
		Count:   len(alerts),
		Offset:  req.Offset,
		Limit:   req.Limit,
		HasMore: req.Offset+len(alerts) < total,
	})
}

// Alert returns one alert by id.
//
// GET /api/v1/alerts/{id}
func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > 128 {
		NewResponseWriter(w, r).BadRequest("alert id must be 1 to 128 characters")
		return
	}

	alert, err := h.alerts.GetAlert(r.Context(), id)
	if err != nil {
		respondProcessError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(alert)
}
