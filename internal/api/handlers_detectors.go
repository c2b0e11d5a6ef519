// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
)

// Detectors lists every registered detector with its layer, alert status
// and enabled flag.
//
// GET /api/v1/detectors
func (h *Handler) Detectors(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Detectors())
}

// UpdateDetector replaces a detector's thresholds and/or toggles it.
// A new configuration is applied before the enabled flag so a rejected
// configuration leaves the detector untouched.
//
// PUT /api/v1/detectors/{type}
func (h *Handler) UpdateDetector(w http.ResponseWriter, r *http.Request) {
	detectorType := detection.DetectorType(chi.URLParam(r, "type"))

	var req DetectorUpdateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		respondDecodeError(w, r, err)
		return
	}
	if req.Enabled == nil && len(req.Config) == 0 {
		NewResponseWriter(w, r).BadRequest("enabled or config is required")
		return
	}

	if !h.isRegistered(detectorType) {
		NewResponseWriter(w, r).NotFound("unknown detector: " + sanitizeLogValue(string(detectorType)))
		return
	}

	if len(req.Config) > 0 {
		if err := h.engine.ConfigureDetector(detectorType, req.Config); err != nil {
			respondProcessError(w, r, err)
			return
		}
		logging.Ctx(r.Context()).Info().Str("detector", string(detectorType)).Msg("detector reconfigured")
	}
	if req.Enabled != nil {
		if err := h.engine.SetDetectorEnabled(detectorType, *req.Enabled); err != nil {
			respondProcessError(w, r, err)
			return
		}
	}

	for _, info := range h.engine.Detectors() {
		if info.Type == detectorType {
			NewResponseWriter(w, r).Success(info)
			return
		}
	}
}

func (h *Handler) isRegistered(t detection.DetectorType) bool {
	for _, info := range h.engine.Detectors() {
		if info.Type == t {
			return true
		}
	}
	return false
}

// Stats returns the engine's counters.
//
// GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Metrics())
}
