// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
)

var (
	// ErrEmptyBody is returned when a POST or PUT arrives without a body.
	ErrEmptyBody = errors.New("request body is required")

	// ErrBodyTooLarge is returned when the body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")
)

// respondProcessError maps engine and store errors to HTTP responses.
//
//   - ErrInvalidEvent, ErrInvalidConfig: 400
//   - ErrNotFound, ErrUnknownDetector: 404
//   - ErrDuplicateInFlight: 409
//   - ErrStoreUnavailable: 503
//   - anything else: 500, logged
func respondProcessError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, detection.ErrInvalidEvent):
		rw.Error(http.StatusBadRequest, ErrCodeInvalidEvent, err.Error())
	case errors.Is(err, detection.ErrInvalidConfig):
		rw.Error(http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	case errors.Is(err, detection.ErrNotFound), errors.Is(err, detection.ErrUnknownDetector):
		rw.NotFound(err.Error())
	case errors.Is(err, detection.ErrDuplicateInFlight):
		rw.Conflict(ErrCodeDuplicateInFlight, err.Error())
	case errors.Is(err, detection.ErrStoreUnavailable):
		logging.Ctx(r.Context()).Warn().Err(err).Msg("store unavailable")
		rw.ServiceUnavailable("store unavailable", nil)
	default:
		logging.Ctx(r.Context()).Error().Str("error", sanitizeLogValue(err.Error())).Msg("API error")
		rw.InternalError("internal error")
	}
}

// respondDecodeError maps request body decoding failures.
func respondDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	if errors.Is(err, ErrBodyTooLarge) {
		rw.PayloadTooLarge(err.Error())
		return
	}
	rw.BadRequest(err.Error())
}
