// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable means the ephemeral or relationship store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrQueryFailure means a store was reachable but the query failed.
	ErrQueryFailure = errors.New("query failure")

	// ErrInvalidEvent rejects an event before any detector runs.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrDuplicateInFlight means the same event id is being processed concurrently.
	ErrDuplicateInFlight = errors.New("event is already being processed")

	// ErrNotFound is returned by lookups that found nothing.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig is returned by configuration validation.
	ErrInvalidConfig = errors.New("invalid detection configuration")

	// ErrUnknownDetector is returned when toggling a detector that is not registered.
	ErrUnknownDetector = errors.New("unknown detector")
)

// IsInfrastructureError reports whether err comes from store connectivity
// rather than from the event itself. Deadline and cancellation count as
// infrastructure failures: a timed-out store call skips the check.
func IsInfrastructureError(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrQueryFailure) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
