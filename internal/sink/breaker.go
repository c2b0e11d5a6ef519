// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"context"
	"errors"
	"io"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
)

// Guarded wraps a sink with a circuit breaker so a dead downstream fails
// fast instead of holding publish goroutines until their timeout.
type Guarded struct {
	next detection.AlertSink
	cb   *breaker.Breaker
}

// WithBreaker wraps next in a breaker named "sink-<name>".
func WithBreaker(next detection.AlertSink, cfg breaker.Config) *Guarded {
	return &Guarded{
		next: next,
		cb:   breaker.New("sink-"+next.Name(), cfg, countsAsFailure),
	}
}

// countsAsFailure ignores cancellation by the caller.
func countsAsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Name implements detection.AlertSink.
func (g *Guarded) Name() string { return g.next.Name() }

// Breaker exposes the breaker for health reporting.
func (g *Guarded) Breaker() *breaker.Breaker { return g.cb }

// Publish implements detection.AlertSink.
func (g *Guarded) Publish(ctx context.Context, alert *detection.Alert) error {
	return g.cb.Execute(func() error {
		return g.next.Publish(ctx, alert)
	})
}

// Close closes the wrapped sink if it holds resources.
func (g *Guarded) Close() error {
	if c, ok := g.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
