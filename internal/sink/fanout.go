// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Fanout publishes every alert to all of its sinks concurrently. One sink
// failing never prevents delivery to the others.
type Fanout struct {
	sinks []detection.AlertSink
}

// NewFanout creates a fanout over sinks. Nil entries are skipped.
func NewFanout(sinks ...detection.AlertSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Name implements detection.AlertSink.
func (f *Fanout) Name() string { return "fanout" }

// Sinks returns the names of the wrapped sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Len returns the number of wrapped sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Publish implements detection.AlertSink. The returned error joins the
// failures of every sink that failed.
func (f *Fanout) Publish(ctx context.Context, alert *detection.Alert) error {
	switch len(f.sinks) {
	case 0:
		return nil
	case 1:
		err := f.sinks[0].Publish(ctx, alert)
		metrics.RecordPublish(f.sinks[0].Name(), err)
		return wrapSinkError(f.sinks[0].Name(), err)
	}

	errs := make([]error, len(f.sinks))
	var wg sync.WaitGroup
	for i, s := range f.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Publish(ctx, alert)
			metrics.RecordPublish(s.Name(), err)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).
					Str("sink", s.Name()).
					Str("alert_id", alert.ID).
					Msg("alert sink publish failed")
			}
			errs[i] = wrapSinkError(s.Name(), err)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every sink that holds resources.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, wrapSinkError(s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func wrapSinkError(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("sink %s: %w", name, err)
}
