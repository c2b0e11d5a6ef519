// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

//go:build !nats

package sink

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/tomtom215/sentinel/internal/detection"
)

// NATSSink is a stub when NATS dependencies are not compiled in.
// Build with -tags=nats to enable the Watermill JetStream publisher.
type NATSSink struct{}

// NewNATSSink returns an error when built without the nats tag.
func NewNATSSink(cfg NATSConfig, logger watermill.LoggerAdapter) (*NATSSink, error) {
	return nil, fmt.Errorf("NATS sink not available: build with -tags=nats")
}

// Name implements detection.AlertSink.
func (s *NATSSink) Name() string { return "nats" }

// Publish is a stub that returns an error.
func (s *NATSSink) Publish(ctx context.Context, alert *detection.Alert) error {
	return fmt.Errorf("NATS sink not available: build with -tags=nats")
}

// Close is a no-op stub.
func (s *NATSSink) Close() error {
	return nil
}
