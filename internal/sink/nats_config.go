// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"fmt"
	"time"
)

// NATSConfig configures the NATS JetStream alert sink.
type NATSConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url"`
	Subject       string        `koanf:"subject"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// Validate checks if the NATS configuration is valid.
func (c NATSConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("nats sink URL is required")
	}
	if c.Subject == "" {
		return fmt.Errorf("nats sink subject is required")
	}
	return nil
}
