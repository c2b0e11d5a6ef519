// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/sentinel/internal/relstore"
	"github.com/tomtom215/sentinel/internal/validation"
)

// Validate checks that required configuration is present and valid.
// Every section is checked and all failures are reported together.
func (c *Config) Validate() error {
	var errs []error

	for name, section := range map[string]any{
		"server":     &c.Server,
		"logging":    &c.Logging,
		"state":      &c.State,
		"scorer":     &c.Scorer,
		"supervisor": &c.Supervisor,
	} {
		if verr := validation.ValidateStruct(section); verr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, verr))
		}
	}

	errs = append(errs,
		c.validateRateLimits(),
		c.validateCORS(),
		c.validateState(),
		c.validateStore(),
	)

	if err := c.Detection.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("detection: %w", err))
	}
	if err := c.Sinks.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sinks: %w", err))
	}
	if err := c.Ingest.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingest: %w", err))
	}
	if c.Breaker.FailureThreshold == 0 {
		errs = append(errs, fmt.Errorf("breaker: failure_threshold must be positive"))
	}

	return errors.Join(errs...)
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 1000000     // Maximum 1M requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitReqs < minRateLimitRequests || c.Server.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Server.RateLimitWindow < minRateLimitWindow || c.Server.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateCORS rejects wildcard origins in production.
func (c *Config) validateCORS() error {
	if c.IsProduction() && c.hasWildcardCORS() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed when ENVIRONMENT=production; " +
			"set specific origins: CORS_ORIGINS=https://ops.example.com")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	return slices.Contains(c.Server.CORSOrigins, "*")
}

// ShouldWarnAboutCORS returns true if CORS configuration should be logged
// as a concern at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// validateState checks the selected backend has what it needs.
func (c *Config) validateState() error {
	switch c.State.Backend {
	case StateBackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when STATE_BACKEND=redis")
		}
	case StateBackendBadger:
		if !c.Badger.InMemory && c.Badger.Path == "" {
			return fmt.Errorf("BADGER_PATH is required when STATE_BACKEND=badger")
		}
	}
	if c.Sinks.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when the redis alert sink is enabled")
	}
	return nil
}

// validateStore checks the relationship store dialect and DSN.
func (c *Config) validateStore() error {
	switch c.Store.Dialect {
	case relstore.DialectDuckDB, relstore.DialectPostgres:
	default:
		return fmt.Errorf("STORE_DIALECT must be %q or %q, got %q",
			relstore.DialectDuckDB, relstore.DialectPostgres, c.Store.Dialect)
	}
	if c.Store.Dialect == relstore.DialectPostgres && !isPostgresDSN(c.Store.DSN) {
		return fmt.Errorf("STORE_DSN must be a postgres connection string when STORE_DIALECT=postgres")
	}
	if c.Store.MaxOpenConns < 0 || c.Store.MaxIdleConns < 0 {
		return fmt.Errorf("store connection limits must not be negative")
	}
	return nil
}

// isPostgresDSN accepts URL and keyword/value connection strings.
func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}
