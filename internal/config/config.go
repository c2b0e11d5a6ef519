// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"time"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ephemeral"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/relstore"
	"github.com/tomtom215/sentinel/internal/sink"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for every setting
//  2. .env file: Optional, preloaded into the process environment
//  3. Config File: Optional YAML config file (config.yaml or CONFIG_PATH)
//  4. Environment Variables: Override any mapped setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	store, err := relstore.Open(ctx, cfg.Store)
type Config struct {
	Server     ServerConfig           `koanf:"server"`
	Logging    LoggingConfig          `koanf:"logging"`
	State      StateConfig            `koanf:"state"`
	Redis      ephemeral.RedisConfig  `koanf:"redis"`
	Badger     ephemeral.BadgerConfig `koanf:"badger"`
	Store      relstore.Config        `koanf:"store"`
	Breaker    breaker.Config         `koanf:"breaker"`
	Detection  detection.EngineConfig `koanf:"detection"`
	Scorer     ScorerConfig           `koanf:"scorer"`
	Sinks      sink.Config            `koanf:"sinks"`
	Ingest     ingest.Config          `koanf:"ingest"`
	Supervisor SupervisorConfig       `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// Environment is "development" or "production". Production rejects
	// wildcard CORS origins.
	Environment string `koanf:"environment" validate:"oneof=development staging production"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// MaxBodyBytes bounds event request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"min=1"`
}

// LoggingConfig holds logging configuration.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false - include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// State backends.
const (
	StateBackendRedis  = "redis"
	StateBackendBadger = "badger"
)

// StateConfig selects the ephemeral state backend.
type StateConfig struct {
	Backend string `koanf:"backend" validate:"oneof=redis badger"`

	// Sets are blocklist sets loaded into the store at startup, keyed by
	// set name (watchlist, ip_blacklist, watchlist_ktp...).
	Sets map[string][]string `koanf:"sets"`
}

// ScorerConfig selects the predictive scorer of the behavioral layer.
type ScorerConfig struct {
	Name string `koanf:"name" validate:"oneof=ratio random static"`

	// Seed is only used by the random scorer.
	Seed uint64 `koanf:"seed"`
}

// SupervisorConfig configures the supervisor tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Load reads configuration with the following precedence (highest to lowest):
//  1. Environment variables
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Built-in defaults
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
