// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/ephemeral"
	"github.com/tomtom215/sentinel/internal/ingest"
	"github.com/tomtom215/sentinel/internal/relstore"
	"github.com/tomtom215/sentinel/internal/sink"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/sentinel/config.yaml",
	"/etc/sentinel/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DotEnvPathEnvVar overrides the .env file preloaded into the environment.
const DotEnvPathEnvVar = "DOTENV_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    1 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		State: StateConfig{
			Backend: StateBackendRedis,
		},
		Redis:     ephemeral.DefaultRedisConfig(),
		Badger:    ephemeral.DefaultBadgerConfig(),
		Store:     relstore.DefaultConfig(),
		Breaker:   breaker.DefaultConfig(),
		Detection: detection.DefaultEngineConfig(),
		Scorer: ScorerConfig{
			Name: detection.ScorerRatio,
		},
		Sinks:  sink.DefaultConfig(),
		Ingest: ingest.DefaultConfig(),
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources.
//
// Loading order:
//  1. Built-in defaults (via structs provider)
//  2. .env file preloaded into the environment (DOTENV_PATH or ./.env), if present
//  3. Config file (YAML), if found
//  4. Environment variables (override everything)
func LoadWithKoanf() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	applyMapEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv preloads a .env file without overriding variables already set.
// A missing default file is not an error; a missing DOTENV_PATH is.
func loadDotEnv() error {
	path := os.Getenv(DotEnvPathEnvVar)
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("failed to load env file %s: %w", path, err)
}

// findConfigFile searches for a config file in the default locations.
// Returns empty string if no config file is found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths that should be parsed as comma-separated slices
// when loaded from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"sinks.kafka.brokers",
	"ingest.brokers",
	"detection.reactive.keyword.keywords",
}

// processSliceFields converts comma-separated string values to slices
// for fields that expect []string types.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// applyMapEnv applies key=value list variables that koanf cannot map to
// nested keys.
func applyMapEnv(cfg *Config) {
	if headers := getMapEnv("WEBHOOK_HEADERS"); len(headers) > 0 {
		cfg.Sinks.Webhook.Headers = headers
	}
	for name, env := range map[string]string{
		"watchlist":    "SEED_WATCHLIST",
		"ip_blacklist": "SEED_IP_BLACKLIST",
	} {
		if members := getSliceEnv(env, nil); len(members) > 0 {
			if cfg.State.Sets == nil {
				cfg.State.Sets = make(map[string][]string)
			}
			cfg.State.Sets[name] = members
		}
	}
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"cors_origins":          "server.cors_origins",
	"max_body_bytes":        "server.max_body_bytes",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"state_backend": "state.backend",

	"redis_addr":          "redis.addr",
	"redis_password":      "redis.password",
	"redis_db":            "redis.db",
	"redis_pool_size":     "redis.pool_size",
	"redis_dial_timeout":  "redis.dial_timeout",
	"redis_read_timeout":  "redis.read_timeout",
	"redis_write_timeout": "redis.write_timeout",

	"badger_path":        "badger.path",
	"badger_in_memory":   "badger.in_memory",
	"badger_sync_writes": "badger.sync_writes",
	"badger_gc_interval": "badger.gc_interval",

	"store_dialect":           "store.dialect",
	"store_dsn":               "store.dsn",
	"database_url":            "store.dsn",
	"store_max_open_conns":    "store.max_open_conns",
	"store_max_idle_conns":    "store.max_idle_conns",
	"store_conn_max_lifetime": "store.conn_max_lifetime",

	"breaker_max_requests":      "breaker.max_requests",
	"breaker_interval":          "breaker.interval",
	"breaker_timeout":           "breaker.timeout",
	"breaker_failure_threshold": "breaker.failure_threshold",

	"failure_policy":          "detection.failure_policy",
	"publish_timeout":         "detection.publish_timeout",
	"idempotency_enabled":     "detection.idempotency.enabled",
	"idempotency_ttl":         "detection.idempotency.decision_ttl",
	"idempotency_lock_ttl":    "detection.idempotency.lock_ttl",
	"chargeback_ratio_policy": "detection.agents.chargeback.ratio_policy",
	"sensitive_keywords":      "detection.reactive.keyword.keywords",
	"velocity_max_count":      "detection.reactive.velocity.max_count",
	"zscore_threshold":        "detection.behavioral.zscore_threshold",

	"scorer":      "scorer.name",
	"scorer_seed": "scorer.seed",

	"redis_sink_enabled": "sinks.redis.enabled",
	"redis_sink_channel": "sinks.redis.channel",

	"webhook_enabled":    "sinks.webhook.enabled",
	"webhook_url":        "sinks.webhook.url",
	"webhook_method":     "sinks.webhook.method",
	"webhook_auth":       "sinks.webhook.auth",
	"webhook_timeout":    "sinks.webhook.timeout",
	"webhook_rate_limit": "sinks.webhook.rate_limit",
	"webhook_burst":      "sinks.webhook.burst",

	"kafka_sink_enabled": "sinks.kafka.enabled",
	"kafka_sink_brokers": "sinks.kafka.brokers",
	"kafka_sink_topic":   "sinks.kafka.topic",

	"nats_sink_enabled": "sinks.nats.enabled",
	"nats_url":          "sinks.nats.url",
	"nats_subject":      "sinks.nats.subject",

	"ingest_enabled":         "ingest.enabled",
	"ingest_brokers":         "ingest.brokers",
	"ingest_topic":           "ingest.topic",
	"ingest_group":           "ingest.group",
	"ingest_process_timeout": "ingest.process_timeout",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf paths.
// Unmapped variables are ignored so the rest of the environment never
// leaks into the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
