// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/sentinel/internal/breaker"
	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
)

// RedisConfig configures the Redis pub/sub sink. The sink shares the
// ephemeral store's client.
type RedisConfig struct {
	Enabled bool   `koanf:"enabled"`
	Channel string `koanf:"channel"`
}

// Config selects and configures the alert sinks.
type Config struct {
	Redis   RedisConfig    `koanf:"redis"`
	Webhook WebhookConfig  `koanf:"webhook"`
	Kafka   KafkaConfig    `koanf:"kafka"`
	NATS    NATSConfig     `koanf:"nats"`
	Breaker breaker.Config `koanf:"breaker"`
}

// DefaultConfig publishes to Redis only, matching what dashboards expect.
func DefaultConfig() Config {
	return Config{
		Redis: RedisConfig{Enabled: true, Channel: DefaultRedisChannel},
		Webhook: WebhookConfig{
			Method:    "POST",
			RateLimit: 10,
			Burst:     20,
		},
		Kafka: KafkaConfig{Topic: "sentinel.alerts", ClientID: "sentinel"},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Subject:       "sentinel.alerts",
			MaxReconnects: -1,
		},
		Breaker: breaker.DefaultConfig(),
	}
}

// Validate checks every enabled sink.
func (c Config) Validate() error {
	var errs []error
	if c.Webhook.Enabled {
		errs = append(errs, c.Webhook.Validate())
	}
	if c.Kafka.Enabled {
		errs = append(errs, c.Kafka.Validate())
	}
	if c.NATS.Enabled {
		errs = append(errs, c.NATS.Validate())
	}
	return errors.Join(errs...)
}

// Build constructs every enabled sink, wraps each in its own breaker and
// returns them behind a Fanout. redisClient may be nil when the Redis sink
// is disabled. Sinks already built are closed if a later one fails.
func Build(cfg Config, redisClient *redis.Client) (*Fanout, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var sinks []detection.AlertSink
	fail := func(err error) (*Fanout, error) {
		_ = NewFanout(sinks...).Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		if redisClient == nil {
			return fail(fmt.Errorf("redis sink enabled without a redis client"))
		}
		sinks = append(sinks, NewRedisSink(redisClient, cfg.Redis.Channel))
	}
	if cfg.Webhook.Enabled {
		s, err := NewWebhookSink(cfg.Webhook)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.Kafka.Enabled {
		s, err := NewKafkaSink(cfg.Kafka)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}
	if cfg.NATS.Enabled {
		s, err := NewNATSSink(cfg.NATS, watermill.NewSlogLogger(logging.NewSlogLogger()))
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, s)
	}

	guarded := make([]detection.AlertSink, len(sinks))
	for i, s := range sinks {
		guarded[i] = WithBreaker(s, cfg.Breaker)
	}

	f := NewFanout(guarded...)
	logging.Info().Strs("sinks", f.Sinks()).Msg("alert sinks configured")
	return f, nil
}
