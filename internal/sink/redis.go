// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
)

// DefaultRedisChannel is the pub/sub channel dashboards subscribe to.
const DefaultRedisChannel = "alerts_channel"

// RedisSink publishes alerts on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

// NewRedisSink creates a sink publishing on channel. An empty channel uses
// DefaultRedisChannel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	return &RedisSink{client: client, channel: channel, now: time.Now}
}

// Name implements detection.AlertSink.
func (s *RedisSink) Name() string { return "redis" }

// Publish implements detection.AlertSink.
func (s *RedisSink) Publish(ctx context.Context, alert *detection.Alert) error {
	data, err := Encode(alert, s.now())
	if err != nil {
		return err
	}

	receivers, err := s.client.Publish(ctx, s.channel, data).Result()
	if err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", s.channel, err)
	}

	logging.Ctx(ctx).Debug().
		Str("alert_id", alert.ID).
		Str("channel", s.channel).
		Int64("receivers", receivers).
		Msg("alert published to redis")
	return nil
}
