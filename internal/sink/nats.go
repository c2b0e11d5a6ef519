// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

//go:build nats

package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/sentinel/internal/detection"
)

// NATSSink publishes alerts to a NATS JetStream subject through Watermill.
type NATSSink struct {
	publisher message.Publisher
	subject   string
	logger    watermill.LoggerAdapter
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewNATSSink creates a JetStream publisher. The stream covering
// cfg.Subject is provisioned on first publish.
func NewNATSSink(cfg NATSConfig, logger watermill.LoggerAdapter) (*NATSSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	wmConfig := wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}

	pub, err := wmNats.NewPublisher(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	return &NATSSink{
		publisher: pub,
		subject:   cfg.Subject,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Name implements detection.AlertSink.
func (s *NATSSink) Name() string { return "nats" }

// Publish implements detection.AlertSink. The alert ID doubles as the
// Nats-Msg-Id so JetStream drops duplicate publishes.
func (s *NATSSink) Publish(ctx context.Context, alert *detection.Alert) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("nats sink is closed")
	}

	data, err := Encode(alert, s.now())
	if err != nil {
		return err
	}

	msg := message.NewMessage(alert.ID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, alert.ID)
	msg.Metadata.Set("event_type", EventTypeFraudAlert)
	msg.Metadata.Set("account_id", alert.AccountID)

	if err := s.publisher.Publish(s.subject, msg); err != nil {
		return fmt.Errorf("publish alert %s to %s: %w", alert.ID, s.subject, err)
	}
	return nil
}

// Close shuts down the publisher.
func (s *NATSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.publisher.Close()
}
