// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tomtom215/sentinel/internal/detection"
)

// KafkaConfig configures the Kafka alert sink.
type KafkaConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Brokers  []string `koanf:"brokers"`
	Topic    string   `koanf:"topic"`
	ClientID string   `koanf:"client_id"`
}

// Validate checks if the Kafka configuration is valid.
func (c KafkaConfig) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka sink requires at least one broker")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka sink topic is required")
	}
	return nil
}

// producer is the subset of *kgo.Client the sink uses.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaSink produces alert envelopes to a Kafka topic, keyed by account so
// alerts for one account stay ordered within a partition.
type KafkaSink struct {
	client producer
	topic  string
	now    func() time.Time
}

// NewKafkaSink connects a franz-go producer client.
func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return newKafkaSink(client, cfg.Topic), nil
}

func newKafkaSink(client producer, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic, now: time.Now}
}

// Name implements detection.AlertSink.
func (s *KafkaSink) Name() string { return "kafka" }

// Publish implements detection.AlertSink.
func (s *KafkaSink) Publish(ctx context.Context, alert *detection.Alert) error {
	data, err := Encode(alert, s.now())
	if err != nil {
		return err
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(alert.AccountID),
		Value: data,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(EventTypeFraudAlert)},
			{Key: "alert_id", Value: []byte(alert.ID)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce alert %s to %s: %w", alert.ID, s.topic, err)
	}
	return nil
}

// Close flushes and closes the producer client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
