// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Config configures the Kafka ingest consumer.
type Config struct {
	Enabled        bool          `koanf:"enabled"`
	Brokers        []string      `koanf:"brokers"`
	Topic          string        `koanf:"topic"`
	Group          string        `koanf:"group"`
	ClientID       string        `koanf:"client_id"`
	ProcessTimeout time.Duration `koanf:"process_timeout"`

	// InFlightRetries bounds retries of events another worker is evaluating.
	InFlightRetries uint64 `koanf:"inflight_retries"`
}

// DefaultConfig returns ingest defaults. Ingest is disabled by default.
func DefaultConfig() Config {
	return Config{
		Brokers:         []string{"localhost:9092"},
		Topic:           "sentinel.events",
		Group:           "sentinel",
		ClientID:        "sentinel",
		ProcessTimeout:  10 * time.Second,
		InFlightRetries: 5,
	}
}

// Validate checks if the ingest configuration is valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("ingest requires at least one broker")
	}
	if c.Topic == "" {
		return fmt.Errorf("ingest topic is required")
	}
	if c.Group == "" {
		return fmt.Errorf("ingest consumer group is required")
	}
	if c.ProcessTimeout <= 0 {
		return fmt.Errorf("ingest process_timeout must be positive")
	}
	return nil
}

// Processor evaluates one event. *detection.Engine satisfies it.
type Processor interface {
	Process(ctx context.Context, event detection.Event) (*detection.Decision, error)
}

// client is the subset of *kgo.Client the consumer uses.
type client interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
	Close()
}

// Stats is a snapshot of consumer counters.
type Stats struct {
	Processed int64 `json:"processed"`
	Rejected  int64 `json:"rejected"`
	Committed int64 `json:"committed"`
}

// Consumer reads events from Kafka and runs them through the engine.
type Consumer struct {
	client    client
	processor Processor
	cfg       Config

	processed atomic.Int64
	rejected  atomic.Int64
	committed atomic.Int64
}

// NewConsumer joins the configured consumer group. Auto-commit is disabled;
// offsets are committed after each fetch has been evaluated.
func NewConsumer(cfg Config, processor Processor) (*Consumer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if processor == nil {
		return nil, fmt.Errorf("ingest requires a processor")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return newConsumer(cl, processor, cfg), nil
}

func newConsumer(cl client, processor Processor, cfg Config) *Consumer {
	return &Consumer{client: cl, processor: processor, cfg: cfg}
}

// String implements fmt.Stringer for suture logging.
func (c *Consumer) String() string {
	return "kafka-ingest"
}

// Stats returns the consumer counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		Processed: c.processed.Load(),
		Rejected:  c.rejected.Load(),
		Committed: c.committed.Load(),
	}
}

// Serve implements suture.Service. It polls until ctx is canceled, then
// leaves the group and closes the client.
func (c *Consumer) Serve(ctx context.Context) error {
	logging.Info().Str("topic", c.cfg.Topic).Str("group", c.cfg.Group).Msg("kafka ingest started")
	defer func() {
		c.client.Close()
		logging.Info().Msg("kafka ingest stopped")
	}()

	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if fetches.IsClientClosed() {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			logging.Warn().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		var done []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			if ctx.Err() != nil {
				return
			}
			if c.handle(ctx, record) {
				done = append(done, record)
			}
		})

		if len(done) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, done...); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.Error().Err(err).Int("records", len(done)).Msg("failed to commit offsets")
			continue
		}
		c.committed.Add(int64(len(done)))
	}
}

// handle evaluates one record and reports whether its offset may be
// committed. Only shutdown leaves a record uncommitted.
func (c *Consumer) handle(ctx context.Context, record *kgo.Record) bool {
	log := logging.Ctx(ctx).With().
		Str("topic", record.Topic).
		Int32("partition", record.Partition).
		Int64("offset", record.Offset).
		Logger()
	metrics.IngestMessagesConsumed.Inc()

	event, err := detection.DecodeEvent(record.Value)
	if err != nil {
		metrics.RecordRejected("malformed")
		metrics.IngestMessagesFailed.WithLabelValues("malformed").Inc()
		c.rejected.Add(1)
		log.Warn().Err(err).Msg("skipping undecodable record")
		return true
	}

	var decision *detection.Decision
	op := func() error {
		procCtx, cancel := context.WithTimeout(ctx, c.cfg.ProcessTimeout)
		defer cancel()

		d, err := c.processor.Process(procCtx, event)
		if errors.Is(err, detection.ErrDuplicateInFlight) {
			return err
		}
		decision = d
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxInterval = time.Second
	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, c.cfg.InFlightRetries), ctx))

	switch {
	case ctx.Err() != nil:
		return false
	case err != nil:
		c.rejected.Add(1)
		metrics.IngestMessagesFailed.WithLabelValues(failureReason(err)).Inc()
		log.Warn().Err(err).Str("event_id", event.EventID()).Msg("event rejected")
		return true
	}

	c.processed.Add(1)
	if decision != nil {
		log.Debug().
			Str("event_id", decision.EventID).
			Str("status", string(decision.Status)).
			Bool("replayed", decision.Replayed).
			Msg("event evaluated")
	}
	return true
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, detection.ErrInvalidEvent):
		return "invalid"
	case errors.Is(err, detection.ErrDuplicateInFlight):
		return "in_flight"
	default:
		return "error"
	}
}
