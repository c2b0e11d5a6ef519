// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package ingest feeds events from a Kafka topic into the detection engine.

The Consumer joins a consumer group with franz-go, decodes each record with
detection.DecodeEvent and hands the event to the engine. Offsets are
committed only after a record has been evaluated, so a crash redelivers
rather than loses events; the engine's idempotency guard turns redeliveries
into cached replays.

Records that cannot be decoded or fail validation are logged and committed
so a single poison message cannot stall its partition. Records rejected as
already in flight are retried with exponential backoff until the other
evaluation finishes and its decision can be replayed.

The Consumer implements suture.Service and is meant to run under the
supervisor tree:

	consumer, err := ingest.NewConsumer(cfg.Ingest, engine)
	if err != nil {
		return err
	}
	tree.AddMessagingService(consumer)
*/
package ingest
