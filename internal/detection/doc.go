// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package detection evaluates financial transactions and account events
// against layered fraud detectors and returns a decision for each event.
//
// Detection Architecture:
//
//	Event -> Engine -> [Reactive -> Agents -> Behavioral] -> Alerts -> {AlertStore, AlertSink}
//	                       |           |           |
//	                       v           v           v
//	                  StateStore  RelationshipStore + StateStore
//
// Layers:
//   - Reactive: ordered counter and set checks against the state store. The
//     first rule to fire ends the pass. Hits block.
//   - Agents: chargeback abuse, merchant cashback, merchant behavior,
//     dormant account, identity collision and identity watchlist. They run
//     concurrently and query the relationship store.
//   - Behavioral: cumulative amount, z-score against the account profile and
//     a pluggable Scorer fed by the account's sliding window. Hits are
//     flagged for review.
//
// Store failures skip the affected detector (fail open). With
// FailurePolicy "closed" a failed blocking detector raises a blocking alert
// instead.
//
// Every layer runs for every event; a reactive hit does not skip the agents.
package detection
