// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

// Package ephemeral implements detection.StateStore: the fast key-value store
// holding velocity counters, night accumulators, sliding windows, blocklist
// sets and the idempotency keys.
//
// Backends:
//   - RedisStore: go-redis v9. Increment-then-expire runs as a Lua script so
//     the counter and its TTL are one atomic unit; the sliding window is a
//     MULTI/EXEC of RPUSH, LTRIM and LRANGE.
//   - BadgerStore: embedded badger v4 for single-node deployments. Every
//     read-modify-write is a badger transaction retried on conflict. Entry
//     TTLs carry the counter expiry.
//
// Guarded wraps either backend in a circuit breaker. Connectivity failures
// and breaker rejections surface as detection.ErrStoreUnavailable so the
// engine can apply its failure policy.
//
// Key layout (see detection.StateKey):
//
//	recency:{account}    velocity counter, TTL 1h
//	small_trx:{account}  small transaction counter, TTL 1h
//	night_cum:{account}  night value accumulator, TTL 8h
//	window:{account}     last N transactions, JSON entries
//	decision:{scope:id}  cached decision, TTL 24h
//	inflight:{scope:id}  in-flight marker, TTL 30s
//
// Sets: watchlist, ip_blacklist, watchlist_ktp, watchlist_address,
// watchlist_phone, watchlist_name.
package ephemeral
