// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package ephemeral

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// BadgerConfig configures the embedded state store.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval is how often value log garbage collection runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// MaxConflictRetries bounds retries of a conflicting transaction.
	MaxConflictRetries int `koanf:"max_conflict_retries"`
}

// DefaultBadgerConfig returns defaults for the embedded store.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		Path:               "/data/state",
		GCInterval:         5 * time.Minute,
		MaxConflictRetries: 20,
	}
}

const (
	kvPrefix  = "kv:"
	setPrefix = "set:"
)

// BadgerStore is the badger-backed state store.
type BadgerStore struct {
	db     *badger.DB
	config BadgerConfig
}

// OpenBadger opens (or creates) the store described by cfg.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	if cfg.MaxConflictRetries <= 0 {
		cfg.MaxConflictRetries = 1
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("badger state store opened")
	return &BadgerStore{db: db, config: cfg}, nil
}

// update runs fn in a read-write transaction, retrying on conflict.
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < s.config.MaxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// readValue returns the value and expiry of key, or found=false.
func readValue(txn *badger.Txn, key []byte) (value []byte, expiresAt uint64, found bool, err error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}
	value, err = item.ValueCopy(nil)
	return value, item.ExpiresAt(), err == nil, err
}

// newEntry keeps an existing expiry, otherwise applies ttl.
func newEntry(key, value []byte, expiresAt uint64, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry(key, value)
	switch {
	case expiresAt > 0:
		e.ExpiresAt = expiresAt
	case ttl > 0:
		e = e.WithTTL(ttl)
	}
	return e
}

// Incr implements detection.StateStore.
func (s *BadgerStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()
	k := []byte(kvPrefix + key)

	var n int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		raw, exp, found, err := readValue(txn, k)
		if err != nil {
			return err
		}
		n = 0
		if found {
			if n, err = strconv.ParseInt(string(raw), 10, 64); err != nil {
				return fmt.Errorf("%w: %s is not an integer", detection.ErrQueryFailure, key)
			}
		}
		n++
		return txn.SetEntry(newEntry(k, []byte(strconv.FormatInt(n, 10)), exp, ttl))
	})
	return n, s.observe("incr", start, err)
}

// IncrFloat implements detection.StateStore.
func (s *BadgerStore) IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	start := time.Now()
	k := []byte(kvPrefix + key)

	var v float64
	err := s.update(ctx, func(txn *badger.Txn) error {
		raw, exp, found, err := readValue(txn, k)
		if err != nil {
			return err
		}
		v = 0
		if found {
			if v, err = strconv.ParseFloat(string(raw), 64); err != nil {
				return fmt.Errorf("%w: %s is not a number", detection.ErrQueryFailure, key)
			}
		}
		v += delta
		return txn.SetEntry(newEntry(k, []byte(strconv.FormatFloat(v, 'f', -1, 64)), exp, ttl))
	})
	return v, s.observe("incr_float", start, err)
}

// PushWindow implements detection.StateStore. The window is stored as one
// JSON array value.
func (s *BadgerStore) PushWindow(ctx context.Context, key string, value []byte, size int) ([][]byte, error) {
	start := time.Now()
	k := []byte(kvPrefix + key)

	var window [][]byte
	err := s.update(ctx, func(txn *badger.Txn) error {
		raw, _, found, err := readValue(txn, k)
		if err != nil {
			return err
		}
		window = nil
		if found {
			if err := json.Unmarshal(raw, &window); err != nil {
				return fmt.Errorf("%w: corrupt window %s: %w", detection.ErrQueryFailure, key, err)
			}
		}
		window = append(window, value)
		if len(window) > size {
			window = window[len(window)-size:]
		}
		data, err := json.Marshal(window)
		if err != nil {
			return err
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return nil, s.observe("push_window", start, err)
	}
	return window, s.observe("push_window", start, nil)
}

func setKey(set, member string) []byte {
	return []byte(setPrefix + set + ":" + member)
}

// IsMember implements detection.StateStore.
func (s *BadgerStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(setKey(set, member))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		found = err == nil
		return err
	})
	return found, s.observe("is_member", start, err)
}

// AddMembers adds members to a set.
func (s *BadgerStore) AddMembers(ctx context.Context, set string, members ...string) error {
	start := time.Now()
	err := s.update(ctx, func(txn *badger.Txn) error {
		for _, m := range members {
			if err := txn.Set(setKey(set, m), nil); err != nil {
				return err
			}
		}
		return nil
	})
	return s.observe("add_members", start, err)
}

// SetNX implements detection.StateStore.
func (s *BadgerStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	start := time.Now()
	k := []byte(kvPrefix + key)

	var acquired bool
	err := s.update(ctx, func(txn *badger.Txn) error {
		_, _, found, err := readValue(txn, k)
		if err != nil {
			return err
		}
		acquired = !found
		if found {
			return nil
		}
		return txn.SetEntry(newEntry(k, []byte(value), 0, ttl))
	})
	return acquired, s.observe("setnx", start, err)
}

// Get implements detection.StateStore.
func (s *BadgerStore) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var value []byte
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		value, _, found, err = readValue(txn, []byte(kvPrefix+key))
		return err
	})
	return string(value), found, s.observe("get", start, err)
}

// Set implements detection.StateStore.
func (s *BadgerStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.SetEntry(newEntry([]byte(kvPrefix+key), []byte(value), 0, ttl))
	})
	return s.observe("set", start, err)
}

// Del implements detection.StateStore.
func (s *BadgerStore) Del(ctx context.Context, key string) error {
	start := time.Now()
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(kvPrefix + key))
	})
	return s.observe("del", start, err)
}

// Ping reports whether the database is open.
func (s *BadgerStore) Ping(context.Context) error {
	if s.db.IsClosed() {
		return fmt.Errorf("%w: badger closed", detection.ErrStoreUnavailable)
	}
	return nil
}

// Close closes the database.
func (s *BadgerStore) Close() error {
	logging.Info().Msg("closing badger state store")
	return s.db.Close()
}

// RunGC triggers BadgerDB value log garbage collection.
func (s *BadgerStore) RunGC() error {
	if s.config.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			break
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
	return nil
}

// Serve runs periodic garbage collection until ctx is canceled. It lets the
// store run as a supervised service.
func (s *BadgerStore) Serve(ctx context.Context) error {
	interval := s.config.GCInterval
	if interval <= 0 {
		interval = DefaultBadgerConfig().GCInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("badger value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (s *BadgerStore) String() string { return "badger-state-gc" }

func (s *BadgerStore) observe(op string, start time.Time, err error) error {
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, detection.ErrQueryFailure):
	case errors.Is(err, badger.ErrDBClosed), errors.Is(err, badger.ErrConflict):
		err = fmt.Errorf("%w: badger %s: %w", detection.ErrStoreUnavailable, op, err)
	default:
		err = fmt.Errorf("%w: badger %s: %w", detection.ErrQueryFailure, op, err)
	}
	metrics.RecordStoreOperation("badger", op, time.Since(start), err)
	return err
}
