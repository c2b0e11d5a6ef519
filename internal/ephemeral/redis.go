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

	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// DefaultRedisConfig returns defaults for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     20,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	}
}

// NewRedisClient opens a client for cfg. The client is shared by the state
// store and the Redis alert sink.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// incrScript increments a counter and sets its expiry only when it has none,
// so the window starts at the first increment.
var incrScript = redis.NewScript(`
local v = redis.call('INCR', KEYS[1])
if tonumber(ARGV[1]) > 0 and redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return v
`)

// incrFloatScript is incrScript for float accumulators. INCRBYFLOAT replies
// with a bulk string.
var incrFloatScript = redis.NewScript(`
local v = redis.call('INCRBYFLOAT', KEYS[1], ARGV[1])
if tonumber(ARGV[2]) > 0 and redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return v
`)

// RedisStore is the Redis-backed state store.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store over client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Client returns the underlying client.
func (s *RedisStore) Client() *redis.Client { return s.client }

// Incr implements detection.StateStore.
func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()
	n, err := incrScript.Run(ctx, s.client, []string{key}, ttlMillis(ttl)).Int64()
	return n, s.observe("incr", start, err)
}

// IncrFloat implements detection.StateStore.
func (s *RedisStore) IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	start := time.Now()
	raw, err := incrFloatScript.Run(ctx, s.client, []string{key},
		strconv.FormatFloat(delta, 'f', -1, 64), ttlMillis(ttl)).Text()
	if err != nil {
		return 0, s.observe("incr_float", start, err)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		err = fmt.Errorf("%w: unexpected INCRBYFLOAT reply %q", detection.ErrQueryFailure, raw)
		metrics.RecordStoreOperation("redis", "incr_float", time.Since(start), err)
		return 0, err
	}
	return v, s.observe("incr_float", start, nil)
}

// PushWindow implements detection.StateStore.
func (s *RedisStore) PushWindow(ctx context.Context, key string, value []byte, size int) ([][]byte, error) {
	start := time.Now()

	var lrange *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, value)
		pipe.LTrim(ctx, key, int64(-size), -1)
		lrange = pipe.LRange(ctx, key, 0, -1)
		return nil
	})
	if err != nil {
		return nil, s.observe("push_window", start, err)
	}

	entries := lrange.Val()
	window := make([][]byte, len(entries))
	for i, e := range entries {
		window[i] = []byte(e)
	}
	return window, s.observe("push_window", start, nil)
}

// IsMember implements detection.StateStore.
func (s *RedisStore) IsMember(ctx context.Context, set, member string) (bool, error) {
	start := time.Now()
	ok, err := s.client.SIsMember(ctx, set, member).Result()
	return ok, s.observe("is_member", start, err)
}

// AddMembers adds members to a set.
func (s *RedisStore) AddMembers(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	start := time.Now()
	args := make([]any, len(members))
	for i, m := range members {
		args[i] = m
	}
	return s.observe("add_members", start, s.client.SAdd(ctx, set, args...).Err())
}

// SetNX implements detection.StateStore.
func (s *RedisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	start := time.Now()
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	return ok, s.observe("setnx", start, err)
}

// Get implements detection.StateStore.
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, s.observe("get", start, nil)
	}
	if err != nil {
		return "", false, s.observe("get", start, err)
	}
	return v, true, s.observe("get", start, nil)
}

// Set implements detection.StateStore.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	return s.observe("set", start, s.client.Set(ctx, key, value, ttl).Err())
}

// Del implements detection.StateStore.
func (s *RedisStore) Del(ctx context.Context, key string) error {
	start := time.Now()
	return s.observe("del", start, s.client.Del(ctx, key).Err())
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	start := time.Now()
	return s.observe("ping", start, s.client.Ping(ctx).Err())
}

// Close closes the client.
func (s *RedisStore) Close() error {
	logging.Info().Msg("closing redis state store")
	return s.client.Close()
}

func (s *RedisStore) observe(op string, start time.Time, err error) error {
	err = classifyRedisError(op, err)
	metrics.RecordStoreOperation("redis", op, time.Since(start), err)
	return err
}

// classifyRedisError maps server replies to ErrQueryFailure and everything
// else (dial, timeout, closed pool) to ErrStoreUnavailable.
func classifyRedisError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("redis %s: %w", op, err)
	}
	var reply redis.Error
	if errors.As(err, &reply) {
		return fmt.Errorf("%w: redis %s: %w", detection.ErrQueryFailure, op, err)
	}
	return fmt.Errorf("%w: redis %s: %w", detection.ErrStoreUnavailable, op, err)
}

func ttlMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return max(ttl.Milliseconds(), 1)
}
