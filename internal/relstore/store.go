// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package relstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/duckdb/duckdb-go/v2" // registers the "duckdb" driver
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver

	"github.com/tomtom215/sentinel/internal/detection"
	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// Supported SQL dialects.
const (
	DialectDuckDB   = "duckdb"
	DialectPostgres = "postgres"
)

// Config configures the relationship store.
type Config struct {
	// Dialect is "duckdb" (embedded) or "postgres".
	Dialect string `koanf:"dialect"`

	// DSN is a file path or ":memory:" for duckdb, a connection URL for postgres.
	DSN string `koanf:"dsn"`

	MaxOpenConns    int           `koanf:"max_open_conns"` // 0 uses NumCPU
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// DefaultConfig returns an embedded DuckDB configuration.
func DefaultConfig() Config {
	return Config{
		Dialect:         DialectDuckDB,
		DSN:             "/data/sentinel.duckdb",
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// SQLStore implements detection.RelationshipStore and detection.AlertStore
// over database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect string
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var (
	_ detection.RelationshipStore = (*SQLStore)(nil)
	_ detection.AlertStore        = (*SQLStore)(nil)
)

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	var driverName string
	switch cfg.Dialect {
	case DialectDuckDB:
		driverName = "duckdb"
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, err
		}
	case DialectPostgres:
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unsupported store dialect %q", cfg.Dialect)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Dialect, err)
	}
	configurePool(db, cfg)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %w", detection.ErrStoreUnavailable, cfg.Dialect, err)
	}

	if cfg.Dialect == DialectPostgres {
		err = migratePostgres(cfg.DSN)
	} else {
		err = migrateEmbedded(ctx, db)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.Info().Str("dialect", cfg.Dialect).Msg("relationship store opened")
	return New(db, cfg.Dialect), nil
}

// New wraps an open database. The schema must already exist.
func New(db *sql.DB, dialect string) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:     time.Now,
	}
}

// ensureDir creates the parent directory of a DuckDB file.
func ensureDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" {
		return nil
	}
	dir := filepath.Dir(strings.SplitN(dsn, "?", 2)[0])
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	return nil
}

// configurePool sets connection pool parameters
func configurePool(db *sql.DB, cfg Config) {
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
}

// DB returns the underlying handle.
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns the SQL dialect in use.
func (s *SQLStore) Dialect() string { return s.dialect }

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	start := time.Now()
	return s.observe("ping", start, s.db.PingContext(ctx))
}

// Close closes the database.
func (s *SQLStore) Close() error {
	logging.Info().Str("dialect", s.dialect).Msg("closing relationship store")
	return s.db.Close()
}

func (s *SQLStore) observe(op string, start time.Time, err error) error {
	err = classifySQLError(s.dialect, op, err)
	metrics.RecordStoreOperation(s.dialect, op, time.Since(start), err)
	return err
}

// classifySQLError maps connection failures to ErrStoreUnavailable and every
// other database error to ErrQueryFailure. ErrNotFound and context errors
// pass through.
func classifySQLError(dialect, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, detection.ErrNotFound),
		errors.Is(err, detection.ErrStoreUnavailable),
		errors.Is(err, detection.ErrQueryFailure):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s %s: %w", dialect, op, err)
	case isConnectionError(err):
		return fmt.Errorf("%w: %s %s: %w", detection.ErrStoreUnavailable, dialect, op, err)
	default:
		return fmt.Errorf("%w: %s %s: %w", detection.ErrQueryFailure, dialect, op, err)
	}
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "database is closed")
}
