// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

/*
Package relstore is the persistent relationship store: accounts are vertices,
transactions are edges between an account and its counterparty, and alerts are
kept alongside for review.

Two SQL dialects are supported through database/sql:

  - duckdb: embedded (github.com/duckdb/duckdb-go/v2), the default. Migrations
    under migrations/duckdb are applied directly and tracked in the
    schema_migrations table.
  - postgres: github.com/jackc/pgx/v5/stdlib. Migrations under
    migrations/postgres are applied with golang-migrate.

Queries are built with github.com/Masterminds/squirrel using $n placeholders,
which both dialects accept.

Errors are classified for the detection engine: connection failures wrap
detection.ErrStoreUnavailable, any other database error wraps
detection.ErrQueryFailure, and a missing alert wraps detection.ErrNotFound.

Usage:

	store, err := relstore.Open(ctx, relstore.Config{Dialect: relstore.DialectDuckDB, DSN: ":memory:"})
	if err != nil {
		return err
	}
	defer store.Close()

	guarded := relstore.NewGuarded(store, "relstore", breaker.DefaultConfig())
*/
package relstore
