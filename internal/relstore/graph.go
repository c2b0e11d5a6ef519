// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tomtom215/sentinel/internal/detection"
)

const upsertAccountSuffix = `ON CONFLICT (id) DO UPDATE SET
	ktp = EXCLUDED.ktp,
	address = EXCLUDED.address,
	phone = EXCLUDED.phone,
	name = EXCLUDED.name,
	updated_at = EXCLUDED.updated_at`

const upsertTransactionSuffix = `ON CONFLICT (id) DO UPDATE SET
	account_id = EXCLUDED.account_id,
	merchant_id = EXCLUDED.merchant_id,
	amount = EXCLUDED.amount,
	kind = EXCLUDED.kind,
	local_time = EXCLUDED.local_time,
	description = EXCLUDED.description,
	ip_address = EXCLUDED.ip_address,
	occurred_at = EXCLUDED.occurred_at,
	recorded_at = EXCLUDED.recorded_at`

// aggregateColumns must stay in the order scanAggregate reads them.
var aggregateColumns = []string{
	"COUNT(*)",
	"COALESCE(SUM(amount), 0)",
	"COALESCE(AVG(amount), 0)",
	"COALESCE(VAR_POP(amount), 0)",
	"MAX(occurred_at)",
}

// UpsertAccount implements detection.RelationshipStore.
func (s *SQLStore) UpsertAccount(ctx context.Context, account *detection.AccountEvent) error {
	start := time.Now()
	now := s.now().UTC()

	query, args, err := s.sb.Insert("accounts").
		Columns("id", "ktp", "address", "phone", "name", "created_at", "updated_at").
		Values(account.AccountID, account.KTP, account.Address, account.Phone, account.Name, now, now).
		Suffix(upsertAccountSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build account upsert: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return s.observe("upsert_account", start, err)
}

// UpsertTransaction implements detection.RelationshipStore. The edge is keyed
// by event id; the source account vertex is created when missing.
func (s *SQLStore) UpsertTransaction(ctx context.Context, t *detection.TransactionEvent) error {
	start := time.Now()
	now := s.now().UTC()
	occurredAt := t.OccurredAt.UTC()
	if t.OccurredAt.IsZero() {
		occurredAt = now
	}

	vertex, vertexArgs, err := s.sb.Insert("accounts").
		Columns("id", "created_at", "updated_at").
		Values(t.AccountID, now, now).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build account insert: %w", err)
	}
	edge, edgeArgs, err := s.sb.Insert("transactions").
		Columns("id", "account_id", "merchant_id", "amount", "kind", "local_time",
			"description", "ip_address", "occurred_at", "recorded_at").
		Values(t.ID, t.AccountID, t.MerchantID, t.Amount, string(t.Kind), t.Time,
			t.Description, t.IPAddress, occurredAt, now).
		Suffix(upsertTransactionSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build transaction upsert: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, vertex, vertexArgs...); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, edge, edgeArgs...)
		return err
	})
	return s.observe("upsert_transaction", start, err)
}

func (s *SQLStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// applyTransactionFilter adds one condition per non-zero filter field.
func applyTransactionFilter(q sq.SelectBuilder, f detection.TransactionFilter) sq.SelectBuilder {
	if f.AccountID != "" {
		switch f.Direction {
		case detection.DirectionOutgoing:
			q = q.Where(sq.Eq{"account_id": f.AccountID})
		case detection.DirectionIncoming:
			q = q.Where(sq.Eq{"merchant_id": f.AccountID})
		default:
			q = q.Where(sq.Or{sq.Eq{"account_id": f.AccountID}, sq.Eq{"merchant_id": f.AccountID}})
		}
	}
	if f.MerchantID != "" {
		q = q.Where(sq.Eq{"merchant_id": f.MerchantID})
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		q = q.Where(sq.Eq{"kind": kinds})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"occurred_at": f.Since.UTC()})
	}
	if f.ExcludeEventID != "" {
		q = q.Where(sq.NotEq{"id": f.ExcludeEventID})
	}
	return q
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAggregate(row rowScanner, prefix ...any) (detection.Aggregate, error) {
	var agg detection.Aggregate
	var latest sql.NullTime
	dest := append(prefix, &agg.Count, &agg.Sum, &agg.Mean, &agg.Variance, &latest)
	if err := row.Scan(dest...); err != nil {
		return detection.Aggregate{}, err
	}
	if latest.Valid {
		agg.Latest = latest.Time.UTC()
	}
	return agg, nil
}

// AggregateTransactions implements detection.RelationshipStore. Variance is
// the population variance.
func (s *SQLStore) AggregateTransactions(ctx context.Context, filter detection.TransactionFilter) (detection.Aggregate, error) {
	start := time.Now()

	query, args, err := applyTransactionFilter(s.sb.Select(aggregateColumns...).From("transactions"), filter).ToSql()
	if err != nil {
		return detection.Aggregate{}, fmt.Errorf("failed to build aggregate query: %w", err)
	}

	agg, err := scanAggregate(s.db.QueryRowContext(ctx, query, args...))
	return agg, s.observe("aggregate", start, err)
}

// AggregateTransactionsByKind implements detection.RelationshipStore. Kinds
// with no matching transactions are absent from the result.
func (s *SQLStore) AggregateTransactionsByKind(ctx context.Context, filter detection.TransactionFilter) (map[detection.TxKind]detection.Aggregate, error) {
	start := time.Now()

	q := s.sb.Select(append([]string{"kind"}, aggregateColumns...)...).From("transactions")
	query, args, err := applyTransactionFilter(q, filter).GroupBy("kind").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build aggregate query: %w", err)
	}

	out, err := s.queryByKind(ctx, query, args)
	return out, s.observe("aggregate_by_kind", start, err)
}

func (s *SQLStore) queryByKind(ctx context.Context, query string, args []any) (map[detection.TxKind]detection.Aggregate, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[detection.TxKind]detection.Aggregate)
	for rows.Next() {
		var kind string
		agg, err := scanAggregate(rows, &kind)
		if err != nil {
			return nil, err
		}
		out[detection.TxKind(kind)] = agg
	}
	return out, rows.Err()
}

// FindIdentityMatches implements detection.RelationshipStore. Only the
// non-empty attributes of account take part in matching.
func (s *SQLStore) FindIdentityMatches(ctx context.Context, account *detection.AccountEvent, minMatches int) ([]detection.IdentityMatch, error) {
	start := time.Now()
	minMatches = max(minMatches, 1)

	var expr string
	var args []any
	for _, attr := range []struct{ column, value string }{
		{"ktp", account.KTP},
		{"address", account.Address},
		{"phone", account.Phone},
	} {
		if attr.value == "" {
			continue
		}
		if expr != "" {
			expr += " + "
		}
		expr += "CASE WHEN " + attr.column + " = ? THEN 1 ELSE 0 END"
		args = append(args, attr.value)
	}
	if expr == "" {
		return nil, s.observe("identity_matches", start, nil)
	}

	query, queryArgs, err := s.sb.Select("id").
		Column(sq.Alias(sq.Expr(expr, args...), "matches")).
		From("accounts").
		Where(sq.NotEq{"id": account.AccountID}).
		Where(sq.Expr("("+expr+") >= ?", append(append([]any{}, args...), minMatches)...)).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build identity query: %w", err)
	}

	matches, err := s.queryMatches(ctx, query, queryArgs)
	return matches, s.observe("identity_matches", start, err)
}

func (s *SQLStore) queryMatches(ctx context.Context, query string, args []any) ([]detection.IdentityMatch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []detection.IdentityMatch
	for rows.Next() {
		var m detection.IdentityMatch
		if err := rows.Scan(&m.AccountID, &m.Matches); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
