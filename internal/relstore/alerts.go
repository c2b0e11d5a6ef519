// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package relstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tomtom215/sentinel/internal/detection"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000
)

var alertColumns = []string{
	"id", "event_id", "account_id", "detector_type", "layer",
	"description", "score", "status", "created_at",
}

// SaveAlert implements detection.AlertStore. Alerts are immutable; saving an
// existing id is a no-op.
func (s *SQLStore) SaveAlert(ctx context.Context, alert *detection.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}
	start := time.Now()

	query, args, err := s.sb.Insert("alerts").
		Columns(alertColumns...).
		Values(alert.ID, alert.EventID, alert.AccountID, string(alert.DetectorType), string(alert.Layer),
			alert.Description, alert.Score, string(alert.Status), alert.CreatedAt.UTC()).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build alert insert: %w", err)
	}

	_, err = s.db.ExecContext(ctx, query, args...)
	return s.observe("save_alert", start, err)
}

// GetAlert implements detection.AlertStore.
func (s *SQLStore) GetAlert(ctx context.Context, id string) (*detection.Alert, error) {
	start := time.Now()

	query, args, err := s.sb.Select(alertColumns...).From("alerts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build alert query: %w", err)
	}

	alert, err := scanAlert(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("alert %s: %w", id, detection.ErrNotFound)
	}
	if err != nil {
		return nil, s.observe("get_alert", start, err)
	}
	return &alert, s.observe("get_alert", start, nil)
}

// ListAlerts implements detection.AlertStore, newest first.
func (s *SQLStore) ListAlerts(ctx context.Context, filter detection.AlertFilter) ([]detection.Alert, error) {
	start := time.Now()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAlertLimit
	}
	limit = min(limit, maxAlertLimit)

	q := applyAlertFilter(s.sb.Select(alertColumns...).From("alerts"), filter).
		OrderBy("created_at DESC", "id").
		Limit(uint64(limit))
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build alert query: %w", err)
	}

	alerts, err := s.queryAlerts(ctx, query, args)
	return alerts, s.observe("list_alerts", start, err)
}

func (s *SQLStore) queryAlerts(ctx context.Context, query string, args []any) ([]detection.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := make([]detection.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// GetAlertCount implements detection.AlertStore. Limit and Offset are ignored.
func (s *SQLStore) GetAlertCount(ctx context.Context, filter detection.AlertFilter) (int, error) {
	start := time.Now()

	query, args, err := applyAlertFilter(s.sb.Select("COUNT(*)").From("alerts"), filter).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build alert count: %w", err)
	}

	var n int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, s.observe("count_alerts", start, err)
}

func applyAlertFilter(q sq.SelectBuilder, f detection.AlertFilter) sq.SelectBuilder {
	eq := sq.Eq{}
	if f.AccountID != "" {
		eq["account_id"] = f.AccountID
	}
	if f.EventID != "" {
		eq["event_id"] = f.EventID
	}
	if f.Status != "" {
		eq["status"] = string(f.Status)
	}
	if f.DetectorType != "" {
		eq["detector_type"] = string(f.DetectorType)
	}
	if len(eq) == 0 {
		return q
	}
	return q.Where(eq)
}

func scanAlert(row rowScanner) (detection.Alert, error) {
	var a detection.Alert
	var detector, layer, status string
	err := row.Scan(&a.ID, &a.EventID, &a.AccountID, &detector, &layer,
		&a.Description, &a.Score, &status, &a.CreatedAt)
	if err != nil {
		return detection.Alert{}, err
	}
	a.DetectorType = detection.DetectorType(detector)
	a.Layer = detection.Layer(layer)
	a.Status = detection.AlertStatus(status)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}
