// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"time"
)

// DetectorType identifies the rule or agent that raised a signal.
type DetectorType string

const (
	// Reactive layer rules, in evaluation order.
	DetectorWatchlist         DetectorType = "watchlist"
	DetectorIPBlacklist       DetectorType = "ip_blacklist"
	DetectorSensitiveKeyword  DetectorType = "sensitive_keyword"
	DetectorSmallTransaction  DetectorType = "repeated_small_transaction"
	DetectorNightAccumulation DetectorType = "night_value_accumulation"
	DetectorVelocity          DetectorType = "recency_velocity"
	DetectorOffHours          DetectorType = "off_hours"

	// Specialized agents.
	DetectorChargeback        DetectorType = "chargeback_abuse"
	DetectorMerchantCashback  DetectorType = "merchant_cashback"
	DetectorMerchantBehavior  DetectorType = "merchant_behavior"
	DetectorDormantAccount    DetectorType = "dormant_account"
	DetectorIdentityCollision DetectorType = "identity_collision"
	DetectorIdentityWatchlist DetectorType = "fraud_identity_watchlist"

	// Behavioral layer steps.
	DetectorMonetaryFixed  DetectorType = "monetary_fixed"
	DetectorMonetaryZScore DetectorType = "monetary_zscore"
	DetectorPredictive     DetectorType = "predictive_anomaly"
)

// Layer names the pipeline stage that produced an alert.
type Layer string

const (
	LayerReactive   Layer = "reactive"
	LayerAgent      Layer = "agent"
	LayerBehavioral Layer = "behavioral"
)

// AlertStatus is the action attached to an alert.
type AlertStatus string

const (
	StatusBlocked          AlertStatus = "BLOCKED"
	StatusFlaggedForReview AlertStatus = "FLAGGED_FOR_REVIEW"
)

// DecisionStatus is the pipeline's verdict for one event.
type DecisionStatus string

const (
	DecisionApproved      DecisionStatus = "APPROVED"
	DecisionFraudDetected DecisionStatus = "FRAUD_DETECTED"
)

// TxKind is the transaction type. Unknown kinds are accepted and stored as-is.
type TxKind string

const (
	KindSale       TxKind = "SALE"
	KindRefund     TxKind = "REFUND"
	KindChargeback TxKind = "CHARGEBACK"
	KindCashback   TxKind = "CASHBACK"
	KindTransfer   TxKind = "TRANSFER"
	KindPayment    TxKind = "PAYMENT"
	KindCashOut    TxKind = "CASH_OUT"
	KindDebit      TxKind = "DEBIT"
)

// Event is a closed union of the inputs the pipeline accepts:
// *TransactionEvent and *AccountEvent.
type Event interface {
	EventID() string
	Account() string
	Validate() error
	isEvent()
}

// TransactionEvent is a single financial transaction. It is never mutated by
// detectors.
type TransactionEvent struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"account_id"`
	MerchantID  string  `json:"merchant_id,omitempty"`
	Amount      float64 `json:"amount"`
	Time        string  `json:"time,omitempty"` // local time of day, "HH:MM" or "HH:MM:SS"
	Kind        TxKind  `json:"type"`
	Description string  `json:"description,omitempty"`
	IPAddress   string  `json:"ip_address,omitempty"`

	// OccurredAt anchors the observation windows. Zero means "now".
	OccurredAt time.Time `json:"timestamp,omitempty"`
}

// AccountEvent carries the identity attributes of an account registration or
// profile change.
type AccountEvent struct {
	AccountID string `json:"account_id"`
	KTP       string `json:"ktp,omitempty"`
	Address   string `json:"address,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Signal is the outcome of one detector for one event.
type Signal struct {
	Detector DetectorType
	Fired    bool
	Reason   string
	Score    int
}

// Alert is created by the engine for every fired signal. Alerts are persisted
// and published, never updated.
type Alert struct {
	ID           string       `json:"id"`
	EventID      string       `json:"event_id"`
	AccountID    string       `json:"account_id"`
	DetectorType DetectorType `json:"detector_type"`
	Layer        Layer        `json:"layer"`
	Description  string       `json:"description"`
	Score        int          `json:"score"`
	Status       AlertStatus  `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Decision is returned synchronously to the caller.
type Decision struct {
	EventID         string         `json:"event_id"`
	Status          DecisionStatus `json:"status"`
	Alerts          []Alert        `json:"alerts"`
	BehavioralScore int            `json:"behavioral_score"`
	Replayed        bool           `json:"replayed,omitempty"`
}

// AccountProfile is the per-invocation statistical profile of an account.
type AccountProfile struct {
	Mean   float64
	StdDev float64
	Count  int64
}

// WindowEntry is one element of an account's sliding window.
type WindowEntry struct {
	EventID string    `json:"event_id"`
	Amount  float64   `json:"amount"`
	At      time.Time `json:"at"`
}

// Direction selects which side of a transaction edge an account filter matches.
type Direction int

const (
	// DirectionOutgoing matches transactions sent by the account.
	DirectionOutgoing Direction = iota
	// DirectionIncoming matches transactions where the account is the counterparty.
	DirectionIncoming
	// DirectionEither matches any transaction touching the account.
	DirectionEither
)

// TransactionFilter scopes an aggregate query over stored transactions.
// Zero-valued fields do not filter.
type TransactionFilter struct {
	AccountID      string
	Direction      Direction
	MerchantID     string
	Kinds          []TxKind
	Since          time.Time
	ExcludeEventID string
}

// Aggregate is the result of an aggregate query over a transaction set.
type Aggregate struct {
	Count    int64
	Sum      float64
	Mean     float64
	Variance float64 // population variance
	Latest   time.Time
}

// IdentityMatch is an existing account sharing identity attributes with a new one.
type IdentityMatch struct {
	AccountID string
	Matches   int
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	AccountID    string
	EventID      string
	Status       AlertStatus
	DetectorType DetectorType
	Limit        int
	Offset       int
}

// StateStore is the ephemeral key-value store behind counters, sliding
// windows, blocklists and the idempotency guard.
type StateStore interface {
	// Incr atomically increments key and sets ttl when the key has no expiry.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// IncrFloat is Incr for float counters.
	IncrFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)
	// PushWindow appends value, trims the list to the last size entries and
	// returns it in arrival order.
	PushWindow(ctx context.Context, key string, value []byte, size int) ([][]byte, error)
	IsMember(ctx context.Context, set, member string) (bool, error)
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// RelationshipStore holds accounts (vertices) and transactions (edges) and
// answers aggregate queries over them.
type RelationshipStore interface {
	UpsertAccount(ctx context.Context, account *AccountEvent) error
	UpsertTransaction(ctx context.Context, tx *TransactionEvent) error
	AggregateTransactions(ctx context.Context, filter TransactionFilter) (Aggregate, error)
	AggregateTransactionsByKind(ctx context.Context, filter TransactionFilter) (map[TxKind]Aggregate, error)
	FindIdentityMatches(ctx context.Context, account *AccountEvent, minMatches int) ([]IdentityMatch, error)
}

// AlertStore persists alerts.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id string) (*Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error)
	GetAlertCount(ctx context.Context, filter AlertFilter) (int, error)
}

// AlertSink receives published alerts. Delivery is at-most-once.
type AlertSink interface {
	Name() string
	Publish(ctx context.Context, alert *Alert) error
}

// Detector evaluates transaction events.
type Detector interface {
	Type() DetectorType
	Check(ctx context.Context, event *TransactionEvent) (Signal, error)
	Enabled() bool
	SetEnabled(enabled bool)
}

// AccountDetector evaluates account events.
type AccountDetector interface {
	Type() DetectorType
	CheckAccount(ctx context.Context, event *AccountEvent) (Signal, error)
	Enabled() bool
	SetEnabled(enabled bool)
}
