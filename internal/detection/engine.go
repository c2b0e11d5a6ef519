// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/sentinel/internal/logging"
	"github.com/tomtom215/sentinel/internal/metrics"
)

// blockingAgents are the agents whose hits block. Other agents flag for review.
var blockingAgents = map[DetectorType]bool{
	DetectorChargeback:        true,
	DetectorIdentityCollision: true,
	DetectorIdentityWatchlist: true,
}

// Dependencies are the external collaborators of the engine.
type Dependencies struct {
	State         StateStore
	Relationships RelationshipStore
	Alerts        AlertStore

	// Sink is optional; without it alerts are only persisted.
	Sink AlertSink

	// Scorer is optional; RatioScorer is used when nil.
	Scorer Scorer
}

// EngineMetrics is a point-in-time snapshot of engine counters.
type EngineMetrics struct {
	EventsProcessed int64     `json:"events_processed"`
	EventsReplayed  int64     `json:"events_replayed"`
	AlertsGenerated int64     `json:"alerts_generated"`
	DetectionErrors int64     `json:"detection_errors"`
	PublishFailures int64     `json:"publish_failures"`
	PersistFailures int64     `json:"persist_failures"`
	LastProcessedAt time.Time `json:"last_processed_at"`
}

// DetectorInfo describes a registered detector.
type DetectorInfo struct {
	Type    DetectorType `json:"type"`
	Layer   Layer        `json:"layer"`
	Status  AlertStatus  `json:"status"`
	Enabled bool         `json:"enabled"`
}

type toggleable interface {
	Type() DetectorType
	Enabled() bool
	SetEnabled(enabled bool)
}

type registration struct {
	detector toggleable
	layer    Layer
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the engine clock used to stamp events and alerts.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine orchestrates the detection pipeline: persist the event, run the
// reactive layer, the agents and the behavioral layer, then persist and
// publish every alert.
type Engine struct {
	config     EngineConfig
	relStore   RelationshipStore
	alertStore AlertStore
	sink       AlertSink
	guard      *IdempotencyGuard
	reactive   *ReactiveLayer
	agents     *AgentLayer
	behavioral *BehavioralLayer
	accounts   *KeyedMutex
	now        func() time.Time

	detectors map[DetectorType]registration

	publishWG sync.WaitGroup

	mu           sync.Mutex
	metricsStore EngineMetrics
}

// NewEngine creates a new detection engine.
func NewEngine(deps Dependencies, cfg EngineConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.State == nil || deps.Relationships == nil || deps.Alerts == nil {
		return nil, errors.New("state, relationship and alert stores are required")
	}

	e := &Engine{
		config:     cfg,
		relStore:   deps.Relationships,
		alertStore: deps.Alerts,
		sink:       deps.Sink,
		guard:      NewIdempotencyGuard(deps.State, cfg.Idempotency),
		reactive:   NewReactiveLayer(deps.State, cfg.Reactive),
		agents:     NewAgentLayer(deps.State, deps.Relationships, cfg.Agents),
		behavioral: NewBehavioralLayer(deps.State, deps.Relationships, deps.Scorer, cfg.Behavioral),
		accounts:   NewKeyedMutex(),
		now:        time.Now,
		detectors:  make(map[DetectorType]registration),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, d := range e.reactive.Rules() {
		e.register(d, LayerReactive)
	}
	for _, d := range e.agents.TransactionAgents() {
		e.register(d, LayerAgent)
	}
	for _, d := range e.agents.AccountAgents() {
		e.register(d, LayerAgent)
	}
	if e.sink != nil {
		logging.Info().Str("sink", e.sink.Name()).Msg("registered alert sink")
	}

	return e, nil
}

func (e *Engine) register(d toggleable, layer Layer) {
	e.detectors[d.Type()] = registration{detector: d, layer: layer}
	logging.Info().Str("detector", string(d.Type())).Str("layer", string(layer)).Msg("registered detector")
}

// Process evaluates any event. It returns ErrInvalidEvent for malformed
// events and ErrDuplicateInFlight when the same event is already running.
func (e *Engine) Process(ctx context.Context, event Event) (*Decision, error) {
	switch ev := event.(type) {
	case *TransactionEvent:
		return e.ProcessTransaction(ctx, ev)
	case *AccountEvent:
		return e.ProcessAccount(ctx, ev)
	default:
		return nil, fmt.Errorf("%w: unsupported event type %T", ErrInvalidEvent, event)
	}
}

// ProcessTransaction runs the full pipeline for a transaction. Transactions
// of one account are evaluated one at a time, in the order they acquire the
// account lock.
func (e *Engine) ProcessTransaction(ctx context.Context, tx *TransactionEvent) (decision *Decision, err error) {
	start := time.Now()
	if err := tx.Validate(); err != nil {
		metrics.RecordRejected("invalid")
		return nil, err
	}
	ctx = logging.ContextWithEvent(ctx, tx.ID, tx.AccountID)

	event := *tx
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	cached, finish, err := e.guard.Begin(ctx, "tx", event.ID)
	if err != nil {
		metrics.RecordRejected("duplicate_in_flight")
		return nil, err
	}
	if cached != nil {
		e.recordReplay()
		return cached, nil
	}
	defer func() { finish(decision) }()

	unlock := e.accounts.Lock(event.AccountID)
	defer unlock()

	if err := e.relStore.UpsertTransaction(ctx, &event); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to persist transaction, continuing evaluation")
	}

	var alerts []Alert
	var failures []DetectorFailure

	sig, reactiveFailures := e.reactive.Evaluate(ctx, &event)
	if sig.Fired {
		alerts = append(alerts, e.newAlert(event.ID, event.AccountID, sig, LayerReactive, StatusBlocked))
	}
	failures = append(failures, reactiveFailures...)

	agentSignals, agentFailures := e.agents.Evaluate(ctx, &event)
	for _, s := range agentSignals {
		alerts = append(alerts, e.newAlert(event.ID, event.AccountID, s, LayerAgent, agentStatus(s.Detector)))
	}
	failures = append(failures, agentFailures...)

	prior := make([]DetectorType, 0, len(alerts))
	for i := range alerts {
		prior = append(prior, alerts[i].DetectorType)
	}
	br, behavioralFailures := e.behavioral.Evaluate(ctx, &event, prior)
	if br.Signal.Fired {
		alerts = append(alerts, e.newAlert(event.ID, event.AccountID, br.Signal, LayerBehavioral, StatusFlaggedForReview))
	}
	failures = append(failures, behavioralFailures...)

	alerts = append(alerts, e.failClosedAlerts(event.ID, event.AccountID, failures)...)

	decision = e.complete(ctx, event.ID, alerts, br.PredictiveScore, len(failures))
	metrics.RecordEvent("transaction", string(decision.Status), time.Since(start))
	return decision, nil
}

// ProcessAccount runs the identity agents for an account event.
func (e *Engine) ProcessAccount(ctx context.Context, acc *AccountEvent) (decision *Decision, err error) {
	start := time.Now()
	if err := acc.Validate(); err != nil {
		metrics.RecordRejected("invalid")
		return nil, err
	}
	ctx = logging.ContextWithEvent(ctx, acc.AccountID, acc.AccountID)

	// Profile changes reuse the account id, so replays are keyed by content.
	cached, finish, err := e.guard.Begin(ctx, "acc", accountFingerprint(acc))
	if err != nil {
		metrics.RecordRejected("duplicate_in_flight")
		return nil, err
	}
	if cached != nil {
		e.recordReplay()
		return cached, nil
	}
	defer func() { finish(decision) }()

	unlock := e.accounts.Lock(acc.AccountID)
	defer unlock()

	if err := e.relStore.UpsertAccount(ctx, acc); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("failed to persist account, continuing evaluation")
	}

	signals, failures := e.agents.EvaluateAccount(ctx, acc)
	alerts := make([]Alert, 0, len(signals))
	for _, s := range signals {
		alerts = append(alerts, e.newAlert(acc.AccountID, acc.AccountID, s, LayerAgent, StatusBlocked))
	}
	alerts = append(alerts, e.failClosedAlerts(acc.AccountID, acc.AccountID, failures)...)

	decision = e.complete(ctx, acc.AccountID, alerts, 0, len(failures))
	metrics.RecordEvent("account", string(decision.Status), time.Since(start))
	return decision, nil
}

func accountFingerprint(acc *AccountEvent) string {
	data, err := json.Marshal(acc)
	if err != nil {
		return acc.AccountID
	}
	return acc.AccountID + ":" + uuid.NewSHA1(uuid.NameSpaceOID, data).String()
}

func agentStatus(t DetectorType) AlertStatus {
	if blockingAgents[t] {
		return StatusBlocked
	}
	return StatusFlaggedForReview
}

func (e *Engine) newAlert(eventID, accountID string, sig Signal, layer Layer, status AlertStatus) Alert {
	return Alert{
		ID:           uuid.New().String(),
		EventID:      eventID,
		AccountID:    accountID,
		DetectorType: sig.Detector,
		Layer:        layer,
		Description:  sig.Reason,
		Score:        sig.Score,
		Status:       status,
		CreatedAt:    e.now().UTC(),
	}
}

// failClosedAlerts converts infrastructure failures of blocking detectors into
// blocking alerts when the failure policy is closed.
func (e *Engine) failClosedAlerts(eventID, accountID string, failures []DetectorFailure) []Alert {
	if e.config.FailurePolicy != FailClosed || len(failures) == 0 {
		return nil
	}

	var alerts []Alert
	seen := make(map[DetectorType]bool)
	for _, f := range failures {
		reg, ok := e.detectors[f.Detector]
		if !ok || seen[f.Detector] || !IsInfrastructureError(f.Err) {
			continue
		}
		if reg.layer != LayerReactive && !blockingAgents[f.Detector] {
			continue
		}
		seen[f.Detector] = true
		sig := Signal{Detector: f.Detector, Fired: true, Score: 100, Reason: string(f.Detector) + " unavailable"}
		alerts = append(alerts, e.newAlert(eventID, accountID, sig, reg.layer, StatusBlocked))
	}
	return alerts
}

// complete persists and publishes alerts and builds the decision.
func (e *Engine) complete(ctx context.Context, eventID string, alerts []Alert, behavioralScore, failures int) *Decision {
	persistFailures := 0
	for i := range alerts {
		alert := alerts[i]
		metrics.RecordAlert(string(alert.DetectorType), string(alert.Layer), string(alert.Status))

		if err := e.alertStore.SaveAlert(ctx, &alert); err != nil {
			persistFailures++
			metrics.AlertPersistFailures.Inc()
			logging.Ctx(ctx).Error().Err(err).Str("detector", string(alert.DetectorType)).Msg("failed to save alert")
		}
		e.publish(ctx, &alert)
	}

	decision := &Decision{
		EventID:         eventID,
		Status:          DecisionApproved,
		Alerts:          alerts,
		BehavioralScore: behavioralScore,
	}
	if len(alerts) > 0 {
		decision.Status = DecisionFraudDetected
	}
	if decision.Alerts == nil {
		decision.Alerts = []Alert{}
	}

	e.mu.Lock()
	e.metricsStore.EventsProcessed++
	e.metricsStore.AlertsGenerated += int64(len(alerts))
	e.metricsStore.DetectionErrors += int64(failures)
	e.metricsStore.PersistFailures += int64(persistFailures)
	e.metricsStore.LastProcessedAt = e.now()
	e.mu.Unlock()

	logging.Ctx(ctx).Debug().
		Str("decision", string(decision.Status)).
		Int("alerts", len(alerts)).
		Int("behavioral_score", behavioralScore).
		Msg("event evaluated")

	return decision
}

// publish sends the alert to the sink without blocking the caller. Delivery
// is at-most-once; the stored alert is the durable record.
func (e *Engine) publish(ctx context.Context, alert *Alert) {
	if e.sink == nil {
		return
	}

	e.publishWG.Add(1)
	go func(a Alert) {
		defer e.publishWG.Done()

		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.PublishTimeout)
		defer cancel()

		err := e.sink.Publish(pubCtx, &a)
		metrics.RecordPublish(e.sink.Name(), err)
		if err != nil {
			e.mu.Lock()
			e.metricsStore.PublishFailures++
			e.mu.Unlock()
			logging.Ctx(ctx).Error().Err(err).Str("sink", e.sink.Name()).Str("alert_id", a.ID).Msg("failed to publish alert")
		}
	}(*alert)
}

func (e *Engine) recordReplay() {
	metrics.EventsReplayed.Inc()
	e.mu.Lock()
	e.metricsStore.EventsReplayed++
	e.mu.Unlock()
}

// Flush waits for in-flight publishes to finish or ctx to end.
func (e *Engine) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.publishWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunWithContext blocks until ctx is canceled, then drains pending publishes.
// It lets the engine run as a supervised service.
func (e *Engine) RunWithContext(ctx context.Context) error {
	logging.Info().Int("detectors", len(e.detectors)).Msg("detection engine started")
	<-ctx.Done()

	logging.Info().Msg("detection engine shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), e.config.PublishTimeout)
	defer cancel()
	if err := e.Flush(drainCtx); err != nil {
		logging.Error().Err(err).Msg("pending alert publishes abandoned during shutdown")
	}
	return ctx.Err()
}

// Metrics returns a copy of the engine metrics.
func (e *Engine) Metrics() EngineMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metricsStore
}

// Detectors lists registered detectors sorted by layer then type.
func (e *Engine) Detectors() []DetectorInfo {
	infos := make([]DetectorInfo, 0, len(e.detectors))
	for t, reg := range e.detectors {
		status := StatusBlocked
		if reg.layer == LayerAgent {
			status = agentStatus(t)
		}
		infos = append(infos, DetectorInfo{Type: t, Layer: reg.layer, Status: status, Enabled: reg.detector.Enabled()})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Layer != infos[j].Layer {
			return infos[i].Layer > infos[j].Layer
		}
		return infos[i].Type < infos[j].Type
	})
	return infos
}

// SetDetectorEnabled enables or disables a detector at runtime.
func (e *Engine) SetDetectorEnabled(t DetectorType, enabled bool) error {
	reg, ok := e.detectors[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDetector, t)
	}
	reg.detector.SetEnabled(enabled)
	logging.Info().Str("detector", string(t)).Bool("enabled", enabled).Msg("detector toggled")
	return nil
}

// ConfigureDetector replaces a detector's thresholds at runtime.
func (e *Engine) ConfigureDetector(t DetectorType, config json.RawMessage) error {
	reg, ok := e.detectors[t]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDetector, t)
	}
	c, ok := reg.detector.(Configurable)
	if !ok {
		return fmt.Errorf("%w: detector %s is not configurable", ErrInvalidConfig, t)
	}
	return c.Configure(config)
}
