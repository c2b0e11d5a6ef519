// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"context"
	"slices"
	"sync"
	"time"
)

// fakeClock is a settable clock shared by the engine and the mock stores.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockStateStore implements StateStore in memory with TTL support.
type mockStateStore struct {
	mu      sync.Mutex
	clock   func() time.Time
	values  map[string]float64
	strs    map[string]string
	lists   map[string][][]byte
	sets    map[string]map[string]bool
	expires map[string]time.Time
	err     error
}

func newMockStateStore(clock func() time.Time) *mockStateStore {
	if clock == nil {
		clock = time.Now
	}
	return &mockStateStore{
		clock:   clock,
		values:  make(map[string]float64),
		strs:    make(map[string]string),
		lists:   make(map[string][][]byte),
		sets:    make(map[string]map[string]bool),
		expires: make(map[string]time.Time),
	}
}

func (m *mockStateStore) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockStateStore) addMember(set string, members ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sets[set] == nil {
		m.sets[set] = make(map[string]bool)
	}
	for _, v := range members {
		m.sets[set][v] = true
	}
}

// expireLocked drops key if its TTL has passed.
func (m *mockStateStore) expireLocked(key string) {
	if at, ok := m.expires[key]; ok && !m.clock().Before(at) {
		delete(m.values, key)
		delete(m.strs, key)
		delete(m.lists, key)
		delete(m.expires, key)
	}
}

func (m *mockStateStore) setTTLIfMissingLocked(key string, ttl time.Duration) {
	if _, ok := m.expires[key]; !ok && ttl > 0 {
		m.expires[key] = m.clock().Add(ttl)
	}
}

func (m *mockStateStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.expireLocked(key)
	m.values[key]++
	m.setTTLIfMissingLocked(key, ttl)
	return int64(m.values[key]), nil
}

func (m *mockStateStore) IncrFloat(_ context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.expireLocked(key)
	m.values[key] += delta
	m.setTTLIfMissingLocked(key, ttl)
	return m.values[key], nil
}

func (m *mockStateStore) PushWindow(_ context.Context, key string, value []byte, size int) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	list := append(m.lists[key], value)
	if len(list) > size {
		list = list[len(list)-size:]
	}
	m.lists[key] = list
	return slices.Clone(list), nil
}

func (m *mockStateStore) IsMember(_ context.Context, set, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.sets[set][member], nil
}

func (m *mockStateStore) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.expireLocked(key)
	if _, ok := m.strs[key]; ok {
		return false, nil
	}
	m.strs[key] = value
	m.setTTLIfMissingLocked(key, ttl)
	return true, nil
}

func (m *mockStateStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	m.expireLocked(key)
	v, ok := m.strs[key]
	return v, ok, nil
}

func (m *mockStateStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.strs[key] = value
	delete(m.expires, key)
	m.setTTLIfMissingLocked(key, ttl)
	return nil
}

func (m *mockStateStore) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.strs, key)
	delete(m.values, key)
	delete(m.lists, key)
	delete(m.expires, key)
	return nil
}

func (m *mockStateStore) window(key string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lists[key])
}

// mockRelStore implements RelationshipStore in memory.
type mockRelStore struct {
	mu       sync.Mutex
	accounts map[string]AccountEvent
	txs      map[string]TransactionEvent
	err      error
	upserts  int

	// upsertHook runs before UpsertTransaction takes the store lock.
	upsertHook func(tx *TransactionEvent)
}

func newMockRelStore() *mockRelStore {
	return &mockRelStore{
		accounts: make(map[string]AccountEvent),
		txs:      make(map[string]TransactionEvent),
	}
}

func (m *mockRelStore) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockRelStore) add(txs ...TransactionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range txs {
		m.txs[tx.ID] = tx
	}
}

func (m *mockRelStore) UpsertAccount(_ context.Context, acc *AccountEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.accounts[acc.AccountID] = *acc
	return nil
}

func (m *mockRelStore) UpsertTransaction(_ context.Context, tx *TransactionEvent) error {
	if m.upsertHook != nil {
		m.upsertHook(tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.upserts++
	m.txs[tx.ID] = *tx
	if _, ok := m.accounts[tx.AccountID]; !ok {
		m.accounts[tx.AccountID] = AccountEvent{AccountID: tx.AccountID}
	}
	return nil
}

func (m *mockRelStore) matching(f TransactionFilter) []TransactionEvent {
	var out []TransactionEvent
	for _, tx := range m.txs {
		if f.ExcludeEventID != "" && tx.ID == f.ExcludeEventID {
			continue
		}
		if f.AccountID != "" {
			out := tx.AccountID == f.AccountID
			in := tx.MerchantID == f.AccountID
			switch f.Direction {
			case DirectionOutgoing:
				if !out {
					continue
				}
			case DirectionIncoming:
				if !in {
					continue
				}
			case DirectionEither:
				if !out && !in {
					continue
				}
			}
		}
		if f.MerchantID != "" && tx.MerchantID != f.MerchantID {
			continue
		}
		if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, tx.Kind) {
			continue
		}
		if !f.Since.IsZero() && tx.OccurredAt.Before(f.Since) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func aggregateOf(txs []TransactionEvent) Aggregate {
	var agg Aggregate
	for _, tx := range txs {
		agg.Count++
		agg.Sum += tx.Amount
		if tx.OccurredAt.After(agg.Latest) {
			agg.Latest = tx.OccurredAt
		}
	}
	if agg.Count == 0 {
		return agg
	}
	agg.Mean = agg.Sum / float64(agg.Count)
	for _, tx := range txs {
		d := tx.Amount - agg.Mean
		agg.Variance += d * d
	}
	agg.Variance /= float64(agg.Count)
	return agg
}

func (m *mockRelStore) AggregateTransactions(_ context.Context, f TransactionFilter) (Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Aggregate{}, m.err
	}
	return aggregateOf(m.matching(f)), nil
}

func (m *mockRelStore) AggregateTransactionsByKind(_ context.Context, f TransactionFilter) (map[TxKind]Aggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	groups := make(map[TxKind][]TransactionEvent)
	for _, tx := range m.matching(f) {
		groups[tx.Kind] = append(groups[tx.Kind], tx)
	}
	out := make(map[TxKind]Aggregate, len(groups))
	for k, txs := range groups {
		out[k] = aggregateOf(txs)
	}
	return out, nil
}

func (m *mockRelStore) FindIdentityMatches(_ context.Context, acc *AccountEvent, minMatches int) ([]IdentityMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []IdentityMatch
	for id, other := range m.accounts {
		if id == acc.AccountID {
			continue
		}
		n := 0
		for _, pair := range [][2]string{{acc.KTP, other.KTP}, {acc.Address, other.Address}, {acc.Phone, other.Phone}} {
			if pair[0] != "" && pair[0] == pair[1] {
				n++
			}
		}
		if n >= minMatches {
			out = append(out, IdentityMatch{AccountID: id, Matches: n})
		}
	}
	slices.SortFunc(out, func(a, b IdentityMatch) int {
		if a.AccountID < b.AccountID {
			return -1
		}
		return 1
	})
	return out, nil
}

// mockAlertStore implements AlertStore for testing
type mockAlertStore struct {
	alerts []Alert
	err    error
	mu     sync.Mutex
}

func (m *mockAlertStore) SaveAlert(_ context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.alerts = append(m.alerts, *alert)
	return nil
}

func (m *mockAlertStore) GetAlert(_ context.Context, id string) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAlertStore) ListAlerts(_ context.Context, _ AlertFilter) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.alerts), nil
}

func (m *mockAlertStore) GetAlertCount(_ context.Context, _ AlertFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts), nil
}

func (m *mockAlertStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.alerts)
}

// mockSink implements AlertSink for testing
type mockSink struct {
	mu        sync.Mutex
	published []Alert
	err       error
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Publish(_ context.Context, alert *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, *alert)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

// testEngine wires an engine over in-memory stores.
type testEngine struct {
	*Engine
	clock  *fakeClock
	state  *mockStateStore
	rel    *mockRelStore
	alerts *mockAlertStore
	sink   *mockSink
}

func newTestEngine(t interface {
	Helper()
	Fatalf(string, ...any)
}, cfg EngineConfig, scorer Scorer) *testEngine {
	t.Helper()

	clock := newFakeClock()
	te := &testEngine{
		clock:  clock,
		state:  newMockStateStore(clock.Now),
		rel:    newMockRelStore(),
		alerts: &mockAlertStore{},
		sink:   &mockSink{},
	}
	if scorer == nil {
		scorer = StaticScorer{}
	}

	e, err := NewEngine(Dependencies{
		State:         te.state,
		Relationships: te.rel,
		Alerts:        te.alerts,
		Sink:          te.sink,
		Scorer:        scorer,
	}, cfg, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	te.Engine = e
	return te
}

func findAlert(alerts []Alert, t DetectorType) (Alert, bool) {
	for _, a := range alerts {
		if a.DetectorType == t {
			return a, true
		}
	}
	return Alert{}, false
}
