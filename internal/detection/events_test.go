// Sentinel - Real-Time Fraud Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/sentinel

package detection

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTransactionEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tx      TransactionEvent
		wantErr bool
	}{
		{"valid", TransactionEvent{ID: "T1", AccountID: "A", Amount: 1000, Time: "10:30"}, false},
		{"valid with seconds", TransactionEvent{ID: "T1", AccountID: "A", Time: "23:59:59"}, false},
		{"zero amount", TransactionEvent{ID: "T1", AccountID: "A"}, false},
		{"missing id", TransactionEvent{AccountID: "A"}, true},
		{"blank account", TransactionEvent{ID: "T1", AccountID: "  "}, true},
		{"negative amount", TransactionEvent{ID: "T1", AccountID: "A", Amount: -1}, true},
		{"nan amount", TransactionEvent{ID: "T1", AccountID: "A", Amount: math.NaN()}, true},
		{"infinite amount", TransactionEvent{ID: "T1", AccountID: "A", Amount: math.Inf(1)}, true},
		{"bad hour", TransactionEvent{ID: "T1", AccountID: "A", Time: "24:00"}, true},
		{"bad format", TransactionEvent{ID: "T1", AccountID: "A", Time: "noon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("Validate() error = %v, want ErrInvalidEvent", err)
			}
		})
	}
}

func TestTransactionEvent_Hour(t *testing.T) {
	tx := TransactionEvent{Time: "07:15"}
	if h, ok := tx.Hour(); !ok || h != 7 {
		t.Errorf("Hour() = %d, %v; want 7, true", h, ok)
	}

	tx = TransactionEvent{OccurredAt: time.Date(2026, 1, 1, 22, 5, 0, 0, time.UTC)}
	if h, ok := tx.Hour(); !ok || h != 22 {
		t.Errorf("Hour() = %d, %v; want 22, true", h, ok)
	}
	if got := tx.TimeOfDay(); got != "22:05:00" {
		t.Errorf("TimeOfDay() = %q", got)
	}

	if _, ok := (&TransactionEvent{}).Hour(); ok {
		t.Error("Hour() without time reported ok")
	}
}

func TestAccountEvent_Attributes(t *testing.T) {
	acc := AccountEvent{AccountID: "A", KTP: "317", Phone: "0812"}
	attrs := acc.Attributes()
	if len(attrs) != 2 || attrs["ktp"] != "317" || attrs["phone"] != "0812" {
		t.Errorf("Attributes() = %v", attrs)
	}

	if err := (&AccountEvent{}).Validate(); !errors.Is(err, ErrInvalidEvent) {
		t.Errorf("Validate() error = %v, want ErrInvalidEvent", err)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantKind string
		wantErr  bool
	}{
		{"bare transaction", `{"id":"T1","account_id":"A","amount":1000,"type":"SALE"}`, "tx", false},
		{"tagged transaction", `{"kind":"transaction","id":"T1","account_id":"A","amount":5}`, "tx", false},
		{"account", `{"kind":"account","account_id":"A","ktp":"317"}`, "acc", false},
		{"unknown kind", `{"kind":"refund_request"}`, "", true},
		{"malformed", `{"id":`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeEvent([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEvent) {
					t.Errorf("error = %v, want ErrInvalidEvent", err)
				}
				return
			}
			switch e := ev.(type) {
			case *TransactionEvent:
				if tt.wantKind != "tx" || e.ID != "T1" || e.AccountID != "A" {
					t.Errorf("decoded %+v", e)
				}
			case *AccountEvent:
				if tt.wantKind != "acc" || e.KTP != "317" {
					t.Errorf("decoded %+v", e)
				}
			}
		})
	}
}

func TestStateKey(t *testing.T) {
	if got := StateKey(KeyRecency, "ACC-1"); got != "recency:ACC-1" {
		t.Errorf("StateKey() = %q", got)
	}
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex()

	var active, maxActive int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("A")
			n := atomic.AddInt32(&active, 1)
			for {
				m := atomic.LoadInt32(&maxActive)
				if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
			unlock()
		}()
	}
	wg.Wait()

	if maxActive != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxActive)
	}
	if km.Len() != 0 {
		t.Errorf("Len() = %d after release, want 0", km.Len())
	}

	// Different keys do not block each other.
	unlockA := km.Lock("A")
	unlockB := km.Lock("B")
	if km.Len() != 2 {
		t.Errorf("Len() = %d, want 2", km.Len())
	}
	unlockA()
	unlockB()
}
