package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"emirates-passport/internal/metrics"
	"emirates-passport/internal/model"
	"emirates-passport/internal/notify"
	"emirates-passport/internal/repository"
)

var errUnavailable = errors.New("store unavailable")

var fixedTime = time.Date(2024, 12, 2, 10, 30, 0, 0, time.UTC)

// flakyStore wraps a MemoryStore and fails on demand.
type flakyStore struct {
	*repository.MemoryStore
	mu     sync.Mutex
	getErr error
	setErr error
	sets   int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: repository.NewMemoryStore()}
}

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	err := f.getErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	err := f.setErr
	f.sets++
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyStore) failGets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *flakyStore) failSets(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

func (f *flakyStore) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}

// countingRecorder counts metric calls by name.
type countingRecorder struct {
	metrics.Nop
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: make(map[string]int)}
}

func (r *countingRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *countingRecorder) RecordScan(outcome string) { r.inc("scan:" + outcome) }
func (r *countingRecorder) RecordRedemption(outcome string) { r.inc("redeem:" + outcome) }
func (r *countingRecorder) RecordStoreError(op string) { r.inc("store_error:" + op) }
func (r *countingRecorder) RecordCorruptRecord(record string) { r.inc("corrupt:" + record) }

// eventLog records notifier deliveries in order.
type eventLog struct {
	mu     sync.Mutex
	topics []string
	stamps []notify.StampsChanged
	points []notify.PointsChanged
}

func watch(n *notify.Notifier) *eventLog {
	e := &eventLog{}
	n.OnStampsChanged(func(ev notify.StampsChanged) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.topics = append(e.topics, notify.TopicStampsChanged)
		e.stamps = append(e.stamps, ev)
	})
	n.OnPointsChanged(func(ev notify.PointsChanged) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.topics = append(e.topics, notify.TopicPointsChanged)
		e.points = append(e.points, ev)
	})
	return e
}

func (e *eventLog) Topics() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.topics...)
}

type fixture struct {
	store    *flakyStore
	notifier *notify.Notifier
	events   *eventLog
	recorder *countingRecorder
	ledger   *LedgerService
	redeem   *RedemptionService
	scan     *ScanService
}

func newFixture(t *testing.T, opts ...LedgerOption) *fixture {
	t.Helper()

	f := &fixture{
		store:    newFlakyStore(),
		notifier: notify.New(),
		recorder: newCountingRecorder(),
	}
	f.events = watch(f.notifier)

	base := []LedgerOption{
		WithClock(func() time.Time { return fixedTime }),
		WithMetrics(f.recorder),
	}
	f.ledger = NewLedgerService(f.store, f.notifier, append(base, opts...)...)
	f.redeem = NewRedemptionService(f.ledger)
	f.scan = NewScanService(nil, f.ledger)
	return f
}

// seed writes a raw record for user directly into the store.
func (f *fixture) seed(t *testing.T, user model.UserKey, record, raw string) {
	t.Helper()
	if err := f.store.MemoryStore.Set(context.Background(), user.StorageKey(record), raw); err != nil {
		t.Fatalf("seed: %v", err)
	}
}
