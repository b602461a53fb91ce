package state

import (
	"context"
	"sync"
	"testing"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func TestCycleReportRoundTrip(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	report := CycleReport{
		StartedAtMS:  1700000000000,
		FinishedAtMS: 1700000002000,
		Target:       "USDT",
		DryRun:       true,
		Sold:         2,
		Dust:         1,
		Skipped:      3,
		NotionalSold: 61.5,
	}
	if err := SaveCycleReport(ctx, store, report); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, ok, err := LoadCycleReport(ctx, store)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected a stored report")
	}
	if loaded != report {
		t.Fatalf("expected %+v, got %+v", report, loaded)
	}
}

func TestLoadCycleReportMissing(t *testing.T) {
	_, ok, err := LoadCycleReport(context.Background(), newMemoryStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no report")
	}
}

func TestCycleReportNilStore(t *testing.T) {
	if err := SaveCycleReport(context.Background(), nil, CycleReport{}); err != nil {
		t.Fatalf("nil store save should be a no-op: %v", err)
	}
	_, ok, err := LoadCycleReport(context.Background(), nil)
	if err != nil || ok {
		t.Fatalf("nil store load should be empty, got ok=%v err=%v", ok, err)
	}
}
