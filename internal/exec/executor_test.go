package exec

import (
	"context"
	"errors"
	"sync"
	"testing"

	"binance-sweep-bot/internal/binance/rest"
	"binance-sweep-bot/internal/sweep"

	"go.uber.org/zap"
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

type mockExchange struct {
	mu     sync.Mutex
	calls  int
	result rest.OrderResult
	errs   []error
}

func (m *mockExchange) MarketSell(ctx context.Context, symbol, quantity, clientOrderID string) (rest.OrderResult, error) {
	_ = ctx
	_ = symbol
	_ = quantity
	_ = clientOrderID
	m.mu.Lock()
	defer m.mu.Unlock()
	call := m.calls
	m.calls++
	if call < len(m.errs) && m.errs[call] != nil {
		return rest.OrderResult{}, m.errs[call]
	}
	return m.result, nil
}

func sellDecision() sweep.Decision {
	return sweep.Decision{
		Asset:    "FOO",
		Symbol:   "FOOUSDT",
		Action:   sweep.ActionSell,
		Quantity: 120,
		Price:    0.5,
		Notional: 60,
	}
}

func TestExecuteDryRunMakesNoCalls(t *testing.T) {
	exchange := &mockExchange{}
	executor := New(exchange, newMemoryStore(), true, zap.NewNop())
	result, err := executor.Execute(context.Background(), sellDecision(), "sweep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Simulated || result.Status != "SIMULATED" {
		t.Fatalf("expected simulated result, got %+v", result)
	}
	if result.FilledQty != 120 || result.QuoteAmount != 60 {
		t.Fatalf("unexpected simulated fill: %+v", result)
	}
	if exchange.calls != 0 {
		t.Fatalf("dry run must not call the exchange, got %d calls", exchange.calls)
	}
}

func TestExecutePlacesLiveOrder(t *testing.T) {
	exchange := &mockExchange{result: rest.OrderResult{OrderID: 42, Status: "FILLED", FilledQty: 120, QuoteAmount: 60}}
	executor := New(exchange, newMemoryStore(), false, zap.NewNop())
	result, err := executor.Execute(context.Background(), sellDecision(), "sweep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Simulated {
		t.Fatalf("live order must not be tagged simulated")
	}
	if result.OrderID != 42 || result.FilledQty != 120 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestExecuteIdempotentAcrossRestart(t *testing.T) {
	store := newMemoryStore()
	exchange := &mockExchange{result: rest.OrderResult{OrderID: 42, Status: "FILLED"}}
	executor := New(exchange, store, false, zap.NewNop())
	ctx := context.Background()

	if _, err := executor.Execute(ctx, sellDecision(), "sweep-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := executor.Execute(ctx, sellDecision(), "sweep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != "DUPLICATE" || result.OrderID != 42 {
		t.Fatalf("expected duplicate short-circuit, got %+v", result)
	}
	if exchange.calls != 1 {
		t.Fatalf("expected single exchange call, got %d", exchange.calls)
	}

	// A new executor over the same store must also see the placed order.
	exchange2 := &mockExchange{result: rest.OrderResult{OrderID: 99}}
	executor2 := New(exchange2, store, false, zap.NewNop())
	result, err = executor2.Execute(ctx, sellDecision(), "sweep-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderID != 42 || exchange2.calls != 0 {
		t.Fatalf("expected persisted order id, got %+v calls=%d", result, exchange2.calls)
	}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	exchange := &mockExchange{
		result: rest.OrderResult{OrderID: 7, Status: "FILLED"},
		errs:   []error{errors.New("connection reset"), nil},
	}
	executor := New(exchange, newMemoryStore(), false, zap.NewNop())
	result, err := executor.Execute(context.Background(), sellDecision(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderID != 7 || exchange.calls != 2 {
		t.Fatalf("expected retry then success, got %+v calls=%d", result, exchange.calls)
	}
}

func TestExecuteDoesNotRetryExchangeRejection(t *testing.T) {
	rejection := &rest.APIError{Code: -2010, Message: "insufficient balance", Status: 400}
	exchange := &mockExchange{errs: []error{rejection, nil}}
	executor := New(exchange, newMemoryStore(), false, zap.NewNop())
	_, err := executor.Execute(context.Background(), sellDecision(), "")
	if err == nil {
		t.Fatalf("expected rejection error")
	}
	if exchange.calls != 1 {
		t.Fatalf("rejection must not be retried, got %d calls", exchange.calls)
	}
}

func TestExecuteRejectsNonSellDecisions(t *testing.T) {
	executor := New(&mockExchange{}, newMemoryStore(), false, zap.NewNop())
	decision := sellDecision()
	decision.Action = sweep.ActionDust
	if _, err := executor.Execute(context.Background(), decision, ""); err == nil {
		t.Fatalf("expected error for non-sell decision")
	}
}
