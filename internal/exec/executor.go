package exec

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"binance-sweep-bot/internal/binance/rest"
	"binance-sweep-bot/internal/state"
	"binance-sweep-bot/internal/sweep"

	"go.uber.org/zap"
)

// Result is the outcome of executing one SELL decision. Simulated results
// come from dry-run mode and never correspond to a live order.
type Result struct {
	OrderID     int64
	Status      string
	FilledQty   float64
	QuoteAmount float64
	Simulated   bool
}

type ExchangeClient interface {
	MarketSell(ctx context.Context, symbol, quantity, clientOrderID string) (rest.OrderResult, error)
}

// Executor places market sell orders for SELL decisions. Orders carry a
// client order ID that is cached in the state store, so re-running a cycle
// after a crash cannot sell the same snapshot twice.
type Executor struct {
	exchange ExchangeClient
	store    state.Store
	log      *zap.Logger
	dryRun   bool

	mu    sync.Mutex
	cache map[string]string
}

func New(exchange ExchangeClient, store state.Store, dryRun bool, log *zap.Logger) *Executor {
	return &Executor{
		exchange: exchange,
		store:    store,
		log:      log,
		dryRun:   dryRun,
		cache:    make(map[string]string),
	}
}

// Execute runs one SELL decision. Failures are returned to the caller and
// scoped to this order; the caller proceeds with the rest of the cycle.
func (e *Executor) Execute(ctx context.Context, decision sweep.Decision, clientOrderID string) (Result, error) {
	if decision.Action != sweep.ActionSell {
		return Result{}, fmt.Errorf("cannot execute %s decision for %s", decision.Action, decision.Asset)
	}
	quantity := rest.FormatAmount(decision.Quantity)
	if e.dryRun {
		e.log.Info("dry run: would sell",
			zap.String("asset", decision.Asset),
			zap.String("symbol", decision.Symbol),
			zap.String("quantity", quantity),
			zap.Float64("price", decision.Price),
			zap.Float64("notional", decision.Notional),
		)
		return Result{
			Status:      "SIMULATED",
			FilledQty:   decision.Quantity,
			QuoteAmount: decision.Notional,
			Simulated:   true,
		}, nil
	}
	if clientOrderID != "" {
		if orderID, ok := e.lookupPlaced(ctx, clientOrderID); ok {
			e.log.Info("order already placed for this cycle, skipping",
				zap.String("symbol", decision.Symbol),
				zap.String("client_order_id", clientOrderID),
			)
			return Result{OrderID: orderID, Status: "DUPLICATE"}, nil
		}
	}
	placed, err := e.placeWithRetry(ctx, decision.Symbol, quantity, clientOrderID)
	if err != nil {
		return Result{}, err
	}
	if clientOrderID != "" {
		e.rememberPlaced(ctx, clientOrderID, placed.OrderID)
	}
	return Result{
		OrderID:     placed.OrderID,
		Status:      placed.Status,
		FilledQty:   placed.FilledQty,
		QuoteAmount: placed.QuoteAmount,
	}, nil
}

func (e *Executor) lookupPlaced(ctx context.Context, clientOrderID string) (int64, bool) {
	key := "order:" + clientOrderID
	e.mu.Lock()
	raw, ok := e.cache[key]
	e.mu.Unlock()
	if !ok && e.store != nil {
		var err error
		raw, ok, err = e.store.Get(ctx, key)
		if err != nil {
			e.log.Warn("order id lookup failed", zap.Error(err))
			return 0, false
		}
	}
	if !ok {
		return 0, false
	}
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return orderID, true
}

func (e *Executor) rememberPlaced(ctx context.Context, clientOrderID string, orderID int64) {
	key := "order:" + clientOrderID
	raw := strconv.FormatInt(orderID, 10)
	e.mu.Lock()
	e.cache[key] = raw
	e.mu.Unlock()
	if e.store != nil {
		if err := e.store.Set(ctx, key, raw); err != nil {
			e.log.Warn("failed to persist order id", zap.Error(err))
		}
	}
}

func (e *Executor) placeWithRetry(ctx context.Context, symbol, quantity, clientOrderID string) (rest.OrderResult, error) {
	backoff := 200 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		result, err := e.exchange.MarketSell(ctx, symbol, quantity, clientOrderID)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retryable(err) {
			return rest.OrderResult{}, err
		}
		select {
		case <-ctx.Done():
			return rest.OrderResult{}, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return rest.OrderResult{}, fmt.Errorf("retry failed: %w", lastErr)
}

// retryable reports whether an order placement failure might succeed on a
// later attempt. Exchange rejections are final; network errors, rate limits,
// and server errors are not.
func retryable(err error) bool {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}
	return true
}
