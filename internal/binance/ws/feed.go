package ws

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// PriceFeed keeps a cache of last-trade prices from the all-market
// miniTicker stream. It is strictly an optimization: consumers fall back to
// the REST ticker when a symbol is missing or stale.
type PriceFeed struct {
	url            string
	reconnectDelay time.Duration
	maxAge         time.Duration
	log            *zap.Logger
	now            func() time.Time

	mu     sync.RWMutex
	conn   *websocket.Conn
	prices map[string]pricePoint
}

type pricePoint struct {
	price float64
	at    time.Time
}

func NewPriceFeed(url string, reconnectDelay, maxAge time.Duration, log *zap.Logger) *PriceFeed {
	return &PriceFeed{
		url:            strings.TrimRight(url, "/") + "/!miniTicker@arr",
		reconnectDelay: reconnectDelay,
		maxAge:         maxAge,
		log:            log,
		now:            time.Now,
		prices:         make(map[string]pricePoint),
	}
}

// Start runs the read loop in the background until ctx is cancelled.
func (f *PriceFeed) Start(ctx context.Context) {
	go func() {
		if err := f.Run(ctx); err != nil && ctx.Err() == nil && f.log != nil {
			f.log.Warn("price feed stopped", zap.Error(err))
		}
	}()
}

func (f *PriceFeed) Run(ctx context.Context) error {
	for {
		err := f.readOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && f.log != nil {
			f.log.Warn("price feed disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.reconnectDelay):
		}
	}
}

func (f *PriceFeed) readOnce(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, f.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(8 << 20)
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "reset")
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
	}()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		f.handle(data)
	}
}

func (f *PriceFeed) handle(data []byte) {
	var ticks []struct {
		Symbol string `json:"s"`
		Close  string `json:"c"`
	}
	if err := json.Unmarshal(data, &ticks); err != nil {
		return
	}
	now := f.now()
	f.mu.Lock()
	for _, tick := range ticks {
		price, err := parsePrice(tick.Close)
		if err != nil || price <= 0 || tick.Symbol == "" {
			continue
		}
		f.prices[strings.ToUpper(tick.Symbol)] = pricePoint{price: price, at: now}
	}
	f.mu.Unlock()
}

// Price returns the cached price for a symbol if it is fresh enough.
func (f *PriceFeed) Price(symbol string) (float64, bool) {
	f.mu.RLock()
	point, ok := f.prices[strings.ToUpper(symbol)]
	f.mu.RUnlock()
	if !ok {
		return 0, false
	}
	if f.maxAge > 0 && f.now().Sub(point.at) > f.maxAge {
		return 0, false
	}
	return point.price, true
}
