package market

import (
	"context"

	"go.uber.org/zap"
)

type RestTicker interface {
	TickerPrice(ctx context.Context, symbol string) (float64, error)
}

type StreamFeed interface {
	Price(symbol string) (float64, bool)
}

// Prices resolves a symbol price, preferring the websocket cache and falling
// back to the REST ticker endpoint.
type Prices struct {
	rest RestTicker
	feed StreamFeed
	log  *zap.Logger
}

func NewPrices(rest RestTicker, feed StreamFeed, log *zap.Logger) *Prices {
	return &Prices{rest: rest, feed: feed, log: log}
}

func (p *Prices) Price(ctx context.Context, symbol string) (float64, error) {
	if p.feed != nil {
		if price, ok := p.feed.Price(symbol); ok && price > 0 {
			return price, nil
		}
	}
	price, err := p.rest.TickerPrice(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if p.feed != nil && p.log != nil {
		p.log.Debug("price from rest fallback", zap.String("symbol", symbol), zap.Float64("price", price))
	}
	return price, nil
}
