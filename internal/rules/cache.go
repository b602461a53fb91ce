package rules

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"binance-sweep-bot/internal/binance/rest"

	"go.uber.org/zap"
)

// TradingRule is the subset of exchange filters the sweep pipeline needs to
// size a market sell.
type TradingRule struct {
	Symbol      string
	Base        string
	Quote       string
	StepSize    float64
	MinQty      float64
	MaxQty      float64
	MinNotional float64
}

type ExchangeInfoClient interface {
	ExchangeInfo(ctx context.Context) ([]rest.SymbolInfo, error)
}

// Cache fetches exchange trading rules once and serves lookups from memory.
// A missing pair is a normal outcome, not an error: callers skip the asset.
type Cache struct {
	client       ExchangeInfoClient
	log          *zap.Logger
	refreshAfter time.Duration
	now          func() time.Time

	mu          sync.RWMutex
	rules       map[string]TradingRule
	lastRefresh time.Time
}

func NewCache(client ExchangeInfoClient, refreshAfter time.Duration, log *zap.Logger) *Cache {
	return &Cache{
		client:       client,
		log:          log,
		refreshAfter: refreshAfter,
		now:          time.Now,
	}
}

// Get returns the trading rule for base/quote. The first call fetches and
// caches the full exchange info; later calls hit the cache. A miss triggers
// at most one refresh per refresh window before reporting not-found.
func (c *Cache) Get(ctx context.Context, base, quote string) (TradingRule, bool, error) {
	symbol := strings.ToUpper(base) + strings.ToUpper(quote)
	c.mu.RLock()
	rule, ok := c.rules[symbol]
	loaded := c.rules != nil
	stale := loaded && c.refreshAfter > 0 && c.now().Sub(c.lastRefresh) > c.refreshAfter
	c.mu.RUnlock()
	if ok && !stale {
		return rule, true, nil
	}
	if loaded && !stale {
		return TradingRule{}, false, nil
	}
	if err := c.refresh(ctx); err != nil {
		// Serve the previous snapshot when a stale refresh fails.
		if ok {
			return rule, true, nil
		}
		return TradingRule{}, false, err
	}
	c.mu.RLock()
	rule, ok = c.rules[symbol]
	c.mu.RUnlock()
	return rule, ok, nil
}

func (c *Cache) refresh(ctx context.Context) error {
	symbols, err := c.client.ExchangeInfo(ctx)
	if err != nil {
		return err
	}
	rules := make(map[string]TradingRule, len(symbols))
	for _, sym := range symbols {
		rules[sym.Symbol] = ruleFromSymbol(sym)
	}
	c.mu.Lock()
	c.rules = rules
	c.lastRefresh = c.now()
	c.mu.Unlock()
	if c.log != nil {
		c.log.Info("loaded tradable pairs", zap.Int("count", len(rules)))
	}
	return nil
}

func ruleFromSymbol(sym rest.SymbolInfo) TradingRule {
	rule := TradingRule{
		Symbol: sym.Symbol,
		Base:   strings.ToUpper(sym.BaseAsset),
		Quote:  strings.ToUpper(sym.QuoteAsset),
	}
	for _, filter := range sym.Filters {
		switch filter.FilterType {
		case "LOT_SIZE":
			rule.StepSize = parseFilterValue(filter.StepSize)
			rule.MinQty = parseFilterValue(filter.MinQty)
			rule.MaxQty = parseFilterValue(filter.MaxQty)
		case "MIN_NOTIONAL", "NOTIONAL":
			rule.MinNotional = parseFilterValue(filter.MinNotional)
		}
	}
	return rule
}

func parseFilterValue(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0
	}
	return value
}
