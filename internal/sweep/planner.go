package sweep

import (
	"context"

	"binance-sweep-bot/internal/balance"
	"binance-sweep-bot/internal/rules"

	"go.uber.org/zap"
)

type Action string

const (
	ActionSell Action = "SELL"
	ActionDust Action = "DUST"
	ActionSkip Action = "SKIP"
)

// Decision is the planned handling of one spot asset for the current cycle.
// Decisions are created once per cycle and never mutated.
type Decision struct {
	Asset    string
	Symbol   string
	Action   Action
	Quantity float64
	Price    float64
	Notional float64
	Reason   string
}

type RuleSource interface {
	Get(ctx context.Context, base, quote string) (rules.TradingRule, bool, error)
}

type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// Planner classifies spot balances into SELL, DUST, and SKIP decisions.
// Given the same balances, whitelist, rules, and prices it always produces
// the same decisions in the same order.
type Planner struct {
	rules            RuleSource
	prices           PriceSource
	target           string
	minQuoteNotional float64
	dustEnabled      bool
	log              *zap.Logger
}

func NewPlanner(ruleSource RuleSource, priceSource PriceSource, target string, minQuoteNotional float64, dustEnabled bool, log *zap.Logger) *Planner {
	return &Planner{
		rules:            ruleSource,
		prices:           priceSource,
		target:           target,
		minQuoteNotional: minQuoteNotional,
		dustEnabled:      dustEnabled,
		log:              log,
	}
}

// Plan walks the spot balances in input order and emits one decision per
// non-whitelisted asset with a positive free amount.
func (p *Planner) Plan(ctx context.Context, balances []balance.AssetBalance, whitelist map[string]struct{}) []Decision {
	decisions := make([]Decision, 0, len(balances))
	for _, bal := range balances {
		if bal.Wallet != balance.WalletSpot || bal.Free <= 0 {
			continue
		}
		if _, ok := whitelist[bal.Asset]; ok {
			continue
		}
		decisions = append(decisions, p.decide(ctx, bal))
	}
	return decisions
}

func (p *Planner) decide(ctx context.Context, bal balance.AssetBalance) Decision {
	decision := Decision{Asset: bal.Asset}
	rule, found, err := p.rules.Get(ctx, bal.Asset, p.target)
	if err != nil {
		decision.Action = ActionSkip
		decision.Reason = "trading rules unavailable"
		p.log.Warn("trading rule lookup failed", zap.String("asset", bal.Asset), zap.Error(err))
		return decision
	}
	if !found {
		decision.Action = ActionSkip
		decision.Reason = "no trading pair"
		return decision
	}
	decision.Symbol = rule.Symbol
	price, err := p.prices.Price(ctx, rule.Symbol)
	if err != nil || price <= 0 {
		decision.Action = ActionSkip
		decision.Reason = "no valid price"
		if err != nil {
			p.log.Warn("price lookup failed", zap.String("symbol", rule.Symbol), zap.Error(err))
		}
		return decision
	}
	decision.Price = price
	normalized, ok := Normalize(bal.Free, rule, price, p.minQuoteNotional)
	if !ok {
		decision.Action = p.dustOrSkip("below minimum order size", &decision)
		return decision
	}
	decision.Action = ActionSell
	decision.Quantity = normalized.Quantity
	decision.Notional = normalized.Notional
	decision.Reason = "sellable"
	return decision
}

func (p *Planner) dustOrSkip(reason string, decision *Decision) Action {
	decision.Reason = reason
	if p.dustEnabled {
		return ActionDust
	}
	return ActionSkip
}
