package sweep

import (
	"math"
	"strconv"
	"strings"

	"binance-sweep-bot/internal/rules"
)

// Normalized is a sell quantity adjusted to the instrument's constraints.
type Normalized struct {
	Quantity float64
	Notional float64
}

// Normalize truncates rawQty down to the largest multiple of the rule's step
// size (never up, so the sell can never exceed the available balance), clamps
// to maxQty, and rejects quantities below minQty or below the notional
// threshold max(rule.MinNotional, minQuoteNotional). A rejection means the
// balance is dust, not that something went wrong.
func Normalize(rawQty float64, rule rules.TradingRule, price, minQuoteNotional float64) (Normalized, bool) {
	if rawQty <= 0 || price <= 0 {
		return Normalized{}, false
	}
	qty := rawQty
	if rule.StepSize > 0 {
		steps := math.Floor(rawQty/rule.StepSize + 1e-9)
		qty = roundToStep(steps*rule.StepSize, rule.StepSize)
	}
	if rule.MaxQty > 0 && qty > rule.MaxQty {
		qty = rule.MaxQty
	}
	if qty <= 0 {
		return Normalized{}, false
	}
	if rule.MinQty > 0 && qty < rule.MinQty {
		return Normalized{}, false
	}
	notional := qty * price
	if notional < math.Max(rule.MinNotional, minQuoteNotional) {
		return Normalized{}, false
	}
	return Normalized{Quantity: qty, Notional: notional}, true
}

// roundToStep trims float drift from the multiplication back to the step
// size's own decimal precision.
func roundToStep(qty, step float64) float64 {
	decimals := stepDecimals(step)
	if decimals <= 0 {
		return math.Round(qty)
	}
	factor := math.Pow10(decimals)
	return math.Round(qty*factor) / factor
}

func stepDecimals(step float64) int {
	formatted := strconv.FormatFloat(step, 'f', -1, 64)
	_, frac, ok := strings.Cut(formatted, ".")
	if !ok {
		return 0
	}
	return len(frac)
}
