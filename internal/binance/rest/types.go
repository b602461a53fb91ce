package rest

import (
	"fmt"
	"strconv"
	"strings"
)

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

type rawBalance struct {
	Asset  string `json:"asset"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
}

type FlexiblePosition struct {
	Asset     string
	ProductID string
	Amount    float64
	CanRedeem bool
}

type SymbolInfo struct {
	Symbol     string         `json:"symbol"`
	Status     string         `json:"status"`
	BaseAsset  string         `json:"baseAsset"`
	QuoteAsset string         `json:"quoteAsset"`
	Filters    []SymbolFilter `json:"filters"`
}

type SymbolFilter struct {
	FilterType  string `json:"filterType"`
	StepSize    string `json:"stepSize"`
	MinQty      string `json:"minQty"`
	MaxQty      string `json:"maxQty"`
	MinNotional string `json:"minNotional"`
}

type OrderResult struct {
	OrderID     int64
	Status      string
	FilledQty   float64
	QuoteAmount float64
}

type DustResult struct {
	TotalServiceCharge float64
	TotalTransferred   float64
	Converted          []DustConversion
}

type DustConversion struct {
	Asset       string
	Amount      float64
	Transferred float64
}

func parseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(raw, 64)
}

// FormatAmount renders a quantity without scientific notation; the order and
// transfer endpoints reject exponent forms.
func FormatAmount(value float64) string {
	formatted := strconv.FormatFloat(value, 'f', 8, 64)
	formatted = strings.TrimRight(formatted, "0")
	formatted = strings.TrimRight(formatted, ".")
	if formatted == "" || formatted == "-" {
		return "0"
	}
	return formatted
}
