package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client is a minimal Binance REST client covering the endpoints the sweep
// pipeline needs. Signed requests carry an HMAC-SHA256 signature over the
// query string plus a millisecond timestamp, per the Binance API contract.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
	log       *zap.Logger
	now       func() time.Time
}

func New(baseURL, apiKey, apiSecret string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
		now: time.Now,
	}
}

// APIError is a structured Binance error payload ({"code":-1121,"msg":...}).
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"msg"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance api error %d (http %d): %s", e.Code, e.Status, e.Message)
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	_, _ = mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if params == nil {
		params = url.Values{}
	}
	query := params.Encode()
	if signed {
		if query != "" {
			query += "&"
		}
		query += "timestamp=" + fmt.Sprintf("%d", c.now().UnixMilli())
		// The signature must come last: the server verifies the HMAC over
		// the query string exactly as sent, minus the signature parameter.
		query += "&signature=" + c.sign(query)
	}
	reqURL := c.baseURL + path
	if query != "" {
		reqURL += "?" + query
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, err
	}
	if signed || c.apiKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var parsed APIError
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Message
		}
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, signed bool) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, signed)
}

func (c *Client) post(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, params, true)
}

// ExchangeInfo fetches instrument metadata for all symbols. Symbols not in
// TRADING status are dropped here so callers never act on halted pairs.
func (c *Client) ExchangeInfo(ctx context.Context) ([]SymbolInfo, error) {
	body, err := c.get(ctx, "/api/v3/exchangeInfo", nil, false)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Symbols []SymbolInfo `json:"symbols"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode exchangeInfo: %w", err)
	}
	trading := payload.Symbols[:0]
	for _, sym := range payload.Symbols {
		if sym.Status == "TRADING" {
			trading = append(trading, sym)
		}
	}
	return trading, nil
}

func (c *Client) TickerPrice(ctx context.Context, symbol string) (float64, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.get(ctx, "/api/v3/ticker/price", params, false)
	if err != nil {
		return 0, err
	}
	var payload struct {
		Price string `json:"price"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("decode ticker price: %w", err)
	}
	return parseAmount(payload.Price)
}

// Account returns spot balances. Zero balances are kept; callers filter.
func (c *Client) Account(ctx context.Context) ([]Balance, error) {
	body, err := c.get(ctx, "/api/v3/account", nil, true)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Balances []rawBalance `json:"balances"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	balances := make([]Balance, 0, len(payload.Balances))
	for _, entry := range payload.Balances {
		free, err := parseAmount(entry.Free)
		if err != nil {
			if c.log != nil {
				c.log.Warn("unparsable balance entry", zap.String("asset", entry.Asset), zap.String("free", entry.Free))
			}
			continue
		}
		locked, _ := parseAmount(entry.Locked)
		balances = append(balances, Balance{
			Asset:  strings.ToUpper(entry.Asset),
			Free:   free,
			Locked: locked,
		})
	}
	return balances, nil
}

// FlexiblePositions lists Simple Earn flexible holdings. Locked (fixed-term)
// products live behind a different endpoint and are intentionally not
// queried: they cannot be redeemed early.
func (c *Client) FlexiblePositions(ctx context.Context) ([]FlexiblePosition, error) {
	params := url.Values{}
	params.Set("current", "1")
	params.Set("size", "100")
	body, err := c.get(ctx, "/sapi/v1/simple-earn/flexible/position", params, true)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Rows []struct {
			Asset       string `json:"asset"`
			ProductID   string `json:"productId"`
			TotalAmount string `json:"totalAmount"`
			CanRedeem   bool   `json:"canRedeem"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode flexible positions: %w", err)
	}
	positions := make([]FlexiblePosition, 0, len(payload.Rows))
	for _, row := range payload.Rows {
		amount, err := parseAmount(row.TotalAmount)
		if err != nil {
			if c.log != nil {
				c.log.Warn("unparsable flexible position", zap.String("asset", row.Asset), zap.String("amount", row.TotalAmount))
			}
			continue
		}
		positions = append(positions, FlexiblePosition{
			Asset:     strings.ToUpper(row.Asset),
			ProductID: row.ProductID,
			Amount:    amount,
			CanRedeem: row.CanRedeem,
		})
	}
	return positions, nil
}

func (c *Client) RedeemFlexible(ctx context.Context, productID string) error {
	params := url.Values{}
	params.Set("productId", productID)
	params.Set("redeemAll", "true")
	_, err := c.post(ctx, "/sapi/v1/simple-earn/flexible/redeem", params)
	return err
}

func (c *Client) FundingAssets(ctx context.Context) ([]Balance, error) {
	body, err := c.post(ctx, "/sapi/v1/asset/get-funding-asset", nil)
	if err != nil {
		return nil, err
	}
	var rows []rawBalance
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode funding assets: %w", err)
	}
	balances := make([]Balance, 0, len(rows))
	for _, entry := range rows {
		free, err := parseAmount(entry.Free)
		if err != nil {
			if c.log != nil {
				c.log.Warn("unparsable funding entry", zap.String("asset", entry.Asset), zap.String("free", entry.Free))
			}
			continue
		}
		balances = append(balances, Balance{Asset: strings.ToUpper(entry.Asset), Free: free})
	}
	return balances, nil
}

// UniversalTransfer moves an amount between the account's own wallets, e.g.
// FUNDING_MAIN for funding to spot.
func (c *Client) UniversalTransfer(ctx context.Context, transferType, asset string, amount float64) error {
	params := url.Values{}
	params.Set("type", transferType)
	params.Set("asset", asset)
	params.Set("amount", FormatAmount(amount))
	_, err := c.post(ctx, "/sapi/v1/asset/transfer", params)
	return err
}

func (c *Client) MarketSell(ctx context.Context, symbol, quantity, clientOrderID string) (OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", "SELL")
	params.Set("type", "MARKET")
	params.Set("quantity", quantity)
	if clientOrderID != "" {
		params.Set("newClientOrderId", clientOrderID)
	}
	body, err := c.post(ctx, "/api/v3/order", params)
	if err != nil {
		return OrderResult{}, err
	}
	var payload struct {
		OrderID            int64  `json:"orderId"`
		Status             string `json:"status"`
		ExecutedQty        string `json:"executedQty"`
		CumulativeQuoteQty string `json:"cummulativeQuoteQty"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return OrderResult{}, fmt.Errorf("decode order response: %w", err)
	}
	filled, _ := parseAmount(payload.ExecutedQty)
	quote, _ := parseAmount(payload.CumulativeQuoteQty)
	return OrderResult{
		OrderID:     payload.OrderID,
		Status:      payload.Status,
		FilledQty:   filled,
		QuoteAmount: quote,
	}, nil
}

// DustTransfer converts the listed sub-minimum assets to BNB in one batch.
func (c *Client) DustTransfer(ctx context.Context, assets []string) (DustResult, error) {
	params := url.Values{}
	for _, asset := range assets {
		params.Add("asset", asset)
	}
	body, err := c.post(ctx, "/sapi/v1/asset/dust", params)
	if err != nil {
		return DustResult{}, err
	}
	var payload struct {
		TotalServiceCharge string `json:"totalServiceCharge"`
		TotalTransfered    string `json:"totalTransfered"`
		TransferResult     []struct {
			FromAsset           string `json:"fromAsset"`
			Amount              string `json:"amount"`
			TransferedAmount    string `json:"transferedAmount"`
			ServiceChargeAmount string `json:"serviceChargeAmount"`
		} `json:"transferResult"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return DustResult{}, fmt.Errorf("decode dust transfer: %w", err)
	}
	result := DustResult{}
	result.TotalServiceCharge, _ = parseAmount(payload.TotalServiceCharge)
	result.TotalTransferred, _ = parseAmount(payload.TotalTransfered)
	for _, entry := range payload.TransferResult {
		amount, _ := parseAmount(entry.Amount)
		transferred, _ := parseAmount(entry.TransferedAmount)
		result.Converted = append(result.Converted, DustConversion{
			Asset:       strings.ToUpper(entry.FromAsset),
			Amount:      amount,
			Transferred: transferred,
		})
	}
	return result, nil
}
