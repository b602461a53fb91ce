package rest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := New(server.URL, "test-key", "test-secret", 5*time.Second, zap.NewNop())
	client.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return client, server
}

func TestSignedRequestCarriesSignature(t *testing.T) {
	var gotQuery url.Values
	var gotAPIKey string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAPIKey = r.Header.Get("X-MBX-APIKEY")
		_, _ = w.Write([]byte(`{"balances":[]}`))
	}))
	if _, err := client.Account(context.Background()); err != nil {
		t.Fatalf("account: %v", err)
	}
	if gotAPIKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
	if gotQuery.Get("timestamp") != "1700000000000" {
		t.Fatalf("expected fixed timestamp, got %q", gotQuery.Get("timestamp"))
	}
	unsigned := url.Values{}
	unsigned.Set("timestamp", gotQuery.Get("timestamp"))
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte(unsigned.Encode()))
	want := hex.EncodeToString(mac.Sum(nil))
	if gotQuery.Get("signature") != want {
		t.Fatalf("signature mismatch: got %q want %q", gotQuery.Get("signature"), want)
	}
}

func TestAPIErrorParsing(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}))
	_, err := client.TickerPrice(context.Background(), "NOPEUSDT")
	if err == nil {
		t.Fatalf("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.Code != -1121 || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestExchangeInfoFiltersNonTrading(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"FOOUSDT","status":"TRADING","baseAsset":"FOO","quoteAsset":"USDT","filters":[]},
			{"symbol":"BARUSDT","status":"BREAK","baseAsset":"BAR","quoteAsset":"USDT","filters":[]}
		]}`))
	}))
	symbols, err := client.ExchangeInfo(context.Background())
	if err != nil {
		t.Fatalf("exchangeInfo: %v", err)
	}
	if len(symbols) != 1 || symbols[0].Symbol != "FOOUSDT" {
		t.Fatalf("expected only FOOUSDT, got %+v", symbols)
	}
}

func TestAccountSkipsUnparsableEntries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"balances":[
			{"asset":"foo","free":"1.5","locked":"0"},
			{"asset":"BAD","free":"not-a-number","locked":"0"}
		]}`))
	}))
	balances, err := client.Account(context.Background())
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected 1 balance, got %d", len(balances))
	}
	if balances[0].Asset != "FOO" || balances[0].Free != 1.5 {
		t.Fatalf("unexpected balance: %+v", balances[0])
	}
}

func TestMarketSellParsesFills(t *testing.T) {
	var gotQuery url.Values
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		_, _ = w.Write([]byte(`{"orderId":42,"status":"FILLED","executedQty":"120","cummulativeQuoteQty":"60.0"}`))
	}))
	result, err := client.MarketSell(context.Background(), "FOOUSDT", "120", "sweep-1")
	if err != nil {
		t.Fatalf("market sell: %v", err)
	}
	if gotQuery.Get("side") != "SELL" || gotQuery.Get("type") != "MARKET" {
		t.Fatalf("unexpected order params: %v", gotQuery)
	}
	if gotQuery.Get("newClientOrderId") != "sweep-1" {
		t.Fatalf("expected client order id, got %q", gotQuery.Get("newClientOrderId"))
	}
	if result.OrderID != 42 || result.FilledQty != 120 || result.QuoteAmount != 60 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDustTransferBatchesAssets(t *testing.T) {
	var gotAssets []string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAssets = r.URL.Query()["asset"]
		_, _ = w.Write([]byte(`{"totalServiceCharge":"0.02","totalTransfered":"1.0",
			"transferResult":[{"fromAsset":"FOO","amount":"5","transferedAmount":"0.5"}]}`))
	}))
	result, err := client.DustTransfer(context.Background(), []string{"FOO", "BAR"})
	if err != nil {
		t.Fatalf("dust transfer: %v", err)
	}
	if len(gotAssets) != 2 {
		t.Fatalf("expected 2 asset params, got %v", gotAssets)
	}
	if result.TotalServiceCharge != 0.02 || len(result.Converted) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Converted[0].Asset != "FOO" || result.Converted[0].Transferred != 0.5 {
		t.Fatalf("unexpected conversion: %+v", result.Converted[0])
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		120:        "120",
		0.5:        "0.5",
		0.00000001: "0.00000001",
		1.23456789: "1.23456789",
		0:          "0",
	}
	for value, want := range cases {
		if got := FormatAmount(value); got != want {
			t.Fatalf("FormatAmount(%v) = %q, want %q", value, got, want)
		}
	}
}
