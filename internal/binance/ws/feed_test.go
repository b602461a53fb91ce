package ws

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestFeed(t *testing.T) *PriceFeed {
	t.Helper()
	feed := NewPriceFeed("wss://example.invalid/ws", time.Second, 30*time.Second, zap.NewNop())
	feed.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return feed
}

func TestHandleUpdatesPrices(t *testing.T) {
	feed := newTestFeed(t)
	feed.handle([]byte(`[{"s":"FOOUSDT","c":"0.5"},{"s":"BARUSDT","c":"2.25"}]`))
	price, ok := feed.Price("FOOUSDT")
	if !ok || price != 0.5 {
		t.Fatalf("expected 0.5, got %v ok=%v", price, ok)
	}
	price, ok = feed.Price("barusdt")
	if !ok || price != 2.25 {
		t.Fatalf("expected case-insensitive lookup, got %v ok=%v", price, ok)
	}
}

func TestHandleIgnoresBadEntries(t *testing.T) {
	feed := newTestFeed(t)
	feed.handle([]byte(`[{"s":"FOOUSDT","c":"not-a-price"},{"s":"","c":"1"},{"s":"OKUSDT","c":"-1"}]`))
	if _, ok := feed.Price("FOOUSDT"); ok {
		t.Fatalf("expected unparsable price dropped")
	}
	if _, ok := feed.Price("OKUSDT"); ok {
		t.Fatalf("expected non-positive price dropped")
	}
}

func TestHandleIgnoresMalformedPayload(t *testing.T) {
	feed := newTestFeed(t)
	feed.handle([]byte(`{"not":"an array"}`))
	if _, ok := feed.Price("FOOUSDT"); ok {
		t.Fatalf("expected no prices from malformed payload")
	}
}

func TestPriceExpiresAfterMaxAge(t *testing.T) {
	feed := newTestFeed(t)
	feed.handle([]byte(`[{"s":"FOOUSDT","c":"0.5"}]`))
	feed.now = func() time.Time { return time.UnixMilli(1700000000000).Add(time.Minute) }
	if _, ok := feed.Price("FOOUSDT"); ok {
		t.Fatalf("expected stale price to be rejected")
	}
}

func TestPriceMissingSymbol(t *testing.T) {
	feed := newTestFeed(t)
	if _, ok := feed.Price("NOPEUSDT"); ok {
		t.Fatalf("expected miss for unknown symbol")
	}
}
