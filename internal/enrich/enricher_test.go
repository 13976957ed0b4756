package enrich

import (
	"testing"
	"time"

	"sonar/internal/decoder"
	"sonar/internal/domain"
	"sonar/internal/pricecache"
)

func testSwap() *domain.DecodedSwap {
	return &domain.DecodedSwap{
		Pair:        "TOKEN1/WSOL",
		Pubkey:      "TOKEN1",
		QuoteMint:   decoder.WSOL,
		BaseAmount:  10,
		QuoteAmount: 2,
		Owner:       "owner",
		IsBuy:       true,
		Slot:        100,
		Signature:   "sig1",
		BlockTime:   1000,
	}
}

func TestEnrich_UsdValuation(t *testing.T) {
	cache := pricecache.NewMemoryCache(0)
	cache.Put(decoder.WSOL, 50, 995)

	e := NewEnricher(cache, nil, DefaultOptions())
	event := e.Enrich(testSwap())

	// price = (2 / 10) * 50
	if event.Price != 10 {
		t.Errorf("price: got %f, want 10", event.Price)
	}
	// swap_amount = 2 * 50
	if event.SwapAmount != 100 {
		t.Errorf("swap amount: got %f, want 100", event.SwapAmount)
	}
	if event.PriceStale {
		t.Error("fresh quote price must not be flagged stale")
	}
	if event.Timestamp != 1000 {
		t.Errorf("timestamp: got %d, want block time 1000", event.Timestamp)
	}
}

func TestEnrich_StablecoinQuoteFixedAtOne(t *testing.T) {
	e := NewEnricher(pricecache.NewMemoryCache(0), nil, DefaultOptions())

	d := testSwap()
	d.QuoteMint = decoder.USDC

	event := e.Enrich(d)
	if event.Price != 0.2 {
		t.Errorf("price: got %f, want 0.2", event.Price)
	}
	if event.PriceStale {
		t.Error("stable quotes are never stale")
	}
}

func TestEnrich_StalePriceFlagged(t *testing.T) {
	cache := pricecache.NewMemoryCache(0)
	cache.Put(decoder.WSOL, 50, 900) // 100s before block time

	e := NewEnricher(cache, nil, Options{StaleAfter: 30})
	event := e.Enrich(testSwap())

	if !event.PriceStale {
		t.Error("quote older than threshold must be flagged stale")
	}
	if event.Price != 10 {
		t.Errorf("stale events still carry the computed price, got %f", event.Price)
	}
}

func TestEnrich_MissingPriceDoesNotBlock(t *testing.T) {
	e := NewEnricher(pricecache.NewMemoryCache(0), nil, DefaultOptions())
	event := e.Enrich(testSwap())

	if event == nil {
		t.Fatal("a price miss must still produce an event")
	}
	if !event.PriceStale {
		t.Error("price miss must be flagged")
	}
	if event.Price != 0 {
		t.Errorf("unknown quote price yields 0, got %f", event.Price)
	}
}

func TestEnrich_MarketCap(t *testing.T) {
	cache := pricecache.NewMemoryCache(0)
	cache.Put(decoder.WSOL, 50, 1000)

	supply := StaticSupply{"TOKEN1": 1_000_000}
	e := NewEnricher(cache, supply, DefaultOptions())

	event := e.Enrich(testSwap())
	if event.MarketCap != 10_000_000 {
		t.Errorf("market cap: got %f, want 10000000", event.MarketCap)
	}

	unknown := testSwap()
	unknown.Pubkey = "TOKEN2"
	event = e.Enrich(unknown)
	if event.MarketCap != 0 {
		t.Errorf("unknown supply yields market cap 0, got %f", event.MarketCap)
	}
}

func TestEnrich_PumpClassification(t *testing.T) {
	e := NewEnricher(pricecache.NewMemoryCache(0), nil, DefaultOptions())

	fromDecoder := testSwap()
	fromDecoder.IsPump = true
	if !e.Enrich(fromDecoder).IsPump {
		t.Error("decoder pump flag must carry through")
	}

	bySuffix := testSwap()
	bySuffix.Pubkey = "AbCdEfpump"
	if !e.Enrich(bySuffix).IsPump {
		t.Error("mint suffix heuristic must classify as pump")
	}

	plain := testSwap()
	if e.Enrich(plain).IsPump {
		t.Error("plain swap misclassified as pump")
	}
}

func TestEnrich_MissingBlockTimeStampedNow(t *testing.T) {
	cache := pricecache.NewMemoryCache(0)
	cache.Put(decoder.WSOL, 50, 1995)

	e := NewEnricher(cache, nil, DefaultOptions())
	e.now = func() time.Time { return time.Unix(2000, 0) }

	d := testSwap()
	d.BlockTime = 0

	event := e.Enrich(d)
	if event.Timestamp != 2000 {
		t.Errorf("timestamp: got %d, want wall clock 2000", event.Timestamp)
	}
	if event.PriceStale {
		t.Error("price lookup must use the stamped time, not epoch zero")
	}
	if event.Price != 10 {
		t.Errorf("price: got %f, want 10", event.Price)
	}
}

func TestEnrich_ZeroBaseAmount(t *testing.T) {
	cache := pricecache.NewMemoryCache(0)
	cache.Put(decoder.WSOL, 50, 1000)
	e := NewEnricher(cache, nil, DefaultOptions())

	d := testSwap()
	d.BaseAmount = 0

	event := e.Enrich(d)
	if event.Price != 0 {
		t.Errorf("zero base amount must not divide, got price %f", event.Price)
	}
}
