// Package enrich attaches USD valuation and classification to decoded
// swaps, producing the canonical SwapEvent.
package enrich

import (
	"strings"
	"time"

	"sonar/internal/decoder"
	"sonar/internal/domain"
	"sonar/internal/pricecache"
)

// SupplySource answers circulating supply lookups for market cap.
type SupplySource interface {
	// Supply returns the circulating supply of the token and whether it
	// is known.
	Supply(pubkey string) (float64, bool)
}

// StaticSupply is a fixed supply table, suitable for tests and for tokens
// resolved out of band.
type StaticSupply map[string]float64

// Supply implements SupplySource.
func (s StaticSupply) Supply(pubkey string) (float64, bool) {
	v, ok := s[pubkey]
	return v, ok
}

// Options tunes enrichment behavior.
type Options struct {
	// StaleAfter is the age in seconds past which a cached quote price is
	// considered stale. Events are still produced, flagged PriceStale.
	StaleAfter int64
}

// DefaultOptions returns the default enrichment tuning.
func DefaultOptions() Options {
	return Options{StaleAfter: 30}
}

// Enricher converts DecodedSwaps into SwapEvents. It performs only local
// lookups; a price miss degrades the event, it never blocks the pipeline.
type Enricher struct {
	prices pricecache.Cache
	supply SupplySource
	opts   Options

	// now is swappable for tests.
	now func() time.Time
}

// NewEnricher creates an enricher over the given price cache and supply
// source. supply may be nil, in which case market cap is always 0.
func NewEnricher(prices pricecache.Cache, supply SupplySource, opts Options) *Enricher {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultOptions().StaleAfter
	}
	return &Enricher{prices: prices, supply: supply, opts: opts, now: time.Now}
}

// Enrich produces the canonical SwapEvent for a decoded swap.
//
// The quote leg is valued in USD: USD stables are fixed at 1.0, everything
// else resolves through the price cache at the swap's block time. A stale
// or missing quote price still yields an event, explicitly flagged. A swap
// whose adapter supplied no block time is stamped with the wall clock so
// it lands in the current bucket instead of epoch zero.
func (e *Enricher) Enrich(d *domain.DecodedSwap) *domain.SwapEvent {
	ts := d.BlockTime
	if ts == 0 {
		ts = e.now().Unix()
	}

	quotePrice, stale := e.quotePrice(d.QuoteMint, ts)

	var price float64
	if d.BaseAmount > 0 {
		price = d.QuoteAmount / d.BaseAmount * quotePrice
	}
	swapAmount := d.QuoteAmount * quotePrice

	var marketCap float64
	if e.supply != nil {
		if supply, ok := e.supply.Supply(d.Pubkey); ok {
			marketCap = price * supply
		}
	}

	return &domain.SwapEvent{
		Pair:        d.Pair,
		Pubkey:      d.Pubkey,
		Price:       price,
		MarketCap:   marketCap,
		BaseAmount:  d.BaseAmount,
		QuoteAmount: d.QuoteAmount,
		SwapAmount:  swapAmount,
		Owner:       d.Owner,
		Signers:     d.Signers,
		IsBuy:       d.IsBuy,
		IsPump:      isPump(d),
		PriceStale:  stale,
		Slot:        d.Slot,
		Signature:   d.Signature,
		Timestamp:   ts,
	}
}

// quotePrice resolves the USD price of the quote asset at ts.
func (e *Enricher) quotePrice(quoteMint string, ts int64) (price float64, stale bool) {
	switch quoteMint {
	case decoder.USDC, decoder.USDT:
		return 1.0, false
	}

	entry, ok := e.prices.Get(quoteMint, ts)
	if !ok {
		return 0, true
	}
	return entry.Price, ts-entry.AsOf > e.opts.StaleAfter
}

// isPump classifies the swap's protocol family. Fixed at enrichment time;
// never recomputed later.
func isPump(d *domain.DecodedSwap) bool {
	return d.IsPump || strings.HasSuffix(strings.ToLower(d.Pubkey), "pump")
}
