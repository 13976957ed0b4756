package domain

// DecodedSwap is a protocol-agnostic swap extracted from a RawUpdate by one
// decoder variant. It lives only inside the pipeline; enrichment turns it
// into a SwapEvent.
type DecodedSwap struct {
	Pair        string   // market symbol, e.g. "SOL/USDC"
	Pubkey      string   // base token mint
	QuoteMint   string   // quote token mint
	BaseAmount  float64  // base token amount (UI units)
	QuoteAmount float64  // quote token amount (UI units)
	SwapAmount  float64  // quote amount, converted to USD during enrichment
	Owner       string   // initiating wallet
	Signers     []string // transaction signers
	IsBuy       bool     // true when the user bought the base token
	IsPump      bool     // protocol-family classification, set by the decoder
	Slot        int64
	Signature   string
	BlockTime   int64 // seconds
}

// SwapEvent is the canonical persisted swap fact. Immutable once committed;
// uniquely identified by (signature, timestamp). The store only ever inserts,
// duplicate commits are resolved at write time.
type SwapEvent struct {
	Pair        string
	Pubkey      string
	Price       float64 // quote/base ratio in USD
	MarketCap   float64 // price * circulating supply, 0 when supply unknown
	BaseAmount  float64
	QuoteAmount float64
	SwapAmount  float64 // USD notional
	Owner       string
	Signers     []string
	IsBuy       bool
	IsPump      bool
	PriceStale  bool // valuation derived from a stale or missing quote price
	Slot        int64
	Signature   string
	Timestamp   int64 // seconds, derived from block_time
}

// Key returns the identity of the event used for deduplication.
func (e *SwapEvent) Key() SwapEventKey {
	return SwapEventKey{Signature: e.Signature, Timestamp: e.Timestamp}
}

// SwapEventKey uniquely identifies a committed swap event.
type SwapEventKey struct {
	Signature string
	Timestamp int64
}

// Trade is the wire shape published to fanout subscribers for a committed
// swap event.
type Trade struct {
	Pair       string   `json:"pair"`
	Pubkey     string   `json:"token"`
	Price      float64  `json:"price"`
	MarketCap  float64  `json:"market_cap"`
	BaseAmount float64  `json:"base_amount"`
	QuoteAmt   float64  `json:"quote_amount"`
	SwapAmount float64  `json:"swap_amount"`
	Owner      string   `json:"owner"`
	Signature  string   `json:"signature"`
	Signers    []string `json:"signers"`
	Slot       int64    `json:"slot"`
	Timestamp  int64    `json:"timestamp"`
	IsBuy      bool     `json:"is_buy"`
	IsPump     bool     `json:"is_pump"`
}

// TradeFromEvent converts a committed SwapEvent into its published form.
func TradeFromEvent(e *SwapEvent) Trade {
	return Trade{
		Pair:       e.Pair,
		Pubkey:     e.Pubkey,
		Price:      e.Price,
		MarketCap:  e.MarketCap,
		BaseAmount: e.BaseAmount,
		QuoteAmt:   e.QuoteAmount,
		SwapAmount: e.SwapAmount,
		Owner:      e.Owner,
		Signature:  e.Signature,
		Signers:    e.Signers,
		Slot:       e.Slot,
		Timestamp:  e.Timestamp,
		IsBuy:      e.IsBuy,
		IsPump:     e.IsPump,
	}
}
