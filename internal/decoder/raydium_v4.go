package decoder

import (
	"fmt"

	"sonar/internal/domain"
)

// Raydium AMM v4 swap instruction tags. The program uses a single
// discriminator byte followed by two little-endian u64 amounts.
const (
	raydiumSwapBaseIn  = 9  // amount_in, minimum_amount_out
	raydiumSwapBaseOut = 11 // max_amount_in, amount_out
)

// Raydium swap instructions carry 17 accounts (or 18 when the target
// orders account is present):
//
//	0: token program
//	1: AMM id (pool)
//	2: AMM authority
//	3: AMM open orders
//	4: [target orders, only in the 18-account form]
//	4/5: pool coin vault
//	5/6: pool pc vault
//	...: serum market accounts
//	n-3: user source token account
//	n-2: user destination token account
//	n-1: user owner
//
// Canonical base/quote rule for this decoder: the lower-indexed pool vault
// is the base side. When the account list carries a USD stable mint the
// USD side is the quote leg; otherwise the pool is treated as SOL-quoted.
const (
	raydiumMinAccounts = 17
	raydiumPoolIndex   = 1
)

// RaydiumV4Decoder decodes Raydium AMM v4 swap instructions.
//
// Direction rule: swapBaseIn spends the base token (a sell), swapBaseOut
// acquires it (a buy). This is fixed by the instruction variant, not
// inferred from account contents.
type RaydiumV4Decoder struct{}

// NewRaydiumV4Decoder creates the Raydium AMM v4 decoder.
func NewRaydiumV4Decoder() *RaydiumV4Decoder {
	return &RaydiumV4Decoder{}
}

// Compile-time interface check.
var _ Decoder = (*RaydiumV4Decoder)(nil)

// ProgramID returns the Raydium AMM v4 program id.
func (d *RaydiumV4Decoder) ProgramID() string { return RaydiumAMMV4 }

// Decode interprets the instruction payload. Non-swap tags yield ErrNotSwap;
// truncated payloads and degenerate account lists yield ErrMalformed.
func (d *RaydiumV4Decoder) Decode(u *domain.RawUpdate) (*domain.DecodedSwap, error) {
	if len(u.InstructionData) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	tag := u.InstructionData[0]
	if tag != raydiumSwapBaseIn && tag != raydiumSwapBaseOut {
		return nil, ErrNotSwap
	}

	first, ok := readUint64LE(u.InstructionData, 1)
	if !ok {
		return nil, fmt.Errorf("%w: truncated amount at tag %d", ErrMalformed, tag)
	}
	second, ok := readUint64LE(u.InstructionData, 9)
	if !ok {
		return nil, fmt.Errorf("%w: truncated amount at tag %d", ErrMalformed, tag)
	}

	if len(u.Accounts) < raydiumMinAccounts {
		return nil, fmt.Errorf("%w: %d accounts, need %d", ErrMalformed, len(u.Accounts), raydiumMinAccounts)
	}
	if u.Owner == "" || !validAddress(u.Owner) {
		return nil, fmt.Errorf("%w: invalid owner address", ErrMalformed)
	}

	pool := u.Accounts[raydiumPoolIndex]
	quoteMint, quoteScale := quoteSide(u.Accounts)

	// swapBaseIn: base in, quote out, a sell.
	// swapBaseOut: quote in, base out, a buy.
	var baseRaw, quoteRaw uint64
	var isBuy bool
	switch tag {
	case raydiumSwapBaseIn:
		baseRaw, quoteRaw, isBuy = first, second, false
	case raydiumSwapBaseOut:
		baseRaw, quoteRaw, isBuy = second, first, true
	}

	return &domain.DecodedSwap{
		Pair:        pairSymbol(pool, quoteMint),
		Pubkey:      pool,
		QuoteMint:   quoteMint,
		BaseAmount:  float64(baseRaw) / splDefaultScale,
		QuoteAmount: float64(quoteRaw) / quoteScale,
		Owner:       u.Owner,
		Signers:     u.Signers,
		IsBuy:       isBuy,
		IsPump:      false,
		Slot:        u.Slot,
		Signature:   u.Signature,
		BlockTime:   u.BlockTime,
	}, nil
}

// quoteSide picks the quote mint for a pool. When both legs are
// quote-capable the USD-denominated mint wins, so a USDC- or USDT-quoted
// pool is never valued through the SOL price.
func quoteSide(accounts []string) (mint string, scale float64) {
	for _, a := range accounts {
		switch a {
		case USDC, USDT:
			return a, splDefaultScale
		}
	}
	return WSOL, lamportsPerSOL
}
