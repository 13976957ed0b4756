package decoder

import (
	"bytes"
	"fmt"

	"sonar/internal/domain"
)

// Anchor instruction discriminators for the pump.fun bonding curve program.
var (
	pumpFunBuyDiscriminator  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	pumpFunSellDiscriminator = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// pump.fun buy/sell account layout:
//
//	0: global config
//	1: fee recipient
//	2: token mint
//	3: bonding curve
//	4: associated bonding curve vault
//	5: user token account
//	6: user wallet
//
// The base token is always the mint at index 2; the quote leg is SOL.
// There is no base/quote ambiguity for this program.
const (
	pumpFunMinAccounts = 7
	pumpFunMintIndex   = 2
)

// PumpFunDecoder decodes pump.fun bonding curve buy/sell instructions.
// Both payloads carry the 8-byte discriminator, a u64 token amount
// (6 decimals) and a u64 lamport bound (max cost for buys, min output
// for sells).
type PumpFunDecoder struct{}

// NewPumpFunDecoder creates the pump.fun decoder.
func NewPumpFunDecoder() *PumpFunDecoder {
	return &PumpFunDecoder{}
}

// Compile-time interface check.
var _ Decoder = (*PumpFunDecoder)(nil)

// ProgramID returns the pump.fun program id.
func (d *PumpFunDecoder) ProgramID() string { return PumpFun }

// Decode interprets the instruction payload. Instructions other than
// buy/sell (create, withdraw, ...) yield ErrNotSwap.
func (d *PumpFunDecoder) Decode(u *domain.RawUpdate) (*domain.DecodedSwap, error) {
	if len(u.InstructionData) < 8 {
		return nil, fmt.Errorf("%w: payload shorter than discriminator", ErrMalformed)
	}

	disc := u.InstructionData[:8]
	var isBuy bool
	switch {
	case bytes.Equal(disc, pumpFunBuyDiscriminator):
		isBuy = true
	case bytes.Equal(disc, pumpFunSellDiscriminator):
		isBuy = false
	default:
		return nil, ErrNotSwap
	}

	tokenRaw, ok := readUint64LE(u.InstructionData, 8)
	if !ok {
		return nil, fmt.Errorf("%w: truncated token amount", ErrMalformed)
	}
	lamports, ok := readUint64LE(u.InstructionData, 16)
	if !ok {
		return nil, fmt.Errorf("%w: truncated lamport amount", ErrMalformed)
	}

	if len(u.Accounts) < pumpFunMinAccounts {
		return nil, fmt.Errorf("%w: %d accounts, need %d", ErrMalformed, len(u.Accounts), pumpFunMinAccounts)
	}
	mint := u.Accounts[pumpFunMintIndex]
	if mint == "" {
		return nil, fmt.Errorf("%w: empty mint account", ErrMalformed)
	}
	if u.Owner == "" || !validAddress(u.Owner) {
		return nil, fmt.Errorf("%w: invalid owner address", ErrMalformed)
	}

	return &domain.DecodedSwap{
		Pair:        pairSymbol(mint, WSOL),
		Pubkey:      mint,
		QuoteMint:   WSOL,
		BaseAmount:  float64(tokenRaw) / splDefaultScale,
		QuoteAmount: float64(lamports) / lamportsPerSOL,
		Owner:       u.Owner,
		Signers:     u.Signers,
		IsBuy:       isBuy,
		IsPump:      true,
		Slot:        u.Slot,
		Signature:   u.Signature,
		BlockTime:   u.BlockTime,
	}, nil
}
