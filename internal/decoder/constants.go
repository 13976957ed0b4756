package decoder

// Known Solana program and mint addresses.
const (
	// RaydiumAMMV4 is the Raydium AMM v4 program id.
	RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

	// PumpFun is the pump.fun bonding curve program id.
	PumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

	// WSOL is the wrapped SOL mint.
	WSOL = "So11111111111111111111111111111111111111112"

	// USDC and USDT mints, the USD-denominated quote assets.
	USDC = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDT = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

// Amount scaling. SPL token amounts arrive as raw integers; lamport
// amounts use 9 decimals, USD stables and the bulk of SPL mints use 6.
const (
	lamportsPerSOL  = 1e9
	splDefaultScale = 1e6
)

// pairSymbol builds the market symbol for a base/quote mint pair.
func pairSymbol(baseMint, quoteMint string) string {
	return baseMint + "/" + quoteMint
}
