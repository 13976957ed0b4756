package domain

// RawUpdate is an opaque transaction-level update delivered by the chain
// data-source adapter. Delivery is at-least-once with no ordering guarantee
// across signatures, so everything downstream must tolerate duplicates and
// out-of-order arrival.
type RawUpdate struct {
	Slot            int64    // chain slot, monotonic per chain
	Signature       string   // transaction signature, unique but not ordered
	ProgramID       string   // program the instruction was addressed to
	Accounts        []string // ordered account list of the instruction
	InstructionData []byte   // raw instruction payload
	Signers         []string // signing addresses of the transaction
	Owner           string   // fee payer / initiating wallet
	BlockTime       int64    // wall-clock seconds, 0 if the adapter had none
}
