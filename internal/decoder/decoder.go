// Package decoder turns raw program instructions into normalized swaps.
// One decoder variant exists per supported exchange program; the registry
// dispatches on program id and rejects everything else before any byte
// parsing happens.
package decoder

import (
	"errors"
	"fmt"

	"sonar/internal/domain"
)

var (
	// ErrUnknownProgram is returned for updates from programs with no
	// registered decoder.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrNotSwap is returned when the instruction belongs to a supported
	// program but is not a swap (pool init, liquidity ops, ...). This is
	// not a failure; the update is silently skipped.
	ErrNotSwap = errors.New("not a swap instruction")

	// ErrMalformed is returned when the payload fails layout validation.
	// The update is dropped with a diagnostic, never a crash.
	ErrMalformed = errors.New("malformed instruction data")
)

// Decoder interprets one exchange program's instruction layout.
//
// Decode is pure and total: any input, including truncated or adversarial
// bytes, yields either a DecodedSwap or a non-fatal error.
type Decoder interface {
	// ProgramID returns the program this decoder handles.
	ProgramID() string

	// Decode attempts to interpret the update as a swap.
	Decode(u *domain.RawUpdate) (*domain.DecodedSwap, error)
}

// Registry maps program ids to decoder variants. The set is closed at
// construction time; reads are lock-free and safe to share across workers.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry creates a registry with the default decoder set.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[string]Decoder)}
	r.Register(NewRaydiumV4Decoder())
	r.Register(NewPumpFunDecoder())
	return r
}

// NewEmptyRegistry creates a registry with no decoders registered.
func NewEmptyRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register adds a decoder variant. Must not be called after the registry
// is shared with workers.
func (r *Registry) Register(d Decoder) {
	r.decoders[d.ProgramID()] = d
}

// Programs returns the registered program ids.
func (r *Registry) Programs() []string {
	out := make([]string, 0, len(r.decoders))
	for id := range r.decoders {
		out = append(out, id)
	}
	return out
}

// Decode routes the update to the decoder registered for its program.
// Unknown programs are rejected before any payload inspection.
func (r *Registry) Decode(u *domain.RawUpdate) (*domain.DecodedSwap, error) {
	d, ok := r.decoders[u.ProgramID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, u.ProgramID)
	}
	return d.Decode(u)
}
