package decoder

import (
	"encoding/binary"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// readUint64LE reads a little-endian uint64 at offset, reporting false when
// the slice is too short. All layout reads go through here so truncated
// payloads can never panic.
func readUint64LE(data []byte, offset int) (uint64, bool) {
	if offset < 0 || offset+8 > len(data) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), true
}

// validAddress reports whether s is a well-formed base58 32-byte address
// whose bytes form a valid edwards25519 point. Used to reject garbage
// account entries cheaply before a swap is emitted.
func validAddress(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
