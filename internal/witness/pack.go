// Package witness builds the fixed-shape field-element witness from an
// MPC-TLS transcript and computes the public MiMC commitments that bind
// it, per spec.md §3/§4.4.
package witness

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// ResponseBlocks is the number of 31-byte field-element blocks the
	// response body is packed into.
	ResponseBlocks = 17
	// ServerNameBlocks is the number of 31-byte field-element blocks the
	// server name is packed into.
	ServerNameBlocks = 8

	blockBytes = 31

	// MaxResponseBodyBytes and MaxServerNameBytes are the hard ceilings
	// spec.md §3 derives from the block counts above.
	MaxResponseBodyBytes = ResponseBlocks * blockBytes   // 527
	MaxServerNameBytes   = ServerNameBlocks * blockBytes // 248
)

// PackBytes splits b into numBlocks field elements of blockBytes each,
// little-endian within each block, zero-padded past the end of b, and
// reduced mod the BN254 scalar field. It is the single packing routine
// shared by response-body and server-name encoding so the two stay
// bit-identical to the invariant in spec.md §3.
func PackBytes(b []byte, numBlocks int) []fr.Element {
	out := make([]fr.Element, numBlocks)
	for i := 0; i < numBlocks; i++ {
		start := i * blockBytes
		end := start + blockBytes
		var block [blockBytes]byte
		if start < len(b) {
			n := end
			if n > len(b) {
				n = len(b)
			}
			copy(block[:], b[start:n])
		}
		// fr.Element.SetBytes interprets input as big-endian; reverse the
		// little-endian block before reduction so the byte-to-field
		// mapping matches spec.md's "little-endian" packing exactly.
		var leReversed [blockBytes]byte
		for j := 0; j < blockBytes; j++ {
			leReversed[j] = block[blockBytes-1-j]
		}
		out[i].SetBytes(leReversed[:])
	}
	return out
}
