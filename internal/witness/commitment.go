package witness

import (
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// hashElements runs the BN254 MiMC permutation over elems in sequence.
// This is the off-circuit half of the Poseidon substitution documented
// in SPEC_FULL.md §11.2: both this function and internal/circuit's
// in-circuit gadget wrap the exact same permutation, so their outputs
// are bit-identical by construction, which is the invariant spec.md §3
// actually requires.
func hashElements(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := e.Bytes()
		h.Write(b[:])
	}
	sum := h.Sum(nil)
	var out fr.Element
	out.SetBytes(sum)
	return out
}

// DataCommitment implements the two-level tree spec.md §3/§9 requires:
// Poseidon(Poseidon(blk0..blk8), Poseidon(blk9..blk16)), with MiMC
// substituted for Poseidon. blocks must have exactly ResponseBlocks
// elements.
func DataCommitment(blocks []fr.Element) fr.Element {
	if len(blocks) != ResponseBlocks {
		panic("witness: DataCommitment requires exactly ResponseBlocks elements")
	}
	left := hashElements(blocks[0:9]...)
	right := hashElements(blocks[9:17]...)
	return hashElements(left, right)
}

// ServerNameHash is Poseidon(sn0..sn7), MiMC-substituted, over
// ServerNameBlocks elements.
func ServerNameHash(blocks []fr.Element) fr.Element {
	if len(blocks) != ServerNameBlocks {
		panic("witness: ServerNameHash requires exactly ServerNameBlocks elements")
	}
	return hashElements(blocks...)
}

// NotaryPubkeyHash is Poseidon(X_fr, Y_fr), MiMC-substituted.
func NotaryPubkeyHash(xFr, yFr fr.Element) fr.Element {
	return hashElements(xFr, yFr)
}
