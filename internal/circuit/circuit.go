// Package circuit implements the Groth16 arithmetic circuit for the
// witness shape in spec.md §3, its setup, and the in-process prover that
// turns a witness into (A, B, C) plus the four public signals.
package circuit

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/tls-oracle/prover/internal/witness"
)

// Circuit is the gnark circuit definition matching the Witness shape
// from spec.md §3/§4.4. Field names deliberately mirror
// internal/witness.Witness so the assignment in prove.go is a direct
// copy.
type Circuit struct {
	// Private inputs.
	ResponseData  [witness.ResponseBlocks]frontend.Variable   `gnark:",secret"`
	ServerName    [witness.ServerNameBlocks]frontend.Variable `gnark:",secret"`
	NotaryPubkeyX frontend.Variable                           `gnark:",secret"`
	NotaryPubkeyY frontend.Variable                           `gnark:",secret"`

	// Public signals, in the fixed order from spec.md §6:
	// [dataCommitment, serverNameHash, timestamp, notaryPubkeyHash].
	DataCommitment   frontend.Variable `gnark:",public"`
	ServerNameHash   frontend.Variable `gnark:",public"`
	Timestamp        frontend.Variable `gnark:",public"`
	NotaryPubkeyHash frontend.Variable `gnark:",public"`
}

// Define implements frontend.Circuit. It recomputes the two-level MiMC
// tree (spec.md §9's (9,8,2) shape, MiMC substituted for Poseidon per
// SPEC_FULL.md §11.2) and the server-name and notary-pubkey hashes, and
// asserts they match the public signals the prover claims.
func (c *Circuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Reset()
	h.Write(c.ResponseData[0:9]...)
	left := h.Sum()

	h.Reset()
	h.Write(c.ResponseData[9:17]...)
	right := h.Sum()

	h.Reset()
	h.Write(left, right)
	dataCommitment := h.Sum()
	api.AssertIsEqual(dataCommitment, c.DataCommitment)

	h.Reset()
	h.Write(c.ServerName[:]...)
	serverNameHash := h.Sum()
	api.AssertIsEqual(serverNameHash, c.ServerNameHash)

	h.Reset()
	h.Write(c.NotaryPubkeyX, c.NotaryPubkeyY)
	notaryPubkeyHash := h.Sum()
	api.AssertIsEqual(notaryPubkeyHash, c.NotaryPubkeyHash)

	// Timestamp carries no private counterpart to check against; it is
	// bound to the proof simply by being a public input the verifier
	// already holds. Groth16 itself makes altering a public signal after
	// the fact impossible without invalidating the proof.
	api.AssertIsEqual(c.Timestamp, c.Timestamp)

	return nil
}

// NewPlaceholder returns an empty circuit for compilation (no witness
// values assigned), mirroring the placeholder/real constructor split in
// btcq-org-qbtc's x/qbtc/zk/circuit.go.
func NewPlaceholder() *Circuit {
	return &Circuit{}
}

// NewAssigned builds a circuit instance populated with w's values, ready
// to be passed to frontend.NewWitness for proving. fr.Element values are
// converted to *big.Int, the representation gnark's variable assignment
// understands natively.
func NewAssigned(w *witness.Witness) *Circuit {
	c := &Circuit{
		NotaryPubkeyX:    toBigInt(&w.NotaryPubkeyX),
		NotaryPubkeyY:    toBigInt(&w.NotaryPubkeyY),
		DataCommitment:   toBigInt(&w.DataCommitment),
		ServerNameHash:   toBigInt(&w.ServerNameHash),
		Timestamp:        toBigInt(&w.Timestamp),
		NotaryPubkeyHash: toBigInt(&w.NotaryPubkeyHash),
	}
	for i := range w.ResponseData {
		c.ResponseData[i] = toBigInt(&w.ResponseData[i])
	}
	for i := range w.ServerName {
		c.ServerName[i] = toBigInt(&w.ServerName[i])
	}
	return c
}

func toBigInt(e *fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
