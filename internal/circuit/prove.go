package circuit

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/tls-oracle/prover/internal/witness"
)

// Prover wraps a compiled constraint system and proving key, ready to
// turn a Witness into a Groth16 proof. Mirrors the structural shape of
// btcq-org-qbtc/x/qbtc/zk's Prover, substituting Groth16 for PLONK.
type Prover struct {
	cs constraint.ConstraintSystem
	pk groth16.ProvingKey
}

// NewProver builds a Prover from a compiled constraint system and
// proving key, e.g. the output of Setup.
func NewProver(cs constraint.ConstraintSystem, pk groth16.ProvingKey) *Prover {
	return &Prover{cs: cs, pk: pk}
}

// ProverFromSetup is a convenience constructor over a SetupResult.
func ProverFromSetup(s *SetupResult) *Prover {
	return NewProver(s.ConstraintSystem, s.ProvingKey)
}

// Proof is the Groth16 proof shape spec.md §4.5/§6 requires: three curve
// points and the ordered public-signal vector, encoded as decimal
// strings per coordinate to match the on-chain verifier's alt_bn128 host
// function.
type Proof struct {
	A [2]string
	B [2][2]string
	C [2]string

	// PublicSignals is fixed order: [dataCommitment, serverNameHash,
	// timestamp, notaryPubkeyHash].
	PublicSignals [4]string
}

// GenerateProof evaluates the circuit on w and produces a Proof.
func (p *Prover) GenerateProof(w *witness.Witness) (*Proof, error) {
	assignment := NewAssigned(w)

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("building witness: %w", err)
	}

	proof, err := groth16.Prove(p.cs, p.pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("generating proof: %w", err)
	}

	bn254Proof, ok := proof.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("unexpected proof type %T for BN254 backend", proof)
	}

	publicWitness, err := fullWitness.Public()
	if err != nil {
		return nil, fmt.Errorf("extracting public witness: %w", err)
	}
	publicVec, ok := publicWitness.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected public witness vector type %T", publicWitness.Vector())
	}
	if len(publicVec) != 4 {
		return nil, fmt.Errorf("expected 4 public signals, got %d", len(publicVec))
	}

	return &Proof{
		A: [2]string{bn254Proof.Ar.X.String(), bn254Proof.Ar.Y.String()},
		B: [2][2]string{
			{bn254Proof.Bs.X.A0.String(), bn254Proof.Bs.X.A1.String()},
			{bn254Proof.Bs.Y.A0.String(), bn254Proof.Bs.Y.A1.String()},
		},
		C: [2]string{bn254Proof.Krs.X.String(), bn254Proof.Krs.Y.String()},
		PublicSignals: [4]string{
			publicVec[0].String(),
			publicVec[1].String(),
			publicVec[2].String(),
			publicVec[3].String(),
		},
	}, nil
}
