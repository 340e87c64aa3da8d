package circuit

import (
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"

	"github.com/tls-oracle/prover/internal/mpctls"
	"github.com/tls-oracle/prover/internal/notary"
	"github.com/tls-oracle/prover/internal/witness"
)

func buildTestWitness(t *testing.T) *witness.Witness {
	t.Helper()
	dir := t.TempDir()
	id, err := notary.Load(dir + "/notary.key")
	if err != nil {
		t.Fatalf("loading notary identity: %v", err)
	}
	tr := &mpctls.Transcript{
		ServerName:           "example.com",
		TimestampUnixSeconds: 1700000000,
		ResponseBodyBytes:    []byte(`{"status":"ok","value":42}`),
	}
	w, oerr := witness.Build("cid", tr, id)
	if oerr != nil {
		t.Fatalf("building witness: %v", oerr)
	}
	return w
}

// TestCircuitSolvesForAGenuineWitness exercises Define against the exact
// assignment internal/witness produces, the same data path
// GenerateProof uses, using gnark's constraint-solving test engine rather
// than a full (expensive) Groth16 setup.
func TestCircuitSolvesForAGenuineWitness(t *testing.T) {
	w := buildTestWitness(t)
	assignment := NewAssigned(w)

	assert := test.NewAssert(t)
	assert.SolvingSucceeded(NewPlaceholder(), assignment, test.WithCurves(ecc.BN254))
}

// TestCircuitRejectsTamperedPublicSignal asserts that a proof cannot be
// solved if the claimed dataCommitment does not match the witness's
// actual response-data blocks, the property the on-chain verifier
// ultimately relies on.
func TestCircuitRejectsTamperedPublicSignal(t *testing.T) {
	w := buildTestWitness(t)
	assignment := NewAssigned(w)
	assignment.DataCommitment = 12345 // deliberately wrong

	assert := test.NewAssert(t)
	assert.SolvingFailed(NewPlaceholder(), assignment, test.WithCurves(ecc.BN254))
}
