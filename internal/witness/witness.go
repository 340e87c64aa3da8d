package witness

import (
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/tls-oracle/prover/internal/mpctls"
	"github.com/tls-oracle/prover/internal/notary"
	"github.com/tls-oracle/prover/internal/oracleerr"
)

// Witness is the fixed-arity circuit input described in spec.md §3.
type Witness struct {
	ResponseData  [ResponseBlocks]fr.Element
	ServerName    [ServerNameBlocks]fr.Element
	NotaryPubkeyX fr.Element
	NotaryPubkeyY fr.Element

	// Public signals, in the fixed order spec.md §6 requires:
	// [dataCommitment, serverNameHash, timestamp, notaryPubkeyHash].
	DataCommitment   fr.Element
	ServerNameHash   fr.Element
	Timestamp        fr.Element
	NotaryPubkeyHash fr.Element
}

// Build decomposes a Transcript and a notary identity into a Witness,
// per spec.md §4.4. Callers must have already rejected any transcript
// whose server name or body exceed the block-count ceilings; Build
// re-validates those bounds defensively.
func Build(correlationID string, t *mpctls.Transcript, id *notary.Identity) (*Witness, *oracleerr.Error) {
	serverName := strings.ToLower(t.ServerName)
	if len(serverName) > MaxServerNameBytes {
		return nil, oracleerr.New(oracleerr.ResponseTooLarge, correlationID, "server name exceeds maximum length")
	}
	if len(t.ResponseBodyBytes) > MaxResponseBodyBytes {
		return nil, oracleerr.New(oracleerr.ResponseTooLarge, correlationID, "response body exceeds maximum length")
	}

	responseBlocks := PackBytes(t.ResponseBodyBytes, ResponseBlocks)
	serverNameBlocks := PackBytes([]byte(serverName), ServerNameBlocks)

	dataCommitment := DataCommitment(responseBlocks)
	serverNameHash := ServerNameHash(serverNameBlocks)
	notaryPubkeyHash := NotaryPubkeyHash(id.XFr, id.YFr)

	var timestamp fr.Element
	timestamp.SetUint64(t.TimestampUnixSeconds)

	w := &Witness{
		NotaryPubkeyX:    id.XFr,
		NotaryPubkeyY:    id.YFr,
		DataCommitment:   dataCommitment,
		ServerNameHash:   serverNameHash,
		Timestamp:        timestamp,
		NotaryPubkeyHash: notaryPubkeyHash,
	}
	copy(w.ResponseData[:], responseBlocks)
	copy(w.ServerName[:], serverNameBlocks)
	return w, nil
}
