package notary

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Signature is the notary's compact signature over a transcript digest:
// a 64-byte (r, s) pair plus a recovery byte, per spec.md §4.3. It is not
// verified inside the ZK circuit; it rides alongside the proof for the
// on-chain verifier's optional future use.
type Signature struct {
	R, S      [32]byte
	RecoveryV byte
}

// Digest computes D = SHA256(serverName || timestamp_le_u64 ||
// responseBody), the exact binding spec.md §4.3 specifies.
func Digest(serverName string, timestampUnix uint64, responseBody []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(serverName))
	var tsBuf [8]byte
	binary.LittleEndian.PutUint64(tsBuf[:], timestampUnix)
	h.Write(tsBuf[:])
	h.Write(responseBody)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign signs digest with the notary's persisted key. btcec's SignCompact
// already normalizes to low-S, satisfying spec.md §4.3's requirement.
func (id *Identity) Sign(digest [32]byte) Signature {
	compact := ecdsa.SignCompact(id.priv, digest[:], true)
	// compact layout: [recovery-id-and-flags(1) | R(32) | S(32)]
	var sig Signature
	copy(sig.R[:], compact[1:33])
	copy(sig.S[:], compact[33:65])
	sig.RecoveryV = compact[0]
	return sig
}
