// Package notary owns the long-lived secp256k1 notary identity: the
// persisted private scalar, its public-key encodings, and the signer used
// at the end of an MPC-TLS session.
package notary

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// scalarFileSize is the raw byte length of the persisted private key
// file (spec.md §3/§6): exactly 32 bytes, no encoding envelope.
const scalarFileSize = 32

// Identity is the notary's long-lived secp256k1 key pair plus the
// circuit-facing encodings of its public key.
type Identity struct {
	priv *btcec.PrivateKey

	// PubkeySEC1 is the uncompressed 65-byte SEC1 encoding: 0x04 || X || Y.
	PubkeySEC1 []byte

	// XFr, YFr are the pubkey coordinates reduced mod the BN254 scalar
	// field and masked to 253 bits, matching the circuit's representation
	// (spec.md §3, §9).
	XFr, YFr fr.Element

	// PubkeyHash is MiMC(XFr, YFr), the same value internal/witness
	// computes as the public notaryPubkeyHash signal.
	PubkeyHash fr.Element
}

// Load reads the notary identity from path, generating and persisting a
// fresh one (atomically, mode 0600) if the file does not yet exist. A
// given path always yields the same Identity across restarts (spec.md
// §8, "Notary-key persistence").
func Load(path string) (*Identity, error) {
	scalar, err := readOrGenerate(path)
	if err != nil {
		return nil, err
	}
	return fromScalar(scalar)
}

func readOrGenerate(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) != scalarFileSize {
			return nil, fmt.Errorf("notary key file %s: expected %d bytes, got %d", path, scalarFileSize, len(b))
		}
		return b, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading notary key file: %w", err)
	}

	scalar := make([]byte, scalarFileSize)
	for {
		if _, rerr := rand.Read(scalar); rerr != nil {
			return nil, fmt.Errorf("generating notary key: %w", rerr)
		}
		priv, _ := btcec.PrivKeyFromBytes(scalar)
		if priv != nil {
			break
		}
	}

	if err := persistAtomic(path, scalar); err != nil {
		return nil, err
	}
	return scalar, nil
}

// persistAtomic writes content to path via write-temp-then-rename, per
// spec.md §6's filesystem contract.
func persistAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating notary key directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".notary-key-*")
	if err != nil {
		return fmt.Errorf("creating temp notary key file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp notary key file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp notary key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp notary key file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming notary key file into place: %w", err)
	}
	return nil
}

func fromScalar(scalar []byte) (*Identity, error) {
	priv, pub := btcec.PrivKeyFromBytes(scalar)
	if pub == nil {
		return nil, fmt.Errorf("invalid notary private scalar")
	}

	sec1 := pub.SerializeUncompressed() // 0x04 || X(32) || Y(32)
	x := new(big.Int).SetBytes(sec1[1:33])
	y := new(big.Int).SetBytes(sec1[33:65])

	xFr := truncatedFieldElement(x)
	yFr := truncatedFieldElement(y)

	h := mimc.NewMiMC()
	xBytes := xFr.Bytes()
	yBytes := yFr.Bytes()
	h.Write(xBytes[:])
	h.Write(yBytes[:])
	sum := h.Sum(nil)
	var pubkeyHash fr.Element
	pubkeyHash.SetBytes(sum)

	return &Identity{
		priv:       priv,
		PubkeySEC1: sec1,
		XFr:        xFr,
		YFr:        yFr,
		PubkeyHash: pubkeyHash,
	}, nil
}

// truncatedFieldElement reduces coord mod the BN254 scalar field, then
// masks the result to 253 bits, per spec.md §4.4/§9 ("each reduced mod
// p_BN254, then masked to 253 bits").
func truncatedFieldElement(coord *big.Int) fr.Element {
	var reduced fr.Element
	reduced.SetBigInt(coord)

	asBig := new(big.Int)
	reduced.BigInt(asBig)

	mask := new(big.Int).Lsh(big.NewInt(1), 253)
	mask.Sub(mask, big.NewInt(1))
	asBig.And(asBig, mask)

	var e fr.Element
	e.SetBigInt(asBig)
	return e
}
