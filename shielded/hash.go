// Package shielded derives the signer's private asset keys, commitments and
// shielded addresses from a root seed, and builds the ledger membership data
// a spend needs.
package shielded

import (
	"encoding/hex"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// DigestSize is the size of a serialized field element.
const DigestSize = fr.Bytes

// Digest is a canonical big-endian BN254 scalar field element.  Every public
// key, commitment and void number travels as a Digest.
type Digest [DigestSize]byte

// DigestOf serializes a field element.
func DigestOf(e *fr.Element) Digest {
	return Digest(e.Bytes())
}

// Element returns the field element of d reduced modulo r.
func (d Digest) Element() fr.Element {
	var e fr.Element
	e.SetBytes(d[:])
	return e
}

// String returns the hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// MarshalText encodes the digest as hex.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a hex digest.
func (d *Digest) UnmarshalText(text []byte) error {
	if hex.DecodedLen(len(text)) != DigestSize {
		return fmt.Errorf("digest must be %d hex encoded bytes", DigestSize)
	}
	var raw [DigestSize]byte
	if _, err := hex.Decode(raw[:], text); err != nil {
		return fmt.Errorf("invalid digest: %w", err)
	}
	out, err := digestFromBytes(raw[:])
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// digestFromBytes rejects encodings that are not reduced modulo r.
func digestFromBytes(b []byte) (Digest, error) {
	var d Digest
	copy(d[:], b)
	e := d.Element()
	if len(b) != DigestSize || DigestOf(&e) != d {
		return Digest{}, fmt.Errorf("%x is not a canonical field element", b)
	}
	return d, nil
}

// Hash returns the MiMC digest of the field elements.  Each element is
// absorbed as one 32 byte block, which matches the in-circuit hasher.
func Hash(elems ...fr.Element) fr.Element {
	h := mimc.NewMiMC()
	for i := range elems {
		b := elems[i].Bytes()
		// Canonical blocks never fail to absorb.
		h.Write(b[:])
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}

// elementOf lifts an integer into the field.
func elementOf(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// Commit returns the note commitment H(asset id, value, k).
func Commit(assetID AssetID, value uint64, k fr.Element) fr.Element {
	return Hash(elementOf(uint64(assetID)), elementOf(value), k)
}
