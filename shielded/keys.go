package shielded

import (
	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/curve25519"
)

// Domain separators for values derived from a secret key.
const (
	rhoDomain        = 1
	encryptionDomain = 2
)

// SpendingKey is the field secret key of one keypath along with the values
// derived from it.
type SpendingKey struct {
	Path KeyPath

	sk  fr.Element
	pk  fr.Element
	rho fr.Element
}

// DeriveSpendingKey derives the spending key of path from the root seed.
func DeriveSpendingKey(seed []byte, path KeyPath) (*SpendingKey, error) {
	sk, err := DeriveSecretKey(seed, path)
	if err != nil {
		return nil, err
	}
	return newSpendingKey(path, sk), nil
}

func newSpendingKey(path KeyPath, sk fr.Element) *SpendingKey {
	return &SpendingKey{
		Path: path,
		sk:   sk,
		pk:   Hash(sk),
		rho:  Hash(sk, elementOf(rhoDomain)),
	}
}

// Secret returns the field secret key.
func (k *SpendingKey) Secret() fr.Element { return k.sk }

// PublicKey returns H(sk).
func (k *SpendingKey) PublicKey() fr.Element { return k.pk }

// Rho returns the nullifier seed H(sk, 1).
func (k *SpendingKey) Rho() fr.Element { return k.rho }

// NoteK returns the commitment trapdoor H(pk, rho, nonce) of the note with
// the given nonce.
func (k *SpendingKey) NoteK(nonce fr.Element) fr.Element {
	return Hash(k.pk, k.rho, nonce)
}

// VoidNumber returns H(sk, rho, nonce), which is revealed when the note with
// the given nonce is spent.
func (k *SpendingKey) VoidNumber(nonce fr.Element) fr.Element {
	return Hash(k.sk, k.rho, nonce)
}

// encryptionKeys returns the X25519 key pair used to receive notes.
func (k *SpendingKey) encryptionKeys() (pub, priv [32]byte) {
	seed := Hash(k.sk, elementOf(encryptionDomain))
	priv = seed.Bytes()
	curve25519.ScalarBaseMult(&pub, &priv)
	return pub, priv
}

// Address returns the shielded address that receives notes for this key.
func (k *SpendingKey) Address() ShieldedAddress {
	pub, priv := k.encryptionKeys()
	zero.Bytea32(&priv)
	return ShieldedAddress{
		PublicKey:     DigestOf(&k.pk),
		Rho:           DigestOf(&k.rho),
		EncryptionKey: pub,
	}
}

// Zero clears the secret from memory.
func (k *SpendingKey) Zero() {
	k.sk.SetZero()
}
