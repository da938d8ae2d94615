package shielded

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// AddressSize is the size of a serialized shielded address.
const AddressSize = 2*DigestSize + 32

// notePlaintextSize is the size of the sealed (asset id, value, nonce)
// opening.
const notePlaintextSize = 4 + 8 + DigestSize

var (
	// ErrInvalidAddress is returned when a shielded address fails to
	// decode.
	ErrInvalidAddress = errors.New("invalid shielded address")

	// ErrNotReceiver is returned when a processed receiver was not sealed
	// to the key trying to open it.
	ErrNotReceiver = errors.New("receiver not addressed to key")
)

// ShieldedAddress lets a sender build a note that only the owner of the
// matching spending key can spend and decrypt.
type ShieldedAddress struct {
	PublicKey     Digest
	Rho           Digest
	EncryptionKey [32]byte
}

// DeriveShieldedAddressParams selects the key the address is derived from.
type DeriveShieldedAddressParams struct {
	AssetID AssetID `json:"asset_id"`
	KeyPath KeyPath `json:"keypath"`
}

// DeriveShieldedAddress returns the address of the keypath in params.
func DeriveShieldedAddress(seed []byte, params *DeriveShieldedAddressParams) (ShieldedAddress, error) {
	key, err := DeriveSpendingKey(seed, params.KeyPath)
	if err != nil {
		return ShieldedAddress{}, err
	}
	defer key.Zero()
	return key.Address(), nil
}

// Bytes returns pk || rho || encryption key.
func (a *ShieldedAddress) Bytes() []byte {
	b := make([]byte, 0, AddressSize)
	b = append(b, a.PublicKey[:]...)
	b = append(b, a.Rho[:]...)
	return append(b, a.EncryptionKey[:]...)
}

// String returns the base58 encoding of the address.
func (a ShieldedAddress) String() string {
	return base58.Encode(a.Bytes())
}

// ParseShieldedAddress decodes the base58 form of an address.
func ParseShieldedAddress(s string) (ShieldedAddress, error) {
	var a ShieldedAddress
	b := base58.Decode(s)
	if len(b) != AddressSize {
		return a, fmt.Errorf("%w: decoded %d bytes", ErrInvalidAddress, len(b))
	}
	var err error
	if a.PublicKey, err = digestFromBytes(b[:DigestSize]); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if a.Rho, err = digestFromBytes(b[DigestSize : 2*DigestSize]); err != nil {
		return a, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	copy(a.EncryptionKey[:], b[2*DigestSize:])
	if err := a.Validate(); err != nil {
		return ShieldedAddress{}, err
	}
	return a, nil
}

// lowOrderScalar multiplies the encryption key in Validate.  After clamping
// it is a multiple of the cofactor, so a low order key maps to zero.
var lowOrderScalar = [32]byte{1}

// Validate rejects the zero address and encryption keys of low order, which
// would let anyone open the notes sealed to them.
func (a *ShieldedAddress) Validate() error {
	if *a == (ShieldedAddress{}) {
		return fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}
	if a.PublicKey == (Digest{}) {
		return fmt.Errorf("%w: public key is zero", ErrInvalidAddress)
	}
	if _, err := curve25519.X25519(lowOrderScalar[:], a.EncryptionKey[:]); err != nil {
		return fmt.Errorf("%w: encryption key has low order", ErrInvalidAddress)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (a ShieldedAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ShieldedAddress) UnmarshalText(text []byte) error {
	addr, err := ParseShieldedAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr
	return nil
}

// NoteK returns the commitment trapdoor H(pk, rho, nonce) of the note with
// the given nonce sent to a.
func (a *ShieldedAddress) NoteK(nonce fr.Element) fr.Element {
	return Hash(a.PublicKey.Element(), a.Rho.Element(), nonce)
}

// NewNonce draws the random field element that makes a note unique among the
// notes sent to the same address.
func NewNonce(rand io.Reader) (fr.Element, error) {
	// Twice the field size keeps the reduction bias negligible.
	var buf [2 * DigestSize]byte
	if _, err := io.ReadFull(rand, buf[:]); err != nil {
		return fr.Element{}, fmt.Errorf("unable to draw note nonce: %w", err)
	}
	var nonce fr.Element
	nonce.SetBytes(buf[:])
	return nonce, nil
}

// ProcessedReceiver is a new note for an address: its public commitment and
// the (asset id, value, nonce) opening sealed to the address's encryption
// key.
type ProcessedReceiver struct {
	Commitment Digest `json:"commitment"`
	Ciphertext []byte `json:"ciphertext"`
}

// Process builds the note carrying value of assetID to a under a fresh
// nonce.
func (a *ShieldedAddress) Process(assetID AssetID, value uint64,
	rand io.Reader) (*ProcessedReceiver, error) {

	nonce, err := NewNonce(rand)
	if err != nil {
		return nil, err
	}
	return a.Seal(assetID, value, nonce, rand)
}

// Seal builds the note carrying value of assetID to a under nonce.
func (a *ShieldedAddress) Seal(assetID AssetID, value uint64, nonce fr.Element,
	rand io.Reader) (*ProcessedReceiver, error) {

	if err := a.Validate(); err != nil {
		return nil, err
	}

	var plaintext [notePlaintextSize]byte
	binary.BigEndian.PutUint32(plaintext[:4], uint32(assetID))
	binary.BigEndian.PutUint64(plaintext[4:12], value)
	nonceBytes := nonce.Bytes()
	copy(plaintext[12:], nonceBytes[:])

	ciphertext, err := box.SealAnonymous(nil, plaintext[:], &a.EncryptionKey, rand)
	if err != nil {
		return nil, fmt.Errorf("unable to seal note: %w", err)
	}

	cm := Commit(assetID, value, a.NoteK(nonce))
	return &ProcessedReceiver{
		Commitment: DigestOf(&cm),
		Ciphertext: ciphertext,
	}, nil
}

// OpenReceiver decrypts a note sent to key and checks that it opens the
// receiver's commitment.  The returned asset carries the note's nonce and
// void number.
func OpenReceiver(key *SpendingKey, pr *ProcessedReceiver) (*Asset, error) {
	pub, priv := key.encryptionKeys()
	defer zero.Bytea32(&priv)

	plaintext, ok := box.OpenAnonymous(nil, pr.Ciphertext, &pub, &priv)
	if !ok || len(plaintext) != notePlaintextSize {
		return nil, ErrNotReceiver
	}
	assetID := AssetID(binary.BigEndian.Uint32(plaintext[:4]))
	value := binary.BigEndian.Uint64(plaintext[4:12])
	nonce, err := digestFromBytes(plaintext[12:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotReceiver, err)
	}

	asset := NewAsset(key, assetID, value, nonce.Element())
	if subtle.ConstantTimeCompare(asset.Commitment[:], pr.Commitment[:]) != 1 {
		return nil, fmt.Errorf("%w: commitment mismatch", ErrNotReceiver)
	}
	return asset, nil
}
