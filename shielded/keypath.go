package shielded

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Manta-Network/manta-signer/internal/zero"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// PurposeIndex and CoinType are the fixed hardened levels of every
	// Manta keypath.
	PurposeIndex = 44
	CoinType     = 611

	// ChangeExternal and ChangeInternal are the two change levels scanned
	// during account recovery.
	ChangeExternal = 0
	ChangeInternal = 1
)

// ErrInvalidKeyPath is returned for keypath strings that do not parse.
var ErrInvalidKeyPath = errors.New("invalid keypath")

// KeyPath is a BIP0032 derivation path.  Hardened levels carry
// hdkeychain.HardenedKeyStart.
type KeyPath []uint32

// NewKeyPath returns m/44'/611'/account'/change/index.
func NewKeyPath(account, change, index uint32) KeyPath {
	return KeyPath{
		hdkeychain.HardenedKeyStart + PurposeIndex,
		hdkeychain.HardenedKeyStart + CoinType,
		hdkeychain.HardenedKeyStart + account,
		change,
		index,
	}
}

// ParseKeyPath parses a path such as m/44'/611'/0'/0/3.  Either ' or h marks
// a hardened level.
func ParseKeyPath(s string) (KeyPath, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if parts[0] != "m" {
		return nil, fmt.Errorf("%w %q: must start with m", ErrInvalidKeyPath, s)
	}

	path := make(KeyPath, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h")
		if hardened {
			part = part[:len(part)-1]
		}
		idx, err := strconv.ParseUint(part, 10, 32)
		if err != nil || idx >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w %q: bad index %q", ErrInvalidKeyPath, s, part)
		}
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		path = append(path, uint32(idx))
	}
	return path, nil
}

// String renders the path with ' for hardened levels.
func (p KeyPath) String() string {
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range p {
		b.WriteByte('/')
		if idx >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(uint64(idx-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
			continue
		}
		b.WriteString(strconv.FormatUint(uint64(idx), 10))
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (p KeyPath) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *KeyPath) UnmarshalText(text []byte) error {
	path, err := ParseKeyPath(string(text))
	if err != nil {
		return err
	}
	*p = path
	return nil
}

// DeriveSecretKey walks the path from the root seed and reduces the resulting
// secp256k1 private key into the BN254 scalar field.
func DeriveSecretKey(seed []byte, path KeyPath) (fr.Element, error) {
	var sk fr.Element

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return sk, fmt.Errorf("unable to create master key: %w", err)
	}
	for _, idx := range path {
		key, err = key.Derive(idx)
		if err != nil {
			return sk, fmt.Errorf("unable to derive %v: %w", path, err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return sk, fmt.Errorf("unable to derive %v: %w", path, err)
	}
	privBytes := priv.Serialize()
	sk.SetBytes(privBytes)
	zero.Bytes(privBytes)
	priv.Zero()
	return sk, nil
}
