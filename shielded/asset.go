package shielded

import (
	"crypto/rand"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// GenerateAssetParams selects the keypath that will own a new note of value
// units of AssetID.
type GenerateAssetParams struct {
	AssetID AssetID `json:"asset_id"`
	Value   uint64  `json:"value"`
	KeyPath KeyPath `json:"keypath"`
}

// Asset is the public view of a note owned by the signer.  The secret key
// never leaves the signer.
type Asset struct {
	AssetID    AssetID `json:"asset_id"`
	Value      uint64  `json:"value"`
	KeyPath    KeyPath `json:"keypath"`
	PublicKey  Digest  `json:"public_key"`
	Rho        Digest  `json:"rho"`
	Nonce      Digest  `json:"nonce"`
	K          Digest  `json:"k"`
	Commitment Digest  `json:"commitment"`
	VoidNumber Digest  `json:"void_number"`
}

// NewAsset returns the note of value units of assetID held by key under
// nonce.
func NewAsset(key *SpendingKey, assetID AssetID, value uint64, nonce fr.Element) *Asset {
	pk, rho, k := key.PublicKey(), key.Rho(), key.NoteK(nonce)
	cm := Commit(assetID, value, k)
	void := key.VoidNumber(nonce)
	return &Asset{
		AssetID:    assetID,
		Value:      value,
		KeyPath:    key.Path,
		PublicKey:  DigestOf(&pk),
		Rho:        DigestOf(&rho),
		Nonce:      DigestOf(&nonce),
		K:          DigestOf(&k),
		Commitment: DigestOf(&cm),
		VoidNumber: DigestOf(&void),
	}
}

// GenerateAsset derives the key of params.KeyPath from the root seed and
// returns a new note it holds under a fresh nonce.
func GenerateAsset(seed []byte, params *GenerateAssetParams) (*Asset, error) {
	key, err := DeriveSpendingKey(seed, params.KeyPath)
	if err != nil {
		return nil, err
	}
	defer key.Zero()

	nonce, err := NewNonce(rand.Reader)
	if err != nil {
		return nil, err
	}
	return NewAsset(key, params.AssetID, params.Value, nonce), nil
}
