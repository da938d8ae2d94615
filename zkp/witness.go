package zkp

import (
	"math/big"

	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/frontend"
)

// spend is a note the signer is about to spend, with its membership proof.
type spend struct {
	key   *shielded.SpendingKey
	asset *shielded.Asset
	meta  *shielded.SenderMetadata
}

func newSpend(seed []byte, assetID shielded.AssetID, s *shielded.SenderParams) (*spend, error) {
	key, err := shielded.DeriveSpendingKey(seed, s.KeyPath)
	if err != nil {
		return nil, err
	}
	asset := shielded.NewAsset(key, assetID, s.Value, s.Nonce.Element())
	meta, err := shielded.BuildSenderMetadata(asset, s.Shard)
	if err != nil {
		key.Zero()
		return nil, err
	}
	return &spend{key: key, asset: asset, meta: meta}, nil
}

func (s *spend) zero() {
	s.key.Zero()
}

// assignment returns the private witness of the spend.
func (s *spend) assignment() InputNote {
	in := InputNote{
		SecretKey: bigOf(s.key.Secret()),
		Value:     new(big.Int).SetUint64(s.asset.Value),
		Nonce:     digestBig(s.asset.Nonce),
	}
	index := s.meta.Index
	for d := 0; d < shielded.ShardDepth; d++ {
		in.Path[d] = digestBig(s.meta.Path[d])
		in.PathBits[d] = uint64(index & 1)
		index >>= 1
	}
	return in
}

func bigOf(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}

func digestBig(d shielded.Digest) *big.Int {
	return new(big.Int).SetBytes(d[:])
}

func outputNote(value uint64, k fr.Element) OutputNote {
	return OutputNote{
		Value: new(big.Int).SetUint64(value),
		K:     bigOf(k),
	}
}

// emptyInputs fills the secret part of a public-only assignment.  gnark walks
// every field of the schema, so nil variables are replaced by zero.
func emptyInputs() [2]InputNote {
	var inputs [2]InputNote
	for i := range inputs {
		inputs[i] = emptyInput()
	}
	return inputs
}

func emptyInput() InputNote {
	in := InputNote{SecretKey: 0, Value: 0, Nonce: 0}
	for d := range in.Path {
		in.Path[d] = 0
		in.PathBits[d] = 0
	}
	return in
}

func emptyOutput() OutputNote {
	return OutputNote{Value: 0, K: 0}
}

var _ frontend.Circuit = (*TransferCircuit)(nil)
var _ frontend.Circuit = (*ReclaimCircuit)(nil)
