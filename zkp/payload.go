package zkp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Manta-Network/manta-signer/shielded"
)

// MintData moves a public amount into a new shielded note.  The value is
// public, so the commitment opening is enough and no proof is attached.
type MintData struct {
	AssetID    shielded.AssetID `json:"asset_id"`
	Value      uint64           `json:"value"`
	Nonce      shielded.Digest  `json:"nonce"`
	Commitment shielded.Digest  `json:"commitment"`
	K          shielded.Digest  `json:"k"`
}

// GenerateMintData returns the mint payload of the note params describes.
func GenerateMintData(seed []byte, params *shielded.GenerateAssetParams) (*MintData, error) {
	asset, err := shielded.GenerateAsset(seed, params)
	if err != nil {
		return nil, err
	}
	return &MintData{
		AssetID:    asset.AssetID,
		Value:      asset.Value,
		Nonce:      asset.Nonce,
		Commitment: asset.Commitment,
		K:          asset.K,
	}, nil
}

// PrivateTransferData is one proven private transfer.
type PrivateTransferData struct {
	AssetID     shielded.AssetID              `json:"asset_id"`
	Roots       [2]shielded.Digest            `json:"roots"`
	VoidNumbers [2]shielded.Digest            `json:"void_numbers"`
	Receivers   [2]shielded.ProcessedReceiver `json:"receivers"`
	Proof       []byte                        `json:"proof"`
}

// PublicAssignment returns the public witness the proof is checked against.
func (d *PrivateTransferData) PublicAssignment() *TransferCircuit {
	c := &TransferCircuit{
		AssetID: uint64(d.AssetID),
		Inputs:  emptyInputs(),
		Outputs: [2]OutputNote{emptyOutput(), emptyOutput()},
	}
	for i := 0; i < 2; i++ {
		c.Roots[i] = digestBig(d.Roots[i])
		c.VoidNumbers[i] = digestBig(d.VoidNumbers[i])
		c.Commitments[i] = digestBig(d.Receivers[i].Commitment)
	}
	return c
}

// ReclaimData is one proven reclaim.
type ReclaimData struct {
	AssetID        shielded.AssetID           `json:"asset_id"`
	Roots          [2]shielded.Digest         `json:"roots"`
	VoidNumbers    [2]shielded.Digest         `json:"void_numbers"`
	ChangeReceiver shielded.ProcessedReceiver `json:"change_receiver"`
	ReclaimValue   uint64                     `json:"reclaim_value"`
	Proof          []byte                     `json:"proof"`
}

// PublicAssignment returns the public witness the proof is checked against.
func (d *ReclaimData) PublicAssignment() *ReclaimCircuit {
	c := &ReclaimCircuit{
		AssetID:          uint64(d.AssetID),
		ChangeCommitment: digestBig(d.ChangeReceiver.Commitment),
		ReclaimValue:     new(big.Int).SetUint64(d.ReclaimValue),
		Inputs:           emptyInputs(),
		Change:           emptyOutput(),
	}
	for i := 0; i < 2; i++ {
		c.Roots[i] = digestBig(d.Roots[i])
		c.VoidNumbers[i] = digestBig(d.VoidNumbers[i])
	}
	return c
}

// spendPair builds both spends or neither.
func spendPair(seed []byte, assetID shielded.AssetID,
	s1, s2 *shielded.SenderParams) ([2]*spend, error) {

	var spends [2]*spend
	first, err := newSpend(seed, assetID, s1)
	if err != nil {
		return spends, fmt.Errorf("sender 1: %w", err)
	}
	second, err := newSpend(seed, assetID, s2)
	if err != nil {
		first.zero()
		return spends, fmt.Errorf("sender 2: %w", err)
	}
	spends[0], spends[1] = first, second
	return spends, nil
}

func ownAddress(seed []byte, path shielded.KeyPath) (shielded.ShieldedAddress, error) {
	return shielded.DeriveShieldedAddress(seed, &shielded.DeriveShieldedAddressParams{
		KeyPath: path,
	})
}

// GeneratePrivateTransferData proves one private transfer.  The non change
// output pays receiving when it is set and the signer's own
// NonChangeOutputKeyPath otherwise.
func GeneratePrivateTransferData(e *Engine, seed []byte, assetID shielded.AssetID,
	params *shielded.GeneratePrivateTransferParams,
	receiving *shielded.ShieldedAddress) (*PrivateTransferData, error) {

	data, assignment, err := buildPrivateTransfer(seed, assetID, params, receiving)
	if err != nil {
		return nil, err
	}
	data.Proof, err = e.prove(Transfer, assignment)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// buildPrivateTransfer returns the unproven payload and its full witness.
func buildPrivateTransfer(seed []byte, assetID shielded.AssetID,
	params *shielded.GeneratePrivateTransferParams,
	receiving *shielded.ShieldedAddress) (*PrivateTransferData, *TransferCircuit, error) {

	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	var nonChange shielded.ShieldedAddress
	switch {
	case receiving != nil:
		nonChange = *receiving
	case params.NonChangeOutputKeyPath != nil:
		addr, err := ownAddress(seed, *params.NonChangeOutputKeyPath)
		if err != nil {
			return nil, nil, err
		}
		nonChange = addr
	default:
		return nil, nil, fmt.Errorf("%w: no address for the non change output",
			shielded.ErrInvalidParams)
	}
	change, err := ownAddress(seed, params.ChangeOutputKeyPath)
	if err != nil {
		return nil, nil, err
	}

	spends, err := spendPair(seed, assetID, &params.Sender1, &params.Sender2)
	if err != nil {
		return nil, nil, err
	}
	defer spends[0].zero()
	defer spends[1].zero()

	outputs := []struct {
		addr  *shielded.ShieldedAddress
		value uint64
	}{
		{&nonChange, params.NonChangeOutputValue},
		{&change, params.ChangeOutputValue},
	}

	data := &PrivateTransferData{AssetID: assetID}
	assignment := &TransferCircuit{AssetID: uint64(assetID)}
	for i, s := range spends {
		data.Roots[i] = s.meta.Root
		data.VoidNumbers[i] = s.asset.VoidNumber
		assignment.Inputs[i] = s.assignment()
	}
	for i, out := range outputs {
		nonce, err := shielded.NewNonce(rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		pr, err := out.addr.Seal(assetID, out.value, nonce, rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		data.Receivers[i] = *pr
		assignment.Outputs[i] = outputNote(out.value, out.addr.NoteK(nonce))
	}
	public := data.PublicAssignment()
	assignment.Roots = public.Roots
	assignment.VoidNumbers = public.VoidNumbers
	assignment.Commitments = public.Commitments

	return data, assignment, nil
}

// GenerateReclaimData proves one reclaim.  The change, inputs minus the
// reclaimed value, goes to the signer's ChangeKeyPath.
func GenerateReclaimData(e *Engine, seed []byte,
	params *shielded.GenerateReclaimParams) (*ReclaimData, error) {

	data, assignment, err := buildReclaim(seed, params)
	if err != nil {
		return nil, err
	}
	data.Proof, err = e.prove(Reclaim, assignment)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// buildReclaim returns the unproven payload and its full witness.
func buildReclaim(seed []byte,
	params *shielded.GenerateReclaimParams) (*ReclaimData, *ReclaimCircuit, error) {

	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	change, err := ownAddress(seed, params.ChangeKeyPath)
	if err != nil {
		return nil, nil, err
	}

	spends, err := spendPair(seed, params.AssetID, &params.Input1, &params.Input2)
	if err != nil {
		return nil, nil, err
	}
	defer spends[0].zero()
	defer spends[1].zero()

	changeValue := params.ChangeValue()
	nonce, err := shielded.NewNonce(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	pr, err := change.Seal(params.AssetID, changeValue, nonce, rand.Reader)
	if err != nil {
		return nil, nil, err
	}

	data := &ReclaimData{
		AssetID:        params.AssetID,
		ChangeReceiver: *pr,
		ReclaimValue:   params.ReclaimValue,
	}
	assignment := &ReclaimCircuit{
		AssetID:      uint64(params.AssetID),
		ReclaimValue: new(big.Int).SetUint64(params.ReclaimValue),
		Change:       outputNote(changeValue, change.NoteK(nonce)),
	}
	for i, s := range spends {
		data.Roots[i] = s.meta.Root
		data.VoidNumbers[i] = s.asset.VoidNumber
		assignment.Inputs[i] = s.assignment()
	}
	public := data.PublicAssignment()
	assignment.Roots = public.Roots
	assignment.VoidNumbers = public.VoidNumbers
	assignment.ChangeCommitment = public.ChangeCommitment

	return data, assignment, nil
}
