// Package zkp proves private transfers and reclaims with Groth16 over BN254
// and assembles the payloads the dApp submits to the ledger.
package zkp

import (
	"github.com/Manta-Network/manta-signer/shielded"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/consensys/gnark/std/rangecheck"
)

// ValueBits bounds every note value.
const ValueBits = 64

// InputNote is a note spent inside a circuit.  PathBits holds the leaf index,
// least significant bit first.
type InputNote struct {
	SecretKey frontend.Variable
	Value     frontend.Variable
	Nonce     frontend.Variable
	Path      [shielded.ShardDepth]frontend.Variable
	PathBits  [shielded.ShardDepth]frontend.Variable
}

// OutputNote is a note created inside a circuit.
type OutputNote struct {
	Value frontend.Variable
	K     frontend.Variable
}

// TransferCircuit spends two notes into two new notes of the same asset.
type TransferCircuit struct {
	AssetID     frontend.Variable    `gnark:",public"`
	Roots       [2]frontend.Variable `gnark:",public"`
	VoidNumbers [2]frontend.Variable `gnark:",public"`
	Commitments [2]frontend.Variable `gnark:",public"`

	Inputs  [2]InputNote
	Outputs [2]OutputNote
}

// Define declares the transfer constraints.
func (c *TransferCircuit) Define(api frontend.API) error {
	g, err := newNoteGadget(api)
	if err != nil {
		return err
	}

	for i := range c.Inputs {
		g.spend(c.AssetID, c.Roots[i], c.VoidNumbers[i], &c.Inputs[i])
	}
	api.AssertIsDifferent(c.VoidNumbers[0], c.VoidNumbers[1])
	for i := range c.Outputs {
		api.AssertIsEqual(g.commit(c.AssetID, &c.Outputs[i]), c.Commitments[i])
	}

	in := api.Add(c.Inputs[0].Value, c.Inputs[1].Value)
	out := api.Add(c.Outputs[0].Value, c.Outputs[1].Value)
	api.AssertIsEqual(in, out)
	return nil
}

// ReclaimCircuit spends two notes, keeps one change note and releases
// ReclaimValue to the public ledger.
type ReclaimCircuit struct {
	AssetID          frontend.Variable    `gnark:",public"`
	Roots            [2]frontend.Variable `gnark:",public"`
	VoidNumbers      [2]frontend.Variable `gnark:",public"`
	ChangeCommitment frontend.Variable    `gnark:",public"`
	ReclaimValue     frontend.Variable    `gnark:",public"`

	Inputs [2]InputNote
	Change OutputNote
}

// Define declares the reclaim constraints.
func (c *ReclaimCircuit) Define(api frontend.API) error {
	g, err := newNoteGadget(api)
	if err != nil {
		return err
	}

	for i := range c.Inputs {
		g.spend(c.AssetID, c.Roots[i], c.VoidNumbers[i], &c.Inputs[i])
	}
	api.AssertIsDifferent(c.VoidNumbers[0], c.VoidNumbers[1])
	api.AssertIsEqual(g.commit(c.AssetID, &c.Change), c.ChangeCommitment)
	g.ranger.Check(c.ReclaimValue, ValueBits)

	in := api.Add(c.Inputs[0].Value, c.Inputs[1].Value)
	out := api.Add(c.Change.Value, c.ReclaimValue)
	api.AssertIsEqual(in, out)
	return nil
}

// noteGadget holds the hasher and range checker shared by both circuits.
type noteGadget struct {
	api    frontend.API
	hasher mimc.MiMC
	ranger frontend.Rangechecker
}

func newNoteGadget(api frontend.API) (*noteGadget, error) {
	hasher, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	return &noteGadget{
		api:    api,
		hasher: hasher,
		ranger: rangecheck.New(api),
	}, nil
}

// hash mirrors shielded.Hash.
func (g *noteGadget) hash(vars ...frontend.Variable) frontend.Variable {
	g.hasher.Reset()
	g.hasher.Write(vars...)
	return g.hasher.Sum()
}

// spend proves knowledge of the secret key behind a note in the shard with
// the given root, and that void is the note's void number.
func (g *noteGadget) spend(assetID, root, void frontend.Variable, in *InputNote) {
	g.ranger.Check(in.Value, ValueBits)

	pk := g.hash(in.SecretKey)
	rho := g.hash(in.SecretKey, 1)
	g.api.AssertIsEqual(g.hash(in.SecretKey, rho, in.Nonce), void)

	k := g.hash(pk, rho, in.Nonce)
	node := g.hash(assetID, in.Value, k)
	for d := 0; d < shielded.ShardDepth; d++ {
		bit := in.PathBits[d]
		g.api.AssertIsBoolean(bit)
		left := g.api.Select(bit, in.Path[d], node)
		right := g.api.Select(bit, node, in.Path[d])
		node = g.hash(left, right)
	}
	g.api.AssertIsEqual(node, root)
}

// commit returns the commitment of a new note.
func (g *noteGadget) commit(assetID frontend.Variable, out *OutputNote) frontend.Variable {
	g.ranger.Check(out.Value, ValueBits)
	return g.hash(assetID, out.Value, out.K)
}
