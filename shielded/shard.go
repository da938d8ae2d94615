package shielded

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// ShardDepth is the height of the Merkle tree over one ledger shard.
	ShardDepth = 8

	// ShardCapacity is the number of commitments a shard holds.
	ShardCapacity = 1 << ShardDepth
)

var (
	// ErrNotInShard is returned when a note's commitment is not among the
	// shard's leaves.
	ErrNotInShard = errors.New("commitment not found in shard")

	// ErrShardFull is returned for shards longer than ShardCapacity.
	ErrShardFull = errors.New("shard exceeds capacity")
)

// Shard is the ordered list of commitments of one ledger shard.  Missing
// leaves are zero.
type Shard []Digest

// SenderMetadata proves that a commitment is a member of a shard.
type SenderMetadata struct {
	Root  Digest             `json:"root"`
	Path  [ShardDepth]Digest `json:"path"`
	Index uint32             `json:"index"`
}

// levels returns every level of the tree, leaves first.
func (s Shard) levels() ([][]fr.Element, error) {
	if len(s) > ShardCapacity {
		return nil, fmt.Errorf("%w: %d commitments", ErrShardFull, len(s))
	}

	nodes := make([]fr.Element, ShardCapacity)
	for i := range s {
		nodes[i] = s[i].Element()
	}
	levels := [][]fr.Element{nodes}
	for d := ShardDepth; d > 0; d-- {
		next := make([]fr.Element, len(nodes)/2)
		for j := range next {
			next[j] = Hash(nodes[2*j], nodes[2*j+1])
		}
		levels = append(levels, next)
		nodes = next
	}
	return levels, nil
}

// Root returns the Merkle root of the shard.
func (s Shard) Root() (Digest, error) {
	levels, err := s.levels()
	if err != nil {
		return Digest{}, err
	}
	return DigestOf(&levels[ShardDepth][0]), nil
}

// BuildSenderMetadata locates the asset's commitment in the shard and returns
// its authentication path.
func BuildSenderMetadata(asset *Asset, shard Shard) (*SenderMetadata, error) {
	index := -1
	for i := range shard {
		if shard[i] == asset.Commitment {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %v", ErrNotInShard, asset.Commitment)
	}

	levels, err := shard.levels()
	if err != nil {
		return nil, err
	}

	meta := &SenderMetadata{
		Root:  DigestOf(&levels[ShardDepth][0]),
		Index: uint32(index),
	}
	for d := 0; d < ShardDepth; d++ {
		sibling := index ^ 1
		meta.Path[d] = DigestOf(&levels[d][sibling])
		index >>= 1
	}
	return meta, nil
}

// Verify recomputes the root from leaf and the path.
func (m *SenderMetadata) Verify(leaf Digest) bool {
	node := leaf.Element()
	index := m.Index
	for d := 0; d < ShardDepth; d++ {
		sibling := m.Path[d].Element()
		if index&1 == 0 {
			node = Hash(node, sibling)
		} else {
			node = Hash(sibling, node)
		}
		index >>= 1
	}
	return DigestOf(&node) == m.Root
}
