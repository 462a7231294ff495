// Package merkle builds the binary commitment tree over reward leaves.
// Nodes are lowercase hex digests; a parent is the digest of the two child
// hex strings concatenated. A level with an odd node count duplicates its
// last node. These rules, together with leaves sorted before tree
// construction, make the root reproducible by any verifier that holds the
// reward entries.
package merkle

import (
	"github.com/pkg/errors"

	"github.com/ai4all-network/coordinator/shared/hashutil"
)

// Positions a proof sibling can take relative to the node being proven.
const (
	PositionLeft  = "left"
	PositionRight = "right"
)

// ProofStep is one sibling hash on the path from a leaf to the root.
type ProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"`
}

// Tree holds every level of the commitment tree, leaves first.
type Tree struct {
	levels [][]string
}

// NewTree builds a tree from leaf hashes. The caller is responsible for
// ordering the leaves; the tree commits to them exactly as given.
func NewTree(leaves []string) *Tree {
	if len(leaves) == 0 {
		return &Tree{}
	}
	levels := make([][]string, 0, 8)
	level := make([]string, len(leaves))
	copy(level, leaves)
	levels = append(levels, level)
	for len(level) > 1 {
		next := make([]string, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, hashutil.HashHex([]byte(left+right)))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}
}

// Root returns the tree root. An empty tree commits to the digest of the
// empty string; a single-leaf tree's root is the leaf itself.
func (t *Tree) Root() string {
	if len(t.levels) == 0 {
		return hashutil.HashHex(nil)
	}
	top := t.levels[len(t.levels)-1]
	return top[0]
}

// LeafCount returns the number of leaves committed to.
func (t *Tree) LeafCount() int {
	if len(t.levels) == 0 {
		return 0
	}
	return len(t.levels[0])
}

// Leaf returns the leaf hash at index.
func (t *Tree) Leaf(index int) (string, error) {
	if len(t.levels) == 0 || index < 0 || index >= len(t.levels[0]) {
		return "", errors.Errorf("leaf index %d out of range [0, %d)", index, t.LeafCount())
	}
	return t.levels[0][index], nil
}

// Proof returns the sibling path for the leaf at index. Verifying the path
// against the root proves the leaf's membership.
func (t *Tree) Proof(index int) ([]ProofStep, error) {
	if len(t.levels) == 0 {
		return nil, errors.New("empty tree has no proofs")
	}
	if index < 0 || index >= len(t.levels[0]) {
		return nil, errors.Errorf("leaf index %d out of range [0, %d)", index, len(t.levels[0]))
	}
	proof := make([]ProofStep, 0, len(t.levels)-1)
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := index ^ 1
		step := ProofStep{Position: PositionRight}
		if sibling < index {
			step.Position = PositionLeft
		}
		if sibling < len(level) {
			step.Hash = level[sibling]
		} else {
			// Odd level count duplicates the last node.
			step.Hash = level[index]
		}
		proof = append(proof, step)
		index /= 2
	}
	return proof, nil
}

// VerifyProof recomputes the root from a leaf and its sibling path and
// reports whether it matches root.
func VerifyProof(leaf string, proof []ProofStep, root string) bool {
	node := leaf
	for _, step := range proof {
		switch step.Position {
		case PositionLeft:
			node = hashutil.HashHex([]byte(step.Hash + node))
		case PositionRight:
			node = hashutil.HashHex([]byte(node + step.Hash))
		default:
			return false
		}
	}
	return node == root
}
