package tree

import (
	"errors"
	"fmt"
	"math"
)

// ErrMalformedTree is returned when a tree is not an unrooted binary
// tree with a trifurcating root.
var ErrMalformedTree = errors.New("malformed tree")

// Validate checks the binary tree invariants: the root has three
// children, other internal nodes have two, parent links are
// consistent, ids are 0..N-1, leaf names are unique, N = 2n-2 for n
// leaves and branch lengths are finite and non-negative.
func (tree *Tree) Validate() error {
	if tree == nil || tree.Node == nil {
		return fmt.Errorf("%w: no root", ErrMalformedTree)
	}
	root := tree.Node
	if root.Parent != nil {
		return fmt.Errorf("%w: root has a parent", ErrMalformedTree)
	}
	if len(root.childNodes) != 3 {
		return fmt.Errorf("%w: root has %d children", ErrMalformedTree, len(root.childNodes))
	}

	n := root.NSubNodes()
	seen := make([]bool, n)
	names := make(map[string]bool)
	nLeaves := 0

	var check func(*Node) error
	check = func(node *Node) error {
		if node.Id < 0 || node.Id >= n || seen[node.Id] {
			return fmt.Errorf("%w: bad or duplicate node id %d", ErrMalformedTree, node.Id)
		}
		seen[node.Id] = true
		if !node.IsRoot() {
			if node.Parent.childIndex(node) < 0 {
				return fmt.Errorf("%w: node %d is not a child of its parent", ErrMalformedTree, node.Id)
			}
			if math.IsNaN(node.BranchLength) || math.IsInf(node.BranchLength, 0) || node.BranchLength < 0 {
				return fmt.Errorf("%w: node %d has branch length %v", ErrMalformedTree, node.Id, node.BranchLength)
			}
			if !node.IsTerminal() && len(node.childNodes) != 2 {
				return fmt.Errorf("%w: node %d has %d children", ErrMalformedTree, node.Id, len(node.childNodes))
			}
		}
		if node.IsTerminal() {
			nLeaves++
			if node.Name == "" {
				return fmt.Errorf("%w: unnamed leaf %d", ErrMalformedTree, node.Id)
			}
			if names[node.Name] {
				return fmt.Errorf("%w: duplicate leaf %s", ErrMalformedTree, node.Name)
			}
			names[node.Name] = true
		}
		for _, child := range node.childNodes {
			if child.Parent != node {
				return fmt.Errorf("%w: broken parent link at node %d", ErrMalformedTree, child.Id)
			}
			if err := check(child); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(root); err != nil {
		return err
	}
	if n != 2*nLeaves-2 {
		return fmt.Errorf("%w: %d nodes for %d leaves", ErrMalformedTree, n, nLeaves)
	}
	return nil
}
