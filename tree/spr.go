package tree

import (
	"errors"
	"fmt"
)

// ErrInvalidMove is returned for prune/regraft pairs which are not a
// valid rearrangement of the tree.
var ErrInvalidMove = errors.New("invalid SPR move")

// RegraftTargets returns, in ascending order, ids of the edges the
// subtree below edge prune can be moved to. Edges inside the pruned
// subtree, the edge above the prune point and the edges of the
// siblings are excluded since they give back the same topology.
func (tree *Tree) RegraftTargets(prune int) []int {
	nodes := tree.Nodes()
	if prune < 0 || prune >= len(nodes) || nodes[prune].IsRoot() {
		return nil
	}
	p := nodes[prune]
	q := p.Parent
	var targets []int
	for _, r := range nodes {
		if r.IsRoot() || r == q || r.Parent == q || r.IsDescendantOf(p) {
			continue
		}
		targets = append(targets, r.Id)
	}
	return targets
}

func (tree *Tree) validMove(prune, regraft int) bool {
	for _, id := range tree.RegraftTargets(prune) {
		if id == regraft {
			return true
		}
	}
	return false
}

// SPR detaches the subtree below edge prune and reattaches it in the
// middle of edge regraft. The node the subtree hung from is removed
// (its two remaining edges are merged) and reused as the new attach
// point, so node ids do not change. If the removed node is the root,
// its first internal remaining child becomes the new root. The
// pendant branch length of the moved subtree is kept.
func (tree *Tree) SPR(prune, regraft int) error {
	if !tree.validMove(prune, regraft) {
		return fmt.Errorf("%w: prune=%d regraft=%d", ErrInvalidMove, prune, regraft)
	}
	nodes := tree.Nodes()
	p := nodes[prune]
	r := nodes[regraft]
	q := p.Parent

	q.removeChild(p)
	if !q.IsRoot() {
		c := q.childNodes[0]
		c.BranchLength += q.BranchLength
		q.Parent.replaceChild(q, c)
	} else {
		var x, y *Node
		for i, child := range q.childNodes {
			if !child.IsTerminal() {
				x = child
				y = q.childNodes[1-i]
				break
			}
		}
		if x == nil {
			return fmt.Errorf("%w: no internal node to reroot at", ErrInvalidMove)
		}
		q.removeChild(x)
		q.removeChild(y)
		y.BranchLength += x.BranchLength
		x.BranchLength = 0
		x.AddChild(y)
		tree.Node = x
	}
	q.childNodes = q.childNodes[:0]
	q.Parent = nil

	// q becomes the new attach point in the middle of edge r.
	half := r.BranchLength / 2
	r.Parent.replaceChild(r, q)
	q.BranchLength = half
	r.BranchLength = half
	q.AddChild(r)
	q.AddChild(p)

	tree.ClearCache()
	if err := tree.Validate(); err != nil {
		return fmt.Errorf("after SPR prune=%d regraft=%d: %w", prune, regraft, err)
	}
	return nil
}
