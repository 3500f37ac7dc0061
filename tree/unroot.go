package tree

import "errors"

// IsRooted returns true if the root has two children.
func (tree *Tree) IsRooted() bool {
	return len(tree.childNodes) == 2
}

// Unroot removes a bifurcating root. The first internal child of the
// root is removed, its children take its place and its branch length
// is added to the other child of the root. Node ids are reassigned.
func (tree *Tree) Unroot() error {
	if !tree.IsRooted() {
		return errors.New("tree is not rooted")
	}
	root := tree.Node
	var x, y *Node
	for i, child := range root.childNodes {
		if !child.IsTerminal() {
			x = child
			y = root.childNodes[1-i]
			break
		}
	}
	if x == nil {
		return errors.New("cannot unroot a tree with two leaves")
	}

	children := make([]*Node, 0, len(x.childNodes)+1)
	for _, child := range root.childNodes {
		if child == x {
			for _, xc := range x.childNodes {
				xc.Parent = root
				children = append(children, xc)
			}
		} else {
			children = append(children, child)
		}
	}
	y.BranchLength += x.BranchLength
	root.childNodes = children
	x.Parent = nil
	x.childNodes = nil

	tree.Reindex()
	return nil
}
