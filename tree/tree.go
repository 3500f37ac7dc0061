// Package tree implements unrooted binary phylogenetic trees: Newick
// input and output, traversal, topology validation and the subtree
// prune and regraft rearrangement.
//
// An unrooted tree is stored as a rooted structure whose root is an
// internal node with three children. Every non-root node carries the
// length of the edge leading to its parent, so edges are identified by
// the id of their child node.
package tree

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("tree")

// Tree is a phylogenetic tree. The embedded node is the root.
type Tree struct {
	*Node
	nNodes    int
	nodes     []*Node
	nodeOrder []*Node
}

// ClearCache drops cached node lists. It has to be called after
// any structural change.
func (tree *Tree) ClearCache() {
	tree.nNodes = 0
	tree.nodes = nil
	tree.nodeOrder = nil
}

// NNodes returns the number of nodes.
func (tree *Tree) NNodes() int {
	if tree.nNodes == 0 {
		tree.nNodes = tree.NSubNodes()
	}
	return tree.nNodes
}

// Nodes returns all the nodes indexed by their ids.
func (tree *Tree) Nodes() []*Node {
	if tree.nodes == nil {
		tree.nodes = make([]*Node, tree.NNodes())
		for node := range tree.Walker(nil) {
			tree.nodes[node.Id] = node
		}
	}
	return tree.nodes
}

// Edges returns all the non-root nodes in id order. Each of them
// stands for the edge connecting it to its parent.
func (tree *Tree) Edges() []*Node {
	edges := make([]*Node, 0, tree.NNodes()-1)
	for _, node := range tree.Nodes() {
		if !node.IsRoot() {
			edges = append(edges, node)
		}
	}
	return edges
}

// Terminals returns a channel with all the leaves in preorder.
func (tree *Tree) Terminals() <-chan *Node {
	return tree.Walker(func(node *Node) bool {
		return node.IsTerminal()
	})
}

// NonTerminals returns a channel with all the internal nodes in
// preorder.
func (tree *Tree) NonTerminals() <-chan *Node {
	return tree.Walker(func(node *Node) bool {
		return !node.IsTerminal()
	})
}

// NLeaves returns the number of leaves.
func (tree *Tree) NLeaves() (i int) {
	for range tree.Terminals() {
		i++
	}
	return
}

// Walker returns a channel with the nodes accepted by filter in
// preorder.
func (tree *Tree) Walker(filter func(*Node) bool) <-chan *Node {
	ch := make(chan *Node, tree.NNodes())
	tree.Walk(ch, filter)
	close(ch)
	return ch
}

// TotalLength returns the sum of all branch lengths.
func (tree *Tree) TotalLength() (l float64) {
	for _, node := range tree.Edges() {
		l += node.BranchLength
	}
	return
}

// Copy creates independent copy of the tree.
func (tree *Tree) Copy() (newTree *Tree) {
	nNodes := tree.NNodes()
	newTree = &Tree{
		nNodes: nNodes,
		nodes:  make([]*Node, nNodes),
	}

	for i, node := range tree.Nodes() {
		if i != node.Id {
			panic("node id mismatch")
		}
		newTree.nodes[i] = node.Copy()
	}

	// Rewire node/parent connections.
	for i, node := range tree.Nodes() {
		newNode := newTree.nodes[i]
		for _, child := range node.childNodes {
			newNode.AddChild(newTree.nodes[child.Id])
		}
	}

	newTree.Node = newTree.nodes[tree.Node.Id]
	return
}

// NodeOrder returns internal nodes in postorder, i.e. every node
// comes after all of its children.
func (tree *Tree) NodeOrder() []*Node {
	if tree.nodeOrder == nil {
		tree.nodeOrder = make([]*Node, 0, tree.NNodes())
		var visit func(*Node)
		visit = func(node *Node) {
			for _, child := range node.childNodes {
				visit(child)
			}
			if !node.IsTerminal() {
				tree.nodeOrder = append(tree.nodeOrder, node)
			}
		}
		visit(tree.Node)
	}
	return tree.nodeOrder
}

// Reindex assigns node ids in preorder starting from zero at the
// root and leaf ids in the order leaves are visited. Parsing the
// Newick representation of a reindexed tree gives the same ids.
func (tree *Tree) Reindex() {
	tree.ClearCache()
	id, leafId := 0, 0
	for node := range tree.Walker(nil) {
		node.Id = id
		id++
		if node.IsTerminal() {
			node.LeafId = leafId
			leafId++
		}
	}
	tree.ClearCache()
}

// Leaves returns a map from leaf names to leaf nodes.
func (tree *Tree) Leaves() map[string]*Node {
	leaves := make(map[string]*Node)
	for node := range tree.Terminals() {
		leaves[node.Name] = node
	}
	return leaves
}

// Newick returns the Newick representation of the tree. Branch
// lengths are formatted with prec significant digits, -1 gives the
// shortest exact representation.
func (tree *Tree) Newick(prec int) string {
	var b strings.Builder
	tree.Node.newick(&b, prec)
	b.WriteByte(';')
	return b.String()
}

// BrString returns the tree with every node labeled by its id.
func (tree *Tree) BrString() string {
	return tree.Node.StringBr() + ";"
}

// Node is a tree node.
type Node struct {
	Name         string
	BranchLength float64
	Parent       *Node
	childNodes   []*Node
	Id           int
	LeafId       int
}

// NewNode creates a new node.
func NewNode(parent *Node, nodeId int) (node *Node) {
	node = &Node{Parent: parent, Id: nodeId}
	return
}

// Copy creates copy of node with empty parent and children.
func (node *Node) Copy() *Node {
	return &Node{
		Name:         node.Name,
		BranchLength: node.BranchLength,
		childNodes:   make([]*Node, 0, len(node.childNodes)),
		Id:           node.Id,
		LeafId:       node.LeafId,
	}
}

// AddChild appends a child node.
func (node *Node) AddChild(subNode *Node) {
	subNode.Parent = node
	node.childNodes = append(node.childNodes, subNode)
}

// childIndex returns the position of a child or -1.
func (node *Node) childIndex(child *Node) int {
	for i, c := range node.childNodes {
		if c == child {
			return i
		}
	}
	return -1
}

// removeChild removes a child keeping the order of the others.
func (node *Node) removeChild(child *Node) bool {
	i := node.childIndex(child)
	if i < 0 {
		return false
	}
	node.childNodes = append(node.childNodes[:i], node.childNodes[i+1:]...)
	child.Parent = nil
	return true
}

// replaceChild puts newChild in place of oldChild.
func (node *Node) replaceChild(oldChild, newChild *Node) bool {
	i := node.childIndex(oldChild)
	if i < 0 {
		return false
	}
	node.childNodes[i] = newChild
	newChild.Parent = node
	oldChild.Parent = nil
	return true
}

// ChildNodes returns the children.
func (node *Node) ChildNodes() []*Node {
	return node.childNodes
}

// Siblings returns other children of the node parent.
func (node *Node) Siblings() (s []*Node) {
	if node.Parent == nil {
		return nil
	}
	for _, c := range node.Parent.childNodes {
		if c != node {
			s = append(s, c)
		}
	}
	return
}

// IsDescendantOf returns true if node is in the subtree of anc
// (including anc itself).
func (node *Node) IsDescendantOf(anc *Node) bool {
	for n := node; n != nil; n = n.Parent {
		if n == anc {
			return true
		}
	}
	return false
}

// Walk sends the subtree nodes accepted by filter to the channel in
// preorder.
func (node *Node) Walk(ch chan *Node, filter func(*Node) bool) {
	if filter == nil || filter(node) {
		ch <- node
	}
	for _, node := range node.childNodes {
		node.Walk(ch, filter)
	}
}

// NSubNodes returns the size of the subtree.
func (node *Node) NSubNodes() (size int) {
	for _, node := range node.childNodes {
		size += node.NSubNodes()
	}
	return size + 1
}

// IsRoot returns true for the root.
func (node *Node) IsRoot() bool {
	return node.Parent == nil
}

// IsTerminal returns true for leaves.
func (node *Node) IsTerminal() bool {
	return len(node.childNodes) == 0
}

// StringBr returns the subtree with nodes labeled by ids.
func (node *Node) StringBr() (s string) {
	if node.IsTerminal() {
		return fmt.Sprintf("%s#%d", node.Name, node.Id)
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.StringBr()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += fmt.Sprintf(")#%d", node.Id)
	return s
}

// String returns the subtree in Newick format with six decimal
// digits.
func (node *Node) String() (s string) {
	if node.IsTerminal() {
		return fmt.Sprintf("%s:%0.6f", node.Name, node.BranchLength)
	}
	s += "("
	for i, child := range node.childNodes {
		s += child.String()
		if i != len(node.childNodes)-1 {
			s += ","
		}
	}
	s += fmt.Sprintf("):%0.6f", node.BranchLength)
	if node.IsRoot() {
		s += ";"
	}
	return s
}

func (node *Node) newick(b *strings.Builder, prec int) {
	if !node.IsTerminal() {
		b.WriteByte('(')
		for i, child := range node.childNodes {
			if i > 0 {
				b.WriteByte(',')
			}
			child.newick(b, prec)
		}
		b.WriteByte(')')
	}
	b.WriteString(node.Name)
	if !node.IsRoot() {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(node.BranchLength, 'g', prec, 64))
	}
}

// LongString returns a description of a single node.
func (node *Node) LongString() (s string) {
	s = "<"
	if node.Parent == nil {
		s += "root, "
	}
	if node.Name != "" {
		s += "name=" + node.Name + ", "
	}
	s += fmt.Sprintf("Id=%v, BranchLength=%v", node.Id, node.BranchLength)
	if node.IsTerminal() {
		s += fmt.Sprintf(", TipId=%v", node.LeafId)
	}
	s += ">"
	return
}

// FullString returns the indented subtree description.
func (node *Node) FullString() string {
	return strings.TrimSpace(node.prefixString(""))
}

func (node *Node) prefixString(prefix string) (s string) {
	s = prefix + node.LongString() + "\n"
	for _, node := range node.childNodes {
		s += node.prefixString(prefix + "    ")
	}
	return
}
