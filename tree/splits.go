package tree

import (
	"sort"
	"strings"
)

// Splits returns the non-trivial bipartitions of the leaf set. Each
// split is keyed by the sorted names on the side not containing the
// alphabetically first leaf.
func (tree *Tree) Splits() map[string]bool {
	var names []string
	for leaf := range tree.Terminals() {
		names = append(names, leaf.Name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil
	}
	first := names[0]
	nLeaves := len(names)

	splits := make(map[string]bool)
	var collect func(*Node) []string
	collect = func(node *Node) []string {
		if node.IsTerminal() {
			return []string{node.Name}
		}
		var below []string
		for _, child := range node.childNodes {
			below = append(below, collect(child)...)
		}
		if !node.IsRoot() && len(below) > 1 && len(below) < nLeaves-1 {
			splits[splitKey(below, names, first)] = true
		}
		return below
	}
	collect(tree.Node)
	return splits
}

func splitKey(side, all []string, first string) string {
	in := make(map[string]bool, len(side))
	for _, n := range side {
		in[n] = true
	}
	var key []string
	if in[first] {
		for _, n := range all {
			if !in[n] {
				key = append(key, n)
			}
		}
	} else {
		key = append(key, side...)
		sort.Strings(key)
	}
	return strings.Join(key, ",")
}

// SameTopology returns true if two trees have the same unrooted
// topology.
func SameTopology(t1, t2 *Tree) bool {
	s1, s2 := t1.Splits(), t2.Splits()
	if len(s1) != len(s2) {
		return false
	}
	for s := range s1 {
		if !s2[s] {
			return false
		}
	}
	return true
}

// RFDistance returns the Robinson-Foulds distance, the number of
// splits present in only one of the trees.
func RFDistance(t1, t2 *Tree) int {
	s1, s2 := t1.Splits(), t2.Splits()
	d := 0
	for s := range s1 {
		if !s2[s] {
			d++
		}
	}
	for s := range s2 {
		if !s1[s] {
			d++
		}
	}
	return d
}
