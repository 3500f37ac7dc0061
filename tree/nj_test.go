package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// pathLengths returns leaf names and patristic distances.
func pathLengths(t *Tree) ([]string, *mat.SymDense) {
	var leaves []*Node
	for leaf := range t.Terminals() {
		leaves = append(leaves, leaf)
	}
	depth := func(n *Node) (path map[*Node]float64) {
		path = make(map[*Node]float64)
		d := 0.0
		for ; n != nil; n = n.Parent {
			path[n] = d
			d += n.BranchLength
		}
		return
	}
	names := make([]string, len(leaves))
	d := mat.NewSymDense(len(leaves), nil)
	for i, a := range leaves {
		names[i] = a.Name
		pa := depth(a)
		for j := i + 1; j < len(leaves); j++ {
			dist := 0.0
			for n := leaves[j]; n != nil; n = n.Parent {
				if da, ok := pa[n]; ok {
					dist += da
					break
				}
				dist += n.BranchLength
			}
			d.SetSym(i, j, dist)
		}
	}
	return names, d
}

func TestNeighborJoiningAdditive(tst *testing.T) {
	orig := parse(tst, "((a:1,b:2):1,c:3,((d:1,e:1.5):0.5,f:2):2);")
	names, d := pathLengths(orig)
	t, err := NeighborJoining(names, d)
	require.NoError(tst, err)
	require.NoError(tst, t.Validate())
	require.True(tst, SameTopology(orig, t), t.Newick(6))
	require.InDelta(tst, orig.TotalLength(), t.TotalLength(), 1e-9)

	names2, d2 := pathLengths(t)
	pos := make(map[string]int)
	for i, n := range names2 {
		pos[n] = i
	}
	for i := 0; i < len(names); i++ {
		for j := 0; j < len(names); j++ {
			require.InDelta(tst, d.At(i, j), d2.At(pos[names[i]], pos[names[j]]), 1e-9)
		}
	}
}

func TestNeighborJoiningSmall(tst *testing.T) {
	_, err := NeighborJoining([]string{"a", "b"}, mat.NewSymDense(2, nil))
	require.Error(tst, err)

	t, err := NeighborJoining([]string{"a", "b", "c"}, mat.NewSymDense(3, []float64{
		0, 3, 4,
		3, 0, 5,
		4, 5, 0,
	}))
	require.NoError(tst, err)
	require.Equal(tst, "(a:1,b:2,c:3);", t.Newick(-1))
}
