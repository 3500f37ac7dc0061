package tree

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NeighborJoining builds an unrooted tree from a distance matrix
// (Saitou & Nei). Negative branch length estimates are set to zero.
// Ties are resolved in favour of the lowest indices.
func NeighborJoining(names []string, dm mat.Symmetric) (*Tree, error) {
	n := len(names)
	if n < 3 {
		return nil, errors.New("neighbor joining needs at least three sequences")
	}
	if dm.SymmetricDim() != n {
		return nil, errors.New("distance matrix size mismatch")
	}

	d := make([][]float64, n)
	active := make([]*Node, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			d[i][j] = dm.At(i, j)
		}
		active[i] = &Node{Name: names[i]}
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	for len(idx) > 3 {
		r := float64(len(idx))
		sums := make([]float64, len(idx))
		for a, i := range idx {
			for _, j := range idx {
				sums[a] += d[i][j]
			}
		}
		ba, bb := -1, -1
		best := math.Inf(1)
		for a := 0; a < len(idx); a++ {
			for b := a + 1; b < len(idx); b++ {
				q := (r-2)*d[idx[a]][idx[b]] - sums[a] - sums[b]
				if q < best {
					best, ba, bb = q, a, b
				}
			}
		}
		i, j := idx[ba], idx[bb]
		li := 0.5*d[i][j] + (sums[ba]-sums[bb])/(2*(r-2))
		lj := d[i][j] - li

		u := &Node{}
		active[i].BranchLength = math.Max(li, 0)
		active[j].BranchLength = math.Max(lj, 0)
		u.AddChild(active[i])
		u.AddChild(active[j])

		for _, k := range idx {
			if k == i || k == j {
				continue
			}
			dk := 0.5 * (d[i][k] + d[j][k] - d[i][j])
			d[i][k], d[k][i] = dk, dk
		}
		active[i] = u
		idx = append(idx[:bb], idx[bb+1:]...)
	}

	a, b, c := idx[0], idx[1], idx[2]
	root := &Node{}
	active[a].BranchLength = math.Max(0.5*(d[a][b]+d[a][c]-d[b][c]), 0)
	active[b].BranchLength = math.Max(0.5*(d[a][b]+d[b][c]-d[a][c]), 0)
	active[c].BranchLength = math.Max(0.5*(d[a][c]+d[b][c]-d[a][b]), 0)
	root.AddChild(active[a])
	root.AddChild(active[b])
	root.AddChild(active[c])

	t := &Tree{Node: root}
	t.Reindex()
	return t, nil
}
