package bio

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// MaxDistance is the distance used for saturated or incomparable
// sequence pairs.
const MaxDistance = 5.0

// Distances computes a symmetric matrix of corrected pairwise
// distances. Only columns where both sequences have an unambiguous
// state are compared. Nucleotide distances use the Jukes-Cantor
// correction, protein distances the Poisson correction.
func (ali *Alignment) Distances() *mat.SymDense {
	n := ali.NSeq()
	k := float64(ali.Alphabet.Size())
	b := (k - 1) / k

	states := make([][]int, n)
	for i, seq := range ali.Seqs {
		states[i] = make([]int, len(seq.Sequence))
		for j := 0; j < len(seq.Sequence); j++ {
			states[i][j] = ali.Alphabet.State(seq.Sequence[j])
		}
	}

	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var diff, total float64
			for s := range states[i] {
				x, y := states[i][s], states[j][s]
				if x < 0 || y < 0 {
					continue
				}
				total++
				if x != y {
					diff++
				}
			}
			dist := MaxDistance
			if total > 0 {
				p := diff / total
				if arg := 1 - p/b; arg > 0 {
					dist = math.Min(-b*math.Log(arg), MaxDistance)
				}
			}
			d.SetSym(i, j, dist)
		}
	}
	return d
}
