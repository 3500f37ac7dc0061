package tlh

import (
	"math"

	"bitbucket.org/Davydov/jati/tree"
)

// scaleThreshold triggers rescaling of partial likelihoods.
const scaleThreshold = 1e-100

type missingWorkspace struct {
	partial [][]float64
	catL    []float64
}

// missingLogLikelihood is Felsenstein's pruning with gaps and
// ambiguous characters as sets of compatible states.
func (c *Calculator) missingLogLikelihood(t *tree.Tree, p Params) float64 {
	s, ok := c.newSetup(t, p)
	if !ok {
		return math.NaN()
	}
	k := c.k
	newWorkspace := func() *missingWorkspace {
		w := &missingWorkspace{
			partial: make([][]float64, len(s.nodes)),
			catL:    make([]float64, len(s.pm)),
		}
		for i := range w.partial {
			w.partial[i] = make([]float64, k)
		}
		return w
	}
	return forPatterns(c, newWorkspace, func(w *missingWorkspace, pat int) float64 {
		for cat, pm := range s.pm {
			lnScale := 0.0
			for _, node := range s.order {
				v := w.partial[node.Id]
				for x := range v {
					v[x] = 1
				}
				for _, child := range node.ChildNodes() {
					var cv []float64
					if row := s.rowOf[child.Id]; row >= 0 {
						cv = c.tips[row][pat]
					} else {
						cv = w.partial[child.Id]
					}
					pc := pm[child.Id]
					for x := 0; x < k; x++ {
						sum := 0.0
						row := pc[x*k : x*k+k]
						for y, py := range row {
							sum += py * cv[y]
						}
						v[x] *= sum
					}
				}
				max := 0.0
				for _, x := range v {
					if x > max {
						max = x
					}
				}
				if max > 0 && max < scaleThreshold {
					for x := range v {
						v[x] /= max
					}
					lnScale += math.Log(max)
				}
			}
			root := w.partial[t.Node.Id]
			l := 0.0
			for x, f := range s.freqs {
				l += f * root[x]
			}
			w.catL[cat] = math.Log(l) + lnScale
		}
		return logSumExp(w.catL, s.weights)
	})
}
