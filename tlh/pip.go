package tlh

import (
	"math"

	"bitbucket.org/Davydov/jati/tree"
)

// pipSetup extends setup with the indel process quantities.
type pipSetup struct {
	*setup
	k int
	// insertion probability and survival factor per node
	iota, beta []float64
	// probability to survive along the node edge
	surv []float64
	// nu is the expected number of columns.
	nu float64
}

type pipWorkspace struct {
	ext [][]float64
	cnt []int
}

// PIPLogLikelihood returns the log-likelihood of the observed columns
// and the log-probability of the alignment length under the Poisson
// Indel Process (Bouchard-Côté and Jordan 2013). The root edge has
// length 1/mu.
func (c *Calculator) PIPLogLikelihood(t *tree.Tree, p Params) (columns, length float64) {
	s, ok := c.newPIPSetup(t, p)
	if !ok {
		return math.NaN(), math.NaN()
	}
	columns = forPatterns(c, s.newWorkspace, func(w *pipWorkspace, pat int) float64 {
		return math.Log(c.pipColumn(s, w, pat))
	})

	pEmpty := c.pipColumn(s, s.newWorkspace(), -1)
	m := float64(c.nCols)
	lgm, _ := math.Lgamma(m + 1)
	length = m*math.Log(s.nu) - lgm + (pEmpty-1)*s.nu
	return columns, length
}

func (c *Calculator) newPIPSetup(t *tree.Tree, p Params) (*pipSetup, bool) {
	s0, ok := c.newSetup(t, p)
	if !ok || p.Gap.Mode != PIP {
		return nil, false
	}
	s := &pipSetup{
		setup: s0,
		k:     c.k,
		iota:  make([]float64, len(s0.nodes)),
		beta:  make([]float64, len(s0.nodes)),
		surv:  make([]float64, len(s0.nodes)),
	}
	mu, lambda := p.Gap.Mu, p.Gap.Lambda
	z := t.TotalLength() + 1/mu
	s.nu = lambda * z
	for _, node := range s.nodes {
		if node.IsRoot() {
			s.iota[node.Id] = 1 / mu / z
			s.beta[node.Id] = 1
			continue
		}
		b := node.BranchLength
		s.iota[node.Id] = b / z
		s.surv[node.Id] = math.Exp(-mu * b)
		if x := mu * b; x > 0 {
			s.beta[node.Id] = -math.Expm1(-x) / x
		} else {
			s.beta[node.Id] = 1
		}
	}
	return s, true
}

func (s *pipSetup) newWorkspace() *pipWorkspace {
	w := &pipWorkspace{
		ext: make([][]float64, len(s.nodes)),
		cnt: make([]int, len(s.nodes)),
	}
	for i := range w.ext {
		w.ext[i] = make([]float64, s.k+1)
	}
	return w
}

// pipColumn returns the probability of the column pat, or of the
// all-gap column for pat < 0.
func (c *Calculator) pipColumn(s *pipSetup, w *pipWorkspace, pat int) float64 {
	k := c.k
	eps := k
	total := 0
	for _, node := range s.nodes {
		if row := s.rowOf[node.Id]; row >= 0 {
			v := w.ext[node.Id]
			if pat < 0 || c.gaps[row][pat] {
				for x := 0; x < k; x++ {
					v[x] = 0
				}
				v[eps] = 1
				w.cnt[node.Id] = 0
			} else {
				copy(v, c.tips[row][pat])
				v[eps] = 0
				w.cnt[node.Id] = 1
				total++
			}
		}
	}

	res := 0.0
	for cat, pm := range s.pm {
		for _, node := range s.order {
			v := w.ext[node.Id]
			for x := range v {
				v[x] = 1
			}
			w.cnt[node.Id] = 0
			for _, child := range node.ChildNodes() {
				cv := w.ext[child.Id]
				w.cnt[node.Id] += w.cnt[child.Id]
				pc := pm[child.Id]
				surv := s.surv[child.Id]
				death := 1 - surv
				for x := 0; x < k; x++ {
					sum := 0.0
					row := pc[x*k : x*k+k]
					for y, py := range row {
						sum += py * cv[y]
					}
					v[x] *= surv*sum + death*cv[eps]
				}
				v[eps] *= cv[eps]
			}
		}

		pc := 0.0
		for _, node := range s.nodes {
			if pat >= 0 && w.cnt[node.Id] != total {
				continue
			}
			v := w.ext[node.Id]
			f := 0.0
			for x, pi := range s.freqs {
				f += pi * v[x]
			}
			if pat < 0 {
				pc += s.iota[node.Id] * (1 - s.beta[node.Id] + s.beta[node.Id]*f)
			} else {
				pc += s.iota[node.Id] * s.beta[node.Id] * f
			}
		}
		res += s.weights[cat] * pc
	}
	return res
}
