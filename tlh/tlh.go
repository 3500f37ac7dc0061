// Package tlh computes tree log-likelihoods of sequence alignments
// under a substitution model, treating gaps either as missing data or
// with the Poisson Indel Process (PIP).
package tlh

import (
	"fmt"
	"math"
	"runtime"

	"github.com/op/go-logging"
	"github.com/sourcegraph/conc/pool"

	"bitbucket.org/Davydov/jati/bio"
	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tree"
)

var log = logging.MustGetLogger("tlh")

// Evaluator computes the log-likelihood of a tree and parameters. It
// must not modify its arguments and must be safe for concurrent use.
// Invalid input gives a non-finite value.
type Evaluator interface {
	LogLikelihood(t *tree.Tree, p Params) float64
}

// Calculator is the Evaluator for an alignment. Identical columns
// are evaluated once.
type Calculator struct {
	ali     *bio.Alignment
	k       int
	rows    map[string]int
	weights []float64
	// tips[row][pattern] is the indicator vector of compatible states.
	tips [][][]float64
	// gaps[row][pattern] is true for gap characters.
	gaps    [][]bool
	nCols   int
	workers int
}

// New creates a Calculator. Site patterns are split between up to
// workers goroutines, zero means GOMAXPROCS. All-gap columns are
// dropped.
func New(ali *bio.Alignment, workers int) (*Calculator, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	c := &Calculator{
		ali:     ali,
		k:       ali.Alphabet.Size(),
		rows:    make(map[string]int, ali.NSeq()),
		workers: workers,
		tips:    make([][][]float64, ali.NSeq()),
		gaps:    make([][]bool, ali.NSeq()),
	}
	for i, name := range ali.Names() {
		c.rows[name] = i
	}

	index := make(map[string]int)
	col := make([]byte, ali.NSeq())
	dropped := 0
	for s := 0; s < ali.Length(); s++ {
		allGap := true
		for i, seq := range ali.Seqs {
			col[i] = seq.Sequence[s]
			if !bio.IsGap(col[i]) {
				allGap = false
			}
		}
		if allGap {
			dropped++
			continue
		}
		c.nCols++
		if p, ok := index[string(col)]; ok {
			c.weights[p]++
			continue
		}
		index[string(col)] = len(c.weights)
		c.weights = append(c.weights, 1)
		for i := range col {
			vec, gap, err := ali.Alphabet.Encode(col[i], nil)
			if err != nil {
				return nil, err
			}
			c.tips[i] = append(c.tips[i], vec)
			c.gaps[i] = append(c.gaps[i], gap)
		}
	}
	if dropped > 0 {
		log.Warningf("Dropped %d all-gap columns", dropped)
	}
	if c.nCols == 0 {
		return nil, fmt.Errorf("%w: no columns", bio.ErrAlignment)
	}
	log.Infof("%d columns, %d site patterns", c.nCols, len(c.weights))
	return c, nil
}

// NPatterns returns the number of distinct columns.
func (c *Calculator) NPatterns() int {
	return len(c.weights)
}

// NColumns returns the number of columns used.
func (c *Calculator) NColumns() int {
	return c.nCols
}

// Check verifies that tree leaves and sequences match and the
// parameters fit the alignment.
func (c *Calculator) Check(t *tree.Tree, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if a := p.Model.ID.Alphabet(); a != c.ali.Alphabet {
		return fmt.Errorf("%w: model %s is for %s sequences, alignment is %s",
			smodel.ErrConfiguration, p.Model.ID, a, c.ali.Alphabet)
	}
	n := 0
	for leaf := range t.Terminals() {
		if _, ok := c.rows[leaf.Name]; !ok {
			return fmt.Errorf("%w: leaf %s not found in the alignment", smodel.ErrConfiguration, leaf.Name)
		}
		n++
	}
	if n != len(c.rows) {
		return fmt.Errorf("%w: tree has %d leaves, alignment has %d sequences",
			smodel.ErrConfiguration, n, len(c.rows))
	}
	return nil
}

// LogLikelihood returns the log-likelihood. For PIP it includes the
// alignment length term, so as λ and μ go to zero it tends to the
// missing data log-likelihood minus lgamma(m+1)+1 for m columns. The
// column term alone, returned by PIPLogLikelihood, tends to the
// missing data value.
func (c *Calculator) LogLikelihood(t *tree.Tree, p Params) float64 {
	if p.Gap.Mode == PIP {
		cols, length := c.PIPLogLikelihood(t, p)
		return cols + length
	}
	return c.missingLogLikelihood(t, p)
}

// setup is the per evaluation data shared by site computations.
type setup struct {
	nodes   []*tree.Node
	order   []*tree.Node
	rowOf   []int
	freqs   []float64
	weights []float64
	// pm[cat][node id] is the transition matrix of the node edge.
	pm [][][]float64
}

func (c *Calculator) newSetup(t *tree.Tree, p Params) (*setup, bool) {
	if p.Validate() != nil {
		return nil, false
	}
	e, err := p.Model.Decompose()
	if err != nil {
		log.Debugf("Decomposition error: %v", err)
		return nil, false
	}
	nodes := t.Nodes()
	s := &setup{
		nodes: nodes,
		order: t.NodeOrder(),
		rowOf: make([]int, len(nodes)),
		freqs: p.Model.Freqs,
	}
	for _, node := range nodes {
		s.rowOf[node.Id] = -1
		if node.IsTerminal() {
			row, ok := c.rows[node.Name]
			if !ok {
				return nil, false
			}
			s.rowOf[node.Id] = row
		}
	}
	rates, weights := p.Model.Rates()
	s.weights = weights
	s.pm = make([][][]float64, len(rates))
	for cat, r := range rates {
		s.pm[cat] = make([][]float64, len(nodes))
		for _, node := range nodes {
			if !node.IsRoot() {
				s.pm[cat][node.Id] = e.P(r*node.BranchLength, nil)
			}
		}
	}
	return s, true
}

// forPatterns computes f for every pattern and returns the weighted
// sum in pattern order. Each goroutine gets its own workspace.
func forPatterns[W any](c *Calculator, newWorkspace func() W, f func(w W, pat int) float64) float64 {
	n := len(c.weights)
	res := make([]float64, n)
	workers := c.workers
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		w := newWorkspace()
		for i := 0; i < n; i++ {
			res[i] = f(w, i)
		}
	} else {
		chunk := (n + workers - 1) / workers
		p := pool.New().WithMaxGoroutines(workers)
		for start := 0; start < n; start += chunk {
			start, end := start, start+chunk
			if end > n {
				end = n
			}
			p.Go(func() {
				w := newWorkspace()
				for i := start; i < end; i++ {
					res[i] = f(w, i)
				}
			})
		}
		p.Wait()
	}
	sum := 0.0
	for i, v := range res {
		sum += c.weights[i] * v
	}
	return sum
}

// logSumExp returns log(sum(w_i * exp(x_i))).
func logSumExp(x, w []float64) float64 {
	max := math.Inf(-1)
	for _, v := range x {
		if v > max {
			max = v
		}
	}
	if math.IsInf(max, -1) || math.IsNaN(max) {
		return max
	}
	s := 0.0
	for i, v := range x {
		s += w[i] * math.Exp(v-max)
	}
	return max + math.Log(s)
}
