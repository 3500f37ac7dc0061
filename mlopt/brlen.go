package mlopt

import (
	"fmt"
	"math"

	"bitbucket.org/Davydov/jati/optimize"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

// BranchOptimizer maximizes the likelihood over branch lengths one
// edge at a time.
type BranchOptimizer struct {
	eval     tlh.Evaluator
	settings *Settings
	brent    *optimize.Brent
}

// NewBranchOptimizer creates a branch length optimizer.
func NewBranchOptimizer(eval tlh.Evaluator, settings *Settings) *BranchOptimizer {
	return &BranchOptimizer{
		eval:     eval,
		settings: settings,
		brent:    optimize.NewBrent(),
	}
}

// Optimize updates branch lengths of t in place and returns the new
// log-likelihood. lnL is the log-likelihood of t. A length is only
// changed if it strictly improves the likelihood. Sweeps over the
// edges in id order are repeated until no length changes by
// BranchTolerance or more.
func (b *BranchOptimizer) Optimize(t *tree.Tree, p tlh.Params, lnL float64) (float64, error) {
	s := b.settings
	for sweep := 1; sweep <= s.MaxBranchSweeps; sweep++ {
		maxChange := 0.0
		for _, node := range t.Edges() {
			old := node.BranchLength
			f := func(x float64) float64 {
				node.BranchLength = x
				return b.eval.LogLikelihood(t, p)
			}
			x, fx, _ := b.brent.Maximize(f, s.MinBranchLength, s.MaxBranchLength, s.clampLength(old))
			if math.IsNaN(fx) {
				node.BranchLength = old
				return lnL, fmt.Errorf("%w: branch %d length %v", ErrNumericalInstability, node.Id, old)
			}
			if fx > lnL {
				node.BranchLength = x
				lnL = fx
				maxChange = math.Max(maxChange, math.Abs(x-old))
			} else {
				node.BranchLength = old
			}
		}
		log.Debugf("Branch length sweep %d: lnL=%f, max change=%g", sweep, lnL, maxChange)
		if maxChange < s.BranchTolerance {
			break
		}
	}
	return lnL, nil
}
