package mlopt

import (
	"fmt"
	"math"

	"bitbucket.org/Davydov/jati/optimize"
	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

// Bounds of additive log-ratio frequency coordinates.
const (
	alrMin = -10
	alrMax = 10
)

// modelProblem is the likelihood as a function of the free model
// parameters on a fixed tree. Frequencies are represented by log
// ratios to the last frequency.
type modelProblem struct {
	eval tlh.Evaluator
	tree *tree.Tree
	base tlh.Params

	nRates   int
	estFreqs bool
	gamma    bool
	pip      bool

	x          []float64
	parameters optimize.FloatParameters
}

func newModelProblem(eval tlh.Evaluator, t *tree.Tree, p tlh.Params, estFreqs bool) *modelProblem {
	m := p.Model
	info := m.ID.Info()
	mp := &modelProblem{
		eval:     eval,
		tree:     t,
		base:     p,
		nRates:   m.ID.NFree(),
		estFreqs: estFreqs && !info.EqualFreqs,
		gamma:    m.NCat > 1,
		pip:      p.Gap.Mode == tlh.PIP,
	}
	x := make([]float64, 0, mp.nRates+len(m.Freqs)+3)
	x = append(x, m.Params[:mp.nRates]...)
	if mp.estFreqs {
		last := m.Freqs[len(m.Freqs)-1]
		for _, f := range m.Freqs[:len(m.Freqs)-1] {
			x = append(x, math.Log(f/last))
		}
	}
	if mp.gamma {
		x = append(x, m.Alpha)
	}
	if mp.pip {
		x = append(x, p.Gap.Lambda, p.Gap.Mu)
	}
	mp.setX(x)
	for i, par := range mp.parameters {
		v := par.Get()
		if !(v >= par.GetMin()) {
			v = par.GetMin()
		}
		if v > par.GetMax() {
			v = par.GetMax()
		}
		mp.x[i] = v
	}
	return mp
}

// setX creates parameters pointing to x.
func (mp *modelProblem) setX(x []float64) {
	mp.x = x
	mp.parameters = nil
	m := mp.base.Model
	i := 0
	add := func(name string, min, max float64) {
		mp.parameters.Append(optimize.NewBoundedFloatParameter(&mp.x[i], name, min, max))
		i++
	}
	for _, name := range m.ID.Info().ParamNames[:mp.nRates] {
		add(name, smodel.RateMin, smodel.RateMax)
	}
	if mp.estFreqs {
		states := m.ID.Alphabet().States()
		for j := 0; j < len(m.Freqs)-1; j++ {
			add("alr_"+states[j:j+1], alrMin, alrMax)
		}
	}
	if mp.gamma {
		add("gamma_alpha", smodel.AlphaMin, smodel.AlphaMax)
	}
	if mp.pip {
		add("lambda", tlh.LambdaMin, tlh.LambdaMax)
		add("mu", tlh.MuMin, tlh.MuMax)
	}
}

func (mp *modelProblem) GetFloatParameters() optimize.FloatParameters {
	return mp.parameters
}

func (mp *modelProblem) Copy() optimize.Optimizable {
	c := *mp
	c.setX(append([]float64(nil), mp.x...))
	return &c
}

// params converts x into model parameters.
func (mp *modelProblem) params(x []float64) tlh.Params {
	p := mp.base.Copy()
	m := p.Model
	i := copy(m.Params, x[:mp.nRates])
	if mp.estFreqs {
		k := len(m.Freqs)
		sum := 1.0
		m.Freqs[k-1] = 1
		for j := 0; j < k-1; j++ {
			m.Freqs[j] = math.Exp(x[i])
			sum += m.Freqs[j]
			i++
		}
		for j := range m.Freqs {
			m.Freqs[j] /= sum
		}
	}
	if mp.gamma {
		m.Alpha = x[i]
		i++
	}
	if mp.pip {
		p.Gap.Lambda = x[i]
		p.Gap.Mu = x[i+1]
	}
	return p
}

func (mp *modelProblem) Likelihood() float64 {
	return mp.eval.LogLikelihood(mp.tree, mp.params(mp.x))
}

// ModelOptimizer maximizes the likelihood over the model and gap
// parameters on a fixed tree.
type ModelOptimizer struct {
	eval     tlh.Evaluator
	settings *Settings
}

// NewModelOptimizer creates a model parameter optimizer.
func NewModelOptimizer(eval tlh.Evaluator, settings *Settings) *ModelOptimizer {
	return &ModelOptimizer{eval: eval, settings: settings}
}

func (mo *ModelOptimizer) optimizer() optimize.Optimizer {
	switch mo.settings.Method {
	case MethodSimplex:
		return optimize.NewDS()
	case MethodBFGS:
		return optimize.NewBFGS()
	case MethodNone:
		return optimize.NewNone()
	}
	return optimize.NewLBFGSB()
}

// NFree returns the number of parameters optimized for p.
func (mo *ModelOptimizer) NFree(t *tree.Tree, p tlh.Params) int {
	return len(newModelProblem(mo.eval, t, p, mo.settings.EstimateFreqs).parameters)
}

// Optimize returns optimized parameters and their log-likelihood. p
// is not modified. The result is never worse than the starting point,
// which is returned if the optimizer does not improve it.
func (mo *ModelOptimizer) Optimize(t *tree.Tree, p tlh.Params) (tlh.Params, float64, error) {
	start := mo.eval.LogLikelihood(t, p)
	mp := newModelProblem(mo.eval, t, p, mo.settings.EstimateFreqs)
	if len(mp.parameters) == 0 {
		if !finite(start) {
			return p, start, fmt.Errorf("%w: lnL=%v", ErrNumericalInstability, start)
		}
		return p, start, nil
	}

	opt := mo.optimizer()
	opt.SetOptimizable(mp)
	opt.Run(mo.settings.ModelIterations)

	maxL := opt.GetMaxL()
	best := opt.GetMaxLParameters()
	if !finite(maxL) || best == nil {
		if finite(start) {
			return p, start, nil
		}
		return p, start, fmt.Errorf("%w: no finite log-likelihood (start lnL=%v)", ErrNumericalInstability, start)
	}
	np := mp.params(best)
	l := mo.eval.LogLikelihood(t, np)
	if !finite(l) {
		return p, start, fmt.Errorf("%w: lnL=%v", ErrNumericalInstability, l)
	}
	if finite(start) && l < start {
		log.Debugf("Model optimization did not improve lnL (%f < %f)", l, start)
		return p, start, nil
	}
	log.Debugf("Model optimization: %f -> %f (%d calls)", start, l, opt.GetCalls())
	return np, l, nil
}
