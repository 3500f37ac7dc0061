package mlopt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"bitbucket.org/Davydov/jati/smodel"
	"bitbucket.org/Davydov/jati/tlh"
	"bitbucket.org/Davydov/jati/tree"
)

func TestModelOptimizer(tst *testing.T) {
	t := parseTree(tst, trueTree8)
	truth := hky(tst, 4, 4, 0.5)
	ali := simulate(tst, t, truth.Model, 1000, 2)
	c := newCalculator(tst, ali, 4)

	for _, method := range []string{MethodLBFGSB, MethodSimplex, MethodBFGS} {
		s := DefaultSettings()
		s.Method = method
		s.EstimateFreqs = true
		start := hky(tst, 1, 4, 1)
		startL := c.LogLikelihood(t, start)

		p, l, err := NewModelOptimizer(c, s).Optimize(t, start)
		require.NoError(tst, err, method)
		require.GreaterOrEqual(tst, l, startL, method)
		require.Equal(tst, l, c.LogLikelihood(t, p), method)
		require.Equal(tst, 1.0, p.Model.Params[1], method)
		if method != MethodBFGS {
			require.InDelta(tst, 4, p.Model.Params[0], 1.5, method)
			require.InDelta(tst, 0.5, p.Model.Alpha, 0.35, method)
		}
		sum := 0.0
		for _, f := range p.Model.Freqs {
			sum += f
		}
		require.InDelta(tst, 1, sum, 1e-12, method)
		// the starting parameters are not touched
		require.Equal(tst, 1.0, start.Model.Params[0], method)
		require.Equal(tst, 1.0, start.Model.Alpha, method)
	}
}

func TestModelOptimizerPIP(tst *testing.T) {
	t := parseTree(tst, trueTree8)
	ali := simulate(tst, t, jc(tst).Model, 200, 3)
	c := newCalculator(tst, ali, 1)
	p := jc(tst)
	p.Gap = tlh.Gap{Mode: tlh.PIP, Lambda: 1, Mu: 1}
	mo := NewModelOptimizer(c, DefaultSettings())
	require.Equal(tst, 2, mo.NFree(t, p))
	start := c.LogLikelihood(t, p)
	np, l, err := mo.Optimize(t, p)
	require.NoError(tst, err)
	require.Greater(tst, l, start)
	// no gaps favour a low deletion rate
	require.Less(tst, np.Gap.Mu, 1.0)
	require.Equal(tst, 1.0, p.Gap.Mu)
}

func TestModelOptimizerNoParameters(tst *testing.T) {
	t := parseTree(tst, "(a:0.1,b:0.2,c:0.3);")
	ali := simulate(tst, t, jc(tst).Model, 20, 4)
	c := newCalculator(tst, ali, 1)
	mo := NewModelOptimizer(c, DefaultSettings())
	p := jc(tst)
	require.Zero(tst, mo.NFree(t, p))
	np, l, err := mo.Optimize(t, p)
	require.NoError(tst, err)
	require.Same(tst, p.Model, np.Model)
	require.Equal(tst, c.LogLikelihood(t, p), l)

	m, err := smodel.New(smodel.K80, nil, nil)
	require.NoError(tst, err)
	s := DefaultSettings()
	s.EstimateFreqs = true
	// equal frequency models have only the rate ratio
	require.Equal(tst, 1, NewModelOptimizer(c, s).NFree(t, tlh.Params{Model: m}))
}

func TestModelOptimizerNaN(tst *testing.T) {
	t := parseTree(tst, "(a:0.1,b:0.2,c:0.3);")
	eval := evalFunc(func(*tree.Tree, tlh.Params) float64 { return math.NaN() })
	p := hky(tst, 2, 1, 1)
	np, _, err := NewModelOptimizer(eval, DefaultSettings()).Optimize(t, p)
	require.ErrorIs(tst, err, ErrNumericalInstability)
	require.Same(tst, p.Model, np.Model)
}
