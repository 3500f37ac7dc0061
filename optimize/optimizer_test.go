package optimize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// quadratic has its maximum at (1, -2) within bounds.
type quadratic struct {
	x          []float64
	parameters FloatParameters
}

func newQuadratic(x0, x1 float64) *quadratic {
	q := &quadratic{x: []float64{x0, x1}}
	q.parameters.Append(NewBoundedFloatParameter(&q.x[0], "x0", -5, 5))
	q.parameters.Append(NewBoundedFloatParameter(&q.x[1], "x1", -5, 5))
	return q
}

func (q *quadratic) GetFloatParameters() FloatParameters {
	return q.parameters
}

func (q *quadratic) Copy() Optimizable {
	return newQuadratic(q.x[0], q.x[1])
}

func (q *quadratic) Likelihood() float64 {
	a, b := q.x[0]-1, q.x[1]+2
	return -a*a - 3*b*b - a*b
}

func TestOptimizers(tst *testing.T) {
	for name, opt := range map[string]Optimizer{
		"lbfgsb":  NewLBFGSB(),
		"simplex": NewDS(),
		"bfgs":    NewBFGS(),
	} {
		q := newQuadratic(3, 3)
		opt.SetOptimizable(q)
		opt.Run(1000)
		require.InDelta(tst, 0, opt.GetMaxL(), 1e-4, name)
		x := opt.GetMaxLParameters()
		require.Len(tst, x, 2, name)
		require.InDelta(tst, 1, x[0], 1e-2, name)
		require.InDelta(tst, -2, x[1], 1e-2, name)
		require.Greater(tst, opt.GetCalls(), 1, name)
	}
}

func TestNone(tst *testing.T) {
	q := newQuadratic(1, 0)
	n := NewNone()
	n.SetOptimizable(q)
	n.Run(10)
	require.Equal(tst, -12.0, n.GetMaxL())
	require.Equal(tst, []float64{1, 0}, n.GetMaxLParameters())
	require.Equal(tst, 1, n.GetCalls())
}

func TestNoParameters(tst *testing.T) {
	q := newQuadratic(1, -2)
	q.parameters = nil
	for _, opt := range []Optimizer{NewLBFGSB(), NewDS(), NewBFGS()} {
		opt.SetOptimizable(q)
		opt.Run(10)
		require.Equal(tst, 0.0, opt.GetMaxL())
		require.False(tst, math.IsInf(opt.GetL(), 0))
	}
}
