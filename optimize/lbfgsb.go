package optimize

import (
	"math"

	lbfgsb "github.com/idavydov/go-lbfgsb"
)

// boundMargin keeps L-BFGS-B away from the parameter bounds, where
// models are often undefined.
const boundMargin = 1e-5

// LBFGSB is the limited-memory BFGS optimizer with bound constraints.
// The gradient is computed by central differences on the optimizable
// itself, one-sided at the bounds.
type LBFGSB struct {
	BaseOptimizer
	// DH is the finite difference step.
	DH float64
	// Tol is used both for the function and the gradient tolerance.
	Tol  float64
	grad []float64
	x    []float64
}

func NewLBFGSB() *LBFGSB {
	return &LBFGSB{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
		DH:  1e-6,
		Tol: 1e-9,
	}
}

// Logger receives iteration reports from the minimizer.
func (l *LBFGSB) Logger(info *lbfgsb.OptimizationIterationInformation) {
	l.i = info.Iteration
	l.l = -info.F
	l.PrintLine(l.parameters, l.l)
}

// at returns the negative log-likelihood at x, +Inf outside the
// bounds or for undefined values.
func (l *LBFGSB) at(x []float64, track bool) float64 {
	if !l.parameters.ValuesInRange(x) {
		return math.Inf(1)
	}
	if err := l.parameters.SetValues(x); err != nil {
		return math.Inf(1)
	}
	var v float64
	if track {
		v = l.likelihood(l.Optimizable, l.parameters)
	} else {
		v = l.Optimizable.Likelihood()
		l.calls++
	}
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return -v
}

func (l *LBFGSB) EvaluateFunction(x []float64) float64 {
	return l.at(x, true)
}

func (l *LBFGSB) EvaluateGradient(x []float64) []float64 {
	if len(l.grad) != len(x) {
		l.grad = make([]float64, len(x))
		l.x = make([]float64, len(x))
	}
	copy(l.x, x)
	for i, par := range l.parameters {
		lo := math.Max(x[i]-l.DH, par.GetMin())
		hi := math.Min(x[i]+l.DH, par.GetMax())
		l.x[i] = lo
		f1 := l.at(l.x, false)
		l.x[i] = hi
		f2 := l.at(l.x, false)
		l.x[i] = x[i]

		g := (f2 - f1) / (hi - lo)
		if math.IsNaN(g) || math.IsInf(g, 0) {
			g = 0
		}
		l.grad[i] = g
	}
	// leave the optimizable at x
	l.parameters.SetValues(x)
	return l.grad
}

func (l *LBFGSB) Run(iterations int) {
	l.reset()
	l.PrintHeader(l.parameters)
	if len(l.parameters) == 0 {
		l.l = l.likelihood(l.Optimizable, l.parameters)
		return
	}

	bounds := make([][2]float64, len(l.parameters))
	start := l.parameters.Values(nil)
	for i, par := range l.parameters {
		bounds[i] = [2]float64{par.GetMin() + boundMargin, par.GetMax() - boundMargin}
		start[i] = math.Min(math.Max(start[i], bounds[i][0]), bounds[i][1])
	}
	l.l = -l.EvaluateFunction(start)

	opt := new(lbfgsb.Lbfgsb)
	opt.SetApproximationSize(10)
	opt.SetFTolerance(l.Tol)
	opt.SetGTolerance(l.Tol)
	opt.SetBounds(bounds)
	opt.SetLogger(l.Logger)

	_, exitStatus := opt.Minimize(l, start)
	log.Debugf("L-BFGS-B exit status: %v", exitStatus)
	l.PrintFinal(l.parameters)
}
