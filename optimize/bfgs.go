package optimize

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

// BFGS is the gonum BFGS optimizer with a forward-difference
// gradient. Points outside of the bounds have zero likelihood.
type BFGS struct {
	BaseOptimizer
	dH float64
}

func NewBFGS() (b *BFGS) {
	b = &BFGS{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
		dH: 1e-6,
	}
	return
}

func (b *BFGS) Init() error {
	return nil
}

func (b *BFGS) Record(loc *optimize.Location, op optimize.Operation, s *optimize.Stats) error {
	if op == optimize.MajorIteration {
		b.i = s.MajorIterations
		b.l = -loc.F
		b.PrintLine(b.parameters, -loc.F)
	}
	return nil
}

func (b *BFGS) Func(x []float64) float64 {
	if !b.parameters.ValuesInRange(x) {
		return math.Inf(+1)
	}
	b.parameters.SetValues(x)
	l := b.likelihood(b.Optimizable, b.parameters)
	if math.IsNaN(l) {
		return math.Inf(+1)
	}
	return -l
}

func (b *BFGS) Grad(grad, x []float64) {
	if !b.parameters.ValuesInRange(x) {
		for i, par := range b.parameters {
			switch {
			case par.ValueInRange(x[i]):
				grad[i] = 0
			case x[i] < par.GetMin():
				grad[i] = math.Inf(-1)
			default:
				grad[i] = math.Inf(+1)
			}
		}
		return
	}
	no1 := b.Optimizable.Copy()
	par1 := no1.GetFloatParameters()
	par1.SetValues(x)
	l1 := -no1.Likelihood()
	b.calls++
	for i := range x {
		no2 := no1.Copy()
		par2 := no2.GetFloatParameters()
		h := b.dH
		if !par2[i].ValueInRange(x[i] + h) {
			h = -h
		}
		par2[i].Set(x[i] + h)
		l2 := -no2.Likelihood()
		b.calls++
		grad[i] = (l2 - l1) / h
		if math.IsNaN(grad[i]) {
			grad[i] = 0
		}
	}
}

func (b *BFGS) Run(iterations int) {
	b.reset()
	b.PrintHeader(b.parameters)
	start := b.parameters.Values(nil)
	b.l = -b.Func(start)
	if len(b.parameters) == 0 {
		return
	}

	settings := &optimize.Settings{
		MajorIterations:   iterations,
		GradientThreshold: 1e-3,
		Recorder:          b,
	}
	problem := optimize.Problem{
		Func: b.Func,
		Grad: b.Grad,
	}

	_, err := optimize.Minimize(problem, start, settings, &optimize.BFGS{})
	if err != nil {
		log.Debugf("Optimization error: %v", err)
	}

	log.Debug("Finished BFGS")
	b.PrintFinal(b.parameters)
}
