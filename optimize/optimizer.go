// Package optimize implements numerical maximizers of likelihood
// functions over bounded real parameters.
package optimize

import (
	"math"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("optimize")

// Optimizable is a function to maximize. Copy must return an
// independent object with its own parameters.
type Optimizable interface {
	GetFloatParameters() FloatParameters
	Copy() Optimizable
	Likelihood() float64
}

// Optimizer maximizes an Optimizable. After Run the best point is
// available from GetMaxLParameters, parameters of the optimizable
// itself may be left at any evaluated point.
type Optimizer interface {
	SetOptimizable(Optimizable)
	Run(iterations int)
	GetL() float64
	GetMaxL() float64
	GetMaxLParameters() []float64
	GetCalls() int
}

// BaseOptimizer keeps the state shared by optimizers.
type BaseOptimizer struct {
	Optimizable
	parameters FloatParameters
	i          int
	l          float64
	maxL       float64
	maxLPar    []float64
	calls      int
	repPeriod  int
}

func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
}

// reset prepares for a new run.
func (o *BaseOptimizer) reset() {
	o.i = 0
	o.calls = 0
	o.l = math.Inf(-1)
	o.maxL = math.Inf(-1)
	o.maxLPar = nil
}

// likelihood computes the likelihood at the current parameter values
// and keeps track of the maximum.
func (o *BaseOptimizer) likelihood(opt Optimizable, pars FloatParameters) float64 {
	l := opt.Likelihood()
	o.calls++
	if l > o.maxL || o.maxLPar == nil && !math.IsNaN(l) {
		o.maxL = l
		o.maxLPar = pars.Values(o.maxLPar)
	}
	return l
}

func (o *BaseOptimizer) PrintHeader(par FloatParameters) {
	log.Debugf("iteration\tlikelihood\t%s", par.NamesString())
}

func (o *BaseOptimizer) PrintLine(par FloatParameters, l float64) {
	if o.repPeriod > 0 && o.i%o.repPeriod == 0 {
		log.Debugf("%d\t%f\t%s", o.i, l, par.ValuesString())
	}
}

func (o *BaseOptimizer) PrintFinal(par FloatParameters) {
	log.Infof("Maximum likelihood: %v (%d calls)", o.maxL, o.calls)
	names := par.Names(nil)
	for i, v := range o.maxLPar {
		log.Debugf("%s=%v", names[i], v)
	}
}

func (o *BaseOptimizer) GetL() float64 {
	return o.l
}

func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

func (o *BaseOptimizer) GetMaxLParameters() []float64 {
	return o.maxLPar
}

func (o *BaseOptimizer) GetCalls() int {
	return o.calls
}
