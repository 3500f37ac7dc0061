package optimize

import (
	"math"
	"sort"
)

// Nelder-Mead coefficients.
const (
	dsReflect  = 1
	dsExpand   = 2
	dsContract = 0.5
	dsShrink   = 0.5
)

// DS is the downhill simplex method of Nelder and Mead. Points out of
// the bounds have zero likelihood. When the simplex converges it is
// rebuilt around the best vertex, and the run stops once a rebuilt
// simplex converges to the same value.
type DS struct {
	BaseOptimizer
	// Delta is the initial simplex edge length.
	Delta float64
	// FTol is the relative likelihood spread of a converged simplex.
	FTol float64

	vertices [][]float64
	ls       []float64
	order    []int
}

func NewDS() *DS {
	return &DS{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
		},
		Delta: 1,
		FTol:  1e-10,
	}
}

func (ds *DS) eval(x []float64) float64 {
	if !ds.parameters.ValuesInRange(x) {
		return math.Inf(-1)
	}
	if err := ds.parameters.SetValues(x); err != nil {
		return math.Inf(-1)
	}
	l := ds.likelihood(ds.Optimizable, ds.parameters)
	if math.IsNaN(l) {
		return math.Inf(-1)
	}
	return l
}

// build creates a simplex with x0 as the first vertex and one vertex
// moved along every parameter axis.
func (ds *DS) build(x0 []float64) {
	n := len(x0)
	start := append([]float64(nil), x0...)
	ds.vertices = make([][]float64, n+1)
	ds.ls = make([]float64, n+1)
	for i := range ds.vertices {
		v := append([]float64(nil), start...)
		if i > 0 {
			par := ds.parameters[i-1]
			switch {
			case par.ValueInRange(v[i-1] + ds.Delta):
				v[i-1] += ds.Delta
			case par.ValueInRange(v[i-1] - ds.Delta):
				v[i-1] -= ds.Delta
			default:
				v[i-1] = (par.GetMin() + par.GetMax()) / 2
			}
		}
		ds.vertices[i] = v
		ds.ls[i] = ds.eval(v)
	}
}

// sort orders vertex indices from the best to the worst.
func (ds *DS) sort() {
	if len(ds.order) != len(ds.vertices) {
		ds.order = make([]int, len(ds.vertices))
	}
	for i := range ds.order {
		ds.order[i] = i
	}
	sort.SliceStable(ds.order, func(a, b int) bool {
		return ds.ls[ds.order[a]] > ds.ls[ds.order[b]]
	})
}

// point returns c + t*(c - w).
func point(c, w []float64, t float64) []float64 {
	x := make([]float64, len(c))
	for j := range c {
		x[j] = c[j] + t*(c[j]-w[j])
	}
	return x
}

func (ds *DS) shrink(best int) {
	b := ds.vertices[best]
	for i, v := range ds.vertices {
		if i == best {
			continue
		}
		for j := range v {
			v[j] = b[j] + dsShrink*(v[j]-b[j])
		}
		ds.ls[i] = ds.eval(v)
	}
}

func (ds *DS) Run(iterations int) {
	ds.reset()
	x0 := ds.parameters.Values(nil)
	if len(x0) == 0 {
		ds.l = ds.likelihood(ds.Optimizable, ds.parameters)
		return
	}
	ds.PrintHeader(ds.parameters)
	ds.build(x0)

	n := len(x0)
	centroid := make([]float64, n)
	restarted := false
	prevBest := math.Inf(-1)
	for ds.i = 1; ds.i <= iterations; ds.i++ {
		ds.sort()
		best, second, worst := ds.order[0], ds.order[n-1], ds.order[n]
		lBest, lWorst := ds.ls[best], ds.ls[worst]
		ds.l = lBest
		if ds.repPeriod > 0 && ds.i%ds.repPeriod == 0 {
			ds.parameters.SetValues(ds.vertices[best])
			ds.PrintLine(ds.parameters, lBest)
		}

		if 2*math.Abs(lBest-lWorst) <= ds.FTol*(math.Abs(lBest)+math.Abs(lWorst)+1e-10) {
			if restarted && math.Abs(prevBest-lBest) < 1e-6 {
				break
			}
			restarted = true
			prevBest = lBest
			log.Debug("converged, rebuilding the simplex")
			ds.build(ds.vertices[best])
			continue
		}

		for j := range centroid {
			centroid[j] = 0
		}
		for _, i := range ds.order[:n] {
			for j, v := range ds.vertices[i] {
				centroid[j] += v / float64(n)
			}
		}

		w := ds.vertices[worst]
		xr := point(centroid, w, dsReflect)
		lr := ds.eval(xr)
		switch {
		case lr > lBest:
			xe := point(centroid, w, dsExpand)
			if le := ds.eval(xe); le > lr {
				ds.vertices[worst], ds.ls[worst] = xe, le
			} else {
				ds.vertices[worst], ds.ls[worst] = xr, lr
			}
		case lr > ds.ls[second]:
			ds.vertices[worst], ds.ls[worst] = xr, lr
		default:
			// outside contraction if the reflection improved on the
			// worst vertex, inside otherwise
			t := -dsContract
			if lr > lWorst {
				t = dsContract
			}
			xc := point(centroid, w, t)
			if lc := ds.eval(xc); lc > math.Max(lr, lWorst) {
				ds.vertices[worst], ds.ls[worst] = xc, lc
			} else {
				ds.shrink(best)
			}
		}
	}
	if ds.i > iterations {
		log.Debugf("Iterations exceeded (%d)", iterations)
	}

	log.Debug("Finished downhill simplex")
	ds.PrintFinal(ds.parameters)
}
