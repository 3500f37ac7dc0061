package optimize

import (
	"math"
)

const cgold = 0.3819660112501051

// Brent maximizes a function of one variable on a closed interval
// using golden section search with parabolic interpolation. The
// search starts from a given point, so the result is never worse
// than the starting value.
type Brent struct {
	// Tol is the relative tolerance on the argument.
	Tol float64
	// MaxIter limits the number of function evaluations after the
	// initial one.
	MaxIter int
}

// NewBrent creates a Brent optimizer with default settings.
func NewBrent() *Brent {
	return &Brent{
		Tol:     1e-6,
		MaxIter: 100,
	}
}

// Maximize maximizes f on [a, b] starting at x0. It returns the best
// argument, its value and the number of evaluations. If f(x0) is NaN,
// it is returned immediately. NaN at other points is treated as
// negative infinity.
func (br *Brent) Maximize(f func(float64) float64, a, b, x0 float64) (x, fx float64, calls int) {
	if a > b {
		a, b = b, a
	}
	x0 = math.Min(math.Max(x0, a), b)
	g := func(x float64) float64 {
		calls++
		v := -f(x)
		if math.IsNaN(v) && calls > 1 {
			return math.Inf(+1)
		}
		return v
	}
	x = x0
	gx := g(x)
	if math.IsNaN(gx) {
		return x, math.NaN(), calls
	}
	w, v := x, x
	gw, gv := gx, gx
	var d, e float64
	zeps := 1e-10 * math.Max(b-a, 1e-300)

	for iter := 0; iter < br.MaxIter; iter++ {
		xm := 0.5 * (a + b)
		tol1 := br.Tol*math.Abs(x) + zeps
		tol2 := 2 * tol1
		if math.Abs(x-xm) <= tol2-0.5*(b-a) {
			break
		}
		golden := true
		if math.Abs(e) > tol1 {
			r := (x - w) * (gx - gv)
			q := (x - v) * (gx - gw)
			p := (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			}
			q = math.Abs(q)
			etemp := e
			e = d
			if !(math.Abs(p) >= math.Abs(0.5*q*etemp) || p <= q*(a-x) || p >= q*(b-x)) {
				d = p / q
				u := x + d
				if u-a < tol2 || b-u < tol2 {
					d = math.Copysign(tol1, xm-x)
				}
				golden = false
			}
		}
		if golden {
			if x >= xm {
				e = a - x
			} else {
				e = b - x
			}
			d = cgold * e
		}
		var u float64
		if math.Abs(d) >= tol1 {
			u = x + d
		} else {
			u = x + math.Copysign(tol1, d)
		}
		u = math.Min(math.Max(u, a), b)
		gu := g(u)
		if gu < gx {
			if u >= x {
				a = x
			} else {
				b = x
			}
			v, w, x = w, x, u
			gv, gw, gx = gw, gx, gu
		} else {
			if u < x {
				a = u
			} else {
				b = u
			}
			if gu <= gw || w == x {
				v, w = w, u
				gv, gw = gw, gu
			} else if gu <= gv || v == x || v == w {
				v = u
				gv = gu
			}
		}
	}
	return x, -gx, calls
}
