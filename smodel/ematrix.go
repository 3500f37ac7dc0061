package smodel

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// minFreq replaces zero frequencies in the decomposition.
const minFreq = 1e-12

// EMatrix is an eigen-decomposed reversible rate matrix. P(t) is
// computed as D^-1/2 U exp(Λt) U^T D^1/2, where D is the diagonal of
// stationary frequencies and U Λ U^T is the decomposition of the
// symmetrized rate matrix.
type EMatrix struct {
	k     int
	vals  []float64
	left  []float64
	right []float64
	expv  []float64
}

// NewEMatrix decomposes the rate matrix defined by symmetric
// exchangeabilities s (row-major, k×k) and frequencies pi. The rate
// matrix is normalized to one expected substitution per unit time.
func NewEMatrix(s, pi []float64) (*EMatrix, error) {
	k := len(pi)
	if len(s) != k*k {
		return nil, errors.New("exchangeability matrix size mismatch")
	}
	p := make([]float64, k)
	sq := make([]float64, k)
	for i, f := range pi {
		p[i] = math.Max(f, minFreq)
		sq[i] = math.Sqrt(p[i])
	}

	diag := make([]float64, k)
	scale := 0.0
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if i != j {
				diag[i] -= s[i*k+j] * p[j]
			}
		}
		scale -= p[i] * diag[i]
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, errors.New("degenerate rate matrix")
	}

	b := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		b.SetSym(i, i, diag[i]/scale)
		for j := i + 1; j < k; j++ {
			b.SetSym(i, j, sq[i]*sq[j]*s[i*k+j]/scale)
		}
	}

	var es mat.EigenSym
	if ok := es.Factorize(b, true); !ok {
		return nil, errors.New("eigen decomposition failed")
	}
	vals := es.Values(nil)
	var u mat.Dense
	es.VectorsTo(&u)

	e := &EMatrix{
		k:     k,
		vals:  vals,
		left:  make([]float64, k*k),
		right: make([]float64, k*k),
		expv:  make([]float64, k),
	}
	for i := 0; i < k; i++ {
		for m := 0; m < k; m++ {
			e.left[i*k+m] = u.At(i, m) / sq[i]
			e.right[m*k+i] = u.At(i, m) * sq[i]
		}
	}
	return e, nil
}

// Size returns the number of states.
func (e *EMatrix) Size() int {
	return e.k
}

// P computes the transition probability matrix for time t into dst
// (row-major). Small negative values caused by rounding are set to
// zero. EMatrix is not safe for concurrent P calls.
func (e *EMatrix) P(t float64, dst []float64) []float64 {
	k := e.k
	if dst == nil {
		dst = make([]float64, k*k)
	}
	for m, v := range e.vals {
		e.expv[m] = math.Exp(v * t)
	}
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			x := 0.0
			for m := 0; m < k; m++ {
				x += e.left[i*k+m] * e.expv[m] * e.right[m*k+j]
			}
			if x < 0 {
				x = 0
			}
			dst[i*k+j] = x
		}
	}
	return dst
}
