// Package dist implements discrete approximations of continuous
// distributions used for rate heterogeneity.
package dist

import (
	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// QuantileGamma returns quantile for gamma distribution with shape
// alpha and rate beta.
func QuantileGamma(prob, alpha, beta float64) float64 {
	return distuv.Gamma{Alpha: alpha, Beta: beta}.Quantile(prob)
}

// DiscreteGamma returns K categories of G(alpha, beta) with equal
// proportions (Yang 1994). With UseMedian the category medians are
// used and rescaled to keep the mean alpha/beta, otherwise the
// category means are computed.
func DiscreteGamma(alpha, beta float64, K int, UseMedian bool, tmp, res []float64) []float64 {
	t := 0.0
	mean := alpha / beta
	k := float64(K)

	if res == nil {
		res = make([]float64, K)
	}
	if tmp == nil {
		tmp = make([]float64, K)
	}
	if K == 1 {
		res[0] = mean
		return res
	}

	if UseMedian {
		for i := 0; i < K; i++ {
			res[i] = QuantileGamma((float64(i)*2+1)/(2*k), alpha, beta)
			t += res[i]
		}
		for i := 0; i < K; i++ {
			res[i] *= mean * k / t
		}
		return res
	}

	// cutting points
	for i := 0; i < K-1; i++ {
		tmp[i] = QuantileGamma((float64(i)+1)/k, alpha, beta)
	}
	for i := 0; i < K-1; i++ {
		tmp[i] = mathext.GammaIncReg(alpha+1, tmp[i]*beta)
	}
	res[0] = tmp[0] * mean * k
	for i := 1; i < K-1; i++ {
		res[i] = (tmp[i] - tmp[i-1]) * mean * k
	}
	res[K-1] = (1 - tmp[K-2]) * mean * k

	return res
}

// GammaRates returns K mean-one rate multipliers for the gamma shape
// alpha.
func GammaRates(alpha float64, K int) []float64 {
	return DiscreteGamma(alpha, alpha, K, false, nil, nil)
}
