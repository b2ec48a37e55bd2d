package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// MacKinnon (1994) response surface for the constant-only, single-series case.
const (
	tauMax  = 2.74
	tauMin  = -18.83
	tauStar = -1.61
)

var (
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// MacKinnon (2010) critical value coefficients, constant-only, one series.
var tauCrit = []struct {
	level string
	coef  []float64
}{
	{"1%", []float64{-3.43035, -6.5393, -16.786, -79.433}},
	{"5%", []float64{-2.86154, -2.8903, -4.234, -40.040}},
	{"10%", []float64{-2.56677, -1.5384, -2.809, 0}},
}

// mackinnonP approximates the p-value of an ADF statistic.
func mackinnonP(stat float64) float64 {
	switch {
	case math.IsNaN(stat):
		return math.NaN()
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	}
	coef := tauLargeP
	if stat <= tauStar {
		coef = tauSmallP
	}
	return distuv.UnitNormal.CDF(polyval(coef, stat))
}

// criticalValues returns the finite-sample critical values for nobs observations.
func criticalValues(nobs int) map[string]float64 {
	out := make(map[string]float64, len(tauCrit))
	inv := 1 / float64(nobs)
	for _, c := range tauCrit {
		out[c.level] = polyval(c.coef, inv)
	}
	return out
}

// polyval evaluates c[0] + c[1]*x + c[2]*x^2 + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
