// Package analytics implements the pairs-trading statistics computed on an
// aligned pair series: hedge ratio, spread, rolling z-score, rolling correlation,
// the Augmented Dickey-Fuller stationarity test and the z-score alert.
//
// Every function is pure. Degenerate inputs (zero variance, singular
// regressions) yield NaN or Inf rather than errors; callers must tolerate
// non-finite values.
package analytics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// HedgeRatio returns the OLS slope of y regressed on x. The intercept is dropped.
func HedgeRatio(x, y []float64) float64 {
	_, beta := stat.LinearRegression(x, y, nil, false)
	return beta
}

// Spread returns y - beta*x element-wise.
func Spread(x, y []float64, beta float64) []float64 {
	out := make([]float64, len(y))
	copy(out, y)
	floats.AddScaled(out, -beta, x)
	return out
}
