package analytics

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var ErrInsufficientObservations = errors.New("insufficient observations for stationarity test")

// ADFResult is the outcome of an Augmented Dickey-Fuller test with a constant
// term and AIC lag selection.
type ADFResult struct {
	Statistic      float64            `json:"statistic"`
	PValue         float64            `json:"p_value"`
	UsedLag        int                `json:"used_lag"`
	NObs           int                `json:"nobs"`
	CriticalValues map[string]float64 `json:"critical_values"`
	ICBest         float64            `json:"ic_best"`
}

// StationarityTest runs the ADF unit-root test on series. Leading NaNs are
// dropped first. The maximum lag is ceil(12*(n/100)^(1/4)), capped at n/2-2,
// and the lag order minimizing AIC is used for the reported statistic.
func StationarityTest(series []float64) (ADFResult, error) {
	x := trimLeadingNaN(series)
	n := len(x)

	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	maxLag = min(n/2-2, maxLag)
	if maxLag < 0 {
		return ADFResult{}, fmt.Errorf("%w: got %d", ErrInsufficientObservations, n)
	}

	dx := make([]float64, n-1)
	for i := range dx {
		dx[i] = x[i+1] - x[i]
	}

	res := ADFResult{
		Statistic: math.NaN(),
		PValue:    math.NaN(),
		ICBest:    math.NaN(),
	}
	if floats.Min(x) == floats.Max(x) {
		// A constant series makes every regression singular.
		res.NObs = len(dx) - maxLag
		res.CriticalValues = criticalValues(res.NObs)
		return res, nil
	}

	// Lag search runs on the sample available to the largest lag so AIC values compare.
	bestLag, bestAIC := -1, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		fit, err := ols(adfDesign(x, dx, lag, maxLag))
		if err != nil {
			continue
		}
		if fit.aic < bestAIC {
			bestLag, bestAIC = lag, fit.aic
		}
	}

	if bestLag < 0 {
		res.NObs = len(dx) - maxLag
		res.CriticalValues = criticalValues(res.NObs)
		return res, nil
	}
	res.ICBest = bestAIC

	X, y := adfDesign(x, dx, bestLag, bestLag)
	res.UsedLag = bestLag
	res.NObs = len(y)
	res.CriticalValues = criticalValues(res.NObs)

	fit, err := ols(X, y)
	if err != nil {
		return res, nil
	}
	res.Statistic = fit.beta[0] / fit.se[0]
	res.PValue = mackinnonP(res.Statistic)
	return res, nil
}

func trimLeadingNaN(series []float64) []float64 {
	for i, v := range series {
		if !math.IsNaN(v) {
			return series[i:]
		}
	}
	return nil
}

// adfDesign builds the regression dx[t] ~ x[t] + dx[t-1..t-lag] + 1 over rows
// t = start..len(dx)-1. Column 0 is the lagged level.
func adfDesign(x, dx []float64, lag, start int) (*mat.Dense, []float64) {
	rows := len(dx) - start
	cols := lag + 2
	X := mat.NewDense(rows, cols, nil)
	y := make([]float64, rows)
	for r := 0; r < rows; r++ {
		t := start + r
		y[r] = dx[t]
		X.Set(r, 0, x[t])
		for j := 1; j <= lag; j++ {
			X.Set(r, j, dx[t-j])
		}
		X.Set(r, cols-1, 1)
	}
	return X, y
}

type olsFit struct {
	beta []float64
	se   []float64
	aic  float64
}

// ols fits y = X*beta by least squares and returns coefficients, standard
// errors and the Gaussian AIC.
func ols(X *mat.Dense, yv []float64) (olsFit, error) {
	n, k := X.Dims()
	if n <= k {
		return olsFit{}, fmt.Errorf("ols: %d rows for %d regressors", n, k)
	}
	y := mat.NewVecDense(n, yv)

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return olsFit{}, fmt.Errorf("ols: %w", err)
	}

	var xty, beta mat.VecDense
	xty.MulVec(X.T(), y)
	beta.MulVec(&inv, &xty)

	var fitted, resid mat.VecDense
	fitted.MulVec(X, &beta)
	resid.SubVec(y, &fitted)
	ssr := mat.Dot(&resid, &resid)

	sigma2 := ssr / float64(n-k)
	fit := olsFit{
		beta: make([]float64, k),
		se:   make([]float64, k),
	}
	for j := 0; j < k; j++ {
		fit.beta[j] = beta.AtVec(j)
		fit.se[j] = math.Sqrt(sigma2 * inv.At(j, j))
	}

	llf := -float64(n) / 2 * (math.Log(2*math.Pi) + math.Log(ssr/float64(n)) + 1)
	fit.aic = -2*llf + 2*float64(k)
	return fit, nil
}
