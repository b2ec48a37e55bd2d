package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Rolling is a trailing-window statistic over a series.
// Positions before Window-1 are undefined and hold NaN; a defined position may
// still be NaN or Inf when its window is degenerate.
type Rolling struct {
	Values []float64
	Window int
}

// Defined reports whether position i has a full trailing window.
func (r Rolling) Defined(i int) bool {
	return r.Window >= 2 && i >= r.Window-1 && i < len(r.Values)
}

// Latest returns the most recent defined value.
func (r Rolling) Latest() (float64, bool) {
	i := len(r.Values) - 1
	if !r.Defined(i) {
		return math.NaN(), false
	}
	return r.Values[i], true
}

func undefined(n, w int) Rolling {
	values := make([]float64, n)
	for i := range values {
		values[i] = math.NaN()
	}
	return Rolling{Values: values, Window: w}
}

// RollingZScore standardizes each point against its trailing window of w points
// using the sample (n-1) standard deviation. Windows shorter than 2 have no
// defined values.
func RollingZScore(series []float64, w int) Rolling {
	out := undefined(len(series), w)
	if w < 2 {
		return out
	}
	for i := w - 1; i < len(series); i++ {
		window := series[i-w+1 : i+1]
		mean, std := stat.MeanStdDev(window, nil)
		out.Values[i] = (series[i] - mean) / std
	}
	return out
}

// RollingCorrelation is the Pearson correlation of x and y over each trailing
// window of w points.
func RollingCorrelation(x, y []float64, w int) Rolling {
	n := min(len(x), len(y))
	out := undefined(n, w)
	if w < 2 {
		return out
	}
	for i := w - 1; i < n; i++ {
		out.Values[i] = stat.Correlation(x[i-w+1:i+1], y[i-w+1:i+1], nil)
	}
	return out
}
