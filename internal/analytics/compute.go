package analytics

import (
	"errors"
	"fmt"
	"math"
)

var ErrInsufficientSamples = errors.New("insufficient samples")

// MinSamples is the smallest aligned series length analytics may run on.
func MinSamples(window int) int {
	return max(window+5, 50)
}

// CheckAlert returns an alert message when |z| exceeds threshold.
// z must be a defined z-score; NaN never alerts.
func CheckAlert(z, threshold float64) (string, bool) {
	if math.Abs(z) > threshold {
		return fmt.Sprintf("ALERT: Z-score breached (%.2f)", z), true
	}
	return "", false
}

type Params struct {
	Window       int
	Threshold    float64
	Stationarity bool
}

// Output is the full result of one analytics pass.
type Output struct {
	HedgeRatio      float64
	Spread          []float64
	ZScore          Rolling
	Correlation     Rolling
	Stationarity    *ADFResult
	StationarityErr string
	LatestZ         float64
	Alert           string
}

// Compute runs every statistic on an aligned pair series. Callers are expected
// to check MinSamples first; shorter input returns ErrInsufficientSamples.
func Compute(x, y []float64, p Params) (Output, error) {
	if len(x) != len(y) {
		return Output{}, fmt.Errorf("series length mismatch: %d vs %d", len(x), len(y))
	}
	if need := MinSamples(p.Window); len(x) < need {
		return Output{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientSamples, len(x), need)
	}

	beta := HedgeRatio(x, y)
	spread := Spread(x, y, beta)
	out := Output{
		HedgeRatio:  beta,
		Spread:      spread,
		ZScore:      RollingZScore(spread, p.Window),
		Correlation: RollingCorrelation(x, y, p.Window),
		LatestZ:     math.NaN(),
	}

	if z, ok := out.ZScore.Latest(); ok {
		out.LatestZ = z
		if msg, alert := CheckAlert(z, p.Threshold); alert {
			out.Alert = msg
		}
	}

	if p.Stationarity {
		res, err := StationarityTest(spread)
		if err != nil {
			out.StationarityErr = err.Error()
		} else {
			out.Stationarity = &res
		}
	}
	return out, nil
}
