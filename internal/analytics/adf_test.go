package analytics

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestStationarityWhiteNoise
func TestStationarityWhiteNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 43))
	series := make([]float64, 250)
	for i := range series {
		series[i] = rng.NormFloat64()
	}

	res, err := StationarityTest(series)
	require.NoError(t, err)

	assert.Less(t, res.Statistic, res.CriticalValues["1%"])
	assert.Less(t, res.PValue, 0.01)
	assert.GreaterOrEqual(t, res.UsedLag, 0)
	assert.Equal(t, len(series)-1-res.UsedLag, res.NObs)
}

func TestStationarityExplosiveSeries(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	series := make([]float64, 120)
	series[0] = 1
	for i := 1; i < len(series); i++ {
		series[i] = 1.03*series[i-1] + rng.NormFloat64()
	}

	res, err := StationarityTest(series)
	require.NoError(t, err)
	assert.Greater(t, res.PValue, 0.10)
}

// arSeries is x[t] = 0.85*x[t-1] + 0.5*dx[t-1] + e[t] with a deterministic
// hash noise, so the fit does not depend on the rand implementation.
func arSeries(n int) []float64 {
	x := make([]float64, n)
	for t := 1; t < n; t++ {
		v := math.Sin(float64(t)*12.9898) * 43758.5453
		e := v - math.Floor(v) - 0.5
		d := 0.0
		if t > 1 {
			d = x[t-1] - x[t-2]
		}
		x[t] = 0.85*x[t-1] + 0.5*d + e
	}
	return x
}

// Reference values follow adfuller(series, regression="c", autolag="AIC").
func TestStationarityGolden(t *testing.T) {
	res, err := StationarityTest(arSeries(150))
	require.NoError(t, err)

	assert.Equal(t, 1, res.UsedLag)
	assert.Equal(t, 148, res.NObs)
	assert.InDelta(t, -3.8850964255, res.Statistic, 1e-6)
	assert.InDelta(t, 0.002147308484, res.PValue, 1e-7)
	assert.InDelta(t, 54.8919314345, res.ICBest, 1e-6)
}

func TestStationarityTrimsLeadingNaN(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	series := make([]float64, 80)
	for i := range series {
		series[i] = rng.NormFloat64()
	}
	padded := append([]float64{math.NaN(), math.NaN(), math.NaN()}, series...)

	a, err := StationarityTest(series)
	require.NoError(t, err)
	b, err := StationarityTest(padded)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestStationarityTooShort(t *testing.T) {
	_, err := StationarityTest([]float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrInsufficientObservations))

	_, err = StationarityTest([]float64{math.NaN(), math.NaN()})
	assert.True(t, errors.Is(err, ErrInsufficientObservations))
}

func TestStationarityConstantSeriesIsNonFinite(t *testing.T) {
	series := make([]float64, 60)
	for i := range series {
		series[i] = 7
	}

	res, err := StationarityTest(series)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Statistic))
	assert.True(t, math.IsNaN(res.PValue))
	assert.Len(t, res.CriticalValues, 3)
}

func TestCriticalValues(t *testing.T) {
	cv := criticalValues(100)
	assert.InDelta(t, -3.4975, cv["1%"], 1e-3)
	assert.InDelta(t, -2.8909, cv["5%"], 1e-3)
	assert.InDelta(t, -2.5825, cv["10%"], 1e-3)
	assert.Less(t, cv["1%"], cv["5%"])
	assert.Less(t, cv["5%"], cv["10%"])
}

func TestMackinnonP(t *testing.T) {
	assert.Equal(t, 1.0, mackinnonP(3))
	assert.Equal(t, 0.0, mackinnonP(-20))
	assert.True(t, math.IsNaN(mackinnonP(math.NaN())))

	// Above tauStar the large-p polynomial applies.
	assert.InDelta(t, 0.7532643012, mackinnonP(-1.0), 1e-9)
	assert.InDelta(t, 0.8920164966, mackinnonP(-0.5), 1e-9)
	assert.InDelta(t, 0.9942659485, mackinnonP(1.0), 1e-9)

	// The asymptotic 5% critical value maps to p close to 0.05.
	assert.InDelta(t, 0.05, mackinnonP(-2.86154), 0.005)

	prev := 0.0
	for s := -6.0; s <= 2.5; s += 0.25 {
		p := mackinnonP(s)
		assert.GreaterOrEqual(t, p, prev, "stat %v", s)
		prev = p
	}
}

func TestPolyval(t *testing.T) {
	assert.Equal(t, 1.0+2*3+3*9, polyval([]float64{1, 2, 3}, 3))
}
