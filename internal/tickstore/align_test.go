package tickstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func bar(offsetSec int, price float64) Bar {
	return Bar{BucketStart: base.Add(time.Duration(offsetSec) * time.Second), LastPrice: price, TotalQuantity: 1}
}

// go test -v --run TestAlignInnerJoin
func TestAlignInnerJoin(t *testing.T) {
	x := []Bar{bar(0, 1), bar(1, 2), bar(3, 4), bar(4, 5)}
	y := []Bar{bar(1, 20), bar(2, 30), bar(4, 50), bar(6, 70)}

	got := Align(x, y)
	assert.Equal(t, []AlignedPoint{
		{Timestamp: base.Add(time.Second), X: 2, Y: 20},
		{Timestamp: base.Add(4 * time.Second), X: 5, Y: 50},
	}, got)

	assert.LessOrEqual(t, len(got), min(len(x), len(y)))

	xs, ys := Columns(got)
	assert.Equal(t, []float64{2, 5}, xs)
	assert.Equal(t, []float64{20, 50}, ys)
}

func TestAlignEmpty(t *testing.T) {
	assert.Empty(t, Align(nil, []Bar{bar(0, 1)}))
	assert.Empty(t, Align([]Bar{bar(0, 1)}, []Bar{bar(1, 1)}))
}
