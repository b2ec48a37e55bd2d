package tickstore

import "time"

// AlignedPoint is one row of an aligned pair series: the last prices of X and Y
// in the same bucket.
type AlignedPoint struct {
	Timestamp time.Time `json:"timestamp"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
}

// Align inner-joins two bar series on bucket start.
// Both inputs must be sorted by BucketStart, as Resample returns them.
func Align(x, y []Bar) []AlignedPoint {
	out := make([]AlignedPoint, 0, min(len(x), len(y)))

	i, j := 0, 0
	for i < len(x) && j < len(y) {
		tx, ty := x[i].BucketStart, y[j].BucketStart
		switch {
		case tx.Before(ty):
			i++
		case ty.Before(tx):
			j++
		default:
			out = append(out, AlignedPoint{
				Timestamp: tx,
				X:         x[i].LastPrice,
				Y:         y[j].LastPrice,
			})
			i++
			j++
		}
	}
	return out
}

// Columns splits an aligned series into its X and Y price columns.
func Columns(points []AlignedPoint) (xs, ys []float64) {
	xs = make([]float64, len(points))
	ys = make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
