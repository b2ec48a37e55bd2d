package httpapi

import (
	"math"
	"time"

	"pairwatch/internal/analytics"
	"pairwatch/internal/engine"
	"pairwatch/pkg/storage/postgres"
)

// SnapshotView is the JSON form of engine.Snapshot. Undefined and non-finite
// numbers are encoded as null.
type SnapshotView struct {
	CycleID   uint64      `json:"cycle_id"`
	At        time.Time   `json:"at"`
	Status    string      `json:"status"`
	TickCount int         `json:"tick_count"`
	Required  int         `json:"required"`
	Pair      engine.Pair `json:"pair"`
	Timeframe string      `json:"timeframe"`
	Window    int         `json:"window"`
	Threshold float64     `json:"threshold"`

	HedgeRatio      *float64    `json:"hedge_ratio"`
	LatestZ         *float64    `json:"latest_zscore"`
	Alert           string      `json:"alert,omitempty"`
	Stationarity    *ADFView    `json:"stationarity,omitempty"`
	StationarityErr string      `json:"stationarity_error,omitempty"`
	Points          []PointView `json:"points"`
}

type PointView struct {
	Timestamp   time.Time `json:"timestamp"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Spread      *float64  `json:"spread"`
	ZScore      *float64  `json:"zscore"`
	Correlation *float64  `json:"correlation"`
}

type ADFView struct {
	Statistic      *float64           `json:"statistic"`
	PValue         *float64           `json:"p_value"`
	UsedLag        int                `json:"used_lag"`
	NObs           int                `json:"nobs"`
	CriticalValues map[string]float64 `json:"critical_values"`
	Stationary5Pct bool               `json:"stationary_5pct"`
}

// finite returns nil for NaN and infinities.
func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func rollingAt(r analytics.Rolling, i int) *float64 {
	if !r.Defined(i) {
		return nil
	}
	return finite(r.Values[i])
}

func NewSnapshotView(s engine.Snapshot) SnapshotView {
	v := SnapshotView{
		CycleID:   s.CycleID,
		At:        s.At,
		Status:    string(s.Status),
		TickCount: s.TickCount,
		Required:  s.Required,
		Pair:      s.Pair,
		Timeframe: s.Timeframe.String(),
		Window:    s.Window,
		Threshold: s.Threshold,
		Points:    make([]PointView, len(s.Aligned)),
	}

	for i, p := range s.Aligned {
		v.Points[i] = PointView{Timestamp: p.Timestamp, X: p.X, Y: p.Y}
	}

	out := s.Output
	if out == nil {
		return v
	}
	v.HedgeRatio = finite(out.HedgeRatio)
	v.LatestZ = finite(out.LatestZ)
	v.Alert = out.Alert
	v.StationarityErr = out.StationarityErr
	for i := range v.Points {
		if i < len(out.Spread) {
			v.Points[i].Spread = finite(out.Spread[i])
		}
		v.Points[i].ZScore = rollingAt(out.ZScore, i)
		v.Points[i].Correlation = rollingAt(out.Correlation, i)
	}

	if adf := out.Stationarity; adf != nil {
		v.Stationarity = &ADFView{
			Statistic:      finite(adf.Statistic),
			PValue:         finite(adf.PValue),
			UsedLag:        adf.UsedLag,
			NObs:           adf.NObs,
			CriticalValues: adf.CriticalValues,
			Stationary5Pct: adf.PValue < 0.05,
		}
	}
	return v
}

// AlertView is the JSON form of a persisted alert. An infinite z-score is
// encoded as null.
type AlertView struct {
	ID         string      `json:"id"`
	CycleID    uint64      `json:"cycle_id"`
	Pair       engine.Pair `json:"pair"`
	Timeframe  string      `json:"timeframe"`
	ZScore     *float64    `json:"zscore"`
	Threshold  float64     `json:"threshold"`
	HedgeRatio *float64    `json:"hedge_ratio"`
	Message    string      `json:"message"`
	RaisedAt   time.Time   `json:"raised_at"`
}

func NewAlertView(r postgres.AlertRecord) AlertView {
	return AlertView{
		ID:         r.ID.String(),
		CycleID:    r.CycleID,
		Pair:       engine.Pair{X: r.SymbolX, Y: r.SymbolY},
		Timeframe:  r.Timeframe,
		ZScore:     finite(r.ZScore),
		Threshold:  r.Threshold,
		HedgeRatio: finite(r.HedgeRatio),
		Message:    r.Message,
		RaisedAt:   r.RaisedAt.UTC(),
	}
}
