package engine

import (
	"time"

	"pairwatch/internal/analytics"
	"pairwatch/internal/tickstore"
)

// Status describes what the latest cycle could compute.
type Status string

const (
	// StatusWaiting means at least one side of the pair has no bars yet.
	StatusWaiting Status = "waiting"
	// StatusInsufficient means the aligned series is shorter than analytics.MinSamples.
	StatusInsufficient Status = "insufficient"
	// StatusReady means analytics ran and Snapshot.Output is set.
	StatusReady Status = "ready"
)

// Pair names the X and Y instruments; the spread is Y - beta*X.
type Pair struct {
	X string `json:"x"`
	Y string `json:"y"`
}

func (p Pair) String() string {
	return p.X + "/" + p.Y
}

// Settings are the analytics parameters applied at the next cycle.
type Settings struct {
	Pair         Pair
	Timeframe    tickstore.Timeframe
	Window       int
	Threshold    float64
	Stationarity bool
}

// SettingsUpdate carries optional changes; nil fields keep their value.
type SettingsUpdate struct {
	Pair      *Pair
	Timeframe *tickstore.Timeframe
	Window    *int
	Threshold *float64
}

// Snapshot is the read-only result of one cycle. Its slices are never mutated
// after publication.
type Snapshot struct {
	CycleID   uint64
	At        time.Time
	Status    Status
	TickCount int
	Required  int
	Pair      Pair
	Timeframe tickstore.Timeframe
	Window    int
	Threshold float64
	Aligned   []tickstore.AlignedPoint
	Output    *analytics.Output
}

// Alert is raised when the latest z-score crosses the threshold.
type Alert struct {
	CycleID    uint64
	Pair       Pair
	Timeframe  tickstore.Timeframe
	ZScore     float64
	Threshold  float64
	HedgeRatio float64
	Message    string
	RaisedAt   time.Time
}

// Notifier receives alerts. Notify must not block.
type Notifier interface {
	Notify(Alert)
}

// TickSink is what feed adapters push raw trade events into.
type TickSink interface {
	OnTick(symbol string, tsMillis int64, price, qty any)
}
