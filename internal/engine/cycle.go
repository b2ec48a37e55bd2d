package engine

import (
	"context"
	"time"

	"pairwatch/internal/analytics"
	"pairwatch/internal/metrics"
	"pairwatch/internal/tickstore"

	"go.uber.org/zap"
)

// Cycle drains the buffer into the store, recomputes analytics for the current
// settings and publishes a new snapshot. Concurrent calls are serialized.
func (s *Session) Cycle() Snapshot {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	drained := s.buffer.DrainAll()
	added := s.store.Update(drained)
	set := s.Settings()

	s.cycleID++
	snap := &Snapshot{
		CycleID:   s.cycleID,
		At:        s.now(),
		Status:    StatusWaiting,
		TickCount: s.store.Len(),
		Required:  analytics.MinSamples(set.Window),
		Pair:      set.Pair,
		Timeframe: set.Timeframe,
		Window:    set.Window,
		Threshold: set.Threshold,
	}

	s.evaluate(snap, set)

	s.snapshot.Store(snap)
	s.recordCycle(snap, len(drained), added, time.Since(start))
	if s.observer != nil {
		s.observer(*snap)
	}
	return *snap
}

func (s *Session) evaluate(snap *Snapshot, set Settings) {
	xs, err := s.store.Resample(set.Pair.X, set.Timeframe)
	if err != nil {
		s.log.Error("resample failed", zap.String("symbol", set.Pair.X), zap.Error(err))
		return
	}
	ys, err := s.store.Resample(set.Pair.Y, set.Timeframe)
	if err != nil {
		s.log.Error("resample failed", zap.String("symbol", set.Pair.Y), zap.Error(err))
		return
	}
	if len(xs) == 0 || len(ys) == 0 {
		s.breached = false
		return
	}

	snap.Aligned = tickstore.Align(xs, ys)
	if len(snap.Aligned) < snap.Required {
		snap.Status = StatusInsufficient
		s.breached = false
		return
	}

	x, y := tickstore.Columns(snap.Aligned)
	out, err := analytics.Compute(x, y, analytics.Params{
		Window:       set.Window,
		Threshold:    set.Threshold,
		Stationarity: set.Stationarity,
	})
	if err != nil {
		s.log.Error("analytics failed", zap.String("pair", set.Pair.String()), zap.Error(err))
		snap.Status = StatusInsufficient
		return
	}
	if out.StationarityErr != "" {
		s.log.Debug("stationarity test skipped", zap.String("reason", out.StationarityErr))
	}
	snap.Status = StatusReady
	snap.Output = &out

	s.raiseAlert(snap, out)
}

// raiseAlert notifies on the transition into breach. The snapshot carries the
// alert on every breached cycle; the notifier only sees the first.
func (s *Session) raiseAlert(snap *Snapshot, out analytics.Output) {
	if out.Alert == "" {
		s.breached = false
		return
	}
	if s.breached {
		return
	}
	s.breached = true

	pair := snap.Pair.String()
	metrics.Alerts.WithLabelValues(pair).Inc()
	s.log.Warn(out.Alert,
		zap.String("pair", pair),
		zap.Float64("zscore", out.LatestZ),
		zap.Float64("threshold", snap.Threshold),
		zap.Uint64("cycle", snap.CycleID))

	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Alert{
		CycleID:    snap.CycleID,
		Pair:       snap.Pair,
		Timeframe:  snap.Timeframe,
		ZScore:     out.LatestZ,
		Threshold:  snap.Threshold,
		HedgeRatio: out.HedgeRatio,
		Message:    out.Alert,
		RaisedAt:   snap.At,
	})
}

func (s *Session) recordCycle(snap *Snapshot, drained, added int, took time.Duration) {
	metrics.StoreTicks.Set(float64(snap.TickCount))
	for _, sym := range s.store.Symbols() {
		metrics.StoreSymbolTicks.WithLabelValues(sym).Set(float64(s.store.CountBySymbol(sym)))
	}
	metrics.CycleDuration.Observe(took.Seconds())
	metrics.Cycles.WithLabelValues(string(snap.Status)).Inc()

	pair := snap.Pair.String()
	if snap.Output != nil {
		metrics.HedgeRatio.WithLabelValues(pair).Set(snap.Output.HedgeRatio)
		if z, ok := snap.Output.ZScore.Latest(); ok {
			metrics.LatestZScore.WithLabelValues(pair).Set(z)
		}
	}

	fields := []zap.Field{
		zap.Uint64("cycle", snap.CycleID),
		zap.String("status", string(snap.Status)),
		zap.String("pair", pair),
		zap.Int("drained", drained),
		zap.Int("stored", added),
		zap.Int("aligned", len(snap.Aligned)),
		zap.Int("required", snap.Required),
		zap.Duration("took", took),
	}
	if snap.Status != s.lastStatus {
		s.log.Info("analytics status changed", fields...)
		s.lastStatus = snap.Status
		return
	}
	s.log.Debug("cycle complete", fields...)
}

// Run executes a cycle immediately and then once per interval until ctx is
// done. Cycles never overlap: a slow cycle delays the next tick.
func (s *Session) Run(ctx context.Context, interval time.Duration) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	s.log.Info("analytics loop started",
		zap.Duration("interval", interval),
		zap.String("pair", s.Settings().Pair.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Cycle()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("analytics loop stopped", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			if s.closed.Load() {
				return ErrSessionClosed
			}
			s.Cycle()
		}
	}
}
