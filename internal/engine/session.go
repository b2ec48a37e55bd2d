// Package engine owns the pipeline state: the ingestion buffer, the tick store
// and the analytics cycle that turns them into snapshots.
package engine

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"pairwatch/config"
	"pairwatch/internal/ingest"
	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
	"pairwatch/internal/tickstore"

	"go.uber.org/zap"
)

var ErrSessionClosed = errors.New("session closed")

// Session is the explicitly owned pipeline context. Feeds call OnTick from any
// goroutine; Cycle and Run must be driven from a single goroutine at a time.
type Session struct {
	log     *zap.Logger
	buffer  *ingest.Buffer
	store   *tickstore.Store
	tracked map[string]struct{}

	mu       sync.RWMutex // guards settings
	settings Settings

	cycleMu    sync.Mutex // serializes cycles
	cycleID    uint64
	lastStatus Status
	breached   bool

	snapshot atomic.Pointer[Snapshot]
	notifier Notifier
	observer func(Snapshot)
	now      func() time.Time

	closed    atomic.Bool
	closeOnce sync.Once
}

type Option func(*Session)

// WithNotifier routes alerts to n. A Notifier that is also an io.Closer is
// closed by Session.Close.
func WithNotifier(n Notifier) Option {
	return func(s *Session) {
		s.notifier = n
	}
}

// WithObserver registers fn to receive every published snapshot. fn runs on
// the cycle goroutine and must return quickly.
func WithObserver(fn func(Snapshot)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

func NewSession(cfg *config.Config, log *zap.Logger, opts ...Option) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	buffer, err := ingest.NewBuffer(cfg.Buffer.Capacity)
	if err != nil {
		return nil, fmt.Errorf("ingestion buffer: %w", err)
	}
	policy, err := tickstore.ParseDedupPolicy(cfg.Store.Dedup)
	if err != nil {
		return nil, err
	}
	tf, err := tickstore.ParseTimeframe(cfg.Analytics.Timeframe)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidatePair(cfg.Pair.X, cfg.Pair.Y); err != nil {
		return nil, err
	}

	s := &Session{
		log:     log,
		buffer:  buffer,
		store:   tickstore.New(policy),
		tracked: make(map[string]struct{}, len(cfg.Symbols)),
		settings: Settings{
			Pair:         Pair{X: cfg.Pair.X, Y: cfg.Pair.Y},
			Timeframe:    tf,
			Window:       cfg.Analytics.Window,
			Threshold:    cfg.Analytics.ZScoreThreshold,
			Stationarity: cfg.Analytics.Stationarity,
		},
		now: time.Now,
	}
	for _, sym := range cfg.Symbols {
		s.tracked[sym] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}

	s.snapshot.Store(&Snapshot{
		Status:    StatusWaiting,
		Pair:      s.settings.Pair,
		Timeframe: s.settings.Timeframe,
		Window:    s.settings.Window,
		Threshold: s.settings.Threshold,
	})

	s.log.Info("session ready",
		zap.String("pair", s.settings.Pair.String()),
		zap.String("timeframe", tf.String()),
		zap.String("dedup", string(s.store.Policy())),
		zap.Int("buffer_capacity", buffer.Cap()))
	return s, nil
}

// OnTick is the feed entry point. Unparseable or untracked events are dropped
// without surfacing an error.
func (s *Session) OnTick(symbol string, tsMillis int64, price, qty any) {
	if s.closed.Load() {
		return
	}

	tick, err := market.ParseTick(symbol, tsMillis, price, qty)
	if err != nil {
		metrics.TicksDiscarded.WithLabelValues("malformed").Inc()
		s.log.Debug("discarding malformed tick", zap.String("symbol", symbol), zap.Error(err))
		return
	}
	if _, ok := s.tracked[tick.Symbol]; !ok {
		metrics.TicksDiscarded.WithLabelValues("untracked").Inc()
		return
	}

	if s.buffer.Push(tick) {
		metrics.BufferEvicted.Inc()
	}
	metrics.TicksReceived.WithLabelValues(tick.Symbol).Inc()
}

// Symbols returns the tracked symbols.
func (s *Session) Symbols() []string {
	out := make([]string, 0, len(s.tracked))
	for sym := range s.tracked {
		out = append(out, sym)
	}
	return out
}

func (s *Session) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings validates every set field of u before applying any of them,
// so a rejected update leaves the settings unchanged. Changes take effect at
// the next cycle.
func (s *Session) UpdateSettings(u SettingsUpdate) (Settings, error) {
	if u.Pair != nil {
		if err := s.validatePair(*u.Pair); err != nil {
			return Settings{}, err
		}
	}
	if u.Timeframe != nil && !u.Timeframe.IsValid() {
		return Settings{}, fmt.Errorf("%w: %q", tickstore.ErrInvalidTimeframe, *u.Timeframe)
	}
	if u.Window != nil && (*u.Window < config.MinWindow || *u.Window > config.MaxWindow) {
		return Settings{}, fmt.Errorf("window must be in [%d, %d], got %d", config.MinWindow, config.MaxWindow, *u.Window)
	}
	if u.Threshold != nil && (*u.Threshold < config.MinThreshold || *u.Threshold > config.MaxThreshold) {
		return Settings{}, fmt.Errorf("threshold must be in [%.1f, %.1f], got %v",
			config.MinThreshold, config.MaxThreshold, *u.Threshold)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u.Pair != nil {
		s.settings.Pair = *u.Pair
	}
	if u.Timeframe != nil {
		s.settings.Timeframe = *u.Timeframe
	}
	if u.Window != nil {
		s.settings.Window = *u.Window
	}
	if u.Threshold != nil {
		s.settings.Threshold = *u.Threshold
	}
	return s.settings, nil
}

// validatePair requires two distinct tracked symbols.
func (s *Session) validatePair(p Pair) error {
	if p.X == p.Y {
		return fmt.Errorf("pair: x and y must differ, both are %q", p.X)
	}
	for _, sym := range []string{p.X, p.Y} {
		if _, ok := s.tracked[sym]; !ok {
			return fmt.Errorf("pair: %q is not a tracked symbol", sym)
		}
	}
	return nil
}

// Snapshot returns the latest published cycle result.
func (s *Session) Snapshot() Snapshot {
	return *s.snapshot.Load()
}

// BufferLen reports ticks waiting for the next cycle.
func (s *Session) BufferLen() int {
	return s.buffer.Len()
}

// Close stops accepting ticks and closes the notifier if it is closable.
// It does not drain the buffer.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// wait for an in-flight cycle so the notifier is not closed under it
		s.cycleMu.Lock()
		defer s.cycleMu.Unlock()
		if c, ok := s.notifier.(io.Closer); ok {
			err = c.Close()
		}
		s.log.Info("session closed",
			zap.Int("stored_ticks", s.Snapshot().TickCount),
			zap.Int("unprocessed_ticks", s.buffer.Len()),
			zap.Uint64("evicted_ticks", s.buffer.Evicted()))
	})
	return err
}
