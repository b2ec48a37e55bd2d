package feed

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"pairwatch/internal/engine"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"
)

// Reference prices for the synthetic walk; unknown symbols start at 100.
var syntheticAnchors = map[string]float64{
	"BTCUSDT": 65000,
	"ETHUSDT": 3200,
	"SOLUSDT": 150,
	"BNBUSDT": 580,
}

const (
	commonVol    = 0.0008 // per-step volatility of the shared factor
	idioVol      = 0.0004 // per-step volatility of each symbol's own noise
	idioReversal = 0.9    // AR(1) coefficient of the idiosyncratic term
)

// Synthetic generates cointegrated trades without a network connection.
// All log prices share one random walk plus a mean-reverting residual per symbol.
type Synthetic struct {
	symbols []string
	rate    time.Duration
	logger  *zap.Logger
	now     func() time.Time

	noise  distuv.Normal
	common float64
	idio   []float64
}

func NewSynthetic(symbols []string, rate time.Duration, seed uint64, logger *zap.Logger) *Synthetic {
	if rate <= 0 {
		rate = 200 * time.Millisecond
	}
	return &Synthetic{
		symbols: symbols,
		rate:    rate,
		logger:  logger,
		now:     time.Now,
		noise:   distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)},
		idio:    make([]float64, len(symbols)),
	}
}

// Run emits one trade per symbol every rate until ctx is done.
func (s *Synthetic) Run(ctx context.Context, sink engine.TickSink) error {
	s.logger.Info("synthetic feed started", zap.Strings("symbols", s.symbols), zap.Duration("rate", s.rate))

	ticker := time.NewTicker(s.rate)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.emit(sink)
		}
	}
}

func (s *Synthetic) emit(sink engine.TickSink) {
	ms := s.now().UnixMilli()
	for i, p := range s.step() {
		qty := 0.001 + math.Abs(s.noise.Rand())*0.1
		sink.OnTick(s.symbols[i], ms, p, qty)
	}
}

// step advances the walk and returns one price per symbol.
func (s *Synthetic) step() []float64 {
	s.common += commonVol * s.noise.Rand()
	prices := make([]float64, len(s.symbols))
	for i, sym := range s.symbols {
		s.idio[i] = idioReversal*s.idio[i] + idioVol*s.noise.Rand()
		anchor, ok := syntheticAnchors[sym]
		if !ok {
			anchor = 100
		}
		prices[i] = anchor * math.Exp(s.common+s.idio[i])
	}
	return prices
}
