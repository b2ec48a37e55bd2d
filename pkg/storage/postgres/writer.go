package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pairwatch/internal/engine"

	"go.uber.org/zap"
)

const defaultWriteTimeout = 5 * time.Second

// AlertInserter is the storage side of AlertWriter.
type AlertInserter interface {
	InsertAlert(ctx context.Context, record *AlertRecord) error
}

// AlertWriter persists alerts on its own goroutine so the analytics cycle never
// waits on the database. When the queue is full new alerts are dropped.
type AlertWriter struct {
	store  AlertInserter
	queue  chan *AlertRecord
	logger *zap.Logger

	mu      sync.RWMutex // guards closed against sends on a closed queue
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func NewAlertWriter(store AlertInserter, queueSize int, logger *zap.Logger) *AlertWriter {
	if queueSize < 1 {
		queueSize = 64
	}
	w := &AlertWriter{
		store:  store,
		queue:  make(chan *AlertRecord, queueSize),
		logger: logger,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Notify implements engine.Notifier. It never blocks.
func (w *AlertWriter) Notify(a engine.Alert) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}

	select {
	case w.queue <- ToAlertRecord(a):
	default:
		w.dropped.Add(1)
		w.logger.Warn("alert queue full, dropping alert",
			zap.String("pair", a.Pair.String()), zap.Uint64("cycle", a.CycleID))
	}
}

// Dropped reports alerts discarded because the queue was full.
func (w *AlertWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close stops accepting alerts and waits for queued ones to be written.
func (w *AlertWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return nil
}

func (w *AlertWriter) run() {
	defer w.wg.Done()
	for rec := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		if err := w.store.InsertAlert(ctx, rec); err != nil {
			w.logger.Warn("failed to insert alert record", zap.Error(err),
				zap.String("symbol_x", rec.SymbolX), zap.String("symbol_y", rec.SymbolY))
		}
		cancel()
	}
}
