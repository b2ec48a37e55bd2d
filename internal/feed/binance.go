package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pairwatch/config"
	"pairwatch/internal/engine"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Binance streams trades over one WebSocket connection per symbol.
type Binance struct {
	baseURL        string
	symbols        []string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         *zap.Logger
}

func NewBinance(cfg config.FeedConfig, symbols []string, logger *zap.Logger) *Binance {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = 3 * time.Second
	}
	return &Binance{
		baseURL:        strings.TrimRight(cfg.WSURL, "/"),
		symbols:        symbols,
		reconnectDelay: delay,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
	}
}

// StreamURL returns the trade stream endpoint for symbol.
func (b *Binance) StreamURL(symbol string) string {
	return fmt.Sprintf("%s/ws/%s@trade", b.baseURL, strings.ToLower(symbol))
}

// Run connects every symbol and blocks until ctx is done. Dropped connections
// are retried indefinitely after the reconnect delay.
func (b *Binance) Run(ctx context.Context, sink engine.TickSink) error {
	if len(b.symbols) == 0 {
		return errors.New("binance feed: no symbols")
	}

	handler := MakeMessageHandler(b.logger, sink)

	var wg sync.WaitGroup
	for _, sym := range b.symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			b.listen(ctx, symbol, handler)
		}(sym)
	}
	wg.Wait()
	return ctx.Err()
}

func (b *Binance) listen(ctx context.Context, symbol string, handler func([]byte)) {
	url := b.StreamURL(symbol)
	log := b.logger.With(zap.String("symbol", symbol))

	for {
		conn, _, err := b.dialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("Failed to connect to WebSocket, retrying", zap.String("url", url), zap.Error(err))
			if !sleep(ctx, b.reconnectDelay) {
				return
			}
			continue
		}
		log.Info("WebSocket connected", zap.String("url", url))

		b.readLoop(ctx, conn, handler, log)
		if ctx.Err() != nil {
			return
		}
		if !sleep(ctx, b.reconnectDelay) {
			return
		}
		log.Info("Reconnecting")
	}
}

// readLoop reads until the connection fails or ctx is done.
func (b *Binance) readLoop(ctx context.Context, conn *websocket.Conn, handler func([]byte), log *zap.Logger) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				log.Error("WebSocket read error", zap.Error(err))
			}
			return
		}
		handler(msg)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
