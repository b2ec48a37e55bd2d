package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"pairwatch/internal/engine"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientQueue  = 4
	writeTimeout = 5 * time.Second
)

// Broadcaster pushes every snapshot to connected WebSocket clients. A client
// that falls behind misses snapshots rather than stalling the cycle.
type Broadcaster struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan []byte
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

// Broadcast matches the engine.WithObserver signature.
func (b *Broadcaster) Broadcast(snap engine.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return
	}

	msg, err := json.Marshal(NewSnapshotView(snap))
	if err != nil {
		b.logger.Error("failed to marshal snapshot", zap.Error(err))
		return
	}
	for _, ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Clients returns the number of connected clients.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Handler returns an http.HandlerFunc to accept websocket connections.
func (b *Broadcaster) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			b.logger.Warn("websocket upgrade error", zap.Error(err))
			return
		}

		ch := make(chan []byte, clientQueue)
		b.mu.Lock()
		b.clients[conn] = ch
		b.mu.Unlock()

		done := make(chan struct{})
		go b.writeLoop(conn, ch, done)

		// Read loop only detects disconnects.
		go func() {
			defer func() {
				b.mu.Lock()
				delete(b.clients, conn)
				b.mu.Unlock()
				close(done)
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func (b *Broadcaster) writeLoop(conn *websocket.Conn, ch <-chan []byte, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.logger.Debug("websocket write error", zap.Error(err))
				conn.Close()
				return
			}
		}
	}
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.clients {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		conn.Close()
	}
}
