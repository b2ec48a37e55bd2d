// Package ingest stages ticks between the feed goroutines and the analytics cycle.
package ingest

import (
	"fmt"
	"sync"

	"pairwatch/internal/market"
)

// DefaultCapacity is the buffer size used when none is configured.
const DefaultCapacity = 10000

// Buffer is a fixed-capacity ring of ticks.
// Many producers may Push concurrently; a single consumer calls DrainAll.
// When full, Push overwrites the oldest tick.
type Buffer struct {
	mu      sync.Mutex
	ring    []market.Tick
	head    int // index of the oldest tick
	size    int
	evicted uint64
}

func NewBuffer(capacity int) (*Buffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("buffer capacity must be >= 1, got %d", capacity)
	}
	return &Buffer{
		ring: make([]market.Tick, capacity),
	}, nil
}

// Push appends t, evicting the oldest tick if the buffer is full.
// It reports whether an eviction happened.
func (b *Buffer) Push(t market.Tick) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	capacity := len(b.ring)
	if b.size == capacity {
		b.ring[b.head] = t
		b.head = (b.head + 1) % capacity
		b.evicted++
		return true
	}

	b.ring[(b.head+b.size)%capacity] = t
	b.size++
	return false
}

// DrainAll removes and returns every buffered tick in arrival order.
func (b *Buffer) DrainAll() []market.Tick {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	out := make([]market.Tick, b.size)
	capacity := len(b.ring)
	for i := 0; i < b.size; i++ {
		out[i] = b.ring[(b.head+i)%capacity]
	}

	clear(b.ring)
	b.head = 0
	b.size = 0
	return out
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.ring)
}

// Evicted returns the total number of ticks overwritten since construction.
func (b *Buffer) Evicted() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.evicted
}
