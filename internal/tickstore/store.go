// Package tickstore keeps every ingested tick for the life of the process and
// resamples them into fixed-width bars.
//
// The store is not safe for concurrent use. It is owned by the analytics cycle
// goroutine. Memory grows with the number of distinct ticks received; nothing is
// evicted, so long-running deployments must budget for it.
package tickstore

import (
	"fmt"
	"sort"
	"time"

	"pairwatch/internal/market"
)

// DedupPolicy controls how Update treats ticks identical on all four fields.
type DedupPolicy string

const (
	// DedupExact drops a tick whose timestamp, symbol, price and quantity all match
	// an already stored tick. Two genuinely distinct trades sharing all four fields
	// are collapsed into one.
	DedupExact DedupPolicy = "exact"
	// DedupNone stores every tick as received.
	DedupNone DedupPolicy = "none"
)

func ParseDedupPolicy(s string) (DedupPolicy, error) {
	switch p := DedupPolicy(s); p {
	case DedupExact, DedupNone:
		return p, nil
	default:
		return "", fmt.Errorf("invalid dedup policy: %q", s)
	}
}

// tickKey identifies a tick for exact-duplicate suppression.
type tickKey struct {
	unixNano int64
	symbol   string
	price    float64
	quantity float64
}

func keyOf(t market.Tick) tickKey {
	return tickKey{
		unixNano: t.Timestamp.UnixNano(),
		symbol:   t.Symbol,
		price:    t.Price,
		quantity: t.Quantity,
	}
}

// Store is an append-only, per-symbol partitioned tick log.
type Store struct {
	policy DedupPolicy
	seen   map[tickKey]struct{}
	ticks  map[string][]market.Tick // insertion order per symbol
	total  int
}

func New(policy DedupPolicy) *Store {
	if policy == "" {
		policy = DedupExact
	}
	return &Store{
		policy: policy,
		seen:   make(map[tickKey]struct{}),
		ticks:  make(map[string][]market.Tick),
	}
}

// Policy returns the duplicate policy the store was built with.
func (s *Store) Policy() DedupPolicy {
	return s.policy
}

// Update appends ticks and suppresses exact duplicates, keeping the first
// occurrence. It returns how many ticks were actually stored.
func (s *Store) Update(ticks []market.Tick) int {
	added := 0
	for _, t := range ticks {
		if s.policy == DedupExact {
			k := keyOf(t)
			if _, dup := s.seen[k]; dup {
				continue
			}
			s.seen[k] = struct{}{}
		}
		s.ticks[t.Symbol] = append(s.ticks[t.Symbol], t)
		added++
	}
	s.total += added
	return added
}

// Len returns the number of stored ticks across all symbols.
func (s *Store) Len() int {
	return s.total
}

func (s *Store) CountBySymbol(symbol string) int {
	return len(s.ticks[symbol])
}

// Symbols returns the stored symbols in sorted order.
func (s *Store) Symbols() []string {
	out := make([]string, 0, len(s.ticks))
	for sym := range s.ticks {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Ticks returns a copy of a symbol's ticks in insertion order.
func (s *Store) Ticks(symbol string) []market.Tick {
	src := s.ticks[symbol]
	cp := make([]market.Tick, len(src))
	copy(cp, src)
	return cp
}

// Bar aggregates one symbol's ticks over a single bucket.
type Bar struct {
	BucketStart   time.Time `json:"bucket_start"`
	LastPrice     float64   `json:"last_price"`
	TotalQuantity float64   `json:"total_quantity"`
}

// Resample buckets a symbol's ticks into bars of width tf.
// Buckets are aligned to the UTC epoch grid. Empty buckets produce no bar.
func (s *Store) Resample(symbol string, tf Timeframe) ([]Bar, error) {
	width := tf.Duration()
	if width <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeframe, tf)
	}

	ticks := s.Ticks(symbol)
	if len(ticks) == 0 {
		return []Bar{}, nil
	}

	// Chronological order; ties keep insertion order.
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})

	bars := make([]Bar, 0)
	for _, t := range ticks {
		bucket := t.Timestamp.UTC().Truncate(width)
		n := len(bars)
		if n > 0 && bars[n-1].BucketStart.Equal(bucket) {
			bars[n-1].LastPrice = t.Price
			bars[n-1].TotalQuantity += t.Quantity
			continue
		}
		bars = append(bars, Bar{
			BucketStart:   bucket,
			LastPrice:     t.Price,
			TotalQuantity: t.Quantity,
		})
	}
	return bars, nil
}
