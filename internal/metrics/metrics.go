// Package metrics exposes Prometheus collectors for ingestion and the analytics cycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pairwatch"

var (
	TicksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_received_total",
			Help:      "Ticks accepted from feeds into the ingestion buffer",
		},
		[]string{"symbol"},
	)

	TicksDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_discarded_total",
			Help:      "Feed events dropped at the ingestion boundary",
		},
		[]string{"reason"},
	)

	BufferEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "buffer",
			Name:      "evicted_total",
			Help:      "Ticks overwritten because the ingestion buffer was full",
		},
	)

	StoreTicks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "ticks",
			Help:      "Deduplicated ticks held in the tick store",
		},
	)

	StoreSymbolTicks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "symbol_ticks",
			Help:      "Deduplicated ticks held per symbol",
		},
		[]string{"symbol"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall time of one analytics cycle",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
	)

	Cycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "total",
			Help:      "Analytics cycles by resulting status",
		},
		[]string{"status"},
	)

	Alerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Z-score alerts raised",
		},
		[]string{"pair"},
	)

	LatestZScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "zscore",
			Help:      "Most recent defined spread z-score",
		},
		[]string{"pair"},
	)

	HedgeRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hedge_ratio",
			Help:      "Current OLS hedge ratio of the pair",
		},
		[]string{"pair"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
