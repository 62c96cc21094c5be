// Package observability exposes the engine's operational metrics. Nothing
// here influences consensus; the registry can be disabled entirely without
// changing state transitions.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records block and transaction processing activity.
type EngineMetrics struct {
	blocks        prometheus.Counter
	transactions  *prometheus.CounterVec
	trades        prometheus.Counter
	distributions prometheus.Counter
	blockSeconds  prometheus.Histogram
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			blocks: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokenlayer",
				Subsystem: "engine",
				Name:      "blocks_connected_total",
				Help:      "Total blocks whose token-layer effects were applied.",
			}),
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tokenlayer",
				Subsystem: "engine",
				Name:      "transactions_total",
				Help:      "Total token-layer transactions segmented by outcome.",
			}, []string{"outcome"}),
			trades: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokenlayer",
				Subsystem: "engine",
				Name:      "trades_matched_total",
				Help:      "Total MetaDEx fills executed.",
			}),
			distributions: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tokenlayer",
				Subsystem: "engine",
				Name:      "fee_distributions_total",
				Help:      "Total fee distributions triggered.",
			}),
			blockSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "tokenlayer",
				Subsystem: "engine",
				Name:      "block_seconds",
				Help:      "Wall time spent applying one block's transactions.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
		prometheus.MustRegister(
			engineRegistry.blocks,
			engineRegistry.transactions,
			engineRegistry.trades,
			engineRegistry.distributions,
			engineRegistry.blockSeconds,
		)
	})
	return engineRegistry
}

// BlockConnected counts one applied block and its processing time.
func (m *EngineMetrics) BlockConnected(seconds float64) {
	if m == nil {
		return
	}
	m.blocks.Inc()
	m.blockSeconds.Observe(seconds)
}

// Transaction counts one processed transaction by outcome.
func (m *EngineMetrics) Transaction(outcome string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

// TradesMatched counts executed MetaDEx fills.
func (m *EngineMetrics) TradesMatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.trades.Add(float64(n))
}

// FeeDistribution counts one triggered distribution.
func (m *EngineMetrics) FeeDistribution() {
	if m == nil {
		return
	}
	m.distributions.Inc()
}
