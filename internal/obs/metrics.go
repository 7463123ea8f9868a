// Package obs exposes run health over HTTP: prometheus collectors for
// the decision loop plus a small JSON status endpoint.
package obs

import (
	"github.com/atlas-desktop/sim-trader/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors for one bot instance. A
// dedicated registry keeps concurrent test instances from colliding.
type Metrics struct {
	registry *prometheus.Registry

	stepsProcessed  prometheus.Counter
	ordersSubmitted prometheus.Counter
	cancelsSent     prometheus.Counter
	fillsReceived   prometheus.Counter
	streamErrors    prometheus.Counter

	inventory prometheus.Gauge
	pnl       prometheus.Gauge

	regimeSteps *prometheus.CounterVec
	fillLatency prometheus.Histogram
}

// NewMetrics creates and registers the collector set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stepsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrader_steps_processed_total",
			Help: "Market snapshots fully processed.",
		}),
		ordersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrader_orders_submitted_total",
			Help: "Orders sent to the exchange.",
		}),
		cancelsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrader_cancels_sent_total",
			Help: "Cancel requests sent to the exchange.",
		}),
		fillsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrader_fills_received_total",
			Help: "Execution reports received.",
		}),
		streamErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simtrader_stream_errors_total",
			Help: "Malformed or error messages absorbed from the streams.",
		}),
		inventory: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simtrader_inventory",
			Help: "Current signed inventory.",
		}),
		pnl: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simtrader_pnl",
			Help: "Mark-to-market profit and loss.",
		}),
		regimeSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simtrader_regime_steps_total",
			Help: "Steps spent in each market regime.",
		}, []string{"regime"}),
		fillLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simtrader_fill_latency_ms",
			Help:    "Order-to-fill latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.stepsProcessed, m.ordersSubmitted, m.cancelsSent, m.fillsReceived,
		m.streamErrors, m.inventory, m.pnl, m.regimeSteps, m.fillLatency,
	)
	return m
}

// ObserveStep records one completed decision step.
func (m *Metrics) ObserveStep(reg types.Regime, pos types.Position) {
	m.stepsProcessed.Inc()
	m.regimeSteps.WithLabelValues(string(reg)).Inc()
	m.inventory.Set(float64(pos.Inventory))
	pnl, _ := pos.PnL.Float64()
	m.pnl.Set(pnl)
}

// ObserveOrder records one submitted order.
func (m *Metrics) ObserveOrder() { m.ordersSubmitted.Inc() }

// ObserveCancels records n cancel requests. The lifecycle manager fires
// cancels in bursts within a step, so the count arrives as a delta.
func (m *Metrics) ObserveCancels(n int64) {
	if n > 0 {
		m.cancelsSent.Add(float64(n))
	}
}

// ObserveFill records one execution report; latencyMs < 0 means the
// originating order was unknown and latency is not recorded.
func (m *Metrics) ObserveFill(latencyMs float64) {
	m.fillsReceived.Inc()
	if latencyMs >= 0 {
		m.fillLatency.Observe(latencyMs)
	}
}

// ObserveStreamError records one absorbed stream anomaly.
func (m *Metrics) ObserveStreamError() { m.streamErrors.Inc() }

// Gatherer exposes the instance registry for scraping and inspection.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
