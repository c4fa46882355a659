// Package metrics exposes prometheus gauges/counters for the rebalancer's
// operational state (SPEC_FULL §2 domain stack wiring). These back the
// /metrics endpoint served alongside the health/trade-log surface in
// internal/api.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the registered collectors. A fresh Registry is used instead
// of the global default so tests can construct independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	Bid, Ask     prometheus.Gauge
	HaltState    prometheus.Gauge
	Reconnects   prometheus.Counter
	OrdersPlaced prometheus.Counter
	OrdersCancelled prometheus.Counter
	QueueDepth   prometheus.Gauge
}

// New builds and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		Bid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_bid", Help: "Last observed best bid price.",
		}),
		Ask: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_ask", Help: "Last observed best ask price.",
		}),
		HaltState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_halted", Help: "1 if trading is halted, 0 otherwise.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_stream_reconnects_total", Help: "Streaming reconnect count.",
		}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_orders_placed_total", Help: "Orders submitted.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_orders_cancelled_total", Help: "Orders cancelled.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rebalancer_http_queue_depth", Help: "Pending requests in the signed HTTP worker queue.",
		}),
	}

	reg.MustRegister(m.Bid, m.Ask, m.HaltState, m.Reconnects, m.OrdersPlaced, m.OrdersCancelled, m.QueueDepth)
	return m
}

// SetTicker records the latest top-of-book.
func (m *Metrics) SetTicker(bid, ask float64) {
	m.Bid.Set(bid)
	m.Ask.Set(ask)
}

// SetHaltState records the current halt latch.
func (m *Metrics) SetHaltState(halted bool) {
	if halted {
		m.HaltState.Set(1)
		return
	}
	m.HaltState.Set(0)
}
