// Package metrics defines the venue's Prometheus collectors. They register
// on the default registry and are served by the ops HTTP server's /metrics
// endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minivenue_orders_accepted_total",
		Help: "New orders accepted and assigned an order id.",
	})

	OrdersRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minivenue_orders_rejected_total",
		Help: "New orders rejected by validation or self-trade prevention.",
	})

	Trades = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minivenue_trades_total",
		Help: "Trades executed between crossing orders.",
	})

	SimulatedFills = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minivenue_simulated_fills_total",
		Help: "Synthetic partial fills produced by the scheduler.",
	})

	Cancels = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minivenue_cancels_total",
		Help: "Orders removed by an explicit cancel request.",
	})

	RoutedDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "minivenue_routed_reports_dropped_total",
		Help: "Routed execution reports dropped because the owning session was gone.",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minivenue_completion_queue_depth",
		Help: "Completions waiting in the dispatcher queue.",
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minivenue_active_sessions",
		Help: "Sessions currently in the ACTIVE state.",
	})
)
