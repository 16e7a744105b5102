// Package metrics exposes the Prometheus instruments tracked by the launchpad
// daemon.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LaunchMetrics struct {
	poolsCreated prometheus.Counter
	trades       *prometheus.CounterVec
	migrations   *prometheus.CounterVec
	tradeErrors  *prometheus.CounterVec
	rpcRequests  *prometheus.CounterVec
	rpcDuration  *prometheus.HistogramVec
}

var (
	launchOnce     sync.Once
	launchRegistry *LaunchMetrics
)

// Launch returns the process-wide launchpad metrics, registering them on first
// use.
func Launch() *LaunchMetrics {
	launchOnce.Do(func() {
		launchRegistry = &LaunchMetrics{
			poolsCreated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "launchpad_pools_created_total",
				Help: "Count of bonding-curve pools created.",
			}),
			trades: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launchpad_trades_total",
				Help: "Count of settled trades by direction.",
			}, []string{"direction"}),
			migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launchpad_migrations_total",
				Help: "Count of pool migrations by trigger.",
			}, []string{"trigger"}),
			tradeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launchpad_trade_errors_total",
				Help: "Count of rejected trade attempts by reason.",
			}, []string{"reason"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "launchpad_rpc_requests_total",
				Help: "Count of RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
			rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "launchpad_rpc_duration_seconds",
				Help:    "RPC handler latency by method.",
				Buckets: prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			launchRegistry.poolsCreated,
			launchRegistry.trades,
			launchRegistry.migrations,
			launchRegistry.tradeErrors,
			launchRegistry.rpcRequests,
			launchRegistry.rpcDuration,
		)
	})
	return launchRegistry
}

func (m *LaunchMetrics) ObservePoolCreated() {
	if m == nil {
		return
	}
	m.poolsCreated.Inc()
}

func (m *LaunchMetrics) ObserveTrade(direction string) {
	if m == nil {
		return
	}
	if direction == "" {
		direction = "unknown"
	}
	m.trades.WithLabelValues(direction).Inc()
}

func (m *LaunchMetrics) ObserveMigration(trigger string) {
	if m == nil {
		return
	}
	if trigger == "" {
		trigger = "unknown"
	}
	m.migrations.WithLabelValues(trigger).Inc()
}

func (m *LaunchMetrics) ObserveTradeError(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.tradeErrors.WithLabelValues(reason).Inc()
}

func (m *LaunchMetrics) ObserveRPC(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
	m.rpcDuration.WithLabelValues(method).Observe(seconds)
}
