package engine

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const MetricsSubsystem = "exchange"

// Metrics contains metrics exposed by the exchange engine.
type Metrics struct {
	// Number of orders created.
	OrdersMade metrics.Counter
	// Number of orders cancelled.
	OrdersCancelled metrics.Counter
	// Number of orders filled.
	OrdersFilled metrics.Counter
	// Number of open orders.
	OpenOrders metrics.Gauge
	// Number of deposits and withdrawals, labelled by kind.
	Transfers metrics.Counter
	// Number of rejected operations, labelled by op and error category.
	Rejections metrics.Counter
	// Fee collected per fill, in whole tokens.
	FeeCollected metrics.Histogram
}

// PrometheusMetrics returns Metrics built using the Prometheus client
// library. It registers with the default registry, so call it once.
func PrometheusMetrics(namespace string) *Metrics {
	return &Metrics{
		OrdersMade: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "orders_made",
			Help:      "Number of orders created.",
		}, []string{}),
		OrdersCancelled: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "orders_cancelled",
			Help:      "Number of orders cancelled by their maker.",
		}, []string{}),
		OrdersFilled: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "orders_filled",
			Help:      "Number of orders filled.",
		}, []string{}),
		OpenOrders: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "open_orders",
			Help:      "Number of orders currently open.",
		}, []string{}),
		Transfers: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "custody_transfers",
			Help:      "Number of deposits and withdrawals.",
		}, []string{"kind"}),
		Rejections: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "rejections",
			Help:      "Number of rejected operations.",
		}, []string{"op", "category"}),
		FeeCollected: prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "fee_collected_tokens",
			Help:      "Fee collected per fill, in whole tokens.",
			Buckets:   stdprometheus.ExponentialBuckets(0.001, 10, 10),
		}, []string{}),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		OrdersMade:      discard.NewCounter(),
		OrdersCancelled: discard.NewCounter(),
		OrdersFilled:    discard.NewCounter(),
		OpenOrders:      discard.NewGauge(),
		Transfers:       discard.NewCounter(),
		Rejections:      discard.NewCounter(),
		FeeCollected:    discard.NewHistogram(),
	}
}
