// Package metrics 提供做市引擎的 Prometheus 指标。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 引擎指标集合，挂在私有 registry 上。
type Metrics struct {
	registry *prometheus.Registry

	TicksSeen       *prometheus.CounterVec
	QuotesPlaced    *prometheus.CounterVec
	CancelsIssued   *prometheus.CounterVec
	ReconcileEvents *prometheus.CounterVec
	AdapterErrors   *prometheus.CounterVec
	FillsSeen       prometheus.Counter
	CloseSignals    *prometheus.CounterVec

	LiveOrders      *prometheus.GaugeVec
	RingDepth       *prometheus.GaugeVec
	FeedStalenessMs *prometheus.GaugeVec
	MidPrice        *prometheus.GaugeVec
}

// New 创建指标集合。
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mm"
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TicksSeen: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_seen_total",
			Help: "Oracle ticks received per instrument.",
		}, []string{"instrument"}),
		QuotesPlaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "quotes_placed_total",
			Help: "Limit orders placed per instrument and side.",
		}, []string{"instrument", "side"}),
		CancelsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cancels_issued_total",
			Help: "Deviation cancels submitted per instrument and side.",
		}, []string{"instrument", "side"}),
		ReconcileEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconcile_events_total",
			Help: "Order status events applied, labeled by status.",
		}, []string{"status"}),
		AdapterErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "adapter_errors_total",
			Help: "Exchange adapter failures by stage.",
		}, []string{"stage"}),
		FillsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fills_seen_total",
			Help: "Fill events observed on the event stream.",
		}),
		CloseSignals: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "close_inventory_signals_total",
			Help: "Inventory-beyond-deviation signals (reported, not acted on).",
		}, []string{"instrument"}),
		LiveOrders: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_orders",
			Help: "Live orders per instrument and side (synthetic included).",
		}, []string{"instrument", "side"}),
		RingDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "snapshot_ring_depth",
			Help: "Entries held in the per-instrument snapshot ring.",
		}, []string{"instrument"}),
		FeedStalenessMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "feed_staleness_ms",
			Help: "Milliseconds since the last oracle tick per instrument.",
		}, []string{"instrument"}),
		MidPrice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mid_price",
			Help: "Latest oracle mid per instrument.",
		}, []string{"instrument"}),
	}
}

// Handler 返回 /metrics 的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
