// Package metrics exposes a Prometheus collector for the matching core,
// in a singleton-collector style: one package-level Collector,
// constructed once, with Record* helper methods called from the request
// path and a promhttp handler served alongside a liveness endpoint.
package metrics

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds every metric spotbook exports.
type Collector struct {
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	OrdersExpired   *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec

	TradesTotal *prometheus.CounterVec
	TradeVolume *prometheus.CounterVec

	RequestLatency *prometheus.HistogramVec

	BookDepth  *prometheus.GaugeVec
	BestPrice  *prometheus.GaugeVec
	PairsLive  prometheus.Gauge

	SnapshotDuration prometheus.Histogram
	SnapshotFailures prometheus.Counter
}

// GetCollector returns the singleton collector, constructing it on first
// use.
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	c := &Collector{}

	c.OrdersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "orders", Name: "placed_total", Help: "Total resting orders placed."},
		[]string{"pair_id", "side"},
	)
	c.OrdersCancelled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "orders", Name: "cancelled_total", Help: "Total orders cancelled."},
		[]string{"pair_id", "side"},
	)
	c.OrdersExpired = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "orders", Name: "expired_total", Help: "Total orders removed by expiry."},
		[]string{"pair_id", "side"},
	)
	c.OrdersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "orders", Name: "rejected_total", Help: "Total order requests rejected by validation."},
		[]string{"pair_id", "reason"},
	)

	c.TradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "trades", Name: "total", Help: "Total fills executed."},
		[]string{"pair_id"},
	)
	c.TradeVolume = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "trades", Name: "base_volume_total", Help: "Total traded base-asset volume, scaled 1e8."},
		[]string{"pair_id"},
	)

	c.RequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spotbook", Subsystem: "engine", Name: "request_latency_ms",
			Help:    "Matching engine request latency in milliseconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25, 50},
		},
		[]string{"op"},
	)

	c.BookDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "spotbook", Subsystem: "book", Name: "depth", Help: "Number of resting price levels."},
		[]string{"pair_id", "side"},
	)
	c.BestPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "spotbook", Subsystem: "book", Name: "best_price", Help: "Best bid/ask price, scaled 1e8."},
		[]string{"pair_id", "side"},
	)
	c.PairsLive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "spotbook", Subsystem: "engine", Name: "pairs_live", Help: "Number of pairs currently registered."},
	)

	c.SnapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spotbook", Subsystem: "snapshot", Name: "save_duration_ms",
			Help:    "Snapshot save duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
	c.SnapshotFailures = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "spotbook", Subsystem: "snapshot", Name: "failures_total", Help: "Total snapshot save failures."},
	)

	prometheus.MustRegister(c.OrdersPlaced)
	prometheus.MustRegister(c.OrdersCancelled)
	prometheus.MustRegister(c.OrdersExpired)
	prometheus.MustRegister(c.OrdersRejected)
	prometheus.MustRegister(c.TradesTotal)
	prometheus.MustRegister(c.TradeVolume)
	prometheus.MustRegister(c.RequestLatency)
	prometheus.MustRegister(c.BookDepth)
	prometheus.MustRegister(c.BestPrice)
	prometheus.MustRegister(c.PairsLive)
	prometheus.MustRegister(c.SnapshotDuration)
	prometheus.MustRegister(c.SnapshotFailures)

	return c
}

func (c *Collector) RecordOrderPlaced(pairID, side string) {
	c.OrdersPlaced.WithLabelValues(pairID, side).Inc()
}

func (c *Collector) RecordOrderCancelled(pairID, side string) {
	c.OrdersCancelled.WithLabelValues(pairID, side).Inc()
}

func (c *Collector) RecordOrderExpired(pairID, side string) {
	c.OrdersExpired.WithLabelValues(pairID, side).Inc()
}

func (c *Collector) RecordOrderRejected(pairID, reason string) {
	c.OrdersRejected.WithLabelValues(pairID, reason).Inc()
}

func (c *Collector) RecordTrade(pairID string, baseVolume float64) {
	c.TradesTotal.WithLabelValues(pairID).Inc()
	c.TradeVolume.WithLabelValues(pairID).Add(baseVolume)
}

func (c *Collector) RecordRequestLatency(op string, latencyMs float64) {
	c.RequestLatency.WithLabelValues(op).Observe(latencyMs)
}

func (c *Collector) SetBookDepth(pairID, side string, depth float64) {
	c.BookDepth.WithLabelValues(pairID, side).Set(depth)
}

func (c *Collector) SetBestPrice(pairID, side string, price float64) {
	c.BestPrice.WithLabelValues(pairID, side).Set(price)
}

func (c *Collector) SetPairsLive(n float64) {
	c.PairsLive.Set(n)
}

func (c *Collector) RecordSnapshotDuration(ms float64) {
	c.SnapshotDuration.Observe(ms)
}

func (c *Collector) RecordSnapshotFailure() {
	c.SnapshotFailures.Inc()
}

// Handler returns the HTTP handler serving the Prometheus exposition
// format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer builds the gorilla/mux router serving /metrics and /healthz.
func NewServer() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}
