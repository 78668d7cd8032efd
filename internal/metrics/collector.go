// Package metrics exposes obcore's operational counters as Prometheus
// metrics on a side HTTP listener, separate from the order-intake TCP
// port. It is additive observability alongside GetPerformanceStats, not a
// replacement: the RPC remains the source of truth a client can query
// synchronously, while this endpoint serves a scrape target.
//
// Shape and registration pattern are grounded in
// VictorVVedtion-perp-dex/metrics/prometheus.go's Collector — a
// singleton built once with prometheus.MustRegister, trimmed down to the
// counters this system actually has (no positions, funding, or oracle
// concepts here).
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds every metric obcore publishes.
type Collector struct {
	RequestsTotal     prometheus.Counter
	CommandsProcessed prometheus.Counter
	OrdersAccepted    prometheus.Counter
	QueueDepth        prometheus.Gauge
	UptimeSeconds     prometheus.Gauge
	CurrentOps        prometheus.Gauge
	PeakOps           prometheus.Gauge

	lastRequests  uint64
	lastProcessed uint64
	lastAccepted  uint64
}

// GetCollector returns the process-wide singleton collector, building and
// registering it on first use.
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	c := &Collector{
		RequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obcore",
			Subsystem: "net",
			Name:      "requests_total",
			Help:      "Total request frames read off any TCP connection.",
		}),
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obcore",
			Subsystem: "engine",
			Name:      "commands_processed_total",
			Help:      "Total commands (submit, cancel, query) processed by the matcher goroutine.",
		}),
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "obcore",
			Subsystem: "engine",
			Name:      "orders_accepted_total",
			Help:      "Total orders handed to the matching engine.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obcore",
			Subsystem: "engine",
			Name:      "queue_depth",
			Help:      "Instantaneous occupancy of the intake queue.",
		}),
		UptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obcore",
			Subsystem: "engine",
			Name:      "uptime_seconds",
			Help:      "Seconds since the matching engine started.",
		}),
		CurrentOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obcore",
			Subsystem: "engine",
			Name:      "current_orders_per_second",
			Help:      "Orders processed per second, sampled over the matcher's most recent window.",
		}),
		PeakOps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "obcore",
			Subsystem: "engine",
			Name:      "peak_orders_per_second",
			Help:      "Highest orders-per-second rate observed since the engine started.",
		}),
	}
	c.registerAll()
	return c
}

func (c *Collector) registerAll() {
	prometheus.MustRegister(c.RequestsTotal)
	prometheus.MustRegister(c.CommandsProcessed)
	prometheus.MustRegister(c.OrdersAccepted)
	prometheus.MustRegister(c.QueueDepth)
	prometheus.MustRegister(c.UptimeSeconds)
	prometheus.MustRegister(c.CurrentOps)
	prometheus.MustRegister(c.PeakOps)
}

// Observe snapshots the server's and engine's live counters into the
// gauge/counter set. RequestsTotal, CommandsProcessed, and OrdersAccepted
// are monotonic counters recorded as deltas against the last observed
// value, since their sources track lifetime totals rather than emitting
// events.
func (c *Collector) Observe(requests, processed, accepted uint64, currentOps, peakOps float64, queueDepth int, uptimeSeconds float64) {
	c.observeCounter(c.RequestsTotal, &c.lastRequests, requests)
	c.observeCounter(c.CommandsProcessed, &c.lastProcessed, processed)
	c.observeCounter(c.OrdersAccepted, &c.lastAccepted, accepted)
	c.QueueDepth.Set(float64(queueDepth))
	c.UptimeSeconds.Set(uptimeSeconds)
	c.CurrentOps.Set(currentOps)
	c.PeakOps.Set(peakOps)
}

func (c *Collector) observeCounter(metric prometheus.Counter, last *uint64, current uint64) {
	if current > *last {
		metric.Add(float64(current - *last))
	}
	*last = current
}

// Handler returns the Prometheus scrape handler for mounting on an
// *http.ServeMux.
func Handler() http.Handler {
	return promhttp.Handler()
}
