package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/price"
)

const namespace = "emission"

// Metrics holds the engine's collectors.
type Metrics struct {
	registry *prometheus.Registry

	ticks         prometheus.Counter
	tickFallbacks prometheus.Counter
	rollovers     prometheus.Counter
	lastPrice     prometheus.Gauge
	expectedPrice prometheus.Gauge

	claims          *prometheus.CounterVec
	granted         prometheus.Counter
	remainingSupply prometheus.Gauge

	commissions *prometheus.CounterVec

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	feedClients prometheus.Gauge
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "ticks_total",
			Help:      "Total number of generated price ticks.",
		}),
		tickFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "target_fallbacks_total",
			Help:      "Ticks generated with fallback targets.",
		}),
		rollovers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "rollovers_total",
			Help:      "Trading day rollovers.",
		}),
		lastPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "last",
			Help:      "Price of the latest tick.",
		}),
		expectedPrice: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "price",
			Name:      "expected",
			Help:      "Expected price at the latest tick.",
		}),

		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "claims_total",
			Help:      "Claims by outcome.",
		}, []string{"outcome"}),
		granted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "granted_total",
			Help:      "Total tokens granted by claims.",
		}),
		remainingSupply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mining",
			Name:      "remaining_supply",
			Help:      "Global supply left after the latest claim.",
		}),

		commissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "commission",
			Name:      "notifications_total",
			Help:      "Referral commission notifications by result.",
		}, []string{"result"}),

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		}, []string{"method", "path"}),

		feedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "clients",
			Help:      "Connected live feed clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ticks, m.tickFallbacks, m.rollovers, m.lastPrice, m.expectedPrice,
		m.claims, m.granted, m.remainingSupply,
		m.commissions,
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.feedClients,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick implements price.Observer.
func (m *Metrics) ObserveTick(r price.Result) {
	m.ticks.Inc()
	if r.FallbackTarget {
		m.tickFallbacks.Inc()
	}
	if r.RolledOver {
		m.rollovers.Inc()
	}
	m.lastPrice.Set(r.Tick.Price.InexactFloat64())
	m.expectedPrice.Set(r.ExpectedPrice.InexactFloat64())
}

// ObserveClaim implements mining.Observer.
func (m *Metrics) ObserveClaim(outcome string, granted, remaining decimal.Decimal) {
	m.claims.WithLabelValues(outcome).Inc()
	if granted.IsPositive() {
		m.granted.Add(granted.InexactFloat64())
		m.remainingSupply.Set(remaining.InexactFloat64())
	}
}

// ObserveCommission records a commission notification result.
func (m *Metrics) ObserveCommission(result string) {
	m.commissions.WithLabelValues(result).Inc()
}

// HTTPStarted marks a request in flight.
func (m *Metrics) HTTPStarted() {
	m.httpInFlight.Inc()
}

// HTTPFinished records a completed request. path should be a route template.
func (m *Metrics) HTTPFinished(method, path string, status int, d time.Duration) {
	m.httpInFlight.Dec()
	m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// SetFeedClients records the live feed subscriber count.
func (m *Metrics) SetFeedClients(n int) {
	m.feedClients.Set(float64(n))
}

// SetRemainingSupply records the global supply left.
func (m *Metrics) SetRemainingSupply(remaining decimal.Decimal) {
	m.remainingSupply.Set(remaining.InexactFloat64())
}
