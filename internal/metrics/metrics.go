package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry содержит счётчики движка жизненного цикла.
type Registry struct {
	transitions *prometheus.CounterVec
	reconciles  *prometheus.CounterVec
	gateway     *prometheus.CounterVec
	postings    *prometheus.CounterVec
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

var (
	registryOnce sync.Once
	registry     *Registry
)

// Default возвращает лениво инициализированный реестр метрик.
func Default() *Registry {
	registryOnce.Do(func() {
		registry = &Registry{
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "engagement",
				Subsystem: "lifecycle",
				Name:      "transitions_total",
				Help:      "Committed state transitions segmented by aggregate and status pair.",
			}, []string{"aggregate", "from", "to"}),
			reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "engagement",
				Subsystem: "escrow",
				Name:      "reconcile_total",
				Help:      "Gateway reconciliation outcomes.",
			}, []string{"outcome"}),
			gateway: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "engagement",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Outbound payment gateway calls segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			postings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "engagement",
				Subsystem: "ledger",
				Name:      "postings_total",
				Help:      "Wallet ledger postings segmented by type and result.",
			}, []string{"type", "result"}),
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "engagement",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests segmented by route and status code.",
			}, []string{"method", "route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "engagement",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP handler latency.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method", "route"}),
		}
		prometheus.MustRegister(
			registry.transitions,
			registry.reconciles,
			registry.gateway,
			registry.postings,
			registry.requests,
			registry.latency,
		)
	})
	return registry
}

func (r *Registry) Transition(aggregate, from, to string) {
	r.transitions.WithLabelValues(aggregate, from, to).Inc()
}

func (r *Registry) Reconcile(outcome string) {
	r.reconciles.WithLabelValues(outcome).Inc()
}

func (r *Registry) GatewayCall(operation, outcome string) {
	r.gateway.WithLabelValues(operation, outcome).Inc()
}

func (r *Registry) Posting(txType, result string) {
	r.postings.WithLabelValues(txType, result).Inc()
}

func (r *Registry) ObserveRequest(method, route, status string, seconds float64) {
	r.requests.WithLabelValues(method, route, status).Inc()
	r.latency.WithLabelValues(method, route).Observe(seconds)
}

// Handler отдаёт метрики в формате Prometheus.
func Handler() http.Handler {
	Default()
	return promhttp.Handler()
}
