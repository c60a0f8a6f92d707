package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grantd/grantd/internal/core"
)

// Metrics holds the service's Prometheus collectors on a private registry,
// so the /metrics endpoint only exposes what this service registers.
type Metrics struct {
	registry *prometheus.Registry

	exchanges        *prometheus.CounterVec
	exchangeDuration prometheus.Histogram
	issuedCodes      prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		exchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grantd",
			Name:      "exchanges_total",
			Help:      "Authorization-code exchange attempts by outcome.",
		}, []string{"outcome"}),
		exchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "grantd",
			Name:      "exchange_duration_seconds",
			Help:      "Duration of authorization-code exchanges.",
			Buckets:   prometheus.DefBuckets,
		}),
		issuedCodes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "grantd",
			Name:      "issued_codes_total",
			Help:      "Authorization codes issued.",
		}),
	}
	registry.MustRegister(m.exchanges, m.exchangeDuration, m.issuedCodes)
	return m
}

// ObserveExchange records one exchange attempt. Outcome is "success" or the
// failure kind.
func (m *Metrics) ObserveExchange(outcome string, seconds float64) {
	m.exchanges.WithLabelValues(outcome).Inc()
	m.exchangeDuration.Observe(seconds)
}

func (m *Metrics) ObserveIssuedCode() {
	m.issuedCodes.Inc()
}

// RegisterActiveGrants exposes a gauge backed by the store's active-grant
// count. Registration is best-effort; a failing store read reports zero.
func (m *Metrics) RegisterActiveGrants(store core.AuthorizationStore) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "grantd",
		Name:      "active_grants",
		Help:      "Unexpired authorization grants currently stored.",
	}, func() float64 {
		records, err := store.ListActive(context.Background())
		if err != nil {
			return 0
		}
		return float64(len(records))
	}))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
