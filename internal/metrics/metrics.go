// Package metrics provides Prometheus metrics for the distribution backend.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "token_distributor"

// Metrics holds every collector on its own registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Distributions        *prometheus.CounterVec
	DistributionDuration *prometheus.HistogramVec
	TokensDistributed    prometheus.Counter
	BulkJobs             prometheus.Counter
	SignerBalance        *prometheus.GaugeVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Distributions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "transfers_total",
			Help:      "Distribution attempts by outcome",
		}, []string{"outcome"}),
		DistributionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "duration_seconds",
			Help:      "Time from request to confirmation or failure",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"outcome"}),
		TokensDistributed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "tokens_total",
			Help:      "Tokens transferred in confirmed distributions",
		}),
		BulkJobs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "bulk_jobs_total",
			Help:      "Bulk distribution jobs started",
		}),
		SignerBalance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "signer",
			Name:      "balance",
			Help:      "Signer balance in human units by asset",
		}, []string{"asset"}),
	}
}

// ObserveDistribution records one finished distribution. outcome is "success" or an
// error kind.
func (m *Metrics) ObserveDistribution(outcome string, elapsed time.Duration, tokens decimal.Decimal) {
	if m == nil {
		return
	}
	m.Distributions.WithLabelValues(outcome).Inc()
	m.DistributionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome == "success" {
		m.TokensDistributed.Add(tokens.InexactFloat64())
	}
}

func (m *Metrics) ObserveBulkJob() {
	if m == nil {
		return
	}
	m.BulkJobs.Inc()
}

func (m *Metrics) SetSignerBalance(asset string, balance decimal.Decimal) {
	if m == nil {
		return
	}
	m.SignerBalance.WithLabelValues(asset).Set(balance.InexactFloat64())
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
