package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "telemetry"

const (
	OutcomeStored = "stored"
	OutcomeOK     = "ok"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	ingest   *prometheus.CounterVec
	listings *prometheus.CounterVec
	store    *prometheus.HistogramVec
}

// New registers the service collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Ingestion requests by stream and outcome.",
		}, []string{"stream", "outcome"}),
		listings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listing_total",
			Help:      "Listing requests by stream and outcome.",
		}, []string{"stream", "outcome"}),
		store: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_duration_seconds",
			Help:      "Time spent acquiring a connection and running the statement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(m.ingest, m.listings, m.store)
	return m
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) Ingest(stream, outcome string) {
	if m == nil {
		return
	}
	m.ingest.WithLabelValues(stream, outcome).Inc()
}

func (m *Metrics) Listing(stream, outcome string) {
	if m == nil {
		return
	}
	m.listings.WithLabelValues(stream, outcome).Inc()
}

func (m *Metrics) ObserveStore(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.store.WithLabelValues(op).Observe(d.Seconds())
}
