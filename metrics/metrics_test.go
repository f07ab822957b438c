package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Ingest("log_teste", OutcomeStored)
	m.Ingest("log_teste", OutcomeStored)
	m.Ingest("log_teste", "auth")
	m.Listing("log_bateria", OutcomeOK)
	m.ObserveStore("insert", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingest.WithLabelValues("log_teste", OutcomeStored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingest.WithLabelValues("log_teste", "auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.listings.WithLabelValues("log_bateria", OutcomeOK)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.store))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Ingest("log_teste", OutcomeStored)
		m.Listing("log_teste", OutcomeOK)
		m.ObserveStore("list", time.Second)
	})
}

func TestHandlerExposesCounters(t *testing.T) {
	reg := NewRegistry()
	m := New(reg)
	m.Ingest("log_bateria", OutcomeStored)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `telemetry_ingest_total{outcome="stored",stream="log_bateria"} 1`)
}
