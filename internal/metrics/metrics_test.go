package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.AddMaterialized(3, 1, 2)
	m.IncCompletion("watering")
	m.IncCompletion("watering")
	m.ObserveRequest(http.MethodGet, "/api/v1/calendar", 200, 15*time.Millisecond)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.materialized.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.materialized.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.materialized.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.completions.WithLabelValues("watering")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reqCount.WithLabelValues("GET", "/api/v1/calendar", "200")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.AddMaterialized(1, 1, 1)
		m.IncCompletion("watering")
		m.IncError("internal")
		m.ObserveRequest("GET", "/", 200, time.Second)
	})
	assert.Nil(t, m.Registry())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncCompletion("fertilizing")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `care_completions_total{care_type="fertilizing"} 1`))
}
