package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/patients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", m.Handler())

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/patients/"+id, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requestTotal.WithLabelValues("GET", "/patients/:id", "200")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestObserveGeneration(t *testing.T) {
	m := New()
	m.ObserveGeneration(OutcomeSuccess, 2*time.Second)
	m.ObserveGeneration(OutcomeMissingKey, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.reportGenerations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.reportGenerations.WithLabelValues(OutcomeMissingKey)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.generationLatency))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveGeneration(OutcomeFailed, time.Second) })
}
